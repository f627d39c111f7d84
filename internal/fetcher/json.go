package fetcher

import (
	"context"
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
)

// JSONOptions configures DecodeJSONArray.
type JSONOptions struct {
	// ArrayKey, when set, also accepts an object wrapping the array under this
	// key, e.g. {"businesses": [...]}. Other keys are ignored.
	ArrayKey string
}

// DecodeJSONArray decodes a JSON array streaming, sending each element to a channel.
// Expects input in the form [{...},{...}], or {"<ArrayKey>": [...]} when configured.
// Both channels are closed when processing completes.
func DecodeJSONArray[T any](ctx context.Context, r io.Reader, opts JSONOptions) (<-chan T, <-chan error) {
	outCh := make(chan T, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(outCh)
		defer close(errCh)

		decoder := json.NewDecoder(r)

		tok, err := decoder.Token()
		if err != nil {
			if err == io.EOF {
				return
			}
			errCh <- eris.Wrap(err, "json: read opening token")
			return
		}

		if delim, ok := tok.(json.Delim); ok && delim == '{' && opts.ArrayKey != "" {
			if err := seekKey(decoder, opts.ArrayKey); err != nil {
				errCh <- err
				return
			}
			if tok, err = decoder.Token(); err != nil {
				errCh <- eris.Wrap(err, "json: read array token")
				return
			}
		}

		delim, ok := tok.(json.Delim)
		if !ok || delim != '[' {
			errCh <- eris.Errorf("json: expected '[', got %v", tok)
			return
		}

		for decoder.More() {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "json: context cancelled")
				return
			}

			var item T
			if err := decoder.Decode(&item); err != nil {
				errCh <- eris.Wrap(err, "json: decode element")
				return
			}

			select {
			case outCh <- item:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "json: context cancelled")
				return
			}
		}

		if _, err := decoder.Token(); err != nil && err != io.EOF {
			errCh <- eris.Wrap(err, "json: read closing token")
		}
	}()

	return outCh, errCh
}

// seekKey advances an object decoder to the value of key, skipping other members.
func seekKey(decoder *json.Decoder, key string) error {
	for decoder.More() {
		tok, err := decoder.Token()
		if err != nil {
			return eris.Wrap(err, "json: read key")
		}
		if k, _ := tok.(string); k == key {
			return nil
		}
		var skip json.RawMessage
		if err := decoder.Decode(&skip); err != nil {
			return eris.Wrap(err, "json: skip value")
		}
	}
	return eris.Errorf("json: key %q not found", key)
}
