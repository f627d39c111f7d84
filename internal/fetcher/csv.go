// Package fetcher reads business listing files (CSV, XLSX, JSON) into rows keyed
// by normalized column names.
package fetcher

import (
	"context"
	"encoding/csv"
	"io"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
)

// Row is one data row keyed by normalized header name.
type Row map[string]string

// CSVOptions configures the streaming CSV parser. The first record is always
// treated as the header.
type CSVOptions struct {
	Delimiter  rune // default ','
	Comment    rune // comment character (0 = none)
	LazyQuotes bool
}

// NormalizeHeader converts a column title to snake_case: "Business Name" and
// "businessName" both become "business_name". A leading UTF-8 BOM is dropped.
func NormalizeHeader(h string) string {
	h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	var b strings.Builder
	prevLower := false
	for _, r := range h {
		switch {
		case unicode.IsUpper(r):
			if prevLower {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			prevLower = false
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
			prevLower = true
		default:
			if b.Len() > 0 && !strings.HasSuffix(b.String(), "_") {
				b.WriteByte('_')
			}
			prevLower = false
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}

// toRow zips a header with one record. Values are trimmed; rows whose values
// are all empty yield nil.
func toRow(header, record []string) Row {
	row := make(Row, len(header))
	empty := true
	for i, name := range header {
		if name == "" || i >= len(record) {
			continue
		}
		v := strings.TrimSpace(record[i])
		if v != "" {
			empty = false
		}
		row[name] = v
	}
	if empty {
		return nil
	}
	return row
}

// StreamCSV reads a CSV file and sends header-keyed rows to a channel.
// Caller must consume the returned row channel. Errors are sent on the error channel.
// Both channels are closed when processing completes.
func StreamCSV(ctx context.Context, r io.Reader, opts CSVOptions) (<-chan Row, <-chan error) {
	rowCh := make(chan Row, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		reader := csv.NewReader(r)
		if opts.Delimiter != 0 {
			reader.Comma = opts.Delimiter
		}
		if opts.Comment != 0 {
			reader.Comment = opts.Comment
		}
		reader.LazyQuotes = opts.LazyQuotes
		reader.FieldsPerRecord = -1 // allow variable fields

		var header []string
		for {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}

			record, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "csv: read row")
				return
			}

			if header == nil {
				header = make([]string, len(record))
				for i, h := range record {
					header[i] = NormalizeHeader(h)
				}
				continue
			}

			row := toRow(header, record)
			if row == nil {
				continue
			}
			select {
			case rowCh <- row:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}

// Collect drains a row/error channel pair into a slice.
func Collect[T any](rowCh <-chan T, errCh <-chan error) ([]T, error) {
	var out []T
	for row := range rowCh {
		out = append(out, row)
	}
	if err := <-errCh; err != nil {
		return out, err
	}
	return out, nil
}
