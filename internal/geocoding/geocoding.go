// Package geocoding fills in coordinates for businesses that have a street
// address but no location. Results are recorded as contributions from the
// "geocoder" source, which ranks below every configured source, so a geocoded
// point never replaces coordinates supplied by a listing or an editor.
package geocoding

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/bizdir/internal/model"
	"github.com/sells-group/bizdir/internal/provenance"
	"github.com/sells-group/bizdir/internal/store"
	"github.com/sells-group/bizdir/pkg/geocode"
)

// Source is the contribution source name for geocoded coordinates.
const Source = "geocoder"

const fieldCoordinates = "coordinates"

// Options selects which businesses to geocode.
type Options struct {
	// BatchID limits the run to one import batch; empty means every business.
	BatchID string
	// Limit caps how many businesses are sent to the geocoder; 0 means no cap.
	Limit  int
	DryRun bool
}

// Summary reports what a run did.
type Summary struct {
	Considered int            `json:"considered"`
	Skipped    int            `json:"skipped"`
	Matched    int            `json:"matched"`
	Unmatched  int            `json:"unmatched"`
	ByProvider map[string]int `json:"by_provider,omitempty"`
	DryRun     bool           `json:"dry_run"`
}

// Service geocodes businesses.
type Service struct {
	store    store.Store
	recorder *provenance.Recorder
	client   geocode.Client
	log      *zap.Logger
}

// New creates a Service.
func New(st store.Store, rec *provenance.Recorder, client geocode.Client) *Service {
	return &Service{
		store:    st,
		recorder: rec,
		client:   client,
		log:      zap.L().With(zap.String("component", "geocoding")),
	}
}

// Run geocodes every selected business that has an address and no
// coordinates.
func (s *Service) Run(ctx context.Context, opts Options) (*Summary, error) {
	all, err := s.store.ListBusinesses(ctx, store.BusinessFilter{ImportBatchID: opts.BatchID})
	if err != nil {
		return nil, eris.Wrap(err, "geocoding: list businesses")
	}

	sum := &Summary{Considered: len(all), ByProvider: map[string]int{}, DryRun: opts.DryRun}
	var (
		targets []model.Business
		addrs   []geocode.AddressInput
	)
	for _, b := range all {
		if b.Coordinates != nil || b.Address == "" || opts.Limit > 0 && len(targets) >= opts.Limit {
			sum.Skipped++
			continue
		}
		targets = append(targets, b)
		addrs = append(addrs, geocode.AddressInput{
			ID:      b.ID,
			Street:  b.Address,
			City:    b.City,
			State:   b.State,
			ZipCode: b.Zip,
		})
	}
	if len(targets) == 0 {
		return sum, nil
	}

	results, err := s.client.BatchGeocode(ctx, addrs)
	if err != nil {
		return nil, eris.Wrap(err, "geocoding: geocode addresses")
	}
	if len(results) != len(targets) {
		return nil, eris.Errorf("geocoding: got %d results for %d addresses", len(results), len(targets))
	}

	for i, r := range results {
		if !r.Matched {
			sum.Unmatched++
			continue
		}
		sum.Matched++
		sum.ByProvider[r.Source]++
		if opts.DryRun {
			continue
		}
		_, err := s.recorder.Contribute(ctx, targets[i].ID, fieldCoordinates, model.SourceContribution{
			Source:     Source,
			Value:      map[string]any{"lat": r.Latitude, "lng": r.Longitude},
			Confidence: confidence(r.Quality),
			Metadata:   map[string]any{"provider": r.Source, "quality": r.Quality},
		})
		if err != nil {
			return sum, eris.Wrapf(err, "geocoding: record coordinates for %s", targets[i].ID)
		}
	}

	s.log.Info("geocoding complete",
		zap.String("batch_id", opts.BatchID),
		zap.Int("matched", sum.Matched),
		zap.Int("unmatched", sum.Unmatched),
		zap.Bool("dry_run", opts.DryRun),
	)
	return sum, nil
}

func confidence(quality string) float64 {
	switch quality {
	case "rooftop":
		return 0.9
	case "range":
		return 0.75
	case "centroid":
		return 0.6
	}
	return 0.4
}
