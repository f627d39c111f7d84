// Package geocode resolves street addresses to coordinates with the Census
// Geocoder, falling back to the Google Geocoding API when a key is configured.
package geocode

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultCensusURL = "https://geocoding.geo.census.gov/geocoder/locations"
	defaultGoogleURL = "https://maps.googleapis.com/maps/api/geocode/json"

	// maxBatch is the Census batch endpoint's row limit.
	maxBatch = 10000
)

// Client geocodes addresses.
type Client interface {
	Geocode(ctx context.Context, addr AddressInput) (*Result, error)
	// BatchGeocode returns one result per input, in input order.
	BatchGeocode(ctx context.Context, addrs []AddressInput) ([]Result, error)
}

// AddressInput is an address to geocode.
type AddressInput struct {
	ID      string // batch correlation id; assigned when empty
	Street  string
	City    string
	State   string
	ZipCode string
}

// Result is the outcome for one address. Unmatched addresses are not errors.
type Result struct {
	Latitude  float64
	Longitude float64
	Source    string // "census" or "google"
	Quality   string // "rooftop", "range", "centroid", "approximate"
	Matched   bool
}

// Option configures the geocoder.
type Option func(*geocoder)

// WithGoogleAPIKey enables the Google fallback.
func WithGoogleAPIKey(key string) Option {
	return func(g *geocoder) { g.googleKey = key }
}

// WithHTTPClient sets the HTTP client used for every provider.
func WithHTTPClient(hc *http.Client) Option {
	return func(g *geocoder) { g.httpClient = hc }
}

// WithRateLimit caps requests per second across providers.
func WithRateLimit(rps float64) Option {
	return func(g *geocoder) {
		g.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
	}
}

// WithCensusURL overrides the Census locations endpoint root.
func WithCensusURL(u string) Option {
	return func(g *geocoder) { g.censusURL = u }
}

// WithGoogleURL overrides the Google geocode endpoint.
func WithGoogleURL(u string) Option {
	return func(g *geocoder) { g.googleURL = u }
}

type geocoder struct {
	httpClient *http.Client
	googleKey  string
	censusURL  string
	googleURL  string
	limiter    *rate.Limiter
}

// NewClient creates a geocoding client.
func NewClient(opts ...Option) Client {
	g := &geocoder{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		censusURL:  defaultCensusURL,
		googleURL:  defaultGoogleURL,
		limiter:    rate.NewLimiter(50, 50),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Geocode tries Census, then Google when configured.
func (g *geocoder) Geocode(ctx context.Context, addr AddressInput) (*Result, error) {
	result, err := g.geocodeCensus(ctx, addr)
	if err == nil && result.Matched {
		return result, nil
	}
	if g.googleKey != "" {
		gr, gerr := g.geocodeGoogle(ctx, addr)
		if gerr == nil && gr.Matched {
			return gr, nil
		}
	}
	if err != nil && ctx.Err() != nil {
		return nil, err
	}
	return &Result{Matched: false}, nil
}

// BatchGeocode sends addresses to the Census batch endpoint in chunks, then
// retries unmatched rows with Google when configured. A failed chunk falls
// back to one request per address.
func (g *geocoder) BatchGeocode(ctx context.Context, addrs []AddressInput) ([]Result, error) {
	if len(addrs) == 0 {
		return nil, nil
	}
	for i := range addrs {
		if addrs[i].ID == "" {
			addrs[i].ID = strconv.Itoa(i)
		}
	}

	results := make([]Result, 0, len(addrs))
	for start := 0; start < len(addrs); start += maxBatch {
		chunk := addrs[start:min(start+maxBatch, len(addrs))]
		got, err := g.batchGeocodeCensus(ctx, chunk)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			got = make([]Result, len(chunk))
			for i, addr := range chunk {
				r, err := g.Geocode(ctx, addr)
				if err != nil {
					return nil, err
				}
				got[i] = *r
			}
			results = append(results, got...)
			continue
		}
		if g.googleKey != "" {
			for i := range got {
				if got[i].Matched {
					continue
				}
				if gr, gerr := g.geocodeGoogle(ctx, chunk[i]); gerr == nil && gr.Matched {
					got[i] = *gr
				}
			}
		}
		results = append(results, got...)
	}
	return results, nil
}
