package geocode

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
)

type googleGeocodeResponse struct {
	Status  string `json:"status"`
	Results []struct {
		Geometry struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
			LocationType string `json:"location_type"`
		} `json:"geometry"`
	} `json:"results"`
}

func (g *geocoder) geocodeGoogle(ctx context.Context, addr AddressInput) (*Result, error) {
	if g.googleKey == "" {
		return nil, eris.New("geocode: google api key not configured")
	}
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "geocode: google rate limit")
	}

	params := url.Values{
		"address": {formatOneLine(addr)},
		"key":     {g.googleKey},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.googleURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: google build request")
	}

	body, err := g.do(req, "google")
	if err != nil {
		return nil, err
	}

	var resp googleGeocodeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, eris.Wrap(err, "geocode: google parse response")
	}
	if resp.Status != "OK" || len(resp.Results) == 0 {
		return &Result{Matched: false, Source: "google"}, nil
	}

	top := resp.Results[0].Geometry
	return &Result{
		Latitude:  top.Location.Lat,
		Longitude: top.Location.Lng,
		Source:    "google",
		Quality:   googleQuality(top.LocationType),
		Matched:   true,
	}, nil
}

func googleQuality(locType string) string {
	switch strings.ToUpper(locType) {
	case "ROOFTOP":
		return "rooftop"
	case "RANGE_INTERPOLATED":
		return "range"
	case "GEOMETRIC_CENTER":
		return "centroid"
	}
	return "approximate"
}
