// Package google is a small client for the Google Places (New) Text Search API,
// used to pull Google Business listings and their reviews.
package google

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://places.googleapis.com/v1"

// fieldMask lists the listing fields requested for every place.
var fieldMask = strings.Join([]string{
	"places.id",
	"places.displayName",
	"places.formattedAddress",
	"places.addressComponents",
	"places.nationalPhoneNumber",
	"places.websiteUri",
	"places.googleMapsUri",
	"places.location",
	"places.rating",
	"places.userRatingCount",
	"places.regularOpeningHours",
	"places.primaryType",
	"places.reviews",
	"nextPageToken",
}, ",")

// Client performs Google Places API operations.
type Client interface {
	TextSearch(ctx context.Context, req TextSearchRequest) (*TextSearchResponse, error)
}

// TextSearchRequest is the body of a Places Text Search call.
type TextSearchRequest struct {
	TextQuery    string  `json:"textQuery"`
	PageSize     int     `json:"pageSize,omitempty"`
	PageToken    string  `json:"pageToken,omitempty"`
	IncludedType string  `json:"includedType,omitempty"`
	RegionCode   string  `json:"regionCode,omitempty"`
	LanguageCode string  `json:"languageCode,omitempty"`
	MinRating    float64 `json:"minRating,omitempty"`
}

// TextSearchResponse is the response from Places Text Search.
type TextSearchResponse struct {
	Places        []Place `json:"places"`
	NextPageToken string  `json:"nextPageToken,omitempty"`
}

// Place represents a business listing returned by the API.
type Place struct {
	ID                  string             `json:"id"`
	DisplayName         DisplayName        `json:"displayName"`
	FormattedAddress    string             `json:"formattedAddress,omitempty"`
	AddressComponents   []AddressComponent `json:"addressComponents,omitempty"`
	NationalPhoneNumber string             `json:"nationalPhoneNumber,omitempty"`
	WebsiteURI          string             `json:"websiteUri,omitempty"`
	GoogleMapsURI       string             `json:"googleMapsUri,omitempty"`
	Location            *LatLng            `json:"location,omitempty"`
	Rating              float64            `json:"rating"`
	UserRatingCount     int                `json:"userRatingCount"`
	RegularOpeningHours *OpeningHours      `json:"regularOpeningHours,omitempty"`
	PrimaryType         string             `json:"primaryType,omitempty"`
	Reviews             []Review           `json:"reviews,omitempty"`
}

// DisplayName holds the place's display name.
type DisplayName struct {
	Text string `json:"text"`
}

// AddressComponent is one typed part of a structured address.
type AddressComponent struct {
	LongText  string   `json:"longText"`
	ShortText string   `json:"shortText"`
	Types     []string `json:"types"`
}

// LatLng is a geographic coordinate.
type LatLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// OpeningHours carries the human-readable weekly schedule.
type OpeningHours struct {
	WeekdayDescriptions []string `json:"weekdayDescriptions"`
}

// Review is a customer review attached to a place.
type Review struct {
	Name              string            `json:"name"`
	Rating            float64           `json:"rating"`
	Text              LocalizedText     `json:"text"`
	AuthorAttribution AuthorAttribution `json:"authorAttribution"`
	PublishTime       time.Time         `json:"publishTime"`
}

// LocalizedText is a string with its language.
type LocalizedText struct {
	Text         string `json:"text"`
	LanguageCode string `json:"languageCode,omitempty"`
}

// AuthorAttribution names a review's author.
type AuthorAttribution struct {
	DisplayName string `json:"displayName"`
}

// Component returns the long text of the first address component with type t.
// With short set it returns the short text instead (e.g. "AZ" for a state).
func (p *Place) Component(t string, short bool) string {
	for _, c := range p.AddressComponents {
		for _, ct := range c.Types {
			if ct == t {
				if short {
					return c.ShortText
				}
				return c.LongText
			}
		}
	}
	return ""
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		if url != "" {
			c.baseURL = url
		}
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a Google Places API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) TextSearch(ctx context.Context, search TextSearchRequest) (*TextSearchResponse, error) {
	body, err := json.Marshal(search)
	if err != nil {
		return nil, eris.Wrap(err, "google: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/places:searchText", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "google: create request")
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", c.apiKey)
	req.Header.Set("X-Goog-FieldMask", fieldMask)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "google: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "google: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode, Body: string(respBody)}
	}

	var result TextSearchResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "google: unmarshal response")
	}

	return &result, nil
}

// StatusError is returned for non-200 responses.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return "google: unexpected status " + http.StatusText(e.Code) + ": " + e.Body
}

// SearchAll follows nextPageToken until it runs out or maxPages pages were
// fetched (maxPages <= 0 means one page).
func SearchAll(ctx context.Context, c Client, search TextSearchRequest, maxPages int) ([]Place, error) {
	if maxPages <= 0 {
		maxPages = 1
	}
	var places []Place
	for page := 0; page < maxPages; page++ {
		resp, err := c.TextSearch(ctx, search)
		if err != nil {
			return places, err
		}
		places = append(places, resp.Places...)
		if resp.NextPageToken == "" {
			break
		}
		search.PageToken = resp.NextPageToken
	}
	return places, nil
}
