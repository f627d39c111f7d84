package geocode

import (
	"context"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var whiteHouse = AddressInput{Street: "1600 Pennsylvania Ave NW", City: "Washington", State: "DC", ZipCode: "20500"}

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	base := []Option{
		WithHTTPClient(srv.Client()),
		WithCensusURL(srv.URL + "/census"),
		WithGoogleURL(srv.URL + "/google"),
		WithRateLimit(1000),
	}
	return NewClient(append(base, opts...)...)
}

const censusMatch = `{"result": {"addressMatches": [{
	"coordinates": {"x": -77.0365, "y": 38.8977},
	"matchedAddress": "1600 PENNSYLVANIA AVE NW, WASHINGTON, DC, 20500"
}]}}`

func TestGeocode_CensusMatch(t *testing.T) {
	var googleCalls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/census/onelineaddress":
			assert.Equal(t, "1600 Pennsylvania Ave NW, Washington, DC, 20500", r.URL.Query().Get("address"))
			assert.Equal(t, "json", r.URL.Query().Get("format"))
			_, _ = io.WriteString(w, censusMatch)
		default:
			googleCalls.Add(1)
		}
	}, WithGoogleAPIKey("k"))

	res, err := c.Geocode(context.Background(), whiteHouse)
	require.NoError(t, err)
	assert.True(t, res.Matched)
	assert.Equal(t, "census", res.Source)
	assert.Equal(t, "rooftop", res.Quality)
	assert.InDelta(t, 38.8977, res.Latitude, 1e-6)
	assert.InDelta(t, -77.0365, res.Longitude, 1e-6)
	assert.Zero(t, googleCalls.Load())
}

func TestGeocode_GoogleFallback(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/census/onelineaddress":
			w.WriteHeader(http.StatusBadGateway)
		case "/google":
			assert.Equal(t, "secret", r.URL.Query().Get("key"))
			_, _ = io.WriteString(w, `{"status": "OK", "results": [{"geometry": {
				"location": {"lat": 33.41, "lng": -111.83}, "location_type": "GEOMETRIC_CENTER"}}]}`)
		}
	}, WithGoogleAPIKey("secret"))

	res, err := c.Geocode(context.Background(), AddressInput{Street: "1 Main St", City: "Mesa", State: "AZ"})
	require.NoError(t, err)
	assert.True(t, res.Matched)
	assert.Equal(t, "google", res.Source)
	assert.Equal(t, "centroid", res.Quality)
	assert.InDelta(t, 33.41, res.Latitude, 1e-6)
}

func TestGeocode_NoMatchIsNotAnError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/census/onelineaddress":
			_, _ = io.WriteString(w, `{"result": {"addressMatches": []}}`)
		case "/google":
			_, _ = io.WriteString(w, `{"status": "ZERO_RESULTS", "results": []}`)
		}
	}, WithGoogleAPIKey("k"))

	res, err := c.Geocode(context.Background(), AddressInput{Street: "123 Nowhere"})
	require.NoError(t, err)
	assert.False(t, res.Matched)
}

func TestGeocode_CensusOnlyWithoutKey(t *testing.T) {
	var googleCalls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/google" {
			googleCalls.Add(1)
		}
		w.WriteHeader(http.StatusInternalServerError)
	})

	res, err := c.Geocode(context.Background(), whiteHouse)
	require.NoError(t, err)
	assert.False(t, res.Matched)
	assert.Zero(t, googleCalls.Load())
}

func TestBatchGeocode_CensusBatch(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/census/addressbatch", r.URL.Path)
		_, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		require.NoError(t, err)
		form, err := multipart.NewReader(r.Body, params["boundary"]).ReadForm(1 << 20)
		require.NoError(t, err)
		assert.Equal(t, []string{censusBenchmark}, form.Value["benchmark"])

		f, err := form.File["addressFile"][0].Open()
		require.NoError(t, err)
		rows, err := io.ReadAll(f)
		require.NoError(t, err)
		assert.Contains(t, string(rows), "a,1600 Pennsylvania Ave NW,Washington,DC,20500")
		assert.Contains(t, string(rows), `b,"12 Main St, Suite 4",Mesa,AZ,85201`)

		_, _ = io.WriteString(w, strings.Join([]string{
			`"a","1600 Pennsylvania Ave NW, Washington, DC, 20500","Match","Exact","1600 PENNSYLVANIA AVE NW, WASHINGTON, DC, 20500","-77.0365,38.8977","76225813","L"`,
			`"b","12 Main St, Suite 4, Mesa, AZ, 85201","No_Match"`,
			`"2","9 Elm, Tempe, AZ","Match","Non_Exact","9 ELM ST, TEMPE, AZ","-111.9,33.4","1","R"`,
		}, "\n"))
	})

	res, err := c.BatchGeocode(context.Background(), []AddressInput{
		{ID: "a", Street: whiteHouse.Street, City: whiteHouse.City, State: "DC", ZipCode: "20500"},
		{ID: "b", Street: "12 Main St, Suite 4", City: "Mesa", State: "AZ", ZipCode: "85201"},
		{Street: "9 Elm", City: "Tempe", State: "AZ"},
	})
	require.NoError(t, err)
	require.Len(t, res, 3)

	assert.True(t, res[0].Matched)
	assert.Equal(t, "rooftop", res[0].Quality)
	assert.InDelta(t, 38.8977, res[0].Latitude, 1e-6)
	assert.False(t, res[1].Matched)
	assert.True(t, res[2].Matched)
	assert.Equal(t, "range", res[2].Quality)
}

func TestBatchGeocode_FallsBackToSingleRequests(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/census/addressbatch":
			w.WriteHeader(http.StatusServiceUnavailable)
		case "/census/onelineaddress":
			_, _ = io.WriteString(w, censusMatch)
		}
	})

	res, err := c.BatchGeocode(context.Background(), []AddressInput{whiteHouse, whiteHouse})
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.True(t, res[0].Matched)
	assert.True(t, res[1].Matched)
}

func TestBatchGeocode_Empty(t *testing.T) {
	res, err := NewClient().BatchGeocode(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestFormatOneLine(t *testing.T) {
	assert.Equal(t, "1 Main St, Mesa, AZ", formatOneLine(AddressInput{Street: " 1 Main St ", City: "Mesa", State: "AZ"}))
	assert.Empty(t, formatOneLine(AddressInput{}))
}

func TestParseCensusCoords(t *testing.T) {
	lon, lat, err := parseCensusCoords("-77.0365, 38.8977")
	require.NoError(t, err)
	assert.InDelta(t, -77.0365, lon, 1e-9)
	assert.InDelta(t, 38.8977, lat, 1e-9)

	_, _, err = parseCensusCoords("nope")
	assert.Error(t, err)
}

func TestGoogleQuality(t *testing.T) {
	assert.Equal(t, "rooftop", googleQuality("ROOFTOP"))
	assert.Equal(t, "range", googleQuality("range_interpolated"))
	assert.Equal(t, "approximate", googleQuality("UNKNOWN"))
}
