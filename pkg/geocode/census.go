package geocode

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

const censusBenchmark = "Public_AR_Current"

type censusOneLineResponse struct {
	Result struct {
		AddressMatches []struct {
			Coordinates struct {
				X float64 `json:"x"` // longitude
				Y float64 `json:"y"` // latitude
			} `json:"coordinates"`
			MatchedAddress string `json:"matchedAddress"`
		} `json:"addressMatches"`
	} `json:"result"`
}

func (g *geocoder) geocodeCensus(ctx context.Context, addr AddressInput) (*Result, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "geocode: census rate limit")
	}

	params := url.Values{
		"address":   {formatOneLine(addr)},
		"benchmark": {censusBenchmark},
		"format":    {"json"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.censusURL+"/onelineaddress?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: census build request")
	}

	body, err := g.do(req, "census")
	if err != nil {
		return nil, err
	}

	var resp censusOneLineResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, eris.Wrap(err, "geocode: census parse response")
	}
	if len(resp.Result.AddressMatches) == 0 {
		return &Result{Matched: false, Source: "census"}, nil
	}

	m := resp.Result.AddressMatches[0]
	return &Result{
		Latitude:  m.Coordinates.Y,
		Longitude: m.Coordinates.X,
		Source:    "census",
		Quality:   "rooftop",
		Matched:   true,
	}, nil
}

func (g *geocoder) batchGeocodeCensus(ctx context.Context, addrs []AddressInput) ([]Result, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "geocode: census batch rate limit")
	}

	var rows bytes.Buffer
	cw := csv.NewWriter(&rows)
	idx := make(map[string]int, len(addrs))
	for i, a := range addrs {
		idx[a.ID] = i
		if err := cw.Write([]string{a.ID, a.Street, a.City, a.State, a.ZipCode}); err != nil {
			return nil, eris.Wrap(err, "geocode: census batch write row")
		}
	}
	cw.Flush()

	var form bytes.Buffer
	mw := multipart.NewWriter(&form)
	if err := mw.WriteField("benchmark", censusBenchmark); err != nil {
		return nil, eris.Wrap(err, "geocode: census batch write benchmark")
	}
	part, err := mw.CreateFormFile("addressFile", "addresses.csv")
	if err != nil {
		return nil, eris.Wrap(err, "geocode: census batch create form file")
	}
	if _, err := part.Write(rows.Bytes()); err != nil {
		return nil, eris.Wrap(err, "geocode: census batch write csv")
	}
	if err := mw.Close(); err != nil {
		return nil, eris.Wrap(err, "geocode: census batch close form")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.censusURL+"/addressbatch", &form)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: census batch build request")
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	body, err := g.do(req, "census batch")
	if err != nil {
		return nil, err
	}
	return parseCensusBatch(body, idx, len(addrs))
}

// parseCensusBatch reads the batch reply:
// id, input address, Match|No_Match|Tie, Exact|Non_Exact, matched address, "lon,lat", tiger id, side.
func parseCensusBatch(body []byte, idx map[string]int, total int) ([]Result, error) {
	results := make([]Result, total)
	for i := range results {
		results[i] = Result{Source: "census"}
	}

	r := csv.NewReader(bytes.NewReader(body))
	r.FieldsPerRecord = -1
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "geocode: census batch parse response")
		}
		if len(rec) < 6 {
			continue
		}
		i, ok := idx[strings.TrimSpace(rec[0])]
		if !ok || !strings.EqualFold(strings.TrimSpace(rec[2]), "match") {
			continue
		}
		lon, lat, err := parseCensusCoords(rec[5])
		if err != nil {
			continue
		}
		results[i] = Result{
			Latitude:  lat,
			Longitude: lon,
			Source:    "census",
			Quality:   censusBatchQuality(rec[3]),
			Matched:   true,
		}
	}
	return results, nil
}

func censusBatchQuality(exactness string) string {
	if strings.EqualFold(strings.TrimSpace(exactness), "exact") {
		return "rooftop"
	}
	return "range"
}

func parseCensusCoords(coords string) (lon, lat float64, err error) {
	lonStr, latStr, ok := strings.Cut(coords, ",")
	if !ok {
		return 0, 0, eris.Errorf("geocode: invalid census coords %q", coords)
	}
	if lon, err = strconv.ParseFloat(strings.TrimSpace(lonStr), 64); err != nil {
		return 0, 0, eris.Wrap(err, "geocode: parse census lon")
	}
	if lat, err = strconv.ParseFloat(strings.TrimSpace(latStr), 64); err != nil {
		return 0, 0, eris.Wrap(err, "geocode: parse census lat")
	}
	return lon, lat, nil
}

func formatOneLine(addr AddressInput) string {
	var parts []string
	for _, p := range []string{addr.Street, addr.City, addr.State, addr.ZipCode} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

func (g *geocoder) do(req *http.Request, provider string) ([]byte, error) {
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "geocode: %s request", provider)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("geocode: %s returned status %d", provider, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrapf(err, "geocode: %s read body", provider)
	}
	return body, nil
}
