package importer

import (
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/bizdir/internal/fetcher"
	"github.com/sells-group/bizdir/internal/model"
)

// columnAliases lists the accepted header names for each record field, after
// fetcher.NormalizeHeader. The first non-empty column wins.
var columnAliases = map[string][]string{
	"name":              {"name", "business_name", "company", "company_name", "title"},
	"slug":              {"slug"},
	"url_path":          {"url_path", "path"},
	"description":       {"description", "about"},
	"short_description": {"short_description", "tagline", "summary"},
	"phone":             {"phone", "phone_number", "telephone", "tel"},
	"email":             {"email", "email_address"},
	"website":           {"website", "url", "web", "site"},
	"address":           {"address", "street", "street_address", "address1", "address_line_1"},
	"city":              {"city", "town", "locality"},
	"state":             {"state", "region", "province"},
	"zip":               {"zip", "zip_code", "zipcode", "postal_code", "postcode"},
	"category_id":       {"category_id", "category"},
	"services":          {"services", "service_list"},
	"rating":            {"rating", "stars"},
	"review_count":      {"review_count", "reviews", "user_rating_count"},
	"gmb_place_id":      {"gmb_place_id", "place_id", "google_place_id"},
	"gmb_url":           {"gmb_url", "google_maps_url", "maps_url"},
	"latitude":          {"latitude", "lat"},
	"longitude":         {"longitude", "lng", "lon"},
}

var weekdays = []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

var socialNetworks = []string{"facebook", "instagram", "twitter", "linkedin", "yelp", "youtube", "tiktok"}

func pick(row fetcher.Row, field string) string {
	for _, col := range columnAliases[field] {
		if v := strings.TrimSpace(row[col]); v != "" {
			return v
		}
	}
	return ""
}

// splitList splits a services cell on ';' or '|', falling back to ','.
func splitList(s string) []string {
	sep := ","
	if strings.ContainsAny(s, ";|") {
		s = strings.ReplaceAll(s, "|", ";")
		sep = ";"
	}
	var out []string
	for _, part := range strings.Split(s, sep) {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// FromRow maps a header-keyed spreadsheet row onto a record. Numeric cells that
// do not parse are left at zero and logged.
func FromRow(row fetcher.Row) model.BusinessRecord {
	r := model.BusinessRecord{
		Name:             pick(row, "name"),
		Slug:             pick(row, "slug"),
		URLPath:          pick(row, "url_path"),
		Description:      pick(row, "description"),
		ShortDescription: pick(row, "short_description"),
		Phone:            pick(row, "phone"),
		Email:            pick(row, "email"),
		Website:          pick(row, "website"),
		Address:          pick(row, "address"),
		City:             pick(row, "city"),
		State:            pick(row, "state"),
		Zip:              pick(row, "zip"),
		CategoryID:       pick(row, "category_id"),
		GMBPlaceID:       pick(row, "gmb_place_id"),
		GMBURL:           pick(row, "gmb_url"),
	}
	if s := pick(row, "services"); s != "" {
		r.Services = splitList(s)
	}

	if v := pick(row, "rating"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			r.Rating = f
		} else {
			zap.L().Warn("importer: unparseable rating", zap.String("name", r.Name), zap.String("value", v))
		}
	}
	if v := pick(row, "review_count"); v != "" {
		if n, err := strconv.Atoi(strings.ReplaceAll(v, ",", "")); err == nil {
			r.ReviewCount = n
		} else {
			zap.L().Warn("importer: unparseable review count", zap.String("name", r.Name), zap.String("value", v))
		}
	}

	lat, latErr := strconv.ParseFloat(pick(row, "latitude"), 64)
	lng, lngErr := strconv.ParseFloat(pick(row, "longitude"), 64)
	if latErr == nil && lngErr == nil {
		r.Coordinates = &model.Coordinates{Lat: lat, Lng: lng}
	}

	for _, day := range weekdays {
		v := strings.TrimSpace(row["hours_"+day])
		if v == "" {
			v = strings.TrimSpace(row[day])
		}
		if v != "" {
			if r.Hours == nil {
				r.Hours = make(map[string]string)
			}
			r.Hours[day] = v
		}
	}

	for _, network := range socialNetworks {
		v := strings.TrimSpace(row[network])
		if v == "" {
			v = strings.TrimSpace(row[network+"_url"])
		}
		if v != "" {
			if r.SocialLinks == nil {
				r.SocialLinks = make(map[string]string)
			}
			r.SocialLinks[network] = v
		}
	}
	return r
}

func fromRows(rows []fetcher.Row) []model.BusinessRecord {
	out := make([]model.BusinessRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, FromRow(row))
	}
	return out
}

// ParseCSV reads every record from a CSV with a header row.
func ParseCSV(ctx context.Context, r io.Reader) ([]model.BusinessRecord, error) {
	rowCh, errCh := fetcher.StreamCSV(ctx, r, fetcher.CSVOptions{LazyQuotes: true})
	rows, err := fetcher.Collect(rowCh, errCh)
	if err != nil {
		return nil, eris.Wrap(err, "importer: parse csv")
	}
	return fromRows(rows), nil
}

// ParseXLSX reads every record from a worksheet. An empty sheet name reads the
// first sheet.
func ParseXLSX(path, sheet string) ([]model.BusinessRecord, error) {
	rows, err := fetcher.ReadXLSX(path, fetcher.XLSXOptions{SheetName: sheet})
	if err != nil {
		return nil, eris.Wrap(err, "importer: parse xlsx")
	}
	return fromRows(rows), nil
}

// ParseJSON reads a JSON array of records, or an object holding the array
// under "businesses".
func ParseJSON(ctx context.Context, r io.Reader) ([]model.BusinessRecord, error) {
	recCh, errCh := fetcher.DecodeJSONArray[model.BusinessRecord](ctx, r, fetcher.JSONOptions{ArrayKey: "businesses"})
	recs, err := fetcher.Collect(recCh, errCh)
	if err != nil {
		return nil, eris.Wrap(err, "importer: parse json")
	}
	return recs, nil
}
