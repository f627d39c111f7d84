package importer

import (
	"strings"

	"github.com/sells-group/bizdir/internal/model"
	"github.com/sells-group/bizdir/internal/waterfall"
	"github.com/sells-group/bizdir/pkg/google"
)

// Listing is a Google Business listing converted for import, with the
// reviews that came back alongside it.
type Listing struct {
	Record  model.BusinessRecord
	Reviews []model.Review
}

// FromPlace converts a Places API result. Reviews carry no ids yet; they are
// assigned once the business exists.
func FromPlace(p google.Place, categoryID string) Listing {
	r := model.BusinessRecord{
		Name:        p.DisplayName.Text,
		Phone:       p.NationalPhoneNumber,
		Website:     p.WebsiteURI,
		Address:     streetAddress(p),
		City:        p.Component("locality", false),
		State:       p.Component("administrative_area_level_1", true),
		Zip:         p.Component("postal_code", false),
		CategoryID:  categoryID,
		Rating:      p.Rating,
		ReviewCount: p.UserRatingCount,
		GMBPlaceID:  p.ID,
		GMBURL:      p.GoogleMapsURI,
	}
	if p.Location != nil {
		r.Coordinates = &model.Coordinates{Lat: p.Location.Latitude, Lng: p.Location.Longitude}
	}
	if p.RegularOpeningHours != nil {
		r.Hours = parseWeekdayDescriptions(p.RegularOpeningHours.WeekdayDescriptions)
	}

	l := Listing{Record: r}
	for _, rv := range p.Reviews {
		if strings.TrimSpace(rv.Text.Text) == "" {
			continue
		}
		l.Reviews = append(l.Reviews, model.Review{
			Author:    rv.AuthorAttribution.DisplayName,
			Rating:    rv.Rating,
			Text:      rv.Text.Text,
			Source:    waterfall.SourceGMBAPI,
			CreatedAt: rv.PublishTime.UTC(),
		})
	}
	return l
}

// streetAddress prefers "street_number route"; otherwise the first segment of
// the formatted address.
func streetAddress(p google.Place) string {
	street := strings.TrimSpace(p.Component("street_number", false) + " " + p.Component("route", false))
	if street != "" {
		return street
	}
	first, _, _ := strings.Cut(p.FormattedAddress, ",")
	return strings.TrimSpace(first)
}

// parseWeekdayDescriptions turns "Monday: 8:00 AM – 5:00 PM" lines into a
// weekday-keyed map.
func parseWeekdayDescriptions(lines []string) map[string]string {
	if len(lines) == 0 {
		return nil
	}
	hours := make(map[string]string, len(lines))
	for _, line := range lines {
		day, spec, ok := strings.Cut(line, ": ")
		if !ok {
			continue
		}
		hours[strings.ToLower(strings.TrimSpace(day))] = strings.TrimSpace(spec)
	}
	return hours
}
