package business

import (
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/sells-group/bizdir/internal/model"
)

// RecordFields returns the populated fields of an import record keyed by their
// JSON names. Zero values are left out.
func RecordFields(r *model.BusinessRecord) (map[string]any, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return nil, eris.Wrap(err, "business: marshal record")
	}
	fields := make(map[string]any)
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, eris.Wrap(err, "business: unmarshal record")
	}
	for k, v := range fields {
		if v == nil {
			delete(fields, k)
		}
	}
	return fields, nil
}

// ApplyField writes value into the business field named by its JSON key.
// Plain string fields are set directly; anything else goes through a JSON round
// trip so values read back from documents (float64, []any, map[string]any) land
// in their typed fields.
func ApplyField(b *model.Business, field string, value any) error {
	if s, ok := value.(string); ok || value == nil {
		if applyString(b, field, s) {
			return nil
		}
	}

	raw, err := json.Marshal(b)
	if err != nil {
		return eris.Wrap(err, "business: marshal")
	}
	doc := make(map[string]json.RawMessage)
	if err := json.Unmarshal(raw, &doc); err != nil {
		return eris.Wrap(err, "business: unmarshal")
	}
	v, err := json.Marshal(value)
	if err != nil {
		return eris.Wrapf(err, "business: marshal field %s", field)
	}
	doc[field] = v
	raw, err = json.Marshal(doc)
	if err != nil {
		return eris.Wrap(err, "business: marshal")
	}
	var out model.Business
	if err := json.Unmarshal(raw, &out); err != nil {
		return eris.Wrapf(err, "business: apply field %s", field)
	}
	*b = out
	return nil
}

func applyString(b *model.Business, field, s string) bool {
	switch field {
	case "name":
		b.Name = s
	case "slug":
		b.Slug = s
	case "url_path":
		b.URLPath = s
	case "description":
		b.Description = s
	case "short_description":
		b.ShortDescription = s
	case "phone":
		b.Phone = s
	case "email":
		b.Email = s
	case "website":
		b.Website = s
	case "address":
		b.Address = s
	case "city":
		b.City = s
	case "state":
		b.State = s
	case "zip":
		b.Zip = s
	case "category_id":
		b.CategoryID = s
	case "gmb_place_id":
		b.GMBPlaceID = s
	case "gmb_url":
		b.GMBURL = s
	default:
		return false
	}
	return true
}
