// Package phone normalizes business phone numbers with libphonenumber rules.
package phone

import (
	"regexp"
	"strings"

	"github.com/nyaruka/phonenumbers"
	"github.com/rotisserie/eris"
)

// DefaultRegion is assumed for numbers without a country prefix.
const DefaultRegion = "US"

var nationalRe = regexp.MustCompile(`^\(\d{3}\) \d{3}-\d{4}$`)

// Normalize returns the national format of phone, e.g. "(480) 555-0100".
// Region defaults to US.
func Normalize(phone, region string) (string, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return "", eris.New("phone: empty number")
	}
	if region == "" {
		region = DefaultRegion
	}
	parsed, err := phonenumbers.Parse(phone, region)
	if err != nil {
		return "", eris.Wrapf(err, "phone: parse %q", phone)
	}
	if !phonenumbers.IsPossibleNumber(parsed) {
		return "", eris.Errorf("phone: %q is not a possible number", phone)
	}
	return phonenumbers.Format(parsed, phonenumbers.NATIONAL), nil
}

// NormalizeOrKeep returns the national format when phone parses and the
// trimmed input otherwise.
func NormalizeOrKeep(phone, region string) string {
	if n, err := Normalize(phone, region); err == nil {
		return n
	}
	return strings.TrimSpace(phone)
}

// IsNationalFormat reports whether phone is written as (XXX) XXX-XXXX.
func IsNationalFormat(phone string) bool {
	return nationalRe.MatchString(phone)
}
