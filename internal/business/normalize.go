package business

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NormalizeKey reduces a name, address or city to its matching key:
//  1. Unicode NFKD decomposition with combining marks removed (é -> e)
//  2. Lowercasing
//  3. Dropping every rune that is not a letter, digit or whitespace
//  4. Collapsing whitespace runs into single spaces
func NormalizeKey(s string) string {
	if s == "" {
		return ""
	}
	folded, _, err := transform.String(transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range strings.ToLower(folded) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// PhoneDigits returns only the decimal digits of a phone number.
func PhoneDigits(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// lastSeven returns the final seven digits of a phone, or "" when it has fewer.
func lastSeven(phone string) string {
	d := PhoneDigits(phone)
	if len(d) < 7 {
		return ""
	}
	return d[len(d)-7:]
}

// Slugify turns text into a lowercase-hyphenated URL segment.
func Slugify(s string) string {
	return strings.ReplaceAll(NormalizeKey(s), " ", "-")
}

// DeriveSlug builds a slug from a business name, suffixed with the city when known.
func DeriveSlug(name, city string) string {
	slug := Slugify(name)
	if c := Slugify(city); c != "" && slug != "" {
		slug += "-" + c
	}
	return slug
}

// URLPath builds /state/city/slug from the non-empty segments.
func URLPath(state, city, slug string) string {
	var segs []string
	for _, s := range []string{Slugify(state), Slugify(city), slug} {
		if s != "" {
			segs = append(segs, s)
		}
	}
	return "/" + strings.Join(segs, "/")
}
