package business

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Joe's Plumbing", "joes plumbing"},
		{"  JOE'S   PLUMBING, LLC. ", "joes plumbing llc"},
		{"Café Olé", "cafe ole"},
		{"123 Main St.", "123 main st"},
		{"A&B\tRepair", "ab repair"},
		{"", ""},
		{"!!!", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeKey(tt.in))
		})
	}
}

func TestPhoneDigits(t *testing.T) {
	assert.Equal(t, "4805550100", PhoneDigits("(480) 555-0100"))
	assert.Equal(t, "", PhoneDigits("n/a"))
}

func TestLastSeven(t *testing.T) {
	assert.Equal(t, "5550100", lastSeven("+1 (480) 555-0100"))
	assert.Equal(t, "", lastSeven("555-01"))
	assert.Equal(t, "", lastSeven(""))
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "joes-plumbing", Slugify("Joe's Plumbing"))
	assert.Equal(t, "san-jose", Slugify("San José"))
}

func TestDeriveSlug(t *testing.T) {
	assert.Equal(t, "joes-plumbing-mesa", DeriveSlug("Joe's Plumbing", "Mesa"))
	assert.Equal(t, "joes-plumbing", DeriveSlug("Joe's Plumbing", ""))
	assert.Equal(t, "", DeriveSlug("", "Mesa"))
}

func TestURLPath(t *testing.T) {
	assert.Equal(t, "/az/mesa/joes-plumbing", URLPath("AZ", "Mesa", "joes-plumbing"))
	assert.Equal(t, "/mesa/joes-plumbing", URLPath("", "Mesa", "joes-plumbing"))
}
