package business

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/bizdir/internal/model"
)

type fakeFinder struct {
	bySlug  map[string]*model.Business
	byName  map[string][]model.Business
	slugErr error
}

func (f *fakeFinder) GetBusinessBySlug(_ context.Context, slug string) (*model.Business, error) {
	if f.slugErr != nil {
		return nil, f.slugErr
	}
	return f.bySlug[slug], nil
}

func (f *fakeFinder) FindByNameKey(_ context.Context, key string) ([]model.Business, error) {
	return f.byName[key], nil
}

func TestIdentity_Matches(t *testing.T) {
	base := Identity{Name: "Joe's Plumbing", Address: "123 Main St", City: "Mesa", Phone: "(480) 555-0100"}

	tests := []struct {
		name  string
		other Identity
		want  bool
	}{
		{"same address", Identity{Name: "JOES PLUMBING", Address: "123 main st."}, true},
		{"city and phone", Identity{Name: "Joe's Plumbing", Address: "9 Elm", City: "mesa", Phone: "555-0100"}, true},
		{"city but different phone", Identity{Name: "Joe's Plumbing", Address: "9 Elm", City: "Mesa", Phone: "555-0199"}, false},
		{"phone but different city", Identity{Name: "Joe's Plumbing", City: "Tempe", Phone: "480-555-0100"}, false},
		{"different name", Identity{Name: "Joe's Electric", Address: "123 Main St"}, false},
		{"near-duplicate spelling", Identity{Name: "Joes Plumbng", Address: "123 Main St"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, base.Matches(tt.other))
		})
	}
}

func TestIdentity_Matches_EmptyPhoneNeverMatches(t *testing.T) {
	a := Identity{Name: "Acme", City: "Mesa"}
	b := Identity{Name: "Acme", City: "Mesa"}
	assert.False(t, a.Matches(b))
}

func TestIdentity_Matches_EmptyAddressNeverMatches(t *testing.T) {
	a := Identity{Name: "Acme"}
	assert.False(t, a.Matches(Identity{Name: "Acme"}))
}

func TestResolver_SlugFastPath(t *testing.T) {
	existing := &model.Business{ID: "b1", Name: "Other Name", Slug: "joes-plumbing"}
	r := NewResolver(&fakeFinder{bySlug: map[string]*model.Business{"joes-plumbing": existing}})

	got, err := r.FindDuplicate(context.Background(), Identity{Name: "Joe's Plumbing", Slug: "joes-plumbing"})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "b1", got.ID)
}

func TestResolver_NameFallback_FirstMatch(t *testing.T) {
	candidates := []model.Business{
		{ID: "old", Name: "Joe's Plumbing", Address: "9 Elm St", CreatedAt: time.Unix(1, 0)},
		{ID: "b1", Name: "Joe's Plumbing", Address: "123 Main St", CreatedAt: time.Unix(2, 0)},
		{ID: "b2", Name: "Joes Plumbing", Address: "123 Main St", CreatedAt: time.Unix(3, 0)},
	}
	r := NewResolver(&fakeFinder{byName: map[string][]model.Business{"joes plumbing": candidates}})

	got, err := r.FindDuplicate(context.Background(), Identity{Name: "Joe's Plumbing", Slug: "new-slug", Address: "123 Main St."})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "b1", got.ID)
}

func TestResolver_NoMatch(t *testing.T) {
	r := NewResolver(&fakeFinder{})
	got, err := r.FindDuplicate(context.Background(), Identity{Name: "Fresh Co", Slug: "fresh-co"})
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = r.FindDuplicate(context.Background(), Identity{})
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestResolver_StoreError(t *testing.T) {
	r := NewResolver(&fakeFinder{slugErr: errors.New("db down")})
	_, err := r.FindDuplicate(context.Background(), Identity{Name: "X", Slug: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "business: resolve by slug")
}

func TestScan(t *testing.T) {
	list := []model.Business{
		{ID: "a1", Name: "Acme", Address: "1 Main", Slug: "acme"},
		{ID: "b1", Name: "Beta", Address: "2 Oak", Slug: "beta"},
		{ID: "a2", Name: "ACME", Address: "1 main", Slug: "acme-2"},
		{ID: "a3", Name: "Acme", Address: "77 Far Away", Slug: "acme-3"},
		{ID: "b2", Name: "Beta", City: "Mesa", Phone: "480-555-0100", Slug: "beta-2"},
	}
	groups := Scan(list)
	require.Len(t, groups, 1)
	require.Len(t, groups[0], 2)
	assert.Equal(t, "a1", groups[0][0].ID)
	assert.Equal(t, "a2", groups[0][1].ID)
}
