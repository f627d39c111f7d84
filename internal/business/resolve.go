// Package business holds business identity rules: key normalization, slug
// derivation, duplicate detection and field application.
package business

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/bizdir/internal/model"
)

// Finder is the read access the resolver needs from the store.
type Finder interface {
	GetBusinessBySlug(ctx context.Context, slug string) (*model.Business, error)
	FindByNameKey(ctx context.Context, key string) ([]model.Business, error)
}

// Identity is the subset of a business used for duplicate detection.
type Identity struct {
	Name    string
	Slug    string
	Address string
	City    string
	Phone   string
}

// IdentityOf extracts the identity of a stored business.
func IdentityOf(b *model.Business) Identity {
	return Identity{Name: b.Name, Slug: b.Slug, Address: b.Address, City: b.City, Phone: b.Phone}
}

// RecordIdentity extracts the identity of an incoming record.
func RecordIdentity(r *model.BusinessRecord) Identity {
	return Identity{Name: r.Name, Slug: r.Slug, Address: r.Address, City: r.City, Phone: r.Phone}
}

// Matches reports whether two identities describe the same business. Names must
// be equal after normalization, and then either the addresses are equal or the
// cities are equal and the last seven phone digits agree. Empty addresses and
// phones with fewer than seven digits never match.
func (a Identity) Matches(b Identity) bool {
	name := NormalizeKey(a.Name)
	if name == "" || name != NormalizeKey(b.Name) {
		return false
	}
	if addr := NormalizeKey(a.Address); addr != "" && addr == NormalizeKey(b.Address) {
		return true
	}
	city := NormalizeKey(a.City)
	if city == "" || city != NormalizeKey(b.City) {
		return false
	}
	pa := lastSeven(a.Phone)
	return pa != "" && pa == lastSeven(b.Phone)
}

// Resolver finds existing businesses that an incoming record duplicates.
type Resolver struct {
	finder Finder
}

// NewResolver creates a duplicate resolver.
func NewResolver(finder Finder) *Resolver {
	return &Resolver{finder: finder}
}

// FindDuplicate returns the first existing business matching id, or nil.
//  1. Exact slug match.
//  2. Normalized-name candidates filtered by Identity.Matches, oldest first.
func (r *Resolver) FindDuplicate(ctx context.Context, id Identity) (*model.Business, error) {
	if id.Slug != "" {
		existing, err := r.finder.GetBusinessBySlug(ctx, id.Slug)
		if err != nil {
			return nil, eris.Wrap(err, "business: resolve by slug")
		}
		if existing != nil {
			zap.L().Debug("resolve: matched by slug",
				zap.String("slug", id.Slug),
				zap.String("business_id", existing.ID),
			)
			return existing, nil
		}
	}

	key := NormalizeKey(id.Name)
	if key == "" {
		return nil, nil
	}
	candidates, err := r.finder.FindByNameKey(ctx, key)
	if err != nil {
		return nil, eris.Wrap(err, "business: resolve by name")
	}
	for i := range candidates {
		if id.Matches(IdentityOf(&candidates[i])) {
			zap.L().Debug("resolve: matched by name+address/phone",
				zap.String("name", id.Name),
				zap.String("business_id", candidates[i].ID),
			)
			return &candidates[i], nil
		}
	}
	return nil, nil
}

// Scan groups businesses that the duplicate rules consider the same. Input
// order is preserved inside each group, so callers passing oldest-first lists
// get the original record at index 0. Only groups with two or more members are
// returned.
func Scan(businesses []model.Business) [][]model.Business {
	byKey := make(map[string][]int)
	var order []string
	for i := range businesses {
		key := NormalizeKey(businesses[i].Name)
		if key == "" {
			continue
		}
		if _, ok := byKey[key]; !ok {
			order = append(order, key)
		}
		byKey[key] = append(byKey[key], i)
	}

	var groups [][]model.Business
	for _, key := range order {
		var buckets [][]model.Business
		for _, idx := range byKey[key] {
			b := businesses[idx]
			placed := false
			for g := range buckets {
				if matchesAny(buckets[g], b) {
					buckets[g] = append(buckets[g], b)
					placed = true
					break
				}
			}
			if !placed {
				buckets = append(buckets, []model.Business{b})
			}
		}
		for _, g := range buckets {
			if len(g) > 1 {
				groups = append(groups, g)
			}
		}
	}
	return groups
}

func matchesAny(group []model.Business, b model.Business) bool {
	id := IdentityOf(&b)
	for i := range group {
		if group[i].Slug != "" && group[i].Slug == b.Slug {
			return true
		}
		if id.Matches(IdentityOf(&group[i])) {
			return true
		}
	}
	return false
}
