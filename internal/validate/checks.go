package validate

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/bizdir/internal/model"
	"github.com/sells-group/bizdir/pkg/phone"
)

var (
	emailRe   = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	zipRe     = regexp.MustCompile(`^\d{5}(-\d{4})?$`)
	urlPathRe = regexp.MustCompile(`^/[a-z0-9-]+/[a-z0-9-]+/[a-z0-9-]+$`)
	slugRe    = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)
)

const (
	sitemapWindow    = 60 * time.Second
	minThroughput    = 0.5
	maxErrorRate     = 0.05
	requiredFieldSet = 7
)

func (v *Validator) databaseIntegrity(ctx context.Context, r *run, cr *model.CategoryResult) error {
	created := 0
	if r.batch.Results != nil {
		created = r.batch.Results.Created
	}
	n := len(r.businesses)
	cr.SetMetric("businesses", float64(n))

	countOK := n == created
	cr.AddCheck("Business Count Verification", countOK,
		fmt.Sprintf("found %d businesses, batch reports %d created", n, created))
	if countOK {
		cr.Score += 25
	}

	missingContent := 0
	for _, b := range r.businesses {
		ok, err := v.store.HasContent(ctx, b.ID)
		if err != nil {
			return eris.Wrapf(err, "validate: content for %s", b.ID)
		}
		if !ok {
			missingContent++
		}
	}
	cr.AddCheck("Content Records", missingContent == 0,
		fmt.Sprintf("%d of %d businesses lack a content record", missingContent, n))
	if missingContent == 0 {
		cr.Score += 25
	}

	missingSources := 0
	for _, b := range r.businesses {
		c, err := v.store.CountSourceRecords(ctx, b.ID)
		if err != nil {
			return eris.Wrapf(err, "validate: source records for %s", b.ID)
		}
		if c == 0 {
			missingSources++
		}
	}
	cr.AddCheck("Source Records", missingSources == 0,
		fmt.Sprintf("%d of %d businesses have no source records", missingSources, n))
	if missingSources == 0 {
		cr.Score += 25
	}

	consistent := r.batch.Status == model.BatchStatusCompleted &&
		r.batch.Results != nil && r.batch.Results.Total() == r.batch.BusinessCount
	msg := fmt.Sprintf("status %s with %d records submitted", r.batch.Status, r.batch.BusinessCount)
	if r.batch.Results != nil {
		msg += fmt.Sprintf(", %d accounted for", r.batch.Results.Total())
	}
	cr.AddCheck("Batch Status Consistency", consistent, msg)
	if consistent {
		cr.Score += 25
	}
	return nil
}

func (v *Validator) dataQuality(_ context.Context, r *run, cr *model.CategoryResult) error {
	n := len(r.businesses)
	if n == 0 {
		cr.AddCheck("Businesses Present", false, "batch has no businesses")
		return nil
	}

	filled := 0
	for _, b := range r.businesses {
		for _, f := range []string{b.Name, b.Slug, b.URLPath, b.Phone, b.Address, b.City, b.CategoryID} {
			if strings.TrimSpace(f) != "" {
				filled++
			}
		}
	}
	completion := float64(filled) / float64(n*requiredFieldSet)
	cr.SetMetric("required_fields_pct", roundPct(completion))
	cr.AddCheck("Required Fields", completion == 1,
		fmt.Sprintf("%.1f%% of required fields are filled", completion*100))
	cr.Score += 40 * completion

	formats := []struct {
		name  string
		get   func(model.Business) string
		valid func(string) bool
	}{
		{"phone", func(b model.Business) string { return b.Phone }, phone.IsNationalFormat},
		{"email", func(b model.Business) string { return b.Email }, emailRe.MatchString},
		{"website", func(b model.Business) string { return b.Website }, func(s string) bool { return strings.HasPrefix(s, "http") }},
		{"zip", func(b model.Business) string { return b.Zip }, zipRe.MatchString},
	}
	checked, violations := 0, 0
	for _, f := range formats {
		bad := 0
		for _, b := range r.businesses {
			val := strings.TrimSpace(f.get(b))
			if val == "" {
				continue
			}
			checked++
			if !f.valid(val) {
				bad++
			}
		}
		violations += bad
		cr.SetMetric("format_violations_"+f.name, float64(bad))
	}
	formatRate := 1.0
	if checked > 0 {
		formatRate = float64(checked-violations) / float64(checked)
	}
	cr.AddCheck("Format Compliance", violations == 0,
		fmt.Sprintf("%d of %d populated contact fields are malformed", violations, checked))
	cr.Score += 30 * formatRate

	seen := make(map[string]struct{}, n)
	dups := 0
	for _, b := range r.businesses {
		if b.Slug == "" {
			continue
		}
		if _, ok := seen[b.Slug]; ok {
			dups++
			continue
		}
		seen[b.Slug] = struct{}{}
	}
	cr.SetMetric("duplicate_slugs", float64(dups))
	cr.AddCheck("Slug Uniqueness", dups == 0, fmt.Sprintf("%d duplicate slugs", dups))
	if dups == 0 {
		cr.Score += 30
	}
	return nil
}

func (v *Validator) seoCompliance(_ context.Context, r *run, cr *model.CategoryResult) error {
	if !r.full {
		cr.Skipped = true
		cr.Score = 100
		cr.AddCheck("SEO Compliance", true, "skipped; run a full validation to check URL paths and slugs")
		return nil
	}
	n := len(r.sample)
	if n == 0 {
		cr.AddCheck("Sample Available", false, "no businesses to sample")
		return nil
	}

	pathOK, slugOK := 0, 0
	for _, b := range r.sample {
		if urlPathRe.MatchString(b.URLPath) {
			pathOK++
		}
		if slugRe.MatchString(b.Slug) {
			slugOK++
		}
	}
	cr.AddCheck("URL Path Structure", pathOK == n, fmt.Sprintf("%d of %d sampled URL paths are well formed", pathOK, n))
	cr.AddCheck("Slug Format", slugOK == n, fmt.Sprintf("%d of %d sampled slugs are lowercase-hyphenated", slugOK, n))
	cr.Score += 50*float64(pathOK)/float64(n) + 50*float64(slugOK)/float64(n)
	return nil
}

func (v *Validator) sitemapIntegration(ctx context.Context, r *run, cr *model.CategoryResult) error {
	if r.batch.CompletedAt == nil {
		cr.AddCheck("Sitemap Invalidation", false, "batch has not completed")
		return nil
	}
	entry, err := v.sitemapEntry(ctx, r.batch.ID)
	if err != nil {
		return err
	}
	if entry == nil {
		cr.AddCheck("Sitemap Invalidation", false, "sitemap cache was never invalidated")
		return nil
	}
	lag := entry.InvalidatedAt.Sub(*r.batch.CompletedAt)
	ok := lag >= 0 && lag <= sitemapWindow
	cr.SetMetric("invalidation_lag_secs", lag.Seconds())
	cr.AddCheck("Sitemap Invalidation", ok,
		fmt.Sprintf("sitemap invalidated %s after batch completion", lag.Round(time.Millisecond)))
	if ok {
		cr.Score = 100
	}
	return nil
}

// sitemapEntry prefers the batch's own invalidation marker. Batches completed
// before per-batch markers existed only have the shared entry.
func (v *Validator) sitemapEntry(ctx context.Context, batchID string) (*model.CacheEntry, error) {
	for _, key := range []string{model.SitemapBatchKey(batchID), model.SitemapCacheKey} {
		entry, err := v.store.GetCacheEntry(ctx, key)
		if err != nil {
			return nil, eris.Wrapf(err, "validate: sitemap cache entry %s", key)
		}
		if entry != nil {
			return entry, nil
		}
	}
	return nil, nil
}

func (v *Validator) functionalSystems(ctx context.Context, r *run, cr *model.CategoryResult) error {
	sample := r.sample[:min(len(r.sample), functionalSize)]
	n := len(sample)
	if n == 0 {
		cr.AddCheck("Sample Available", false, "no businesses to sample")
		return nil
	}

	free, active, categorized, stamped := 0, 0, 0, 0
	for _, b := range sample {
		if b.PlanTier == model.PlanFree {
			free++
		}
		if b.Active {
			active++
		}
		if b.CategoryID != "" {
			c, err := v.store.GetCategory(ctx, b.CategoryID)
			if err != nil {
				return eris.Wrapf(err, "validate: category %s", b.CategoryID)
			}
			if c != nil {
				categorized++
			}
		}
		if b.CreatedAt.Unix() > 0 && b.UpdatedAt.Unix() > 0 {
			stamped++
		}
	}

	add := func(name string, ok int, msg string) {
		cr.AddCheck(name, ok == n, fmt.Sprintf("%d of %d %s", ok, n, msg))
		if ok == n {
			cr.Score += 25
		}
	}
	add("Default Plan Tier", free, "sampled businesses are on the free plan")
	add("Active Flag", active, "sampled businesses are active")
	add("Category Reference", categorized, "sampled businesses reference an existing category")
	add("Timestamps", stamped, "sampled businesses have creation and update times")
	return nil
}

func (v *Validator) performance(_ context.Context, r *run, cr *model.CategoryResult) error {
	res := r.batch.Results
	if res == nil || r.batch.CompletedAt == nil {
		cr.AddCheck("Import Throughput", false, "batch has not completed")
		cr.AddCheck("Error Rate", false, "batch has no results")
		return nil
	}

	elapsed := r.batch.CompletedAt.Sub(r.batch.ImportedAt)
	var fast bool
	if elapsed <= 0 {
		fast = res.Created > 0
		cr.AddCheck("Import Throughput", fast, fmt.Sprintf("%d businesses created instantly", res.Created))
	} else {
		rate := float64(res.Created) / elapsed.Seconds()
		cr.SetMetric("businesses_per_sec", rate)
		fast = rate >= minThroughput
		cr.AddCheck("Import Throughput", fast, fmt.Sprintf("%.2f businesses/sec", rate))
	}
	if fast {
		cr.Score += 50
	}

	errRate := 0.0
	if total := res.Total(); total > 0 {
		errRate = float64(res.Failed) / float64(total)
	}
	cr.SetMetric("error_rate_pct", roundPct(errRate))
	low := errRate <= maxErrorRate
	cr.AddCheck("Error Rate", low, fmt.Sprintf("%.1f%% of records failed", errRate*100))
	if low {
		cr.Score += 50
	}
	return nil
}

func roundPct(f float64) float64 {
	return float64(int(f*1000+0.5)) / 10
}
