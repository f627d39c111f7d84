// Package provenance maintains per-field source records: every value each data
// source has contributed for a business field, the value currently shown, and
// whether that choice is locked.
package provenance

import (
	"context"
	"reflect"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/bizdir/internal/business"
	"github.com/sells-group/bizdir/internal/model"
	"github.com/sells-group/bizdir/internal/store"
	"github.com/sells-group/bizdir/internal/waterfall"
)

var (
	// ErrRecordNotFound means no source has ever contributed to the field.
	ErrRecordNotFound = eris.New("provenance: source record not found")
	// ErrSourceNotFound means the requested source never contributed to the field.
	ErrSourceNotFound = eris.New("provenance: source has no contribution")
	// ErrBusinessNotFound means the record's business no longer exists.
	ErrBusinessNotFound = eris.New("provenance: business not found")
)

// Recorder reads and writes source records and keeps businesses in sync with
// the active value of each field.
type Recorder struct {
	store      store.Store
	priorities *waterfall.Config
	now        func() time.Time
}

// NewRecorder creates a Recorder. A nil priorities config uses the built-in table.
func NewRecorder(st store.Store, priorities *waterfall.Config) *Recorder {
	if priorities == nil {
		priorities = waterfall.DefaultConfig()
	}
	return &Recorder{store: st, priorities: priorities, now: func() time.Time { return time.Now().UTC() }}
}

// WithNow overrides the clock.
func (r *Recorder) WithNow(now func() time.Time) *Recorder {
	r.now = now
	return r
}

// Seed writes the initial source record for every non-nil field of a newly
// created business, each with a single contribution from source.
func (r *Recorder) Seed(ctx context.Context, businessID string, fields map[string]any, source string, confidence float64, metadata map[string]any) error {
	now := r.now()
	names := make([]string, 0, len(fields))
	for name, v := range fields {
		if v != nil {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	recs := make([]model.SourceRecord, 0, len(names))
	for _, name := range names {
		v := fields[name]
		recs = append(recs, model.SourceRecord{
			ID:         store.SourceRecordID(businessID, name),
			BusinessID: businessID,
			Field:      name,
			Contributions: []model.SourceContribution{{
				Source:     source,
				Value:      v,
				UpdatedAt:  now,
				Confidence: confidence,
				Metadata:   metadata,
			}},
			CurrentValue:     v,
			CurrentSource:    source,
			CurrentUpdatedAt: now,
			CreatedAt:        now,
			UpdatedAt:        now,
		})
	}
	return eris.Wrapf(r.store.InsertSourceRecords(ctx, recs), "provenance: seed %s", businessID)
}

// Contribute appends a contribution to a field's history. Unless the record is
// locked the active value is re-resolved, and a changed value is written onto
// the business. A nil value for a field with no record is a no-op.
func (r *Recorder) Contribute(ctx context.Context, businessID, field string, c model.SourceContribution) (*model.SourceRecord, error) {
	rec, err := r.store.GetSourceRecord(ctx, businessID, field)
	if err != nil {
		return nil, eris.Wrap(err, "provenance: contribute")
	}
	now := r.now()
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = now
	}
	if rec == nil {
		if c.Value == nil {
			return nil, nil
		}
		rec = &model.SourceRecord{
			ID:         store.SourceRecordID(businessID, field),
			BusinessID: businessID,
			Field:      field,
			CreatedAt:  now,
		}
	}
	rec.Contributions = append(rec.Contributions, c)
	rec.UpdatedAt = now

	changed := false
	if !rec.Locked {
		changed = r.activate(rec, r.priorities.Resolve(field, rec.Contributions))
	}
	if changed {
		if err := r.applyToBusiness(ctx, rec); err != nil {
			return nil, err
		}
	}
	if err := r.store.PutSourceRecord(ctx, rec); err != nil {
		return nil, eris.Wrap(err, "provenance: contribute")
	}

	zap.L().Debug("provenance: contribution recorded",
		zap.String("business_id", businessID),
		zap.String("field", field),
		zap.String("source", c.Source),
		zap.Bool("active_changed", changed),
		zap.Bool("locked", rec.Locked),
	)
	return rec, nil
}

// SetActiveSource forces the latest contribution of source to be the active
// value and locks the field so later contributions do not override it.
func (r *Recorder) SetActiveSource(ctx context.Context, businessID, field, source string) (*model.SourceRecord, error) {
	rec, err := r.get(ctx, businessID, field)
	if err != nil {
		return nil, err
	}
	c := rec.LatestFrom(source)
	if c == nil {
		return nil, eris.Wrapf(ErrSourceNotFound, "provenance: %s has no %s value from %s", businessID, field, source)
	}
	changed := r.activate(rec, c)
	rec.Locked = true
	rec.UpdatedAt = r.now()
	if changed {
		if err := r.applyToBusiness(ctx, rec); err != nil {
			return nil, err
		}
	}
	if err := r.store.PutSourceRecord(ctx, rec); err != nil {
		return nil, eris.Wrap(err, "provenance: set active source")
	}
	zap.L().Info("provenance: active source forced",
		zap.String("business_id", businessID),
		zap.String("field", field),
		zap.String("source", source),
	)
	return rec, nil
}

// Lock freezes the field's active value.
func (r *Recorder) Lock(ctx context.Context, businessID, field string) (*model.SourceRecord, error) {
	rec, err := r.get(ctx, businessID, field)
	if err != nil {
		return nil, err
	}
	rec.Locked = true
	rec.UpdatedAt = r.now()
	return rec, eris.Wrap(r.store.PutSourceRecord(ctx, rec), "provenance: lock")
}

// Unlock releases the field and re-resolves its active value.
func (r *Recorder) Unlock(ctx context.Context, businessID, field string) (*model.SourceRecord, error) {
	rec, err := r.get(ctx, businessID, field)
	if err != nil {
		return nil, err
	}
	rec.Locked = false
	rec.UpdatedAt = r.now()
	if r.activate(rec, r.priorities.Resolve(field, rec.Contributions)) {
		if err := r.applyToBusiness(ctx, rec); err != nil {
			return nil, err
		}
	}
	return rec, eris.Wrap(r.store.PutSourceRecord(ctx, rec), "provenance: unlock")
}

// Recalculate re-resolves every unlocked field of a business and returns the
// names of fields whose active value changed.
func (r *Recorder) Recalculate(ctx context.Context, businessID string) ([]string, error) {
	recs, err := r.store.ListSourceRecords(ctx, businessID)
	if err != nil {
		return nil, eris.Wrap(err, "provenance: recalculate")
	}
	var changed []string
	for i := range recs {
		rec := &recs[i]
		if rec.Locked || !r.activate(rec, r.priorities.Resolve(rec.Field, rec.Contributions)) {
			continue
		}
		rec.UpdatedAt = r.now()
		if err := r.applyToBusiness(ctx, rec); err != nil {
			return changed, err
		}
		if err := r.store.PutSourceRecord(ctx, rec); err != nil {
			return changed, eris.Wrap(err, "provenance: recalculate")
		}
		changed = append(changed, rec.Field)
	}
	if len(changed) > 0 {
		zap.L().Info("provenance: recalculated",
			zap.String("business_id", businessID),
			zap.Strings("changed", changed),
		)
	}
	return changed, nil
}

// History returns every source record of a business.
func (r *Recorder) History(ctx context.Context, businessID string) ([]model.SourceRecord, error) {
	recs, err := r.store.ListSourceRecords(ctx, businessID)
	return recs, eris.Wrap(err, "provenance: history")
}

func (r *Recorder) get(ctx context.Context, businessID, field string) (*model.SourceRecord, error) {
	rec, err := r.store.GetSourceRecord(ctx, businessID, field)
	if err != nil {
		return nil, eris.Wrap(err, "provenance: get source record")
	}
	if rec == nil {
		return nil, eris.Wrapf(ErrRecordNotFound, "provenance: %s/%s", businessID, field)
	}
	return rec, nil
}

// activate makes c the active contribution and reports whether the active
// value or source changed.
func (r *Recorder) activate(rec *model.SourceRecord, c *model.SourceContribution) bool {
	if c == nil {
		return false
	}
	if rec.CurrentSource == c.Source && reflect.DeepEqual(rec.CurrentValue, c.Value) {
		return false
	}
	rec.CurrentValue = c.Value
	rec.CurrentSource = c.Source
	rec.CurrentUpdatedAt = c.UpdatedAt
	return true
}

func (r *Recorder) applyToBusiness(ctx context.Context, rec *model.SourceRecord) error {
	b, err := r.store.GetBusiness(ctx, rec.BusinessID)
	if err != nil {
		return eris.Wrap(err, "provenance: load business")
	}
	if b == nil {
		return eris.Wrapf(ErrBusinessNotFound, "provenance: %s", rec.BusinessID)
	}
	if err := business.ApplyField(b, rec.Field, rec.CurrentValue); err != nil {
		return eris.Wrapf(err, "provenance: apply %s", rec.Field)
	}
	b.DataSource.LastSyncAt = r.now()
	return eris.Wrap(r.store.UpdateBusiness(ctx, b), "provenance: update business")
}
