package geocoding

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/bizdir/internal/model"
	"github.com/sells-group/bizdir/internal/provenance"
	"github.com/sells-group/bizdir/internal/store"
	"github.com/sells-group/bizdir/pkg/geocode"
)

type fakeGeocoder struct {
	results map[string]geocode.Result
	err     error
	got     []geocode.AddressInput
}

func (f *fakeGeocoder) Geocode(_ context.Context, addr geocode.AddressInput) (*geocode.Result, error) {
	r := f.results[addr.ID]
	return &r, f.err
}

func (f *fakeGeocoder) BatchGeocode(_ context.Context, addrs []geocode.AddressInput) ([]geocode.Result, error) {
	f.got = addrs
	if f.err != nil {
		return nil, f.err
	}
	out := make([]geocode.Result, len(addrs))
	for i, a := range addrs {
		out[i] = f.results[a.ID]
	}
	return out, nil
}

func setup(t *testing.T) (store.Store, *provenance.Recorder) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st, provenance.NewRecorder(st, nil)
}

func addBusiness(t *testing.T, st store.Store, id, address string, coords *model.Coordinates, age time.Duration) {
	t.Helper()
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Add(-age)
	b := &model.Business{
		ID:          id,
		Name:        "Business " + id,
		Slug:        id,
		Address:     address,
		City:        "Mesa",
		State:       "AZ",
		Zip:         "85201",
		Coordinates: coords,
		CreatedAt:   created,
		UpdatedAt:   created,
	}
	b.DataSource.Metadata.ImportBatchID = "batch-1"
	require.NoError(t, st.CreateBusiness(context.Background(), b))
}

func TestRun_RecordsMatchedCoordinates(t *testing.T) {
	ctx := context.Background()
	st, rec := setup(t)
	addBusiness(t, st, "b1", "12 Main St", nil, 3*time.Hour)
	addBusiness(t, st, "b2", "99 Lost Rd", nil, 2*time.Hour)
	addBusiness(t, st, "b3", "", nil, time.Hour)
	addBusiness(t, st, "b4", "5 Oak Ave", &model.Coordinates{Lat: 1, Lng: 2}, 0)

	fake := &fakeGeocoder{results: map[string]geocode.Result{
		"b1": {Latitude: 33.41, Longitude: -111.83, Source: "census", Quality: "rooftop", Matched: true},
	}}
	sum, err := New(st, rec, fake).Run(ctx, Options{BatchID: "batch-1"})
	require.NoError(t, err)

	assert.Equal(t, 4, sum.Considered)
	assert.Equal(t, 2, sum.Skipped)
	assert.Equal(t, 1, sum.Matched)
	assert.Equal(t, 1, sum.Unmatched)
	assert.Equal(t, map[string]int{"census": 1}, sum.ByProvider)

	require.Len(t, fake.got, 2)
	assert.Equal(t, geocode.AddressInput{ID: "b1", Street: "12 Main St", City: "Mesa", State: "AZ", ZipCode: "85201"}, fake.got[0])

	b1, err := st.GetBusiness(ctx, "b1")
	require.NoError(t, err)
	require.NotNil(t, b1.Coordinates)
	assert.InDelta(t, 33.41, b1.Coordinates.Lat, 1e-9)
	assert.InDelta(t, -111.83, b1.Coordinates.Lng, 1e-9)

	sr, err := st.GetSourceRecord(ctx, "b1", "coordinates")
	require.NoError(t, err)
	require.NotNil(t, sr)
	assert.Equal(t, Source, sr.CurrentSource)
	require.Len(t, sr.Contributions, 1)
	assert.InDelta(t, 0.9, sr.Contributions[0].Confidence, 1e-9)

	b2, err := st.GetBusiness(ctx, "b2")
	require.NoError(t, err)
	assert.Nil(t, b2.Coordinates)
}

func TestRun_DryRunWritesNothing(t *testing.T) {
	ctx := context.Background()
	st, rec := setup(t)
	addBusiness(t, st, "b1", "12 Main St", nil, 0)

	fake := &fakeGeocoder{results: map[string]geocode.Result{
		"b1": {Latitude: 1, Longitude: 2, Source: "google", Quality: "approximate", Matched: true},
	}}
	sum, err := New(st, rec, fake).Run(ctx, Options{DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Matched)
	assert.True(t, sum.DryRun)

	b1, err := st.GetBusiness(ctx, "b1")
	require.NoError(t, err)
	assert.Nil(t, b1.Coordinates)
}

func TestRun_Limit(t *testing.T) {
	st, rec := setup(t)
	addBusiness(t, st, "b1", "1 A St", nil, 2*time.Hour)
	addBusiness(t, st, "b2", "2 B St", nil, time.Hour)

	fake := &fakeGeocoder{results: map[string]geocode.Result{}}
	sum, err := New(st, rec, fake).Run(context.Background(), Options{Limit: 1})
	require.NoError(t, err)
	require.Len(t, fake.got, 1)
	assert.Equal(t, "b1", fake.got[0].ID)
	assert.Equal(t, 1, sum.Skipped)
}

func TestRun_NothingToDo(t *testing.T) {
	st, rec := setup(t)
	fake := &fakeGeocoder{}
	sum, err := New(st, rec, fake).Run(context.Background(), Options{})
	require.NoError(t, err)
	assert.Zero(t, sum.Considered)
	assert.Nil(t, fake.got)
}

func TestRun_GeocoderError(t *testing.T) {
	st, rec := setup(t)
	addBusiness(t, st, "b1", "1 A St", nil, 0)

	_, err := New(st, rec, &fakeGeocoder{err: errors.New("census down")}).Run(context.Background(), Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "census down")
}

func TestConfidence(t *testing.T) {
	assert.InDelta(t, 0.9, confidence("rooftop"), 1e-9)
	assert.InDelta(t, 0.75, confidence("range"), 1e-9)
	assert.InDelta(t, 0.6, confidence("centroid"), 1e-9)
	assert.InDelta(t, 0.4, confidence(""), 1e-9)
}
