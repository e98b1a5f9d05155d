package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sugar/internal/adapter/memory"
	"sugar/internal/app"
	"sugar/internal/domain"
	"sugar/internal/metrics"
)

var (
	alice = domain.Caller{Role: domain.RoleUser, UserID: 1}
	bob   = domain.Caller{Role: domain.RoleUser, UserID: 2}
	admin = domain.Caller{Role: domain.RoleAdmin, UserID: 3}
)

var fixedNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

type mockReadingRepo struct {
	listFn     func(ctx context.Context, f domain.ReadingFilter) ([]domain.Reading, error)
	createFn   func(ctx context.Context, r domain.Reading) (int64, error)
	updateFn   func(ctx context.Context, r domain.Reading) error
	deleteFn   func(ctx context.Context, id int64, at time.Time) error
	earliestFn func(ctx context.Context) (*time.Time, error)
}

func (m *mockReadingRepo) ListReadings(ctx context.Context, f domain.ReadingFilter) ([]domain.Reading, error) {
	if m.listFn != nil {
		return m.listFn(ctx, f)
	}
	return nil, nil
}

func (m *mockReadingRepo) CreateReading(ctx context.Context, r domain.Reading) (int64, error) {
	if m.createFn != nil {
		return m.createFn(ctx, r)
	}
	return 1, nil
}

func (m *mockReadingRepo) UpdateReading(ctx context.Context, r domain.Reading) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, r)
	}
	return nil
}

func (m *mockReadingRepo) SoftDeleteReading(ctx context.Context, id int64, at time.Time) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id, at)
	}
	return nil
}

func (m *mockReadingRepo) EarliestObservedAt(ctx context.Context) (*time.Time, error) {
	if m.earliestFn != nil {
		return m.earliestFn(ctx)
	}
	return nil, nil
}

type fixture struct {
	db      *memory.DB
	svc     *app.ReadingService
	metrics *metrics.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := memory.New()
	ctx := context.Background()
	dob := time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, db.SaveUserDetails(ctx, domain.UserDetails{UserID: 1, Timezone: "America/New_York", DateOfBirth: &dob, Weight: 72.5}))
	require.NoError(t, db.SaveUserDetails(ctx, domain.UserDetails{UserID: 2, Timezone: "Europe/Berlin"}))

	m := metrics.New(prometheus.NewRegistry())
	svc := app.NewReadingService(db, db).
		WithClock(func() time.Time { return fixedNow }).
		WithMetrics(m)
	return &fixture{db: db, svc: svc, metrics: m}
}

func (f *fixture) create(t *testing.T, caller domain.Caller, day, at string, glucose float64) *domain.Reading {
	t.Helper()
	r, err := f.svc.Create(context.Background(), caller, app.ReadingInput{
		ObservedDate: day, ObservedTime: at, Glucose: glucose,
	})
	require.NoError(t, err)
	return r
}

func TestReadingService_Create(t *testing.T) {
	f := newFixture(t)

	r := f.create(t, alice, "2024-03-10", "14:30", 104)

	assert.NotZero(t, r.ID)
	assert.Equal(t, int64(1), r.UserID)
	assert.True(t, r.ObservedAt.Equal(time.Date(2024, 3, 10, 18, 30, 0, 0, time.UTC)))
	assert.Equal(t, "mg/dL", r.Unit)
	require.NotNil(t, r.AgeAtReading)
	assert.Equal(t, 44, *r.AgeAtReading)
	require.NotNil(t, r.WeightAtReading)
	assert.Equal(t, 72.5, *r.WeightAtReading)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ReadingsCreated))
}

func TestReadingService_Create_NoBirthDateNoWeight(t *testing.T) {
	f := newFixture(t)

	r := f.create(t, bob, "2024-01-05", "07:15", 95)

	assert.Nil(t, r.AgeAtReading)
	assert.Nil(t, r.WeightAtReading)
	_, off := r.ObservedAt.Zone()
	assert.Equal(t, 3600, off)
}

func TestReadingService_Create_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		caller  domain.Caller
		in      app.ReadingInput
		wantErr error
	}{
		{"anonymous", domain.Anonymous, app.ReadingInput{ObservedDate: "2024-01-01", ObservedTime: "10:00", Glucose: 100}, domain.ErrUnauthorized},
		{"bad month", alice, app.ReadingInput{ObservedDate: "2024-13-01", ObservedTime: "10:00", Glucose: 100}, domain.ErrInvalidDate},
		{"bad time", alice, app.ReadingInput{ObservedDate: "2024-01-01", ObservedTime: "25:00", Glucose: 100}, domain.ErrInvalidTime},
		{"missing date", alice, app.ReadingInput{ObservedTime: "10:00", Glucose: 100}, domain.ErrValidation},
		{"zero glucose", alice, app.ReadingInput{ObservedDate: "2024-01-01", ObservedTime: "10:00"}, domain.ErrValidation},
		{"bad unit", alice, app.ReadingInput{ObservedDate: "2024-01-01", ObservedTime: "10:00", Glucose: 5, Unit: "g"}, domain.ErrValidation},
		{"no details", domain.Caller{Role: domain.RoleUser, UserID: 42}, app.ReadingInput{ObservedDate: "2024-01-01", ObservedTime: "10:00", Glucose: 100}, app.ErrNoDetails},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Create(ctx, tc.caller, tc.in)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.NormalizeErrors.WithLabelValues("date")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.NormalizeErrors.WithLabelValues("time")))
}

func TestReadingService_Create_InvalidStoredTimezone(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.db.SaveUserDetails(context.Background(), domain.UserDetails{UserID: 9, Timezone: "Nowhere/Land"}))

	_, err := f.svc.Create(context.Background(), domain.Caller{Role: domain.RoleUser, UserID: 9}, app.ReadingInput{
		ObservedDate: "2024-01-01", ObservedTime: "10:00", Glucose: 100,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidTimezone)
}

func TestReadingService_ListScoping(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.create(t, alice, "2024-06-01", "08:00", 100)
	b := f.create(t, bob, "2024-06-02", "08:00", 110)
	require.NoError(t, f.svc.Delete(ctx, alice, a.ID))

	items, err := f.svc.List(ctx, alice, "")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, a.ID, items[0].ID)
	assert.True(t, items[0].IsDeleted, "list keeps soft-deleted readings")

	items, err = f.svc.List(ctx, admin, "")
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Equal(t, b.ID, items[0].ID)

	_, err = f.svc.List(ctx, domain.Anonymous, "")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ScopeDenied))
}

func TestReadingService_ListConvertsUnits(t *testing.T) {
	f := newFixture(t)
	f.create(t, alice, "2024-06-01", "08:00", 180.182)

	items, err := f.svc.List(context.Background(), alice, "mmol/L")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.InDelta(t, 10.0, items[0].Glucose, 0.001)
	assert.Equal(t, "mmol/L", items[0].Unit)

	_, err = f.svc.List(context.Background(), alice, "grains")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestReadingService_Span(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	old := f.create(t, alice, "2024-05-01", "08:00", 100)
	recent := f.create(t, alice, "2024-06-14", "08:00", 120)
	deleted := f.create(t, alice, "2024-06-13", "08:00", 130)
	other := f.create(t, bob, "2024-06-14", "09:00", 140)
	require.NoError(t, f.svc.Delete(ctx, alice, deleted.ID))

	items, err := f.svc.Span(ctx, alice, 7, "")
	require.NoError(t, err)
	assert.Equal(t, []int64{recent.ID}, ids(items))

	items, err = f.svc.Span(ctx, admin, 7, "")
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{recent.ID, other.ID}, ids(items))

	// Non-positive windows reach back to the earliest reading.
	items, err = f.svc.Span(ctx, alice, 0, "")
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{recent.ID, old.ID}, ids(items))

	_, err = f.svc.Span(ctx, domain.Anonymous, 7, "")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestReadingService_Span_WindowUsesInjectedClock(t *testing.T) {
	var gotSince *time.Time
	repo := &mockReadingRepo{
		listFn: func(_ context.Context, f domain.ReadingFilter) ([]domain.Reading, error) {
			gotSince = f.Since
			return nil, nil
		},
	}
	svc := app.NewReadingService(repo, memory.New()).WithClock(func() time.Time { return fixedNow })

	_, err := svc.Span(context.Background(), alice, 3, "")
	require.NoError(t, err)
	require.NotNil(t, gotSince)
	assert.True(t, gotSince.Equal(fixedNow.Add(-72*time.Hour)))
}

func TestReadingService_Span_HugeWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.create(t, alice, "2024-06-13", "08:00", 110)

	for _, days := range []int{2, 3, 1_000_000} {
		items, err := f.svc.Span(ctx, alice, days, "")
		require.NoError(t, err)
		assert.Equal(t, []int64{r.ID}, ids(items), "daysAgo=%d", days)
	}
}

func TestReadingService_Span_EmptyStore(t *testing.T) {
	f := newFixture(t)
	items, err := f.svc.Span(context.Background(), alice, -1, "")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestReadingService_GetScoping(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.create(t, alice, "2024-06-01", "08:00", 100)

	got, err := f.svc.Get(ctx, alice, r.ID)
	require.NoError(t, err)
	assert.Equal(t, r.ID, got.ID)

	_, err = f.svc.Get(ctx, bob, r.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	got, err = f.svc.Get(ctx, admin, r.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.UserID)

	_, err = f.svc.Get(ctx, domain.Anonymous, r.ID)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	require.NoError(t, f.svc.Delete(ctx, alice, r.ID))
	_, err = f.svc.Get(ctx, alice, r.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestReadingService_Update(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.create(t, alice, "2024-06-01", "08:00", 100)

	// A weight change after creation must not leak into the snapshot.
	dob := time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, f.db.SaveUserDetails(ctx, domain.UserDetails{UserID: 1, Timezone: "America/New_York", DateOfBirth: &dob, Weight: 90}))

	got, err := f.svc.Update(ctx, admin, r.ID, app.ReadingInput{
		ObservedDate: "2024-06-02", ObservedTime: "21:45", Glucose: 7.2, Unit: "mmol/L", Notes: " after dinner ",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.UserID, "owner is preserved when an admin edits")
	assert.True(t, got.ObservedAt.Equal(time.Date(2024, 6, 3, 1, 45, 0, 0, time.UTC)))
	assert.Equal(t, "mmol/L", got.Unit)
	assert.Equal(t, "after dinner", got.Notes)
	require.NotNil(t, got.WeightAtReading)
	assert.Equal(t, 72.5, *got.WeightAtReading)

	stored, err := f.svc.Get(ctx, alice, r.ID)
	require.NoError(t, err)
	assert.Equal(t, 7.2, stored.Glucose)

	_, err = f.svc.Update(ctx, bob, r.ID, app.ReadingInput{ObservedDate: "2024-06-02", ObservedTime: "21:45", Glucose: 7})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.svc.Update(ctx, alice, r.ID, app.ReadingInput{ObservedDate: "2024-02-30", ObservedTime: "21:45", Glucose: 7})
	assert.ErrorIs(t, err, domain.ErrInvalidDate)
}

func TestReadingService_Delete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.create(t, alice, "2024-06-01", "08:00", 100)

	assert.ErrorIs(t, f.svc.Delete(ctx, bob, r.ID), domain.ErrNotFound)
	require.NoError(t, f.svc.Delete(ctx, alice, r.ID))
	assert.ErrorIs(t, f.svc.Delete(ctx, alice, r.ID), domain.ErrNotFound)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ReadingsDeleted))
}

func TestReadingService_RepoErrors(t *testing.T) {
	boom := errors.New("db down")
	repo := &mockReadingRepo{
		listFn:     func(context.Context, domain.ReadingFilter) ([]domain.Reading, error) { return nil, boom },
		earliestFn: func(context.Context) (*time.Time, error) { return nil, boom },
	}
	svc := app.NewReadingService(repo, memory.New())
	ctx := context.Background()

	_, err := svc.List(ctx, alice, "")
	assert.ErrorIs(t, err, boom)
	_, err = svc.Span(ctx, alice, 0, "")
	assert.ErrorIs(t, err, boom)
	_, err = svc.Get(ctx, alice, 1)
	assert.ErrorIs(t, err, boom)
}

func ids(items []domain.Reading) []int64 {
	out := make([]int64, 0, len(items))
	for _, r := range items {
		out = append(out, r.ID)
	}
	return out
}
