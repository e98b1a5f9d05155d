package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sugar/internal/adapter/memory"
	"sugar/internal/domain"
	"sugar/internal/metrics"
)

type countingRepo struct {
	domain.UserDetailsRepository
	gets int
}

func (r *countingRepo) GetUserDetails(ctx context.Context, userID int64) (*domain.UserDetails, error) {
	r.gets++
	return r.UserDetailsRepository.GetUserDetails(ctx, userID)
}

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestDetailsCache_ReadThrough(t *testing.T) {
	mr, client := setupTestRedis(t)
	ctx := context.Background()

	backing := &countingRepo{UserDetailsRepository: memory.New()}
	dob := time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, backing.SaveUserDetails(ctx, domain.UserDetails{UserID: 1, Timezone: "America/New_York", DateOfBirth: &dob, Weight: 72.5}))

	m := metrics.New(prometheus.NewRegistry())
	cache := NewDetailsCache(backing, client, time.Minute).WithMetrics(m)

	first, err := cache.GetUserDetails(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.True(t, mr.Exists("user:1:details"))
	assert.Equal(t, time.Minute, mr.TTL("user:1:details"))

	second, err := cache.GetUserDetails(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, first.Timezone, second.Timezone)
	require.NotNil(t, second.DateOfBirth)
	assert.True(t, dob.Equal(*second.DateOfBirth))

	assert.Equal(t, 1, backing.gets)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DetailsCacheHits.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DetailsCacheHits.WithLabelValues("hit")))
}

func TestDetailsCache_MissingNotCached(t *testing.T) {
	mr, client := setupTestRedis(t)
	cache := NewDetailsCache(memory.New(), client, time.Minute)

	got, err := cache.GetUserDetails(context.Background(), 9)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.False(t, mr.Exists("user:9:details"))
}

func TestDetailsCache_SaveRefreshesEntry(t *testing.T) {
	mr, client := setupTestRedis(t)
	ctx := context.Background()
	cache := NewDetailsCache(memory.New(), client, time.Minute)

	require.NoError(t, cache.SaveUserDetails(ctx, domain.UserDetails{UserID: 1, Timezone: "UTC"}))
	_, err := cache.GetUserDetails(ctx, 1)
	require.NoError(t, err)
	require.True(t, mr.Exists("user:1:details"))

	require.NoError(t, cache.SaveUserDetails(ctx, domain.UserDetails{UserID: 1, Timezone: "Asia/Tokyo"}))
	cached, err := mr.Get("user:1:details")
	require.NoError(t, err)
	assert.Contains(t, cached, "Asia/Tokyo")
	assert.Equal(t, time.Minute, mr.TTL("user:1:details"))

	got, err := cache.GetUserDetails(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Asia/Tokyo", got.Timezone)
}

func TestDetailsCache_ExpiresAfterTTL(t *testing.T) {
	mr, client := setupTestRedis(t)
	ctx := context.Background()
	backing := &countingRepo{UserDetailsRepository: memory.New()}
	require.NoError(t, backing.SaveUserDetails(ctx, domain.UserDetails{UserID: 1, Timezone: "UTC"}))
	cache := NewDetailsCache(backing, client, time.Minute)

	_, err := cache.GetUserDetails(ctx, 1)
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)
	_, err = cache.GetUserDetails(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, backing.gets)
}

func TestDetailsCache_FallsThroughWhenRedisDown(t *testing.T) {
	mr, client := setupTestRedis(t)
	ctx := context.Background()
	backing := memory.New()
	require.NoError(t, backing.SaveUserDetails(ctx, domain.UserDetails{UserID: 1, Timezone: "UTC"}))

	m := metrics.New(prometheus.NewRegistry())
	cache := NewDetailsCache(backing, client, time.Minute).WithMetrics(m)
	mr.Close()

	got, err := cache.GetUserDetails(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "UTC", got.Timezone)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DetailsCacheHits.WithLabelValues("error")))

	err = cache.SaveUserDetails(ctx, domain.UserDetails{UserID: 1, Timezone: "Europe/Oslo"})
	assert.ErrorIs(t, err, ErrStaleEntry)
	saved, err := backing.GetUserDetails(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Europe/Oslo", saved.Timezone)
}

func TestDetailsCache_SaveReportsUnrefreshedEntry(t *testing.T) {
	mr, client := setupTestRedis(t)
	ctx := context.Background()
	backing := memory.New()
	cache := NewDetailsCache(backing, client, time.Minute)

	require.NoError(t, cache.SaveUserDetails(ctx, domain.UserDetails{UserID: 1, Timezone: "UTC"}))
	_, err := cache.GetUserDetails(ctx, 1)
	require.NoError(t, err)

	mr.SetError("READONLY You can't write against a read only replica.")
	err = cache.SaveUserDetails(ctx, domain.UserDetails{UserID: 1, Timezone: "America/Denver"})
	assert.ErrorIs(t, err, ErrStaleEntry)

	saved, err := backing.GetUserDetails(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "America/Denver", saved.Timezone)
}

func TestDetailsCache_CorruptEntry(t *testing.T) {
	mr, client := setupTestRedis(t)
	ctx := context.Background()
	backing := memory.New()
	require.NoError(t, backing.SaveUserDetails(ctx, domain.UserDetails{UserID: 1, Timezone: "UTC"}))
	require.NoError(t, mr.Set("user:1:details", "{not json"))

	got, err := NewDetailsCache(backing, client, time.Minute).GetUserDetails(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "UTC", got.Timezone)
}

func TestDial(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := Dial(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	_ = client.Close()

	_, err = Dial(context.Background(), "not a url")
	assert.Error(t, err)
}
