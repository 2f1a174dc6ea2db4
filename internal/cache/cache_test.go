package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/priyadarshi7/ZenLearn/internal/cache"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis spins up a Redis container and returns a connected RedisCache plus a raw client.
func setupRedis(t *testing.T) (*cache.RedisCache, *redis.Client) {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, container.Terminate(ctx)) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	redisURL := "redis://" + host + ":" + port.Port()
	rc, err := cache.NewRedisCache(redisURL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rc.Close() })

	opts, err := redis.ParseURL(redisURL)
	require.NoError(t, err)
	raw := redis.NewClient(opts)
	t.Cleanup(func() { _ = raw.Close() })

	return rc, raw
}

func TestNewRedisCache_InvalidURL(t *testing.T) {
	_, err := cache.NewRedisCache("not a url")
	assert.Error(t, err)
}

func TestPing(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	rc, _ := setupRedis(t)
	assert.NoError(t, rc.Ping(context.Background()))
}

// --- Job Status ---

func TestSetJobStatus(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	rc, raw := setupRedis(t)
	ctx := context.Background()
	jobID := uuid.New()

	require.NoError(t, rc.SetJobStatus(ctx, jobID, "processing", 10*time.Second))

	val, err := raw.Get(ctx, cache.JobStatusKey(jobID)).Result()
	require.NoError(t, err)
	assert.Equal(t, "processing", val)

	ttl, err := raw.TTL(ctx, cache.JobStatusKey(jobID)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}

func TestSetJobStatus_Overwrites(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	rc, raw := setupRedis(t)
	ctx := context.Background()
	jobID := uuid.New()

	require.NoError(t, rc.SetJobStatus(ctx, jobID, "submitted", 10*time.Second))
	require.NoError(t, rc.SetJobStatus(ctx, jobID, "completed", 10*time.Second))

	val, err := raw.Get(ctx, cache.JobStatusKey(jobID)).Result()
	require.NoError(t, err)
	assert.Equal(t, "completed", val)
}

// --- IncrWithExpiry ---

func TestIncrWithExpiry(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	rc, _ := setupRedis(t)
	ctx := context.Background()
	key := cache.RateLimitKey("test:" + uuid.NewString()[:8])

	for want := int64(1); want <= 3; want++ {
		val, err := rc.IncrWithExpiry(ctx, key, 10*time.Second)
		require.NoError(t, err)
		assert.Equal(t, want, val)
	}
}

func TestIncrWithExpiry_Expires(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	rc, _ := setupRedis(t)
	ctx := context.Background()
	key := cache.RateLimitKey("expiry:" + uuid.NewString()[:8])

	_, err := rc.IncrWithExpiry(ctx, key, 1*time.Second)
	require.NoError(t, err)

	time.Sleep(1500 * time.Millisecond)

	val, err := rc.IncrWithExpiry(ctx, key, 10*time.Second)
	require.NoError(t, err)
	assert.Equal(t, int64(1), val)
}

// --- Nop ---

func TestNop(t *testing.T) {
	var c cache.Cache = cache.Nop{}
	ctx := context.Background()

	assert.NoError(t, c.Ping(ctx))
	assert.NoError(t, c.SetJobStatus(ctx, uuid.New(), "submitted", time.Minute))

	for i := 0; i < 3; i++ {
		n, err := c.IncrWithExpiry(ctx, "k", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, int64(0), n)
	}
}

// --- Cache Key Builders ---

func TestJobStatusKey(t *testing.T) {
	jobID := uuid.MustParse("22222222-2222-2222-2222-222222222222")
	assert.Equal(t, "zenlearn:job:22222222-2222-2222-2222-222222222222", cache.JobStatusKey(jobID))
}

func TestRateLimitKey(t *testing.T) {
	assert.Equal(t, "zenlearn:ratelimit:10.0.0.1", cache.RateLimitKey("10.0.0.1"))
}

func TestKeyBuilders_NonColliding(t *testing.T) {
	id := uuid.New()
	keys := map[string]bool{
		cache.JobStatusKey(id):          true,
		cache.RateLimitKey(id.String()): true,
	}
	assert.Len(t, keys, 2, "all keys should be unique")
}
