package submit

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/deloabass/nigertransfert/internal/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// testRedis returns a client for TEST_REDIS_URL or skips the test.
func testRedis(t *testing.T) redis.UniversalClient {
	t.Helper()
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set, skipping integration test")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisRegistry(t *testing.T) {
	client := testRedis(t)
	ctx := context.Background()
	r := NewRedisRegistry(client, "test:"+uuid.NewString(), time.Minute)

	ok, err := r.Claim(ctx, "req-1")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = r.Claim(ctx, "req-1")
	require.NoError(t, err)
	require.False(t, ok)

	_, found, err := r.Lookup(ctx, "req-1")
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, r.Record(ctx, "req-1", models.TransferResult{RequestID: "req-1", Status: models.StatusCompleted, Reference: "TRF-ABCDEF01"}))
	res, found, err := r.Lookup(ctx, "req-1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "TRF-ABCDEF01", res.Reference)

	ok, err = r.Claim(ctx, "req-1")
	require.NoError(t, err)
	require.False(t, ok, "recorded ids stay claimed")
}
