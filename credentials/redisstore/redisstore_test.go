package redisstore_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-jobportal-client/credentials"
	"github.com/jrsteele09/go-jobportal-client/credentials/redisstore"
	"github.com/jrsteele09/go-jobportal-client/users"
	"github.com/stretchr/testify/require"
)

// newTestStore connects to TEST_REDIS_ADDR, skipping when it is not set.
func newTestStore(t *testing.T) *redisstore.RedisStore {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	cfg := redisstore.DefaultConfig()
	cfg.Addr = addr
	cfg.Password = os.Getenv("TEST_REDIS_PASSWORD")
	cfg.Namespace = "test-" + uuid.NewString()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	store, err := redisstore.New(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = store.ClearAll(context.Background())
		_ = store.Close()
	})
	return store
}

func TestDefaultConfig(t *testing.T) {
	cfg := redisstore.DefaultConfig()
	require.Equal(t, "localhost:6379", cfg.Addr)
	require.Equal(t, "default", cfg.Namespace)
	require.Equal(t, 3, cfg.MaxRetries)
}

func TestNewFailsWithoutServer(t *testing.T) {
	cfg := redisstore.DefaultConfig()
	cfg.Addr = "127.0.0.1:1"
	cfg.DialTimeout = 200 * time.Millisecond
	cfg.MaxRetries = -1

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := redisstore.New(ctx, cfg)
	require.Error(t, err)
}

func TestRedisStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	user := &users.User{ID: "u1", Email: "a@b.co", Role: users.RoleCandidate}
	require.NoError(t, credentials.Save(ctx, store, credentials.Session{AccessToken: "at", RefreshToken: "rt", User: user}))

	s, err := credentials.Load(ctx, store)
	require.NoError(t, err)
	require.Equal(t, "at", s.AccessToken)
	require.Equal(t, "rt", s.RefreshToken)
	require.Equal(t, user, s.User)

	require.NoError(t, store.ClearAll(ctx))
	s, err = credentials.Load(ctx, store)
	require.NoError(t, err)
	require.False(t, s.HasCredentials())
}
