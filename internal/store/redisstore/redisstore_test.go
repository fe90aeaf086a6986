package redisstore

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zulandar/reputation/internal/store"
	"github.com/zulandar/reputation/internal/store/storetest"
)

// These tests require a running Redis (REDIS_ADDR, default localhost:6379)
// and skip when none answers.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	prefix := "reptest:" + uuid.NewString() + ":"
	s, err := Open(context.Background(), Config{Addr: addr, Prefix: prefix})
	if err != nil {
		t.Skipf("Skipping Redis integration test: %v", err)
	}
	t.Cleanup(func() { cleanup(addr, prefix) })
	return s
}

func cleanup(addr, prefix string) {
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	iter := client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		client.Del(ctx, iter.Val())
	}
}

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return openTestStore(t) })
}

func TestUpdate_WatchedKeyChangedIsConflict(t *testing.T) {
	s := openTestStore(t)
	defer s.Close()
	ctx := context.Background()
	key := []byte("watched")

	err := s.Update(ctx, func(txn store.Txn) error {
		if _, err := txn.Get(key); err != store.ErrNotFound {
			return err
		}
		// Another client writes the key between our read and our EXEC.
		require.NoError(t, s.client.Set(ctx, s.prefix+string(key), "other", 0).Err())
		return txn.Create(key, []byte("mine"))
	})
	assert.ErrorIs(t, err, store.ErrConflict)

	got, err := s.client.Get(ctx, s.prefix+string(key)).Result()
	require.NoError(t, err)
	assert.Equal(t, "other", got)
}

func TestUpdate_ReadOnlyCommitsNothing(t *testing.T) {
	s := openTestStore(t)
	defer s.Close()

	err := s.Update(context.Background(), func(txn store.Txn) error {
		_, err := txn.Get([]byte("absent"))
		if err == store.ErrNotFound {
			return nil
		}
		return err
	})
	assert.NoError(t, err)
}

func TestOpen_Unreachable(t *testing.T) {
	_, err := Open(context.Background(), Config{Addr: "127.0.0.1:1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redisstore: ping")
}
