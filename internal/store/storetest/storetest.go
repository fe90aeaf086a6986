// Package storetest is a conformance suite every store.Store implementation
// runs from its own tests.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zulandar/reputation/internal/store"
)

// Factory returns a fresh, empty store. The suite closes it.
type Factory func(t *testing.T) store.Store

// Run exercises the store.Store contract.
func Run(t *testing.T, newStore Factory) {
	t.Run("GetMissing", func(t *testing.T) { testGetMissing(t, newStore(t)) })
	t.Run("CreateThenGet", func(t *testing.T) { testCreateThenGet(t, newStore(t)) })
	t.Run("CreateExisting", func(t *testing.T) { testCreateExisting(t, newStore(t)) })
	t.Run("PutOverwrites", func(t *testing.T) { testPutOverwrites(t, newStore(t)) })
	t.Run("FailedUpdateDiscards", func(t *testing.T) { testFailedUpdateDiscards(t, newStore(t)) })
	t.Run("ReadYourWrites", func(t *testing.T) { testReadYourWrites(t, newStore(t)) })
	t.Run("ConcurrentCreate", func(t *testing.T) { testConcurrentCreate(t, newStore(t)) })
	t.Run("ConcurrentCounter", func(t *testing.T) { testConcurrentCounter(t, newStore(t)) })
}

func testGetMissing(t *testing.T, s store.Store) {
	defer s.Close()
	err := s.View(context.Background(), func(r store.Reader) error {
		_, err := r.Get([]byte("missing"))
		return err
	})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testCreateThenGet(t *testing.T, s store.Store) {
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Update(ctx, func(txn store.Txn) error {
		return txn.Create([]byte("k"), []byte("v1"))
	}))

	var got []byte
	require.NoError(t, s.View(ctx, func(r store.Reader) error {
		var err error
		got, err = r.Get([]byte("k"))
		return err
	}))
	assert.Equal(t, []byte("v1"), got)
}

func testCreateExisting(t *testing.T, s store.Store) {
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Update(ctx, func(txn store.Txn) error {
		return txn.Create([]byte("k"), []byte("v1"))
	}))
	err := s.Update(ctx, func(txn store.Txn) error {
		return txn.Create([]byte("k"), []byte("v2"))
	})
	assert.ErrorIs(t, err, store.ErrExists)

	require.NoError(t, s.View(ctx, func(r store.Reader) error {
		got, err := r.Get([]byte("k"))
		assert.Equal(t, []byte("v1"), got)
		return err
	}))
}

func testPutOverwrites(t *testing.T, s store.Store) {
	defer s.Close()
	ctx := context.Background()

	for _, v := range []string{"a", "b"} {
		require.NoError(t, s.Update(ctx, func(txn store.Txn) error {
			return txn.Put([]byte("k"), []byte(v))
		}))
	}
	require.NoError(t, s.View(ctx, func(r store.Reader) error {
		got, err := r.Get([]byte("k"))
		assert.Equal(t, []byte("b"), got)
		return err
	}))
}

func testFailedUpdateDiscards(t *testing.T, s store.Store) {
	defer s.Close()
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.Update(ctx, func(txn store.Txn) error {
		if err := txn.Put([]byte("a"), []byte("1")); err != nil {
			return err
		}
		if err := txn.Create([]byte("b"), []byte("2")); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	require.NoError(t, s.View(ctx, func(r store.Reader) error {
		_, errA := r.Get([]byte("a"))
		_, errB := r.Get([]byte("b"))
		assert.ErrorIs(t, errA, store.ErrNotFound)
		assert.ErrorIs(t, errB, store.ErrNotFound)
		return nil
	}))
}

func testReadYourWrites(t *testing.T, s store.Store) {
	defer s.Close()
	require.NoError(t, s.Update(context.Background(), func(txn store.Txn) error {
		if err := txn.Put([]byte("k"), []byte("v")); err != nil {
			return err
		}
		got, err := txn.Get([]byte("k"))
		if err != nil {
			return err
		}
		assert.Equal(t, []byte("v"), got)
		assert.ErrorIs(t, txn.Create([]byte("k"), []byte("again")), store.ErrExists)
		return nil
	}))
}

// testConcurrentCreate races many writers on one key: exactly one wins.
func testConcurrentCreate(t *testing.T, s store.Store) {
	defer s.Close()
	const writers = 16

	var (
		wg     sync.WaitGroup
		wins   atomic.Int32
		exists atomic.Int32
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := store.Retry(context.Background(), s, 32, func(txn store.Txn) error {
				return txn.Create([]byte("slot"), []byte(fmt.Sprintf("w%d", i)))
			})
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, store.ErrExists):
				exists.Add(1)
			default:
				t.Errorf("writer %d: unexpected error: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, int32(writers-1), exists.Load())
}

// testConcurrentCounter runs read-modify-write increments concurrently; no
// increment may be lost.
func testConcurrentCounter(t *testing.T, s store.Store) {
	defer s.Close()
	const writers = 8

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.Retry(context.Background(), s, 64, func(txn store.Txn) error {
				n := 0
				v, err := txn.Get([]byte("counter"))
				switch {
				case err == nil:
					n = int(v[0])
				case !errors.Is(err, store.ErrNotFound):
					return err
				}
				return txn.Put([]byte("counter"), []byte{byte(n + 1)})
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	require.NoError(t, s.View(context.Background(), func(r store.Reader) error {
		v, err := r.Get([]byte("counter"))
		if err != nil {
			return err
		}
		assert.Equal(t, byte(writers), v[0])
		return nil
	}))
}
