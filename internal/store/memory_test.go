package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zulandar/reputation/internal/store"
	"github.com/zulandar/reputation/internal/store/storetest"
)

func TestMemory_Conformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return store.NewMemory() })
}

func TestMemory_ViewIsReadOnly(t *testing.T) {
	m := store.NewMemory()
	err := m.View(context.Background(), func(r store.Reader) error {
		txn, ok := r.(store.Txn)
		require.True(t, ok)
		return txn.Put([]byte("k"), []byte("v"))
	})
	assert.Error(t, err)
	assert.Equal(t, 0, m.Len())
}

func TestMemory_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := store.NewMemory().Update(ctx, func(store.Txn) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

// conflictStore fails the first n updates with ErrConflict.
type conflictStore struct {
	*store.Memory
	remaining int
	calls     int
}

func (c *conflictStore) Update(ctx context.Context, fn func(store.Txn) error) error {
	c.calls++
	if c.remaining > 0 {
		c.remaining--
		return store.ErrConflict
	}
	return c.Memory.Update(ctx, fn)
}

func TestRetry_RerunsOnConflict(t *testing.T) {
	s := &conflictStore{Memory: store.NewMemory(), remaining: 2}
	err := store.Retry(context.Background(), s, 5, func(txn store.Txn) error {
		return txn.Put([]byte("k"), []byte("v"))
	})
	require.NoError(t, err)
	assert.Equal(t, 3, s.calls)
}

func TestRetry_GivesUp(t *testing.T) {
	s := &conflictStore{Memory: store.NewMemory(), remaining: 10}
	err := store.Retry(context.Background(), s, 3, func(store.Txn) error { return nil })
	assert.ErrorIs(t, err, store.ErrConflict)
	assert.Equal(t, 3, s.calls)
}

func TestRetry_PassesThroughOtherErrors(t *testing.T) {
	boom := errors.New("boom")
	s := &conflictStore{Memory: store.NewMemory()}
	err := store.Retry(context.Background(), s, 3, func(store.Txn) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, s.calls)
}
