package store

import (
	"context"
	"fmt"
	"sync"
)

// Memory is an in-process substrate. Update transactions run one at a time
// and buffer their writes, applying them only on success, so a failed
// transaction leaves nothing behind.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Name() string { return "memory" }

func (m *Memory) Close() error { return nil }

func (m *Memory) View(ctx context.Context, fn func(Reader) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("store: context cancelled: %w", err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fn(&memTxn{m: m})
}

func (m *Memory) Update(ctx context.Context, fn func(Txn) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("store: context cancelled: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	txn := &memTxn{m: m, writes: make(map[string][]byte)}
	if err := fn(txn); err != nil {
		return err
	}
	for k, v := range txn.writes {
		m.data[k] = v
	}
	return nil
}

// Len returns the number of stored keys.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

type memTxn struct {
	m      *Memory
	writes map[string][]byte
}

func (t *memTxn) Get(key []byte) ([]byte, error) {
	if v, ok := t.writes[string(key)]; ok {
		return clone(v), nil
	}
	v, ok := t.m.data[string(key)]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(v), nil
}

func (t *memTxn) Create(key, value []byte) error {
	if _, err := t.Get(key); err == nil {
		return ErrExists
	}
	return t.Put(key, value)
}

func (t *memTxn) Put(key, value []byte) error {
	if t.writes == nil {
		return fmt.Errorf("store: write in read-only transaction")
	}
	t.writes[string(key)] = clone(value)
	return nil
}

func clone(b []byte) []byte {
	return append([]byte(nil), b...)
}
