// Package store defines the flat key-value substrate the ledger runs on.
//
// A substrate offers transactions over a flat byte-keyed space. Insert-if-
// absent (Txn.Create) is the only synchronization primitive the ledger uses:
// when two transactions race to create the same key, at most one commits.
// Substrates with optimistic concurrency report a lost race as ErrConflict
// and the caller re-runs the whole transaction.
package store

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by Get when no value exists at the key.
	ErrNotFound = errors.New("store: key not found")
	// ErrExists is returned by Create when the key is already occupied.
	ErrExists = errors.New("store: key already exists")
	// ErrConflict is returned by Update when a concurrent transaction
	// committed a key this one read. Nothing was written.
	ErrConflict = errors.New("store: transaction conflict")
)

// Reader reads values inside a transaction.
type Reader interface {
	// Get returns the value at key or ErrNotFound. The returned slice is
	// owned by the caller.
	Get(key []byte) ([]byte, error)
}

// Txn is a read-write transaction. Writes become visible to other
// transactions only when the transaction function returns nil and the
// substrate commits; a returned error discards every write.
type Txn interface {
	Reader

	// Create stores value at key only if the key is absent, else ErrExists.
	Create(key, value []byte) error

	// Put stores value at key, replacing any existing value.
	Put(key, value []byte) error
}

// Store is a transactional flat key-value substrate.
type Store interface {
	// View runs fn in a read-only transaction with a consistent snapshot.
	View(ctx context.Context, fn func(Reader) error) error

	// Update runs fn in a read-write transaction and commits if fn returns
	// nil.
	Update(ctx context.Context, fn func(Txn) error) error

	// Name identifies the substrate in logs and metrics.
	Name() string

	Close() error
}

// DefaultMaxAttempts bounds Retry when the caller passes zero.
const DefaultMaxAttempts = 8

// Retry runs s.Update until it commits, fails with an error other than
// ErrConflict, or maxAttempts is exhausted. fn must be safe to re-run: each
// attempt starts from a fresh transaction.
func Retry(ctx context.Context, s Store, maxAttempts int, fn func(Txn) error) error {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if cerr := ctx.Err(); cerr != nil {
			return fmt.Errorf("store: context cancelled: %w", cerr)
		}
		err = s.Update(ctx, fn)
		if !errors.Is(err, ErrConflict) {
			return err
		}
	}
	return fmt.Errorf("store: gave up after %d attempts: %w", maxAttempts, err)
}
