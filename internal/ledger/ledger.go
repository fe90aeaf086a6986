// Package ledger implements the reputation protocol: scored feedback on
// registered agents, author-only revocation, open response threads and an
// O(1) aggregate per agent.
//
// Records live at addresses derived from (agent, client, index) tuples, so
// the nested agent -> client -> index maps need nothing from the substrate
// beyond flat keys. Every operation is one substrate transaction. The
// feedback index is supplied by the caller and must equal the client's next
// index; two submitters racing for the same index collide on insert-if-absent
// of the feedback address, and only one commits.
package ledger

import (
	"context"
	"encoding"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/zulandar/reputation/internal/address"
	"github.com/zulandar/reputation/internal/events"
	"github.com/zulandar/reputation/internal/identity"
	"github.com/zulandar/reputation/internal/store"
)

// Ledger runs protocol operations against a store.
type Ledger struct {
	store       store.Store
	oracle      identity.Oracle
	sink        events.Sink
	now         func() time.Time
	logger      *slog.Logger
	metrics     *Metrics
	maxAttempts int
	requireAuth bool
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithSink sets where notifications go. Defaults to events.Discard.
func WithSink(s events.Sink) Option { return func(l *Ledger) { l.sink = s } }

// WithClock overrides time.Now for record timestamps.
func WithClock(now func() time.Time) Option { return func(l *Ledger) { l.now = now } }

func WithLogger(logger *slog.Logger) Option { return func(l *Ledger) { l.logger = logger } }

func WithMetrics(m *Metrics) Option { return func(l *Ledger) { l.metrics = m } }

// WithMaxAttempts bounds re-runs of a transaction that lost an optimistic
// race. Zero means store.DefaultMaxAttempts.
func WithMaxAttempts(n int) Option { return func(l *Ledger) { l.maxAttempts = n } }

// WithFeedbackAuth makes every submission carry a FeedbackAuth signed by the
// agent owner.
func WithFeedbackAuth(required bool) Option { return func(l *Ledger) { l.requireAuth = required } }

// New returns a Ledger over s that checks agents against oracle.
func New(s store.Store, oracle identity.Oracle, opts ...Option) *Ledger {
	l := &Ledger{
		store:  s,
		oracle: oracle,
		sink:   events.Discard,
		now:    time.Now,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Store returns the underlying substrate.
func (l *Ledger) Store() store.Store { return l.store }

// publish delivers e after commit. Best-effort: errors are logged, not
// returned.
func (l *Ledger) publish(ctx context.Context, e events.Envelope) {
	if err := l.sink.Publish(ctx, e); err != nil {
		l.logger.Warn("publish event failed", "id", e.ID, "type", string(e.Type), "error", err)
	}
}

func (l *Ledger) update(ctx context.Context, fn func(store.Txn) error) error {
	return store.Retry(ctx, l.store, l.maxAttempts, fn)
}

// load decodes the record at key into v. It reports false, without error,
// when the key is absent.
func load(r store.Reader, key address.Key, v encoding.BinaryUnmarshaler) (bool, error) {
	data, err := r.Get(key.Bytes())
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s %s: %w", key.Kind(), key, err)
	}
	if err := v.UnmarshalBinary(data); err != nil {
		return false, err
	}
	return true, nil
}

func save(txn store.Txn, key address.Key, v encoding.BinaryMarshaler) error {
	data, err := v.MarshalBinary()
	if err != nil {
		return err
	}
	if err := txn.Put(key.Bytes(), data); err != nil {
		return fmt.Errorf("write %s %s: %w", key.Kind(), key, err)
	}
	return nil
}

// create is save with insert-if-absent; an occupied key yields
// store.ErrExists unwrapped.
func create(txn store.Txn, key address.Key, v encoding.BinaryMarshaler) error {
	data, err := v.MarshalBinary()
	if err != nil {
		return err
	}
	if err := txn.Create(key.Bytes(), data); err != nil {
		if errors.Is(err, store.ErrExists) {
			return store.ErrExists
		}
		return fmt.Errorf("create %s %s: %w", key.Kind(), key, err)
	}
	return nil
}
