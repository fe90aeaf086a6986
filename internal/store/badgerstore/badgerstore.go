// Package badgerstore runs the ledger on an embedded BadgerDB.
//
// Badger transactions are optimistic: every key read inside an update
// transaction is checked at commit, and if another transaction committed it
// first the commit fails with badger.ErrConflict. That maps directly onto
// store.ErrConflict, so racing submitters for the same (agent, client) pair
// cannot both allocate one feedback index.
package badgerstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/robfig/cron/v3"

	"github.com/zulandar/reputation/internal/store"
)

// Config holds configuration for a BadgerDB-backed store.
type Config struct {
	// Path is the directory for BadgerDB files. Ignored when InMemory is true.
	Path string

	// InMemory keeps all data in RAM. Used by tests.
	InMemory bool

	// SyncWrites fsyncs every commit.
	SyncWrites bool

	// Logger receives BadgerDB's internal logs. Nil disables them.
	Logger *slog.Logger
}

// DefaultConfig returns durable production settings for path.
func DefaultConfig(path string) Config {
	return Config{Path: path, SyncWrites: true}
}

// InMemoryConfig returns settings for tests.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Store implements store.Store on BadgerDB.
type Store struct {
	db       *badger.DB
	inMemory bool
	logger   *slog.Logger
	cron     *cron.Cron
}

var _ store.Store = (*Store)(nil)

// Open opens (creating if needed) a BadgerDB store.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("badgerstore: path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("badgerstore: create directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)

	logger := cfg.Logger
	if logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: logger})
	} else {
		opts = opts.WithLogger(nil)
		logger = slog.New(slog.DiscardHandler)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badgerstore: open: %w", err)
	}
	return &Store{db: db, inMemory: cfg.InMemory, logger: logger}, nil
}

func (s *Store) Name() string { return "badger" }

// Close stops scheduled GC and closes the database.
func (s *Store) Close() error {
	if s.cron != nil {
		<-s.cron.Stop().Done()
		s.cron = nil
	}
	return s.db.Close()
}

func (s *Store) View(ctx context.Context, fn func(store.Reader) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("badgerstore: context cancelled: %w", err)
	}
	return s.db.View(func(txn *badger.Txn) error {
		return fn(reader{txn: txn})
	})
}

func (s *Store) Update(ctx context.Context, fn func(store.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("badgerstore: context cancelled: %w", err)
	}

	txn := s.db.NewTransaction(true)
	defer txn.Discard()

	if err := fn(writer{reader{txn: txn}}); err != nil {
		return err
	}
	if err := txn.Commit(); err != nil {
		if errors.Is(err, badger.ErrConflict) {
			return store.ErrConflict
		}
		return fmt.Errorf("badgerstore: commit: %w", err)
	}
	return nil
}

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ScheduleGC runs value-log garbage collection on a 5-field cron schedule
// until Close. ratio is the minimum discardable fraction that triggers a
// rewrite. In-memory stores have no value log and ignore the schedule.
func (s *Store) ScheduleGC(spec string, ratio float64) error {
	if ratio <= 0 || ratio >= 1 {
		return fmt.Errorf("badgerstore: gc ratio %v must be between 0 and 1", ratio)
	}
	sched, err := cronParser.Parse(spec)
	if err != nil {
		return fmt.Errorf("badgerstore: parse gc schedule %q: %w", spec, err)
	}
	if s.inMemory {
		return nil
	}
	if s.cron == nil {
		s.cron = cron.New(cron.WithParser(cronParser))
		s.cron.Start()
	}
	s.cron.Schedule(sched, cron.FuncJob(func() { s.runGC(ratio) }))
	return nil
}

func (s *Store) runGC(ratio float64) {
	rewrites := 0
	for {
		err := s.db.RunValueLogGC(ratio)
		if err == nil {
			rewrites++
			continue
		}
		if !errors.Is(err, badger.ErrNoRewrite) {
			s.logger.Warn("badger value log GC error", slog.String("error", err.Error()))
		}
		break
	}
	s.logger.Debug("badger value log GC finished", slog.Int("rewrites", rewrites))
}

type reader struct {
	txn *badger.Txn
}

func (r reader) Get(key []byte) ([]byte, error) {
	item, err := r.txn.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("badgerstore: get: %w", err)
	}
	v, err := item.ValueCopy(nil)
	if err != nil {
		return nil, fmt.Errorf("badgerstore: read value: %w", err)
	}
	return v, nil
}

type writer struct {
	reader
}

// Create reads the key first so the commit conflict-checks it.
func (w writer) Create(key, value []byte) error {
	_, err := w.Get(key)
	switch {
	case err == nil:
		return store.ErrExists
	case !errors.Is(err, store.ErrNotFound):
		return err
	}
	return w.Put(key, value)
}

func (w writer) Put(key, value []byte) error {
	k := append([]byte(nil), key...)
	v := append([]byte(nil), value...)
	if err := w.txn.Set(k, v); err != nil {
		return fmt.Errorf("badgerstore: set: %w", err)
	}
	return nil
}
