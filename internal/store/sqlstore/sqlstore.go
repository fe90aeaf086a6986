// Package sqlstore runs the ledger on a relational database through GORM.
//
// Every key lives in one row of the slots table. Create is an
// insert-if-absent (ON CONFLICT DO NOTHING on SQLite, ON DUPLICATE KEY UPDATE
// as a no-op on MySQL/Dolt) and a zero row count means the key was taken.
// On MySQL every read inside an update transaction takes a row lock with
// SELECT ... FOR UPDATE, so two submitters for one (agent, client) pair
// serialize on the client index row; a deadlock or lock-wait timeout is
// reported as store.ErrConflict and the caller retries. SQLite admits a
// single writer and needs no row locks.
package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/zulandar/reputation/internal/models"
	"github.com/zulandar/reputation/internal/store"
)

// MySQL error numbers that mean "lost a race, try again".
const (
	errLockWaitTimeout = 1205
	errDeadlock        = 1213
)

// Store is a store.Store backed by the slots table.
type Store struct {
	db   *gorm.DB
	lock bool
}

// New wraps an open GORM connection. The slots table must already exist
// (see db.AutoMigrate).
func New(db *gorm.DB) *Store {
	return &Store{
		db:   db,
		lock: db.Dialector.Name() == "mysql",
	}
}

func (s *Store) Name() string { return "sql/" + s.db.Dialector.Name() }

// DB returns the underlying connection, shared with the outbox and the SQL
// identity registry.
func (s *Store) DB() *gorm.DB { return s.db }

func (s *Store) View(ctx context.Context, fn func(store.Reader) error) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&sqlTxn{tx: tx})
	})
	return mapErr(err)
}

func (s *Store) Update(ctx context.Context, fn func(store.Txn) error) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&sqlTxn{tx: tx, lock: s.lock, writable: true})
	})
	return mapErr(err)
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("sqlstore: close: %w", err)
	}
	return sqlDB.Close()
}

type sqlTxn struct {
	tx       *gorm.DB
	lock     bool
	writable bool
}

func (t *sqlTxn) Get(key []byte) ([]byte, error) {
	q := t.tx.Where("address = ?", key)
	if t.lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var slot models.Slot
	if err := q.Take(&slot).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, mapErr(fmt.Errorf("sqlstore: get %x: %w", key, err))
	}
	return slot.Value, nil
}

func (t *sqlTxn) Create(key, value []byte) error {
	if !t.writable {
		return errors.New("sqlstore: create in read-only transaction")
	}
	slot := newSlot(key, value)
	result := t.tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&slot)
	if result.Error != nil {
		return mapErr(fmt.Errorf("sqlstore: create %x: %w", key, result.Error))
	}
	if result.RowsAffected == 0 {
		return store.ErrExists
	}
	return nil
}

func (t *sqlTxn) Put(key, value []byte) error {
	if !t.writable {
		return errors.New("sqlstore: put in read-only transaction")
	}
	slot := newSlot(key, value)
	result := t.tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "address"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&slot)
	if result.Error != nil {
		return mapErr(fmt.Errorf("sqlstore: put %x: %w", key, result.Error))
	}
	return nil
}

func newSlot(key, value []byte) models.Slot {
	var kind uint8
	if len(key) > 0 {
		kind = key[0]
	}
	return models.Slot{
		Address:   append([]byte(nil), key...),
		Kind:      kind,
		Value:     append([]byte{}, value...),
		UpdatedAt: time.Now().UTC(),
	}
}

// mapErr turns MySQL deadlocks and lock-wait timeouts into store.ErrConflict.
func mapErr(err error) error {
	if err == nil || errors.Is(err, store.ErrConflict) {
		return err
	}
	var myErr *mysqldriver.MySQLError
	if errors.As(err, &myErr) && (myErr.Number == errDeadlock || myErr.Number == errLockWaitTimeout) {
		return fmt.Errorf("%w: %v", store.ErrConflict, err)
	}
	return err
}
