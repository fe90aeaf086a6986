// Package redisstore runs the ledger on Redis using optimistic transactions.
//
// Every key read inside a transaction is WATCHed and writes are buffered
// until the transaction function returns; they are then applied in one
// MULTI/EXEC. If any watched key changed in between, EXEC aborts and the
// transaction reports store.ErrConflict.
package redisstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/zulandar/reputation/internal/store"
)

// viewAttempts bounds how often View re-reads when a watched key changes
// under it.
const viewAttempts = 8

// Config holds connection settings.
type Config struct {
	Addr     string
	Password string
	DB       int
	// Prefix is prepended to every key so several ledgers can share a
	// database.
	Prefix string
}

// Store is a store.Store backed by Redis strings.
type Store struct {
	client *redis.Client
	prefix string
}

// Open connects to Redis and verifies the connection.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redisstore: ping %s: %w", cfg.Addr, err)
	}
	return New(client, cfg.Prefix), nil
}

// New wraps an existing client.
func New(client *redis.Client, prefix string) *Store {
	return &Store{client: client, prefix: prefix}
}

func (s *Store) Name() string { return "redis" }

func (s *Store) Close() error { return s.client.Close() }

// View reads under WATCH and confirms with a PING-only MULTI/EXEC that nothing
// it read changed, re-running fn if something did.
func (s *Store) View(ctx context.Context, fn func(store.Reader) error) error {
	for attempt := 0; attempt < viewAttempts; attempt++ {
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			if err := fn(&redisTxn{ctx: ctx, tx: tx, prefix: s.prefix}); err != nil {
				return err
			}
			_, err := tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
				p.Ping(ctx)
				return nil
			})
			return err
		})
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return fmt.Errorf("redisstore: view: %w", store.ErrConflict)
}

func (s *Store) Update(ctx context.Context, fn func(store.Txn) error) error {
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		t := &redisTxn{ctx: ctx, tx: tx, prefix: s.prefix, writes: make(map[string][]byte)}
		if err := fn(t); err != nil {
			return err
		}
		if len(t.writes) == 0 {
			return nil
		}
		_, err := tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			for k, v := range t.writes {
				p.Set(ctx, k, v, 0)
			}
			return nil
		})
		return err
	})
	if errors.Is(err, redis.TxFailedErr) {
		return fmt.Errorf("redisstore: exec: %w", store.ErrConflict)
	}
	return err
}

type redisTxn struct {
	ctx    context.Context
	tx     *redis.Tx
	prefix string
	// writes is nil in read-only transactions.
	writes map[string][]byte
}

func (t *redisTxn) key(k []byte) string { return t.prefix + string(k) }

func (t *redisTxn) Get(k []byte) ([]byte, error) {
	key := t.key(k)
	if v, ok := t.writes[key]; ok {
		return append([]byte(nil), v...), nil
	}
	if err := t.tx.Watch(t.ctx, key).Err(); err != nil {
		return nil, fmt.Errorf("redisstore: watch: %w", err)
	}
	v, err := t.tx.Get(t.ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redisstore: get: %w", err)
	}
	return v, nil
}

func (t *redisTxn) Create(k, value []byte) error {
	if t.writes == nil {
		return errors.New("redisstore: create in read-only transaction")
	}
	_, err := t.Get(k)
	switch {
	case err == nil:
		return store.ErrExists
	case !errors.Is(err, store.ErrNotFound):
		return err
	}
	t.writes[t.key(k)] = append([]byte{}, value...)
	return nil
}

func (t *redisTxn) Put(k, value []byte) error {
	if t.writes == nil {
		return errors.New("redisstore: put in read-only transaction")
	}
	t.writes[t.key(k)] = append([]byte{}, value...)
	return nil
}
