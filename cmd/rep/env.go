package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"gorm.io/gorm"

	"github.com/zulandar/reputation/internal/config"
	"github.com/zulandar/reputation/internal/db"
	"github.com/zulandar/reputation/internal/events"
	"github.com/zulandar/reputation/internal/identity"
	"github.com/zulandar/reputation/internal/ledger"
	"github.com/zulandar/reputation/internal/record"
	"github.com/zulandar/reputation/internal/store"
	"github.com/zulandar/reputation/internal/store/badgerstore"
	"github.com/zulandar/reputation/internal/store/redisstore"
	"github.com/zulandar/reputation/internal/store/sqlstore"
)

// env is everything a command needs once the config is loaded.
type env struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    store.Store
	gormDB   *gorm.DB // nil for key-value backends
	bus      *events.Bus
	outbox   *events.Outbox
	registry *prometheus.Registry
	ledger   *ledger.Ledger
}

// openEnv loads the config at configPath and wires the ledger onto the
// configured store. Logs go to logOut.
func openEnv(ctx context.Context, configPath string, logOut io.Writer) (*env, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := newLogger(cfg.Log, logOut)
	if err != nil {
		return nil, err
	}

	s, gormDB, err := openStore(ctx, cfg.Store, logger)
	if err != nil {
		return nil, err
	}

	oracle, err := buildOracle(cfg.Identity, s, gormDB)
	if err != nil {
		s.Close()
		return nil, err
	}

	e := &env{
		cfg:      cfg,
		logger:   logger,
		store:    s,
		gormDB:   gormDB,
		bus:      events.NewBus(),
		registry: prometheus.NewRegistry(),
	}
	e.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	sinks := events.Multi{e.bus, events.Log{Logger: logger}}
	if cfg.Ledger.Outbox {
		e.outbox = events.NewOutbox(gormDB)
		sinks = append(sinks, e.outbox)
	}

	e.ledger = ledger.New(s, oracle,
		ledger.WithSink(sinks),
		ledger.WithLogger(logger),
		ledger.WithMetrics(ledger.NewMetrics(e.registry)),
		ledger.WithMaxAttempts(cfg.Store.MaxAttempts),
		ledger.WithFeedbackAuth(cfg.Ledger.RequireFeedbackAuth),
	)
	return e, nil
}

func (e *env) Close() error {
	return e.store.Close()
}

// newLogger builds the slog handler selected by the log section.
func newLogger(cfg config.LogConfig, w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, fmt.Errorf("log level %q: %w", cfg.Level, err)
	}
	opts := &slog.HandlerOptions{Level: level}

	switch strings.ToLower(cfg.Format) {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("log format %q is not one of text, json", cfg.Format)
	}
}

// openStore opens the configured substrate. SQL backends are migrated on
// open and also return the gorm handle for the identity registry and outbox.
func openStore(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (store.Store, *gorm.DB, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return store.NewMemory(), nil, nil

	case config.BackendSQLite, config.BackendMySQL:
		gormDB, err := openSQL(cfg)
		if err != nil {
			return nil, nil, err
		}
		if err := db.AutoMigrate(gormDB); err != nil {
			return nil, nil, err
		}
		return sqlstore.New(gormDB), gormDB, nil

	case config.BackendBadger:
		bcfg := badgerstore.DefaultConfig(cfg.Badger.Path)
		bcfg.InMemory = cfg.Badger.InMemory
		bcfg.SyncWrites = cfg.Badger.SyncWrites
		bcfg.Logger = logger.With("component", "badger")
		bs, err := badgerstore.Open(bcfg)
		if err != nil {
			return nil, nil, err
		}
		if cfg.Badger.GCSchedule != "" {
			if err := bs.ScheduleGC(cfg.Badger.GCSchedule, cfg.Badger.GCDiscardRatio); err != nil {
				bs.Close()
				return nil, nil, err
			}
		}
		return bs, nil, nil

	case config.BackendRedis:
		rs, err := redisstore.Open(ctx, redisstore.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		})
		if err != nil {
			return nil, nil, err
		}
		return rs, nil, nil
	}
	return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
}

func openSQL(cfg config.StoreConfig) (*gorm.DB, error) {
	if cfg.Backend == config.BackendSQLite {
		gormDB, err := db.OpenSQLite(cfg.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", cfg.SQLite.Path, err)
		}
		return gormDB, nil
	}
	gormDB, err := db.Connect(cfg.Dolt.Host, cfg.Dolt.Port, cfg.Dolt.Database)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", cfg.Dolt.Database, err)
	}
	return gormDB, nil
}

// buildOracle returns the identity registry named by the identity section.
func buildOracle(cfg config.IdentityConfig, s store.Store, gormDB *gorm.DB) (identity.Oracle, error) {
	switch cfg.Source {
	case config.IdentityStatic:
		static := make(identity.Static, len(cfg.Agents))
		for _, a := range cfg.Agents {
			owner, err := record.ParseIdentity(a.Owner)
			if err != nil {
				return nil, fmt.Errorf("identity agent %d: %w", a.ID, err)
			}
			static[a.ID] = owner
		}
		return static, nil
	case config.IdentitySQL:
		if gormDB == nil {
			return nil, errors.New("identity source sql needs a sql store")
		}
		return identity.NewSQLRegistry(gormDB), nil
	case config.IdentityStore:
		return identity.NewStoreRegistry(s), nil
	}
	return nil, fmt.Errorf("unknown identity source %q", cfg.Source)
}

// parseCaller decodes the --as flag.
func parseCaller(as string) (record.Identity, error) {
	if as == "" {
		return record.Identity{}, errors.New("--as is required")
	}
	id, err := record.ParseIdentity(as)
	if err != nil {
		return record.Identity{}, fmt.Errorf("--as: %w", err)
	}
	return id, nil
}
