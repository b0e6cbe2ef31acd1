package main

import (
	"database/sql"
	"io"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/redis/go-redis/v9"

	"github.com/goliatone/go-orderfsm/config"
	"github.com/goliatone/go-orderfsm/fsm"
	"github.com/goliatone/go-orderfsm/orders"
	"github.com/goliatone/go-orderfsm/store"
)

// app holds what a command needs once configuration is resolved.
type app struct {
	cfg     config.Config
	logger  fsm.Logger
	store   store.Store
	closers []io.Closer
}

func newApp(g *Globals, s *streams) (*app, error) {
	cfg, err := loadConfig(g)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: newLogger(cfg.Log, s.err)}
	if err := a.openStore(); err != nil {
		return nil, err
	}
	return a, nil
}

func loadConfig(g *Globals) (config.Config, error) {
	cfg, err := config.Load(g.Config)
	if err != nil {
		return cfg, err
	}
	if v := strings.TrimSpace(g.LogLevel); v != "" {
		cfg.Log.Level = strings.ToLower(v)
	}
	if g.LogFormat != "" {
		cfg.Log.Format = g.LogFormat
	}
	if g.Store != "" {
		cfg.Store.Driver = g.Store
	}
	if v := strings.TrimSpace(g.DSN); v != "" {
		cfg.Store.SQLite.DSN = v
	}
	if v := strings.TrimSpace(g.RedisAddr); v != "" {
		cfg.Store.Redis.Addr = v
	}
	return cfg, cfg.Validate()
}

func (a *app) openStore() error {
	switch a.cfg.Store.Driver {
	case config.DriverSQLite:
		db, err := sql.Open("sqlite3", a.cfg.Store.SQLite.DSN)
		if err != nil {
			return err
		}
		db.SetMaxOpenConns(1)
		a.closers = append(a.closers, db)
		a.store = store.NewSQLiteStore(db, a.cfg.Store.SQLite.Table)
	case config.DriverRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     a.cfg.Store.Redis.Addr,
			Password: a.cfg.Store.Redis.Password,
			DB:       a.cfg.Store.Redis.DB,
		})
		a.closers = append(a.closers, client)
		a.store = store.NewRedisStore(
			store.NewGoRedisClient(client),
			a.cfg.Store.Redis.TTL,
			store.WithKeyPrefix(a.cfg.Store.Redis.KeyPrefix),
		)
	default:
		a.logger.Debug("using in-memory store; orders do not outlive this process")
		a.store = store.NewInMemoryStore()
	}
	return nil
}

func (a *app) service(opts ...orders.Option) *orders.Service {
	return orders.NewService(a.store, append([]orders.Option{orders.WithLogger(a.logger)}, opts...)...)
}

func (a *app) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
