package db

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/johnanishgitc/salesdashboard/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Module provides the gorm handle backing the local replica.
var Module = fx.Module("db",
	fx.Provide(Open),
)

// Open opens the sqlite store configured by CACHE_DB_PATH. The store assumes
// a single writer, so the pool is pinned to one connection.
func Open(cfg config.Config, log *zap.Logger) (*gorm.DB, error) {
	dsn := cfg.CachePath
	if dsn == "" {
		dsn = ":memory:"
	}

	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open cache store: %w", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	log.Info("cache store opened", zap.String("path", dsn))
	return conn, nil
}

// NewTest opens an isolated in-memory store for tests.
func NewTest() (*gorm.DB, error) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return conn, nil
}
