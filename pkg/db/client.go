package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/campuscart/marketplace-backend/pkg/config"
	"github.com/campuscart/marketplace-backend/pkg/logger"
)

// Client owns the process-wide GORM handle.
type Client struct {
	conn *gorm.DB
}

// New opens the configured database, applies pool limits and verifies the
// connection with a ping before returning.
func New(ctx context.Context, cfg config.DBConfig, logg *logger.Logger) (*Client, error) {
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 newQueryLog(logg, cfg.SlowQuery),
		SkipDefaultTransaction: true,
		NowFunc:                func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driverName(cfg), err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("sql handle: %w", err)
	}
	tunePool(sqlDB, cfg)

	client := &Client{conn: conn}
	if err := client.Ping(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping %s: %w", driverName(cfg), err)
	}

	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"driver":         driverName(cfg),
			"max_open_conns": sqlDB.Stats().MaxOpenConnections,
		}), "database connection established")
	}
	return client, nil
}

// FromConn wraps an already opened connection, as tests do with dbtest.
func FromConn(conn *gorm.DB) *Client {
	return &Client{conn: conn}
}

func driverName(cfg config.DBConfig) string {
	if cfg.Driver == "" {
		return config.DBDriverPostgres
	}
	return cfg.Driver
}

func dialectorFor(cfg config.DBConfig) (gorm.Dialector, error) {
	switch driverName(cfg) {
	case config.DBDriverPostgres:
		if cfg.DSN == "" {
			return nil, errors.New("database DSN is required")
		}
		return postgres.New(postgres.Config{DSN: cfg.DSN, PreferSimpleProtocol: true}), nil
	case config.DBDriverSQLite:
		if cfg.SQLitePath == "" {
			return nil, errors.New("sqlite path is required")
		}
		return sqlite.Open(cfg.SQLitePath), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func tunePool(sqlDB *sql.DB, cfg config.DBConfig) {
	if driverName(cfg) == config.DBDriverSQLite {
		// sqlite allows a single writer
		sqlDB.SetMaxOpenConns(1)
		return
	}
	for _, apply := range []func(){
		func() {
			if cfg.MaxOpenConns > 0 {
				sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
			}
		},
		func() {
			if cfg.MaxIdleConns > 0 {
				sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
			}
		},
		func() {
			if cfg.ConnMaxLifetime > 0 {
				sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
			}
		},
		func() {
			if cfg.ConnMaxIdleTime > 0 {
				sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
			}
		},
	} {
		apply()
	}
}

func (c *Client) DB() *gorm.DB {
	return c.conn
}

func (c *Client) Ping(ctx context.Context) error {
	sqlDB, err := c.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (c *Client) Close() error {
	sqlDB, err := c.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// WithTx runs fn in a transaction bound to ctx. fn's error, or a panic,
// rolls back; a nil return commits.
func (c *Client) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return c.conn.WithContext(ctx).Transaction(fn)
}
