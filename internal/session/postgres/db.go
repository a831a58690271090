package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/sqlassist/sqlassist/internal/config"
)

const defaultPingTimeout = 5 * time.Second

type DBConfig struct {
	DSN             string
	ApplicationName string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
	// StatementTimeout and LockTimeout become server settings on every
	// connection. Zero keeps the server default.
	StatementTimeout time.Duration
	LockTimeout      time.Duration
	PingTimeout      time.Duration
}

// DBConfigFromSessions maps the session-store settings of binary onto a
// DBConfig. The binary name shows up as application_name in pg_stat_activity.
func DBConfigFromSessions(cfg config.SessionsConfig, binary string) DBConfig {
	return DBConfig{
		DSN:              cfg.DSN,
		ApplicationName:  binary,
		MaxOpenConns:     cfg.MaxOpenConns,
		MaxIdleConns:     cfg.MaxIdleConns,
		ConnMaxIdleTime:  cfg.ConnMaxIdleTime,
		ConnMaxLifetime:  cfg.ConnMaxLifetime,
		StatementTimeout: cfg.StatementTimeout,
		LockTimeout:      cfg.LockTimeout,
	}
}

// Open connects to the session store through pgx and checks it answers.
func Open(ctx context.Context, cfg DBConfig) (*sql.DB, error) {
	connConfig, err := connConfigFor(cfg)
	if err != nil {
		return nil, err
	}
	db := stdlib.OpenDB(*connConfig)

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingTimeout := cfg.PingTimeout
	if pingTimeout <= 0 {
		pingTimeout = defaultPingTimeout
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sessions db: %w", err)
	}
	return db, nil
}

func connConfigFor(cfg DBConfig) (*pgx.ConnConfig, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("sessions dsn is required")
	}
	connConfig, err := pgx.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse sessions dsn: %w", err)
	}
	if connConfig.RuntimeParams == nil {
		connConfig.RuntimeParams = map[string]string{}
	}
	if cfg.ApplicationName != "" {
		connConfig.RuntimeParams["application_name"] = cfg.ApplicationName
	}
	if cfg.StatementTimeout > 0 {
		connConfig.RuntimeParams["statement_timeout"] = milliseconds(cfg.StatementTimeout)
	}
	if cfg.LockTimeout > 0 {
		connConfig.RuntimeParams["lock_timeout"] = milliseconds(cfg.LockTimeout)
	}
	return connConfig, nil
}

func milliseconds(d time.Duration) string {
	return strconv.FormatInt(d.Milliseconds(), 10)
}
