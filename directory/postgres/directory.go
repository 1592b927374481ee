// Package postgres implements redisidp.Directory over a PostgreSQL users
// table with pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/agriskills/goRecovery/provider/redisidp"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema is the table the Directory expects. Deleted accounts are kept with
// account_status = 'deleted' and are invisible to lookups.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
	id             TEXT PRIMARY KEY,
	email          TEXT UNIQUE,
	phone          TEXT UNIQUE,
	password_hash  TEXT NOT NULL DEFAULT '',
	account_status TEXT NOT NULL DEFAULT 'active',
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// querier is the subset of *pgxpool.Pool the directory needs.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type Directory struct {
	db querier
}

var _ redisidp.Directory = (*Directory)(nil)

func New(pool *pgxpool.Pool) *Directory {
	return &Directory{db: pool}
}

// PoolConfig tunes the connection pool opened by Connect.
type PoolConfig struct {
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	ConnectTimeout  time.Duration
}

// Connect opens a pool for dsn and pings it.
func Connect(ctx context.Context, dsn string, cfg PoolConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}

	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	if cfg.ConnectTimeout > 0 {
		poolConfig.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	}
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeCacheStatement

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return pool, nil
}

// Migrate creates the users table when missing.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, Schema)
	return err
}

const selectUser = `
	SELECT id, COALESCE(email, ''), COALESCE(phone, ''), password_hash
	FROM users
	WHERE %s = $1 AND account_status != 'deleted'
	LIMIT 1`

var (
	selectByEmail = fmt.Sprintf(selectUser, "lower(email)")
	selectByPhone = fmt.Sprintf(selectUser, "phone")
)

func (d *Directory) FindByEmail(ctx context.Context, email string) (redisidp.User, error) {
	return d.findOne(ctx, selectByEmail, strings.ToLower(strings.TrimSpace(email)))
}

func (d *Directory) FindByPhone(ctx context.Context, phone string) (redisidp.User, error) {
	return d.findOne(ctx, selectByPhone, phone)
}

func (d *Directory) UpdatePasswordHash(ctx context.Context, userID, passwordHash string) error {
	const q = `UPDATE users SET password_hash = $1, updated_at = NOW()
		WHERE id = $2 AND account_status != 'deleted'`

	tag, err := d.db.Exec(ctx, q, passwordHash, userID)
	if err != nil {
		return fmt.Errorf("update password for %s: %w", userID, err)
	}
	if tag.RowsAffected() == 0 {
		return redisidp.ErrUserNotFound
	}
	return nil
}

func (d *Directory) findOne(ctx context.Context, q, arg string) (redisidp.User, error) {
	var u redisidp.User
	err := d.db.QueryRow(ctx, q, arg).Scan(&u.ID, &u.Email, &u.Phone, &u.PasswordHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return redisidp.User{}, redisidp.ErrUserNotFound
		}
		return redisidp.User{}, err
	}
	return u, nil
}
