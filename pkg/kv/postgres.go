// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passkey.
//
// go-passkey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package kv

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// PostgresStore is a Postgres-backed implementation of Store. The version
// check in Put is performed inside a single UPDATE so concurrent writers
// are serialized by the database.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection pool for dsn and runs the embedded
// schema migrations.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	s := &PostgresStore{db: db}
	if err := s.runMigrations(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}

	return s, nil
}

func (s *PostgresStore) runMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations)

	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	return goose.UpContext(ctx, s.db, "migrations")
}

// Get returns the value and current version for key.
func (s *PostgresStore) Get(ctx context.Context, key string) ([]byte, uint64, error) {
	query := `SELECT value, version FROM user_records WHERE key = $1`

	var value []byte
	var version uint64
	err := s.db.QueryRowContext(ctx, query, key).Scan(&value, &version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, 0, ErrKeyNotFound
		}
		return nil, 0, fmt.Errorf("db error: %w", err)
	}

	return value, version, nil
}

// Put writes value under key with compare-and-swap semantics.
func (s *PostgresStore) Put(ctx context.Context, key string, value []byte, version uint64) (uint64, error) {
	if version == 0 {
		query := `INSERT INTO user_records (key, value, version)
		          VALUES ($1, $2, 1)
		          ON CONFLICT (key) DO NOTHING`

		res, err := s.db.ExecContext(ctx, query, key, value)
		if err != nil {
			return 0, fmt.Errorf("db error: %w", err)
		}
		inserted, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("db error: %w", err)
		}
		if inserted == 0 {
			return 0, ErrVersionConflict
		}
		return 1, nil
	}

	query := `UPDATE user_records SET value = $2, version = version + 1
	          WHERE key = $1 AND version = $3`

	res, err := s.db.ExecContext(ctx, query, key, value, version)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	updated, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	if updated == 0 {
		return 0, ErrVersionConflict
	}

	return version + 1, nil
}

// Close closes the underlying connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
