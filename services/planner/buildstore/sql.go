// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package buildstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	_ "modernc.org/sqlite"             // pure go sqlite driver

	"github.com/AleutianAI/treeplanner/services/planner/allocation"
)

const defaultDSN = "postgres://localhost/planner?sslmode=disable"

// sqlOpen opens database handles; a var so driver wiring stays in one place.
var sqlOpen = sql.Open

// dialect holds the differences between sqlite and postgres.
type dialect struct {
	driver   string
	numbered bool // $1-style placeholders
}

var (
	sqliteDialect   = dialect{driver: "sqlite"}
	postgresDialect = dialect{driver: "pgx", numbered: true}
)

// rebind rewrites ? placeholders to $n for numbered dialects.
func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

const createBuildsTable = `CREATE TABLE IF NOT EXISTS builds (
	name TEXT PRIMARY KEY,
	id TEXT NOT NULL,
	payload TEXT NOT NULL,
	created_at BIGINT NOT NULL,
	updated_at BIGINT NOT NULL
)`

// SQL is a Store on database/sql, used for both sqlite and postgres. The
// snapshot is stored as JSON text; timestamps as unix milliseconds.
type SQL struct {
	db *sql.DB
	d  dialect
}

// OpenSQLite opens or creates a sqlite database file.
func OpenSQLite(ctx context.Context, path string) (*SQL, error) {
	if path == "" {
		path = "planner.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sqlOpen(sqliteDialect.driver, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// sqlite serialises writers; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	return newSQL(ctx, db, sqliteDialect)
}

// OpenPostgres connects with dsn (a local default when empty).
func OpenPostgres(ctx context.Context, dsn string) (*SQL, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	db, err := sqlOpen(postgresDialect.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return newSQL(ctx, db, postgresDialect)
}

func newSQL(ctx context.Context, db *sql.DB, d dialect) (*SQL, error) {
	if _, err := db.ExecContext(ctx, createBuildsTable); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create builds table: %w", err)
	}
	return &SQL{db: db, d: d}, nil
}

func (s *SQL) Save(ctx context.Context, b Build) (saved Build, retErr error) {
	if err := checkName(b.Name); err != nil {
		return Build{}, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Build{}, err
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	var prev *Build
	var id string
	var created int64
	err = tx.QueryRowContext(ctx, s.d.rebind(`SELECT id, created_at FROM builds WHERE name = ?`), b.Name).Scan(&id, &created)
	switch {
	case err == nil:
		prev = &Build{ID: id, CreatedAt: time.UnixMilli(created).UTC()}
	case !errors.Is(err, sql.ErrNoRows):
		return Build{}, fmt.Errorf("select build: %w", err)
	}

	saved = stamp(b, prev, time.Now())
	payload, err := json.Marshal(saved.Snapshot)
	if err != nil {
		return Build{}, fmt.Errorf("encode snapshot: %w", err)
	}
	_, err = tx.ExecContext(ctx, s.d.rebind(`INSERT INTO builds (name, id, payload, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`),
		saved.Name, saved.ID, string(payload), saved.CreatedAt.UnixMilli(), saved.UpdatedAt.UnixMilli())
	if err != nil {
		return Build{}, fmt.Errorf("upsert build: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Build{}, err
	}
	return saved, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBuild(row scanner) (Build, error) {
	var (
		b                Build
		payload          string
		created, updated int64
	)
	if err := row.Scan(&b.Name, &b.ID, &payload, &created, &updated); err != nil {
		return Build{}, err
	}
	var snap allocation.Snapshot
	if err := json.Unmarshal([]byte(payload), &snap); err != nil {
		return Build{}, fmt.Errorf("decode snapshot for %s: %w", b.Name, err)
	}
	b.Snapshot = snap
	b.CreatedAt = time.UnixMilli(created).UTC()
	b.UpdatedAt = time.UnixMilli(updated).UTC()
	return b, nil
}

func (s *SQL) Load(ctx context.Context, name string) (Build, error) {
	row := s.db.QueryRowContext(ctx, s.d.rebind(`SELECT name, id, payload, created_at, updated_at FROM builds WHERE name = ?`), name)
	b, err := scanBuild(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Build{}, ErrNotFound
	}
	return b, err
}

func (s *SQL) List(ctx context.Context) ([]Build, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, id, payload, created_at, updated_at FROM builds ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("select builds: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Build
	for rows.Next() {
		b, err := scanBuild(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *SQL) Delete(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, s.d.rebind(`DELETE FROM builds WHERE name = ?`), name)
	if err != nil {
		return fmt.Errorf("delete build: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DB exposes the handle for tests.
func (s *SQL) DB() *sql.DB { return s.db }

func (s *SQL) Close() error { return s.db.Close() }
