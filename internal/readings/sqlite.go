// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package readings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/qbridge/qbridge/internal/metrics"
)

const schemaVersion = 1

// SqliteStore persists readings in a WAL-mode SQLite database.
type SqliteStore struct {
	db *sql.DB
}

// OpenSqlite opens (and migrates) the readings database at path.
func OpenSqlite(path string) (*SqliteStore, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	s := &SqliteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("readings: migration failed: %w", err)
	}
	return s, nil
}

// openDB sets the pragmas in the DSN so they apply to every connection in
// the pool.
func openDB(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("readings: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxLifetime(time.Hour)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("readings: sqlite ping: %w", err)
	}
	return db, nil
}

func (s *SqliteStore) migrate() error {
	var currentVersion int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&currentVersion); err != nil {
		return err
	}
	if currentVersion >= schemaVersion {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	schema := `
	CREATE TABLE IF NOT EXISTS readings (
		param TEXT NOT NULL,
		value REAL NOT NULL,
		unit TEXT NOT NULL DEFAULT '',
		ts_ns INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_readings_param_ts ON readings(param, ts_ns);
	`
	if _, err := tx.Exec(schema); err != nil {
		return err
	}
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SqliteStore) Append(ctx context.Context, r Reading) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO readings (param, value, unit, ts_ns) VALUES (?, ?, ?, ?)`,
		r.Param, r.Value, r.Unit, r.TS.UnixNano(),
	)
	if err != nil {
		metrics.IncReadingsError("sqlite")
		return fmt.Errorf("readings: append: %w", err)
	}
	metrics.IncReadingsWritten("sqlite")
	return nil
}

func (s *SqliteStore) Latest(ctx context.Context, param string) (Reading, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT param, value, unit, ts_ns FROM readings WHERE param = ? ORDER BY ts_ns DESC LIMIT 1`,
		param,
	)
	r, err := scanReading(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Reading{}, fmt.Errorf("%w: %s", ErrNoReadings, param)
	}
	return r, err
}

func (s *SqliteStore) Range(ctx context.Context, param string, from, to time.Time) ([]Reading, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT param, value, unit, ts_ns FROM readings
		 WHERE param = ? AND ts_ns >= ? AND ts_ns <= ? ORDER BY ts_ns ASC`,
		param, from.UnixNano(), to.UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("readings: range: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Reading
	for rows.Next() {
		r, err := scanReading(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SqliteStore) Close() error { return s.db.Close() }

type scanner interface {
	Scan(dest ...any) error
}

func scanReading(sc scanner) (Reading, error) {
	var r Reading
	var ns int64
	if err := sc.Scan(&r.Param, &r.Value, &r.Unit, &ns); err != nil {
		return Reading{}, err
	}
	r.TS = time.Unix(0, ns).UTC()
	return r, nil
}
