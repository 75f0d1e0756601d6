package tracking

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"scrivener/internal/fileutil"
)

//go:embed schema.sql
var schemaSQL string

const (
	sqliteFileName = "tracking.db"

	// schemaVersion is bumped whenever schema.sql changes incompatibly.
	schemaVersion = 1

	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// ErrSchemaMismatch indicates the database schema version doesn't match the expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// sqliteBackend keeps both lists in one database. The connection is opened
// lazily so that a cleared store leaves no file behind until the next write.
type sqliteBackend struct {
	mu   sync.Mutex
	path string
	db   *sql.DB
}

func newSQLiteBackend(path string) (*sqliteBackend, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}
	return &sqliteBackend{path: path}, nil
}

func (b *sqliteBackend) name() string { return "sqlite" }

func (b *sqliteBackend) files() []string {
	return []string{b.path, b.path + "-wal", b.path + "-shm", b.path + "-journal"}
}

// conn returns the open database. With create=false a missing database file
// yields nil so read paths never create one.
func (b *sqliteBackend) conn(ctx context.Context, create bool) (*sql.DB, error) {
	if b.db != nil {
		return b.db, nil
	}
	if !create {
		exists, err := fileutil.RegularFileExists(b.path)
		if err != nil {
			return nil, fmt.Errorf("stat tracking db: %w", err)
		}
		if !exists {
			return nil, nil
		}
	}

	db, err := sql.Open("sqlite", b.path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One connection serializes writers from concurrent workers.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=FULL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}
	if err := initSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	b.db = db
	return db, nil
}

func initSchema(ctx context.Context, db *sql.DB) error {
	var tableExists int
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin schema tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()
		if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit schema: %w", err)
		}
		return nil
	}

	var version int
	if err := db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (run 'scrivener tracking clear' or delete the database)",
			ErrSchemaMismatch, version, schemaVersion)
	}
	return nil
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

// withTx runs fn inside a transaction on a (possibly new) database.
func (b *sqliteBackend) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	db, err := b.conn(ctx, true)
	if err != nil {
		return err
	}
	return retryOnBusy(ctx, func() error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if err := fn(tx); err != nil {
			_ = tx.Rollback()
			return err
		}
		return tx.Commit()
	})
}

func (b *sqliteBackend) state(ctx context.Context) (RunState, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	db, err := b.conn(ctx, false)
	if err != nil || db == nil {
		return RunState{}, false, err
	}
	var (
		state      RunState
		discovered string
	)
	err = db.QueryRowContext(ctx, "SELECT source_dir, discovered_at FROM run_state WHERE id = 1").Scan(&state.SourceDir, &discovered)
	if errors.Is(err, sql.ErrNoRows) {
		return RunState{}, false, nil
	}
	if err != nil {
		return RunState{}, false, err
	}
	if ts, parseErr := time.Parse(time.RFC3339Nano, discovered); parseErr == nil {
		state.DiscoveredAt = ts
	}
	return state, true, nil
}

func (b *sqliteBackend) reset(ctx context.Context, state RunState, paths []string) error {
	return b.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM pending"); err != nil {
			return fmt.Errorf("truncate pending: %w", err)
		}
		if err := upsertState(ctx, tx, state); err != nil {
			return err
		}
		stmt, err := tx.PrepareContext(ctx, "INSERT OR IGNORE INTO pending (list, path, added_at) VALUES (?, ?, ?)")
		if err != nil {
			return fmt.Errorf("prepare insert: %w", err)
		}
		defer stmt.Close()
		now := nowString()
		for _, path := range paths {
			if _, err := stmt.ExecContext(ctx, string(ListPreprocess), path, now); err != nil {
				return fmt.Errorf("insert %s: %w", path, err)
			}
		}
		return nil
	})
}

func (b *sqliteBackend) ensureState(ctx context.Context, state RunState) error {
	return b.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO run_state (id, source_dir, discovered_at) VALUES (1, ?, ?)",
			state.SourceDir, state.DiscoveredAt.UTC().Format(time.RFC3339Nano))
		return err
	})
}

func upsertState(ctx context.Context, tx *sql.Tx, state RunState) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO run_state (id, source_dir, discovered_at) VALUES (1, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET source_dir = excluded.source_dir, discovered_at = excluded.discovered_at`,
		state.SourceDir, state.DiscoveredAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("record run state: %w", err)
	}
	return nil
}

func (b *sqliteBackend) add(ctx context.Context, list List, path string) error {
	return b.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, "INSERT OR IGNORE INTO pending (list, path, added_at) VALUES (?, ?, ?)", string(list), path, nowString())
		return err
	})
}

func (b *sqliteBackend) remove(ctx context.Context, list List, path string) error {
	return b.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, "DELETE FROM pending WHERE list = ? AND path = ?", string(list), path)
		return err
	})
}

func (b *sqliteBackend) transfer(ctx context.Context, from List, fromPath string, to List, toPath string) error {
	return b.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "INSERT OR IGNORE INTO pending (list, path, added_at) VALUES (?, ?, ?)", string(to), toPath, nowString()); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, "DELETE FROM pending WHERE list = ? AND path = ?", string(from), fromPath)
		return err
	})
}

func (b *sqliteBackend) read(ctx context.Context, list List) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	db, err := b.conn(ctx, false)
	if err != nil || db == nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, "SELECT path FROM pending WHERE list = ? ORDER BY seq", string(list))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var paths []string
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, rows.Err()
}

func (b *sqliteBackend) clear(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.db != nil {
		if err := b.db.Close(); err != nil {
			return fmt.Errorf("close tracking db: %w", err)
		}
		b.db = nil
	}
	for _, file := range b.files() {
		if err := fileutil.RemoveIfExists(file); err != nil {
			return err
		}
	}
	return nil
}

func (b *sqliteBackend) close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.db == nil {
		return nil
	}
	err := b.db.Close()
	b.db = nil
	return err
}

func nowString() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
