package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/roach88/grdb/internal/ir"
	"github.com/roach88/grdb/internal/querysql"
)

//go:embed schema.sql
var schemaSQL string

// Store is an open raster file.
type Store struct {
	db        *sql.DB
	path      string
	migration Migration
}

// Tx is the handle passed to scoped callbacks. All reads and writes of one
// public operation go through a single Tx.
type Tx struct {
	tx       *sql.Tx
	compiler *querysql.SQLCompiler
}

// Open opens an existing raster file and migrates it to the current layout.
//
// Returns a NotFound error if path does not exist. The store is configured
// with:
//   - DELETE journal mode (no -wal/-shm side files)
//   - FULL synchronous mode
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement (enabled after migrations complete)
func Open(ctx context.Context, path string) (*Store, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ir.NotFoundf("file %q does not exist", path)
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	s, err := openDB(ctx, path)
	if err != nil {
		return nil, err
	}

	m, err := migrate(ctx, s.db)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.migration = m

	if err := s.enableForeignKeys(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// openDB opens the database and applies pragmas. Foreign keys stay off so
// legacy files can be rebuilt by migrations.
func openDB(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// A raster file has exactly one user; one connection keeps pragmas
	// and the transaction on the same handle.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := applyPragmas(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Migration reports the versions the file moved between when it was opened.
func (s *Store) Migration() Migration {
	return s.migration
}

// Update runs fn inside a read-write transaction. The transaction commits if
// fn returns nil and rolls back otherwise.
func (s *Store) Update(ctx context.Context, fn func(*Tx) error) error {
	return s.withTx(ctx, true, fn)
}

// View runs fn inside a transaction that is always rolled back, so nothing
// fn does can reach the file.
func (s *Store) View(ctx context.Context, fn func(*Tx) error) error {
	return s.withTx(ctx, false, fn)
}

func (s *Store) withTx(ctx context.Context, commit bool, fn func(*Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if err := fn(&Tx{tx: tx, compiler: querysql.NewSQLCompiler()}); err != nil {
		return err
	}
	if !commit {
		return nil
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// SchemaVersion returns the layout version stored in the file.
func (t *Tx) SchemaVersion(ctx context.Context) (int, error) {
	return readVersion(ctx, t.tx)
}

// Update opens path, runs fn in one read-write transaction and closes the
// file on every path. The returned Migration reports any upgrade applied on
// open.
func Update(ctx context.Context, path string, fn func(*Tx) error) (Migration, error) {
	s, err := Open(ctx, path)
	if err != nil {
		return Migration{}, err
	}
	defer s.Close()

	return s.migration, s.Update(ctx, fn)
}

// View opens path, runs fn in one transaction that is rolled back and
// closes the file.
func View(ctx context.Context, path string, fn func(*Tx) error) (Migration, error) {
	s, err := Open(ctx, path)
	if err != nil {
		return Migration{}, err
	}
	defer s.Close()

	return s.migration, s.View(ctx, fn)
}

// Create makes a new raster file at the current layout and runs fn in the
// same transaction that creates the schema. The file is removed if any step
// fails, so a failed Create leaves nothing behind.
//
// Returns a Validation error if path already exists.
func Create(ctx context.Context, path string, fn func(*Tx) error) (err error) {
	if _, statErr := os.Stat(path); statErr == nil {
		return ir.Validationf("file %q already exists", path)
	} else if !errors.Is(statErr, fs.ErrNotExist) {
		return fmt.Errorf("stat %s: %w", path, statErr)
	}

	s, err := openDB(ctx, path)
	if err != nil {
		return err
	}
	defer func() {
		s.Close()
		if err != nil {
			os.Remove(path)
			os.Remove(path + "-journal")
		}
	}()

	if err := s.enableForeignKeys(ctx); err != nil {
		return err
	}

	return s.Update(ctx, func(tx *Tx) error {
		if _, err := tx.tx.ExecContext(ctx, schemaSQL); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		if err := writeVersion(ctx, tx.tx, ir.CurrentSchemaVersion); err != nil {
			return err
		}
		return fn(tx)
	})
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = DELETE",
		"PRAGMA synchronous = FULL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = OFF",
	}

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("execute %q: %w", pragma, err)
		}
	}

	return nil
}

func (s *Store) enableForeignKeys(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		return fmt.Errorf("enable foreign keys: %w", err)
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
