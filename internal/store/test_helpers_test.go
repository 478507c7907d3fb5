package store

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/roach88/grdb/internal/ir"
)

// createTestStore creates a new empty raster file and opens it.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.grdb")
	if err := Create(context.Background(), path, func(*Tx) error { return nil }); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	s, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// openRaw opens path with the bare driver, without migrations or pragmas.
func openRaw(t *testing.T, path string) *sql.DB {
	t.Helper()
	db, err := sql.Open(driverName, path)
	if err != nil {
		t.Fatalf("sql.Open() failed: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

// testUUID returns a fixed uuid whose last group is n.
func testUUID(n int) uuid.UUID {
	return uuid.MustParse(fmt.Sprintf("00000000-0000-4000-8000-%012d", n))
}

func testUUIDs(ns ...int) []uuid.UUID {
	ids := make([]uuid.UUID, len(ns))
	for i, n := range ns {
		ids[i] = testUUID(n)
	}
	return ids
}

// createTestPulse creates a final sample pulse with a three-point waveform.
func createTestPulse(n int) PulseRow {
	return PulseRow{
		UUID:        testUUID(n),
		Time:        []float64{0, 1, 2},
		Signal:      []float64{0.5, -0.25, 1},
		Timestamp:   int64(1000 + n),
		Point:       ir.Pt(float64(n), 0, 0),
		Variant:     ir.VariantSample,
		Annotations: []ir.KVPair{},
	}
}

// update runs fn in one committed transaction and fails the test on error.
func update(t *testing.T, s *Store, fn func(*Tx) error) {
	t.Helper()
	if err := s.Update(context.Background(), fn); err != nil {
		t.Fatalf("Update() failed: %v", err)
	}
}

// view runs fn in one rolled-back transaction and fails the test on error.
func view(t *testing.T, s *Store, fn func(*Tx) error) {
	t.Helper()
	if err := s.View(context.Background(), fn); err != nil {
		t.Fatalf("View() failed: %v", err)
	}
}

// tableColumns returns "name type notnull" per column, in declaration order.
func tableColumns(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()
	rows, err := db.Query(`SELECT name, type, "notnull" FROM pragma_table_info(?) ORDER BY cid`, table)
	if err != nil {
		t.Fatalf("table_info(%s) failed: %v", table, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var name, typ string
		var notNull int
		if err := rows.Scan(&name, &typ, &notNull); err != nil {
			t.Fatalf("scan table_info: %v", err)
		}
		cols = append(cols, fmt.Sprintf("%s %s %d", name, typ, notNull))
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("iterate table_info: %v", err)
	}
	return cols
}
