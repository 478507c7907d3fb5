package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/grdb/internal/ir"
)

// Migration reports the layout versions of a file before and after open.
type Migration struct {
	From int
	To   int
}

// Applied reports whether any step ran.
func (m Migration) Applied() bool {
	return m.From != m.To
}

// step upgrades a file by exactly one version. It runs inside the
// transaction that also records the new version, so it is applied fully or
// not at all. Every step must be safe on a file that already has some of its
// changes.
type step func(ctx context.Context, tx *sql.Tx) error

// Schema version tracking:
// 1 - pre-versioning layout (no schema_version row)
// 2 - raster_info.user_coordinates
// 3 - pulses.variant and pulses.annotations replace pulses.is_reference
// 4 - pulses.pass_number, pulses.noise, raster_info.repetitions_config
// 5 - pulse_composition.composition_type, nullable position and shift
//
// steps[v] upgrades a file from version v to v+1.
var steps = [...]step{
	1: migrateToV2,
	2: migrateToV3,
	3: migrateToV4,
	4: migrateToV5,
}

// migrate drives the step registry until the file is current.
// The version is re-read before every step so a step never runs twice.
func migrate(ctx context.Context, db *sql.DB) (Migration, error) {
	from, err := readVersion(ctx, db)
	if err != nil {
		return Migration{}, ir.Wrap(ir.ErrCodeMigrationFailure, err, "read schema version")
	}
	if from > ir.CurrentSchemaVersion {
		return Migration{}, &ir.Error{
			Code: ir.ErrCodeMigrationFailure,
			Message: fmt.Sprintf("file schema version %d is newer than supported version %d",
				from, ir.CurrentSchemaVersion),
		}
	}

	version := from
	for version < ir.CurrentSchemaVersion {
		if version < 1 || version >= len(steps) || steps[version] == nil {
			return Migration{}, &ir.Error{
				Code:    ir.ErrCodeMigrationFailure,
				Message: fmt.Sprintf("no migration registered for version %d", version),
			}
		}

		if err := applyStep(ctx, db, version, steps[version]); err != nil {
			return Migration{}, err
		}

		next, err := readVersion(ctx, db)
		if err != nil {
			return Migration{}, ir.Wrap(ir.ErrCodeMigrationFailure, err, "read schema version")
		}
		if next <= version {
			return Migration{}, &ir.Error{
				Code:    ir.ErrCodeMigrationFailure,
				Message: fmt.Sprintf("migration from version %d did not advance the schema version", version),
			}
		}
		version = next
	}

	return Migration{From: from, To: version}, nil
}

func applyStep(ctx context.Context, db *sql.DB, version int, fn step) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return ir.Wrap(ir.ErrCodeMigrationFailure, err, "begin migration %d", version)
	}
	defer tx.Rollback() // No-op if committed

	if err := fn(ctx, tx); err != nil {
		return ir.Wrap(ir.ErrCodeMigrationFailure, err, "migrate v%d to v%d", version, version+1)
	}

	// Recording the version is the last statement of the step.
	if err := writeVersion(ctx, tx, version+1); err != nil {
		return ir.Wrap(ir.ErrCodeMigrationFailure, err, "migrate v%d to v%d", version, version+1)
	}

	if err := tx.Commit(); err != nil {
		return ir.Wrap(ir.ErrCodeMigrationFailure, err, "commit migration %d", version)
	}
	return nil
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// readVersion returns the stored version. A file without the version table
// or without its row predates versioning and reads as 1.
func readVersion(ctx context.Context, q querier) (int, error) {
	ok, err := tableExists(ctx, q, "schema_version")
	if err != nil || !ok {
		return 1, err
	}

	var version int
	err = q.QueryRowContext(ctx, `SELECT version FROM schema_version ORDER BY id LIMIT 1`).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 1, nil
	}
	if err != nil {
		return 0, fmt.Errorf("query schema_version: %w", err)
	}
	return version, nil
}

// writeVersion stores version, creating the table and row when missing.
func writeVersion(ctx context.Context, q querier, version int) error {
	if _, err := q.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_version (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			version INTEGER NOT NULL
		)`); err != nil {
		return fmt.Errorf("create schema_version: %w", err)
	}

	res, err := q.ExecContext(ctx, `UPDATE schema_version SET version = ?`, version)
	if err != nil {
		return fmt.Errorf("update schema_version: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update schema_version: %w", err)
	}
	if n > 0 {
		return nil
	}

	if _, err := q.ExecContext(ctx, `INSERT INTO schema_version (id, version) VALUES (1, ?)`, version); err != nil {
		return fmt.Errorf("insert schema_version: %w", err)
	}
	return nil
}

// Pre-versioning table shapes. migrateToV2 creates whichever is missing so
// every later step can assume the tables exist.
var legacyTables = []string{
	`CREATE TABLE IF NOT EXISTS pulses (
		uuid TEXT PRIMARY KEY,
		time BLOB NOT NULL,
		signal BLOB NOT NULL,
		timestamp INTEGER NOT NULL,
		x REAL,
		y REAL,
		z REAL,
		reference TEXT,
		is_reference BOOLEAN NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS raster_info (
		id TEXT PRIMARY KEY,
		device_serial_number TEXT NOT NULL,
		device_firmware_version TEXT NOT NULL,
		app_version TEXT NOT NULL,
		timestamp INTEGER NOT NULL,
		annotations TEXT NOT NULL,
		device_configuration TEXT NOT NULL,
		patterns TEXT NOT NULL,
		stepsize REAL NOT NULL,
		reference_point TEXT,
		acquire_ref_every INTEGER
	)`,
	`CREATE TABLE IF NOT EXISTS pulse_composition (
		id INTEGER PRIMARY KEY,
		final_uuid TEXT NOT NULL REFERENCES pulses(uuid),
		source_uuid TEXT NOT NULL REFERENCES pulses(uuid),
		position INTEGER NOT NULL,
		shift REAL NOT NULL,
		UNIQUE(final_uuid, position),
		UNIQUE(final_uuid, source_uuid)
	)`,
}

// migrateToV2 adds the coordinate transform column to raster_info.
func migrateToV2(ctx context.Context, tx *sql.Tx) error {
	for _, ddl := range legacyTables {
		if _, err := tx.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("create legacy table: %w", err)
		}
	}
	return addColumn(ctx, tx, "raster_info", "user_coordinates", "TEXT")
}

// migrateToV3 replaces pulses.is_reference with the variant and annotations
// columns. Legacy flags map 1 to reference and 0 to sample.
func migrateToV3(ctx context.Context, tx *sql.Tx) error {
	if err := addColumn(ctx, tx, "pulses", "variant", "TEXT"); err != nil {
		return err
	}
	if err := addColumn(ctx, tx, "pulses", "annotations", "TEXT"); err != nil {
		return err
	}

	legacy, err := columnExists(ctx, tx, "pulses", "is_reference")
	if err != nil {
		return err
	}
	if legacy {
		statements := []string{
			`UPDATE pulses SET variant = 'reference' WHERE is_reference = 1`,
			`UPDATE pulses SET variant = 'sample' WHERE is_reference = 0`,
			`ALTER TABLE pulses DROP COLUMN is_reference`,
		}
		if err := execAll(ctx, tx, statements); err != nil {
			return err
		}
	}

	_, err = tx.ExecContext(ctx, `UPDATE pulses SET annotations = '[]' WHERE annotations IS NULL`)
	if err != nil {
		return fmt.Errorf("backfill annotations: %w", err)
	}
	return nil
}

// migrateToV4 adds pass numbers, noise references and the repetitions
// config. Existing rows keep NULL.
func migrateToV4(ctx context.Context, tx *sql.Tx) error {
	columns := []struct{ table, name, typ string }{
		{"pulses", "pass_number", "INTEGER"},
		{"pulses", "noise", "TEXT"},
		{"raster_info", "repetitions_config", "TEXT"},
	}
	for _, c := range columns {
		if err := addColumn(ctx, tx, c.table, c.name, c.typ); err != nil {
			return err
		}
	}
	return nil
}

// compositionTableDDL is the current pulse_composition shape with a
// placeholder for the table name.
const compositionTableDDL = `CREATE TABLE %s (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		final_uuid TEXT NOT NULL REFERENCES pulses(uuid),
		source_uuid TEXT NOT NULL REFERENCES pulses(uuid),
		position INTEGER,
		shift REAL,
		composition_type TEXT NOT NULL,
		UNIQUE(final_uuid, position),
		UNIQUE(final_uuid, source_uuid),
		CHECK (
			(composition_type = 'stitch' AND position IS NOT NULL AND shift IS NOT NULL)
			OR (composition_type = 'average' AND position IS NULL AND shift IS NULL)
		)
	)`

var compositionIndexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_pulse_composition_final ON pulse_composition(final_uuid)`,
	`CREATE INDEX IF NOT EXISTS idx_pulse_composition_source ON pulse_composition(source_uuid)`,
}

// migrateToV5 rebuilds pulse_composition so position and shift are nullable
// and composition_type exists. SQLite cannot relax NOT NULL or add a CHECK
// in place, so the table is copied into a new one and renamed. Every
// existing edge predates averaging and is backfilled as a stitch.
func migrateToV5(ctx context.Context, tx *sql.Tx) error {
	exists, err := tableExists(ctx, tx, "pulse_composition")
	if err != nil {
		return err
	}
	if !exists {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(compositionTableDDL, "pulse_composition")); err != nil {
			return fmt.Errorf("create pulse_composition: %w", err)
		}
		return execAll(ctx, tx, compositionIndexes)
	}

	rebuilt, err := columnExists(ctx, tx, "pulse_composition", "composition_type")
	if err != nil {
		return err
	}
	if rebuilt {
		return execAll(ctx, tx, compositionIndexes)
	}

	statements := []string{
		`DROP TABLE IF EXISTS pulse_composition_new`,
		fmt.Sprintf(compositionTableDDL, "pulse_composition_new"),
		`INSERT INTO pulse_composition_new (id, final_uuid, source_uuid, position, shift, composition_type)
			SELECT id, final_uuid, source_uuid, position, shift, 'stitch' FROM pulse_composition`,
		`DROP TABLE pulse_composition`,
		`ALTER TABLE pulse_composition_new RENAME TO pulse_composition`,
	}
	if err := execAll(ctx, tx, statements); err != nil {
		return err
	}
	return execAll(ctx, tx, compositionIndexes)
}

func tableExists(ctx context.Context, q querier, table string) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("look up table %s: %w", table, err)
	}
	return n > 0, nil
}

func columnExists(ctx context.Context, q querier, table, column string) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`, table, column,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("look up column %s.%s: %w", table, column, err)
	}
	return n > 0, nil
}

// addColumn adds a column unless it is already there.
func addColumn(ctx context.Context, q querier, table, column, typ string) error {
	ok, err := columnExists(ctx, q, table, column)
	if err != nil || ok {
		return err
	}
	stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, typ)
	if _, err := q.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("add column %s.%s: %w", table, column, err)
	}
	return nil
}

func execAll(ctx context.Context, q querier, statements []string) error {
	for _, stmt := range statements {
		if _, err := q.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("execute %q: %w", stmt, err)
		}
	}
	return nil
}
