package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/roach88/grdb/internal/ir"
	"github.com/roach88/grdb/internal/queryir"
	"github.com/roach88/grdb/internal/waveform"
)

// maxInParams bounds the number of values bound in one IN list. SQLite
// builds before 3.32 cap host parameters at 999.
const maxInParams = 500

var pulseColumns = []string{
	"uuid", "time", "signal", "timestamp", "x", "y", "z",
	"reference", "variant", "noise", "pass_number", "annotations",
}

// PulseRow is one row of the pulses table.
type PulseRow struct {
	UUID        uuid.UUID
	Time        []float64
	Signal      []float64
	Timestamp   int64
	Point       ir.Point3D
	Reference   *uuid.UUID
	Variant     ir.Variant
	Noise       *uuid.UUID
	PassNumber  *int
	Annotations []ir.KVPair
}

// MeasurementRow builds the row of a final pulse.
func MeasurementRow(m ir.Measurement) PulseRow {
	return PulseRow{
		UUID:        m.Pulse.UUID,
		Time:        m.Pulse.Time,
		Signal:      m.Pulse.Signal,
		Timestamp:   m.Pulse.Timestamp,
		Point:       m.Point,
		Reference:   m.Reference,
		Variant:     m.Variant,
		Noise:       m.Pulse.Noise,
		PassNumber:  m.PassNumber,
		Annotations: m.Annotations,
	}
}

// SourceRow builds the row of a source pulse. Sources carry no point, no
// reference, no annotations and variant other.
func SourceRow(b ir.BaseTrace) PulseRow {
	return PulseRow{
		UUID:      b.UUID,
		Time:      b.Time,
		Signal:    b.Signal,
		Timestamp: b.Timestamp,
		Variant:   ir.VariantOther,
		Noise:     b.Noise,
	}
}

// BaseTrace returns the waveform part of the row.
func (r PulseRow) BaseTrace() ir.BaseTrace {
	return ir.BaseTrace{
		UUID:      r.UUID,
		Timestamp: r.Timestamp,
		Time:      r.Time,
		Signal:    r.Signal,
		Noise:     r.Noise,
	}
}

// Measurement merges the row's own fields with a reconstructed trace.
func (r PulseRow) Measurement(pulse ir.Trace) ir.Measurement {
	return ir.Measurement{
		Pulse:       pulse,
		Point:       r.Point,
		Variant:     r.Variant,
		Reference:   r.Reference,
		Annotations: r.Annotations,
		PassNumber:  r.PassNumber,
	}
}

// Page selects a window of final pulses. A zero Limit means no limit and an
// empty Variant matches every variant.
type Page struct {
	Offset  int
	Limit   int
	Variant ir.Variant
}

// InsertPulses appends pulse rows.
// Returns a DuplicateKey error naming the first uuid that already exists.
func (t *Tx) InsertPulses(ctx context.Context, rows []PulseRow) error {
	for _, r := range rows {
		inserted, err := t.insertPulse(ctx, r)
		if err != nil {
			return err
		}
		if !inserted {
			return &ir.Error{
				Code:    ir.ErrCodeDuplicateKey,
				Message: "pulse already exists",
				UUIDs:   []uuid.UUID{r.UUID},
			}
		}
	}
	return nil
}

// EnsurePulses inserts the rows whose uuid is not stored yet and returns the
// uuids that already existed, in input order.
func (t *Tx) EnsurePulses(ctx context.Context, rows []PulseRow) ([]uuid.UUID, error) {
	var existing []uuid.UUID
	for _, r := range rows {
		inserted, err := t.insertPulse(ctx, r)
		if err != nil {
			return nil, err
		}
		if !inserted {
			existing = append(existing, r.UUID)
		}
	}
	return existing, nil
}

// insertPulse uses ON CONFLICT(uuid) DO NOTHING so a duplicate uuid is
// reported through the affected row count. Other constraint failures still
// return errors.
func (t *Tx) insertPulse(ctx context.Context, r PulseRow) (bool, error) {
	annotations, err := ir.MarshalAnnotations(r.Annotations)
	if err != nil {
		return false, ir.Wrap(ir.ErrCodeValidation, err, "encode annotations of %s", r.UUID)
	}

	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO pulses
		(uuid, time, signal, timestamp, x, y, z, reference, variant, noise, pass_number, annotations)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(uuid) DO NOTHING
	`,
		r.UUID.String(),
		waveform.Pack(r.Time),
		waveform.Pack(r.Signal),
		r.Timestamp,
		nullFloat(r.Point.X),
		nullFloat(r.Point.Y),
		nullFloat(r.Point.Z),
		nullUUID(r.Reference),
		string(r.Variant),
		nullUUID(r.Noise),
		nullInt(r.PassNumber),
		annotations,
	)
	if err != nil {
		return false, classify(err, "insert pulse", r.UUID)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert pulse: %w", err)
	}
	return n > 0, nil
}

// finalsFilter matches pulses that are never the source of an edge.
func finalsFilter(variant ir.Variant) queryir.Predicate {
	var byVariant queryir.Predicate
	if variant != "" {
		byVariant = queryir.Equals{Field: "variant", Value: string(variant)}
	}
	return queryir.Where(
		queryir.NotIn{
			Field: "uuid",
			Sub:   queryir.Select{From: "pulse_composition", Columns: []string{"source_uuid"}},
		},
		byVariant,
	)
}

// FinalPulses returns a page of final pulses in insertion order.
// Pagination counts finals only, however many sources each one owns.
func (t *Tx) FinalPulses(ctx context.Context, page Page) ([]PulseRow, error) {
	return t.selectPulses(ctx, queryir.Select{
		From:    "pulses",
		Columns: pulseColumns,
		Filter:  finalsFilter(page.Variant),
		Page:    queryir.Page{Offset: page.Offset, Limit: page.Limit},
	})
}

// CountFinals counts final pulses of a variant, or of every variant when
// variant is empty.
func (t *Tx) CountFinals(ctx context.Context, variant ir.Variant) (int, error) {
	query, args, err := t.compiler.Compile(queryir.Count{From: "pulses", Filter: finalsFilter(variant)})
	if err != nil {
		return 0, fmt.Errorf("count finals: %w", err)
	}

	var n int
	if err := t.tx.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count finals: %w", err)
	}
	return n, nil
}

// PulsesByUUID loads the rows for ids. Unknown uuids are absent from the
// result.
func (t *Tx) PulsesByUUID(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]PulseRow, error) {
	result := make(map[uuid.UUID]PulseRow, len(ids))
	for _, chunk := range chunkUUIDs(ids) {
		rows, err := t.selectPulses(ctx, queryir.Select{
			From:    "pulses",
			Columns: pulseColumns,
			Filter:  queryir.In{Field: "uuid", Values: uuidValues(chunk)},
		})
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			result[r.UUID] = r
		}
	}
	return result, nil
}

// MissingUUIDs returns the ids with no pulse row, in input order and without
// repeats.
func (t *Tx) MissingUUIDs(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error) {
	found := make(map[uuid.UUID]bool, len(ids))
	for _, chunk := range chunkUUIDs(ids) {
		query, args, err := t.compiler.Compile(queryir.Select{
			From:    "pulses",
			Columns: []string{"uuid"},
			Filter:  queryir.In{Field: "uuid", Values: uuidValues(chunk)},
		})
		if err != nil {
			return nil, fmt.Errorf("look up uuids: %w", err)
		}

		rows, err := t.tx.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("look up uuids: %w", err)
		}
		for rows.Next() {
			var s string
			if err := rows.Scan(&s); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan uuid: %w", err)
			}
			id, err := parseUUID(s)
			if err != nil {
				rows.Close()
				return nil, err
			}
			found[id] = true
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("iterate uuids: %w", err)
		}
		rows.Close()
	}

	var missing []uuid.UUID
	for _, id := range ids {
		if !found[id] {
			missing = append(missing, id)
			found[id] = true
		}
	}
	return missing, nil
}

// SetReference points every pulse in ids at ref, or clears the reference
// when ref is nil. Callers check existence first.
func (t *Tx) SetReference(ctx context.Context, ids []uuid.UUID, ref *uuid.UUID) error {
	for _, chunk := range chunkUUIDs(ids) {
		query, args, err := t.compiler.Compile(queryir.Update{
			Table:  "pulses",
			Set:    []queryir.Assignment{{Field: "reference", Value: nullUUID(ref)}},
			Filter: queryir.In{Field: "uuid", Values: uuidValues(chunk)},
		})
		if err != nil {
			return fmt.Errorf("set reference: %w", err)
		}
		if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
			return classify(err, "set reference", chunk...)
		}
	}
	return nil
}

func (t *Tx) selectPulses(ctx context.Context, q queryir.Select) ([]PulseRow, error) {
	query, args, err := t.compiler.Compile(q)
	if err != nil {
		return nil, fmt.Errorf("query pulses: %w", err)
	}

	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query pulses: %w", err)
	}
	defer rows.Close()

	var result []PulseRow
	for rows.Next() {
		r, err := scanPulse(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pulses: %w", err)
	}

	// Return empty slice instead of nil
	if result == nil {
		result = []PulseRow{}
	}
	return result, nil
}

// scanPulse reads one row selected with pulseColumns.
func scanPulse(rows *sql.Rows) (PulseRow, error) {
	var (
		r                    PulseRow
		id                   string
		timeBlob, signalBlob []byte
		x, y, z              sql.NullFloat64
		reference, noise     sql.NullString
		variant, annotations sql.NullString
		passNumber           sql.NullInt64
	)
	if err := rows.Scan(&id, &timeBlob, &signalBlob, &r.Timestamp, &x, &y, &z,
		&reference, &variant, &noise, &passNumber, &annotations); err != nil {
		return PulseRow{}, fmt.Errorf("scan pulse: %w", err)
	}

	var err error
	if r.UUID, err = parseUUID(id); err != nil {
		return PulseRow{}, err
	}
	if r.Time, err = waveform.Unpack(timeBlob); err != nil {
		return PulseRow{}, withUUID(err, r.UUID)
	}
	if r.Signal, err = waveform.Unpack(signalBlob); err != nil {
		return PulseRow{}, withUUID(err, r.UUID)
	}

	r.Point = ir.Point3D{X: floatPtr(x), Y: floatPtr(y), Z: floatPtr(z)}

	if r.Reference, err = uuidPtr(reference); err != nil {
		return PulseRow{}, withUUID(err, r.UUID)
	}
	if r.Noise, err = uuidPtr(noise); err != nil {
		return PulseRow{}, withUUID(err, r.UUID)
	}

	// Legacy rows whose flag was NULL never received a variant.
	r.Variant = ir.VariantOther
	if variant.Valid {
		r.Variant = ir.Variant(variant.String)
	}
	if !r.Variant.Valid() {
		return PulseRow{}, &ir.Error{
			Code:    ir.ErrCodeCorruptEncoding,
			Message: fmt.Sprintf("unknown variant %q", r.Variant),
			UUIDs:   []uuid.UUID{r.UUID},
		}
	}

	if passNumber.Valid {
		n := int(passNumber.Int64)
		r.PassNumber = &n
	}

	if r.Annotations, err = ir.UnmarshalAnnotations(annotations.String); err != nil {
		return PulseRow{}, &ir.Error{
			Code:    ir.ErrCodeCorruptEncoding,
			Message: "malformed annotations",
			UUIDs:   []uuid.UUID{r.UUID},
			Err:     err,
		}
	}

	return r, nil
}

func chunkUUIDs(ids []uuid.UUID) [][]uuid.UUID {
	var chunks [][]uuid.UUID
	for len(ids) > maxInParams {
		chunks = append(chunks, ids[:maxInParams])
		ids = ids[maxInParams:]
	}
	if len(ids) > 0 {
		chunks = append(chunks, ids)
	}
	return chunks
}

func uuidValues(ids []uuid.UUID) []any {
	values := make([]any, len(ids))
	for i, id := range ids {
		values[i] = id.String()
	}
	return values
}
