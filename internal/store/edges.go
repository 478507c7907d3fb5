package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/roach88/grdb/internal/ir"
	"github.com/roach88/grdb/internal/queryir"
)

// CompositionType discriminates composition edges.
type CompositionType string

const (
	CompositionStitch  CompositionType = "stitch"
	CompositionAverage CompositionType = "average"
)

// EdgeRow is one row of the pulse_composition table.
type EdgeRow struct {
	Final    uuid.UUID
	Source   uuid.UUID
	Position *int
	Shift    *float64
	Type     CompositionType
}

// StitchEdge builds a stitch edge.
func StitchEdge(final, source uuid.UUID, position int, shift float64) EdgeRow {
	return EdgeRow{Final: final, Source: source, Position: &position, Shift: &shift, Type: CompositionStitch}
}

// AverageEdge builds an average edge.
func AverageEdge(final, source uuid.UUID) EdgeRow {
	return EdgeRow{Final: final, Source: source, Type: CompositionAverage}
}

// shapeError describes why an edge breaks the stitch/average rule, or
// returns "" if it does not.
func (e EdgeRow) shapeError() string {
	switch e.Type {
	case CompositionStitch:
		if e.Position == nil || e.Shift == nil {
			return "stitch edge requires position and shift"
		}
	case CompositionAverage:
		if e.Position != nil || e.Shift != nil {
			return "average edge must not carry position or shift"
		}
	default:
		return fmt.Sprintf("unknown composition type %q", e.Type)
	}
	if e.Final == e.Source {
		return "edge references its own final pulse"
	}
	return ""
}

// Validate checks the stitch/average field rule. It mirrors the table's
// CHECK constraint so bad edges fail before any SQL runs.
func (e EdgeRow) Validate() error {
	if msg := e.shapeError(); msg != "" {
		return &ir.Error{
			Code:    ir.ErrCodeConstraintViolation,
			Message: msg,
			UUIDs:   []uuid.UUID{e.Final, e.Source},
		}
	}
	return nil
}

// InsertEdges appends composition edges.
//
// Returns a ConstraintViolation error if an edge breaks the stitch/average
// rule or duplicates an existing (final_uuid, position) or
// (final_uuid, source_uuid) pair. The caller's transaction must be rolled
// back on error so no partial batch is committed.
func (t *Tx) InsertEdges(ctx context.Context, edges []EdgeRow) error {
	for _, e := range edges {
		if err := e.Validate(); err != nil {
			return err
		}
	}

	for _, e := range edges {
		_, err := t.tx.ExecContext(ctx, `
			INSERT INTO pulse_composition
			(final_uuid, source_uuid, position, shift, composition_type)
			VALUES (?, ?, ?, ?, ?)
		`,
			e.Final.String(),
			e.Source.String(),
			nullInt(e.Position),
			nullFloat(e.Shift),
			string(e.Type),
		)
		if err != nil {
			return classify(err, "insert edge", e.Final, e.Source)
		}
	}
	return nil
}

// EdgesFor returns every edge whose final is in finals, grouped by final.
// Edges of one final keep insertion order.
func (t *Tx) EdgesFor(ctx context.Context, finals []uuid.UUID) (map[uuid.UUID][]EdgeRow, error) {
	result := make(map[uuid.UUID][]EdgeRow)
	for _, chunk := range chunkUUIDs(finals) {
		query, args, err := t.compiler.Compile(queryir.Select{
			From:    "pulse_composition",
			Columns: []string{"final_uuid", "source_uuid", "position", "shift", "composition_type"},
			Filter:  queryir.In{Field: "final_uuid", Values: uuidValues(chunk)},
			OrderBy: []queryir.Order{{Field: "final_uuid"}, {Field: "id"}},
		})
		if err != nil {
			return nil, fmt.Errorf("query edges: %w", err)
		}

		if err := t.scanEdges(ctx, query, args, result); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (t *Tx) scanEdges(ctx context.Context, query string, args []any, into map[uuid.UUID][]EdgeRow) error {
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query edges: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		e, err := scanEdge(rows)
		if err != nil {
			return err
		}
		into[e.Final] = append(into[e.Final], e)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate edges: %w", err)
	}
	return nil
}

// scanEdge reads one edge. An edge that breaks the stitch/average rule is
// reported as CorruptEncoding since the write path never produces one.
func scanEdge(rows *sql.Rows) (EdgeRow, error) {
	var (
		final, source, typ string
		position           sql.NullInt64
		shift              sql.NullFloat64
		e                  EdgeRow
		err                error
	)
	if err := rows.Scan(&final, &source, &position, &shift, &typ); err != nil {
		return EdgeRow{}, fmt.Errorf("scan edge: %w", err)
	}

	if e.Final, err = parseUUID(final); err != nil {
		return EdgeRow{}, err
	}
	if e.Source, err = parseUUID(source); err != nil {
		return EdgeRow{}, withUUID(err, e.Final)
	}
	e.Type = CompositionType(typ)
	if position.Valid {
		p := int(position.Int64)
		e.Position = &p
	}
	e.Shift = floatPtr(shift)

	if msg := e.shapeError(); msg != "" {
		return EdgeRow{}, &ir.Error{
			Code:    ir.ErrCodeCorruptEncoding,
			Message: msg,
			UUIDs:   []uuid.UUID{e.Final, e.Source},
		}
	}
	return e, nil
}
