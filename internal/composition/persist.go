package composition

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/roach88/grdb/internal/ir"
	"github.com/roach88/grdb/internal/store"
)

// Writer is the storage surface of the write path. *store.Tx implements it.
type Writer interface {
	InsertPulses(ctx context.Context, rows []store.PulseRow) error
	EnsurePulses(ctx context.Context, rows []store.PulseRow) ([]uuid.UUID, error)
	InsertEdges(ctx context.Context, edges []store.EdgeRow) error
	EdgesFor(ctx context.Context, finals []uuid.UUID) (map[uuid.UUID][]store.EdgeRow, error)
}

// Persist writes one plan: the final row, any sources not stored yet, then
// the edges.
//
// Sources that are already stored are reused, but their lineage cannot
// change. Persist returns a Validation error when reuse would deepen the
// graph: a stitch source that already has edges, an averaged source that
// already has average edges, or an already stored averaged source the plan
// would stitch. The caller's transaction must be rolled back on error.
func Persist(ctx context.Context, w Writer, plan Plan) error {
	if err := w.InsertPulses(ctx, []store.PulseRow{plan.Final}); err != nil {
		return err
	}

	existing, err := w.EnsurePulses(ctx, plan.Sources)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		if err := checkExisting(ctx, w, plan, existing); err != nil {
			return err
		}
	}

	if len(plan.Edges) == 0 {
		return nil
	}
	return w.InsertEdges(ctx, plan.Edges)
}

func checkExisting(ctx context.Context, w Writer, plan Plan, existing []uuid.UUID) error {
	edges, err := w.EdgesFor(ctx, existing)
	if err != nil {
		return fmt.Errorf("load edges of stored sources: %w", err)
	}

	r := plan.roles()
	for _, id := range existing {
		own := edges[id]
		var msg string
		switch {
		case r.stitchSource[id] && len(own) > 0:
			msg = fmt.Sprintf("stitch source %s already has its own lineage", id)
		case r.averaged[id] && hasType(own, store.CompositionAverage):
			msg = fmt.Sprintf("averaged source %s is itself averaged", id)
		case r.stitched[id]:
			msg = fmt.Sprintf("averaged source %s is already stored and its lineage cannot change", id)
		}
		if msg != "" {
			return &ir.Error{
				Code:    ir.ErrCodeValidation,
				Message: msg,
				UUIDs:   []uuid.UUID{plan.Final.UUID, id},
			}
		}
	}
	return nil
}

func hasType(edges []store.EdgeRow, typ store.CompositionType) bool {
	for _, e := range edges {
		if e.Type == typ {
			return true
		}
	}
	return false
}

// Write decomposes every measurement, then persists them in order. No row is
// written unless the whole batch decomposes.
func Write(ctx context.Context, w Writer, measurements ...ir.Measurement) error {
	plans := make([]Plan, 0, len(measurements))
	for _, m := range measurements {
		p, err := Decompose(m)
		if err != nil {
			return err
		}
		plans = append(plans, p)
	}

	for _, p := range plans {
		if err := Persist(ctx, w, p); err != nil {
			return err
		}
	}
	return nil
}
