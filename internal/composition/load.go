package composition

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/roach88/grdb/internal/ir"
	"github.com/roach88/grdb/internal/store"
)

// Reader is the storage surface of the read path. *store.Tx implements it.
type Reader interface {
	FinalPulses(ctx context.Context, page store.Page) ([]store.PulseRow, error)
	EdgesFor(ctx context.Context, finals []uuid.UUID) (map[uuid.UUID][]store.EdgeRow, error)
	PulsesByUUID(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]store.PulseRow, error)
}

// graph is the arena of loaded rows and edges for one page.
type graph struct {
	rows      map[uuid.UUID]store.PulseRow
	edges     map[uuid.UUID][]store.EdgeRow
	processed map[uuid.UUID]bool
}

func newGraph() *graph {
	return &graph{
		rows:      make(map[uuid.UUID]store.PulseRow),
		edges:     make(map[uuid.UUID][]store.EdgeRow),
		processed: make(map[uuid.UUID]bool),
	}
}

// Load reads a page of final pulses and rebuilds each as a measurement with
// its full lineage. Measurements come back in storage order.
func Load(ctx context.Context, r Reader, page store.Page) ([]ir.Measurement, error) {
	finals, err := r.FinalPulses(ctx, page)
	if err != nil {
		return nil, err
	}
	if len(finals) == 0 {
		return []ir.Measurement{}, nil
	}

	g := newGraph()
	frontier := make([]uuid.UUID, 0, len(finals))
	for _, f := range finals {
		g.rows[f.UUID] = f
		frontier = append(frontier, f.UUID)
	}

	// The finals' rows are already loaded, so the first round only fetches
	// edges.
	if frontier, err = g.expand(ctx, r, frontier); err != nil {
		return nil, err
	}
	for len(frontier) > 0 {
		rows, err := r.PulsesByUUID(ctx, frontier)
		if err != nil {
			return nil, err
		}
		for _, id := range frontier {
			row, ok := rows[id]
			if !ok {
				return nil, corrupt(id, "source pulse %s has no row", id)
			}
			g.rows[id] = row
		}
		if frontier, err = g.expand(ctx, r, frontier); err != nil {
			return nil, err
		}
	}

	result := make([]ir.Measurement, 0, len(finals))
	for _, f := range finals {
		trace, err := g.trace(f)
		if err != nil {
			return nil, err
		}
		result = append(result, f.Measurement(trace))
	}
	return result, nil
}

// expand marks batch processed, loads its edges and returns the sources
// not seen yet, in edge order.
func (g *graph) expand(ctx context.Context, r Reader, batch []uuid.UUID) ([]uuid.UUID, error) {
	for _, id := range batch {
		g.processed[id] = true
	}

	edges, err := r.EdgesFor(ctx, batch)
	if err != nil {
		return nil, err
	}

	var next []uuid.UUID
	queued := make(map[uuid.UUID]bool)
	for _, id := range batch {
		for _, e := range edges[id] {
			g.edges[id] = append(g.edges[id], e)
			if !g.processed[e.Source] && !queued[e.Source] {
				queued[e.Source] = true
				next = append(next, e.Source)
			}
		}
	}
	return next, nil
}

func (g *graph) trace(final store.PulseRow) (ir.Trace, error) {
	stitch, average := partition(g.edges[final.UUID])
	if len(stitch) > 0 && len(average) > 0 {
		return ir.Trace{}, corrupt(final.UUID, "pulse %s has both stitch and average edges", final.UUID)
	}

	t := ir.Trace{BaseTrace: final.BaseTrace()}
	if len(stitch) > 0 {
		comps, err := g.stitch(stitch)
		if err != nil {
			return ir.Trace{}, err
		}
		t.DerivedFrom = comps
		return t, nil
	}

	for _, e := range average {
		src, err := g.source(e)
		if err != nil {
			return ir.Trace{}, err
		}
		nested, avg := partition(g.edges[src.UUID])
		if len(avg) > 0 {
			return ir.Trace{}, corrupt(src.UUID, "averaged source %s is itself averaged", src.UUID)
		}

		srcTrace := ir.Trace{BaseTrace: src.BaseTrace()}
		if len(nested) > 0 {
			if srcTrace.DerivedFrom, err = g.stitch(nested); err != nil {
				return ir.Trace{}, err
			}
		}
		t.AveragedFrom = append(t.AveragedFrom, srcTrace)
	}
	return t, nil
}

// stitch rebuilds an ordered stitch. Position decides the order, not
// insertion.
func (g *graph) stitch(edges []store.EdgeRow) ([]ir.PulseComposition, error) {
	sorted := slices.Clone(edges)
	slices.SortStableFunc(sorted, func(a, b store.EdgeRow) int {
		return cmp.Compare(*a.Position, *b.Position)
	})

	comps := make([]ir.PulseComposition, 0, len(sorted))
	for _, e := range sorted {
		src, err := g.source(e)
		if err != nil {
			return nil, err
		}
		if len(g.edges[src.UUID]) > 0 {
			return nil, corrupt(src.UUID, "stitch source %s has composition edges of its own", src.UUID)
		}
		comps = append(comps, ir.PulseComposition{
			Pulse:    src.BaseTrace(),
			Position: *e.Position,
			Shift:    *e.Shift,
		})
	}
	return comps, nil
}

func (g *graph) source(e store.EdgeRow) (store.PulseRow, error) {
	row, ok := g.rows[e.Source]
	if !ok {
		return store.PulseRow{}, corrupt(e.Source, "source pulse %s of %s has no row", e.Source, e.Final)
	}
	return row, nil
}

func partition(edges []store.EdgeRow) (stitch, average []store.EdgeRow) {
	for _, e := range edges {
		switch e.Type {
		case store.CompositionStitch:
			stitch = append(stitch, e)
		case store.CompositionAverage:
			average = append(average, e)
		}
	}
	return stitch, average
}

func corrupt(id uuid.UUID, format string, args ...any) *ir.Error {
	return &ir.Error{
		Code:    ir.ErrCodeCorruptEncoding,
		Message: fmt.Sprintf(format, args...),
		UUIDs:   []uuid.UUID{id},
	}
}
