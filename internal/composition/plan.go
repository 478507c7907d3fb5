package composition

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/roach88/grdb/internal/ir"
	"github.com/roach88/grdb/internal/store"
)

// Plan is the flattened form of one measurement.
type Plan struct {
	// Final is the row of the measurement's own pulse.
	Final store.PulseRow

	// Sources are the rows of every pulse in the lineage, without repeats,
	// in the order they were first seen.
	Sources []store.PulseRow

	// Edges are the composition edges. Edges whose Final is not
	// Final.UUID describe the stitch of an averaged source.
	Edges []store.EdgeRow
}

// roles records how each source of a plan is used.
type roles struct {
	stitchSource map[uuid.UUID]bool // source of some stitch edge
	averaged     map[uuid.UUID]bool // source of an average edge
	stitched     map[uuid.UUID]bool // averaged source with its own stitch
}

// Decompose validates m and flattens it into a Plan. It does not touch
// storage.
func Decompose(m ir.Measurement) (Plan, error) {
	if err := m.Validate(); err != nil {
		return Plan{}, err
	}
	lin, err := m.Pulse.Lineage()
	if err != nil {
		return Plan{}, err
	}

	b := newPlanBuilder(store.MeasurementRow(m))
	switch l := lin.(type) {
	case ir.Stitch:
		b.addStitch(m.Pulse.UUID, l)
	case ir.Average:
		for _, src := range l {
			b.addSource(src.Base)
			b.plan.Edges = append(b.plan.Edges, store.AverageEdge(m.Pulse.UUID, src.Base.UUID))
			if src.Stitch != nil {
				b.addStitch(src.Base.UUID, src.Stitch)
			}
		}
	}

	if err := b.plan.roles().check(m.Pulse.UUID); err != nil {
		return Plan{}, err
	}
	return b.plan, nil
}

type planBuilder struct {
	plan Plan
	seen map[uuid.UUID]bool
}

func newPlanBuilder(final store.PulseRow) *planBuilder {
	return &planBuilder{
		plan: Plan{Final: final},
		seen: make(map[uuid.UUID]bool),
	}
}

func (b *planBuilder) addSource(base ir.BaseTrace) {
	if b.seen[base.UUID] {
		return
	}
	b.seen[base.UUID] = true
	b.plan.Sources = append(b.plan.Sources, store.SourceRow(base))
}

func (b *planBuilder) addStitch(final uuid.UUID, st ir.Stitch) {
	for _, c := range st {
		b.addSource(c.Pulse)
		b.plan.Edges = append(b.plan.Edges, store.StitchEdge(final, c.Pulse.UUID, c.Position, c.Shift))
	}
}

// check rejects a pulse that is both a stitch source and a stitched
// averaged source. Reading it back would need a second level of stitching.
func (r roles) check(final uuid.UUID) error {
	for id := range r.stitched {
		if r.stitchSource[id] {
			return &ir.Error{
				Code:    ir.ErrCodeValidation,
				Message: fmt.Sprintf("pulse %s is both a stitched averaged source and a stitch source", id),
				UUIDs:   []uuid.UUID{final, id},
			}
		}
	}
	return nil
}

// roles recomputes the source roles from the plan's edges.
func (p Plan) roles() roles {
	r := roles{
		stitchSource: make(map[uuid.UUID]bool),
		averaged:     make(map[uuid.UUID]bool),
		stitched:     make(map[uuid.UUID]bool),
	}
	for _, e := range p.Edges {
		switch e.Type {
		case store.CompositionStitch:
			r.stitchSource[e.Source] = true
			if e.Final != p.Final.UUID {
				r.stitched[e.Final] = true
			}
		case store.CompositionAverage:
			r.averaged[e.Source] = true
		}
	}
	return r
}
