package ir

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/google/uuid"
)

// MinLineageSources is the smallest number of entries a non-empty lineage
// may have.
const MinLineageSources = 2

// Lineage is the validated composition of a trace.
//
// This is a sealed interface - only Stitch and Average implement it. A nil
// Lineage means the trace was recorded directly. Averaged sources carry at
// most a Stitch, so averaging cannot nest by construction.
type Lineage interface {
	lineage() // Marker method - seals interface to this package
}

// Stitch is an ordered list of segments, sorted by Position.
type Stitch []PulseComposition

func (Stitch) lineage() {}

// AveragedSource is one full trace contributing to an average. Stitch is
// nil when the source was recorded directly.
type AveragedSource struct {
	Base   BaseTrace
	Stitch Stitch
}

// Average is an unordered set of full traces.
type Average []AveragedSource

func (Average) lineage() {}

// Lineage validates the trace's lineage fields and returns the tagged form.
//
// Rejected (all Validation errors):
//   - DerivedFrom and AveragedFrom both set
//   - a non-empty lineage list with fewer than MinLineageSources entries
//   - an averaged source that itself carries AveragedFrom
//   - duplicate stitch positions or source uuids
//   - a source uuid equal to the uuid of the trace it composes
func (t Trace) Lineage() (Lineage, error) {
	if err := t.BaseTrace.Validate(); err != nil {
		return nil, err
	}

	switch {
	case len(t.DerivedFrom) > 0 && len(t.AveragedFrom) > 0:
		return nil, lineageError(t.UUID, "trace cannot be both stitched and averaged")
	case len(t.DerivedFrom) > 0:
		return newStitch(t.UUID, t.DerivedFrom)
	case len(t.AveragedFrom) > 0:
		return newAverage(t.UUID, t.AveragedFrom)
	default:
		return nil, nil
	}
}

func newStitch(final uuid.UUID, comps []PulseComposition) (Stitch, error) {
	if len(comps) < MinLineageSources {
		return nil, lineageError(final, fmt.Sprintf(
			"stitched traces require at least %d source pulses, got %d", MinLineageSources, len(comps)))
	}

	positions := make(map[int]bool, len(comps))
	sources := make(map[uuid.UUID]bool, len(comps))
	for _, c := range comps {
		if err := c.Pulse.Validate(); err != nil {
			return nil, err
		}
		if c.Pulse.UUID == final {
			return nil, lineageError(final, "stitch source references its own final pulse")
		}
		if c.Position < 0 {
			return nil, lineageError(final, fmt.Sprintf("stitch position %d is negative", c.Position))
		}
		if positions[c.Position] {
			return nil, lineageError(final, fmt.Sprintf("duplicate stitch position %d", c.Position))
		}
		if sources[c.Pulse.UUID] {
			return nil, lineageError(final, fmt.Sprintf("duplicate stitch source %s", c.Pulse.UUID))
		}
		positions[c.Position] = true
		sources[c.Pulse.UUID] = true
	}

	s := slices.Clone(comps)
	slices.SortStableFunc(s, func(a, b PulseComposition) int {
		return cmp.Compare(a.Position, b.Position)
	})
	return Stitch(s), nil
}

func newAverage(final uuid.UUID, traces []Trace) (Average, error) {
	if len(traces) < MinLineageSources {
		return nil, lineageError(final, fmt.Sprintf(
			"averaged traces require at least %d sources, got %d", MinLineageSources, len(traces)))
	}

	seen := make(map[uuid.UUID]bool, len(traces))
	avg := make(Average, 0, len(traces))
	for _, src := range traces {
		if len(src.AveragedFrom) > 0 {
			return nil, lineageError(final, fmt.Sprintf(
				"averaged source %s is itself averaged; averaging nests at most one level", src.UUID))
		}
		if err := src.BaseTrace.Validate(); err != nil {
			return nil, err
		}
		if src.UUID == final {
			return nil, lineageError(final, "averaged source references its own final pulse")
		}
		if seen[src.UUID] {
			return nil, lineageError(final, fmt.Sprintf("duplicate averaged source %s", src.UUID))
		}
		seen[src.UUID] = true

		entry := AveragedSource{Base: src.BaseTrace}
		if len(src.DerivedFrom) > 0 {
			st, err := newStitch(src.UUID, src.DerivedFrom)
			if err != nil {
				return nil, err
			}
			for _, c := range st {
				if c.Pulse.UUID == final {
					return nil, lineageError(final, "nested stitch source references the averaged final pulse")
				}
			}
			entry.Stitch = st
		}
		avg = append(avg, entry)
	}
	return avg, nil
}

// NewTrace rebuilds the caller-facing Trace from a base and a lineage.
func NewTrace(base BaseTrace, l Lineage) Trace {
	t := Trace{BaseTrace: base}
	switch lin := l.(type) {
	case Stitch:
		t.DerivedFrom = []PulseComposition(lin)
	case Average:
		t.AveragedFrom = make([]Trace, len(lin))
		for i, src := range lin {
			t.AveragedFrom[i] = Trace{BaseTrace: src.Base, DerivedFrom: []PulseComposition(src.Stitch)}
		}
	}
	return t
}

func lineageError(final uuid.UUID, msg string) *Error {
	return &Error{Code: ErrCodeValidation, Message: msg, UUIDs: []uuid.UUID{final}}
}
