package devtools

import (
	"github.com/google/uuid"

	"github.com/roach88/grdb/internal/ir"
)

// variantSpec is one entry of the variant set.
type variantSpec struct {
	point       ir.Point3D
	variant     ir.Variant
	annotations []ir.KVPair
	reference   *uuid.UUID
	passNumber  *int
	trace       TraceOptions
}

func (g *Generator) build(s variantSpec) ir.Measurement {
	if s.variant == "" {
		s.variant = ir.VariantSample
	}
	if s.annotations == nil {
		s.annotations = []ir.KVPair{}
	}
	pulse, err := g.Trace(s.trace)
	if err != nil {
		// variantSpecs below are fixed and always valid
		panic(err)
	}
	return ir.Measurement{
		Pulse:       pulse,
		Point:       s.point,
		Variant:     s.variant,
		Reference:   s.reference,
		Annotations: s.annotations,
		PassNumber:  s.passNumber,
	}
}

// MeasurementVariants returns measurements covering every branch of the
// data model:
//   - points fully defined, partially defined and unset
//   - every variant
//   - string, int and float annotations
//   - reference set and unset
//   - plain, stitched, averaged and averaged-of-stitched lineage
//   - noise references
//   - pass numbers unset, 1 and 2
//
// The set is built twice, first with a reference measurement that the
// others point at and then without one.
func (g *Generator) MeasurementVariants() []ir.Measurement {
	out := g.variants(true)
	return append(out, g.variants(false)...)
}

func (g *Generator) variants(withRef bool) []ir.Measurement {
	var out []ir.Measurement
	var ref *uuid.UUID
	if withRef {
		m := g.build(variantSpec{variant: ir.VariantReference})
		ref = &m.Pulse.UUID
		out = append(out, m)
	}

	noise := g.build(variantSpec{variant: ir.VariantNoise})
	noiseID := &noise.Pulse.UUID
	one, two := 1, 2

	specs := []variantSpec{
		{trace: TraceOptions{Stitched: 2}, reference: ref},
		{trace: TraceOptions{Stitched: 2, Noise: noiseID}, reference: ref},
		{point: ir.Pt(1, 2, 3), reference: ref},
		{point: ir.Point3D{X: ir.Pt(4, 0, 0).X, Z: ir.Pt(0, 0, 6).Z}, reference: ref},
		{variant: ir.VariantReference, reference: ref},
		{variant: ir.VariantSample, reference: ref},
		{variant: ir.VariantNoise, reference: ref},
		{variant: ir.VariantOther, reference: ref},
		{annotations: []ir.KVPair{ir.KV("s", "v")}, reference: ref},
		{annotations: []ir.KVPair{ir.KV("int", 42)}, reference: ref},
		{annotations: []ir.KVPair{ir.KV("f", 3.14)}, reference: ref},
		{},
		{passNumber: &one},
		{passNumber: &two},
		{trace: TraceOptions{Averaged: 3}, reference: ref},
		{trace: TraceOptions{Averaged: 2, AveragedStitched: 2}, reference: ref},
		{trace: TraceOptions{Noise: noiseID}},
	}

	out = append(out, noise)
	for _, s := range specs {
		out = append(out, g.build(s))
	}
	return out
}
