// Package devtools builds dummy sessions, traces and raster files for tests
// and for the fixture command.
//
// A Generator draws identities, timestamps and signal samples from
// injectable sources. The defaults are UUIDv7 ids, the wall clock and a
// randomly seeded stream; pass WithIDs, WithClock and WithSeed to make the
// output reproducible.
package devtools

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/grdb/internal/ir"
	"github.com/roach88/grdb/internal/pulsedb"
)

// DefaultSerialNumber is the device serial used when none is given.
const DefaultSerialNumber = "123-ABC"

// stitchShiftStep is the time shift between consecutive stitch segments.
const stitchShiftStep = 10e-12

// IDSource yields pulse, raster and transform identities.
type IDSource interface {
	NewUUID() uuid.UUID
}

// Clock yields timestamps in ms since UNIX epoch.
type Clock interface {
	NowMillis() int64
}

type v7IDs struct{}

func (v7IDs) NewUUID() uuid.UUID { return uuid.Must(uuid.NewV7()) }

type wallClock struct{}

func (wallClock) NowMillis() int64 { return time.Now().UnixMilli() }

// Generator builds dummy data.
type Generator struct {
	ids   IDSource
	clock Clock
	rng   *rand.Rand
}

// Option configures a Generator.
type Option func(*Generator)

// WithIDs sets the identity source.
//
// Default: time-ordered UUIDv7
func WithIDs(ids IDSource) Option {
	return func(g *Generator) {
		g.ids = ids
	}
}

// WithClock sets the timestamp source.
//
// Default: wall clock
func WithClock(c Clock) Option {
	return func(g *Generator) {
		g.clock = c
	}
}

// WithSeed makes signal samples reproducible.
func WithSeed(seed uint64) Option {
	return func(g *Generator) {
		g.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

// New returns a Generator.
func New(opts ...Option) *Generator {
	g := &Generator{
		ids:   v7IDs{},
		clock: wallClock{},
		rng:   rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Metadata returns a representative session. An empty serial becomes
// DefaultSerialNumber; a nil rasterID is left for the store to generate.
func (g *Generator) Metadata(serial string, rasterID uuid.UUID) ir.Session {
	if serial == "" {
		serial = DefaultSerialNumber
	}
	refPoint := ir.Pt(0, 0, 0)
	acquireEvery := 2
	transform := g.CoordinateTransform()

	return ir.Session{
		Device: ir.DeviceMetadata{
			SerialNumber:    serial,
			FirmwareVersion: "v1.0.0",
		},
		Config: ir.RasterConfig{
			Patterns: []ir.RasterPattern{
				{StartPoint: ir.Pt(0, 0, 0), EndPoint: ir.Pt(1, 1, 1)},
			},
			StepSize:        0.5,
			ReferencePoint:  &refPoint,
			AcquireRefEvery: &acquireEvery,
			Repetitions:     &ir.RepetitionsConfig{Passes: 3, IntervalMillisecs: 30_000},
		},
		Metadata: ir.RasterMetadata{
			AppVersion:          "app1",
			RasterID:            rasterID,
			Timestamp:           161803398,
			Annotations:         []ir.KVPair{ir.KV("foo", "bar"), ir.KV("baz", 1.0)},
			DeviceConfiguration: map[string]any{"mode": "test"},
			UserCoordinates:     &transform,
		},
	}
}

// CoordinateTransform returns a transform that swaps x and z and flips y.
func (g *Generator) CoordinateTransform() ir.CoordinateTransform {
	notes := "Dummy coordinate transform for testing"
	return ir.CoordinateTransform{
		ID:     g.ids.NewUUID(),
		Name:   "Test Coordinate System",
		Offset: ir.Point3DFullyDefined{X: 10, Y: 20, Z: 30},
		Mapping: ir.AxesMapping{
			X: ir.AxisMap{Axis: ir.AxisZ, Sign: 1},
			Y: ir.AxisMap{Axis: ir.AxisY, Sign: -1},
			Z: ir.AxisMap{Axis: ir.AxisX, Sign: 1},
		},
		LastUsed: g.clock.NowMillis(),
		Notes:    &notes,
	}
}

// BaseTrace returns a waveform of length samples at unit time steps.
func (g *Generator) BaseTrace(length int, noise *uuid.UUID) ir.BaseTrace {
	t := make([]float64, length)
	s := make([]float64, length)
	for i := range length {
		t[i] = float64(i)
		s[i] = g.rng.Float64()
	}
	return ir.BaseTrace{
		UUID:      g.ids.NewUUID(),
		Timestamp: g.clock.NowMillis(),
		Time:      t,
		Signal:    s,
		Noise:     noise,
	}
}

// Composition returns n stitch segments at positions 0..n-1.
func (g *Generator) Composition(n, length int, noise *uuid.UUID) []ir.PulseComposition {
	out := make([]ir.PulseComposition, n)
	for i := range n {
		out[i] = ir.PulseComposition{
			Pulse:    g.BaseTrace(length, noise),
			Position: i,
			Shift:    float64(i) * stitchShiftStep,
		}
	}
	return out
}

// TraceOptions shapes a dummy trace. Stitched and Averaged are mutually
// exclusive; AveragedStitched stitches each averaged source.
type TraceOptions struct {
	Length           int // samples per waveform; 2 when zero
	Stitched         int
	Averaged         int
	AveragedStitched int
	Noise            *uuid.UUID
}

func (o TraceOptions) validate() error {
	switch {
	case o.Stitched > 0 && o.Averaged > 0:
		return ir.Validationf("a trace cannot be both stitched and averaged")
	case o.Stitched > 0 && o.Stitched < ir.MinLineageSources:
		return ir.Validationf("stitched traces require at least %d source pulses", ir.MinLineageSources)
	case o.Averaged > 0 && o.Averaged < ir.MinLineageSources:
		return ir.Validationf("averaged traces require at least %d sources", ir.MinLineageSources)
	case o.AveragedStitched > 0 && o.Averaged == 0:
		return ir.Validationf("averaged sources can only be stitched when averaging")
	case o.AveragedStitched > 0 && o.AveragedStitched < ir.MinLineageSources:
		return ir.Validationf("stitched averaged sources require at least %d segments", ir.MinLineageSources)
	}
	return nil
}

// Trace returns a dummy trace with the lineage opts describe. Noise is
// carried by the sources of a composed trace, not by the trace itself.
func (g *Generator) Trace(opts TraceOptions) (ir.Trace, error) {
	if err := opts.validate(); err != nil {
		return ir.Trace{}, err
	}
	if opts.Length <= 0 {
		opts.Length = 2
	}

	var t ir.Trace
	if opts.Stitched > 0 {
		t.DerivedFrom = g.Composition(opts.Stitched, opts.Length, opts.Noise)
	}
	for range opts.Averaged {
		src := ir.Trace{}
		if opts.AveragedStitched > 0 {
			src.DerivedFrom = g.Composition(opts.AveragedStitched, opts.Length, opts.Noise)
			src.BaseTrace = g.BaseTrace(opts.Length, nil)
		} else {
			src.BaseTrace = g.BaseTrace(opts.Length, opts.Noise)
		}
		t.AveragedFrom = append(t.AveragedFrom, src)
	}

	noise := opts.Noise
	if opts.Stitched > 0 || opts.Averaged > 0 {
		noise = nil
	}
	t.BaseTrace = g.BaseTrace(opts.Length, noise)
	return t, nil
}

// Measurements returns n measurements of variant at points (i, i, i).
func (g *Generator) Measurements(variant ir.Variant, n int, opts TraceOptions) ([]ir.Measurement, error) {
	out := make([]ir.Measurement, 0, n)
	for i := range n {
		pulse, err := g.Trace(opts)
		if err != nil {
			return nil, err
		}
		f := float64(i)
		out = append(out, ir.Measurement{
			Pulse:       pulse,
			Point:       ir.Pt(f, f, f),
			Variant:     variant,
			Annotations: []ir.KVPair{},
		})
	}
	return out, nil
}

// Database creates a file at path holding Metadata(serial, rasterID) and
// MeasurementVariants. A nil rasterID is drawn from the identity source. It
// returns the stored session and the measurements written.
func (g *Generator) Database(ctx context.Context, path, serial string, rasterID uuid.UUID, opts ...pulsedb.Option) (ir.Session, []ir.Measurement, error) {
	if rasterID == uuid.Nil {
		rasterID = g.ids.NewUUID()
	}
	session := g.Metadata(serial, rasterID)
	measurements := g.MeasurementVariants()

	repo := pulsedb.New(path, opts...)
	id, err := repo.Create(ctx, session)
	if err != nil {
		return ir.Session{}, nil, err
	}
	session.Metadata.RasterID = id

	if err := repo.Append(ctx, measurements...); err != nil {
		return ir.Session{}, nil, err
	}
	return session, measurements, nil
}

// MakeDummyMetadata is Metadata on a default Generator.
func MakeDummyMetadata(serial string, rasterID uuid.UUID) ir.Session {
	return New().Metadata(serial, rasterID)
}

// MakeDummyTrace is Trace on a default Generator.
func MakeDummyTrace(opts TraceOptions) (ir.Trace, error) {
	return New().Trace(opts)
}

// MakeMeasurementVariants is MeasurementVariants on a default Generator.
func MakeMeasurementVariants() []ir.Measurement {
	return New().MeasurementVariants()
}

// MakeDummyDatabase is Database on a default Generator.
func MakeDummyDatabase(ctx context.Context, path, serial string, rasterID uuid.UUID, opts ...pulsedb.Option) (ir.Session, error) {
	session, _, err := New().Database(ctx, path, serial, rasterID, opts...)
	return session, err
}
