package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/roach88/grdb/internal/config"
	"github.com/roach88/grdb/internal/devtools"
	"github.com/roach88/grdb/internal/ir"
	"github.com/roach88/grdb/internal/pulsedb"
	"github.com/roach88/grdb/internal/testutil"
)

// scenarioEpoch is the first timestamp handed out in a scenario run.
const scenarioEpoch = 1_600_000_000_000

// Harness runs one scenario against one file.
type Harness struct {
	repo   *pulsedb.Repository
	gen    *devtools.Generator
	ids    *testutil.SeededUUIDs
	labels map[string]uuid.UUID
	names  map[uuid.UUID]string
	next   int
	logger *slog.Logger
}

// Option configures a scenario run.
type Option func(*Harness)

// WithLogger sets the logger for step events.
//
// Default: discard
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) {
		h.logger = l
	}
}

// Run executes a scenario in a fresh file under dir and returns the result.
//
// Execution flow:
// 1. Create the file from the scenario session (or dummy metadata)
// 2. Execute steps, checking each against its expected error code
// 3. Read back the final file content
// 4. Evaluate assertions
//
// A step failing with an unexpected code fails the result; a failure that
// is not a file error at all aborts the run.
func Run(ctx context.Context, scenario *Scenario, dir string, opts ...Option) (*Result, error) {
	ids := testutil.NewSeededUUIDs(scenario.Seed)
	h := &Harness{
		gen: devtools.New(
			devtools.WithIDs(ids),
			devtools.WithClock(testutil.NewDeterministicClock(scenarioEpoch, 1)),
			devtools.WithSeed(scenario.Seed),
		),
		ids:    ids,
		labels: make(map[string]uuid.UUID),
		names:  make(map[uuid.UUID]string),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.repo = pulsedb.New(filepath.Join(dir, scenario.Name+".grdb"), pulsedb.WithLogger(h.logger))

	session := h.gen.Metadata("", uuid.Nil)
	if scenario.Session != "" {
		var err error
		if session, err = config.Load(scenario.Session); err != nil {
			return nil, fmt.Errorf("failed to load session: %w", err)
		}
	}
	if session.Metadata.RasterID == uuid.Nil {
		session.Metadata.RasterID = ids.NewUUID()
	}
	if _, err := h.repo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		if err := h.executeStep(ctx, i, step, result); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
	}

	if err := h.collect(ctx, result); err != nil {
		return nil, fmt.Errorf("failed to read final file: %w", err)
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// executeStep runs one step and records its outcome. Returned errors are
// scenario mistakes or non-file failures.
func (h *Harness) executeStep(ctx context.Context, i int, step Step, result *Result) error {
	var err error
	switch op := step.Op(); op {
	case OpAppend:
		var ms []ir.Measurement
		if ms, err = h.measurements(step.Append); err != nil {
			return err
		}
		err = h.repo.Append(ctx, ms...)
	case OpAnnotate:
		err = h.repo.UpdateAnnotations(ctx, annotations(step.Annotate))
	case OpSetReference:
		ids := make([]uuid.UUID, len(step.SetReference.Pulses))
		for j, label := range step.SetReference.Pulses {
			ids[j] = h.lookup(label)
		}
		var ref *uuid.UUID
		if step.SetReference.Ref != "" {
			id := h.lookup(step.SetReference.Ref)
			ref = &id
		}
		err = h.repo.UpdateReference(ctx, ids, ref)
	case OpMigrate:
		_, err = h.repo.Migrate(ctx)
	default:
		return fmt.Errorf("no operation")
	}

	code := ir.CodeOf(err)
	if err != nil && code == "" {
		return err
	}
	result.AddStep(i, step.Op(), code)

	if string(code) != step.ExpectError {
		want := step.ExpectError
		if want == "" {
			want = "success"
		}
		got := "success"
		if err != nil {
			got = err.Error()
		}
		result.AddError(fmt.Sprintf("step %d (%s): expected %s, got %s", i, step.Op(), want, got))
	}

	h.logger.Info("scenario step completed",
		"step", i,
		"op", step.Op(),
		"error_code", code,
	)
	return nil
}

// measurements builds the measurements of an append step and binds their
// labels.
func (h *Harness) measurements(steps []MeasurementStep) ([]ir.Measurement, error) {
	out := make([]ir.Measurement, 0, len(steps))
	for _, s := range steps {
		label := s.Label
		if label == "" {
			label = fmt.Sprintf("m%d", h.next)
		}
		h.next++
		if _, dup := h.labels[label]; dup {
			return nil, fmt.Errorf("label %q already used", label)
		}

		pulse, err := h.gen.Trace(devtools.TraceOptions{
			Length:           s.Length,
			Stitched:         s.Stitched,
			Averaged:         s.Averaged,
			AveragedStitched: s.AveragedStitched,
		})
		if err != nil {
			return nil, fmt.Errorf("measurement %q: %w", label, err)
		}

		m := ir.Measurement{
			Pulse:       pulse,
			Variant:     ir.Variant(s.Variant),
			PassNumber:  s.PassNumber,
			Annotations: annotations(s.Annotations),
		}
		if s.Point != nil {
			m.Point = ir.Point3D{X: s.Point.X, Y: s.Point.Y, Z: s.Point.Z}
		}
		if s.Reference != "" {
			ref, ok := h.labels[s.Reference]
			if !ok {
				return nil, fmt.Errorf("measurement %q: unknown reference label %q", label, s.Reference)
			}
			m.Reference = &ref
		}

		h.labels[label] = pulse.UUID
		h.names[pulse.UUID] = label
		out = append(out, m)
	}
	return out, nil
}

// lookup resolves a label. An unknown label stands for a pulse that does
// not exist and gets a fresh uuid.
func (h *Harness) lookup(label string) uuid.UUID {
	if id, ok := h.labels[label]; ok {
		return id
	}
	id := h.ids.NewUUID()
	h.labels[label] = id
	h.names[id] = label
	return id
}

func (h *Harness) collect(ctx context.Context, result *Result) error {
	md, err := h.repo.LoadMetadata(ctx)
	if err != nil {
		return err
	}
	result.Annotations = formatAnnotations(md.Session.Metadata.Annotations)

	ms, err := h.repo.LoadMeasurements(ctx, pulsedb.Page{})
	if err != nil {
		return err
	}
	for _, m := range ms {
		result.Measurements = append(result.Measurements, h.summarize(m))
	}

	result.SchemaVersion, err = h.repo.SchemaVersion(ctx)
	return err
}

func (h *Harness) summarize(m ir.Measurement) MeasurementSummary {
	s := MeasurementSummary{
		Label:       h.name(m.Pulse.UUID),
		Variant:     m.Variant,
		PassNumber:  m.PassNumber,
		Lineage:     Lineage(m.Pulse),
		Length:      len(m.Pulse.Signal),
		Annotations: formatAnnotations(m.Annotations),
	}
	if m.Reference != nil {
		s.Reference = h.name(*m.Reference)
	}
	if len(s.Annotations) == 0 {
		s.Annotations = nil
	}
	return s
}

func (h *Harness) name(id uuid.UUID) string {
	if label, ok := h.names[id]; ok {
		return label
	}
	return id.String()
}

// Lineage describes the shape of a trace's lineage: "plain", "stitch[N]",
// "average[N]" for plain sources, or "average[a, b, ...]" listing each
// source when any source is stitched.
func Lineage(t ir.Trace) string {
	switch {
	case len(t.DerivedFrom) > 0:
		return fmt.Sprintf("stitch[%d]", len(t.DerivedFrom))
	case len(t.AveragedFrom) > 0:
		parts := make([]string, len(t.AveragedFrom))
		nested := false
		for i, src := range t.AveragedFrom {
			parts[i] = Lineage(src)
			nested = nested || len(src.DerivedFrom) > 0
		}
		if !nested {
			return fmt.Sprintf("average[%d]", len(parts))
		}
		return "average[" + strings.Join(parts, ", ") + "]"
	default:
		return "plain"
	}
}

func annotations(steps []AnnotationStep) []ir.KVPair {
	out := make([]ir.KVPair, len(steps))
	for i, a := range steps {
		out[i] = ir.KVPair{Key: a.Key, Value: ir.ParseAnnotationValue(a.Value)}
	}
	return out
}

func formatAnnotations(pairs []ir.KVPair) []string {
	out := make([]string, len(pairs))
	for i, kv := range pairs {
		out[i] = kv.Key + "=" + kv.Value.String()
	}
	return out
}
