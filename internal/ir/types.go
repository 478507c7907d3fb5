package ir

import (
	"fmt"

	"github.com/google/uuid"
)

// Variant classifies a measurement.
type Variant string

const (
	VariantReference Variant = "reference"
	VariantSample    Variant = "sample"
	VariantNoise     Variant = "noise"
	VariantOther     Variant = "other"
)

// ValidVariants lists the variants in declaration order.
var ValidVariants = []Variant{VariantReference, VariantSample, VariantNoise, VariantOther}

// Valid reports whether v is one of the known variants.
func (v Variant) Valid() bool {
	switch v {
	case VariantReference, VariantSample, VariantNoise, VariantOther:
		return true
	}
	return false
}

// ParseVariant converts s to a Variant, rejecting unknown names.
func ParseVariant(s string) (Variant, error) {
	v := Variant(s)
	if !v.Valid() {
		return "", Validationf("unknown variant %q: must be one of %v", s, ValidVariants)
	}
	return v, nil
}

// Point3D is a position where each axis may be unset.
type Point3D struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
	Z *float64 `json:"z"`
}

// Pt builds a fully defined Point3D.
func Pt(x, y, z float64) Point3D {
	return Point3D{X: &x, Y: &y, Z: &z}
}

// Point3DFullyDefined is a position with every axis set.
type Point3DFullyDefined struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// BaseTrace is the minimal persisted waveform. It is immutable once written.
type BaseTrace struct {
	UUID      uuid.UUID  `json:"uuid"`
	Timestamp int64      `json:"timestamp"` // ms since UNIX epoch
	Time      []float64  `json:"time"`
	Signal    []float64  `json:"signal"`
	Noise     *uuid.UUID `json:"noise"` // uuid of a separately stored noise trace
}

// Validate checks that time and signal have equal length.
func (b BaseTrace) Validate() error {
	if b.UUID == uuid.Nil {
		return Validationf("trace uuid is required")
	}
	if len(b.Time) != len(b.Signal) {
		return &Error{
			Code:    ErrCodeValidation,
			Message: fmt.Sprintf("time and signal lengths differ (%d != %d)", len(b.Time), len(b.Signal)),
			UUIDs:   []uuid.UUID{b.UUID},
		}
	}
	return nil
}

// PulseComposition is one stitch contribution: the source segment, its
// zero-based rank within the final pulse and the time shift applied to it.
type PulseComposition struct {
	Pulse    BaseTrace `json:"pulse"`
	Position int       `json:"position"`
	Shift    float64   `json:"shift"`
}

// Trace is a BaseTrace plus optional lineage. This is the caller-facing
// shape; Lineage converts it to the validated tagged form.
type Trace struct {
	BaseTrace
	DerivedFrom  []PulseComposition `json:"derived_from,omitempty"`
	AveragedFrom []Trace            `json:"averaged_from,omitempty"`
}

// Measurement is a trace plus the session-facing attributes of a final pulse.
type Measurement struct {
	Pulse       Trace      `json:"pulse"`
	Point       Point3D    `json:"point"`
	Variant     Variant    `json:"variant"`
	Reference   *uuid.UUID `json:"reference"`
	Annotations []KVPair   `json:"annotations"`
	PassNumber  *int       `json:"pass_number"`
}

// Validate checks the measurement's own fields and its lineage.
func (m Measurement) Validate() error {
	if !m.Variant.Valid() {
		return &Error{
			Code:    ErrCodeValidation,
			Message: fmt.Sprintf("unknown variant %q", m.Variant),
			UUIDs:   []uuid.UUID{m.Pulse.UUID},
		}
	}
	if m.PassNumber != nil && *m.PassNumber < 1 {
		return &Error{
			Code:    ErrCodeValidation,
			Message: fmt.Sprintf("pass number must be positive, got %d", *m.PassNumber),
			UUIDs:   []uuid.UUID{m.Pulse.UUID},
		}
	}
	if _, err := m.Pulse.Lineage(); err != nil {
		return err
	}
	return nil
}
