package ir

import (
	"fmt"

	"github.com/google/uuid"
)

// Axis names a machine axis.
type Axis string

const (
	AxisX Axis = "x"
	AxisY Axis = "y"
	AxisZ Axis = "z"
)

// DeviceMetadata identifies the instrument that recorded a session.
type DeviceMetadata struct {
	SerialNumber    string `json:"device_serial_number" yaml:"serial_number"`
	FirmwareVersion string `json:"device_firmware_version" yaml:"firmware_version"`
}

// RasterPattern is one scanned line segment.
type RasterPattern struct {
	StartPoint Point3D `json:"start_point" yaml:"start_point"`
	EndPoint   Point3D `json:"end_point" yaml:"end_point"`
}

// RepetitionsConfig describes a multi-pass acquisition.
type RepetitionsConfig struct {
	Passes            int     `json:"passes" yaml:"passes"`
	IntervalMillisecs float64 `json:"interval_millisecs" yaml:"interval_millisecs"`
}

// Validate requires positive passes and interval.
func (r RepetitionsConfig) Validate() error {
	if r.Passes <= 0 {
		return Validationf("repetitions: passes must be positive, got %d", r.Passes)
	}
	if r.IntervalMillisecs <= 0 {
		return Validationf("repetitions: interval must be positive, got %v", r.IntervalMillisecs)
	}
	return nil
}

// RasterConfig is the acquisition configuration of a session.
type RasterConfig struct {
	Patterns        []RasterPattern    `json:"patterns" yaml:"patterns"`
	StepSize        float64            `json:"stepsize" yaml:"stepsize"`
	ReferencePoint  *Point3D           `json:"reference_point" yaml:"reference_point"`
	AcquireRefEvery *int               `json:"acquire_ref_every" yaml:"acquire_ref_every"`
	Repetitions     *RepetitionsConfig `json:"repetitions_config" yaml:"repetitions"`
}

// Validate checks step size, reference cadence and repetitions.
func (c RasterConfig) Validate() error {
	if c.StepSize < 0 {
		return Validationf("stepsize must not be negative, got %v", c.StepSize)
	}
	if c.AcquireRefEvery != nil && *c.AcquireRefEvery < 0 {
		return Validationf("acquire_ref_every must not be negative, got %d", *c.AcquireRefEvery)
	}
	if c.Repetitions != nil {
		if err := c.Repetitions.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// AxisMap maps one user axis to a machine axis with a sign.
type AxisMap struct {
	Axis Axis `json:"axis" yaml:"axis"`
	Sign int  `json:"sign" yaml:"sign"`
}

// AxesMapping maps user x, y and z onto machine axes.
type AxesMapping struct {
	X AxisMap `json:"x" yaml:"x"`
	Y AxisMap `json:"y" yaml:"y"`
	Z AxisMap `json:"z" yaml:"z"`
}

// Validate requires known axes, signs of ±1 and a unique target per axis.
func (m AxesMapping) Validate() error {
	seen := make(map[Axis]bool, 3)
	for _, am := range []AxisMap{m.X, m.Y, m.Z} {
		switch am.Axis {
		case AxisX, AxisY, AxisZ:
		default:
			return Validationf("axes mapping: unknown axis %q", am.Axis)
		}
		if am.Sign != 1 && am.Sign != -1 {
			return Validationf("axes mapping: sign must be 1 or -1, got %d", am.Sign)
		}
		if seen[am.Axis] {
			return Validationf("axes mapping: each axis must map to a unique target axis")
		}
		seen[am.Axis] = true
	}
	return nil
}

// CoordinateTransform relates user coordinates to machine coordinates.
type CoordinateTransform struct {
	ID       uuid.UUID           `json:"id" yaml:"id"`
	Name     string              `json:"name" yaml:"name"`
	Offset   Point3DFullyDefined `json:"offset" yaml:"offset"`
	Mapping  AxesMapping         `json:"mapping" yaml:"mapping"`
	LastUsed int64               `json:"last_used" yaml:"last_used"` // ms since UNIX epoch
	Notes    *string             `json:"notes" yaml:"notes"`
}

// Validate checks the transform's mapping.
func (c CoordinateTransform) Validate() error {
	if c.ID == uuid.Nil {
		return Validationf("coordinate transform id is required")
	}
	return c.Mapping.Validate()
}

// RasterMetadata is the descriptive part of a session.
type RasterMetadata struct {
	AppVersion          string               `json:"app_version" yaml:"app_version"`
	RasterID            uuid.UUID            `json:"raster_id" yaml:"raster_id"`
	Timestamp           int64                `json:"timestamp" yaml:"timestamp"`
	Annotations         []KVPair             `json:"annotations" yaml:"-"`
	DeviceConfiguration map[string]any       `json:"device_configuration" yaml:"device_configuration"`
	UserCoordinates     *CoordinateTransform `json:"user_coordinates" yaml:"user_coordinates"`
}

// Session groups everything stored in the metadata row of a file.
type Session struct {
	Device   DeviceMetadata `json:"device"`
	Config   RasterConfig   `json:"config"`
	Metadata RasterMetadata `json:"metadata"`
}

// Validate runs every session-level check.
func (s Session) Validate() error {
	if s.Device.SerialNumber == "" {
		return Validationf("device serial number is required")
	}
	if s.Metadata.AppVersion == "" {
		return Validationf("app version is required")
	}
	if err := s.Config.Validate(); err != nil {
		return err
	}
	if s.Metadata.UserCoordinates != nil {
		if err := s.Metadata.UserCoordinates.Validate(); err != nil {
			return err
		}
	}
	return ValidateAnnotations(s.Metadata.Annotations)
}

// CheckPassNumber verifies a measurement's pass number against the session.
// A pass number requires a repetitions config and must lie in 1..passes.
func (c RasterConfig) CheckPassNumber(m Measurement) error {
	if m.PassNumber == nil {
		return nil
	}
	if c.Repetitions == nil {
		return &Error{
			Code:    ErrCodeValidation,
			Message: "pass number set but the session has no repetitions config",
			UUIDs:   []uuid.UUID{m.Pulse.UUID},
		}
	}
	if n := *m.PassNumber; n < 1 || n > c.Repetitions.Passes {
		return &Error{
			Code:    ErrCodeValidation,
			Message: fmt.Sprintf("pass number %d out of range 1..%d", n, c.Repetitions.Passes),
			UUIDs:   []uuid.UUID{m.Pulse.UUID},
		}
	}
	return nil
}
