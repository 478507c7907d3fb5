package ir

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSession() Session {
	every := 2
	return Session{
		Device: DeviceMetadata{SerialNumber: "123-ABC", FirmwareVersion: "v1.0.0"},
		Config: RasterConfig{
			Patterns:        []RasterPattern{{StartPoint: Pt(0, 0, 0), EndPoint: Pt(1, 1, 1)}},
			StepSize:        0.5,
			AcquireRefEvery: &every,
			Repetitions:     &RepetitionsConfig{Passes: 3, IntervalMillisecs: 30000},
		},
		Metadata: RasterMetadata{
			AppVersion:          "app1",
			RasterID:            uuid.New(),
			Timestamp:           161803398,
			Annotations:         []KVPair{KV("foo", "bar")},
			DeviceConfiguration: map[string]any{"mode": "test"},
			UserCoordinates: &CoordinateTransform{
				ID:   uuid.New(),
				Name: "bench",
				Mapping: AxesMapping{
					X: AxisMap{Axis: AxisZ, Sign: 1},
					Y: AxisMap{Axis: AxisY, Sign: -1},
					Z: AxisMap{Axis: AxisX, Sign: 1},
				},
			},
		},
	}
}

func TestSessionValidate(t *testing.T) {
	require.NoError(t, validSession().Validate())

	tests := []struct {
		name   string
		mutate func(s *Session)
	}{
		{"missing serial", func(s *Session) { s.Device.SerialNumber = "" }},
		{"missing app version", func(s *Session) { s.Metadata.AppVersion = "" }},
		{"negative stepsize", func(s *Session) { s.Config.StepSize = -1 }},
		{"zero passes", func(s *Session) { s.Config.Repetitions.Passes = 0 }},
		{"zero interval", func(s *Session) { s.Config.Repetitions.IntervalMillisecs = 0 }},
		{"duplicate axis", func(s *Session) { s.Metadata.UserCoordinates.Mapping.Y.Axis = AxisZ }},
		{"bad sign", func(s *Session) { s.Metadata.UserCoordinates.Mapping.X.Sign = 2 }},
		{"unknown axis", func(s *Session) { s.Metadata.UserCoordinates.Mapping.X.Axis = "w" }},
		{"nil transform id", func(s *Session) { s.Metadata.UserCoordinates.ID = uuid.Nil }},
		{"empty annotation key", func(s *Session) { s.Metadata.Annotations = []KVPair{{Value: Int(1)}} }},
		{"nil annotation value", func(s *Session) { s.Metadata.Annotations = []KVPair{{Key: "k"}} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSession()
			tt.mutate(&s)
			err := s.Validate()
			require.Error(t, err)
			assert.True(t, IsValidation(err))
		})
	}
}

func TestCheckPassNumber(t *testing.T) {
	cfg := validSession().Config
	pass := func(n int) Measurement {
		return Measurement{Pulse: Trace{BaseTrace: base()}, Variant: VariantSample, PassNumber: &n}
	}

	assert.NoError(t, cfg.CheckPassNumber(Measurement{Pulse: Trace{BaseTrace: base()}}))
	assert.NoError(t, cfg.CheckPassNumber(pass(1)))
	assert.NoError(t, cfg.CheckPassNumber(pass(3)))
	assert.True(t, IsValidation(cfg.CheckPassNumber(pass(4))))

	cfg.Repetitions = nil
	err := cfg.CheckPassNumber(pass(1))
	assert.True(t, IsValidation(err))
	assert.Contains(t, err.Error(), "no repetitions config")
}
