package store

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/roach88/grdb/internal/ir"
)

func createTestSession() ir.Session {
	every := 2
	notes := "bench"
	return ir.Session{
		Device: ir.DeviceMetadata{SerialNumber: "123-ABC", FirmwareVersion: "v1.0.0"},
		Config: ir.RasterConfig{
			Patterns:        []ir.RasterPattern{{StartPoint: ir.Pt(0, 0, 0), EndPoint: ir.Pt(1, 1, 1)}},
			StepSize:        0.5,
			ReferencePoint:  &ir.Point3D{X: ir.Pt(0, 0, 0).X},
			AcquireRefEvery: &every,
			Repetitions:     &ir.RepetitionsConfig{Passes: 3, IntervalMillisecs: 30000},
		},
		Metadata: ir.RasterMetadata{
			AppVersion:          "app1",
			RasterID:            testUUID(99),
			Timestamp:           161803398,
			Annotations:         []ir.KVPair{ir.KV("foo", "bar"), ir.KV("baz", 1.0)},
			DeviceConfiguration: map[string]any{"mode": "test"},
			UserCoordinates: &ir.CoordinateTransform{
				ID:     testUUID(98),
				Name:   "Test Coordinate System",
				Offset: ir.Point3DFullyDefined{X: 10, Y: 20, Z: 30},
				Mapping: ir.AxesMapping{
					X: ir.AxisMap{Axis: ir.AxisZ, Sign: 1},
					Y: ir.AxisMap{Axis: ir.AxisY, Sign: -1},
					Z: ir.AxisMap{Axis: ir.AxisX, Sign: 1},
				},
				Notes: &notes,
			},
		},
	}
}

func TestSession_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	want := createTestSession()

	update(t, s, func(tx *Tx) error {
		id, err := tx.InsertSession(ctx, want)
		if err != nil {
			return err
		}
		if id != want.Metadata.RasterID {
			t.Errorf("InsertSession() id = %s, want %s", id, want.Metadata.RasterID)
		}
		return nil
	})

	view(t, s, func(tx *Tx) error {
		got, err := tx.LoadSession(ctx)
		if err != nil {
			return err
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("session mismatch (-want +got):\n%s", diff)
		}
		return nil
	})
}

func TestInsertSession_GeneratesID(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	session := createTestSession()
	session.Metadata.RasterID = uuid.Nil
	session.Metadata.DeviceConfiguration = nil
	session.Config.Patterns = nil

	var id uuid.UUID
	update(t, s, func(tx *Tx) error {
		var err error
		id, err = tx.InsertSession(ctx, session)
		return err
	})
	if id == uuid.Nil {
		t.Fatal("InsertSession() kept the nil id")
	}

	view(t, s, func(tx *Tx) error {
		got, err := tx.LoadSession(ctx)
		if err != nil {
			return err
		}
		if got.Metadata.RasterID != id {
			t.Errorf("RasterID = %s, want %s", got.Metadata.RasterID, id)
		}
		if got.Metadata.DeviceConfiguration == nil || len(got.Metadata.DeviceConfiguration) != 0 {
			t.Errorf("DeviceConfiguration = %v, want empty object", got.Metadata.DeviceConfiguration)
		}
		if got.Config.Patterns == nil || len(got.Config.Patterns) != 0 {
			t.Errorf("Patterns = %v, want empty list", got.Config.Patterns)
		}
		return nil
	})
}

func TestLoadSession_Missing(t *testing.T) {
	s := createTestStore(t)

	err := s.View(context.Background(), func(tx *Tx) error {
		_, err := tx.LoadSession(context.Background())
		return err
	})
	if !ir.IsNotFound(err) {
		t.Fatalf("LoadSession() error = %v, want NotFound", err)
	}
}

func TestUpdateSessionAnnotations(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	err := s.Update(ctx, func(tx *Tx) error {
		return tx.UpdateSessionAnnotations(ctx, []ir.KVPair{ir.KV("a", 1)})
	})
	if !ir.IsNotFound(err) {
		t.Fatalf("UpdateSessionAnnotations() on empty file error = %v, want NotFound", err)
	}

	update(t, s, func(tx *Tx) error {
		if _, err := tx.InsertSession(ctx, createTestSession()); err != nil {
			return err
		}
		return tx.UpdateSessionAnnotations(ctx, []ir.KVPair{ir.KV("a", 1)})
	})

	view(t, s, func(tx *Tx) error {
		got, err := tx.LoadSession(ctx)
		if err != nil {
			return err
		}
		if diff := cmp.Diff([]ir.KVPair{ir.KV("a", 1)}, got.Metadata.Annotations); diff != "" {
			t.Errorf("annotations mismatch (-want +got):\n%s", diff)
		}
		return nil
	})
}

func TestLoadSession_MalformedColumn(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	update(t, s, func(tx *Tx) error {
		_, err := tx.InsertSession(ctx, createTestSession())
		return err
	})
	if _, err := s.db.Exec(`UPDATE raster_info SET patterns = '{not json'`); err != nil {
		t.Fatalf("corrupt patterns: %v", err)
	}

	err := s.View(ctx, func(tx *Tx) error {
		_, err := tx.LoadSession(ctx)
		return err
	})
	if !ir.IsCorruptEncoding(err) {
		t.Fatalf("LoadSession() error = %v, want CorruptEncoding", err)
	}
}
