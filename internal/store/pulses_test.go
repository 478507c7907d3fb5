package store

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/uuid"

	"github.com/roach88/grdb/internal/ir"
)

func TestInsertPulses_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	ref := testUUID(9)
	noise := testUUID(8)
	pass := 2
	row := createTestPulse(1)
	row.Reference = &ref
	row.Noise = &noise
	row.PassNumber = &pass
	row.Point = ir.Point3D{X: ir.Pt(1, 0, 0).X}
	row.Annotations = []ir.KVPair{ir.KV("s", "v"), ir.KV("n", 42), ir.KV("f", 3.14)}

	update(t, s, func(tx *Tx) error {
		return tx.InsertPulses(ctx, []PulseRow{row})
	})

	view(t, s, func(tx *Tx) error {
		rows, err := tx.PulsesByUUID(ctx, []uuid.UUID{row.UUID})
		if err != nil {
			return err
		}
		got, ok := rows[row.UUID]
		if !ok {
			t.Fatal("pulse not found after insert")
		}
		if diff := cmp.Diff(row, got, cmpopts.EquateApprox(1e-6, 0)); diff != "" {
			t.Errorf("row mismatch (-want +got):\n%s", diff)
		}
		return nil
	})
}

func TestInsertPulses_Duplicate(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	update(t, s, func(tx *Tx) error {
		return tx.InsertPulses(ctx, []PulseRow{createTestPulse(1)})
	})

	err := s.Update(ctx, func(tx *Tx) error {
		return tx.InsertPulses(ctx, []PulseRow{createTestPulse(2), createTestPulse(1)})
	})
	if !ir.IsDuplicateKey(err) {
		t.Fatalf("InsertPulses() error = %v, want DuplicateKey", err)
	}
	if !ir.IsConstraintViolation(err) {
		t.Error("DuplicateKey should also count as a constraint violation")
	}

	// The whole batch rolled back, including pulse 2.
	view(t, s, func(tx *Tx) error {
		missing, err := tx.MissingUUIDs(ctx, testUUIDs(1, 2))
		if err != nil {
			return err
		}
		if diff := cmp.Diff(testUUIDs(2), missing); diff != "" {
			t.Errorf("MissingUUIDs() mismatch (-want +got):\n%s", diff)
		}
		return nil
	})
}

func TestEnsurePulses_ReportsExisting(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	update(t, s, func(tx *Tx) error {
		return tx.InsertPulses(ctx, []PulseRow{createTestPulse(1)})
	})

	update(t, s, func(tx *Tx) error {
		existing, err := tx.EnsurePulses(ctx, []PulseRow{createTestPulse(1), createTestPulse(2)})
		if err != nil {
			return err
		}
		if diff := cmp.Diff(testUUIDs(1), existing); diff != "" {
			t.Errorf("EnsurePulses() mismatch (-want +got):\n%s", diff)
		}
		return nil
	})
}

func TestMissingUUIDs_OrderAndRepeats(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	update(t, s, func(tx *Tx) error {
		return tx.InsertPulses(ctx, []PulseRow{createTestPulse(2)})
	})

	view(t, s, func(tx *Tx) error {
		missing, err := tx.MissingUUIDs(ctx, testUUIDs(3, 2, 1, 3))
		if err != nil {
			return err
		}
		if diff := cmp.Diff(testUUIDs(3, 1), missing); diff != "" {
			t.Errorf("MissingUUIDs() mismatch (-want +got):\n%s", diff)
		}
		return nil
	})
}

func TestFinalPulses_ExcludesSources(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	// Three plain pulses, one of which is stitched from two sources.
	stitched := createTestPulse(3)
	update(t, s, func(tx *Tx) error {
		rows := []PulseRow{createTestPulse(1), createTestPulse(2)}
		for _, n := range []int{10, 11} {
			rows = append(rows, SourceRow(createTestPulse(n).BaseTrace()))
		}
		rows = append(rows, stitched)
		if err := tx.InsertPulses(ctx, rows); err != nil {
			return err
		}
		return tx.InsertEdges(ctx, []EdgeRow{
			StitchEdge(stitched.UUID, testUUID(10), 0, 0),
			StitchEdge(stitched.UUID, testUUID(11), 1, 1e-11),
		})
	})

	view(t, s, func(tx *Tx) error {
		all, err := tx.FinalPulses(ctx, Page{})
		if err != nil {
			return err
		}
		var ids []uuid.UUID
		for _, r := range all {
			ids = append(ids, r.UUID)
		}
		if diff := cmp.Diff(testUUIDs(1, 2, 3), ids); diff != "" {
			t.Errorf("FinalPulses() mismatch (-want +got):\n%s", diff)
		}

		page, err := tx.FinalPulses(ctx, Page{Offset: 1, Limit: 2})
		if err != nil {
			return err
		}
		if len(page) != 2 || page[0].UUID != testUUID(2) || page[1].UUID != testUUID(3) {
			t.Errorf("FinalPulses(offset 1, limit 2) = %d rows, want pulses 2 and 3", len(page))
		}

		n, err := tx.CountFinals(ctx, ir.VariantSample)
		if err != nil {
			return err
		}
		if n != 3 {
			t.Errorf("CountFinals(sample) = %d, want 3", n)
		}
		n, err = tx.CountFinals(ctx, ir.VariantOther)
		if err != nil {
			return err
		}
		if n != 0 {
			t.Errorf("CountFinals(other) = %d, want 0 since sources are not finals", n)
		}
		return nil
	})
}

func TestFinalPulses_EmptyIsNotNil(t *testing.T) {
	s := createTestStore(t)

	view(t, s, func(tx *Tx) error {
		rows, err := tx.FinalPulses(context.Background(), Page{Variant: ir.VariantReference})
		if err != nil {
			return err
		}
		if rows == nil || len(rows) != 0 {
			t.Errorf("FinalPulses() = %v, want empty slice", rows)
		}
		return nil
	})
}

func TestSetReference(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	ref := testUUID(1)

	update(t, s, func(tx *Tx) error {
		if err := tx.InsertPulses(ctx, []PulseRow{createTestPulse(1), createTestPulse(2), createTestPulse(3)}); err != nil {
			return err
		}
		return tx.SetReference(ctx, testUUIDs(2, 3), &ref)
	})
	update(t, s, func(tx *Tx) error {
		return tx.SetReference(ctx, testUUIDs(3), nil)
	})

	view(t, s, func(tx *Tx) error {
		rows, err := tx.PulsesByUUID(ctx, testUUIDs(2, 3))
		if err != nil {
			return err
		}
		if r := rows[testUUID(2)].Reference; r == nil || *r != ref {
			t.Errorf("pulse 2 reference = %v, want %s", r, ref)
		}
		if r := rows[testUUID(3)].Reference; r != nil {
			t.Errorf("pulse 3 reference = %s, want cleared", r)
		}
		return nil
	})
}

func TestScanPulse_CorruptBlob(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	update(t, s, func(tx *Tx) error {
		return tx.InsertPulses(ctx, []PulseRow{createTestPulse(1)})
	})
	if _, err := s.db.Exec(`UPDATE pulses SET signal = X'000000'`); err != nil {
		t.Fatalf("corrupt blob: %v", err)
	}

	err := s.View(ctx, func(tx *Tx) error {
		_, err := tx.FinalPulses(ctx, Page{})
		return err
	})
	if !ir.IsCorruptEncoding(err) {
		t.Fatalf("FinalPulses() error = %v, want CorruptEncoding", err)
	}

	var e *ir.Error
	if !errors.As(err, &e) || len(e.UUIDs) != 1 || e.UUIDs[0] != testUUID(1) {
		t.Errorf("error does not name the corrupt pulse: %v", err)
	}
}

func TestScanPulse_UnknownVariant(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	update(t, s, func(tx *Tx) error {
		return tx.InsertPulses(ctx, []PulseRow{createTestPulse(1)})
	})
	if _, err := s.db.Exec(`UPDATE pulses SET variant = 'bogus'`); err != nil {
		t.Fatalf("corrupt variant: %v", err)
	}

	err := s.View(ctx, func(tx *Tx) error {
		_, err := tx.FinalPulses(ctx, Page{})
		return err
	})
	if !ir.IsCorruptEncoding(err) {
		t.Fatalf("FinalPulses() error = %v, want CorruptEncoding", err)
	}
}

func TestChunkUUIDs(t *testing.T) {
	ids := make([]uuid.UUID, 2*maxInParams+1)
	chunks := chunkUUIDs(ids)
	if len(chunks) != 3 {
		t.Fatalf("chunks = %d, want 3", len(chunks))
	}
	if len(chunks[2]) != 1 {
		t.Errorf("last chunk = %d ids, want 1", len(chunks[2]))
	}
	if chunkUUIDs(nil) != nil {
		t.Error("chunkUUIDs(nil) should be nil")
	}
}
