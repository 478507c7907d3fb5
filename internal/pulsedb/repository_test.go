package pulsedb

import (
	"bytes"
	"context"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/grdb/internal/ir"
	"github.com/roach88/grdb/internal/store"
)

func testSession() ir.Session {
	return ir.Session{
		Device: ir.DeviceMetadata{SerialNumber: "123-ABC", FirmwareVersion: "v1.0.0"},
		Config: ir.RasterConfig{
			Patterns:    []ir.RasterPattern{{StartPoint: ir.Pt(0, 0, 0), EndPoint: ir.Pt(1, 1, 1)}},
			StepSize:    0.5,
			Repetitions: &ir.RepetitionsConfig{Passes: 3, IntervalMillisecs: 30000},
		},
		Metadata: ir.RasterMetadata{
			AppVersion:          "app1",
			Timestamp:           161803398,
			Annotations:         []ir.KVPair{ir.KV("foo", "bar")},
			DeviceConfiguration: map[string]any{"mode": "test"},
		},
	}
}

func quietRepo(path string) *Repository {
	return New(path, WithLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))))
}

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo := quietRepo(filepath.Join(t.TempDir(), "test.grdb"))
	_, err := repo.Create(context.Background(), testSession())
	require.NoError(t, err)
	return repo
}

func trace() ir.BaseTrace {
	return ir.BaseTrace{
		UUID:      uuid.New(),
		Timestamp: 1000,
		Time:      []float64{0, 1, 2},
		Signal:    []float64{0.5, 0.25, -1},
	}
}

func sample(variant ir.Variant) ir.Measurement {
	return ir.Measurement{
		Pulse:       ir.Trace{BaseTrace: trace()},
		Point:       ir.Pt(1, 2, 3),
		Variant:     variant,
		Annotations: []ir.KVPair{},
	}
}

func TestCreate_LoadMetadata(t *testing.T) {
	repo := quietRepo(filepath.Join(t.TempDir(), "test.grdb"))
	ctx := context.Background()

	id, err := repo.Create(ctx, testSession())
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, id)

	require.NoError(t, repo.Append(ctx,
		sample(ir.VariantReference),
		sample(ir.VariantSample),
		sample(ir.VariantSample),
		sample(ir.VariantNoise),
	))

	md, err := repo.LoadMetadata(ctx)
	require.NoError(t, err)
	assert.Equal(t, id, md.Session.Metadata.RasterID)
	assert.Equal(t, "123-ABC", md.Session.Device.SerialNumber)
	assert.Equal(t, 1, md.References)
	assert.Equal(t, 2, md.Samples)
}

func TestCreate_Rejections(t *testing.T) {
	ctx := context.Background()

	t.Run("invalid session leaves no file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "test.grdb")
		bad := testSession()
		bad.Device.SerialNumber = ""

		_, err := quietRepo(path).Create(ctx, bad)
		assert.True(t, ir.IsValidation(err), "got %v", err)
		assert.NoFileExists(t, path)
	})

	t.Run("existing file", func(t *testing.T) {
		repo := newTestRepo(t)
		_, err := repo.Create(ctx, testSession())
		assert.True(t, ir.IsValidation(err), "got %v", err)
	})
}

func TestMissingFile(t *testing.T) {
	repo := quietRepo(filepath.Join(t.TempDir(), "missing.grdb"))
	ctx := context.Background()

	_, err := repo.LoadMetadata(ctx)
	assert.True(t, ir.IsNotFound(err), "LoadMetadata: %v", err)
	_, err = repo.LoadMeasurements(ctx, Page{})
	assert.True(t, ir.IsNotFound(err), "LoadMeasurements: %v", err)
	err = repo.Append(ctx, sample(ir.VariantSample))
	assert.True(t, ir.IsNotFound(err), "Append: %v", err)
	err = repo.UpdateAnnotations(ctx, nil)
	assert.True(t, ir.IsNotFound(err), "UpdateAnnotations: %v", err)
	_, err = repo.Migrate(ctx)
	assert.True(t, ir.IsNotFound(err), "Migrate: %v", err)

	assert.Contains(t, err.Error(), "does not exist")
	assert.NoFileExists(t, repo.Path())
}

func TestMissingMetadata(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bare.grdb")
	require.NoError(t, store.Create(context.Background(), path, func(*store.Tx) error { return nil }))
	repo := quietRepo(path)
	ctx := context.Background()

	_, err := repo.LoadMetadata(ctx)
	require.True(t, ir.IsNotFound(err), "got %v", err)
	assert.Contains(t, err.Error(), "no metadata found in file")

	_, err = repo.LoadMeasurements(ctx, Page{})
	assert.True(t, ir.IsNotFound(err), "got %v", err)
	err = repo.Append(ctx, sample(ir.VariantSample))
	assert.True(t, ir.IsNotFound(err), "got %v", err)
}

func TestAppend_RoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	ref := sample(ir.VariantReference)
	m := sample(ir.VariantSample)
	pass := 2
	m.PassNumber = &pass
	m.Reference = &ref.Pulse.UUID
	m.Annotations = []ir.KVPair{ir.KV("s", "v"), ir.KV("n", 42), ir.KV("f", 3.14)}
	m.Point = ir.Point3D{Z: ir.Pt(0, 0, 4).Z}

	require.NoError(t, repo.Append(ctx, ref, m))

	got, err := repo.LoadMeasurements(ctx, Page{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, ref, got[0])
	assert.Equal(t, m, got[1])

	samples, err := repo.LoadMeasurements(ctx, Page{Variant: ir.VariantSample})
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.Equal(t, m.Pulse.UUID, samples[0].Pulse.UUID)
}

func TestAppend_PassNumber(t *testing.T) {
	ctx := context.Background()

	t.Run("out of range", func(t *testing.T) {
		repo := newTestRepo(t)
		m := sample(ir.VariantSample)
		pass := 4
		m.PassNumber = &pass
		err := repo.Append(ctx, m)
		assert.True(t, ir.IsValidation(err), "got %v", err)
	})

	t.Run("no repetitions config", func(t *testing.T) {
		repo := quietRepo(filepath.Join(t.TempDir(), "test.grdb"))
		session := testSession()
		session.Config.Repetitions = nil
		_, err := repo.Create(ctx, session)
		require.NoError(t, err)

		m := sample(ir.VariantSample)
		pass := 1
		m.PassNumber = &pass
		err = repo.Append(ctx, m)
		require.True(t, ir.IsValidation(err), "got %v", err)
		assert.Contains(t, err.Error(), "no repetitions config")
	})
}

func TestAppend_BothLineagesWritesNothing(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	bad := sample(ir.VariantSample)
	bad.Pulse.DerivedFrom = []ir.PulseComposition{{Pulse: trace(), Position: 0}, {Pulse: trace(), Position: 1}}
	bad.Pulse.AveragedFrom = []ir.Trace{{BaseTrace: trace()}, {BaseTrace: trace()}}

	err := repo.Append(ctx, sample(ir.VariantSample), bad)
	require.True(t, ir.IsValidation(err), "got %v", err)

	got, err := repo.LoadMeasurements(ctx, Page{})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestAppend_StitchPositions(t *testing.T) {
	ctx := context.Background()

	t.Run("negative position", func(t *testing.T) {
		repo := newTestRepo(t)
		m := sample(ir.VariantSample)
		m.Pulse.DerivedFrom = []ir.PulseComposition{{Pulse: trace(), Position: math.MinInt}, {Pulse: trace(), Position: 1}}

		err := repo.Append(ctx, m)
		require.True(t, ir.IsValidation(err), "got %v", err)
		assert.Contains(t, err.Error(), "negative")
	})

	t.Run("large positions read back in order", func(t *testing.T) {
		repo := newTestRepo(t)
		m := sample(ir.VariantSample)
		m.Pulse.DerivedFrom = []ir.PulseComposition{
			{Pulse: trace(), Position: math.MaxInt},
			{Pulse: trace(), Position: 0},
		}
		require.NoError(t, repo.Append(ctx, m))

		got, err := repo.LoadMeasurements(ctx, Page{})
		require.NoError(t, err)
		require.Len(t, got, 1)
		stitched := got[0].Pulse.DerivedFrom
		require.Len(t, stitched, 2)
		assert.Equal(t, 0, stitched[0].Position)
		assert.Equal(t, math.MaxInt, stitched[1].Position)
	})
}

func TestUpdateAnnotations(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	want := []ir.KVPair{ir.KV("operator", "kim"), ir.KV("run", 7)}
	require.NoError(t, repo.UpdateAnnotations(ctx, want))

	md, err := repo.LoadMetadata(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, md.Session.Metadata.Annotations)

	err = repo.UpdateAnnotations(ctx, []ir.KVPair{{Key: "", Value: ir.Int(1)}})
	assert.True(t, ir.IsValidation(err), "got %v", err)
}

func TestUpdateReference(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	ref := sample(ir.VariantReference)
	a, b := sample(ir.VariantSample), sample(ir.VariantSample)
	require.NoError(t, repo.Append(ctx, ref, a, b))

	require.NoError(t, repo.UpdateReference(ctx, []uuid.UUID{a.Pulse.UUID, b.Pulse.UUID}, &ref.Pulse.UUID))
	require.NoError(t, repo.UpdateReference(ctx, []uuid.UUID{b.Pulse.UUID}, nil))

	got, err := repo.LoadMeasurements(ctx, Page{Variant: ir.VariantSample})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.NotNil(t, got[0].Reference)
	assert.Equal(t, ref.Pulse.UUID, *got[0].Reference)
	assert.Nil(t, got[1].Reference)
}

func TestUpdateReference_UnknownUUIDs(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	a := sample(ir.VariantSample)
	require.NoError(t, repo.Append(ctx, a))

	ghost, ghostRef := uuid.New(), uuid.New()
	err := repo.UpdateReference(ctx, []uuid.UUID{a.Pulse.UUID, ghost}, &ghostRef)
	require.True(t, ir.IsNotFound(err), "got %v", err)
	assert.Contains(t, err.Error(), ghost.String())
	assert.Contains(t, err.Error(), ghostRef.String())

	got, err := repo.LoadMeasurements(ctx, Page{})
	require.NoError(t, err)
	assert.Nil(t, got[0].Reference, "a failed update must not change anything")
}

func TestMigrate_CurrentFile(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	m, err := repo.Migrate(ctx)
	require.NoError(t, err)
	assert.False(t, m.Applied())
	assert.Equal(t, ir.CurrentSchemaVersion, m.To)

	version, err := repo.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, ir.CurrentSchemaVersion, version)
}

func TestLoadMeasurements_BadPage(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.LoadMeasurements(context.Background(), Page{Offset: -1})
	assert.True(t, ir.IsValidation(err), "got %v", err)
	_, err = repo.LoadMeasurements(context.Background(), Page{Variant: "bogus"})
	assert.True(t, ir.IsValidation(err), "got %v", err)
}

func TestWithLogger(t *testing.T) {
	var buf bytes.Buffer
	repo := New(filepath.Join(t.TempDir(), "test.grdb"), WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))
	ctx := context.Background()

	_, err := repo.Create(ctx, testSession())
	require.NoError(t, err)
	require.NoError(t, repo.Append(ctx, sample(ir.VariantSample)))

	assert.Contains(t, buf.String(), "raster file created")
	assert.Contains(t, buf.String(), "measurements appended")
	assert.Contains(t, buf.String(), "count=1")
}

func TestRepository_ClosesFile(t *testing.T) {
	repo := newTestRepo(t)
	require.NoError(t, repo.Append(context.Background(), sample(ir.VariantSample)))

	// The rollback journal only exists while a handle holds a write.
	_, err := os.Stat(repo.Path() + "-journal")
	assert.True(t, os.IsNotExist(err))

	// A closed file can be removed and recreated.
	require.NoError(t, os.Remove(repo.Path()))
	_, err = repo.Create(context.Background(), testSession())
	require.NoError(t, err)
}
