package pulsedb

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/roach88/grdb/internal/composition"
	"github.com/roach88/grdb/internal/ir"
	"github.com/roach88/grdb/internal/store"
)

// Page selects a window of final measurements. A zero Limit means no limit
// and an empty Variant matches every variant.
type Page = store.Page

// Migration reports the layout versions a file moved between.
type Migration = store.Migration

// Metadata is the session of a file plus counts of its final pulses.
type Metadata struct {
	Session    ir.Session `json:"session"`
	References int        `json:"references"`
	Samples    int        `json:"samples"`
}

// Repository is the set of operations on one raster file.
type Repository struct {
	path   string
	logger *slog.Logger
}

// Option configures a Repository.
type Option func(*Repository)

// WithLogger sets the logger for operation events.
//
// Default: slog.Default()
func WithLogger(l *slog.Logger) Option {
	return func(r *Repository) {
		r.logger = l
	}
}

// New returns a Repository for the file at path. The file is not touched
// until the first call.
func New(path string, opts ...Option) *Repository {
	r := &Repository{path: path, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Path returns the file path.
func (r *Repository) Path() string {
	return r.path
}

// Create makes a new file holding session. A nil RasterID is replaced with a
// generated one, which is returned.
//
// Returns a Validation error if the session is invalid or the file exists.
func (r *Repository) Create(ctx context.Context, session ir.Session) (uuid.UUID, error) {
	if err := session.Validate(); err != nil {
		return uuid.Nil, err
	}

	var id uuid.UUID
	err := store.Create(ctx, r.path, func(tx *store.Tx) error {
		var err error
		id, err = tx.InsertSession(ctx, session)
		return err
	})
	if err != nil {
		return uuid.Nil, err
	}

	r.logger.Info("raster file created",
		"path", r.path,
		"raster_id", id,
		"schema_version", ir.CurrentSchemaVersion,
	)
	return id, nil
}

// Append writes a batch of measurements in one transaction.
//
// Every measurement is validated against its own invariants and the
// session's repetitions config before any row is written.
func (r *Repository) Append(ctx context.Context, measurements ...ir.Measurement) error {
	err := r.update(ctx, func(tx *store.Tx) error {
		session, err := tx.LoadSession(ctx)
		if err != nil {
			return err
		}
		for _, m := range measurements {
			if err := session.Config.CheckPassNumber(m); err != nil {
				return err
			}
		}
		return composition.Write(ctx, tx, measurements...)
	})
	if err != nil {
		return err
	}

	r.logger.Info("measurements appended", "path", r.path, "count", len(measurements))
	return nil
}

// LoadMetadata returns the session with the number of final reference and
// sample pulses.
func (r *Repository) LoadMetadata(ctx context.Context) (Metadata, error) {
	var md Metadata
	err := r.view(ctx, func(tx *store.Tx) error {
		var err error
		if md.Session, err = tx.LoadSession(ctx); err != nil {
			return err
		}
		if md.References, err = tx.CountFinals(ctx, ir.VariantReference); err != nil {
			return err
		}
		md.Samples, err = tx.CountFinals(ctx, ir.VariantSample)
		return err
	})
	return md, err
}

// LoadMeasurements returns a page of final measurements with their lineage
// rebuilt, in the order they were written.
func (r *Repository) LoadMeasurements(ctx context.Context, page Page) ([]ir.Measurement, error) {
	if page.Offset < 0 || page.Limit < 0 {
		return nil, ir.Validationf("page offset and limit must not be negative")
	}
	if page.Variant != "" && !page.Variant.Valid() {
		return nil, ir.Validationf("unknown variant %q", page.Variant)
	}

	var out []ir.Measurement
	err := r.view(ctx, func(tx *store.Tx) error {
		if _, err := tx.LoadSession(ctx); err != nil {
			return err
		}
		var err error
		out, err = composition.Load(ctx, tx, page)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateAnnotations replaces the session's annotation list.
func (r *Repository) UpdateAnnotations(ctx context.Context, annotations []ir.KVPair) error {
	if err := ir.ValidateAnnotations(annotations); err != nil {
		return err
	}

	err := r.update(ctx, func(tx *store.Tx) error {
		return tx.UpdateSessionAnnotations(ctx, annotations)
	})
	if err != nil {
		return err
	}

	r.logger.Info("annotations updated", "path", r.path, "count", len(annotations))
	return nil
}

// UpdateReference points every pulse in ids at ref, or clears their
// reference when ref is nil.
//
// Returns a NotFound error listing every uuid, ref included, that has no
// pulse. Nothing is changed in that case.
func (r *Repository) UpdateReference(ctx context.Context, ids []uuid.UUID, ref *uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}

	lookup := ids
	if ref != nil {
		lookup = append(append([]uuid.UUID{}, ids...), *ref)
	}

	err := r.update(ctx, func(tx *store.Tx) error {
		if _, err := tx.LoadSession(ctx); err != nil {
			return err
		}
		missing, err := tx.MissingUUIDs(ctx, lookup)
		if err != nil {
			return err
		}
		if len(missing) > 0 {
			return ir.UnknownUUIDs(missing)
		}
		return tx.SetReference(ctx, ids, ref)
	})
	if err != nil {
		return err
	}

	r.logger.Info("references updated", "path", r.path, "count", len(ids), "cleared", ref == nil)
	return nil
}

// Migrate brings the file to the current layout and reports the versions it
// moved between. A current file is left untouched.
func (r *Repository) Migrate(ctx context.Context) (Migration, error) {
	return r.open(ctx, func(s *store.Store) error { return nil })
}

// SchemaVersion returns the layout version of the file after migration.
func (r *Repository) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	err := r.view(ctx, func(tx *store.Tx) error {
		var err error
		version, err = tx.SchemaVersion(ctx)
		return err
	})
	return version, err
}

func (r *Repository) update(ctx context.Context, fn func(*store.Tx) error) error {
	_, err := r.open(ctx, func(s *store.Store) error {
		return s.Update(ctx, fn)
	})
	return err
}

func (r *Repository) view(ctx context.Context, fn func(*store.Tx) error) error {
	_, err := r.open(ctx, func(s *store.Store) error {
		return s.View(ctx, fn)
	})
	return err
}

// open runs fn against the migrated file and closes it on every path.
func (r *Repository) open(ctx context.Context, fn func(*store.Store) error) (Migration, error) {
	r.logger.Debug("opening raster file", "path", r.path)

	s, err := store.Open(ctx, r.path)
	if err != nil {
		return Migration{}, err
	}
	defer s.Close()

	m := s.Migration()
	if m.Applied() {
		r.logger.Info("raster file migrated", "path", r.path, "from", m.From, "to", m.To)
	}

	if err := fn(s); err != nil {
		r.logger.Debug("operation failed", "path", r.path, "error", err)
		return m, err
	}
	return m, nil
}
