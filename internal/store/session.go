package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/roach88/grdb/internal/ir"
)

// InsertSession writes the session metadata row. A nil RasterID is replaced
// with a fresh uuid, which is returned.
func (t *Tx) InsertSession(ctx context.Context, s ir.Session) (uuid.UUID, error) {
	id := s.Metadata.RasterID
	if id == uuid.Nil {
		id = uuid.New()
	}

	annotations, err := ir.MarshalAnnotations(s.Metadata.Annotations)
	if err != nil {
		return uuid.Nil, ir.Wrap(ir.ErrCodeValidation, err, "encode session annotations")
	}

	deviceConfig := s.Metadata.DeviceConfiguration
	if deviceConfig == nil {
		deviceConfig = map[string]any{}
	}
	deviceJSON, err := marshalColumn("device_configuration", deviceConfig)
	if err != nil {
		return uuid.Nil, err
	}

	patterns := s.Config.Patterns
	if patterns == nil {
		patterns = []ir.RasterPattern{}
	}
	patternsJSON, err := marshalColumn("patterns", patterns)
	if err != nil {
		return uuid.Nil, err
	}

	refPoint, err := marshalNullableColumn("reference_point", s.Config.ReferencePoint, s.Config.ReferencePoint != nil)
	if err != nil {
		return uuid.Nil, err
	}
	coords, err := marshalNullableColumn("user_coordinates", s.Metadata.UserCoordinates, s.Metadata.UserCoordinates != nil)
	if err != nil {
		return uuid.Nil, err
	}
	reps, err := marshalNullableColumn("repetitions_config", s.Config.Repetitions, s.Config.Repetitions != nil)
	if err != nil {
		return uuid.Nil, err
	}

	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO raster_info
		(id, device_serial_number, device_firmware_version, app_version, timestamp,
		 annotations, device_configuration, patterns, stepsize, reference_point,
		 acquire_ref_every, user_coordinates, repetitions_config)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		id.String(),
		s.Device.SerialNumber,
		s.Device.FirmwareVersion,
		s.Metadata.AppVersion,
		s.Metadata.Timestamp,
		annotations,
		deviceJSON,
		patternsJSON,
		s.Config.StepSize,
		refPoint,
		nullInt(s.Config.AcquireRefEvery),
		coords,
		reps,
	)
	if err != nil {
		return uuid.Nil, classify(err, "insert session")
	}
	return id, nil
}

// errNoSession is returned when the tables exist but the metadata row does not.
func errNoSession() error {
	return ir.NotFoundf("no metadata found in file")
}

// LoadSession reads the session metadata row.
// Returns a NotFound error if the file has no metadata row.
func (t *Tx) LoadSession(ctx context.Context) (ir.Session, error) {
	var (
		s                                     ir.Session
		id, annotations, deviceJSON, patterns string
		refPoint, coords, reps                sql.NullString
		acquireEvery                          sql.NullInt64
	)
	err := t.tx.QueryRowContext(ctx, `
		SELECT id, device_serial_number, device_firmware_version, app_version, timestamp,
		       annotations, device_configuration, patterns, stepsize, reference_point,
		       acquire_ref_every, user_coordinates, repetitions_config
		FROM raster_info
		ORDER BY rowid
		LIMIT 1
	`).Scan(
		&id,
		&s.Device.SerialNumber,
		&s.Device.FirmwareVersion,
		&s.Metadata.AppVersion,
		&s.Metadata.Timestamp,
		&annotations,
		&deviceJSON,
		&patterns,
		&s.Config.StepSize,
		&refPoint,
		&acquireEvery,
		&coords,
		&reps,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Session{}, errNoSession()
	}
	if err != nil {
		return ir.Session{}, fmt.Errorf("load session: %w", err)
	}

	if s.Metadata.RasterID, err = parseUUID(id); err != nil {
		return ir.Session{}, err
	}
	if s.Metadata.Annotations, err = ir.UnmarshalAnnotations(annotations); err != nil {
		return ir.Session{}, &ir.Error{Code: ir.ErrCodeCorruptEncoding, Message: "malformed session annotations", Err: err}
	}
	if err := unmarshalColumn("device_configuration", deviceJSON, &s.Metadata.DeviceConfiguration); err != nil {
		return ir.Session{}, err
	}
	if err := unmarshalColumn("patterns", patterns, &s.Config.Patterns); err != nil {
		return ir.Session{}, err
	}
	if refPoint.Valid {
		s.Config.ReferencePoint = &ir.Point3D{}
		if err := unmarshalColumn("reference_point", refPoint.String, s.Config.ReferencePoint); err != nil {
			return ir.Session{}, err
		}
	}
	if acquireEvery.Valid {
		n := int(acquireEvery.Int64)
		s.Config.AcquireRefEvery = &n
	}
	if coords.Valid {
		s.Metadata.UserCoordinates = &ir.CoordinateTransform{}
		if err := unmarshalColumn("user_coordinates", coords.String, s.Metadata.UserCoordinates); err != nil {
			return ir.Session{}, err
		}
	}
	if reps.Valid {
		s.Config.Repetitions = &ir.RepetitionsConfig{}
		if err := unmarshalColumn("repetitions_config", reps.String, s.Config.Repetitions); err != nil {
			return ir.Session{}, err
		}
	}

	return s, nil
}

// UpdateSessionAnnotations replaces the session annotation list.
// Returns a NotFound error if the file has no metadata row.
func (t *Tx) UpdateSessionAnnotations(ctx context.Context, annotations []ir.KVPair) error {
	encoded, err := ir.MarshalAnnotations(annotations)
	if err != nil {
		return ir.Wrap(ir.ErrCodeValidation, err, "encode session annotations")
	}

	res, err := t.tx.ExecContext(ctx, `
		UPDATE raster_info SET annotations = ?
		WHERE rowid = (SELECT rowid FROM raster_info ORDER BY rowid LIMIT 1)
	`, encoded)
	if err != nil {
		return fmt.Errorf("update session annotations: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update session annotations: %w", err)
	}
	if n == 0 {
		return errNoSession()
	}
	return nil
}
