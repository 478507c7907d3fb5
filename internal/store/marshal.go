package store

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/roach88/grdb/internal/ir"
)

// marshalColumn encodes v as JSON TEXT for storage.
// HTML escaping is disabled so stored text matches what callers wrote.
func marshalColumn(name string, v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("marshal %s: %w", name, err)
	}
	// Encoder adds a trailing newline, remove it
	return strings.TrimSpace(buf.String()), nil
}

// marshalNullableColumn encodes v, or returns NULL when present is false.
func marshalNullableColumn(name string, v any, present bool) (any, error) {
	if !present {
		return nil, nil
	}
	return marshalColumn(name, v)
}

// unmarshalColumn decodes a JSON column. Malformed content is a
// CorruptEncoding error.
func unmarshalColumn(name, data string, v any) error {
	if err := json.Unmarshal([]byte(data), v); err != nil {
		return &ir.Error{
			Code:    ir.ErrCodeCorruptEncoding,
			Message: fmt.Sprintf("malformed %s column", name),
			Err:     err,
		}
	}
	return nil
}

func nullFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func nullInt(n *int) any {
	if n == nil {
		return nil
	}
	return int64(*n)
}

func nullUUID(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return id.String()
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	f := n.Float64
	return &f
}

func uuidPtr(s sql.NullString) (*uuid.UUID, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	id, err := parseUUID(s.String)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func parseUUID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, &ir.Error{
			Code:    ir.ErrCodeCorruptEncoding,
			Message: fmt.Sprintf("malformed uuid %q", s),
			Err:     err,
		}
	}
	return id, nil
}

// withUUID attaches id to an *ir.Error that names no pulse yet.
func withUUID(err error, id uuid.UUID) error {
	var e *ir.Error
	if errors.As(err, &e) && len(e.UUIDs) == 0 {
		cp := *e
		cp.UUIDs = []uuid.UUID{id}
		return &cp
	}
	return err
}

// classify turns driver constraint failures into ConstraintViolation errors.
// Other errors are wrapped unchanged.
func classify(err error, op string, ids ...uuid.UUID) error {
	if isConstraintErr(err) {
		return &ir.Error{
			Code:    ir.ErrCodeConstraintViolation,
			Message: op,
			UUIDs:   ids,
			Err:     err,
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
