package config

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/grdb/internal/ir"
)

//go:embed schema.cue
var schemaSource string

// Error code constants for session definition loading.
const (
	ErrCodeReadFailed  = "E201" // File missing or unreadable
	ErrCodeUnsupported = "E202" // Unknown file extension
	ErrCodeSyntax      = "E203" // CUE or YAML syntax error
	ErrCodeSchema      = "E204" // Definition does not match the session schema
	ErrCodeInvalid     = "E205" // Session fails validation
)

// LoadError is a failed session definition load. Line and Column are zero
// when the failure has no position.
type LoadError struct {
	Code    string
	Message string
	File    string
	Line    int
	Column  int
	Err     error
}

func (e *LoadError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.File, e.Line, e.Column, e.Code, e.Message)
	}
	if e.File != "" {
		return fmt.Sprintf("%s: %s: %s", e.File, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Load reads a session definition, choosing the format by extension:
// .cue, .yaml or .yml.
func Load(path string) (ir.Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ir.Session{}, &LoadError{
			Code:    ErrCodeReadFailed,
			Message: fmt.Sprintf("reading session definition: %v", err),
			File:    path,
			Err:     err,
		}
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".cue":
		return LoadCUE(path, data)
	case ".yaml", ".yml":
		return LoadYAML(path, data)
	default:
		return ir.Session{}, &LoadError{
			Code:    ErrCodeUnsupported,
			Message: fmt.Sprintf("unsupported extension %q (want .cue, .yaml or .yml)", filepath.Ext(path)),
			File:    path,
		}
	}
}

// LoadCUE compiles data as CUE, unifies it with the #Session definition
// and decodes the concrete result. name is used in positions.
func LoadCUE(name string, data []byte) (ir.Session, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return ir.Session{}, fmt.Errorf("compile session schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Session"))

	value := ctx.CompileBytes(data, cue.Filename(name))
	if err := value.Err(); err != nil {
		return ir.Session{}, cueLoadError(ErrCodeSyntax, name, err)
	}

	unified := def.Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return ir.Session{}, cueLoadError(ErrCodeSchema, name, err)
	}

	raw, err := unified.MarshalJSON()
	if err != nil {
		return ir.Session{}, cueLoadError(ErrCodeSchema, name, err)
	}

	var session ir.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return ir.Session{}, &LoadError{
			Code:    ErrCodeSchema,
			Message: fmt.Sprintf("decoding session: %v", err),
			File:    name,
			Err:     err,
		}
	}
	return validated(name, session)
}

func validated(name string, session ir.Session) (ir.Session, error) {
	if err := session.Validate(); err != nil {
		return ir.Session{}, &LoadError{
			Code:    ErrCodeInvalid,
			Message: err.Error(),
			File:    name,
			Err:     err,
		}
	}
	return session, nil
}

// cueLoadError reports the first CUE error at its position in the
// definition file, falling back to any position it carries.
func cueLoadError(code, name string, err error) *LoadError {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &LoadError{Code: code, Message: err.Error(), File: name, Err: err}
	}

	first := errs[0]
	le := &LoadError{Code: code, Message: first.Error(), File: name, Err: err}
	if pos, ok := pickPos(cueerrors.Positions(first), name); ok {
		le.File = pos.Filename()
		le.Line = pos.Line()
		le.Column = pos.Column()
	}
	return le
}

func pickPos(positions []token.Pos, name string) (token.Pos, bool) {
	for _, p := range positions {
		if p.IsValid() && p.Filename() == name {
			return p, true
		}
	}
	for _, p := range positions {
		if p.IsValid() {
			return p, true
		}
	}
	return token.NoPos, false
}

// IsLoadError reports whether err is a LoadError and returns it.
func IsLoadError(err error) (*LoadError, bool) {
	var le *LoadError
	if errors.As(err, &le) {
		return le, true
	}
	return nil, false
}
