package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/roach88/grdb/internal/config"
	"github.com/roach88/grdb/internal/ir"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Operation rejected (validation, unknown uuid, failed scenarios)
	ExitCommandError = 2 // Command error (missing file, bad input)
)

// Error codes for CLI responses. Session definition errors keep the E2xx
// codes of the config package.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeBadInput    = "E002" // Malformed argument or flag
	ErrCodeReadFailed  = "E003" // Input file unreadable
	ErrCodeDecode      = "E004" // Input file not valid JSON
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeFileExists  = "E006" // Refusing to overwrite
	ErrCodeWriteFailed = "E007" // File write error

	ErrCodeRecordNotFound      = "E011" // Missing metadata row or unknown uuid
	ErrCodeValidation          = "E012" // Rejected before any write
	ErrCodeConstraintViolation = "E013" // Rejected by the storage layer
	ErrCodeDuplicateKey        = "E014" // UUID already stored
	ErrCodeCorruptEncoding     = "E015" // Malformed stored data
	ErrCodeMigrationFailure    = "E016" // Schema upgrade failed

	ErrCodeTestFailed = "E_TEST_FAILED"
)

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`              // "E001", "E204", etc.
	Message string `json:"message"`           // human-readable message
	Details any    `json:"details,omitempty"` // additional context
}

// Success outputs a successful result in the configured format. Text
// output prints data with fmt, so result types implement fmt.Stringer.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	_, err := fmt.Fprintln(f.Writer, data)
	return err
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// VerboseLog outputs a message only if verbose mode is enabled.
// When format is JSON, verbose logs go to ErrWriter to avoid corrupting JSON output.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns the appropriate writer for diagnostic output.
// Returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}

// Fail reports a command error and returns the ExitError for it.
func (f *OutputFormatter) Fail(exit int, code, message string, err error) error {
	msg := message
	if err != nil {
		msg = fmt.Sprintf("%s: %v", message, err)
	}
	if outErr := f.Error(code, msg, nil); outErr != nil {
		return outErr
	}
	return WrapExitError(exit, message, err)
}

// Report outputs err with the code matching its kind and returns the
// ExitError for it. Session definition errors and bad input exit with
// ExitCommandError; everything the raster file rejects exits with
// ExitFailure.
func (f *OutputFormatter) Report(message string, err error) error {
	var le *config.LoadError
	if errors.As(err, &le) {
		if outErr := f.Error(le.Code, le.Error(), loadDetails(le)); outErr != nil {
			return outErr
		}
		return WrapExitError(ExitCommandError, message, err)
	}

	var ie *ir.Error
	if errors.As(err, &ie) {
		var details any
		if len(ie.UUIDs) > 0 {
			details = map[string][]uuid.UUID{"uuids": ie.UUIDs}
		}
		if outErr := f.Error(domainCode(ie.Code), ie.Error(), details); outErr != nil {
			return outErr
		}
		return WrapExitError(ExitFailure, message, err)
	}

	return f.Fail(ExitFailure, ErrCodeGeneric, message, err)
}

func loadDetails(le *config.LoadError) map[string]any {
	d := map[string]any{}
	if le.File != "" {
		d["file"] = le.File
	}
	if le.Line > 0 {
		d["line"] = le.Line
		d["column"] = le.Column
	}
	if len(d) == 0 {
		return nil
	}
	return d
}

// domainCode maps a raster file error category to its CLI code.
func domainCode(c ir.ErrorCode) string {
	switch c {
	case ir.ErrCodeNotFound:
		return ErrCodeRecordNotFound
	case ir.ErrCodeValidation:
		return ErrCodeValidation
	case ir.ErrCodeConstraintViolation:
		return ErrCodeConstraintViolation
	case ir.ErrCodeDuplicateKey:
		return ErrCodeDuplicateKey
	case ir.ErrCodeCorruptEncoding:
		return ErrCodeCorruptEncoding
	case ir.ErrCodeMigrationFailure:
		return ErrCodeMigrationFailure
	default:
		return ErrCodeGeneric
	}
}
