package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/grdb/internal/ir"
)

// Scenario is a scripted sequence of raster file operations with
// assertions on the resulting file.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario covers.
	Description string `yaml:"description"`

	// Session is a CUE or YAML session definition, relative to the scenario
	// file. When empty the file is created with dummy metadata.
	Session string `yaml:"session,omitempty"`

	// Seed fixes uuids, timestamps and signal samples.
	Seed uint64 `yaml:"seed"`

	// Steps run in order against one file.
	Steps []Step `yaml:"steps"`

	// Assertions validate the file after the last step.
	// Supported types: final_count, lineage, reference, annotation, step_error
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one operation. Exactly one of Append, Annotate, SetReference and
// Migrate is set.
type Step struct {
	Append       []MeasurementStep `yaml:"append,omitempty"`
	Annotate     []AnnotationStep  `yaml:"annotate,omitempty"`
	SetReference *ReferenceStep    `yaml:"set_reference,omitempty"`
	Migrate      bool              `yaml:"migrate,omitempty"`

	// ExpectError is the error code the step must fail with, e.g.
	// VALIDATION. Empty means the step must succeed.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// MeasurementStep describes one measurement to append.
type MeasurementStep struct {
	// Label names the measurement for later steps and assertions.
	// Defaults to m<N>, counting every appended measurement from 0.
	Label string `yaml:"label,omitempty"`

	Variant    string `yaml:"variant"`
	Point      *Point `yaml:"point,omitempty"`
	Reference  string `yaml:"reference,omitempty"` // label of an earlier measurement
	PassNumber *int   `yaml:"pass_number,omitempty"`
	Length     int    `yaml:"length,omitempty"`
	Stitched   int    `yaml:"stitched,omitempty"`
	Averaged   int    `yaml:"averaged,omitempty"`

	// AveragedStitched stitches every averaged source from this many segments.
	AveragedStitched int              `yaml:"averaged_stitched,omitempty"`
	Annotations      []AnnotationStep `yaml:"annotations,omitempty"`
}

// Point is a measurement position; unset axes stay unset.
type Point struct {
	X *float64 `yaml:"x"`
	Y *float64 `yaml:"y"`
	Z *float64 `yaml:"z"`
}

// AnnotationStep is one key/value pair. Values are typed the way a command
// line would type them.
type AnnotationStep struct {
	Key   string `yaml:"key"`
	Value string `yaml:"value"`
}

// ReferenceStep points Pulses at Ref, or clears their reference when Ref
// is empty.
type ReferenceStep struct {
	Pulses []string `yaml:"pulses"`
	Ref    string   `yaml:"ref,omitempty"`
}

// Op names the operation of a step.
func (s Step) Op() string {
	switch {
	case s.Append != nil:
		return OpAppend
	case s.Annotate != nil:
		return OpAnnotate
	case s.SetReference != nil:
		return OpSetReference
	case s.Migrate:
		return OpMigrate
	default:
		return ""
	}
}

// Step operation names.
const (
	OpAppend       = "append"
	OpAnnotate     = "annotate"
	OpSetReference = "set_reference"
	OpMigrate      = "migrate"
)

// Assertion validates the final file.
type Assertion struct {
	// Type specifies the assertion type:
	// - "final_count": number of final measurements, optionally of Variant
	// - "lineage": lineage of Label as described by Lineage, e.g. "stitch[2]"
	// - "reference": Label points at Ref, or at nothing when Ref is empty
	// - "annotation": session annotation Key has Value
	// - "step_error": step Step failed with Code
	Type string `yaml:"type"`

	Variant string `yaml:"variant,omitempty"`
	Count   *int   `yaml:"count,omitempty"`
	Label   string `yaml:"label,omitempty"`
	Lineage string `yaml:"lineage,omitempty"`
	Ref     string `yaml:"ref,omitempty"`
	Key     string `yaml:"key,omitempty"`
	Value   string `yaml:"value,omitempty"`
	Step    int    `yaml:"step,omitempty"`
	Code    string `yaml:"code,omitempty"`
}

// Assertion type constants.
const (
	AssertFinalCount = "final_count"
	AssertLineage    = "lineage"
	AssertReference  = "reference"
	AssertAnnotation = "annotation"
	AssertStepError  = "step_error"
)

// LoadScenario reads and parses a scenario YAML file. A relative session
// path is resolved against the scenario's directory.
// Returns an error if the file doesn't exist, is malformed, contains
// unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict fields catch typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Session != "" && !filepath.IsAbs(scenario.Session) {
		scenario.Session = filepath.Join(filepath.Dir(path), scenario.Session)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadScenarios loads every .yaml and .yml file in dir, sorted by name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	var paths []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		paths = append(paths, matches...)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no scenario files found in %s", dir)
	}

	scenarios := make([]*Scenario, 0, len(paths))
	seen := make(map[string]string, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		if prev, ok := seen[s.Name]; ok {
			return nil, fmt.Errorf("%s: scenario name %q already used by %s", p, s.Name, prev)
		}
		seen[s.Name] = p
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	if s.Session != "" {
		if _, err := os.Stat(s.Session); os.IsNotExist(err) {
			return fmt.Errorf("session file not found: %s", s.Session)
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(i, step); err != nil {
			return err
		}
	}
	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i], len(s.Steps)); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, s Step) error {
	ops := 0
	if s.Append != nil {
		ops++
	}
	if s.Annotate != nil {
		ops++
	}
	if s.SetReference != nil {
		ops++
	}
	if s.Migrate {
		ops++
	}
	if ops != 1 {
		return fmt.Errorf("steps[%d]: exactly one of append, annotate, set_reference, migrate is required", index)
	}

	for j, m := range s.Append {
		if _, err := ir.ParseVariant(m.Variant); err != nil {
			return fmt.Errorf("steps[%d].append[%d]: %w", index, j, err)
		}
	}
	if s.SetReference != nil && len(s.SetReference.Pulses) == 0 {
		return fmt.Errorf("steps[%d].set_reference: pulses is required", index)
	}
	if s.ExpectError != "" && !knownCode(s.ExpectError) {
		return fmt.Errorf("steps[%d]: unknown error code %q", index, s.ExpectError)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, steps int) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertFinalCount:
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: a non-negative count is required for final_count", index)
		}
		if a.Variant != "" {
			if _, err := ir.ParseVariant(a.Variant); err != nil {
				return fmt.Errorf("assertions[%d]: %w", index, err)
			}
		}
	case AssertLineage:
		if a.Label == "" || a.Lineage == "" {
			return fmt.Errorf("assertions[%d]: label and lineage are required for lineage", index)
		}
	case AssertReference:
		if a.Label == "" {
			return fmt.Errorf("assertions[%d]: label is required for reference", index)
		}
	case AssertAnnotation:
		if a.Key == "" {
			return fmt.Errorf("assertions[%d]: key is required for annotation", index)
		}
	case AssertStepError:
		if a.Step < 0 || a.Step >= steps {
			return fmt.Errorf("assertions[%d]: step %d out of range", index, a.Step)
		}
		if !knownCode(a.Code) {
			return fmt.Errorf("assertions[%d]: unknown error code %q", index, a.Code)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

func knownCode(code string) bool {
	switch ir.ErrorCode(code) {
	case ir.ErrCodeNotFound, ir.ErrCodeValidation, ir.ErrCodeConstraintViolation,
		ir.ErrCodeDuplicateKey, ir.ErrCodeCorruptEncoding, ir.ErrCodeMigrationFailure:
		return true
	}
	return false
}
