package harness

import (
	"fmt"
	"strings"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string               // Assertion type for categorization
	Expected string               // Human-readable expected outcome
	Actual   string               // Human-readable actual outcome
	Content  []MeasurementSummary // Final file content for context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFile content:\n")
	for i, m := range e.Content {
		fmt.Fprintf(&buf, "  [%d] %s %s %s\n", i+1, m.Label, m.Variant, m.Lineage)
	}

	return buf.String()
}

// assertFinalCount checks the number of final measurements, optionally of
// one variant.
func assertFinalCount(r *Result, a Assertion) error {
	n := 0
	for _, m := range r.Measurements {
		if a.Variant == "" || string(m.Variant) == a.Variant {
			n++
		}
	}
	if n == *a.Count {
		return nil
	}

	what := "final measurements"
	if a.Variant != "" {
		what = a.Variant + " " + what
	}
	return &AssertionError{
		Type:     AssertFinalCount,
		Expected: fmt.Sprintf("%d %s", *a.Count, what),
		Actual:   fmt.Sprintf("%d %s", n, what),
		Content:  r.Measurements,
	}
}

func assertLineage(r *Result, a Assertion) error {
	m, ok := r.Measurement(a.Label)
	if !ok {
		return missing(r, AssertLineage, a.Label)
	}
	if m.Lineage == a.Lineage {
		return nil
	}
	return &AssertionError{
		Type:     AssertLineage,
		Expected: fmt.Sprintf("%s has lineage %s", a.Label, a.Lineage),
		Actual:   fmt.Sprintf("lineage %s", m.Lineage),
		Content:  r.Measurements,
	}
}

func assertReference(r *Result, a Assertion) error {
	m, ok := r.Measurement(a.Label)
	if !ok {
		return missing(r, AssertReference, a.Label)
	}
	if m.Reference == a.Ref {
		return nil
	}
	return &AssertionError{
		Type:     AssertReference,
		Expected: fmt.Sprintf("%s references %s", a.Label, orNothing(a.Ref)),
		Actual:   fmt.Sprintf("references %s", orNothing(m.Reference)),
		Content:  r.Measurements,
	}
}

// assertAnnotation checks the session annotation list. The first pair with
// the key decides.
func assertAnnotation(r *Result, a Assertion) error {
	prefix := a.Key + "="
	for _, kv := range r.Annotations {
		if v, ok := strings.CutPrefix(kv, prefix); ok {
			if v == a.Value {
				return nil
			}
			return &AssertionError{
				Type:     AssertAnnotation,
				Expected: fmt.Sprintf("%s=%s", a.Key, a.Value),
				Actual:   kv,
				Content:  r.Measurements,
			}
		}
	}
	return &AssertionError{
		Type:     AssertAnnotation,
		Expected: fmt.Sprintf("%s=%s", a.Key, a.Value),
		Actual:   fmt.Sprintf("no annotation %q in %v", a.Key, r.Annotations),
		Content:  r.Measurements,
	}
}

func assertStepError(r *Result, a Assertion) error {
	for _, s := range r.Steps {
		if s.Step != a.Step {
			continue
		}
		if s.Error == a.Code {
			return nil
		}
		return &AssertionError{
			Type:     AssertStepError,
			Expected: fmt.Sprintf("step %d fails with %s", a.Step, a.Code),
			Actual:   fmt.Sprintf("step %d: %s", s.Step, orSuccess(s.Error)),
			Content:  r.Measurements,
		}
	}
	return &AssertionError{
		Type:     AssertStepError,
		Expected: fmt.Sprintf("step %d fails with %s", a.Step, a.Code),
		Actual:   "step did not run",
		Content:  r.Measurements,
	}
}

func missing(r *Result, typ, label string) error {
	return &AssertionError{
		Type:     typ,
		Expected: fmt.Sprintf("measurement %s", label),
		Actual:   "not found in file",
		Content:  r.Measurements,
	}
}

func orNothing(s string) string {
	if s == "" {
		return "nothing"
	}
	return s
}

func orSuccess(code string) string {
	if code == "" {
		return "success"
	}
	return code
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertFinalCount:
			if assertion.Count == nil {
				err = fmt.Errorf("assertion[%d]: final_count requires count", i)
			} else {
				err = assertFinalCount(result, assertion)
			}
		case AssertLineage:
			err = assertLineage(result, assertion)
		case AssertReference:
			err = assertReference(result, assertion)
		case AssertAnnotation:
			err = assertAnnotation(result, assertion)
		case AssertStepError:
			err = assertStepError(result, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
