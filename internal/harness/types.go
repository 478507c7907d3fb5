package harness

import "github.com/roach88/grdb/internal/ir"

// StepEvent records the outcome of one step.
type StepEvent struct {
	Step  int    `json:"step"`
	Op    string `json:"op"`
	Error string `json:"error,omitempty"` // error code when the step failed
}

// MeasurementSummary is the uuid-free view of a stored measurement used in
// snapshots and assertions.
type MeasurementSummary struct {
	Label       string     `json:"label"`
	Variant     ir.Variant `json:"variant"`
	Reference   string     `json:"reference,omitempty"`
	PassNumber  *int       `json:"pass_number,omitempty"`
	Lineage     string     `json:"lineage"`
	Length      int        `json:"length"`
	Annotations []string   `json:"annotations,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every step behaved as expected and every assertion
	// held.
	Pass bool `json:"pass"`

	// Steps lists step outcomes in order.
	Steps []StepEvent `json:"steps"`

	// Measurements is the final content of the file in write order.
	Measurements []MeasurementSummary `json:"measurements"`

	// Annotations is the final session annotation list as key=value.
	Annotations []string `json:"annotations"`

	// SchemaVersion is the layout version of the file after the run.
	SchemaVersion int `json:"schema_version"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:         true,
		Steps:        []StepEvent{},
		Measurements: []MeasurementSummary{},
		Annotations:  []string{},
		Errors:       []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddStep records a step outcome.
func (r *Result) AddStep(step int, op string, code ir.ErrorCode) {
	r.Steps = append(r.Steps, StepEvent{Step: step, Op: op, Error: string(code)})
}

// Measurement returns the summary for label.
func (r *Result) Measurement(label string) (MeasurementSummary, bool) {
	for _, m := range r.Measurements {
		if m.Label == label {
			return m, true
		}
	}
	return MeasurementSummary{}, false
}
