package queryir

import (
	"fmt"
	"regexp"
	"strings"
)

// identPattern matches the table and column names this package accepts.
// Identifiers are interpolated into SQL, so anything else is rejected.
var identPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// ValidationResult lists the problems found in a query.
type ValidationResult struct {
	// OK is true when Problems is empty.
	OK bool

	// Problems describes each rule the query breaks.
	Problems []string
}

// Err folds the problems into a single error, or nil when OK.
func (r ValidationResult) Err() error {
	if r.OK {
		return nil
	}
	return fmt.Errorf("invalid query: %s", strings.Join(r.Problems, "; "))
}

// Validate checks a query before compilation.
//
// Rules:
//  1. Table and column names are plain lowercase identifiers
//  2. Select lists its columns explicitly (no SELECT *)
//  3. Values are string, int64, float64, []byte or nil
//  4. Pages are non-negative
//  5. A NotIn subquery selects exactly one column and is not paged
//  6. An Update sets at least one column and carries a filter
//
// Validate is a pure function with no side effects.
func Validate(query Query) ValidationResult {
	v := &validator{problems: []string{}}
	v.validateQuery(query)

	return ValidationResult{
		OK:       len(v.problems) == 0,
		Problems: v.problems,
	}
}

type validator struct {
	problems []string
}

func (v *validator) addProblem(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) validateQuery(q Query) {
	switch query := q.(type) {
	case nil:
		v.addProblem("nil query")
	case Select:
		v.validateSelect(query)
	case Count:
		v.ident("table", query.From)
		v.validatePredicate(query.Filter)
	case Update:
		v.validateUpdate(query)
	default:
		v.addProblem("unknown query type %T", q)
	}
}

func (v *validator) validateSelect(sel Select) {
	v.ident("table", sel.From)

	// Rule 2: Explicit columns
	if len(sel.Columns) == 0 {
		v.addProblem("select from %s lists no columns", sel.From)
	}
	for _, c := range sel.Columns {
		v.ident("column", c)
	}

	for _, o := range sel.OrderBy {
		v.ident("order column", o.Field)
		if o.Dir != "" && o.Dir != Asc && o.Dir != Desc {
			v.addProblem("unknown sort direction %q", o.Dir)
		}
	}

	// Rule 4: Pages
	if sel.Page.Offset < 0 || sel.Page.Limit < 0 {
		v.addProblem("negative page (offset=%d, limit=%d)", sel.Page.Offset, sel.Page.Limit)
	}

	v.validatePredicate(sel.Filter)
}

func (v *validator) validateUpdate(u Update) {
	v.ident("table", u.Table)

	// Rule 6: Targeted updates only
	if len(u.Set) == 0 {
		v.addProblem("update of %s sets no columns", u.Table)
	}
	for _, a := range u.Set {
		v.ident("column", a.Field)
		v.value(a.Field, a.Value)
	}
	if u.Filter == nil {
		v.addProblem("update of %s has no filter", u.Table)
	}
	v.validatePredicate(u.Filter)
}

func (v *validator) validatePredicate(p Predicate) {
	switch pred := p.(type) {
	case nil:
		// no filter
	case Equals:
		v.ident("column", pred.Field)
		v.value(pred.Field, pred.Value)
	case In:
		v.ident("column", pred.Field)
		for _, val := range pred.Values {
			v.value(pred.Field, val)
		}
	case NotIn:
		v.ident("column", pred.Field)
		// Rule 5: Single-column, unpaged subquery
		if len(pred.Sub.Columns) != 1 {
			v.addProblem("subquery for %s must select exactly one column, got %d", pred.Field, len(pred.Sub.Columns))
		}
		if pred.Sub.Page != (Page{}) {
			v.addProblem("subquery for %s must not be paged", pred.Field)
		}
		v.validateSelect(pred.Sub)
	case And:
		for _, sub := range pred.Predicates {
			v.validatePredicate(sub)
		}
	default:
		v.addProblem("unknown predicate type %T", p)
	}
}

func (v *validator) ident(kind, name string) {
	// Rule 1: Plain identifiers
	if !identPattern.MatchString(name) {
		v.addProblem("invalid %s name %q", kind, name)
	}
}

func (v *validator) value(field string, val any) {
	// Rule 3: Parameter types
	switch val.(type) {
	case nil, string, int64, float64, []byte:
	default:
		v.addProblem("unsupported value type %T for %s", val, field)
	}
}
