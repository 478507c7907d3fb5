package queryir

// Query is an abstract read over a single table.
//
// This is a sealed interface - only types in this package implement it.
type Query interface {
	queryNode() // Marker method - seals interface to this package
}

// Predicate is a filter condition.
//
// This is a sealed interface - only types in this package implement it.
type Predicate interface {
	predicateNode() // Marker method - seals interface to this package
}

// Direction is a sort direction.
type Direction string

const (
	Asc  Direction = "ASC"
	Desc Direction = "DESC"
)

// Order is one ORDER BY term.
type Order struct {
	Field string
	Dir   Direction
}

// Page bounds a Select. A zero Limit means no limit.
type Page struct {
	Offset int
	Limit  int
}

// Select reads Columns from From.
//
// Semantics:
//
//	SELECT <columns> FROM <from> WHERE <filter> ORDER BY <order> LIMIT <limit> OFFSET <offset>
//
// Columns must be explicit. An empty OrderBy falls back to rowid so results
// come back in insertion order.
type Select struct {
	From    string
	Columns []string
	Filter  Predicate // nil = no filter
	OrderBy []Order
	Page    Page
}

func (Select) queryNode() {}

// Count counts rows of From matching Filter.
type Count struct {
	From   string
	Filter Predicate
}

func (Count) queryNode() {}

// Assignment is one SET term of an Update.
type Assignment struct {
	Field string
	Value any
}

// Update writes Set into every row of Table matching Filter.
//
// Semantics:
//
//	UPDATE <table> SET <field> = ?, ... WHERE <filter>
//
// Filter is required; a whole-table update is rejected.
type Update struct {
	Table  string
	Set    []Assignment
	Filter Predicate
}

func (Update) queryNode() {}

// Equals matches field = value, or field IS NULL when Value is nil.
type Equals struct {
	Field string
	Value any
}

func (Equals) predicateNode() {}

// In matches field IN (values). An empty Values matches no row.
type In struct {
	Field  string
	Values []any
}

func (In) predicateNode() {}

// NotIn matches rows whose Field is absent from the single column produced
// by Sub. Sub must select exactly one column and must not be paged.
//
// Rows where the subquery column is NULL are excluded from the subquery so a
// NULL never makes the whole predicate unknown.
type NotIn struct {
	Field string
	Sub   Select
}

func (NotIn) predicateNode() {}

// And is a conjunction. Empty Predicates is always true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Where builds a conjunction of the non-nil predicates. It returns nil when
// none remain and the single predicate when only one does.
func Where(preds ...Predicate) Predicate {
	kept := make([]Predicate, 0, len(preds))
	for _, p := range preds {
		if p != nil {
			kept = append(kept, p)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	default:
		return And{Predicates: kept}
	}
}
