// Package querysql compiles queryir queries to parameterized SQLite.
package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/grdb/internal/queryir"
)

// DefaultOrder is used when a Select names no ORDER BY.
// rowid order is insertion order for the tables in a raster file.
var DefaultOrder = []queryir.Order{{Field: "rowid", Dir: queryir.Asc}}

// SQLCompiler compiles queryir to parameterized SQL for SQLite.
//
// Every Select carries an ORDER BY so pages are stable across calls.
// Values are always bound as parameters, never interpolated.
type SQLCompiler struct{}

// NewSQLCompiler creates a new SQLCompiler.
func NewSQLCompiler() *SQLCompiler {
	return &SQLCompiler{}
}

// Compile validates q and converts it to SQL.
// Returns (sql, params, error).
func (c *SQLCompiler) Compile(q queryir.Query) (string, []any, error) {
	if err := queryir.Validate(q).Err(); err != nil {
		return "", nil, err
	}

	switch query := q.(type) {
	case queryir.Select:
		return c.compileSelect(query)
	case queryir.Count:
		return c.compileCount(query)
	case queryir.Update:
		return c.compileUpdate(query)
	default:
		return "", nil, fmt.Errorf("unsupported query type: %T", q)
	}
}

func (c *SQLCompiler) compileSelect(q queryir.Select) (string, []any, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", strings.Join(q.Columns, ", "), q.From)

	var params []any
	if q.Filter != nil {
		where, filterParams, err := c.compilePredicate(q.Filter)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		b.WriteString(" WHERE ")
		b.WriteString(where)
		params = filterParams
	}

	b.WriteString(" ORDER BY ")
	b.WriteString(orderClause(q.OrderBy))

	// SQLite requires LIMIT before OFFSET; -1 means unbounded.
	if q.Page.Limit > 0 || q.Page.Offset > 0 {
		limit := q.Page.Limit
		if limit == 0 {
			limit = -1
		}
		b.WriteString(" LIMIT ? OFFSET ?")
		params = append(params, int64(limit), int64(q.Page.Offset))
	}

	return b.String(), params, nil
}

func (c *SQLCompiler) compileCount(q queryir.Count) (string, []any, error) {
	sql := "SELECT COUNT(*) FROM " + q.From
	if q.Filter == nil {
		return sql, nil, nil
	}
	where, params, err := c.compilePredicate(q.Filter)
	if err != nil {
		return "", nil, fmt.Errorf("compile filter: %w", err)
	}
	return sql + " WHERE " + where, params, nil
}

// compileUpdate binds SET values before filter values, matching their order
// in the statement.
func (c *SQLCompiler) compileUpdate(q queryir.Update) (string, []any, error) {
	sets := make([]string, len(q.Set))
	params := make([]any, 0, len(q.Set))
	for i, a := range q.Set {
		sets[i] = a.Field + " = ?"
		params = append(params, a.Value)
	}

	where, filterParams, err := c.compilePredicate(q.Filter)
	if err != nil {
		return "", nil, fmt.Errorf("compile filter: %w", err)
	}
	sql := fmt.Sprintf("UPDATE %s SET %s WHERE %s", q.Table, strings.Join(sets, ", "), where)
	return sql, append(params, filterParams...), nil
}

func orderClause(order []queryir.Order) string {
	if len(order) == 0 {
		order = DefaultOrder
	}
	parts := make([]string, len(order))
	for i, o := range order {
		dir := o.Dir
		if dir == "" {
			dir = queryir.Asc
		}
		parts[i] = fmt.Sprintf("%s %s", o.Field, dir)
	}
	return strings.Join(parts, ", ")
}

// compilePredicate compiles a predicate to a WHERE fragment.
// Values are never interpolated.
func (c *SQLCompiler) compilePredicate(p queryir.Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case nil:
		return "1 = 1", nil, nil
	case queryir.Equals:
		if pred.Value == nil {
			return pred.Field + " IS NULL", nil, nil
		}
		return pred.Field + " = ?", []any{pred.Value}, nil
	case queryir.In:
		if len(pred.Values) == 0 {
			return "1 = 0", nil, nil
		}
		placeholders := strings.Repeat("?, ", len(pred.Values)-1) + "?"
		params := make([]any, len(pred.Values))
		copy(params, pred.Values)
		return fmt.Sprintf("%s IN (%s)", pred.Field, placeholders), params, nil
	case queryir.NotIn:
		return c.compileNotIn(pred)
	case queryir.And:
		return c.compileAnd(pred)
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func (c *SQLCompiler) compileNotIn(n queryir.NotIn) (string, []any, error) {
	col := n.Sub.Columns[0]
	where := col + " IS NOT NULL"

	var params []any
	if n.Sub.Filter != nil {
		subWhere, subParams, err := c.compilePredicate(n.Sub.Filter)
		if err != nil {
			return "", nil, fmt.Errorf("compile subquery: %w", err)
		}
		where = subWhere + " AND " + where
		params = subParams
	}

	return fmt.Sprintf("%s NOT IN (SELECT %s FROM %s WHERE %s)", n.Field, col, n.Sub.From, where), params, nil
}

func (c *SQLCompiler) compileAnd(and queryir.And) (string, []any, error) {
	if len(and.Predicates) == 0 {
		return "1 = 1", nil, nil
	}

	parts := make([]string, 0, len(and.Predicates))
	var params []any
	for _, pred := range and.Predicates {
		sql, predParams, err := c.compilePredicate(pred)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, sql)
		params = append(params, predParams...)
	}

	return strings.Join(parts, " AND "), params, nil
}
