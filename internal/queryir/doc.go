// Package queryir is a small query intermediate representation for the
// lookups a raster file needs (pages of pulses, edge lookups by uuid set,
// counts) and the reference rewrite.
//
// Store code builds queries as values and hands them to querysql, which
// compiles them to parameterized SQLite. Keeping the query shape as data
// means every query is validated the same way and every read has a stable
// ORDER BY.
//
// SEALED INTERFACES:
//
// Query and Predicate are sealed interfaces using the marker method pattern.
// Only types in this package implement them, so backends can use exhaustive
// type switches:
//
//	switch q := query.(type) {
//	case Select:
//	    // rows
//	case Count:
//	    // single integer
//	case Update:
//	    // rows affected
//	}
//
// Query types:
//   - Select: columns from one table, optional filter, order and page
//   - Count: COUNT(*) over one table with an optional filter
//   - Update: SET assignments over the rows matching a required filter
//
// Predicate types:
//   - Equals: field = value, or field IS NULL for a nil value
//   - In: field IN (values...), empty set matches nothing
//   - NotIn: field NOT IN (subquery)
//   - And: conjunction, empty matches everything
//
// Values are restricted to string, int64, float64, []byte and nil. uuid values are
// passed as their canonical string form, matching the TEXT columns.
package queryir
