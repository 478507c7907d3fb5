// Package composition converts between caller-facing measurements and the
// flat pulse and edge rows of a raster file.
//
// The write path is split in two. Decompose is pure: it validates a
// measurement and flattens its lineage into a Plan. Persist then writes one
// plan through a Writer. Write decomposes a whole batch before persisting any
// of it, so a validation failure leaves the file untouched.
//
// The read path (Load) fetches a page of final pulses and walks their edges
// breadth-first. Loaded rows live in an arena keyed by uuid; a processed set
// keeps every uuid from being fetched twice, so the walk terminates even on a
// file whose edges form a cycle. Shapes that the write path never produces
// are reported as CorruptEncoding errors rather than repaired:
//   - any edge on a stitch source
//   - an average edge on an averaged source
//   - a pulse with both stitch and average edges
//   - an edge whose source row is missing
package composition
