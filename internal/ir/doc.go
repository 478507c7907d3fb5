// Package ir defines the in-memory model of a raster file: traces, their
// lineage, measurements and session metadata.
//
// This package contains types, validation and the error taxonomy only. All
// other internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - All JSON tags use snake_case and match the on-disk JSON columns
//   - A trace's lineage is either a stitch or an average, never both
//   - Averaging nests at most one level: an averaged source may be stitched,
//     but never averaged
//   - Values returned to callers are copies with no reference into storage
package ir
