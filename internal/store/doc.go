// Package store provides the SQLite encoding of a raster file.
//
// A file holds four tables:
//   - schema_version: singleton row with the layout version
//   - raster_info: singleton row with session metadata, JSON columns
//   - pulses: one row per stored waveform, final or source
//   - pulse_composition: edges from a final pulse to its sources
//
// # Composition Edges
//
// An edge is either a stitch (position and shift both set) or an average
// (both NULL). The CHECK constraint on the table and EdgeRow.Validate
// enforce the same rule. At most one edge exists per (final_uuid, position)
// and per (final_uuid, source_uuid).
//
// A final pulse is any pulse whose uuid never appears as a source_uuid.
// Pages of finals are ordered by rowid, which is insertion order.
//
// # Access
//
// Every operation runs inside one scoped transaction opened by Create,
// Update or View. The helper opens the file, migrates it to the current
// layout, begins a transaction, runs the callback, commits or rolls back and
// closes the file on every path.
//
// # Database Configuration
//
//   - journal_mode=DELETE: the file stays a single self-contained artefact
//   - synchronous=FULL: a committed step survives power loss
//   - busy_timeout=5000: wait for locks held by other processes
//   - foreign_keys=ON: edges must reference stored pulses
//
// Waveforms are packed with the waveform package before they reach SQL and
// unpacked on scan, so rows carry []float64 in Go.
package store
