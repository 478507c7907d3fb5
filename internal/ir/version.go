package ir

// Version constants for the file format and library.
const (
	// CurrentSchemaVersion is the on-disk layout written by this library.
	// Older files are migrated up to it on open.
	CurrentSchemaVersion = 5

	// LibraryVersion is the grdb library version.
	LibraryVersion = "0.5.0"
)
