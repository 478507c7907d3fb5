package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/roach88/grdb/internal/ir"
)

// requireFile fails with ErrCodeNotFound unless path is an existing regular
// file.
func requireFile(f *OutputFormatter, path string) error {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return f.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("raster file not found: %s", path), nil)
	case err != nil:
		return f.Fail(ExitCommandError, ErrCodeReadFailed, fmt.Sprintf("stat %s", path), err)
	case info.IsDir():
		return f.Fail(ExitCommandError, ErrCodeBadInput, fmt.Sprintf("%s is a directory", path), nil)
	}
	return nil
}

// parsePairs parses key=value arguments. Values that parse as integers or
// floats are stored as such; everything else is a string.
func parsePairs(args []string) ([]ir.KVPair, error) {
	pairs := make([]ir.KVPair, 0, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid annotation %q: want key=value", arg)
		}
		pairs = append(pairs, ir.KVPair{Key: key, Value: ir.ParseAnnotationValue(value)})
	}
	return pairs, nil
}

func parseUUIDs(args []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(args))
	for _, arg := range args {
		id, err := uuid.Parse(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid uuid %q: %w", arg, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
