package pipeline

import (
	"errors"
	"fmt"
	"io"
	"os"

	"logsift/internal/apperr"
)

// StdinPath selects standard input wherever an input path is accepted
const StdinPath = "-"

// OpenInput opens a corpus or log file for reading. A missing path or a
// nonexistent file is a configuration error.
func OpenInput(path string) (io.ReadCloser, error) {
	if path == "" {
		return nil, fmt.Errorf("input path is required: %w", apperr.ErrConfiguration)
	}
	if path == StdinPath {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("input file %s does not exist: %w", path, apperr.ErrConfiguration)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %v: %w", path, err, apperr.ErrIO)
	}
	info, err := f.Stat()
	if err == nil && info.IsDir() {
		f.Close()
		return nil, fmt.Errorf("input %s is a directory: %w", path, apperr.ErrConfiguration)
	}
	return f, nil
}
