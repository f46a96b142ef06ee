package apperr

import "errors"

// Sentinel errors. Wrap with fmt.Errorf("...: %w", err) and test with errors.Is.
var (
	// ErrConfiguration covers missing parameters, nonexistent inputs and
	// incomplete or malformed model directories.
	ErrConfiguration = errors.New("configuration error")

	// ErrDegenerateModel is returned when a corpus yields no tokens.
	ErrDegenerateModel = errors.New("degenerate model: corpus has no tokens")

	// ErrIO wraps read/write failures on model files, inputs and reports.
	ErrIO = errors.New("i/o error")
)
