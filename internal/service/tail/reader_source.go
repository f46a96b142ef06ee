package tail

import (
	"context"
	"io"
	"sync"

	"logsift/internal/util"
)

type lineOrErr struct {
	line string
	err  error
}

// ReaderSource yields the lines of an io.Reader such as stdin. Reading
// happens on a background goroutine so Next can honor cancellation even
// while the reader blocks. Close stops that goroutine once it next tries to
// hand over a line.
type ReaderSource struct {
	r     io.Reader
	lines chan lineOrErr
	done  chan struct{}

	// closed when the reading goroutine has returned
	stopped chan struct{}

	startOnce sync.Once
	closeOnce sync.Once
}

// NewReaderSource wraps r as a line source
func NewReaderSource(r io.Reader) *ReaderSource {
	return &ReaderSource{
		r:       r,
		lines:   make(chan lineOrErr),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

func (s *ReaderSource) start() {
	go func() {
		defer close(s.stopped)
		defer close(s.lines)
		scanner := util.NewLineScanner(s.r)
		for scanner.Scan() {
			if !s.send(lineOrErr{line: scanner.Text()}) {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			s.send(lineOrErr{err: err})
		}
	}()
}

func (s *ReaderSource) send(item lineOrErr) bool {
	select {
	case s.lines <- item:
		return true
	case <-s.done:
		return false
	}
}

// Next returns the next line, io.EOF at end of input, or ctx.Err()
func (s *ReaderSource) Next(ctx context.Context) (string, error) {
	s.startOnce.Do(s.start)
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-s.done:
		return "", io.EOF
	case item, ok := <-s.lines:
		if !ok {
			return "", io.EOF
		}
		return item.line, item.err
	}
}

// Close releases the reading goroutine. It does not close the underlying
// reader.
func (s *ReaderSource) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}
