package tail

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"logsift/internal/apperr"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultPollInterval bounds how long a follower waits without an fsnotify
// event before checking the file itself.
const DefaultPollInterval = time.Second

// Options configures a FileFollower
type Options struct {
	// FromStart reads existing content first instead of only new lines
	FromStart    bool
	PollInterval time.Duration
}

// FileFollower yields complete lines appended to a file, surviving
// truncation and rotation by rename.
type FileFollower struct {
	path    string
	opts    Options
	file    *os.File
	reader  *bufio.Reader
	offset  int64
	pending strings.Builder
	// lines drained from a rotated file, returned before reading on
	backlog []string
	watcher *fsnotify.Watcher
	ticker  *time.Ticker
	logger  *zap.Logger
}

// Follow opens path and starts watching it
func Follow(path string, opts Options, logger *zap.Logger) (*FileFollower, error) {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}

	f := &FileFollower{path: path, opts: opts, logger: logger}
	if err := f.open(!opts.FromStart); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		f.file.Close()
		return nil, fmt.Errorf("failed to create file watcher: %v: %w", err, apperr.ErrIO)
	}
	// Watch the directory so rotations that replace the file are seen
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		f.file.Close()
		return nil, fmt.Errorf("failed to watch %s: %v: %w", filepath.Dir(path), err, apperr.ErrIO)
	}
	f.watcher = watcher
	f.ticker = time.NewTicker(opts.PollInterval)

	logger.Info("Following file", zap.String("path", path), zap.Bool("from_start", opts.FromStart))
	return f, nil
}

func (f *FileFollower) open(seekEnd bool) error {
	file, err := os.Open(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("file %s does not exist: %w", f.path, apperr.ErrConfiguration)
	}
	if err != nil {
		return fmt.Errorf("failed to open %s: %v: %w", f.path, err, apperr.ErrIO)
	}

	var offset int64
	if seekEnd {
		offset, err = file.Seek(0, io.SeekEnd)
		if err != nil {
			file.Close()
			return fmt.Errorf("failed to seek %s: %v: %w", f.path, err, apperr.ErrIO)
		}
	}

	if f.file != nil {
		f.file.Close()
	}
	f.file = file
	f.reader = bufio.NewReader(file)
	f.offset = offset
	return nil
}

// Next blocks until a complete line has been appended, then returns it
// without its line terminator. A trailing partial line is held back until
// its newline arrives.
func (f *FileFollower) Next(ctx context.Context) (string, error) {
	for {
		if len(f.backlog) > 0 {
			line := f.backlog[0]
			f.backlog = f.backlog[1:]
			return line, nil
		}

		chunk, err := f.reader.ReadString('\n')
		f.offset += int64(len(chunk))
		if err == nil {
			f.pending.WriteString(chunk)
			line := strings.TrimRight(f.pending.String(), "\r\n")
			f.pending.Reset()
			return line, nil
		}
		if !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("failed to read %s: %v: %w", f.path, err, apperr.ErrIO)
		}
		f.pending.WriteString(chunk)

		if err := f.wait(ctx); err != nil {
			return "", err
		}
	}
}

// wait blocks until the file may have changed, then handles truncation and
// rotation before the caller reads again.
func (f *FileFollower) wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err, ok := <-f.watcher.Errors:
		if ok {
			f.logger.Warn("File watcher error", zap.String("path", f.path), zap.Error(err))
		}
	case event, ok := <-f.watcher.Events:
		if !ok {
			return io.EOF
		}
		if filepath.Clean(event.Name) != filepath.Clean(f.path) {
			return nil
		}
	case <-f.ticker.C:
	}
	return f.checkFile()
}

func (f *FileFollower) checkFile() error {
	current, err := f.file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %v: %w", f.path, err, apperr.ErrIO)
	}

	onDisk, err := os.Stat(f.path)
	if err != nil {
		// Rotated away and not yet recreated
		return nil
	}

	if !os.SameFile(current, onDisk) {
		if err := f.drain(); err != nil {
			return err
		}
		f.logger.Info("File rotated, reopening", zap.String("path", f.path), zap.Int("drained", len(f.backlog)))
		return f.open(false)
	}

	if current.Size() < f.offset {
		f.logger.Info("File truncated, reading from start", zap.String("path", f.path))
		if _, err := f.file.Seek(0, io.SeekStart); err != nil {
			return fmt.Errorf("failed to seek %s: %v: %w", f.path, err, apperr.ErrIO)
		}
		f.reader.Reset(f.file)
		f.offset = 0
		f.pending.Reset()
	}
	return nil
}

// drain moves whatever is left in the current handle into the backlog. The
// handle will not grow again, so an unterminated last line is kept as is.
func (f *FileFollower) drain() error {
	for {
		chunk, err := f.reader.ReadString('\n')
		f.offset += int64(len(chunk))
		f.pending.WriteString(chunk)
		if err == nil {
			f.backlog = append(f.backlog, strings.TrimRight(f.pending.String(), "\r\n"))
			f.pending.Reset()
			continue
		}
		if !errors.Is(err, io.EOF) {
			return fmt.Errorf("failed to read %s: %v: %w", f.path, err, apperr.ErrIO)
		}
		if f.pending.Len() > 0 {
			f.backlog = append(f.backlog, f.pending.String())
			f.pending.Reset()
		}
		return nil
	}
}

// Close stops watching and closes the file
func (f *FileFollower) Close() error {
	if f.ticker != nil {
		f.ticker.Stop()
	}
	if f.watcher != nil {
		f.watcher.Close()
	}
	if f.file != nil {
		return f.file.Close()
	}
	return nil
}
