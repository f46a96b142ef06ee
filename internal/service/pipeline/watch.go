package pipeline

import (
	"context"
	"errors"
	"io"
	"time"

	"logsift/internal/metrics"
	"logsift/internal/model"

	"go.uber.org/zap"
)

// LineSource yields lines from a possibly unbounded stream. Next blocks until
// a complete line is available, the stream ends (io.EOF) or ctx is done.
type LineSource interface {
	Next(ctx context.Context) (string, error)
}

// Suppressor reports whether an equivalent token sequence was already emitted
type Suppressor interface {
	Seen(tokens []string) bool
}

// WatchOptions configures the streaming pipeline
type WatchOptions struct {
	Threshold float64
	Tiers     model.Tiers
	// Dedup drops anomalies whose token sequence was already emitted. Nil keeps every line.
	Dedup Suppressor
}

// Watch scores lines from src one at a time and calls emit for every line at
// or above the threshold before reading the next one. It returns nil when
// the source ends or ctx is cancelled, and the first error from src or emit
// otherwise. A line is either emitted completely or not at all.
func (e *Engine) Watch(ctx context.Context, src LineSource, opts WatchOptions, emit func(model.ScoredLine) error) error {
	e.logger.Info("Watching input", zap.Float64("threshold", opts.Threshold), zap.Bool("dedup", opts.Dedup != nil))

	lineNo := 0
	for {
		line, err := src.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				e.logger.Info("Watch stopped", zap.Int("lines", lineNo), zap.Error(err))
				return nil
			}
			return err
		}
		lineNo++

		start := time.Now()
		scored := e.ScoreLine(lineNo, line)
		metrics.LinesScored.WithLabelValues(metrics.ModeWatch).Inc()
		metrics.ScoreDuration.WithLabelValues(metrics.ModeWatch).Observe(time.Since(start).Seconds())

		if scored.Z < opts.Threshold {
			continue
		}
		if opts.Dedup != nil && opts.Dedup.Seen(e.scorer.Tokenizer().Tokenize(line)) {
			metrics.SuppressedDuplicates.Inc()
			continue
		}

		metrics.Anomalies.WithLabelValues(metrics.ModeWatch, string(opts.Tiers.Classify(scored.Z))).Inc()
		if err := emit(scored); err != nil {
			return err
		}
	}
}
