package pipeline

import (
	"context"
	"fmt"
	"io"
	"time"

	"logsift/internal/apperr"
	"logsift/internal/metrics"
	"logsift/internal/model"
	"logsift/internal/util"

	"go.uber.org/zap"
)

// Defaults for the score and watch pipelines
const (
	DefaultThreshold = 2.5
	DefaultTopK      = 200
)

// ScoreOptions configures a batch scoring run
type ScoreOptions struct {
	Threshold float64
	TopK      int
	Workers   int
	Tiers     model.Tiers
	Mode      string
}

// ScoreResult is the ranked outcome of a batch scoring run
type ScoreResult struct {
	Anomalies      []model.ScoredLine `json:"anomalies"`
	Scored         int                `json:"scored"`
	AboveThreshold int                `json:"above_threshold"`
	Threshold      float64            `json:"threshold"`
	TopK           int                `json:"top_k"`
}

// ScoreFile scores every line of the file at path ("-" for stdin)
func (e *Engine) ScoreFile(ctx context.Context, path string, opts ScoreOptions) (*ScoreResult, error) {
	in, err := OpenInput(path)
	if err != nil {
		return nil, err
	}
	defer in.Close()

	e.logger.Info("Scoring input",
		zap.String("input", path),
		zap.Float64("threshold", opts.Threshold),
		zap.Int("top_k", opts.TopK))

	return e.ScoreReader(ctx, in, opts)
}

// ScoreReader scores every line read from r. Without parallelism only lines
// above the threshold are retained while reading.
func (e *Engine) ScoreReader(ctx context.Context, r io.Reader, opts ScoreOptions) (*ScoreResult, error) {
	if opts.Workers > 1 {
		lines, err := util.ReadLines(r)
		if err != nil {
			return nil, fmt.Errorf("failed to read input: %v: %w", err, apperr.ErrIO)
		}
		return e.ScoreBatch(ctx, lines, opts)
	}

	start := time.Now()
	var (
		above  []model.ScoredLine
		lineNo int
	)
	scanner := util.NewLineScanner(r)
	for scanner.Scan() {
		lineNo++
		if lineNo%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		scored := e.ScoreLine(lineNo, scanner.Text())
		if scored.Z >= opts.Threshold {
			above = append(above, scored)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read input: %v: %w", err, apperr.ErrIO)
	}

	return e.finish(above, lineNo, start, opts), nil
}

// ScoreBatch scores lines held in memory, in parallel when opts.Workers > 1
func (e *Engine) ScoreBatch(ctx context.Context, lines []string, opts ScoreOptions) (*ScoreResult, error) {
	start := time.Now()
	scored, err := e.ScoreLines(ctx, lines, opts.Workers)
	if err != nil {
		return nil, err
	}

	above := make([]model.ScoredLine, 0)
	for _, l := range scored {
		if l.Z >= opts.Threshold {
			above = append(above, l)
		}
	}
	return e.finish(above, len(lines), start, opts), nil
}

func (e *Engine) finish(above []model.ScoredLine, scored int, start time.Time, opts ScoreOptions) *ScoreResult {
	mode := opts.Mode
	if mode == "" {
		mode = metrics.ModeScore
	}
	anomalies := SelectTop(above, opts.Threshold, opts.TopK)

	metrics.LinesScored.WithLabelValues(mode).Add(float64(scored))
	metrics.ScoreDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())
	recordAnomalies(mode, anomalies, opts.Tiers)

	e.logger.Info("Scoring complete",
		zap.Int("scored", scored),
		zap.Int("above_threshold", len(above)),
		zap.Int("reported", len(anomalies)),
		zap.Duration("duration", time.Since(start)))

	return &ScoreResult{
		Anomalies:      anomalies,
		Scored:         scored,
		AboveThreshold: len(above),
		Threshold:      opts.Threshold,
		TopK:           opts.TopK,
	}
}
