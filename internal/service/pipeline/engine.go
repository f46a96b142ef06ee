package pipeline

import (
	"context"
	"time"

	"logsift/internal/metrics"
	"logsift/internal/model"
	"logsift/internal/service/ngram"
	"logsift/internal/service/stats"
	"logsift/internal/service/store"
	"logsift/internal/service/tokenizer"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// parallelChunk is the number of lines a scoring worker takes at a time
const parallelChunk = 1024

// Engine scores lines against a loaded model and its robust statistics.
// It holds only immutable state and is safe for concurrent use.
type Engine struct {
	scorer   *ngram.Scorer
	stats    stats.RobustStats
	manifest store.Manifest
	logger   *zap.Logger
}

// NewEngine builds an engine from an already loaded bundle
func NewEngine(bundle *store.Bundle, registry *tokenizer.Registry, logger *zap.Logger) (*Engine, error) {
	scorer, err := bundle.Scorer(registry)
	if err != nil {
		return nil, err
	}
	metrics.VocabularySize.Set(float64(bundle.Model.VocabularySize()))
	return &Engine{
		scorer:   scorer,
		stats:    bundle.Stats,
		manifest: bundle.Manifest,
		logger:   logger,
	}, nil
}

// LoadEngine loads the model directory behind s and builds an engine over it
func LoadEngine(s *store.ModelStore, registry *tokenizer.Registry, logger *zap.Logger) (*Engine, error) {
	bundle, err := s.Load()
	if err != nil {
		return nil, err
	}
	return NewEngine(bundle, registry, logger)
}

// Stats returns the robust statistics of the loaded model
func (e *Engine) Stats() stats.RobustStats {
	return e.stats
}

// Manifest returns the manifest of the loaded model
func (e *Engine) Manifest() store.Manifest {
	return e.manifest
}

// Scorer returns the underlying scorer
func (e *Engine) Scorer() *ngram.Scorer {
	return e.scorer
}

// ScoreLine scores a single line. Scoring never fails.
func (e *Engine) ScoreLine(lineNo int, line string) model.ScoredLine {
	nll := e.scorer.ScoreLine(line)
	return model.ScoredLine{
		LineNo: lineNo,
		Line:   line,
		NLL:    nll,
		Z:      e.stats.ZScore(nll),
	}
}

// ScoreLines scores every line and returns the results in input order.
// Line numbers are 1-based positions in lines.
func (e *Engine) ScoreLines(ctx context.Context, lines []string, workers int) ([]model.ScoredLine, error) {
	results := make([]model.ScoredLine, len(lines))

	if workers <= 1 || len(lines) <= parallelChunk {
		for i, line := range lines {
			if i%parallelChunk == 0 {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
			}
			results[i] = e.ScoreLine(i+1, line)
		}
		return results, nil
	}

	// Each worker writes only its own index range, so the output keeps
	// input order without further sorting.
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for start := 0; start < len(lines); start += parallelChunk {
		start := start
		end := min(start+parallelChunk, len(lines))
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			for i := start; i < end; i++ {
				results[i] = e.ScoreLine(i+1, lines[i])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Explain breaks a line's NLL down into its unigram and bigram terms
func (e *Engine) Explain(line string, tiers model.Tiers) model.Explanation {
	start := time.Now()
	tokens, nll, contributions := e.scorer.ExplainLine(line)
	z := e.stats.ZScore(nll)

	metrics.LinesScored.WithLabelValues(metrics.ModeExplain).Inc()
	metrics.ScoreDuration.WithLabelValues(metrics.ModeExplain).Observe(time.Since(start).Seconds())

	return model.Explanation{
		Line:          line,
		Tokens:        tokens,
		NLL:           nll,
		Z:             z,
		Severity:      tiers.Classify(z),
		Contributions: contributions,
	}
}

// recordAnomalies updates anomaly counters for lines that passed the threshold
func recordAnomalies(mode string, lines []model.ScoredLine, tiers model.Tiers) {
	for _, l := range lines {
		metrics.Anomalies.WithLabelValues(mode, string(tiers.Classify(l.Z))).Inc()
	}
}
