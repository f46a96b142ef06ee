package pipeline

import (
	"context"
	"fmt"
	"io"
	"time"

	"logsift/internal/apperr"
	"logsift/internal/metrics"
	"logsift/internal/service/ngram"
	"logsift/internal/service/stats"
	"logsift/internal/service/store"
	"logsift/internal/service/tokenizer"
	"logsift/internal/util"

	"go.uber.org/zap"
)

// TrainOptions configures a training run
type TrainOptions struct {
	CorpusPath string
	MinCount   int64
	Workers    int
	Tokenizer  string

	// Input, when set, is read instead of opening CorpusPath, which then
	// only labels the corpus in the manifest.
	Input io.Reader
}

// TrainResult reports what a training run produced
type TrainResult struct {
	Manifest       store.Manifest    `json:"manifest"`
	Stats          stats.RobustStats `json:"stats"`
	PrunedUnigrams int               `json:"pruned_unigrams"`
	PrunedBigrams  int               `json:"pruned_bigrams"`
	Duration       time.Duration     `json:"duration"`
}

// Trainer runs the train pipeline: count, prune, bootstrap-score, persist
type Trainer struct {
	store    *store.ModelStore
	registry *tokenizer.Registry
	logger   *zap.Logger
}

// NewTrainer creates a trainer writing into s
func NewTrainer(s *store.ModelStore, registry *tokenizer.Registry, logger *zap.Logger) *Trainer {
	return &Trainer{store: s, registry: registry, logger: logger}
}

// Train builds a model from the corpus, derives robust statistics from the
// corpus scored against that model and saves both.
func (t *Trainer) Train(ctx context.Context, opts TrainOptions) (*TrainResult, error) {
	start := time.Now()
	if opts.MinCount < 1 {
		opts.MinCount = 1
	}

	tok, err := t.registry.Get(opts.Tokenizer)
	if err != nil {
		return nil, err
	}

	in := opts.Input
	if in == nil {
		f, err := OpenInput(opts.CorpusPath)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		in = f
	}

	t.logger.Info("Training model",
		zap.String("corpus", opts.CorpusPath),
		zap.String("model_dir", t.store.Dir()),
		zap.Int64("min_count", opts.MinCount),
		zap.Int("workers", opts.Workers))

	// Training and bootstrap both need the corpus. Seekable files are read
	// twice; stdin and parallel runs keep the lines in memory.
	var (
		model     *ngram.FrequencyModel
		lineCount int
		lines     []string
	)
	seeker, seekable := in.(io.Seeker)
	if opts.Workers > 1 || !seekable || opts.Input != nil || opts.CorpusPath == StdinPath {
		lines, err = util.ReadLines(in)
		if err != nil {
			return nil, fmt.Errorf("failed to read corpus: %v: %w", err, apperr.ErrIO)
		}
		lineCount = len(lines)
		model, err = ngram.TrainParallel(ctx, lines, tok, opts.Workers)
	} else {
		model, lineCount, err = ngram.TrainReader(ctx, in, tok)
	}
	if err != nil {
		return nil, err
	}

	result := &TrainResult{}
	if opts.MinCount > 1 {
		result.PrunedUnigrams, result.PrunedBigrams, err = model.Prune(opts.MinCount)
		if err != nil {
			return nil, err
		}
		t.logger.Info("Pruned model",
			zap.Int64("min_count", opts.MinCount),
			zap.Int("removed_unigrams", result.PrunedUnigrams),
			zap.Int("removed_bigrams", result.PrunedBigrams))
	}

	scorer, err := ngram.NewScorer(model, tok, nil)
	if err != nil {
		return nil, err
	}

	var scores []float64
	if lines != nil {
		scores, err = BootstrapLines(ctx, scorer, lines)
	} else {
		if _, err = seeker.Seek(0, io.SeekStart); err != nil {
			return nil, fmt.Errorf("failed to rewind corpus: %v: %w", err, apperr.ErrIO)
		}
		scores, err = Bootstrap(ctx, scorer, in)
	}
	if err != nil {
		return nil, err
	}
	result.Stats = stats.Compute(scores)

	manifest := store.Manifest{
		Tokenizer:    tok.Name(),
		Smoother:     ngram.NewAddKSmoother(1.0).Name(),
		MinCount:     opts.MinCount,
		LinesTrained: lineCount,
		Corpus:       opts.CorpusPath,
	}
	if err := t.store.Save(model, result.Stats, manifest); err != nil {
		return nil, err
	}

	result.Manifest = manifest
	result.Manifest.Model = model.Stats()
	result.Manifest.Stats = result.Stats
	result.Duration = time.Since(start)
	metrics.TrainDuration.Observe(result.Duration.Seconds())

	t.logger.Info("Training complete",
		zap.Int("lines", lineCount),
		zap.Int("vocabulary", model.VocabularySize()),
		zap.Float64("p25", result.Stats.P25),
		zap.Float64("p50", result.Stats.P50),
		zap.Float64("p75", result.Stats.P75),
		zap.Float64("mad", result.Stats.MAD),
		zap.Duration("duration", result.Duration))

	return result, nil
}

// Bootstrap scores every line of the training corpus against the model just
// built from it. The scores feed stats.Compute and nothing else.
func Bootstrap(ctx context.Context, scorer *ngram.Scorer, r io.Reader) ([]float64, error) {
	var scores []float64
	scanner := util.NewLineScanner(r)
	for scanner.Scan() {
		if len(scores)%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		scores = append(scores, scorer.ScoreLine(scanner.Text()))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read corpus for bootstrap: %v: %w", err, apperr.ErrIO)
	}
	return scores, nil
}

// BootstrapLines is Bootstrap over a corpus already held in memory
func BootstrapLines(ctx context.Context, scorer *ngram.Scorer, lines []string) ([]float64, error) {
	scores := make([]float64, len(lines))
	for i, line := range lines {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		scores[i] = scorer.ScoreLine(line)
	}
	return scores, nil
}
