package ngram

import (
	"context"
	"fmt"
	"io"

	"logsift/internal/apperr"
	"logsift/internal/service/tokenizer"
	"logsift/internal/util"

	"golang.org/x/sync/errgroup"
)

// Train builds a frequency model from a corpus held in memory
func Train(lines []string, tok tokenizer.Tokenizer) (*FrequencyModel, error) {
	m := NewFrequencyModel()
	for _, line := range lines {
		m.Add(tok.Tokenize(line))
	}
	if err := m.checkVocabulary(); err != nil {
		return nil, fmt.Errorf("trained on %d lines: %w", len(lines), err)
	}
	return m, nil
}

// TrainParallel shards lines across workers and merges the partial models.
// Counting is commutative, so the result is identical to Train.
func TrainParallel(ctx context.Context, lines []string, tok tokenizer.Tokenizer, workers int) (*FrequencyModel, error) {
	if workers <= 1 || len(lines) < workers {
		return Train(lines, tok)
	}

	shardSize := (len(lines) + workers - 1) / workers
	partials := make([]*FrequencyModel, workers)

	g, gCtx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		start := w * shardSize
		end := min(start+shardSize, len(lines))
		if start >= end {
			continue
		}
		w, shard := w, lines[start:end]
		g.Go(func() error {
			partial := NewFrequencyModel()
			for i, line := range shard {
				if i%4096 == 0 {
					if err := gCtx.Err(); err != nil {
						return err
					}
				}
				partial.Add(tok.Tokenize(line))
			}
			partials[w] = partial
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	m := NewFrequencyModel()
	for _, partial := range partials {
		m.Merge(partial)
	}
	if err := m.checkVocabulary(); err != nil {
		return nil, fmt.Errorf("trained on %d lines: %w", len(lines), err)
	}
	return m, nil
}

// TrainReader streams lines from r into a new model without holding the
// corpus in memory. It returns the model and the number of lines read.
func TrainReader(ctx context.Context, r io.Reader, tok tokenizer.Tokenizer) (*FrequencyModel, int, error) {
	m := NewFrequencyModel()
	scanner := util.NewLineScanner(r)
	count := 0
	for scanner.Scan() {
		if count%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, count, err
			}
		}
		m.Add(tok.Tokenize(scanner.Text()))
		count++
	}
	if err := scanner.Err(); err != nil {
		return nil, count, fmt.Errorf("failed to read corpus: %v: %w", err, apperr.ErrIO)
	}
	if err := m.checkVocabulary(); err != nil {
		return nil, count, fmt.Errorf("trained on %d lines: %w", count, err)
	}
	return m, count, nil
}
