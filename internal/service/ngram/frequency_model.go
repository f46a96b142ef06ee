package ngram

import (
	"fmt"
	"sort"

	"logsift/internal/apperr"
	mngram "logsift/internal/model/ngram"
)

// FrequencyModel stores unigram and bigram counts for a log corpus.
//
// Derived values (total unigram count, left totals, vocabulary size) are kept
// consistent with the count tables on every mutation, so a sealed model can
// be shared read-only by any number of scorers. Mutating methods are not safe
// for concurrent use.
type FrequencyModel struct {
	unigrams   map[string]int64        // token -> count
	bigrams    map[mngram.Bigram]int64 // (left, right) -> count
	leftTotals map[string]int64        // left token -> sum of bigram counts starting with it
	total      int64                   // sum of all unigram counts
}

// ModelStats summarizes a frequency model
type ModelStats struct {
	VocabularySize int   `json:"vocabulary_size" yaml:"vocabulary_size"`
	TotalUnigrams  int64 `json:"total_unigrams" yaml:"total_unigrams"`
	BigramTypes    int   `json:"bigram_types" yaml:"bigram_types"`
	TotalBigrams   int64 `json:"total_bigrams" yaml:"total_bigrams"`
	LeftContexts   int   `json:"left_contexts" yaml:"left_contexts"`
}

// NewFrequencyModel creates an empty model
func NewFrequencyModel() *FrequencyModel {
	return &FrequencyModel{
		unigrams:   make(map[string]int64),
		bigrams:    make(map[mngram.Bigram]int64),
		leftTotals: make(map[string]int64),
	}
}

// FromCounts builds a model from raw count tables, e.g. after loading from disk.
// The maps are owned by the returned model.
func FromCounts(unigrams map[string]int64, bigrams map[mngram.Bigram]int64) *FrequencyModel {
	if unigrams == nil {
		unigrams = make(map[string]int64)
	}
	if bigrams == nil {
		bigrams = make(map[mngram.Bigram]int64)
	}
	m := &FrequencyModel{unigrams: unigrams, bigrams: bigrams}
	m.recompute()
	return m
}

// Add counts one tokenized line: every token once, every adjacent pair once
func (m *FrequencyModel) Add(tokens []string) {
	for i, token := range tokens {
		m.unigrams[token]++
		m.total++
		if i+1 < len(tokens) {
			m.bigrams[mngram.Bigram{Left: token, Right: tokens[i+1]}]++
			m.leftTotals[token]++
		}
	}
}

// Merge adds every count from other into m
func (m *FrequencyModel) Merge(other *FrequencyModel) {
	if other == nil {
		return
	}
	for token, count := range other.unigrams {
		m.unigrams[token] += count
	}
	m.total += other.total

	for bigram, count := range other.bigrams {
		m.bigrams[bigram] += count
	}
	for left, count := range other.leftTotals {
		m.leftTotals[left] += count
	}
}

// Prune drops unigrams seen fewer than minCount times, then every bigram that
// references a dropped unigram. A minCount of 1 or less leaves the model untouched.
// Pruning away the whole vocabulary is reported as a degenerate model.
func (m *FrequencyModel) Prune(minCount int64) (removedUnigrams, removedBigrams int, err error) {
	if minCount <= 1 {
		return 0, 0, nil
	}

	for token, count := range m.unigrams {
		if count < minCount {
			delete(m.unigrams, token)
			removedUnigrams++
		}
	}

	// Bigram pruning depends on the surviving unigram set
	for bigram := range m.bigrams {
		_, leftOK := m.unigrams[bigram.Left]
		_, rightOK := m.unigrams[bigram.Right]
		if !leftOK || !rightOK {
			delete(m.bigrams, bigram)
			removedBigrams++
		}
	}

	m.recompute()

	if len(m.unigrams) == 0 {
		return removedUnigrams, removedBigrams, fmt.Errorf("min count %d removed every token: %w", minCount, apperr.ErrDegenerateModel)
	}
	return removedUnigrams, removedBigrams, nil
}

// recompute rebuilds the derived totals from the count tables
func (m *FrequencyModel) recompute() {
	m.total = 0
	for _, count := range m.unigrams {
		m.total += count
	}
	m.leftTotals = make(map[string]int64, len(m.unigrams))
	for bigram, count := range m.bigrams {
		m.leftTotals[bigram.Left] += count
	}
}

// UnigramCount returns how often token was seen
func (m *FrequencyModel) UnigramCount(token string) int64 {
	return m.unigrams[token]
}

// BigramCount returns how often right followed left
func (m *FrequencyModel) BigramCount(left, right string) int64 {
	return m.bigrams[mngram.Bigram{Left: left, Right: right}]
}

// LeftTotal returns the number of bigrams that start with token
func (m *FrequencyModel) LeftTotal(token string) int64 {
	return m.leftTotals[token]
}

// VocabularySize returns the number of distinct unigrams
func (m *FrequencyModel) VocabularySize() int {
	return len(m.unigrams)
}

// TotalUnigramCount returns the sum of all unigram counts
func (m *FrequencyModel) TotalUnigramCount() int64 {
	return m.total
}

// Unigrams returns the unigram table sorted by token
func (m *FrequencyModel) Unigrams() []mngram.UnigramEntry {
	entries := make([]mngram.UnigramEntry, 0, len(m.unigrams))
	for token, count := range m.unigrams {
		entries = append(entries, mngram.UnigramEntry{Token: token, Count: count})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Token < entries[j].Token
	})
	return entries
}

// Bigrams returns the bigram table sorted by (left, right)
func (m *FrequencyModel) Bigrams() []mngram.BigramEntry {
	keys := make([]mngram.Bigram, 0, len(m.bigrams))
	for bigram := range m.bigrams {
		keys = append(keys, bigram)
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].Less(keys[j])
	})

	entries := make([]mngram.BigramEntry, len(keys))
	for i, key := range keys {
		entries[i] = mngram.BigramEntry{Left: key.Left, Right: key.Right, Count: m.bigrams[key]}
	}
	return entries
}

// Stats returns summary statistics about the model
func (m *FrequencyModel) Stats() ModelStats {
	var totalBigrams int64
	for _, count := range m.bigrams {
		totalBigrams += count
	}
	return ModelStats{
		VocabularySize: len(m.unigrams),
		TotalUnigrams:  m.total,
		BigramTypes:    len(m.bigrams),
		TotalBigrams:   totalBigrams,
		LeftContexts:   len(m.leftTotals),
	}
}

// checkVocabulary rejects models that would divide by zero when scored
func (m *FrequencyModel) checkVocabulary() error {
	if len(m.unigrams) == 0 {
		return apperr.ErrDegenerateModel
	}
	return nil
}
