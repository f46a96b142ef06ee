package ngram

import (
	"context"
	"errors"
	"math/rand"
	"reflect"
	"testing"

	"logsift/internal/apperr"
	"logsift/internal/service/tokenizer"
)

func trainOrFail(t *testing.T, lines []string) *FrequencyModel {
	t.Helper()
	m, err := Train(lines, tokenizer.NewLogTokenizer())
	if err != nil {
		t.Fatalf("Train failed: %v", err)
	}
	return m
}

func TestTrain_Counts(t *testing.T) {
	m := trainOrFail(t, []string{"a b c", "a b c", "a b d"})

	wantUnigrams := map[string]int64{"a": 3, "b": 3, "c": 2, "d": 1}
	for token, want := range wantUnigrams {
		if got := m.UnigramCount(token); got != want {
			t.Errorf("unigram %q: expected %d, got %d", token, want, got)
		}
	}

	wantBigrams := []struct {
		left, right string
		count       int64
	}{
		{"a", "b", 3},
		{"b", "c", 2},
		{"b", "d", 1},
	}
	for _, tt := range wantBigrams {
		if got := m.BigramCount(tt.left, tt.right); got != tt.count {
			t.Errorf("bigram (%s,%s): expected %d, got %d", tt.left, tt.right, tt.count, got)
		}
	}

	if m.VocabularySize() != 4 {
		t.Errorf("expected vocabulary 4, got %d", m.VocabularySize())
	}
	if m.TotalUnigramCount() != 9 {
		t.Errorf("expected 9 unigrams, got %d", m.TotalUnigramCount())
	}
	if m.LeftTotal("a") != 3 || m.LeftTotal("b") != 3 || m.LeftTotal("c") != 0 {
		t.Errorf("unexpected left totals: a=%d b=%d c=%d", m.LeftTotal("a"), m.LeftTotal("b"), m.LeftTotal("c"))
	}

	stats := m.Stats()
	if stats.BigramTypes != 3 || stats.TotalBigrams != 6 || stats.LeftContexts != 2 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestTrain_OrderIndependent(t *testing.T) {
	lines := []string{
		"user alice logged in",
		"user bob logged in",
		"user alice logged out",
		"disk usage at 80 percent",
		"disk usage at 95 percent",
		"connection reset by peer",
	}
	base := trainOrFail(t, lines)

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 5; i++ {
		shuffled := append([]string(nil), lines...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		m := trainOrFail(t, shuffled)

		if !reflect.DeepEqual(base.Unigrams(), m.Unigrams()) {
			t.Fatalf("unigram tables differ after shuffle %d", i)
		}
		if !reflect.DeepEqual(base.Bigrams(), m.Bigrams()) {
			t.Fatalf("bigram tables differ after shuffle %d", i)
		}
	}
}

func TestTrainParallel_MatchesSerial(t *testing.T) {
	var lines []string
	for i := 0; i < 500; i++ {
		lines = append(lines, "request", "request served in 12ms", "cache miss for key user_42")
	}
	serial := trainOrFail(t, lines)

	for _, workers := range []int{1, 2, 3, 8} {
		parallel, err := TrainParallel(context.Background(), lines, tokenizer.NewLogTokenizer(), workers)
		if err != nil {
			t.Fatalf("TrainParallel(%d) failed: %v", workers, err)
		}
		if !reflect.DeepEqual(serial.Unigrams(), parallel.Unigrams()) {
			t.Errorf("workers=%d: unigram tables differ", workers)
		}
		if !reflect.DeepEqual(serial.Bigrams(), parallel.Bigrams()) {
			t.Errorf("workers=%d: bigram tables differ", workers)
		}
		if serial.TotalUnigramCount() != parallel.TotalUnigramCount() {
			t.Errorf("workers=%d: totals differ", workers)
		}
	}
}

func TestTrain_Degenerate(t *testing.T) {
	for _, lines := range [][]string{nil, {""}, {"   ", "\t", "--- ..."}} {
		_, err := Train(lines, tokenizer.NewLogTokenizer())
		if !errors.Is(err, apperr.ErrDegenerateModel) {
			t.Errorf("lines %q: expected ErrDegenerateModel, got %v", lines, err)
		}
	}
}

func TestPrune(t *testing.T) {
	m := trainOrFail(t, []string{"a b c", "a b c", "a b d"})

	removedU, removedB, err := m.Prune(2)
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if removedU != 1 || removedB != 1 {
		t.Fatalf("expected 1 unigram and 1 bigram removed, got %d and %d", removedU, removedB)
	}
	if m.UnigramCount("d") != 0 || m.BigramCount("b", "d") != 0 {
		t.Fatalf("pruned entries still present")
	}
	if m.BigramCount("b", "c") != 2 {
		t.Fatalf("expected surviving bigram (b,c)=2, got %d", m.BigramCount("b", "c"))
	}
	if m.TotalUnigramCount() != 8 {
		t.Fatalf("expected total 8 after prune, got %d", m.TotalUnigramCount())
	}
	if m.LeftTotal("b") != 2 {
		t.Fatalf("expected left total for b to be 2, got %d", m.LeftTotal("b"))
	}
}

func TestPrune_Monotonic(t *testing.T) {
	lines := []string{
		"a a a a b b b c c d",
		"e f g a b",
		"a b c d e",
	}
	prev := -1
	for minCount := int64(1); minCount <= 6; minCount++ {
		m := trainOrFail(t, lines)
		if _, _, err := m.Prune(minCount); err != nil {
			if errors.Is(err, apperr.ErrDegenerateModel) {
				break
			}
			t.Fatalf("Prune(%d) failed: %v", minCount, err)
		}
		if prev >= 0 && m.VocabularySize() > prev {
			t.Fatalf("vocabulary grew from %d to %d at minCount=%d", prev, m.VocabularySize(), minCount)
		}
		prev = m.VocabularySize()
	}
}

func TestPrune_EverythingIsDegenerate(t *testing.T) {
	m := trainOrFail(t, []string{"one two three"})
	if _, _, err := m.Prune(5); !errors.Is(err, apperr.ErrDegenerateModel) {
		t.Fatalf("expected ErrDegenerateModel, got %v", err)
	}
}

func TestMerge_KeepsDerivedTotals(t *testing.T) {
	left := trainOrFail(t, []string{"a b c"})
	right := trainOrFail(t, []string{"a b d", "a b c"})
	left.Merge(right)

	want := trainOrFail(t, []string{"a b c", "a b c", "a b d"})
	if !reflect.DeepEqual(left.Unigrams(), want.Unigrams()) || !reflect.DeepEqual(left.Bigrams(), want.Bigrams()) {
		t.Fatalf("merged tables differ from single-pass training")
	}
	if left.TotalUnigramCount() != want.TotalUnigramCount() {
		t.Fatalf("expected total %d, got %d", want.TotalUnigramCount(), left.TotalUnigramCount())
	}
	for _, token := range []string{"a", "b", "c", "d"} {
		if left.LeftTotal(token) != want.LeftTotal(token) {
			t.Errorf("left total for %q: expected %d, got %d", token, want.LeftTotal(token), left.LeftTotal(token))
		}
	}
}
