package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"logsift/internal/apperr"
	"logsift/internal/service/ngram"
	"logsift/internal/service/stats"
	"logsift/internal/service/tokenizer"

	"go.uber.org/zap"
)

func TestModelStore_SaveLoad(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "model")
	s := NewModelStore(dir, zap.NewNop())

	model, err := ngram.Train([]string{"a b c", "a b c", "a b d"}, tokenizer.NewLogTokenizer())
	if err != nil {
		t.Fatalf("Train failed: %v", err)
	}
	st := stats.RobustStats{P25: 1.5, P50: 2.5, P75: 3.5, MAD: 0.75}

	if err := s.Save(model, st, Manifest{Tokenizer: "log", Smoother: "addk", MinCount: 1, LinesTrained: 3}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if !s.Exists() {
		t.Fatalf("expected model to exist after save")
	}

	data, err := os.ReadFile(s.Path(UnigramFile))
	if err != nil {
		t.Fatalf("failed to read unigram file: %v", err)
	}
	if string(data) != "a\t3\nb\t3\nc\t2\nd\t1\n" {
		t.Fatalf("unexpected unigram file: %q", data)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("expected 4 files and no leftover temp files, got %d", len(entries))
	}

	bundle, err := s.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if bundle.Stats != st {
		t.Fatalf("expected stats %+v, got %+v", st, bundle.Stats)
	}
	if bundle.Model.BigramCount("a", "b") != 3 {
		t.Fatalf("expected bigram (a,b)=3, got %d", bundle.Model.BigramCount("a", "b"))
	}
	if bundle.Manifest.LinesTrained != 3 || bundle.Manifest.Version != FormatVersion || bundle.Manifest.CreatedAt.IsZero() {
		t.Fatalf("unexpected manifest: %+v", bundle.Manifest)
	}

	scorer, err := bundle.Scorer(tokenizer.NewRegistry())
	if err != nil {
		t.Fatalf("Scorer failed: %v", err)
	}
	if scorer.ScoreLine("a b c") <= 0 {
		t.Fatalf("expected positive NLL")
	}
}

func TestModelStore_FailedResaveIsIncomplete(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "model")
	s := NewModelStore(dir, zap.NewNop())

	first, _ := ngram.Train([]string{"a b c"}, tokenizer.NewLogTokenizer())
	if err := s.Save(first, stats.RobustStats{P25: 1, P50: 2, P75: 3, MAD: 1}, Manifest{Tokenizer: "log", Smoother: "addk"}); err != nil {
		t.Fatalf("first Save failed: %v", err)
	}

	// a non-empty directory in place of the manifest makes its rename fail
	manifestPath := s.Path(ManifestFile)
	if err := os.Remove(manifestPath); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(manifestPath, "blocker"), 0755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}

	second, _ := ngram.Train([]string{"a b c d"}, tokenizer.NewLogTokenizer())
	if err := s.Save(second, stats.RobustStats{P25: 10, P50: 20, P75: 30, MAD: 5}, Manifest{Tokenizer: "log", Smoother: "addk"}); err == nil {
		t.Fatalf("expected second Save to fail")
	}

	if s.Exists() {
		t.Fatalf("expected an interrupted save to leave the model incomplete")
	}
	if _, err := s.Load(); !errors.Is(err, apperr.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration after failed save, got %v", err)
	}

	if err := os.RemoveAll(manifestPath); err != nil {
		t.Fatalf("RemoveAll failed: %v", err)
	}
	if err := s.Save(second, stats.RobustStats{P25: 10, P50: 20, P75: 30, MAD: 5}, Manifest{Tokenizer: "log", Smoother: "addk"}); err != nil {
		t.Fatalf("retry Save failed: %v", err)
	}
	bundle, err := s.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if bundle.Model.VocabularySize() != 4 || bundle.Stats.P50 != 20 {
		t.Fatalf("expected second model with its own stats, got vocab %d p50 %v", bundle.Model.VocabularySize(), bundle.Stats.P50)
	}
}

func TestModelStore_LoadIncomplete(t *testing.T) {
	dir := t.TempDir()
	s := NewModelStore(dir, zap.NewNop())

	if _, err := s.Load(); !errors.Is(err, apperr.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration for empty dir, got %v", err)
	}

	os.WriteFile(filepath.Join(dir, UnigramFile), []byte("a\t1\n"), 0644)
	os.WriteFile(filepath.Join(dir, BigramFile), []byte(""), 0644)
	if _, err := s.Load(); !errors.Is(err, apperr.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration without stats.tsv, got %v", err)
	}

	os.WriteFile(filepath.Join(dir, StatsFile), []byte("p25\t1\np50\t1\np75\t1\nmad\t1\n"), 0644)
	bundle, err := s.Load()
	if err != nil {
		t.Fatalf("Load without manifest failed: %v", err)
	}
	if bundle.Manifest.Tokenizer != tokenizer.DefaultName || bundle.Manifest.Smoother != "addk" {
		t.Fatalf("expected default manifest, got %+v", bundle.Manifest)
	}
}

func TestBundle_UnknownTokenizer(t *testing.T) {
	model, _ := ngram.Train([]string{"x"}, tokenizer.NewLogTokenizer())
	b := &Bundle{Model: model, Stats: stats.RobustStats{MAD: 1}, Manifest: Manifest{Tokenizer: "bpe", Smoother: "addk"}}
	if _, err := b.Scorer(tokenizer.NewRegistry()); !errors.Is(err, apperr.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}
