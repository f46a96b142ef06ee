package store

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"logsift/internal/apperr"
	"logsift/internal/service/ngram"
	"logsift/internal/service/stats"
	"logsift/internal/service/tokenizer"
	"logsift/internal/util"

	"go.uber.org/zap"
	"gopkg.in/yaml.v2"
)

// File names inside a model directory
const (
	UnigramFile  = "unigram.tsv"
	BigramFile   = "bigram.tsv"
	StatsFile    = "stats.tsv"
	ManifestFile = "manifest.yaml"

	// FormatVersion is written into every manifest
	FormatVersion = "1.0"
)

// Manifest describes how a model directory was produced
type Manifest struct {
	Version      string            `yaml:"version" json:"version"`
	CreatedAt    time.Time         `yaml:"created_at" json:"created_at"`
	Tokenizer    string            `yaml:"tokenizer" json:"tokenizer"`
	Smoother     string            `yaml:"smoother" json:"smoother"`
	MinCount     int64             `yaml:"min_count" json:"min_count"`
	LinesTrained int               `yaml:"lines_trained" json:"lines_trained"`
	Corpus       string            `yaml:"corpus,omitempty" json:"corpus,omitempty"`
	Model        ngram.ModelStats  `yaml:"model" json:"model"`
	Stats        stats.RobustStats `yaml:"stats" json:"stats"`
}

// Bundle is everything needed to score against a trained model
type Bundle struct {
	Dir      string
	Model    *ngram.FrequencyModel
	Stats    stats.RobustStats
	Manifest Manifest
}

// ModelStore saves and loads model directories
type ModelStore struct {
	dir    string
	logger *zap.Logger
}

// NewModelStore creates a store rooted at dir. The directory is not created
// until Save is called.
func NewModelStore(dir string, logger *zap.Logger) *ModelStore {
	return &ModelStore{dir: dir, logger: logger}
}

// Dir returns the model directory
func (s *ModelStore) Dir() string {
	return s.dir
}

// Path returns the path of a file inside the model directory
func (s *ModelStore) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// Exists reports whether all three model tables are present
func (s *ModelStore) Exists() bool {
	return len(s.missingFiles()) == 0
}

func (s *ModelStore) missingFiles() []string {
	var missing []string
	for _, name := range []string{UnigramFile, BigramFile, StatsFile} {
		if !util.FileExists(s.Path(name)) {
			missing = append(missing, name)
		}
	}
	return missing
}

// Save writes the model tables, stats and manifest. Each file is replaced
// atomically. stats.tsv is removed before any table is touched and written
// last, so a save that fails part way leaves a directory Load rejects rather
// than new tables paired with old statistics.
func (s *ModelStore) Save(model *ngram.FrequencyModel, st stats.RobustStats, manifest Manifest) error {
	if s.dir == "" {
		return fmt.Errorf("model directory not set: %w", apperr.ErrConfiguration)
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create model directory: %v: %w", err, apperr.ErrIO)
	}

	manifest.Version = FormatVersion
	if manifest.CreatedAt.IsZero() {
		manifest.CreatedAt = time.Now().UTC()
	}
	manifest.Model = model.Stats()
	manifest.Stats = st

	if err := os.Remove(s.Path(StatsFile)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to invalidate %s: %v: %w", StatsFile, err, apperr.ErrIO)
	}

	writes := []struct {
		name  string
		write func(w io.Writer) error
	}{
		{UnigramFile, func(w io.Writer) error { return ngram.WriteUnigramTSV(w, model) }},
		{BigramFile, func(w io.Writer) error { return ngram.WriteBigramTSV(w, model) }},
		{ManifestFile, func(w io.Writer) error {
			data, err := yaml.Marshal(manifest)
			if err != nil {
				return err
			}
			_, err = w.Write(data)
			return err
		}},
		// stats last: the directory is only complete once it exists
		{StatsFile, st.WriteTSV},
	}
	for _, f := range writes {
		if err := util.WriteFileAtomic(s.Path(f.name), f.write); err != nil {
			return fmt.Errorf("failed to write %s: %v: %w", f.name, err, apperr.ErrIO)
		}
	}

	s.logger.Info("Saved model",
		zap.String("dir", s.dir),
		zap.Int("vocabulary", manifest.Model.VocabularySize),
		zap.Int("bigram_types", manifest.Model.BigramTypes),
		zap.Int64("tokens", manifest.Model.TotalUnigrams),
		zap.Float64("p50", st.P50),
		zap.Float64("mad", st.MAD))

	return nil
}

// Load reads a model directory. Any missing table is a configuration error.
func (s *ModelStore) Load() (*Bundle, error) {
	if s.dir == "" {
		return nil, fmt.Errorf("model directory not set: %w", apperr.ErrConfiguration)
	}
	if missing := s.missingFiles(); len(missing) > 0 {
		return nil, fmt.Errorf("incomplete model directory %s, missing %s: %w", s.dir, strings.Join(missing, ", "), apperr.ErrConfiguration)
	}

	unigramF, err := os.Open(s.Path(UnigramFile))
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %v: %w", UnigramFile, err, apperr.ErrIO)
	}
	defer unigramF.Close()

	bigramF, err := os.Open(s.Path(BigramFile))
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %v: %w", BigramFile, err, apperr.ErrIO)
	}
	defer bigramF.Close()

	model, err := ngram.ReadTSV(unigramF, bigramF)
	if err != nil {
		return nil, fmt.Errorf("failed to load model from %s: %w", s.dir, err)
	}

	statsF, err := os.Open(s.Path(StatsFile))
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %v: %w", StatsFile, err, apperr.ErrIO)
	}
	defer statsF.Close()

	st, err := stats.ReadTSV(statsF)
	if err != nil {
		return nil, fmt.Errorf("failed to load stats from %s: %w", s.dir, err)
	}

	manifest, err := s.loadManifest()
	if err != nil {
		return nil, err
	}
	manifest.Model = model.Stats()
	manifest.Stats = st

	s.logger.Info("Loaded model",
		zap.String("dir", s.dir),
		zap.String("tokenizer", manifest.Tokenizer),
		zap.Int("vocabulary", manifest.Model.VocabularySize),
		zap.Int64("tokens", manifest.Model.TotalUnigrams))

	return &Bundle{Dir: s.dir, Model: model, Stats: st, Manifest: manifest}, nil
}

// loadManifest reads manifest.yaml, falling back to defaults when absent
func (s *ModelStore) loadManifest() (Manifest, error) {
	manifest := Manifest{Version: FormatVersion, Tokenizer: tokenizer.DefaultName, Smoother: "addk"}

	data, err := os.ReadFile(s.Path(ManifestFile))
	if errors.Is(err, os.ErrNotExist) {
		return manifest, nil
	}
	if err != nil {
		return manifest, fmt.Errorf("failed to read %s: %v: %w", ManifestFile, err, apperr.ErrIO)
	}
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return manifest, fmt.Errorf("failed to parse %s: %v: %w", ManifestFile, err, apperr.ErrConfiguration)
	}
	if manifest.Tokenizer == "" {
		manifest.Tokenizer = tokenizer.DefaultName
	}
	if manifest.Smoother == "" {
		manifest.Smoother = "addk"
	}
	return manifest, nil
}

// Scorer builds a scorer for the bundle using the tokenizer and smoother the
// model was trained with.
func (b *Bundle) Scorer(registry *tokenizer.Registry) (*ngram.Scorer, error) {
	tok, err := registry.Get(b.Manifest.Tokenizer)
	if err != nil {
		return nil, err
	}
	smoother, ok := ngram.SmootherByName(b.Manifest.Smoother)
	if !ok {
		return nil, fmt.Errorf("unknown smoother %q: %w", b.Manifest.Smoother, apperr.ErrConfiguration)
	}
	return ngram.NewScorer(b.Model, tok, smoother)
}
