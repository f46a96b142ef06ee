package ngram

import "strings"

// Smoother defines the interface for n-gram probability smoothing algorithms
type Smoother interface {
	// Smooth computes the smoothed probability of an event
	// count: count of the event (unigram or bigram)
	// contextCount: count of the conditioning context (corpus total or left total)
	// vocabularySize: number of distinct unigrams
	Smooth(count, contextCount int64, vocabularySize int) float64

	// Name returns the name of the smoothing algorithm
	Name() string
}

// AddKSmoother implements add-k smoothing. k=1 is Laplace smoothing.
type AddKSmoother struct {
	k float64
}

// NewAddKSmoother creates a new add-k smoother
func NewAddKSmoother(k float64) *AddKSmoother {
	if k <= 0 {
		k = 1.0 // Default to Laplace smoothing
	}
	return &AddKSmoother{k: k}
}

// Smooth returns (count + k) / (contextCount + k*V).
// An empty context reduces to the uniform 1/V.
func (s *AddKSmoother) Smooth(count, contextCount int64, vocabularySize int) float64 {
	numerator := float64(count) + s.k
	denominator := float64(contextCount) + s.k*float64(vocabularySize)
	return numerator / denominator
}

func (s *AddKSmoother) Name() string {
	return "addk"
}

// SmootherByName resolves a smoother recorded in a model manifest
func SmootherByName(name string) (Smoother, bool) {
	switch strings.ToLower(name) {
	case "", "addk", "laplace":
		return NewAddKSmoother(1.0), true
	}
	return nil, false
}
