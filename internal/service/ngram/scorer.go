package ngram

import (
	"fmt"
	"math"

	"logsift/internal/model"
	"logsift/internal/service/tokenizer"
)

// Scorer computes the smoothed negative log-likelihood of token sequences
// under a frequency model. The model must not be mutated while a Scorer
// holds it; under that condition a Scorer is safe for concurrent use.
type Scorer struct {
	model     *FrequencyModel
	smoother  Smoother
	tokenizer tokenizer.Tokenizer
	vocab     int
	total     int64
}

// NewScorer creates a scorer over m. A nil smoother means add-one smoothing.
func NewScorer(m *FrequencyModel, tok tokenizer.Tokenizer, smoother Smoother) (*Scorer, error) {
	if m == nil {
		return nil, fmt.Errorf("nil model")
	}
	if err := m.checkVocabulary(); err != nil {
		return nil, err
	}
	if smoother == nil {
		smoother = NewAddKSmoother(1.0)
	}
	if tok == nil {
		tok = tokenizer.NewLogTokenizer()
	}
	return &Scorer{
		model:     m,
		smoother:  smoother,
		tokenizer: tok,
		vocab:     m.VocabularySize(),
		total:     m.TotalUnigramCount(),
	}, nil
}

// Model returns the model the scorer reads from
func (s *Scorer) Model() *FrequencyModel {
	return s.model
}

// Tokenizer returns the tokenizer used by ScoreLine and ExplainLine
func (s *Scorer) Tokenizer() tokenizer.Tokenizer {
	return s.tokenizer
}

// UnigramProbability returns the smoothed probability of token u
func (s *Scorer) UnigramProbability(u string) float64 {
	return s.smoother.Smooth(s.model.UnigramCount(u), s.total, s.vocab)
}

// BigramProbability returns the smoothed probability of v following u
func (s *Scorer) BigramProbability(u, v string) float64 {
	return s.smoother.Smooth(s.model.BigramCount(u, v), s.model.LeftTotal(u), s.vocab)
}

// Score returns the NLL of a token sequence. The value is not normalized by
// length: longer lines score higher.
func (s *Scorer) Score(tokens []string) float64 {
	return s.accumulate(tokens, nil)
}

// Explain returns the NLL together with every term that makes it up, in token
// order. The total is computed exactly as in Score.
func (s *Scorer) Explain(tokens []string) (float64, []model.Contribution) {
	contributions := make([]model.Contribution, 0, 2*len(tokens))
	nll := s.accumulate(tokens, func(c model.Contribution) {
		contributions = append(contributions, c)
	})
	return nll, contributions
}

// ScoreLine tokenizes and scores a raw line
func (s *Scorer) ScoreLine(line string) float64 {
	return s.Score(s.tokenizer.Tokenize(line))
}

// ExplainLine tokenizes and explains a raw line
func (s *Scorer) ExplainLine(line string) ([]string, float64, []model.Contribution) {
	tokens := s.tokenizer.Tokenize(line)
	nll, contributions := s.Explain(tokens)
	return tokens, nll, contributions
}

// accumulate sums -ln(p) over every unigram and bigram term. Both Score and
// Explain go through here so their totals are bit-identical.
func (s *Scorer) accumulate(tokens []string, emit func(model.Contribution)) float64 {
	nll := 0.0
	for i, u := range tokens {
		pu := s.UnigramProbability(u)
		term := -math.Log(pu)
		nll += term
		if emit != nil {
			emit(model.Contribution{Label: u, Kind: model.KindUnigram, Probability: pu, Value: term})
		}

		if i+1 < len(tokens) {
			v := tokens[i+1]
			pv := s.BigramProbability(u, v)
			term = -math.Log(pv)
			nll += term
			if emit != nil {
				emit(model.Contribution{Label: u + " " + v, Kind: model.KindBigram, Probability: pv, Value: term})
			}
		}
	}
	return nll
}
