package ngram

import "strings"

// Bigram is an ordered pair of adjacent tokens
type Bigram struct {
	Left  string
	Right string
}

// String returns the bigram as a space-separated label
func (b Bigram) String() string {
	return b.Left + " " + b.Right
}

// Less orders bigrams by left token, then right token
func (b Bigram) Less(other Bigram) bool {
	if b.Left != other.Left {
		return b.Left < other.Left
	}
	return b.Right < other.Right
}

// Bigrams returns the adjacent pairs of a token sequence
func Bigrams(tokens []string) []Bigram {
	if len(tokens) < 2 {
		return nil
	}
	pairs := make([]Bigram, 0, len(tokens)-1)
	for i := 0; i+1 < len(tokens); i++ {
		pairs = append(pairs, Bigram{Left: tokens[i], Right: tokens[i+1]})
	}
	return pairs
}

// Join renders a token sequence back into a line
func Join(tokens []string) string {
	return strings.Join(tokens, " ")
}

// UnigramEntry is one row of the unigram table
type UnigramEntry struct {
	Token string `json:"token"`
	Count int64  `json:"count"`
}

// BigramEntry is one row of the bigram table
type BigramEntry struct {
	Left  string `json:"left"`
	Right string `json:"right"`
	Count int64  `json:"count"`
}
