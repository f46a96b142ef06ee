package tokenizer

import (
	"strings"
	"unicode"
)

// LogTokenizer lowercases a line and splits it on every run of characters
// that are neither letters, digits nor underscores.
type LogTokenizer struct{}

// NewLogTokenizer creates the default log line tokenizer
func NewLogTokenizer() *LogTokenizer {
	return &LogTokenizer{}
}

func (t *LogTokenizer) Tokenize(line string) []string {
	return strings.FieldsFunc(strings.ToLower(line), isSeparator)
}

func (t *LogTokenizer) Name() string {
	return DefaultName
}

func isSeparator(r rune) bool {
	return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_')
}
