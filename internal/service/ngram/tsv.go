package ngram

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"logsift/internal/apperr"
	mngram "logsift/internal/model/ngram"
	"logsift/internal/util"
)

// WriteUnigramTSV writes "token\tcount" records sorted by token
func WriteUnigramTSV(w io.Writer, m *FrequencyModel) error {
	for _, e := range m.Unigrams() {
		if _, err := fmt.Fprintf(w, "%s\t%d\n", e.Token, e.Count); err != nil {
			return err
		}
	}
	return nil
}

// WriteBigramTSV writes "left\tright\tcount" records sorted by (left, right)
func WriteBigramTSV(w io.Writer, m *FrequencyModel) error {
	for _, e := range m.Bigrams() {
		if _, err := fmt.Fprintf(w, "%s\t%s\t%d\n", e.Left, e.Right, e.Count); err != nil {
			return err
		}
	}
	return nil
}

// ReadTSV rebuilds a model from its unigram and bigram tables
func ReadTSV(unigramR, bigramR io.Reader) (*FrequencyModel, error) {
	unigrams := make(map[string]int64)
	err := readRecords(unigramR, 2, func(lineNo int, fields []string) error {
		count, err := parseCount(fields[1])
		if err != nil {
			return fmt.Errorf("unigram line %d: %w", lineNo, err)
		}
		unigrams[fields[0]] += count
		return nil
	})
	if err != nil {
		return nil, err
	}

	bigrams := make(map[mngram.Bigram]int64)
	err = readRecords(bigramR, 3, func(lineNo int, fields []string) error {
		count, err := parseCount(fields[2])
		if err != nil {
			return fmt.Errorf("bigram line %d: %w", lineNo, err)
		}
		bigrams[mngram.Bigram{Left: fields[0], Right: fields[1]}] += count
		return nil
	})
	if err != nil {
		return nil, err
	}

	m := FromCounts(unigrams, bigrams)
	if err := m.checkVocabulary(); err != nil {
		return nil, fmt.Errorf("unigram table is empty: %w", err)
	}
	return m, nil
}

func readRecords(r io.Reader, width int, fn func(lineNo int, fields []string) error) error {
	scanner := util.NewLineScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) != width {
			return fmt.Errorf("line %d: expected %d tab-separated fields, got %d: %w", lineNo, width, len(fields), apperr.ErrConfiguration)
		}
		if err := fn(lineNo, fields); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("%v: %w", err, apperr.ErrIO)
	}
	return nil
}

func parseCount(s string) (int64, error) {
	count, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || count < 0 {
		return 0, fmt.Errorf("invalid count %q: %w", s, apperr.ErrConfiguration)
	}
	return count, nil
}
