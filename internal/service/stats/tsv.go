package stats

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"logsift/internal/apperr"
	"logsift/internal/util"
)

// Keys in the order they are written to stats.tsv
var Keys = []string{"p25", "p50", "p75", "mad"}

// WriteTSV writes exactly four "key\tvalue" lines
func (s RobustStats) WriteTSV(w io.Writer) error {
	values := []float64{s.P25, s.P50, s.P75, s.MAD}
	for i, key := range Keys {
		if _, err := fmt.Fprintf(w, "%s\t%s\n", key, strconv.FormatFloat(values[i], 'g', -1, 64)); err != nil {
			return err
		}
	}
	return nil
}

// ReadTSV parses stats written by WriteTSV. Every key must appear exactly once.
func ReadTSV(r io.Reader) (RobustStats, error) {
	values := make(map[string]float64, len(Keys))
	scanner := util.NewLineScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		key, raw, ok := strings.Cut(line, "\t")
		if !ok {
			return RobustStats{}, fmt.Errorf("stats line %d: expected key<TAB>value: %w", lineNo, apperr.ErrConfiguration)
		}
		if _, dup := values[key]; dup {
			return RobustStats{}, fmt.Errorf("stats line %d: duplicate key %q: %w", lineNo, key, apperr.ErrConfiguration)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return RobustStats{}, fmt.Errorf("stats line %d: invalid value for %s: %w", lineNo, key, apperr.ErrConfiguration)
		}
		values[key] = v
	}
	if err := scanner.Err(); err != nil {
		return RobustStats{}, fmt.Errorf("%v: %w", err, apperr.ErrIO)
	}

	for _, key := range Keys {
		if _, ok := values[key]; !ok {
			return RobustStats{}, fmt.Errorf("stats missing key %q: %w", key, apperr.ErrConfiguration)
		}
	}
	if len(values) != len(Keys) {
		return RobustStats{}, fmt.Errorf("stats has %d keys, expected %d: %w", len(values), len(Keys), apperr.ErrConfiguration)
	}

	st := RobustStats{P25: values["p25"], P50: values["p50"], P75: values["p75"], MAD: values["mad"]}
	if err := st.Validate(); err != nil {
		return RobustStats{}, fmt.Errorf("%v: %w", err, apperr.ErrConfiguration)
	}
	return st, nil
}
