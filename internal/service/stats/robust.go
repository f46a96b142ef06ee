package stats

import (
	"fmt"
	"math"
	"sort"
)

// ZScoreScale makes a MAD-based Z comparable to a standard normal Z-score
const ZScoreScale = 0.6745

// RobustStats holds positional quartiles and the median absolute deviation of
// a score distribution. MAD is never zero.
type RobustStats struct {
	P25 float64 `json:"p25" yaml:"p25"`
	P50 float64 `json:"p50" yaml:"p50"`
	P75 float64 `json:"p75" yaml:"p75"`
	MAD float64 `json:"mad" yaml:"mad"`
}

// Compute derives robust statistics from a set of scores.
//
// Quantiles are positional, not interpolated: quantile q is the element at
// 1-indexed position floor(q*n), clamped to at least 1, of the sorted scores.
// MAD is the same positional median over |score - p50|. Empty input yields
// zero quantiles and MAD 1; a MAD of exactly 0 is clamped to 1.
func Compute(scores []float64) RobustStats {
	if len(scores) == 0 {
		return RobustStats{MAD: 1}
	}

	sorted := append([]float64(nil), scores...)
	sort.Float64s(sorted)

	st := RobustStats{
		P25: positional(sorted, 0.25),
		P50: positional(sorted, 0.50),
		P75: positional(sorted, 0.75),
	}

	deviations := make([]float64, len(sorted))
	for i, s := range sorted {
		deviations[i] = math.Abs(s - st.P50)
	}
	sort.Float64s(deviations)

	st.MAD = positional(deviations, 0.50)
	if st.MAD == 0 {
		st.MAD = 1
	}
	return st
}

// positional returns the element at 1-indexed position max(floor(q*n), 1)
func positional(sorted []float64, q float64) float64 {
	idx := int(math.Floor(q * float64(len(sorted))))
	if idx < 1 {
		idx = 1
	}
	if idx > len(sorted) {
		idx = len(sorted)
	}
	return sorted[idx-1]
}

// ZScore converts a raw score into a robust Z-score
func (s RobustStats) ZScore(x float64) float64 {
	return ZScoreScale * (x - s.P50) / s.MAD
}

// IQR returns the inter-quartile range
func (s RobustStats) IQR() float64 {
	return s.P75 - s.P25
}

// Validate rejects statistics that cannot be used for scoring
func (s RobustStats) Validate() error {
	for name, v := range map[string]float64{"p25": s.P25, "p50": s.P50, "p75": s.P75, "mad": s.MAD} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s is not finite: %v", name, v)
		}
	}
	if s.MAD <= 0 {
		return fmt.Errorf("mad must be positive, got %v", s.MAD)
	}
	return nil
}
