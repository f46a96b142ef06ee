package stats

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"

	"logsift/internal/apperr"
)

func TestCompute_Positional(t *testing.T) {
	tests := []struct {
		name   string
		scores []float64
		want   RobustStats
	}{
		{"empty", nil, RobustStats{MAD: 1}},
		{"single", []float64{5}, RobustStats{P25: 5, P50: 5, P75: 5, MAD: 1}},
		// n=3: positions max(0,1)=1, floor(1.5)=1, floor(2.25)=2
		{"three", []float64{3, 1, 2}, RobustStats{P25: 1, P50: 1, P75: 2, MAD: 1}},
		// n=8: positions 2, 4, 6; deviations from 4 are {3,2,1,0,1,2,3,4} -> sorted 0,1,1,2,2,3,3,4 -> 4th = 2
		{"eight", []float64{8, 7, 6, 5, 4, 3, 2, 1}, RobustStats{P25: 2, P50: 4, P75: 6, MAD: 2}},
		// n=4: positions 1, 2, 3; deviations from 20 are {10,0,10,80} -> 0,10,10,80 -> 2nd = 10
		{"outlier", []float64{10, 20, 30, 100}, RobustStats{P25: 10, P50: 20, P75: 30, MAD: 10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compute(tt.scores)
			if got != tt.want {
				t.Fatalf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestCompute_DoesNotReorderInput(t *testing.T) {
	scores := []float64{3, 1, 2}
	Compute(scores)
	if scores[0] != 3 || scores[1] != 1 || scores[2] != 2 {
		t.Fatalf("input slice was modified: %v", scores)
	}
}

func TestCompute_MADClampedWhenScoresIdentical(t *testing.T) {
	scores := make([]float64, 50)
	for i := range scores {
		scores[i] = 12.75
	}
	st := Compute(scores)
	if st.MAD != 1 {
		t.Fatalf("expected MAD clamped to 1, got %v", st.MAD)
	}
	if st.P50 != 12.75 {
		t.Fatalf("expected median 12.75, got %v", st.P50)
	}
}

func TestZScore(t *testing.T) {
	for _, st := range []RobustStats{
		{P25: 1, P50: 2, P75: 3, MAD: 1},
		{P25: 10.5, P50: 17.25, P75: 40, MAD: 0.3},
		{MAD: 1},
	} {
		if z := st.ZScore(st.P50); z != 0 {
			t.Errorf("ZScore(p50) = %v for %+v, expected exactly 0", z, st)
		}
	}

	st := RobustStats{P50: 10, MAD: 2}
	if z := st.ZScore(14); math.Abs(z-2*ZScoreScale) > 1e-12 {
		t.Fatalf("expected %v, got %v", 2*ZScoreScale, z)
	}
	if z := st.ZScore(6); z >= 0 {
		t.Fatalf("expected negative z below the median, got %v", z)
	}
}

func TestTSV(t *testing.T) {
	st := RobustStats{P25: 11.25, P50: 13.0000001, P75: 19.5, MAD: 2.125}

	var buf bytes.Buffer
	if err := st.WriteTSV(&buf); err != nil {
		t.Fatalf("WriteTSV failed: %v", err)
	}
	if lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n"); len(lines) != 4 || !strings.HasPrefix(lines[0], "p25\t") || !strings.HasPrefix(lines[3], "mad\t") {
		t.Fatalf("unexpected stats file:\n%s", buf.String())
	}

	got, err := ReadTSV(&buf)
	if err != nil {
		t.Fatalf("ReadTSV failed: %v", err)
	}
	if got != st {
		t.Fatalf("expected %+v, got %+v", st, got)
	}
}

func TestReadTSV_Invalid(t *testing.T) {
	inputs := map[string]string{
		"missing mad":  "p25\t1\np50\t2\np75\t3\n",
		"zero mad":     "p25\t1\np50\t2\np75\t3\nmad\t0\n",
		"bad number":   "p25\t1\np50\tmid\np75\t3\nmad\t1\n",
		"duplicate":    "p25\t1\np25\t1\np50\t2\np75\t3\nmad\t1\n",
		"unknown key":  "p25\t1\np50\t2\np75\t3\nmad\t1\np99\t9\n",
		"no separator": "p25 1\n",
	}
	for name, input := range inputs {
		if _, err := ReadTSV(strings.NewReader(input)); !errors.Is(err, apperr.ErrConfiguration) {
			t.Errorf("%s: expected ErrConfiguration, got %v", name, err)
		}
	}
}
