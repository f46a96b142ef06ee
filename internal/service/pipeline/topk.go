package pipeline

import (
	"sort"

	"logsift/internal/model"
)

// SelectTop keeps lines with Z at or above threshold, sorts them by Z
// descending (earlier lines first on ties) and truncates to k. k <= 0 keeps
// every line above threshold. The input slice is not modified.
func SelectTop(lines []model.ScoredLine, threshold float64, k int) []model.ScoredLine {
	selected := make([]model.ScoredLine, 0)
	for _, l := range lines {
		if l.Z >= threshold {
			selected = append(selected, l)
		}
	}

	sort.SliceStable(selected, func(i, j int) bool {
		if selected[i].Z != selected[j].Z {
			return selected[i].Z > selected[j].Z
		}
		return selected[i].LineNo < selected[j].LineNo
	})

	if k > 0 && len(selected) > k {
		selected = selected[:k]
	}
	return selected
}
