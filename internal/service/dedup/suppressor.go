package dedup

import (
	"strings"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

// Suppressor remembers which normalized lines have already been reported.
// It is backed by a bloom filter, so a never-seen line is occasionally
// reported as seen (at roughly the configured false positive rate) but a
// seen line is never forgotten until the filter rotates.
type Suppressor struct {
	filter        *bloom.BloomFilter
	capacity      uint
	falsePositive float64
	added         uint
	mu            sync.Mutex
}

// NewSuppressor creates a suppressor sized for capacity distinct lines
func NewSuppressor(capacity uint, falsePositiveRate float64) *Suppressor {
	if capacity == 0 {
		capacity = 100000
	}
	if falsePositiveRate <= 0 || falsePositiveRate >= 1 {
		falsePositiveRate = 0.001
	}
	return &Suppressor{
		filter:        bloom.NewWithEstimates(capacity, falsePositiveRate),
		capacity:      capacity,
		falsePositive: falsePositiveRate,
	}
}

// Seen records tokens and reports whether an identical token sequence was
// recorded before. Once capacity entries have been added the filter is
// cleared so the false positive rate stays bounded.
func (s *Suppressor) Seen(tokens []string) bool {
	key := strings.Join(tokens, " ")

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.filter.TestString(key) {
		return true
	}
	if s.added >= s.capacity {
		s.filter.ClearAll()
		s.added = 0
	}
	s.filter.AddString(key)
	s.added++
	return false
}

// Len returns the number of entries added since the last rotation
func (s *Suppressor) Len() uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.added
}
