package status

import (
	"slices"
	"sync"

	"gonum.org/v1/gonum/stat"

	"github.com/kofuk/premises-sub000/internal/shared/types"
)

// DefaultCapacity is the number of CPU samples kept.
const DefaultCapacity = 100

// Series is a fixed-capacity FIFO of CPU samples. It always holds exactly
// Capacity samples: it starts filled with zero samples and each append
// evicts the oldest.
type Series struct {
	mu      sync.RWMutex
	buf     []types.SysstatEvent
	head    int // index of the oldest sample
	written int // real samples appended, saturating at capacity
}

// NewSeries returns a series of the given capacity pre-seeded with zeros.
// A non-positive capacity selects DefaultCapacity.
func NewSeries(capacity int) *Series {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Series{buf: make([]types.SysstatEvent, capacity)}
}

// Capacity returns the fixed length of the series.
func (s *Series) Capacity() int {
	return len(s.buf)
}

// Append adds sample as the newest entry and evicts the oldest.
func (s *Series) Append(sample types.SysstatEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.buf[s.head] = sample
	s.head = (s.head + 1) % len(s.buf)
	if s.written < len(s.buf) {
		s.written++
	}
}

// Samples returns a copy of the series, oldest first. Its length is always
// Capacity.
func (s *Series) Samples() []types.SysstatEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ordered()
}

func (s *Series) ordered() []types.SysstatEvent {
	out := make([]types.SysstatEvent, 0, len(s.buf))
	out = append(out, s.buf[s.head:]...)
	return append(out, s.buf[:s.head]...)
}

// Latest returns the newest sample and whether any real sample was ever
// appended.
func (s *Series) Latest() (types.SysstatEvent, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.written == 0 {
		return types.SysstatEvent{}, false
	}
	i := (s.head - 1 + len(s.buf)) % len(s.buf)
	return s.buf[i], true
}

// Summary describes the real samples currently held. Seed zeros are
// excluded.
type Summary struct {
	Count  int
	Mean   float64
	StdDev float64
	P95    float64
	Max    float64
}

// Summary computes statistics over the real samples in the series.
func (s *Series) Summary() Summary {
	s.mu.RLock()
	samples := s.ordered()
	n := s.written
	s.mu.RUnlock()

	if n == 0 {
		return Summary{}
	}

	values := make([]float64, 0, n)
	for _, sample := range samples[len(samples)-n:] {
		values = append(values, sample.CPUUsage)
	}

	sum := Summary{Count: n}
	sum.Mean, sum.StdDev = stat.MeanStdDev(values, nil)
	if n == 1 {
		sum.StdDev = 0
	}
	slices.Sort(values)
	sum.P95 = stat.Quantile(0.95, stat.Empirical, values, nil)
	sum.Max = values[len(values)-1]
	return sum
}
