package obs

import (
	"sync/atomic"
	"time"
)

// Sequence hands out monotonically increasing notification sequence numbers.
type Sequence struct {
	last uint64
}

// NewSequence returns a generator whose first value is seed+1. A zero seed
// starts from the current unix nanoseconds so restarts keep increasing.
func NewSequence(seed uint64) *Sequence {
	if seed == 0 {
		seed = uint64(time.Now().UTC().UnixNano())
	}
	return &Sequence{last: seed}
}

// Next returns the next sequence number.
func (s *Sequence) Next() uint64 {
	if s == nil {
		return 0
	}
	return atomic.AddUint64(&s.last, 1)
}

// Last returns the most recently issued number.
func (s *Sequence) Last() uint64 {
	if s == nil {
		return 0
	}
	return atomic.LoadUint64(&s.last)
}
