package clock

import (
	"sync"
	"time"

	"github.com/yanun0323/errors"
)

// ErrBeforeEpoch reports a wall clock reading that cannot date a loan. A zero
// loan timestamp is reserved for "no loan".
var ErrBeforeEpoch = errors.New("clock reading at or before unix epoch")

// Reading is one observation of the clock source.
type Reading struct {
	Slot uint64
	Unix int64
}

// Source supplies the logical tick used for staking and the wall clock used for loans.
type Source interface {
	Now() Reading
}

// DefaultSlotDuration makes one year span 432000*365 slots.
const DefaultSlotDuration = 200 * time.Millisecond

// System derives slots from wall time elapsed since a genesis instant.
type System struct {
	genesis      time.Time
	slotDuration time.Duration
	now          func() time.Time
}

// NewSystem creates a system clock. A zero genesis uses the unix epoch and a
// non-positive slot duration uses DefaultSlotDuration.
func NewSystem(genesis time.Time, slotDuration time.Duration) *System {
	if genesis.IsZero() {
		genesis = time.Unix(0, 0)
	}
	if slotDuration <= 0 {
		slotDuration = DefaultSlotDuration
	}
	return &System{genesis: genesis.UTC(), slotDuration: slotDuration, now: time.Now}
}

// Now implements Source. Slots never go below zero before genesis.
func (c *System) Now() Reading {
	now := c.now().UTC()
	var slot uint64
	if elapsed := now.Sub(c.genesis); elapsed > 0 {
		slot = uint64(elapsed / c.slotDuration)
	}
	return Reading{Slot: slot, Unix: now.Unix()}
}

// Manual is a settable clock for tests and tools.
type Manual struct {
	mu sync.Mutex
	r  Reading
}

// NewManual starts a manual clock at the given reading.
func NewManual(slot uint64, unix int64) *Manual {
	return &Manual{r: Reading{Slot: slot, Unix: unix}}
}

// Now implements Source.
func (m *Manual) Now() Reading {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.r
}

// Advance moves the clock forward by slots ticks and seconds wall seconds.
func (m *Manual) Advance(slots uint64, seconds int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.r.Slot += slots
	m.r.Unix += seconds
}

// Set replaces the current reading. It may move backwards to simulate skew.
func (m *Manual) Set(r Reading) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.r = r
}
