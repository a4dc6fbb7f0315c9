package chaos

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yanun0323/errors"

	"ledger/internal/notify"
	"ledger/internal/schema"
)

// ErrInjected is returned for deliveries the sink decided to fail.
var ErrInjected = errors.New("chaos: injected delivery failure")

// Config controls fault injection. Rates are probabilities in [0, 1].
type Config struct {
	Seed          int64
	DropRate      float64
	FailRate      float64
	DuplicateRate float64
	MaxDelay      time.Duration
}

// Validate ensures the config is within supported ranges.
func (c Config) Validate() error {
	if c.DropRate < 0 || c.DropRate > 1 {
		return errors.New("dropRate must be between 0 and 1")
	}
	if c.FailRate < 0 || c.FailRate > 1 {
		return errors.New("failRate must be between 0 and 1")
	}
	if c.DuplicateRate < 0 || c.DuplicateRate > 1 {
		return errors.New("duplicateRate must be between 0 and 1")
	}
	if c.MaxDelay < 0 {
		return errors.New("maxDelay must be >= 0")
	}
	return nil
}

// Stats counts what the sink did to deliveries.
type Stats struct {
	Delivered  uint64
	Dropped    uint64
	Failed     uint64
	Duplicated uint64
}

// Sink wraps another sink and drops, fails, delays or duplicates deliveries
// using a seeded RNG, so a run with the same seed misbehaves the same way.
type Sink struct {
	cfg  Config
	next notify.Sink

	mu  sync.Mutex
	rng *rand.Rand

	delivered  uint64
	dropped    uint64
	failed     uint64
	duplicated uint64
}

var _ notify.Sink = (*Sink)(nil)

// NewSink wraps next. A zero seed uses the current time.
func NewSink(cfg Config, next notify.Sink) (*Sink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if next == nil {
		next = notify.Discard
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UTC().UnixNano()
	}
	return &Sink{
		cfg:  cfg,
		next: next,
		rng:  rand.New(rand.NewSource(cfg.Seed)),
	}, nil
}

type plan struct {
	drop      bool
	fail      bool
	duplicate bool
	delay     time.Duration
}

func (s *Sink) plan() plan {
	s.mu.Lock()
	defer s.mu.Unlock()
	var p plan
	p.fail = s.cfg.FailRate > 0 && s.rng.Float64() < s.cfg.FailRate
	p.drop = s.cfg.DropRate > 0 && s.rng.Float64() < s.cfg.DropRate
	p.duplicate = s.cfg.DuplicateRate > 0 && s.rng.Float64() < s.cfg.DuplicateRate
	if s.cfg.MaxDelay > 0 {
		p.delay = time.Duration(s.rng.Int63n(s.cfg.MaxDelay.Nanoseconds() + 1))
	}
	return p
}

func (s *Sink) Notify(ctx context.Context, n schema.Notification) error {
	p := s.plan()
	if p.fail {
		atomic.AddUint64(&s.failed, 1)
		return errors.Wrapf(ErrInjected, "seq %d", n.Seq)
	}
	if p.drop {
		atomic.AddUint64(&s.dropped, 1)
		return nil
	}
	if p.delay > 0 {
		t := time.NewTimer(p.delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	if err := s.next.Notify(ctx, n); err != nil {
		return err
	}
	atomic.AddUint64(&s.delivered, 1)
	if p.duplicate {
		atomic.AddUint64(&s.duplicated, 1)
		return s.next.Notify(ctx, n)
	}
	return nil
}

// Stats returns the current counters.
func (s *Sink) Stats() Stats {
	return Stats{
		Delivered:  atomic.LoadUint64(&s.delivered),
		Dropped:    atomic.LoadUint64(&s.dropped),
		Failed:     atomic.LoadUint64(&s.failed),
		Duplicated: atomic.LoadUint64(&s.duplicated),
	}
}
