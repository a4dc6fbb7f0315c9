package ledger

import (
	"context"
	"time"

	"github.com/yanun0323/logs"

	"ledger/internal/calc"
	"ledger/internal/clock"
	"ledger/internal/notify"
	"ledger/internal/obs"
	"ledger/internal/schema"
	"ledger/internal/store"
	"ledger/pkg/exception"
)

const (
	// DefaultMaxDeposit caps a single deposit at one million tokens.
	DefaultMaxDeposit = 1_000_000 * calc.TokenUnit
	// DefaultInitialReserve funds a freshly initialized bank with 5000 tokens.
	DefaultInitialReserve = 5_000 * calc.TokenUnit
)

// Config holds the ledger limits, in base units.
type Config struct {
	InitialReserve uint64
	MaxDeposit     uint64
}

// DefaultConfig returns the standard limits.
func DefaultConfig() Config {
	return Config{
		InitialReserve: DefaultInitialReserve,
		MaxDeposit:     DefaultMaxDeposit,
	}
}

// Option customizes an Engine.
type Option func(*Engine)

// WithConfig overrides the ledger limits. Zero fields keep their defaults.
func WithConfig(cfg Config) Option {
	return func(e *Engine) {
		if cfg.InitialReserve != 0 {
			e.cfg.InitialReserve = cfg.InitialReserve
		}
		if cfg.MaxDeposit != 0 {
			e.cfg.MaxDeposit = cfg.MaxDeposit
		}
	}
}

// WithSink sets where notifications go.
func WithSink(sink notify.Sink) Option {
	return func(e *Engine) {
		if sink != nil {
			e.sink = sink
		}
	}
}

// WithMetrics attaches a metrics collector.
func WithMetrics(m *obs.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithSequence sets the notification sequence source.
func WithSequence(seq *obs.Sequence) Option {
	return func(e *Engine) {
		if seq != nil {
			e.seq = seq
		}
	}
}

// Engine applies ledger operations against a Store. Each operation reads the
// clock once, runs inside one Store.Update and, only after the commit, hands a
// notification to the sink.
type Engine struct {
	store   store.Store
	clock   clock.Source
	sink    notify.Sink
	metrics *obs.Metrics
	seq     *obs.Sequence
	cfg     Config
}

// NewEngine wires an engine to its store and clock.
func NewEngine(st store.Store, clk clock.Source, opts ...Option) *Engine {
	e := &Engine{
		store: st,
		clock: clk,
		sink:  notify.Discard,
		seq:   obs.NewSequence(0),
		cfg:   DefaultConfig(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns the limits in effect.
func (e *Engine) Config() Config {
	return e.cfg
}

type opFunc func(tx store.Tx, now clock.Reading, n *schema.Notification) error

func (e *Engine) update(ctx context.Context, eventType schema.EventType, keys store.Keys, fn opFunc) (schema.Notification, error) {
	return e.run(ctx, eventType, keys, fn, e.store.Update)
}

func (e *Engine) view(ctx context.Context, eventType schema.EventType, keys store.Keys, fn opFunc) (schema.Notification, error) {
	return e.run(ctx, eventType, keys, fn, e.store.View)
}

func (e *Engine) run(
	ctx context.Context,
	eventType schema.EventType,
	keys store.Keys,
	fn opFunc,
	exec func(context.Context, store.Keys, func(store.Tx) error) error,
) (schema.Notification, error) {
	start := time.Now()
	now := e.clock.Now()

	var n schema.Notification
	err := exec(ctx, keys, func(tx store.Tx) error {
		n = schema.Notification{}
		return fn(tx, now, &n)
	})
	e.metrics.ObserveOperation(eventType, time.Since(start), err)
	if err != nil {
		if exception.Code(err) == exception.CodeInternal {
			logs.Errorf("[%s] commit failed: %+v", eventType, err)
		}
		return schema.Notification{}, err
	}

	n.Type = eventType
	n.Seq = e.seq.Next()
	n.Slot = now.Slot
	n.Timestamp = now.Unix
	e.deliver(ctx, n)
	return n, nil
}

func (e *Engine) deliver(ctx context.Context, n schema.Notification) {
	start := time.Now()
	err := e.sink.Notify(ctx, n)
	e.metrics.ObserveSink(time.Since(start), err)
	if err != nil {
		logs.Errorf("[%s] notify seq %d: %+v", n.Type, n.Seq, err)
	}
}

func userKeys(bank bool, ids ...schema.Identity) store.Keys {
	return store.Keys{Users: ids, Bank: bank}
}

func describeBank(n *schema.Notification, bank *schema.Bank) {
	n.BankBalance = bank.Balance
	n.TotalUsers = bank.TotalUsers
	n.IsOperational = bank.IsOperational
}

func describeUser(n *schema.Notification, user *schema.User) {
	n.Actor = user.Owner
	n.Balance = user.Balance
	n.StakedBalance = user.StakedBalance
	n.LentBalance = user.LentBalance()
}

func authorize(user *schema.User, caller schema.Identity) error {
	if user.Owner != caller {
		return exception.ErrUnauthorized
	}
	return nil
}

func requireAmount(amount uint64) error {
	if amount == 0 {
		return exception.ErrInvalidAmount
	}
	return nil
}

func requireOperational(bank *schema.Bank) error {
	if !bank.IsOperational {
		return exception.ErrNotEligible
	}
	return nil
}

// loadPair reads the bank and one user. The bank is read first so an
// uninitialized ledger reports ErrBankNotInitialized.
func loadPair(tx store.Tx, id schema.Identity) (schema.Bank, schema.User, error) {
	bank, err := tx.Bank()
	if err != nil {
		return schema.Bank{}, schema.User{}, err
	}
	user, err := tx.User(id)
	if err != nil {
		return schema.Bank{}, schema.User{}, err
	}
	return bank, user, nil
}

func commitPair(tx store.Tx, bank schema.Bank, user schema.User) error {
	if err := tx.PutUser(user); err != nil {
		return err
	}
	return tx.PutBank(bank)
}
