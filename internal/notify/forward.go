package notify

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"ledger/internal/codec"
	"ledger/internal/journal"
	"ledger/internal/schema"
	"ledger/pkg/uds"
)

// ForwardConfig controls the socket forwarder.
type ForwardConfig struct {
	Path         string
	Source       uint16
	WriteTimeout time.Duration
	// MaxFailures consecutive failed deliveries open the breaker.
	MaxFailures uint32
	// OpenTimeout is how long the breaker stays open before probing again.
	OpenTimeout time.Duration
}

func (c ForwardConfig) withDefaults() ForwardConfig {
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = time.Second
	}
	if c.MaxFailures == 0 {
		c.MaxFailures = 5
	}
	if c.OpenTimeout <= 0 {
		c.OpenTimeout = 10 * time.Second
	}
	return c
}

// Forward streams notifications as journal records to a Unix socket. The
// connection is dialed lazily and redialed after a failed write. Once the
// reader has failed MaxFailures times in a row the breaker rejects deliveries
// without dialing until OpenTimeout passes.
type Forward struct {
	cfg    ForwardConfig
	client *uds.Client
	cb     *gobreaker.CircuitBreaker

	mu   sync.Mutex
	conn *net.UnixConn
	buf  []byte
}

// NewForward creates a forwarder. No connection is made until the first Notify.
func NewForward(cfg ForwardConfig) (*Forward, error) {
	cfg = cfg.withDefaults()
	client, err := uds.NewClient(cfg.Path)
	if err != nil {
		return nil, err
	}
	f := &Forward{cfg: cfg, client: client}
	f.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "notify-forward",
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
	})
	return f, nil
}

func (f *Forward) Notify(ctx context.Context, n schema.Notification) error {
	_, err := f.cb.Execute(func() (interface{}, error) {
		return nil, f.send(ctx, n)
	})
	if err != nil {
		return &ForwardError{Seq: n.Seq, Path: f.cfg.Path, Err: err}
	}
	return nil
}

// ForwardError records a failed delivery and the transport or breaker error
// behind it.
type ForwardError struct {
	Seq  uint64
	Path string
	Err  error
}

func (e *ForwardError) Error() string {
	return fmt.Sprintf("forward seq %d to %s: %v", e.Seq, e.Path, e.Err)
}

func (e *ForwardError) Unwrap() error {
	return e.Err
}

// State reports the breaker state.
func (f *Forward) State() gobreaker.State {
	return f.cb.State()
}

func (f *Forward) send(ctx context.Context, n schema.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.conn == nil {
		conn, err := f.client.DialContext(ctx, f.cfg.WriteTimeout)
		if err != nil {
			return err
		}
		f.conn = conn
	}

	payload := codec.EncodeNotification(nil, n)
	header := codec.HeaderFor(n, f.cfg.Source, time.Now().UTC().UnixNano())
	f.buf = journal.AppendRecord(f.buf[:0], header, payload)

	deadline := time.Now().Add(f.cfg.WriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := f.conn.SetWriteDeadline(deadline); err != nil {
		f.dropConn()
		return err
	}
	if _, err := f.conn.Write(f.buf); err != nil {
		f.dropConn()
		return err
	}
	return nil
}

func (f *Forward) dropConn() {
	if f.conn != nil {
		_ = f.conn.Close()
		f.conn = nil
	}
}

// Close closes the current connection.
func (f *Forward) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dropConn()
	return nil
}
