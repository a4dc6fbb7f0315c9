package notify

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yanun0323/errors"

	"ledger/internal/journal"
	"ledger/internal/schema"
	"ledger/pkg/uds"
)

func TestForwardDelivers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "forward.sock")
	server, err := uds.NewServer(path)
	require.NoError(t, err)
	require.NoError(t, server.Listen())
	defer server.Close()

	received := make(chan schema.Notification, 4)
	go func() {
		conn, err := server.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		r := journal.NewReader(conn, journal.ReaderOptions{})
		for {
			rec, err := r.Next()
			if err != nil {
				return
			}
			n, err := rec.Notification()
			if err != nil {
				return
			}
			received <- n
		}
	}()

	f, err := NewForward(ForwardConfig{Path: path, Source: 2})
	require.NoError(t, err)
	defer f.Close()

	ctx := context.Background()
	sent := []schema.Notification{
		{Type: schema.EventDeposit, Seq: 1, Amount: 5},
		{Type: schema.EventTransfer, Seq: 2, Amount: 3, Counterparty: schema.Identity{1}},
	}
	for _, n := range sent {
		require.NoError(t, f.Notify(ctx, n))
	}

	for _, want := range sent {
		select {
		case got := <-received:
			assert.Equal(t, want, got)
		case <-time.After(2 * time.Second):
			t.Fatal("timeout waiting for forwarded notification")
		}
	}
	assert.Equal(t, gobreaker.StateClosed, f.State())
}

func TestForwardBreakerOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.sock")
	f, err := NewForward(ForwardConfig{Path: path, MaxFailures: 2, OpenTimeout: time.Minute})
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		err := f.Notify(ctx, schema.Notification{Seq: uint64(i)})
		require.Error(t, err)
		var opErr *net.OpError
		assert.Truef(t, errors.As(err, &opErr), "err = %v", err)
		var fwdErr *ForwardError
		require.Truef(t, errors.As(err, &fwdErr), "err = %v", err)
		assert.Equal(t, uint64(i), fwdErr.Seq)
		assert.Equal(t, path, fwdErr.Path)
	}
	assert.Equal(t, gobreaker.StateOpen, f.State())

	err = f.Notify(ctx, schema.Notification{Seq: 3})
	assert.Truef(t, errors.Is(err, gobreaker.ErrOpenState), "err = %v", err)
	assert.Contains(t, err.Error(), "forward seq 3 to "+path)
}

func TestForwardEmptyPath(t *testing.T) {
	_, err := NewForward(ForwardConfig{})
	assert.Error(t, err)
}
