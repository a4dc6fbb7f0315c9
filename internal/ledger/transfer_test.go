package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yanun0323/errors"

	"ledger/internal/schema"
	"ledger/pkg/exception"
)

func TestTransferFunds(t *testing.T) {
	f := newBank(t, alice, bob)
	ctx := context.Background()
	_, err := f.engine.Deposit(ctx, alice, 100*token)
	require.NoError(t, err)
	_, err = f.engine.ToggleBankStatus(ctx, admin)
	require.NoError(t, err)
	bankBefore := f.bank(t)

	n, err := f.engine.TransferFunds(ctx, alice, bob, 40*token)
	require.NoError(t, err)
	assert.Equal(t, schema.EventTransfer, n.Type)
	assert.Equal(t, alice, n.Actor)
	assert.Equal(t, bob, n.Counterparty)
	assert.Equal(t, 60*token, n.Balance)

	assert.Equal(t, 60*token, f.user(t, alice).Balance)
	assert.Equal(t, 40*token, f.user(t, bob).Balance)
	assert.Equal(t, bankBefore, f.bank(t))
}

func TestTransferFailures(t *testing.T) {
	carol := testID(0x03)
	testCases := []struct {
		desc   string
		to     schema.Identity
		amount uint64
		err    error
	}{
		{"more than balance", bob, 100*token + 1, exception.ErrInsufficientBalance},
		{"self", alice, 10 * token, exception.ErrInvalidAddress},
		{"self with bad amount", alice, 0, exception.ErrInvalidAddress},
		{"self beyond balance", alice, 1000 * token, exception.ErrInvalidAddress},
		{"zero recipient", schema.Identity{}, token, exception.ErrInvalidAddress},
		{"zero amount", bob, 0, exception.ErrInvalidAmount},
		{"unknown recipient", carol, token, exception.ErrUserNotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			f := newBank(t, alice, bob)
			ctx := context.Background()
			_, err := f.engine.Deposit(ctx, alice, 100*token)
			require.NoError(t, err)
			before := f.store.Snapshot()

			_, err = f.engine.TransferFunds(ctx, alice, tc.to, tc.amount)
			require.Truef(t, errors.Is(err, tc.err), "err = %v", err)
			after := f.store.Snapshot()
			assert.Equal(t, before.Users, after.Users)
			assert.Equal(t, before.Bank, after.Bank)
		})
	}
}

func TestTransferFromUnknownSender(t *testing.T) {
	f := newBank(t, bob)
	_, err := f.engine.TransferFunds(context.Background(), alice, bob, token)
	assert.Truef(t, errors.Is(err, exception.ErrUserNotFound), "err = %v", err)
}
