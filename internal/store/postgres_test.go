package store

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yanun0323/errors"

	"ledger/internal/schema"
	"ledger/pkg/conn"
	"ledger/pkg/exception"
)

func TestRowConversion(t *testing.T) {
	bank := schema.Bank{Admin: testID(9), Balance: ^uint64(0), StakedBalance: 2, LentBalance: 3, TotalUsers: 4, IsOperational: true}
	gotBank, err := toBankRow(bank).record()
	require.NoError(t, err)
	assert.Equal(t, bank, gotBank)

	for _, u := range []schema.User{
		{Owner: testID(1), Balance: 1, StakedBalance: 2, StakeSlot: 3},
		{Owner: testID(2), Balance: 5, Loan: &schema.Loan{Principal: 400, Timestamp: -7}},
	} {
		got, err := toUserRow(u).record()
		require.NoError(t, err)
		assert.Equal(t, u, got)
	}
}

func TestAmountScan(t *testing.T) {
	testCases := []struct {
		desc string
		src  any
		want amount
		ok   bool
	}{
		{"nil", nil, 0, true},
		{"int64", int64(42), 42, true},
		{"negative", int64(-1), 0, false},
		{"string max", "18446744073709551615", amount(^uint64(0)), true},
		{"bytes", []byte("7"), 7, true},
		{"garbage", "x", 0, false},
		{"float", 1.5, 0, false},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			var a amount
			err := a.Scan(tc.src)
			if !tc.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, a)
		})
	}

	v, err := amount(^uint64(0)).Value()
	require.NoError(t, err)
	assert.Equal(t, "18446744073709551615", v)
}

// TestPostgresUpdate runs against a live database named by LEDGER_PG_DSN.
func TestPostgresUpdate(t *testing.T) {
	dsn := os.Getenv("LEDGER_PG_DSN")
	if dsn == "" {
		t.Skip("LEDGER_PG_DSN not set")
	}

	client, err := conn.New(conn.Option{ConnString: dsn})
	require.NoError(t, err)
	defer client.Close()

	ctx := context.Background()
	require.NoError(t, client.DB().Exec("DROP TABLE IF EXISTS ledger_users, ledger_bank").Error)

	p, err := NewPostgres(ctx, client.DB())
	require.NoError(t, err)
	defer p.Close()

	alice := testID(1)
	require.NoError(t, p.Update(ctx, Keys{Users: []schema.Identity{alice}, Bank: true}, func(tx Tx) error {
		if err := tx.PutBank(schema.Bank{Admin: alice, Balance: 5000, TotalUsers: 1, IsOperational: true}); err != nil {
			return err
		}
		return tx.PutUser(schema.User{Owner: alice, Balance: 10, Loan: &schema.Loan{Principal: 4, Timestamp: 100}})
	}))

	err = p.Update(ctx, Keys{Users: []schema.Identity{alice}, Bank: true}, func(tx Tx) error {
		require.NoError(t, tx.PutUser(schema.User{Owner: alice}))
		return exception.ErrInsufficientBalance
	})
	require.Truef(t, errors.Is(err, exception.ErrInsufficientBalance), "err = %v", err)

	require.NoError(t, p.View(ctx, Keys{Users: []schema.Identity{alice}, Bank: true}, func(tx Tx) error {
		u, err := tx.User(alice)
		require.NoError(t, err)
		assert.Equal(t, uint64(10), u.Balance)
		assert.Equal(t, uint64(4), u.LentBalance())
		bank, err := tx.Bank()
		require.NoError(t, err)
		assert.Equal(t, uint64(5000), bank.Balance)
		return nil
	}))

	require.NoError(t, p.Update(ctx, Keys{Users: []schema.Identity{alice}}, func(tx Tx) error {
		return tx.DeleteUser(alice)
	}))
	require.NoError(t, p.View(ctx, Keys{Users: []schema.Identity{alice}}, func(tx Tx) error {
		_, err := tx.User(alice)
		assert.Truef(t, errors.Is(err, exception.ErrUserNotFound), "err = %v", err)
		return nil
	}))
}

// TestPostgresInsertConflict runs against a live database named by LEDGER_PG_DSN.
// Two units both see an identity as absent; the one that commits second must
// not overwrite the first.
func TestPostgresInsertConflict(t *testing.T) {
	dsn := os.Getenv("LEDGER_PG_DSN")
	if dsn == "" {
		t.Skip("LEDGER_PG_DSN not set")
	}

	client, err := conn.New(conn.Option{ConnString: dsn})
	require.NoError(t, err)
	defer client.Close()

	ctx := context.Background()
	require.NoError(t, client.DB().Exec("DROP TABLE IF EXISTS ledger_users, ledger_bank").Error)

	p, err := NewPostgres(ctx, client.DB())
	require.NoError(t, err)
	defer p.Close()

	carol := testID(3)
	keys := Keys{Users: []schema.Identity{carol}}
	create := func(balance uint64) func(Tx) error {
		return func(tx Tx) error {
			if _, err := tx.User(carol); !errors.Is(err, exception.ErrUserNotFound) {
				return exception.ErrUserAlreadyExists
			}
			return tx.PutUser(schema.User{Owner: carol, Balance: balance})
		}
	}

	staged := make(chan struct{})
	release := make(chan struct{})
	first := make(chan error, 1)
	go func() {
		first <- p.Update(ctx, keys, func(tx Tx) error {
			err := create(1)(tx)
			close(staged)
			<-release
			return err
		})
	}()

	<-staged
	require.NoError(t, p.Update(ctx, keys, create(2)))
	close(release)

	err = <-first
	assert.Truef(t, errors.Is(err, exception.ErrUserAlreadyExists), "err = %v", err)

	require.NoError(t, p.View(ctx, keys, func(tx Tx) error {
		u, err := tx.User(carol)
		require.NoError(t, err)
		assert.Equal(t, uint64(2), u.Balance)
		return nil
	}))

	bankKeys := Keys{Bank: true}
	bankStaged := make(chan struct{})
	bankRelease := make(chan struct{})
	bankFirst := make(chan error, 1)
	go func() {
		bankFirst <- p.Update(ctx, bankKeys, func(tx Tx) error {
			err := tx.PutBank(schema.Bank{Balance: 1, IsOperational: true})
			close(bankStaged)
			<-bankRelease
			return err
		})
	}()

	<-bankStaged
	require.NoError(t, p.Update(ctx, bankKeys, func(tx Tx) error {
		return tx.PutBank(schema.Bank{Balance: 2, IsOperational: true})
	}))
	close(bankRelease)

	err = <-bankFirst
	assert.Truef(t, errors.Is(err, exception.ErrBankAlreadyInitialized), "err = %v", err)
}
