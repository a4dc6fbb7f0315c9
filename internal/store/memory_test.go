package store

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yanun0323/errors"

	"ledger/internal/schema"
	"ledger/pkg/exception"
)

func testID(b byte) schema.Identity {
	var id schema.Identity
	id[0] = b
	id[31] = b
	return id
}

func seedMemory(t *testing.T, users ...schema.User) *Memory {
	t.Helper()
	m := NewMemory()
	keys := Keys{Bank: true}
	for _, u := range users {
		keys.Users = append(keys.Users, u.Owner)
	}
	err := m.Update(context.Background(), keys, func(tx Tx) error {
		if err := tx.PutBank(schema.Bank{Admin: testID(0xAA), Balance: 1000, TotalUsers: uint64(len(users)), IsOperational: true}); err != nil {
			return err
		}
		for _, u := range users {
			if err := tx.PutUser(u); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
	return m
}

func TestMemoryCommit(t *testing.T) {
	alice := testID(1)
	m := seedMemory(t, schema.User{Owner: alice, Balance: 10})

	err := m.Update(context.Background(), Keys{Users: []schema.Identity{alice}, Bank: true}, func(tx Tx) error {
		u, err := tx.User(alice)
		if err != nil {
			return err
		}
		u.Balance = 25
		u.Loan = &schema.Loan{Principal: 5, Timestamp: 100}
		if err := tx.PutUser(u); err != nil {
			return err
		}
		bank, err := tx.Bank()
		if err != nil {
			return err
		}
		bank.LentBalance = 5
		return tx.PutBank(bank)
	})
	require.NoError(t, err)

	snap := m.Snapshot()
	require.NotNil(t, snap.Bank)
	assert.Equal(t, uint64(5), snap.Bank.LentBalance)
	require.Len(t, snap.Users, 1)
	assert.Equal(t, uint64(25), snap.Users[0].Balance)
	assert.Equal(t, uint64(5), snap.Users[0].LentBalance())
	assert.NoError(t, Verify(snap))
}

func TestMemoryFailedUpdateCommitsNothing(t *testing.T) {
	alice, bob := testID(1), testID(2)
	m := seedMemory(t, schema.User{Owner: alice, Balance: 10}, schema.User{Owner: bob})
	before := m.Snapshot()

	err := m.Update(context.Background(), Keys{Users: []schema.Identity{alice, bob}, Bank: true}, func(tx Tx) error {
		a, _ := tx.User(alice)
		a.Balance = 0
		require.NoError(t, tx.PutUser(a))
		require.NoError(t, tx.PutBank(schema.Bank{}))
		return exception.ErrInsufficientBalance
	})
	require.Truef(t, errors.Is(err, exception.ErrInsufficientBalance), "err = %v", err)

	after := m.Snapshot()
	assert.Equal(t, before.Bank, after.Bank)
	assert.Equal(t, before.Users, after.Users)
}

func TestMemoryStagedReadsAreCopies(t *testing.T) {
	alice := testID(1)
	m := seedMemory(t, schema.User{Owner: alice, Loan: &schema.Loan{Principal: 3, Timestamp: 1}})

	err := m.View(context.Background(), Keys{Users: []schema.Identity{alice}}, func(tx Tx) error {
		u, err := tx.User(alice)
		if err != nil {
			return err
		}
		u.Loan.Principal = 99
		again, err := tx.User(alice)
		if err != nil {
			return err
		}
		assert.Equal(t, uint64(3), again.Loan.Principal)
		return nil
	})
	require.NoError(t, err)
}

func TestMemoryUndeclaredKeys(t *testing.T) {
	alice, bob := testID(1), testID(2)
	m := seedMemory(t, schema.User{Owner: alice}, schema.User{Owner: bob})

	err := m.Update(context.Background(), Keys{Users: []schema.Identity{alice}}, func(tx Tx) error {
		_, err := tx.User(bob)
		assert.Truef(t, errors.Is(err, exception.ErrKeyNotDeclared), "err = %v", err)
		_, err = tx.Bank()
		assert.Truef(t, errors.Is(err, exception.ErrKeyNotDeclared), "err = %v", err)
		assert.True(t, errors.Is(tx.PutUser(schema.User{Owner: bob}), exception.ErrKeyNotDeclared))
		assert.True(t, errors.Is(tx.PutBank(schema.Bank{}), exception.ErrKeyNotDeclared))
		assert.True(t, errors.Is(tx.DeleteUser(bob), exception.ErrKeyNotDeclared))
		return nil
	})
	require.NoError(t, err)
}

func TestMemoryMissingRecords(t *testing.T) {
	m := NewMemory()
	carol := testID(3)

	err := m.View(context.Background(), Keys{Users: []schema.Identity{carol}, Bank: true}, func(tx Tx) error {
		_, err := tx.Bank()
		assert.Truef(t, errors.Is(err, exception.ErrBankNotInitialized), "err = %v", err)
		_, err = tx.User(carol)
		assert.Truef(t, errors.Is(err, exception.ErrUserNotFound), "err = %v", err)
		assert.True(t, errors.Is(tx.DeleteUser(carol), exception.ErrUserNotFound))
		return nil
	})
	require.NoError(t, err)
}

func TestMemoryDeleteUser(t *testing.T) {
	alice := testID(1)
	m := seedMemory(t, schema.User{Owner: alice})

	err := m.Update(context.Background(), Keys{Users: []schema.Identity{alice}}, func(tx Tx) error {
		if err := tx.DeleteUser(alice); err != nil {
			return err
		}
		_, err := tx.User(alice)
		assert.Truef(t, errors.Is(err, exception.ErrUserNotFound), "err = %v", err)
		return nil
	})
	require.NoError(t, err)
	assert.Empty(t, m.Snapshot().Users)
}

func TestMemoryViewDiscardsWrites(t *testing.T) {
	alice := testID(1)
	m := seedMemory(t, schema.User{Owner: alice, Balance: 10})

	err := m.View(context.Background(), Keys{Users: []schema.Identity{alice}}, func(tx Tx) error {
		return tx.PutUser(schema.User{Owner: alice, Balance: 99})
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(10), m.Snapshot().Users[0].Balance)
}

func TestMemoryCanceledContext(t *testing.T) {
	alice := testID(1)
	m := seedMemory(t, schema.User{Owner: alice, Balance: 10})

	ctx, cancel := context.WithCancel(context.Background())
	err := m.Update(ctx, Keys{Users: []schema.Identity{alice}}, func(tx Tx) error {
		cancel()
		return tx.PutUser(schema.User{Owner: alice, Balance: 99})
	})
	require.Truef(t, errors.Is(err, context.Canceled), "err = %v", err)
	assert.Equal(t, uint64(10), m.Snapshot().Users[0].Balance)
}

func TestMemoryClosed(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.Close())
	err := m.Update(context.Background(), Keys{Bank: true}, func(Tx) error { return nil })
	assert.Truef(t, errors.Is(err, exception.ErrStoreClosed), "err = %v", err)
}

func TestMemoryConcurrentTransfers(t *testing.T) {
	ids := []schema.Identity{testID(1), testID(2), testID(3)}
	users := make([]schema.User, len(ids))
	for i, id := range ids {
		users[i] = schema.User{Owner: id, Balance: 1000}
	}
	m := seedMemory(t, users...)

	move := func(from, to schema.Identity) {
		// Opposite directions declare the same keys in a different order.
		_ = m.Update(context.Background(), Keys{Users: []schema.Identity{from, to}, Bank: true}, func(tx Tx) error {
			a, err := tx.User(from)
			if err != nil {
				return err
			}
			b, err := tx.User(to)
			if err != nil {
				return err
			}
			if a.Balance == 0 {
				return exception.ErrInsufficientBalance
			}
			a.Balance--
			b.Balance++
			if err := tx.PutUser(a); err != nil {
				return err
			}
			return tx.PutUser(b)
		})
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				from := ids[(i+j)%len(ids)]
				to := ids[(i+j+1)%len(ids)]
				if i%2 == 0 {
					from, to = to, from
				}
				move(from, to)
			}
		}(i)
	}
	wg.Wait()

	var total uint64
	for _, u := range m.Snapshot().Users {
		total += u.Balance
	}
	assert.Equal(t, uint64(3000), total)
}

func TestMemoryLockEntriesReleased(t *testing.T) {
	alice, bob := testID(1), testID(2)
	m := seedMemory(t, schema.User{Owner: alice, Balance: 100})
	assert.Zero(t, m.lockedKeys())

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			stranger := testID(byte(0x10 + i))
			_ = m.Update(context.Background(), Keys{Users: []schema.Identity{alice, stranger}, Bank: true}, func(tx Tx) error {
				_, err := tx.User(stranger)
				return err
			})
		}(i)
	}
	wg.Wait()
	assert.Zero(t, m.lockedKeys())

	err := m.Update(context.Background(), Keys{Users: []schema.Identity{bob}}, func(tx Tx) error {
		assert.Equal(t, 1, m.lockedKeys())
		return tx.PutUser(schema.User{Owner: bob})
	})
	require.NoError(t, err)
	require.NoError(t, m.Update(context.Background(), Keys{Users: []schema.Identity{bob}}, func(tx Tx) error {
		return tx.DeleteUser(bob)
	}))
	assert.Zero(t, m.lockedKeys())
	assert.Len(t, m.Snapshot().Users, 1)
}

func TestKeysSorted(t *testing.T) {
	keys := Keys{Users: []schema.Identity{testID(3), testID(1), testID(3), testID(2)}}
	assert.Equal(t, []schema.Identity{testID(1), testID(2), testID(3)}, keys.Sorted())
	assert.Len(t, keys.Users, 4)
}
