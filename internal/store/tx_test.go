package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger/internal/schema"
)

func TestTxStateWrites(t *testing.T) {
	alice, bob, carol, dave := testID(1), testID(2), testID(3), testID(4)

	state := newTxState(Keys{Users: []schema.Identity{alice, bob, carol, dave}, Bank: true})
	state.loadUser(schema.User{Owner: alice, Balance: 1})
	state.loadUser(schema.User{Owner: bob, Balance: 2})

	require.NoError(t, state.PutUser(schema.User{Owner: alice, Balance: 5}))
	require.NoError(t, state.DeleteUser(bob))
	require.NoError(t, state.PutUser(schema.User{Owner: dave, Balance: 7}))
	require.NoError(t, state.PutUser(schema.User{Owner: carol}))
	require.NoError(t, state.DeleteUser(carol))
	require.NoError(t, state.PutBank(schema.Bank{Balance: 9}))

	c := state.writes()
	assert.Equal(t, []schema.User{{Owner: dave, Balance: 7}}, c.Inserts)
	assert.Equal(t, []schema.User{{Owner: alice, Balance: 5}}, c.Updates)
	assert.Equal(t, []schema.Identity{bob}, c.Deletes)
	require.NotNil(t, c.Bank)
	assert.True(t, c.NewBank)
}

func TestTxStateWritesExistingBank(t *testing.T) {
	state := newTxState(Keys{Bank: true})
	state.loadBank(&schema.Bank{Balance: 1})

	assert.Nil(t, state.writes().Bank)

	require.NoError(t, state.PutBank(schema.Bank{Balance: 2}))
	c := state.writes()
	require.NotNil(t, c.Bank)
	assert.Equal(t, uint64(2), c.Bank.Balance)
	assert.False(t, c.NewBank)
}
