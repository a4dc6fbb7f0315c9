package store

import (
	"context"
	"slices"

	"ledger/internal/schema"
)

// Keys names every record one operation may read or write.
type Keys struct {
	Users []schema.Identity
	Bank  bool
}

// Sorted returns the distinct user keys in lock order.
func (k Keys) Sorted() []schema.Identity {
	out := slices.Clone(k.Users)
	slices.SortFunc(out, func(a, b schema.Identity) int { return a.Compare(b) })
	return slices.Compact(out)
}

// Tx is the view of the declared records inside one atomic unit. Values
// returned by Bank and User are copies; changes only take effect through
// PutBank, PutUser and DeleteUser and only when the unit commits.
type Tx interface {
	Bank() (schema.Bank, error)
	User(id schema.Identity) (schema.User, error)
	PutBank(bank schema.Bank) error
	PutUser(user schema.User) error
	DeleteUser(id schema.Identity) error
}

// Store is the keyed record store behind the ledger engine.
type Store interface {
	// Update runs fn with exclusive access to the records named by keys and
	// commits every staged write when fn returns nil. Any error commits nothing.
	Update(ctx context.Context, keys Keys, fn func(Tx) error) error
	// View runs fn against a consistent read of the named records. Writes are discarded.
	View(ctx context.Context, keys Keys, fn func(Tx) error) error
	Close() error
}
