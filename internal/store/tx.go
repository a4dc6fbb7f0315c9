package store

import (
	"slices"

	"ledger/internal/schema"
	"ledger/pkg/exception"
)

// txState stages reads and writes for one unit. Backends load the declared
// records into it, run the caller, then persist whatever it reports as changed.
type txState struct {
	declaredBank  bool
	declaredUsers map[schema.Identity]bool

	bank       *schema.Bank
	bankDirty  bool
	bankLoaded bool

	users   map[schema.Identity]*schema.User
	loaded  map[schema.Identity]bool
	dirty   map[schema.Identity]bool
	deleted map[schema.Identity]bool
}

// changes is what one unit writes back. Inserts and NewBank name records that
// did not exist when the unit loaded; a backend that cannot hold a lock on an
// absent record must reject them if they appeared meanwhile.
type changes struct {
	Bank    *schema.Bank
	NewBank bool
	Inserts []schema.User
	Updates []schema.User
	Deletes []schema.Identity
}

func newTxState(keys Keys) *txState {
	s := &txState{
		declaredBank:  keys.Bank,
		declaredUsers: make(map[schema.Identity]bool, len(keys.Users)),
		users:         make(map[schema.Identity]*schema.User, len(keys.Users)),
		loaded:        make(map[schema.Identity]bool, len(keys.Users)),
		dirty:         make(map[schema.Identity]bool),
		deleted:       make(map[schema.Identity]bool),
	}
	for _, id := range keys.Users {
		s.declaredUsers[id] = true
	}
	return s
}

func (s *txState) loadBank(bank *schema.Bank) {
	if bank != nil {
		cp := *bank
		s.bank = &cp
		s.bankLoaded = true
	}
}

func (s *txState) loadUser(user schema.User) {
	cp := user.Clone()
	s.users[user.Owner] = &cp
	s.loaded[user.Owner] = true
}

func (s *txState) Bank() (schema.Bank, error) {
	if !s.declaredBank {
		return schema.Bank{}, exception.ErrKeyNotDeclared
	}
	if s.bank == nil {
		return schema.Bank{}, exception.ErrBankNotInitialized
	}
	return *s.bank, nil
}

func (s *txState) User(id schema.Identity) (schema.User, error) {
	if !s.declaredUsers[id] {
		return schema.User{}, exception.ErrKeyNotDeclared
	}
	u, ok := s.users[id]
	if !ok || s.deleted[id] {
		return schema.User{}, exception.ErrUserNotFound
	}
	return u.Clone(), nil
}

func (s *txState) PutBank(bank schema.Bank) error {
	if !s.declaredBank {
		return exception.ErrKeyNotDeclared
	}
	s.bank = &bank
	s.bankDirty = true
	return nil
}

func (s *txState) PutUser(user schema.User) error {
	if !s.declaredUsers[user.Owner] {
		return exception.ErrKeyNotDeclared
	}
	cp := user.Clone()
	s.users[user.Owner] = &cp
	s.dirty[user.Owner] = true
	delete(s.deleted, user.Owner)
	return nil
}

func (s *txState) DeleteUser(id schema.Identity) error {
	if !s.declaredUsers[id] {
		return exception.ErrKeyNotDeclared
	}
	if _, ok := s.users[id]; !ok {
		return exception.ErrUserNotFound
	}
	delete(s.users, id)
	delete(s.dirty, id)
	s.deleted[id] = true
	return nil
}

// writes returns the staged changes.
func (s *txState) writes() changes {
	var c changes
	if s.bankDirty {
		c.Bank = s.bank
		c.NewBank = !s.bankLoaded
	}
	for id := range s.dirty {
		if s.loaded[id] {
			c.Updates = append(c.Updates, s.users[id].Clone())
		} else {
			c.Inserts = append(c.Inserts, s.users[id].Clone())
		}
	}
	for id := range s.deleted {
		if s.loaded[id] {
			c.Deletes = append(c.Deletes, id)
		}
	}
	byOwner := func(a, b schema.User) int { return a.Owner.Compare(b.Owner) }
	slices.SortFunc(c.Inserts, byOwner)
	slices.SortFunc(c.Updates, byOwner)
	slices.SortFunc(c.Deletes, schema.Identity.Compare)
	return c
}
