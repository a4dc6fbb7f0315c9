package store

import (
	"context"
	"sync"
	"sync/atomic"

	"ledger/internal/schema"
	"ledger/pkg/exception"
)

// Memory keeps records in process memory.
//
// Each record has its own lock. An operation takes the locks of its user keys
// in lexicographic order and the bank lock last, so two operations sharing
// records always queue in the same order. mu only guards the maps themselves
// and is held for the short load and commit steps.
type Memory struct {
	mu    sync.RWMutex
	bank  *schema.Bank
	users map[schema.Identity]schema.User

	lockMu    sync.Mutex
	userLocks map[schema.Identity]*keyLock
	bankLock  sync.Mutex

	closed uint32
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		users:     make(map[schema.Identity]schema.User),
		userLocks: make(map[schema.Identity]*keyLock),
	}
}

// Update implements Store.
func (m *Memory) Update(ctx context.Context, keys Keys, fn func(Tx) error) error {
	return m.run(ctx, keys, fn, true)
}

// View implements Store.
func (m *Memory) View(ctx context.Context, keys Keys, fn func(Tx) error) error {
	return m.run(ctx, keys, fn, false)
}

// Close rejects further operations.
func (m *Memory) Close() error {
	atomic.StoreUint32(&m.closed, 1)
	return nil
}

func (m *Memory) run(ctx context.Context, keys Keys, fn func(Tx) error, commit bool) error {
	if atomic.LoadUint32(&m.closed) != 0 {
		return exception.ErrStoreClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	unlock := m.lock(keys)
	defer unlock()

	tx := newTxState(keys)
	m.mu.RLock()
	if keys.Bank {
		tx.loadBank(m.bank)
	}
	for _, id := range keys.Users {
		if u, ok := m.users[id]; ok {
			tx.loadUser(u)
		}
	}
	m.mu.RUnlock()

	if err := fn(tx); err != nil {
		return err
	}
	if !commit {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	c := tx.writes()
	m.mu.Lock()
	if c.Bank != nil {
		cp := *c.Bank
		m.bank = &cp
	}
	for _, u := range c.Inserts {
		m.users[u.Owner] = u
	}
	for _, u := range c.Updates {
		m.users[u.Owner] = u
	}
	for _, id := range c.Deletes {
		delete(m.users, id)
	}
	m.mu.Unlock()
	return nil
}

// keyLock is the lock of one identity. refs counts the units holding or
// waiting for it; the entry is dropped when the last one lets go, so absent
// and deleted identities leave nothing behind.
type keyLock struct {
	mu   sync.Mutex
	refs int
}

func (m *Memory) lock(keys Keys) func() {
	ordered := keys.Sorted()
	held := make([]*keyLock, 0, len(ordered))

	m.lockMu.Lock()
	for _, id := range ordered {
		l, ok := m.userLocks[id]
		if !ok {
			l = &keyLock{}
			m.userLocks[id] = l
		}
		l.refs++
		held = append(held, l)
	}
	m.lockMu.Unlock()

	for _, l := range held {
		l.mu.Lock()
	}
	if keys.Bank {
		m.bankLock.Lock()
	}

	return func() {
		if keys.Bank {
			m.bankLock.Unlock()
		}
		for i := len(held) - 1; i >= 0; i-- {
			held[i].mu.Unlock()
		}
		m.lockMu.Lock()
		for i, id := range ordered {
			if held[i].refs--; held[i].refs == 0 {
				delete(m.userLocks, id)
			}
		}
		m.lockMu.Unlock()
	}
}

// lockedKeys reports how many identities currently have a lock entry.
func (m *Memory) lockedKeys() int {
	m.lockMu.Lock()
	defer m.lockMu.Unlock()
	return len(m.userLocks)
}
