package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/yanun0323/errors"

	"ledger/internal/calc"
	"ledger/internal/schema"
	"ledger/pkg/exception"
)

const (
	snapshotStorage = "memory_snapshot"
	snapshotVersion = 1
)

// SnapshotMeta describes where a snapshot came from.
type SnapshotMeta struct {
	Storage   string `json:"storage"`
	Version   int    `json:"version"`
	Timestamp int64  `json:"timestamp"`
}

// Snapshot is a point-in-time copy of every record.
type Snapshot struct {
	Meta  SnapshotMeta  `json:"_meta"`
	Bank  *schema.Bank  `json:"bank,omitempty"`
	Users []schema.User `json:"users"`
}

// Snapshot copies all records. Commits are applied under the same lock, so a
// snapshot never observes half of an operation.
func (m *Memory) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := Snapshot{
		Meta: SnapshotMeta{
			Storage:   snapshotStorage,
			Version:   snapshotVersion,
			Timestamp: time.Now().UTC().UnixNano(),
		},
		Users: make([]schema.User, 0, len(m.users)),
	}
	if m.bank != nil {
		cp := *m.bank
		snap.Bank = &cp
	}
	for _, u := range m.users {
		snap.Users = append(snap.Users, u.Clone())
	}
	slices.SortFunc(snap.Users, func(a, b schema.User) int { return a.Owner.Compare(b.Owner) })
	return snap
}

// Restore replaces all records with the snapshot after verifying it.
func (m *Memory) Restore(snap Snapshot) error {
	if err := Verify(snap); err != nil {
		return err
	}
	users := make(map[schema.Identity]schema.User, len(snap.Users))
	for _, u := range snap.Users {
		users[u.Owner] = u.Clone()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.bank = nil
	if snap.Bank != nil {
		cp := *snap.Bank
		m.bank = &cp
	}
	m.users = users
	return nil
}

// Verify recomputes the bank aggregates from the user records and reports any
// drift. It scans every record and is meant for restores and tests only.
func Verify(snap Snapshot) error {
	if snap.Bank == nil {
		if len(snap.Users) != 0 {
			return errors.Wrapf(exception.ErrInvalidSnapshot, "%d users without a bank", len(snap.Users))
		}
		return nil
	}

	var staked, lent uint64
	seen := make(map[schema.Identity]bool, len(snap.Users))
	for _, u := range snap.Users {
		if seen[u.Owner] {
			return errors.Wrapf(exception.ErrInvalidSnapshot, "duplicate user %s", u.Owner)
		}
		seen[u.Owner] = true
		if u.Loan != nil && u.Loan.Principal == 0 {
			return errors.Wrapf(exception.ErrInvalidSnapshot, "user %s has an empty loan", u.Owner)
		}
		if u.Loan != nil && u.Loan.Timestamp <= 0 {
			return errors.Wrapf(exception.ErrInvalidSnapshot, "user %s has an undated loan", u.Owner)
		}

		var err error
		if staked, err = calc.Add(staked, u.StakedBalance); err != nil {
			return err
		}
		if lent, err = calc.Add(lent, u.LentBalance()); err != nil {
			return err
		}
	}

	if staked != snap.Bank.StakedBalance {
		return errors.Wrapf(exception.ErrSnapshotDrift, "staked: bank=%d users=%d", snap.Bank.StakedBalance, staked)
	}
	if lent != snap.Bank.LentBalance {
		return errors.Wrapf(exception.ErrSnapshotDrift, "lent: bank=%d users=%d", snap.Bank.LentBalance, lent)
	}
	if uint64(len(snap.Users)) != snap.Bank.TotalUsers {
		return errors.Wrapf(exception.ErrSnapshotDrift, "users: bank=%d records=%d", snap.Bank.TotalUsers, len(snap.Users))
	}
	return nil
}

// WriteSnapshot writes a snapshot as JSON through a temporary file and a
// rename, so a crash never leaves a truncated snapshot behind.
func WriteSnapshot(path string, snap Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// ReadSnapshot loads a snapshot from disk.
func ReadSnapshot(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot %s: %w", path, err)
	}
	if snap.Meta.Version != snapshotVersion {
		return Snapshot{}, errors.Wrapf(exception.ErrInvalidSnapshot, "version %d", snap.Meta.Version)
	}
	return snap, nil
}
