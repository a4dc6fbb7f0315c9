package ledger

import (
	"context"

	"github.com/yanun0323/errors"

	"ledger/internal/calc"
	"ledger/internal/clock"
	"ledger/internal/schema"
	"ledger/internal/store"
	"ledger/pkg/exception"
)

// CreateUser opens an empty account for the caller.
func (e *Engine) CreateUser(ctx context.Context, caller schema.Identity) (schema.Notification, error) {
	return e.update(ctx, schema.EventUserCreated, userKeys(true, caller), func(tx store.Tx, _ clock.Reading, n *schema.Notification) error {
		if caller.IsZero() {
			return exception.ErrInvalidAddress
		}
		bank, err := tx.Bank()
		if err != nil {
			return err
		}
		_, err = tx.User(caller)
		if err == nil {
			return exception.ErrUserAlreadyExists
		}
		if !errors.Is(err, exception.ErrUserNotFound) {
			return err
		}

		users, err := calc.Add(bank.TotalUsers, 1)
		if err != nil {
			return err
		}
		bank.TotalUsers = users
		user := schema.NewUser(caller)
		if err := commitPair(tx, bank, user); err != nil {
			return err
		}
		describeUser(n, &user)
		describeBank(n, &bank)
		return nil
	})
}

// DeleteUser removes the caller's account. Every balance must be zero.
func (e *Engine) DeleteUser(ctx context.Context, caller schema.Identity) (schema.Notification, error) {
	return e.update(ctx, schema.EventUserDeleted, userKeys(true, caller), func(tx store.Tx, _ clock.Reading, n *schema.Notification) error {
		bank, user, err := loadPair(tx, caller)
		if err != nil {
			return err
		}
		if err := authorize(&user, caller); err != nil {
			return err
		}
		if !user.IsEmpty() {
			return exception.ErrInsufficientBalance
		}
		users, err := calc.Sub(bank.TotalUsers, 1)
		if err != nil {
			return err
		}
		bank.TotalUsers = users
		if err := tx.DeleteUser(caller); err != nil {
			return err
		}
		if err := tx.PutBank(bank); err != nil {
			return err
		}
		n.Actor = caller
		describeBank(n, &bank)
		return nil
	})
}
