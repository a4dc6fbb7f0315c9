package ledger

import (
	"context"

	"ledger/internal/calc"
	"ledger/internal/clock"
	"ledger/internal/schema"
	"ledger/internal/store"
	"ledger/pkg/exception"
)

func transfer(from, to *schema.User, caller schema.Identity, amount uint64) error {
	if from.Owner == to.Owner {
		return exception.ErrInvalidAddress
	}
	if err := requireAmount(amount); err != nil {
		return err
	}
	if err := authorize(from, caller); err != nil {
		return err
	}
	if from.Balance < amount {
		return exception.ErrInsufficientBalance
	}
	sent, err := calc.Sub(from.Balance, amount)
	if err != nil {
		return err
	}
	received, err := calc.Add(to.Balance, amount)
	if err != nil {
		return err
	}
	from.Balance = sent
	to.Balance = received
	return nil
}

// TransferFunds moves amount from the caller's balance to another user. The
// bank is only read to confirm the ledger exists; its operational flag does
// not apply.
func (e *Engine) TransferFunds(ctx context.Context, caller, to schema.Identity, amount uint64) (schema.Notification, error) {
	return e.update(ctx, schema.EventTransfer, userKeys(true, caller, to), func(tx store.Tx, _ clock.Reading, n *schema.Notification) error {
		if caller == to || to.IsZero() {
			return exception.ErrInvalidAddress
		}
		bank, from, err := loadPair(tx, caller)
		if err != nil {
			return err
		}
		recipient, err := tx.User(to)
		if err != nil {
			return err
		}
		if err := transfer(&from, &recipient, caller, amount); err != nil {
			return err
		}
		if err := tx.PutUser(from); err != nil {
			return err
		}
		if err := tx.PutUser(recipient); err != nil {
			return err
		}
		n.Amount = amount
		n.Counterparty = to
		describeUser(n, &from)
		describeBank(n, &bank)
		return nil
	})
}
