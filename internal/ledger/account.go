package ledger

import (
	"context"

	"ledger/internal/calc"
	"ledger/internal/clock"
	"ledger/internal/schema"
	"ledger/internal/store"
	"ledger/pkg/exception"
)

func deposit(bank *schema.Bank, user *schema.User, caller schema.Identity, amount, maxDeposit uint64) error {
	if err := requireAmount(amount); err != nil {
		return err
	}
	if amount > maxDeposit {
		return exception.ErrAmountTooLarge
	}
	if err := authorize(user, caller); err != nil {
		return err
	}
	if err := requireOperational(bank); err != nil {
		return err
	}
	balance, err := calc.Add(user.Balance, amount)
	if err != nil {
		return err
	}
	user.Balance = balance
	return nil
}

func withdraw(bank *schema.Bank, user *schema.User, caller schema.Identity, amount uint64) error {
	if err := requireAmount(amount); err != nil {
		return err
	}
	if err := authorize(user, caller); err != nil {
		return err
	}
	if err := requireOperational(bank); err != nil {
		return err
	}
	if user.Balance < amount {
		return exception.ErrInsufficientBalance
	}
	balance, err := calc.Sub(user.Balance, amount)
	if err != nil {
		return err
	}
	user.Balance = balance
	return nil
}

// Deposit credits amount to the caller's spendable balance.
func (e *Engine) Deposit(ctx context.Context, caller schema.Identity, amount uint64) (schema.Notification, error) {
	return e.update(ctx, schema.EventDeposit, userKeys(true, caller), func(tx store.Tx, _ clock.Reading, n *schema.Notification) error {
		bank, user, err := loadPair(tx, caller)
		if err != nil {
			return err
		}
		if err := deposit(&bank, &user, caller, amount, e.cfg.MaxDeposit); err != nil {
			return err
		}
		if err := tx.PutUser(user); err != nil {
			return err
		}
		n.Amount = amount
		describeUser(n, &user)
		describeBank(n, &bank)
		return nil
	})
}

// Withdraw debits amount from the caller's spendable balance.
func (e *Engine) Withdraw(ctx context.Context, caller schema.Identity, amount uint64) (schema.Notification, error) {
	return e.update(ctx, schema.EventWithdraw, userKeys(true, caller), func(tx store.Tx, _ clock.Reading, n *schema.Notification) error {
		bank, user, err := loadPair(tx, caller)
		if err != nil {
			return err
		}
		if err := withdraw(&bank, &user, caller, amount); err != nil {
			return err
		}
		if err := tx.PutUser(user); err != nil {
			return err
		}
		n.Amount = amount
		describeUser(n, &user)
		describeBank(n, &bank)
		return nil
	})
}

// CheckBalance reports the caller's balances without changing anything.
func (e *Engine) CheckBalance(ctx context.Context, caller schema.Identity) (schema.Notification, error) {
	return e.view(ctx, schema.EventBalanceChecked, userKeys(true, caller), func(tx store.Tx, _ clock.Reading, n *schema.Notification) error {
		bank, user, err := loadPair(tx, caller)
		if err != nil {
			return err
		}
		if err := authorize(&user, caller); err != nil {
			return err
		}
		describeUser(n, &user)
		describeBank(n, &bank)
		return nil
	})
}
