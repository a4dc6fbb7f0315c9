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

func requireAdmin(bank *schema.Bank, caller schema.Identity) error {
	if bank.Admin != caller {
		return exception.ErrUnauthorized
	}
	return nil
}

func toggleBankStatus(bank *schema.Bank, caller schema.Identity) error {
	if err := requireAdmin(bank, caller); err != nil {
		return err
	}
	bank.IsOperational = !bank.IsOperational
	return nil
}

func addBankFunds(bank *schema.Bank, caller schema.Identity, amount uint64) error {
	if err := requireAdmin(bank, caller); err != nil {
		return err
	}
	if err := requireAmount(amount); err != nil {
		return err
	}
	reserve, err := calc.Add(bank.Balance, amount)
	if err != nil {
		return err
	}
	bank.Balance = reserve
	return nil
}

// InitializeBank creates the bank record with the caller as admin.
func (e *Engine) InitializeBank(ctx context.Context, caller schema.Identity) (schema.Notification, error) {
	return e.update(ctx, schema.EventBankInitialized, store.Keys{Bank: true}, func(tx store.Tx, _ clock.Reading, n *schema.Notification) error {
		_, err := tx.Bank()
		if err == nil {
			return exception.ErrBankAlreadyInitialized
		}
		if !errors.Is(err, exception.ErrBankNotInitialized) {
			return err
		}
		bank := schema.Bank{
			Admin:         caller,
			Balance:       e.cfg.InitialReserve,
			IsOperational: true,
		}
		if err := tx.PutBank(bank); err != nil {
			return err
		}
		n.Actor = caller
		n.Amount = bank.Balance
		describeBank(n, &bank)
		return nil
	})
}

// ToggleBankStatus flips the operational flag. Admin only.
func (e *Engine) ToggleBankStatus(ctx context.Context, caller schema.Identity) (schema.Notification, error) {
	return e.update(ctx, schema.EventBankStatusChanged, store.Keys{Bank: true}, func(tx store.Tx, _ clock.Reading, n *schema.Notification) error {
		bank, err := tx.Bank()
		if err != nil {
			return err
		}
		if err := toggleBankStatus(&bank, caller); err != nil {
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

// AddBankFunds grows the reserve by amount. Admin only.
func (e *Engine) AddBankFunds(ctx context.Context, caller schema.Identity, amount uint64) (schema.Notification, error) {
	return e.update(ctx, schema.EventBankFundsAdded, store.Keys{Bank: true}, func(tx store.Tx, _ clock.Reading, n *schema.Notification) error {
		bank, err := tx.Bank()
		if err != nil {
			return err
		}
		if err := addBankFunds(&bank, caller, amount); err != nil {
			return err
		}
		if err := tx.PutBank(bank); err != nil {
			return err
		}
		n.Actor = caller
		n.Amount = amount
		describeBank(n, &bank)
		return nil
	})
}
