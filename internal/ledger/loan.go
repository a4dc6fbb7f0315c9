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

// borrow opens a loan of amount at unix time now. It returns the balance that
// collateralized it.
func borrow(bank *schema.Bank, user *schema.User, caller schema.Identity, amount uint64, now int64) (uint64, error) {
	if err := requireAmount(amount); err != nil {
		return 0, err
	}
	if err := authorize(user, caller); err != nil {
		return 0, err
	}
	if err := requireOperational(bank); err != nil {
		return 0, err
	}
	if user.HasLoan() {
		return 0, exception.ErrActiveLoanExists
	}
	if bank.Balance < amount {
		return 0, exception.ErrBankInsufficientFunds
	}
	limit, err := calc.MaxBorrow(user.Balance)
	if err != nil {
		return 0, err
	}
	if amount > limit {
		return 0, exception.ErrInvalidCollateralRatio
	}
	if now <= 0 {
		return 0, errors.Wrapf(clock.ErrBeforeEpoch, "loan start %d", now)
	}

	collateral := user.Balance
	balance, err := calc.Add(user.Balance, amount)
	if err != nil {
		return 0, err
	}
	reserve, err := calc.Sub(bank.Balance, amount)
	if err != nil {
		return 0, err
	}
	lent, err := calc.Add(bank.LentBalance, amount)
	if err != nil {
		return 0, err
	}
	user.Balance = balance
	user.Loan = &schema.Loan{Principal: amount, Timestamp: now}
	bank.Balance = reserve
	bank.LentBalance = lent
	return collateral, nil
}

// repayment is the settled amount of a closed loan.
type repayment struct {
	principal uint64
	interest  uint64
	total     uint64
}

// repay closes the user's loan at unix time now, charging principal plus interest.
func repay(bank *schema.Bank, user *schema.User, caller schema.Identity, now int64) (repayment, error) {
	if err := authorize(user, caller); err != nil {
		return repayment{}, err
	}
	if !user.HasLoan() {
		return repayment{}, exception.ErrNoActiveLoan
	}

	principal := user.Loan.Principal
	elapsed, err := calc.SubSigned(now, user.Loan.Timestamp)
	if err != nil {
		return repayment{}, err
	}
	interest, err := calc.Interest(principal, elapsed)
	if err != nil {
		return repayment{}, err
	}
	total, err := calc.Add(principal, interest)
	if err != nil {
		return repayment{}, err
	}
	if user.Balance < total {
		return repayment{}, exception.ErrInsufficientBalance
	}

	balance, err := calc.Sub(user.Balance, total)
	if err != nil {
		return repayment{}, err
	}
	reserve, err := calc.Add(bank.Balance, total)
	if err != nil {
		return repayment{}, err
	}
	lent, err := calc.Sub(bank.LentBalance, principal)
	if err != nil {
		return repayment{}, err
	}
	user.Balance = balance
	user.Loan = nil
	bank.Balance = reserve
	bank.LentBalance = lent
	return repayment{principal: principal, interest: interest, total: total}, nil
}

// Borrow lends amount from the reserve against the caller's balance.
func (e *Engine) Borrow(ctx context.Context, caller schema.Identity, amount uint64) (schema.Notification, error) {
	return e.update(ctx, schema.EventBorrow, userKeys(true, caller), func(tx store.Tx, now clock.Reading, n *schema.Notification) error {
		bank, user, err := loadPair(tx, caller)
		if err != nil {
			return err
		}
		collateral, err := borrow(&bank, &user, caller, amount, now.Unix)
		if err != nil {
			return err
		}
		if err := commitPair(tx, bank, user); err != nil {
			return err
		}
		n.Amount = amount
		n.Collateral = collateral
		describeUser(n, &user)
		describeBank(n, &bank)
		return nil
	})
}

// RepayLoan settles the caller's outstanding loan with interest.
func (e *Engine) RepayLoan(ctx context.Context, caller schema.Identity) (schema.Notification, error) {
	return e.update(ctx, schema.EventRepay, userKeys(true, caller), func(tx store.Tx, now clock.Reading, n *schema.Notification) error {
		bank, user, err := loadPair(tx, caller)
		if err != nil {
			return err
		}
		r, err := repay(&bank, &user, caller, now.Unix)
		if err != nil {
			return err
		}
		if err := commitPair(tx, bank, user); err != nil {
			return err
		}
		n.Amount = r.principal
		n.Interest = r.interest
		n.Total = r.total
		describeUser(n, &user)
		describeBank(n, &bank)
		return nil
	})
}
