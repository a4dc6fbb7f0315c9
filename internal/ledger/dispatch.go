package ledger

import (
	"context"

	"github.com/yanun0323/errors"

	"ledger/internal/schema"
	"ledger/pkg/exception"
)

// Operation names accepted by Execute.
const (
	OpInitializeBank   = "initialize_bank"
	OpCreateUser       = "create_user"
	OpDeleteUser       = "delete_user"
	OpDeposit          = "deposit"
	OpWithdraw         = "withdraw"
	OpCheckBalance     = "check_balance"
	OpStake            = "stake"
	OpUnstake          = "unstake"
	OpBorrow           = "borrow"
	OpRepayLoan        = "repay_loan"
	OpTransferFunds    = "transfer_funds"
	OpToggleBankStatus = "toggle_bank_status"
	OpAddBankFunds     = "add_bank_funds"
)

// Operations lists every operation name in a stable order.
func Operations() []string {
	return []string{
		OpInitializeBank, OpCreateUser, OpDeleteUser,
		OpDeposit, OpWithdraw, OpCheckBalance,
		OpStake, OpUnstake, OpBorrow, OpRepayLoan,
		OpTransferFunds, OpToggleBankStatus, OpAddBankFunds,
	}
}

// Request is one operation invocation by an authenticated caller. To is only
// read by transfer_funds and Amount only by operations that take an amount.
type Request struct {
	Op     string          `json:"op"`
	Caller schema.Identity `json:"caller"`
	To     schema.Identity `json:"to,omitzero"`
	Amount uint64          `json:"amount,omitempty"`
}

// Execute runs the operation named by req.Op.
func (e *Engine) Execute(ctx context.Context, req Request) (schema.Notification, error) {
	switch req.Op {
	case OpInitializeBank:
		return e.InitializeBank(ctx, req.Caller)
	case OpCreateUser:
		return e.CreateUser(ctx, req.Caller)
	case OpDeleteUser:
		return e.DeleteUser(ctx, req.Caller)
	case OpDeposit:
		return e.Deposit(ctx, req.Caller, req.Amount)
	case OpWithdraw:
		return e.Withdraw(ctx, req.Caller, req.Amount)
	case OpCheckBalance:
		return e.CheckBalance(ctx, req.Caller)
	case OpStake:
		return e.Stake(ctx, req.Caller, req.Amount)
	case OpUnstake:
		return e.Unstake(ctx, req.Caller, req.Amount)
	case OpBorrow:
		return e.Borrow(ctx, req.Caller, req.Amount)
	case OpRepayLoan:
		return e.RepayLoan(ctx, req.Caller)
	case OpTransferFunds:
		return e.TransferFunds(ctx, req.Caller, req.To, req.Amount)
	case OpToggleBankStatus:
		return e.ToggleBankStatus(ctx, req.Caller)
	case OpAddBankFunds:
		return e.AddBankFunds(ctx, req.Caller, req.Amount)
	default:
		return schema.Notification{}, errors.Wrapf(exception.ErrUnknownOperation, "op %q", req.Op)
	}
}
