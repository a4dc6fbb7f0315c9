package exception

import (
	"github.com/yanun0323/errors"
)

// Ledger operation errors. Every one of them aborts the operation before anything is committed.
var (
	ErrInvalidAddress             = errors.New("invalid address provided")
	ErrInvalidAmount              = errors.New("amount must be greater than zero")
	ErrInsufficientBalance        = errors.New("insufficient balance for this operation")
	ErrNotEligible                = errors.New("user not eligible for this operation")
	ErrBankInsufficientFunds      = errors.New("bank has insufficient funds")
	ErrStakingPeriodTooShort      = errors.New("staking period too short")
	ErrArithmeticOverflow         = errors.New("arithmetic overflow detected")
	ErrAmountTooLarge             = errors.New("amount exceeds maximum allowed")
	ErrUnauthorized               = errors.New("unauthorized access")
	ErrInvalidCollateralRatio     = errors.New("invalid collateral ratio")
	ErrBankAlreadyInitialized     = errors.New("bank already initialized")
	ErrActiveLoanExists           = errors.New("user already has active loan")
	ErrNoActiveLoan               = errors.New("no active loan found")
	ErrMinimumStakingPeriodNotMet = errors.New("minimum staking period not met")
)

// Record lifecycle errors.
var (
	ErrBankNotInitialized = errors.New("bank not initialized")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrUnknownOperation   = errors.New("unknown operation")
)

var codes = []struct {
	err  error
	code string
}{
	{ErrInvalidAddress, "InvalidAddress"},
	{ErrInvalidAmount, "InvalidAmount"},
	{ErrInsufficientBalance, "InsufficientBalance"},
	{ErrNotEligible, "NotEligible"},
	{ErrBankInsufficientFunds, "BankInsufficientFunds"},
	{ErrStakingPeriodTooShort, "StakingPeriodTooShort"},
	{ErrArithmeticOverflow, "ArithmeticOverflow"},
	{ErrAmountTooLarge, "AmountTooLarge"},
	{ErrUnauthorized, "Unauthorized"},
	{ErrInvalidCollateralRatio, "InvalidCollateralRatio"},
	{ErrBankAlreadyInitialized, "BankAlreadyInitialized"},
	{ErrActiveLoanExists, "ActiveLoanExists"},
	{ErrNoActiveLoan, "NoActiveLoan"},
	{ErrMinimumStakingPeriodNotMet, "MinimumStakingPeriodNotMet"},
	{ErrBankNotInitialized, "BankNotInitialized"},
	{ErrUserNotFound, "UserNotFound"},
	{ErrUserAlreadyExists, "UserAlreadyExists"},
	{ErrUnknownOperation, "UnknownOperation"},
}

// CodeInternal is reported for errors outside the ledger taxonomy.
const CodeInternal = "Internal"

// Code returns the stable code of a ledger error, CodeInternal for anything else
// and an empty string for nil.
func Code(err error) string {
	if err == nil {
		return ""
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return CodeInternal
}

// Codes lists every known ledger error code in declaration order.
func Codes() []string {
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		out = append(out, c.code)
	}
	return out
}
