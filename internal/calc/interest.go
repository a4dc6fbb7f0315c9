package calc

const (
	// LoanRatePercent is the simple yearly loan interest, in percent.
	LoanRatePercent uint64 = 13
	// PercentDivisor scales a percentage to a fraction.
	PercentDivisor uint64 = 100
	// SecondsPerYear is a 365-day year.
	SecondsPerYear uint64 = 365 * 24 * 60 * 60
	// CollateralRatio is the share of the spendable balance that may be borrowed, in percent.
	CollateralRatio uint64 = 80
)

// Interest returns simple interest on principal over elapsed seconds.
// Non-positive elapsed time yields zero, guarding against clock skew.
func Interest(principal uint64, elapsedSeconds int64) (uint64, error) {
	if elapsedSeconds <= 0 {
		return 0, nil
	}
	return MulDiv(principal, LoanRatePercent, uint64(elapsedSeconds), PercentDivisor*SecondsPerYear)
}

// MaxBorrow returns the largest principal balance can collateralize.
func MaxBorrow(balance uint64) (uint64, error) {
	v, err := Mul(balance, CollateralRatio)
	if err != nil {
		return 0, err
	}
	return Div(v, PercentDivisor)
}
