package calc

const (
	// APYBasisPoints is the staking yield, 500 = 5%.
	APYBasisPoints uint64 = 500
	// BasisPointsDivisor scales basis points to a fraction.
	BasisPointsDivisor uint64 = 10_000
	// TicksPerYear is the number of logical ticks in one year.
	TicksPerYear uint64 = 432_000 * 365
)

// Reward returns the staking reward for amount held over elapsed ticks:
// amount * APY * elapsed / (divisor * ticksPerYear), truncated in the bank's favour.
func Reward(amount, elapsedTicks uint64) (uint64, error) {
	return MulDiv(amount, APYBasisPoints, elapsedTicks, BasisPointsDivisor*TicksPerYear)
}

// RewardSince returns the reward for amount staked at checkpoint and settled at
// tick now. A tick earlier than the checkpoint is an arithmetic overflow.
func RewardSince(amount, checkpoint, now uint64) (uint64, error) {
	elapsed, err := Sub(now, checkpoint)
	if err != nil {
		return 0, err
	}
	return Reward(amount, elapsed)
}
