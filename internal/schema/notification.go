package schema

// Notification describes one completed operation. It is built by the engine
// after a successful commit and is never read back.
//
// Field meaning per type:
//   - Deposit/Withdraw: Amount, Balance (new user balance).
//   - BalanceChecked: Balance, StakedBalance, LentBalance.
//   - Stake: Amount, Reward (settled on the existing stake), StakedBalance (total staked).
//   - Unstake: Amount, Reward, StakedBalance (remaining staked).
//   - Borrow: Amount, Collateral (balance before the loan proceeds).
//   - Repay: Amount (principal), Interest, Total.
//   - Transfer: Actor (from), Counterparty (to), Amount, Balance (sender balance).
//   - BankStatusChanged: IsOperational.
//   - BankFundsAdded: Amount, BankBalance.
type Notification struct {
	Type          EventType `json:"type"`
	Seq           uint64    `json:"seq"`
	Slot          uint64    `json:"slot"`
	Timestamp     int64     `json:"timestamp"`
	Actor         Identity  `json:"actor"`
	Counterparty  Identity  `json:"counterparty"`
	Amount        uint64    `json:"amount"`
	Reward        uint64    `json:"reward"`
	Interest      uint64    `json:"interest"`
	Total         uint64    `json:"total"`
	Collateral    uint64    `json:"collateral"`
	Balance       uint64    `json:"balance"`
	StakedBalance uint64    `json:"stakedBalance"`
	LentBalance   uint64    `json:"lentBalance"`
	BankBalance   uint64    `json:"bankBalance"`
	TotalUsers    uint64    `json:"totalUsers"`
	IsOperational bool      `json:"isOperational"`
}
