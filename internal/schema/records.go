package schema

// Bank is the singleton reserve record.
type Bank struct {
	Admin         Identity `json:"admin"`
	Balance       uint64   `json:"balance"`
	StakedBalance uint64   `json:"stakedBalance"`
	LentBalance   uint64   `json:"lentBalance"`
	TotalUsers    uint64   `json:"totalUsers"`
	IsOperational bool     `json:"isOperational"`
}

// Loan is the single outstanding loan of a user.
type Loan struct {
	Principal uint64 `json:"principal"`
	Timestamp int64  `json:"timestamp"`
}

// User is a per-identity account record.
//
// A nil Loan means no loan is outstanding. Loans are only opened at a positive
// unix time, so a zero lent balance and a zero loan timestamp always go together.
type User struct {
	Owner         Identity `json:"owner"`
	Balance       uint64   `json:"balance"`
	StakedBalance uint64   `json:"stakedBalance"`
	StakeSlot     uint64   `json:"stakeSlot"`
	Loan          *Loan    `json:"loan,omitempty"`
}

// NewUser returns an empty account owned by owner.
func NewUser(owner Identity) User {
	return User{Owner: owner}
}

// LentBalance returns the outstanding principal, 0 when there is no loan.
func (u User) LentBalance() uint64 {
	if u.Loan == nil {
		return 0
	}
	return u.Loan.Principal
}

// LoanTimestamp returns the loan start in unix seconds, 0 when there is no loan.
func (u User) LoanTimestamp() int64 {
	if u.Loan == nil {
		return 0
	}
	return u.Loan.Timestamp
}

// HasLoan reports whether a loan is outstanding.
func (u User) HasLoan() bool {
	return u.Loan != nil
}

// IsEmpty reports whether the account holds no funds in any bucket.
func (u User) IsEmpty() bool {
	return u.Balance == 0 && u.StakedBalance == 0 && u.LentBalance() == 0
}

// Clone returns a deep copy, so mutations never reach the stored record.
func (u User) Clone() User {
	if u.Loan != nil {
		loan := *u.Loan
		u.Loan = &loan
	}
	return u
}
