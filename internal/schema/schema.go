package schema

// SchemaVersion is the current notification schema version.
const SchemaVersion uint16 = 1

// EventType identifies the operation a notification describes.
type EventType uint16

const (
	EventUnknown EventType = iota
	EventBankInitialized
	EventUserCreated
	EventUserDeleted
	EventDeposit
	EventWithdraw
	EventBalanceChecked
	EventStake
	EventUnstake
	EventBorrow
	EventRepay
	EventTransfer
	EventBankStatusChanged
	EventBankFundsAdded
)

var eventTypeNames = [...]string{
	EventUnknown:           "Unknown",
	EventBankInitialized:   "BankInitialized",
	EventUserCreated:       "UserCreated",
	EventUserDeleted:       "UserDeleted",
	EventDeposit:           "Deposit",
	EventWithdraw:          "Withdraw",
	EventBalanceChecked:    "BalanceChecked",
	EventStake:             "Stake",
	EventUnstake:           "Unstake",
	EventBorrow:            "Borrow",
	EventRepay:             "Repay",
	EventTransfer:          "Transfer",
	EventBankStatusChanged: "BankStatusChanged",
	EventBankFundsAdded:    "BankFundsAdded",
}

// MaxEventType is the highest defined event type.
const MaxEventType = EventBankFundsAdded

func (t EventType) String() string {
	if int(t) < len(eventTypeNames) {
		return eventTypeNames[t]
	}
	return "Unknown"
}

// EventHeader is the common metadata attached to every journal record.
type EventHeader struct {
	Type    EventType
	Version uint16
	Source  uint16
	Flags   uint16
	Seq     uint64
	TsEvent int64
	TsRecv  int64
	TraceID uint64
}

// NewHeader builds a header with the current schema version.
func NewHeader(eventType EventType, source uint16, seq uint64, tsEvent, tsRecv int64) EventHeader {
	return EventHeader{
		Type:    eventType,
		Version: SchemaVersion,
		Source:  source,
		Seq:     seq,
		TsEvent: tsEvent,
		TsRecv:  tsRecv,
	}
}
