package notify

import (
	"context"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"ledger/internal/calc"
	"ledger/internal/schema"
)

// Sink receives one notification per completed operation. Notify is called
// after the records are committed; an error cannot undo the commit.
type Sink interface {
	Notify(ctx context.Context, n schema.Notification) error
}

// Func adapts a plain function to Sink.
type Func func(ctx context.Context, n schema.Notification) error

func (f Func) Notify(ctx context.Context, n schema.Notification) error {
	return f(ctx, n)
}

// Discard drops every notification.
var Discard Sink = Func(func(context.Context, schema.Notification) error { return nil })

// Multi delivers to every sink in order and joins their errors. A failing sink
// does not stop delivery to the ones after it.
type Multi []Sink

func (m Multi) Notify(ctx context.Context, n schema.Notification) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Log writes each notification as one structured log line.
type Log struct{}

func (Log) Notify(_ context.Context, n schema.Notification) error {
	switch n.Type {
	case schema.EventTransfer:
		logs.Infof("[%s] seq=%d slot=%d from=%s to=%s amount=%s balance=%s",
			n.Type, n.Seq, n.Slot, n.Actor, n.Counterparty, calc.FormatUnits(n.Amount), calc.FormatUnits(n.Balance))
	case schema.EventStake, schema.EventUnstake:
		logs.Infof("[%s] seq=%d slot=%d user=%s amount=%s reward=%s staked=%s",
			n.Type, n.Seq, n.Slot, n.Actor, calc.FormatUnits(n.Amount), calc.FormatUnits(n.Reward), calc.FormatUnits(n.StakedBalance))
	case schema.EventBorrow:
		logs.Infof("[%s] seq=%d ts=%d user=%s amount=%s collateral=%s",
			n.Type, n.Seq, n.Timestamp, n.Actor, calc.FormatUnits(n.Amount), calc.FormatUnits(n.Collateral))
	case schema.EventRepay:
		logs.Infof("[%s] seq=%d ts=%d user=%s principal=%s interest=%s total=%s",
			n.Type, n.Seq, n.Timestamp, n.Actor, calc.FormatUnits(n.Amount), calc.FormatUnits(n.Interest), calc.FormatUnits(n.Total))
	case schema.EventBalanceChecked:
		logs.Infof("[%s] seq=%d user=%s balance=%s staked=%s lent=%s",
			n.Type, n.Seq, n.Actor, calc.FormatUnits(n.Balance), calc.FormatUnits(n.StakedBalance), calc.FormatUnits(n.LentBalance))
	case schema.EventBankStatusChanged:
		logs.Infof("[%s] seq=%d admin=%s operational=%t", n.Type, n.Seq, n.Actor, n.IsOperational)
	case schema.EventBankInitialized, schema.EventBankFundsAdded:
		logs.Infof("[%s] seq=%d admin=%s amount=%s bank=%s",
			n.Type, n.Seq, n.Actor, calc.FormatUnits(n.Amount), calc.FormatUnits(n.BankBalance))
	case schema.EventUserCreated, schema.EventUserDeleted:
		logs.Infof("[%s] seq=%d user=%s users=%d", n.Type, n.Seq, n.Actor, n.TotalUsers)
	default:
		logs.Infof("[%s] seq=%d user=%s amount=%s balance=%s",
			n.Type, n.Seq, n.Actor, calc.FormatUnits(n.Amount), calc.FormatUnits(n.Balance))
	}
	return nil
}
