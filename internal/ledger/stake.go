package ledger

import (
	"context"

	"ledger/internal/calc"
	"ledger/internal/clock"
	"ledger/internal/schema"
	"ledger/internal/store"
	"ledger/pkg/exception"
)

// payReward moves reward from the bank reserve to the user's spendable balance.
func payReward(bank *schema.Bank, user *schema.User, reward uint64) error {
	if reward == 0 {
		return nil
	}
	if bank.Balance < reward {
		return exception.ErrBankInsufficientFunds
	}
	balance, err := calc.Add(user.Balance, reward)
	if err != nil {
		return err
	}
	reserve, err := calc.Sub(bank.Balance, reward)
	if err != nil {
		return err
	}
	user.Balance = balance
	bank.Balance = reserve
	return nil
}

// stake settles the reward accrued on the existing stake, restarts the
// checkpoint at slot and moves amount into the staked bucket.
func stake(bank *schema.Bank, user *schema.User, caller schema.Identity, amount, slot uint64) (uint64, error) {
	if err := requireAmount(amount); err != nil {
		return 0, err
	}
	if err := authorize(user, caller); err != nil {
		return 0, err
	}
	if err := requireOperational(bank); err != nil {
		return 0, err
	}
	if user.Balance < amount {
		return 0, exception.ErrInsufficientBalance
	}

	var reward uint64
	if user.StakedBalance > 0 {
		var err error
		if reward, err = calc.RewardSince(user.StakedBalance, user.StakeSlot, slot); err != nil {
			return 0, err
		}
		if err := payReward(bank, user, reward); err != nil {
			return 0, err
		}
	}

	balance, err := calc.Sub(user.Balance, amount)
	if err != nil {
		return 0, err
	}
	staked, err := calc.Add(user.StakedBalance, amount)
	if err != nil {
		return 0, err
	}
	bankStaked, err := calc.Add(bank.StakedBalance, amount)
	if err != nil {
		return 0, err
	}
	user.StakeSlot = slot
	user.Balance = balance
	user.StakedBalance = staked
	bank.StakedBalance = bankStaked
	return reward, nil
}

// unstake returns amount plus its reward to the spendable balance. The stake
// checkpoint is left where it was, so the remaining stake keeps accruing from
// the original slot.
func unstake(bank *schema.Bank, user *schema.User, caller schema.Identity, amount, slot uint64) (uint64, error) {
	if err := requireAmount(amount); err != nil {
		return 0, err
	}
	if err := authorize(user, caller); err != nil {
		return 0, err
	}
	if user.StakedBalance < amount {
		return 0, exception.ErrInsufficientBalance
	}

	reward, err := calc.RewardSince(amount, user.StakeSlot, slot)
	if err != nil {
		return 0, err
	}
	if err := payReward(bank, user, reward); err != nil {
		return 0, err
	}

	balance, err := calc.Add(user.Balance, amount)
	if err != nil {
		return 0, err
	}
	staked, err := calc.Sub(user.StakedBalance, amount)
	if err != nil {
		return 0, err
	}
	bankStaked, err := calc.Sub(bank.StakedBalance, amount)
	if err != nil {
		return 0, err
	}
	user.Balance = balance
	user.StakedBalance = staked
	bank.StakedBalance = bankStaked
	return reward, nil
}

// Stake moves amount from the caller's balance into staking.
func (e *Engine) Stake(ctx context.Context, caller schema.Identity, amount uint64) (schema.Notification, error) {
	return e.update(ctx, schema.EventStake, userKeys(true, caller), func(tx store.Tx, now clock.Reading, n *schema.Notification) error {
		bank, user, err := loadPair(tx, caller)
		if err != nil {
			return err
		}
		reward, err := stake(&bank, &user, caller, amount, now.Slot)
		if err != nil {
			return err
		}
		if err := commitPair(tx, bank, user); err != nil {
			return err
		}
		n.Amount = amount
		n.Reward = reward
		describeUser(n, &user)
		describeBank(n, &bank)
		return nil
	})
}

// Unstake releases amount from staking together with the reward it earned.
func (e *Engine) Unstake(ctx context.Context, caller schema.Identity, amount uint64) (schema.Notification, error) {
	return e.update(ctx, schema.EventUnstake, userKeys(true, caller), func(tx store.Tx, now clock.Reading, n *schema.Notification) error {
		bank, user, err := loadPair(tx, caller)
		if err != nil {
			return err
		}
		reward, err := unstake(&bank, &user, caller, amount, now.Slot)
		if err != nil {
			return err
		}
		if err := commitPair(tx, bank, user); err != nil {
			return err
		}
		n.Amount = amount
		n.Reward = reward
		describeUser(n, &user)
		describeBank(n, &bank)
		return nil
	})
}
