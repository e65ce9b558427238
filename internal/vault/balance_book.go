package vault

import (
	"fmt"

	"github.com/google/uuid"

	"wagerledger/internal/errs"
)

// BalanceBook maintains in-memory account balances.
// User and vault accounts stay non-negative; external boundary accounts go
// negative as funds enter the system, keeping the book zero-sum globally.
type BalanceBook struct {
	balances map[AccountKey]int64
}

func NewBalanceBook() *BalanceBook {
	return &BalanceBook{
		balances: make(map[AccountKey]int64),
	}
}

// ApplyTransfer applies a single transfer to balances
func (bb *BalanceBook) ApplyTransfer(t Transfer) {
	bb.balances[t.DebitAccount] += t.Amount
	bb.balances[t.CreditAccount] -= t.Amount
}

// ApplyBatch applies all transfers in a batch. The batch is validated and
// funded-source checked before any leg mutates the book, so a rejected
// batch leaves no partial state.
func (bb *BalanceBook) ApplyBatch(batch *Batch) error {
	if err := batch.Validate(); err != nil {
		return errs.Wrap(errs.KindValidation, err, "invalid batch")
	}

	// All-or-nothing: simulate outflows per source account first.
	outflow := make(map[AccountKey]int64)
	inflow := make(map[AccountKey]int64)
	for _, t := range batch.Transfers {
		outflow[t.CreditAccount] += t.Amount
		inflow[t.CreditAccount] += 0
		inflow[t.DebitAccount] += t.Amount
	}
	for key, out := range outflow {
		if key.Scope == AccountScopeExternal {
			continue
		}
		if bb.balances[key]+inflow[key]-out < 0 {
			return errs.New(errs.KindInsufficientFunds,
				"account %s: have=%d, need=%d", key.AccountPath(), bb.balances[key], out-inflow[key])
		}
	}

	for _, t := range batch.Transfers {
		bb.ApplyTransfer(t)
	}

	return nil
}

// GetBalance returns the current balance for an account
func (bb *BalanceBook) GetBalance(key AccountKey) int64 {
	return bb.balances[key]
}

// GetUserCash returns a user's spendable balance
func (bb *BalanceBook) GetUserCash(userID uuid.UUID, assetID AssetID) int64 {
	return bb.GetBalance(NewUserCashKey(userID, assetID))
}

// ValidateSufficient checks if an account covers a required amount
func (bb *BalanceBook) ValidateSufficient(key AccountKey, required int64) error {
	balance := bb.GetBalance(key)
	if balance < required {
		return errs.New(errs.KindInsufficientFunds,
			"account %s: have=%d, need=%d", key.AccountPath(), balance, required)
	}
	return nil
}

// ValidateNonNegative checks that a specific account balance is >= 0
func (bb *BalanceBook) ValidateNonNegative(key AccountKey) error {
	balance := bb.GetBalance(key)
	if balance < 0 {
		return fmt.Errorf("account %s has negative balance: %d", key.AccountPath(), balance)
	}
	return nil
}

// ComputeGlobalBalance sums all account balances per asset (zero for a
// zero-sum book)
func (bb *BalanceBook) ComputeGlobalBalance() map[AssetID]int64 {
	totals := make(map[AssetID]int64)

	for key, balance := range bb.balances {
		totals[key.AssetID] += balance
	}

	return totals
}

// Snapshot returns a copy of all balances (for state hashing and snapshots)
func (bb *BalanceBook) Snapshot() map[AccountKey]int64 {
	snapshot := make(map[AccountKey]int64, len(bb.balances))
	for k, v := range bb.balances {
		snapshot[k] = v
	}
	return snapshot
}

// Restore replaces the book contents from a snapshot copy
func (bb *BalanceBook) Restore(balances map[AccountKey]int64) {
	bb.balances = make(map[AccountKey]int64, len(balances))
	for k, v := range balances {
		bb.balances[k] = v
	}
}
