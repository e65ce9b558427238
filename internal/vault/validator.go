package vault

import (
	"fmt"

	"github.com/google/uuid"
)

// InvariantValidator checks custody invariants after every applied command.
// Violations are fatal upstream: the engine halts rather than continue from
// corrupt state.
type InvariantValidator struct {
	book *BalanceBook
}

func NewInvariantValidator(book *BalanceBook) *InvariantValidator {
	return &InvariantValidator{
		book: book,
	}
}

// ValidateGlobalBalance verifies the book is zero-sum per asset
func (v *InvariantValidator) ValidateGlobalBalance() error {
	totals := v.book.ComputeGlobalBalance()

	for assetID, total := range totals {
		if total != 0 {
			assetName, _ := GetAssetName(assetID)
			return fmt.Errorf("global balance for %s is non-zero: %d", assetName, total)
		}
	}

	return nil
}

// ValidateVaultNonNegative checks a specific escrow account never went negative
func (v *InvariantValidator) ValidateVaultNonNegative(key AccountKey) error {
	return v.book.ValidateNonNegative(key)
}

// ValidateUserNonNegative checks a user's cash account never went negative
func (v *InvariantValidator) ValidateUserNonNegative(userID uuid.UUID, assetID AssetID) error {
	return v.book.ValidateNonNegative(NewUserCashKey(userID, assetID))
}

// ValidateVaultCoversLiabilities checks escrow holds at least the stated
// liability (a market's total pool or a tournament's prize pool).
func (v *InvariantValidator) ValidateVaultCoversLiabilities(key AccountKey, liability int64) error {
	balance := v.book.GetBalance(key)
	if balance < liability {
		return fmt.Errorf("vault %s holds %d, liability is %d", key.AccountPath(), balance, liability)
	}
	return nil
}
