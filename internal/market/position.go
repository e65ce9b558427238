package market

import (
	"github.com/google/uuid"

	"wagerledger/internal/errs"
	"wagerledger/internal/safemath"
)

// Position is one user's stake in one market. A position holds exactly one
// side: the first bet fixes the outcome and later bets must match it.
// Claimed and Refunded are one-shot flags; they never reset.
type Position struct {
	UserID    uuid.UUID
	MarketID  uuid.UUID
	Outcome   Outcome // OutcomeNone until the first bet
	Amount    uint64  // cumulative staked
	Shares    uint64  // cumulative issued shares
	Claimed   bool
	Refunded  bool
	CreatedAt int64
	Version   int64
}

// RecordBet accumulates a bet into the position.
func (p *Position) RecordBet(outcome Outcome, amount, shares uint64) error {
	if p.Outcome != OutcomeNone && p.Outcome != outcome {
		return errs.New(errs.KindValidation,
			"position holds %s, cannot bet %s", p.Outcome, outcome)
	}

	newAmount, err := safemath.AddU64(p.Amount, amount)
	if err != nil {
		return err
	}
	newShares, err := safemath.AddU64(p.Shares, shares)
	if err != nil {
		return err
	}

	p.Outcome = outcome
	p.Amount = newAmount
	p.Shares = newShares
	p.Version++
	return nil
}

// MarkClaimed flips the one-shot claimed flag.
func (p *Position) MarkClaimed() error {
	if p.Claimed {
		return errs.New(errs.KindAlreadyFinalized, "position already claimed")
	}
	p.Claimed = true
	p.Version++
	return nil
}

// MarkRefunded flips the one-shot refunded flag.
func (p *Position) MarkRefunded() error {
	if p.Refunded {
		return errs.New(errs.KindAlreadyFinalized, "position already refunded")
	}
	if p.Claimed {
		return errs.New(errs.KindAlreadyFinalized, "position already claimed, cannot refund")
	}
	p.Refunded = true
	p.Version++
	return nil
}
