package market

import (
	"wagerledger/internal/errs"
	"wagerledger/internal/safemath"
)

// Pari-mutuel pricing. All settlement math is widened-integer with
// truncation toward zero; the float prices exist only for display and the
// projection surface, never in the money path.

// PriceYes returns the implied YES probability, 0.5 on an empty market.
func PriceYes(yesPool, noPool uint64) float64 {
	total := yesPool + noPool
	if total == 0 {
		return 0.5
	}
	return float64(yesPool) / float64(total)
}

// PriceNo returns the implied NO probability, 0.5 on an empty market.
func PriceNo(yesPool, noPool uint64) float64 {
	total := yesPool + noPool
	if total == 0 {
		return 0.5
	}
	return float64(noPool) / float64(total)
}

// SharesFor computes shares issued for a stake on one side, priced against
// pools BEFORE the stake is added:
//
//	side pool empty:  shares = amount          (bootstrap)
//	otherwise:        shares = amount * (yes+no) / side_pool, truncated
func SharesFor(yesPool, noPool, amount uint64, outcome Outcome) (uint64, error) {
	if amount == 0 {
		return 0, errs.New(errs.KindValidation, "zero bet amount")
	}

	var sidePool uint64
	switch outcome {
	case OutcomeYes:
		sidePool = yesPool
	case OutcomeNo:
		sidePool = noPool
	default:
		return 0, errs.New(errs.KindValidation, "invalid bet outcome %s", outcome)
	}

	if sidePool == 0 {
		return amount, nil
	}

	total, err := safemath.AddU64(yesPool, noPool)
	if err != nil {
		return 0, err
	}
	return safemath.MulDivU64(amount, total, sidePool)
}

// PayoutFor computes a settled position's claim:
//
//	payout = shares * total_pool / winning_shares, truncated
//
// Losing positions and markets where the winning side issued no shares pay
// zero. The truncation guarantees the sum of all payouts never exceeds the
// total pool.
func PayoutFor(m *Market, p *Position) (uint64, error) {
	if m.Status != StatusSettled {
		return 0, errs.New(errs.KindStateGuard, "market %s not settled", m.MarketID)
	}
	if p.Outcome != m.Outcome {
		return 0, nil
	}

	var winningShares uint64
	switch m.Outcome {
	case OutcomeYes:
		winningShares = m.TotalYesShares
	case OutcomeNo:
		winningShares = m.TotalNoShares
	default:
		return 0, errs.New(errs.KindStateGuard, "settled market %s has no outcome", m.MarketID)
	}

	if winningShares == 0 {
		return 0, nil
	}

	totalPool, err := m.TotalPool()
	if err != nil {
		return 0, err
	}
	return safemath.MulDivU64(p.Shares, totalPool, winningShares)
}
