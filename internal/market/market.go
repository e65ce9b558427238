package market

import (
	"github.com/google/uuid"

	"wagerledger/internal/errs"
	"wagerledger/internal/safemath"
	"wagerledger/internal/vault"
)

// MarketType identifies the market template. Only binary markets exist
// today; the tag is persisted so future templates extend without a schema
// change.
type MarketType int32

const (
	MarketTypeBinary MarketType = iota
)

// Status is the market lifecycle state
type Status int32

const (
	StatusOpen Status = iota
	StatusClosed
	StatusSettled
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusOpen:
		return "open"
	case StatusClosed:
		return "closed"
	case StatusSettled:
		return "settled"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Outcome is a market side. OutcomeNone means unresolved.
type Outcome int32

const (
	OutcomeNone Outcome = iota
	OutcomeYes
	OutcomeNo
)

func (o Outcome) String() string {
	switch o {
	case OutcomeYes:
		return "yes"
	case OutcomeNo:
		return "no"
	case OutcomeNone:
		return "none"
	default:
		return "unknown"
	}
}

// Market is a binary pari-mutuel market. Pools hold the escrowed stakes per
// side; share totals record what was issued against them. Funds live in the
// market's vault account, pools are the settlement-side bookkeeping.
type Market struct {
	MarketID       uuid.UUID
	Authority      uuid.UUID // admin allowed to close/settle/cancel
	Question       string
	MarketType     MarketType
	AssetID        vault.AssetID
	YesPool        uint64
	NoPool         uint64
	TotalYesShares uint64
	TotalNoShares  uint64
	Status         Status
	Outcome        Outcome
	ClosesAt       int64 // epoch seconds, betting cutoff
	CreatedAt      int64
	SettledAt      int64
	Nonce          uint64 // vault authority derivation input
	Version        int64
}

// TotalPool returns yes_pool + no_pool with overflow checking.
func (m *Market) TotalPool() (uint64, error) {
	return safemath.AddU64(m.YesPool, m.NoPool)
}

// VaultKey returns the market's escrow account.
func (m *Market) VaultKey() vault.AccountKey {
	return vault.NewMarketVaultKey(m.MarketID, m.AssetID)
}

// VaultAuthority derives the market's custody capability token.
func (m *Market) VaultAuthority() vault.Authority {
	return vault.DeriveAuthority(vault.EntityKindMarket, m.MarketID, m.Nonce)
}

// GuardBettable rejects bets on anything but an open market before the
// cutoff. Time is authoritative: a stale Open status past closes_at still
// rejects.
func (m *Market) GuardBettable(now int64) error {
	if m.Status != StatusOpen {
		return errs.New(errs.KindStateGuard, "market %s is %s, not open", m.MarketID, m.Status)
	}
	if now >= m.ClosesAt {
		return errs.New(errs.KindStateGuard, "market %s closed for betting at %d (now %d)", m.MarketID, m.ClosesAt, now)
	}
	return nil
}

// GuardAuthority rejects admin transitions from anyone but the creator.
func (m *Market) GuardAuthority(actor uuid.UUID) error {
	if actor != m.Authority {
		return errs.New(errs.KindAuthorization, "actor %s is not market authority", actor)
	}
	return nil
}

// Close transitions Open -> Closed.
func (m *Market) Close() error {
	if m.Status != StatusOpen {
		return errs.New(errs.KindStateGuard, "cannot close market in state %s", m.Status)
	}
	m.Status = StatusClosed
	m.Version++
	return nil
}

// Settle transitions Open|Closed -> Settled with a winning outcome. The
// cutoff must have passed; settlement before closes_at is rejected even
// when the market was closed early.
func (m *Market) Settle(outcome Outcome, now int64) error {
	if m.Status != StatusOpen && m.Status != StatusClosed {
		return errs.New(errs.KindStateGuard, "cannot settle market in state %s", m.Status)
	}
	if outcome != OutcomeYes && outcome != OutcomeNo {
		return errs.New(errs.KindValidation, "invalid settlement outcome %s", outcome)
	}
	if now < m.ClosesAt {
		return errs.New(errs.KindStateGuard, "market %s not past cutoff %d (now %d)", m.MarketID, m.ClosesAt, now)
	}
	m.Status = StatusSettled
	m.Outcome = outcome
	m.SettledAt = now
	m.Version++
	return nil
}

// Cancel transitions Open|Closed -> Cancelled, enabling stake refunds.
// A settled market cannot be cancelled.
func (m *Market) Cancel() error {
	if m.Status != StatusOpen && m.Status != StatusClosed {
		return errs.New(errs.KindStateGuard, "cannot cancel market in state %s", m.Status)
	}
	m.Status = StatusCancelled
	m.Version++
	return nil
}

// RecordBet updates pools and share totals for an accepted bet. Caller has
// already passed guards and computed shares.
func (m *Market) RecordBet(outcome Outcome, amount, shares uint64) error {
	switch outcome {
	case OutcomeYes:
		pool, err := safemath.AddU64(m.YesPool, amount)
		if err != nil {
			return err
		}
		total, err := safemath.AddU64(m.TotalYesShares, shares)
		if err != nil {
			return err
		}
		m.YesPool = pool
		m.TotalYesShares = total
	case OutcomeNo:
		pool, err := safemath.AddU64(m.NoPool, amount)
		if err != nil {
			return err
		}
		total, err := safemath.AddU64(m.TotalNoShares, shares)
		if err != nil {
			return err
		}
		m.NoPool = pool
		m.TotalNoShares = total
	default:
		return errs.New(errs.KindValidation, "invalid bet outcome %s", outcome)
	}
	m.Version++
	return nil
}
