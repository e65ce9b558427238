package tournament

import (
	"github.com/google/uuid"

	"wagerledger/internal/errs"
	"wagerledger/internal/safemath"
	"wagerledger/internal/vault"
)

// Status is the tournament lifecycle state
type Status int32

const (
	StatusRegistration Status = iota
	StatusActive
	StatusEnded
	StatusCompleted
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusRegistration:
		return "registration"
	case StatusActive:
		return "active"
	case StatusEnded:
		return "ended"
	case StatusCompleted:
		return "completed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Tournament is an entry-fee escrow pool. PrizePool mirrors the vault
// balance: entry_fee * current_players minus distributed prizes and
// refunds. The two are reconciled after every command.
type Tournament struct {
	TournamentID   uuid.UUID
	Authority      uuid.UUID
	Name           string
	AssetID        vault.AssetID
	EntryFee       uint64
	PrizePool      uint64
	MaxPlayers     uint32
	CurrentPlayers uint32
	StartTime      int64 // epoch seconds, registration cutoff
	EndTime        int64
	Status         Status
	CreatedAt      int64
	Nonce          uint64 // vault authority derivation input
	Version        int64
}

// VaultKey returns the tournament's escrow account.
func (t *Tournament) VaultKey() vault.AccountKey {
	return vault.NewTournamentVaultKey(t.TournamentID, t.AssetID)
}

// VaultAuthority derives the tournament's custody capability token.
func (t *Tournament) VaultAuthority() vault.Authority {
	return vault.DeriveAuthority(vault.EntityKindTournament, t.TournamentID, t.Nonce)
}

// GuardAuthority rejects admin transitions from anyone but the creator.
func (t *Tournament) GuardAuthority(actor uuid.UUID) error {
	if actor != t.Authority {
		return errs.New(errs.KindAuthorization, "actor %s is not tournament authority", actor)
	}
	return nil
}

// GuardRegistrable rejects registration outside the registration window.
// Time is authoritative alongside the status flag.
func (t *Tournament) GuardRegistrable(now int64) error {
	if t.Status != StatusRegistration {
		return errs.New(errs.KindStateGuard, "tournament %s is %s, not accepting registrations", t.TournamentID, t.Status)
	}
	if now >= t.StartTime {
		return errs.New(errs.KindStateGuard, "registration for %s closed at %d (now %d)", t.TournamentID, t.StartTime, now)
	}
	if t.CurrentPlayers >= t.MaxPlayers {
		return errs.New(errs.KindStateGuard, "tournament %s is full (%d players)", t.TournamentID, t.MaxPlayers)
	}
	return nil
}

// RecordRegistration accounts one paid entry.
func (t *Tournament) RecordRegistration() error {
	pool, err := safemath.AddU64(t.PrizePool, t.EntryFee)
	if err != nil {
		return err
	}
	t.PrizePool = pool
	t.CurrentPlayers++
	t.Version++
	return nil
}

// Start transitions Registration -> Active once the start time is reached.
func (t *Tournament) Start(now int64) error {
	if t.Status != StatusRegistration {
		return errs.New(errs.KindStateGuard, "cannot start tournament in state %s", t.Status)
	}
	if now < t.StartTime {
		return errs.New(errs.KindStateGuard, "tournament %s starts at %d (now %d)", t.TournamentID, t.StartTime, now)
	}
	t.Status = StatusActive
	t.Version++
	return nil
}

// End transitions Active -> Ended once the end time is reached.
func (t *Tournament) End(now int64) error {
	if t.Status != StatusActive {
		return errs.New(errs.KindStateGuard, "cannot end tournament in state %s", t.Status)
	}
	if now < t.EndTime {
		return errs.New(errs.KindStateGuard, "tournament %s ends at %d (now %d)", t.TournamentID, t.EndTime, now)
	}
	t.Status = StatusEnded
	t.Version++
	return nil
}

// Complete transitions Ended -> Completed after prize distribution.
func (t *Tournament) Complete() error {
	if t.Status != StatusEnded {
		return errs.New(errs.KindStateGuard, "cannot complete tournament in state %s", t.Status)
	}
	t.Status = StatusCompleted
	t.Version++
	return nil
}

// Cancel transitions any pre-Ended state -> Cancelled, enabling refunds.
// Results already stand once a tournament has ended.
func (t *Tournament) Cancel() error {
	if t.Status == StatusEnded || t.Status == StatusCompleted {
		return errs.New(errs.KindAlreadyFinalized, "cannot cancel tournament in state %s", t.Status)
	}
	if t.Status == StatusCancelled {
		return errs.New(errs.KindStateGuard, "tournament already cancelled")
	}
	t.Status = StatusCancelled
	t.Version++
	return nil
}

// DebitPrizePool reduces the accounted pool for a distribution or refund.
func (t *Tournament) DebitPrizePool(amount uint64) error {
	pool, err := safemath.SubU64(t.PrizePool, amount)
	if err != nil {
		return errs.New(errs.KindInsufficientFunds, "prize pool %d cannot cover %d", t.PrizePool, amount)
	}
	t.PrizePool = pool
	t.Version++
	return nil
}

// ValidateDistribution checks a prize split before any transfer is built:
// parallel winner/amount lists, at least one winner, positive amounts, and
// a total within the accounted pool.
func (t *Tournament) ValidateDistribution(winners []uuid.UUID, amounts []uint64) (uint64, error) {
	if len(winners) != len(amounts) {
		return 0, errs.New(errs.KindValidation, "winners/amounts length mismatch: %d vs %d", len(winners), len(amounts))
	}
	if len(winners) == 0 {
		return 0, errs.New(errs.KindValidation, "empty prize distribution")
	}

	var total uint64
	seen := make(map[uuid.UUID]bool, len(winners))
	for i, w := range winners {
		if amounts[i] == 0 {
			return 0, errs.New(errs.KindValidation, "zero prize for winner %s", w)
		}
		if seen[w] {
			return 0, errs.New(errs.KindValidation, "duplicate winner %s", w)
		}
		seen[w] = true

		sum, err := safemath.AddU64(total, amounts[i])
		if err != nil {
			return 0, err
		}
		total = sum
	}

	if total > t.PrizePool {
		return 0, errs.New(errs.KindInsufficientFunds, "distribution %d exceeds prize pool %d", total, t.PrizePool)
	}
	return total, nil
}
