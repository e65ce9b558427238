package tournament

import (
	"github.com/google/uuid"

	"wagerledger/internal/errs"
)

// Entry is one player's paid registration. Refunded is one-shot.
type Entry struct {
	TournamentID uuid.UUID
	PlayerID     uuid.UUID
	PaidAmount   uint64
	RegisteredAt int64
	Refunded     bool
	Version      int64
}

// MarkRefunded flips the one-shot refunded flag.
func (e *Entry) MarkRefunded() error {
	if e.Refunded {
		return errs.New(errs.KindAlreadyFinalized, "entry already refunded")
	}
	e.Refunded = true
	e.Version++
	return nil
}
