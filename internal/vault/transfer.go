package vault

import (
	"fmt"

	"github.com/google/uuid"
)

// TransferType represents the purpose of a transfer
type TransferType int32

const (
	TransferTypeDeposit TransferType = iota
	TransferTypeWithdrawal
	TransferTypeBetStake
	TransferTypeWinningsPayout
	TransferTypeBetRefund
	TransferTypeEntryFee
	TransferTypePrizePayout
	TransferTypeEntryRefund
)

// Transfer represents a single double-entry movement.
// A positive Amount moves from CreditAccount to DebitAccount, so each
// transfer is balanced by construction.
type Transfer struct {
	TransferID    uuid.UUID    // Unique identifier
	BatchID       uuid.UUID    // Groups all legs of one command
	CommandRef    string       // Idempotency key of the source command
	Sequence      int64        // Global event sequence
	DebitAccount  AccountKey   // Account receiving funds (balance increases)
	CreditAccount AccountKey   // Account funds leave (balance decreases)
	AssetID       AssetID      // Asset being transferred
	Amount        int64        // Smallest-unit amount (ALWAYS positive)
	TransferType  TransferType // Movement type
	Timestamp     int64        // Versioned input timestamp (epoch seconds)
}

// Batch represents the complete set of transfers produced by one command.
// All legs apply together or not at all.
type Batch struct {
	BatchID    uuid.UUID
	CommandRef string
	Sequence   int64
	Timestamp  int64
	Transfers  []Transfer
}

// Validate ensures the batch is well-formed: non-empty, positive amounts,
// consistent batch_id, no self-transfers.
func (b *Batch) Validate() error {
	if len(b.Transfers) == 0 {
		return fmt.Errorf("batch %s is empty", b.BatchID)
	}

	for _, t := range b.Transfers {
		if t.Amount <= 0 {
			return fmt.Errorf("transfer %s has non-positive amount: %d", t.TransferID, t.Amount)
		}

		if t.BatchID != b.BatchID {
			return fmt.Errorf("transfer %s has mismatched batch_id", t.TransferID)
		}

		if t.DebitAccount == t.CreditAccount {
			return fmt.Errorf("transfer %s has same debit and credit account", t.TransferID)
		}
	}

	return nil
}
