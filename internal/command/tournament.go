package command

import (
	"github.com/google/uuid"

	"wagerledger/internal/vault"
)

// CreateTournament opens a new entry-fee tournament.
type CreateTournament struct {
	CommandID    uuid.UUID
	TournamentID uuid.UUID
	Authority    uuid.UUID
	Name         string
	Asset        string
	EntryFee     uint64
	MaxPlayers   uint32
	StartTime    int64
	EndTime      int64
	Nonce        uint64
	Sequence     int64
	Timestamp    int64
}

func (c *CreateTournament) IdempotencyKey() string   { return c.CommandID.String() }
func (c *CreateTournament) CommandType() CommandType { return CommandTypeCreateTournament }
func (c *CreateTournament) Partition() string        { return "tournament:" + c.TournamentID.String() }
func (c *CreateTournament) SourceSequence() int64    { return c.Sequence }
func (c *CreateTournament) At() int64                { return c.Timestamp }

// RegisterPlayer escrows the entry fee and records the entry.
type RegisterPlayer struct {
	CommandID    uuid.UUID
	TournamentID uuid.UUID
	PlayerID     uuid.UUID
	Sequence     int64
	Timestamp    int64
}

func (c *RegisterPlayer) IdempotencyKey() string   { return c.CommandID.String() }
func (c *RegisterPlayer) CommandType() CommandType { return CommandTypeRegisterPlayer }
func (c *RegisterPlayer) Partition() string        { return "tournament:" + c.TournamentID.String() }
func (c *RegisterPlayer) SourceSequence() int64    { return c.Sequence }
func (c *RegisterPlayer) At() int64                { return c.Timestamp }

// StartTournament moves registration into play once the start time passes.
type StartTournament struct {
	CommandID    uuid.UUID
	TournamentID uuid.UUID
	Actor        uuid.UUID
	Sequence     int64
	Timestamp    int64
}

func (c *StartTournament) IdempotencyKey() string   { return c.CommandID.String() }
func (c *StartTournament) CommandType() CommandType { return CommandTypeStartTournament }
func (c *StartTournament) Partition() string        { return "tournament:" + c.TournamentID.String() }
func (c *StartTournament) SourceSequence() int64    { return c.Sequence }
func (c *StartTournament) At() int64                { return c.Timestamp }

// SubmitResults ends an active tournament once the end time passes.
type SubmitResults struct {
	CommandID    uuid.UUID
	TournamentID uuid.UUID
	Actor        uuid.UUID
	Sequence     int64
	Timestamp    int64
}

func (c *SubmitResults) IdempotencyKey() string   { return c.CommandID.String() }
func (c *SubmitResults) CommandType() CommandType { return CommandTypeSubmitResults }
func (c *SubmitResults) Partition() string        { return "tournament:" + c.TournamentID.String() }
func (c *SubmitResults) SourceSequence() int64    { return c.Sequence }
func (c *SubmitResults) At() int64                { return c.Timestamp }

// DistributePrizes pays winners from the prize pool (manual admin path).
type DistributePrizes struct {
	CommandID    uuid.UUID
	TournamentID uuid.UUID
	Actor        uuid.UUID
	Winners      []uuid.UUID
	Amounts      []uint64
	Sequence     int64
	Timestamp    int64
}

func (c *DistributePrizes) IdempotencyKey() string   { return c.CommandID.String() }
func (c *DistributePrizes) CommandType() CommandType { return CommandTypeDistributePrizes }
func (c *DistributePrizes) Partition() string        { return "tournament:" + c.TournamentID.String() }
func (c *DistributePrizes) SourceSequence() int64    { return c.Sequence }
func (c *DistributePrizes) At() int64                { return c.Timestamp }

// DistributePrizesOracle pays winners authorized by a signed feed
// attestation over the exact winners and amounts.
type DistributePrizesOracle struct {
	CommandID    uuid.UUID
	TournamentID uuid.UUID
	Actor        uuid.UUID
	Winners      []uuid.UUID
	Amounts      []uint64
	Message      []byte // signed attestation bytes as received
	Signature    []byte
	Signer       []byte
	SignedAt     int64
	Sequence     int64
	Timestamp    int64
}

func (c *DistributePrizesOracle) IdempotencyKey() string   { return c.CommandID.String() }
func (c *DistributePrizesOracle) CommandType() CommandType { return CommandTypeDistributePrizesOracle }
func (c *DistributePrizesOracle) Partition() string        { return "tournament:" + c.TournamentID.String() }
func (c *DistributePrizesOracle) SourceSequence() int64    { return c.Sequence }
func (c *DistributePrizesOracle) At() int64                { return c.Timestamp }

// CancelTournament voids a tournament before results stand, enabling
// refunds.
type CancelTournament struct {
	CommandID    uuid.UUID
	TournamentID uuid.UUID
	Actor        uuid.UUID
	Sequence     int64
	Timestamp    int64
}

func (c *CancelTournament) IdempotencyKey() string   { return c.CommandID.String() }
func (c *CancelTournament) CommandType() CommandType { return CommandTypeCancelTournament }
func (c *CancelTournament) Partition() string        { return "tournament:" + c.TournamentID.String() }
func (c *CancelTournament) SourceSequence() int64    { return c.Sequence }
func (c *CancelTournament) At() int64                { return c.Timestamp }

// ClaimRefund returns a player's entry fee on a cancelled tournament
// (one-shot).
type ClaimRefund struct {
	CommandID    uuid.UUID
	TournamentID uuid.UUID
	PlayerID     uuid.UUID
	Sequence     int64
	Timestamp    int64
}

func (c *ClaimRefund) IdempotencyKey() string   { return c.CommandID.String() }
func (c *ClaimRefund) CommandType() CommandType { return CommandTypeClaimRefund }
func (c *ClaimRefund) Partition() string        { return "tournament:" + c.TournamentID.String() }
func (c *ClaimRefund) SourceSequence() int64    { return c.Sequence }
func (c *ClaimRefund) At() int64                { return c.Timestamp }

// InitializeOracle binds an attestation feed to a market or tournament
// (one-shot per entity).
type InitializeOracle struct {
	CommandID     uuid.UUID
	EntityKind    int32 // vault.EntityKind
	EntityID      uuid.UUID
	Actor         uuid.UUID
	FeedPublicKey []byte
	QueueID       uuid.UUID
	Sequence      int64
	Timestamp     int64
}

func (c *InitializeOracle) IdempotencyKey() string   { return c.CommandID.String() }
func (c *InitializeOracle) CommandType() CommandType { return CommandTypeInitializeOracle }

func (c *InitializeOracle) Partition() string {
	if vault.EntityKind(c.EntityKind) == vault.EntityKindMarket {
		return "market:" + c.EntityID.String()
	}
	return "tournament:" + c.EntityID.String()
}

func (c *InitializeOracle) SourceSequence() int64 { return c.Sequence }
func (c *InitializeOracle) At() int64             { return c.Timestamp }
