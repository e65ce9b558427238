package command

import (
	"github.com/google/uuid"
)

// CreateMarket opens a new binary market.
type CreateMarket struct {
	CommandID uuid.UUID
	MarketID  uuid.UUID
	Authority uuid.UUID
	Question  string
	Asset     string
	ClosesAt  int64
	Nonce     uint64
	Sequence  int64
	Timestamp int64
}

func (c *CreateMarket) IdempotencyKey() string    { return c.CommandID.String() }
func (c *CreateMarket) CommandType() CommandType  { return CommandTypeCreateMarket }
func (c *CreateMarket) Partition() string         { return "market:" + c.MarketID.String() }
func (c *CreateMarket) SourceSequence() int64     { return c.Sequence }
func (c *CreateMarket) At() int64                 { return c.Timestamp }

// InitPosition creates an empty position for a user in a market.
type InitPosition struct {
	CommandID uuid.UUID
	MarketID  uuid.UUID
	UserID    uuid.UUID
	Sequence  int64
	Timestamp int64
}

func (c *InitPosition) IdempotencyKey() string   { return c.CommandID.String() }
func (c *InitPosition) CommandType() CommandType { return CommandTypeInitPosition }
func (c *InitPosition) Partition() string        { return "market:" + c.MarketID.String() }
func (c *InitPosition) SourceSequence() int64    { return c.Sequence }
func (c *InitPosition) At() int64                { return c.Timestamp }

// PlaceBet escrows a stake on one side of an open market.
type PlaceBet struct {
	CommandID uuid.UUID
	MarketID  uuid.UUID
	UserID    uuid.UUID
	Outcome   int32 // market.Outcome
	Amount    uint64
	Sequence  int64
	Timestamp int64
}

func (c *PlaceBet) IdempotencyKey() string   { return c.CommandID.String() }
func (c *PlaceBet) CommandType() CommandType { return CommandTypePlaceBet }
func (c *PlaceBet) Partition() string        { return "market:" + c.MarketID.String() }
func (c *PlaceBet) SourceSequence() int64    { return c.Sequence }
func (c *PlaceBet) At() int64                { return c.Timestamp }

// CloseMarket stops betting ahead of settlement.
type CloseMarket struct {
	CommandID uuid.UUID
	MarketID  uuid.UUID
	Actor     uuid.UUID
	Sequence  int64
	Timestamp int64
}

func (c *CloseMarket) IdempotencyKey() string   { return c.CommandID.String() }
func (c *CloseMarket) CommandType() CommandType { return CommandTypeCloseMarket }
func (c *CloseMarket) Partition() string        { return "market:" + c.MarketID.String() }
func (c *CloseMarket) SourceSequence() int64    { return c.Sequence }
func (c *CloseMarket) At() int64                { return c.Timestamp }

// SettleMarket resolves a market to a winning outcome (manual admin path).
type SettleMarket struct {
	CommandID uuid.UUID
	MarketID  uuid.UUID
	Actor     uuid.UUID
	Outcome   int32 // market.Outcome
	Sequence  int64
	Timestamp int64
}

func (c *SettleMarket) IdempotencyKey() string   { return c.CommandID.String() }
func (c *SettleMarket) CommandType() CommandType { return CommandTypeSettleMarket }
func (c *SettleMarket) Partition() string        { return "market:" + c.MarketID.String() }
func (c *SettleMarket) SourceSequence() int64    { return c.Sequence }
func (c *SettleMarket) At() int64                { return c.Timestamp }

// SettleMarketOracle resolves a market from a signed feed attestation.
type SettleMarketOracle struct {
	CommandID uuid.UUID
	MarketID  uuid.UUID
	Actor     uuid.UUID
	Outcome   int32  // market.Outcome, must match the attestation
	Message   []byte // signed attestation bytes as received
	Signature []byte
	Signer    []byte
	SignedAt  int64
	Sequence  int64
	Timestamp int64
}

func (c *SettleMarketOracle) IdempotencyKey() string   { return c.CommandID.String() }
func (c *SettleMarketOracle) CommandType() CommandType { return CommandTypeSettleMarketOracle }
func (c *SettleMarketOracle) Partition() string        { return "market:" + c.MarketID.String() }
func (c *SettleMarketOracle) SourceSequence() int64    { return c.Sequence }
func (c *SettleMarketOracle) At() int64                { return c.Timestamp }

// ClaimWinnings pays out a winning position (one-shot).
type ClaimWinnings struct {
	CommandID uuid.UUID
	MarketID  uuid.UUID
	UserID    uuid.UUID
	Sequence  int64
	Timestamp int64
}

func (c *ClaimWinnings) IdempotencyKey() string   { return c.CommandID.String() }
func (c *ClaimWinnings) CommandType() CommandType { return CommandTypeClaimWinnings }
func (c *ClaimWinnings) Partition() string        { return "market:" + c.MarketID.String() }
func (c *ClaimWinnings) SourceSequence() int64    { return c.Sequence }
func (c *ClaimWinnings) At() int64                { return c.Timestamp }

// CancelMarket voids a market before settlement, enabling refunds.
type CancelMarket struct {
	CommandID uuid.UUID
	MarketID  uuid.UUID
	Actor     uuid.UUID
	Sequence  int64
	Timestamp int64
}

func (c *CancelMarket) IdempotencyKey() string   { return c.CommandID.String() }
func (c *CancelMarket) CommandType() CommandType { return CommandTypeCancelMarket }
func (c *CancelMarket) Partition() string        { return "market:" + c.MarketID.String() }
func (c *CancelMarket) SourceSequence() int64    { return c.Sequence }
func (c *CancelMarket) At() int64                { return c.Timestamp }

// RefundBet returns a position's cumulative stake on a cancelled market
// (one-shot).
type RefundBet struct {
	CommandID uuid.UUID
	MarketID  uuid.UUID
	UserID    uuid.UUID
	Sequence  int64
	Timestamp int64
}

func (c *RefundBet) IdempotencyKey() string   { return c.CommandID.String() }
func (c *RefundBet) CommandType() CommandType { return CommandTypeRefundBet }
func (c *RefundBet) Partition() string        { return "market:" + c.MarketID.String() }
func (c *RefundBet) SourceSequence() int64    { return c.Sequence }
func (c *RefundBet) At() int64                { return c.Timestamp }
