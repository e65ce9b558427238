package command

import (
	"github.com/google/uuid"
)

// Deposit credits a user's cash account from the external boundary.
type Deposit struct {
	CommandID uuid.UUID
	UserID    uuid.UUID
	Asset     string
	Amount    uint64
	Sequence  int64
	Timestamp int64
}

func (c *Deposit) IdempotencyKey() string   { return c.CommandID.String() }
func (c *Deposit) CommandType() CommandType { return CommandTypeDeposit }
func (c *Deposit) Partition() string        { return "user:" + c.UserID.String() }
func (c *Deposit) SourceSequence() int64    { return c.Sequence }
func (c *Deposit) At() int64                { return c.Timestamp }

// Withdraw debits a user's cash account to the external boundary.
type Withdraw struct {
	CommandID uuid.UUID
	UserID    uuid.UUID
	Asset     string
	Amount    uint64
	Sequence  int64
	Timestamp int64
}

func (c *Withdraw) IdempotencyKey() string   { return c.CommandID.String() }
func (c *Withdraw) CommandType() CommandType { return CommandTypeWithdraw }
func (c *Withdraw) Partition() string        { return "user:" + c.UserID.String() }
func (c *Withdraw) SourceSequence() int64    { return c.Sequence }
func (c *Withdraw) At() int64                { return c.Timestamp }
