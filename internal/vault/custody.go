package vault

import (
	"github.com/google/uuid"

	"wagerledger/internal/errs"
	"wagerledger/internal/safemath"
)

// Custody is the single transfer surface for all fund movements. Every
// escrow deposit, payout, and refund goes through one of its batch
// builders; there is no separate path per asset representation.
//
// Vault-outbound legs require the vault's derived authority token. The
// controller records the token at vault registration and re-checks it on
// every outflow; a mismatch fails closed before any leg applies.
type Custody struct {
	book        *BalanceBook
	authorities map[AccountKey]Authority
}

func NewCustody(book *BalanceBook) *Custody {
	return &Custody{
		book:        book,
		authorities: make(map[AccountKey]Authority),
	}
}

// Book exposes the underlying balance book for read paths.
func (c *Custody) Book() *BalanceBook {
	return c.book
}

// RegisterVault records the authority token for a vault account. A vault
// can be registered once; re-registration is a guard violation.
func (c *Custody) RegisterVault(key AccountKey, authority Authority) error {
	if key.Scope != AccountScopeVault {
		return errs.New(errs.KindValidation, "not a vault account: %s", key.AccountPath())
	}
	if _, exists := c.authorities[key]; exists {
		return errs.New(errs.KindStateGuard, "vault already registered: %s", key.AccountPath())
	}
	c.authorities[key] = authority
	return nil
}

// VaultAuthority returns the recorded token for a vault.
func (c *Custody) VaultAuthority(key AccountKey) (Authority, bool) {
	a, ok := c.authorities[key]
	return a, ok
}

// AuthorizeOutflow verifies a presented token against the vault's recorded
// authority. Unknown vaults and mismatched tokens both fail closed.
func (c *Custody) AuthorizeOutflow(key AccountKey, presented Authority) error {
	recorded, ok := c.authorities[key]
	if !ok {
		return errs.New(errs.KindAuthorization, "no authority registered for %s", key.AccountPath())
	}
	if !recorded.Equal(presented) {
		return errs.New(errs.KindAuthorization, "authority mismatch for %s", key.AccountPath())
	}
	return nil
}

// NewBatch starts an empty batch for one command.
func (c *Custody) NewBatch(commandRef string, sequence, timestamp int64) *Batch {
	return &Batch{
		BatchID:    uuid.New(),
		CommandRef: commandRef,
		Sequence:   sequence,
		Timestamp:  timestamp,
		Transfers:  make([]Transfer, 0, 2),
	}
}

// AddLeg appends one movement to a batch. Vault-outbound legs must carry a
// valid authority token; all other sources are authorized by the command
// actor upstream.
func (c *Custody) AddLeg(
	batch *Batch,
	from, to AccountKey,
	amount uint64,
	transferType TransferType,
	authority *Authority,
) error {
	amt, err := safemath.ToI64(amount)
	if err != nil {
		return err
	}
	if amt == 0 {
		return errs.New(errs.KindValidation, "zero-amount transfer from %s", from.AccountPath())
	}
	if from.AssetID != to.AssetID {
		return errs.New(errs.KindValidation, "asset mismatch: %s vs %s", from.AccountPath(), to.AccountPath())
	}

	if from.Scope == AccountScopeVault {
		if authority == nil {
			return errs.New(errs.KindAuthorization, "vault outflow without authority: %s", from.AccountPath())
		}
		if err := c.AuthorizeOutflow(from, *authority); err != nil {
			return err
		}
	}

	batch.Transfers = append(batch.Transfers, Transfer{
		TransferID:    uuid.New(),
		BatchID:       batch.BatchID,
		CommandRef:    batch.CommandRef,
		Sequence:      batch.Sequence,
		DebitAccount:  to,
		CreditAccount: from,
		AssetID:       from.AssetID,
		Amount:        amt,
		TransferType:  transferType,
		Timestamp:     batch.Timestamp,
	})
	return nil
}

// Apply validates and applies a finished batch to the book atomically.
func (c *Custody) Apply(batch *Batch) error {
	return c.book.ApplyBatch(batch)
}

// Snapshot returns a copy of registered vault authorities.
func (c *Custody) Snapshot() map[AccountKey]Authority {
	out := make(map[AccountKey]Authority, len(c.authorities))
	for k, v := range c.authorities {
		out[k] = v
	}
	return out
}

// Restore replaces registered authorities from a snapshot copy.
func (c *Custody) Restore(authorities map[AccountKey]Authority) {
	c.authorities = make(map[AccountKey]Authority, len(authorities))
	for k, v := range authorities {
		c.authorities[k] = v
	}
}
