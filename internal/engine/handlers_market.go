package engine

import (
	"wagerledger/internal/command"
	"wagerledger/internal/errs"
	"wagerledger/internal/market"
	"wagerledger/internal/oracle"
	"wagerledger/internal/safemath"
	"wagerledger/internal/vault"
)

func (e *Engine) handleCreateMarket(cmd *command.CreateMarket) (*handlerResult, error) {
	assetID, ok := vault.GetAssetID(cmd.Asset)
	if !ok {
		return nil, errs.New(errs.KindValidation, "unknown asset: %s", cmd.Asset)
	}

	m, err := e.markets.Create(cmd.MarketID, cmd.Authority, cmd.Question, assetID, cmd.ClosesAt, cmd.Timestamp, cmd.Nonce)
	if err != nil {
		return nil, err
	}

	// Register the vault before any funds can reach it
	if err := e.custody.RegisterVault(m.VaultKey(), m.VaultAuthority()); err != nil {
		return nil, err
	}

	return &handlerResult{market: m}, nil
}

func (e *Engine) handleInitPosition(cmd *command.InitPosition) (*handlerResult, error) {
	m, err := e.markets.Get(cmd.MarketID)
	if err != nil {
		return nil, err
	}
	if m.Status != market.StatusOpen {
		return nil, errs.New(errs.KindStateGuard, "market %s is %s, not open", m.MarketID, m.Status)
	}

	p, err := e.markets.InitPosition(cmd.MarketID, cmd.UserID, cmd.Timestamp)
	if err != nil {
		return nil, err
	}

	return &handlerResult{market: m, position: p}, nil
}

func (e *Engine) handlePlaceBet(cmd *command.PlaceBet) (*handlerResult, error) {
	m, err := e.markets.Get(cmd.MarketID)
	if err != nil {
		return nil, err
	}
	if err := m.GuardBettable(cmd.Timestamp); err != nil {
		return nil, err
	}

	p, err := e.markets.GetPosition(cmd.MarketID, cmd.UserID)
	if err != nil {
		return nil, err
	}

	outcome := market.Outcome(cmd.Outcome)
	if p.Outcome != market.OutcomeNone && p.Outcome != outcome {
		return nil, errs.New(errs.KindValidation,
			"position holds %s, cannot bet %s", p.Outcome, outcome)
	}

	// Shares are priced against pools BEFORE this stake is added
	shares, err := market.SharesFor(m.YesPool, m.NoPool, cmd.Amount, outcome)
	if err != nil {
		return nil, err
	}

	// Escrow the stake: user cash -> market vault
	amount, err := safemath.ToI64(cmd.Amount)
	if err != nil {
		return nil, err
	}
	userKey := vault.NewUserCashKey(cmd.UserID, m.AssetID)
	if err := e.book.ValidateSufficient(userKey, amount); err != nil {
		return nil, err
	}

	batch := e.custody.NewBatch(cmd.IdempotencyKey(), e.sequence, cmd.Timestamp)
	if err := e.custody.AddLeg(batch, userKey, m.VaultKey(), cmd.Amount, vault.TransferTypeBetStake, nil); err != nil {
		return nil, err
	}

	if err := m.RecordBet(outcome, cmd.Amount, shares); err != nil {
		return nil, err
	}
	if err := p.RecordBet(outcome, cmd.Amount, shares); err != nil {
		// Unreachable when the market accepted the same amounts; surface anyway
		return nil, err
	}

	return &handlerResult{batch: batch, market: m, position: p}, nil
}

func (e *Engine) handleCloseMarket(cmd *command.CloseMarket) (*handlerResult, error) {
	m, err := e.markets.Get(cmd.MarketID)
	if err != nil {
		return nil, err
	}
	if err := m.GuardAuthority(cmd.Actor); err != nil {
		return nil, err
	}
	if err := m.Close(); err != nil {
		return nil, err
	}

	return &handlerResult{market: m}, nil
}

func (e *Engine) handleSettleMarket(cmd *command.SettleMarket) (*handlerResult, error) {
	m, err := e.markets.Get(cmd.MarketID)
	if err != nil {
		return nil, err
	}
	if err := m.GuardAuthority(cmd.Actor); err != nil {
		return nil, err
	}
	if err := m.Settle(market.Outcome(cmd.Outcome), cmd.Timestamp); err != nil {
		return nil, err
	}

	return &handlerResult{market: m}, nil
}

func (e *Engine) handleSettleMarketOracle(cmd *command.SettleMarketOracle) (*handlerResult, error) {
	m, err := e.markets.Get(cmd.MarketID)
	if err != nil {
		return nil, err
	}

	cfg, err := e.oracles.Get(vault.EntityKindMarket, cmd.MarketID)
	if err != nil {
		return nil, err
	}

	// Re-encode the attestation from the command's own outcome; the signed
	// message must match byte for byte.
	expected := &oracle.Attestation{
		EntityKind: vault.EntityKindMarket,
		EntityID:   cmd.MarketID,
		Timestamp:  cmd.SignedAt,
		Outcome:    cmd.Outcome,
	}
	signed := oracle.SignedAttestation{
		Message:   cmd.Message,
		Signature: cmd.Signature,
		Signer:    cmd.Signer,
	}
	if err := oracle.Verify(cfg, signed, expected, cmd.Timestamp, e.oracleMaxAge); err != nil {
		return nil, err
	}

	if err := m.Settle(market.Outcome(cmd.Outcome), cmd.Timestamp); err != nil {
		return nil, err
	}
	e.oracles.RecordVerification(cfg, cmd.Timestamp, 0)

	return &handlerResult{market: m}, nil
}

func (e *Engine) handleClaimWinnings(cmd *command.ClaimWinnings) (*handlerResult, error) {
	m, err := e.markets.Get(cmd.MarketID)
	if err != nil {
		return nil, err
	}

	p, err := e.markets.GetPosition(cmd.MarketID, cmd.UserID)
	if err != nil {
		return nil, err
	}
	if p.Claimed {
		return nil, errs.New(errs.KindAlreadyFinalized, "position already claimed")
	}

	payout, err := market.PayoutFor(m, p)
	if err != nil {
		return nil, err
	}
	if payout == 0 {
		return nil, errs.New(errs.KindValidation, "no winnings for user %s in market %s", cmd.UserID, cmd.MarketID)
	}

	authority := m.VaultAuthority()
	batch := e.custody.NewBatch(cmd.IdempotencyKey(), e.sequence, cmd.Timestamp)
	if err := e.custody.AddLeg(batch, m.VaultKey(), vault.NewUserCashKey(cmd.UserID, m.AssetID), payout, vault.TransferTypeWinningsPayout, &authority); err != nil {
		return nil, err
	}

	if err := p.MarkClaimed(); err != nil {
		return nil, err
	}

	return &handlerResult{batch: batch, market: m, position: p}, nil
}

func (e *Engine) handleCancelMarket(cmd *command.CancelMarket) (*handlerResult, error) {
	m, err := e.markets.Get(cmd.MarketID)
	if err != nil {
		return nil, err
	}
	if err := m.GuardAuthority(cmd.Actor); err != nil {
		return nil, err
	}
	if err := m.Cancel(); err != nil {
		return nil, err
	}

	return &handlerResult{market: m}, nil
}

func (e *Engine) handleRefundBet(cmd *command.RefundBet) (*handlerResult, error) {
	m, err := e.markets.Get(cmd.MarketID)
	if err != nil {
		return nil, err
	}
	if m.Status != market.StatusCancelled {
		return nil, errs.New(errs.KindStateGuard, "market %s is %s, refunds require cancellation", m.MarketID, m.Status)
	}

	p, err := e.markets.GetPosition(cmd.MarketID, cmd.UserID)
	if err != nil {
		return nil, err
	}
	if p.Amount == 0 {
		return nil, errs.New(errs.KindValidation, "nothing staked for user %s in market %s", cmd.UserID, cmd.MarketID)
	}
	if p.Refunded {
		return nil, errs.New(errs.KindAlreadyFinalized, "position already refunded")
	}

	authority := m.VaultAuthority()
	batch := e.custody.NewBatch(cmd.IdempotencyKey(), e.sequence, cmd.Timestamp)
	if err := e.custody.AddLeg(batch, m.VaultKey(), vault.NewUserCashKey(cmd.UserID, m.AssetID), p.Amount, vault.TransferTypeBetRefund, &authority); err != nil {
		return nil, err
	}

	if err := p.MarkRefunded(); err != nil {
		return nil, err
	}

	return &handlerResult{batch: batch, market: m, position: p}, nil
}
