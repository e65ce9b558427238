package engine

import (
	"github.com/google/uuid"

	"wagerledger/internal/command"
	"wagerledger/internal/errs"
	"wagerledger/internal/oracle"
	"wagerledger/internal/safemath"
	"wagerledger/internal/tournament"
	"wagerledger/internal/vault"
)

func (e *Engine) handleCreateTournament(cmd *command.CreateTournament) (*handlerResult, error) {
	assetID, ok := vault.GetAssetID(cmd.Asset)
	if !ok {
		return nil, errs.New(errs.KindValidation, "unknown asset: %s", cmd.Asset)
	}

	t, err := e.tournaments.Create(
		cmd.TournamentID, cmd.Authority, cmd.Name, assetID,
		cmd.EntryFee, cmd.MaxPlayers, cmd.StartTime, cmd.EndTime, cmd.Timestamp, cmd.Nonce,
	)
	if err != nil {
		return nil, err
	}

	if err := e.custody.RegisterVault(t.VaultKey(), t.VaultAuthority()); err != nil {
		return nil, err
	}

	return &handlerResult{tournament: t}, nil
}

func (e *Engine) handleRegisterPlayer(cmd *command.RegisterPlayer) (*handlerResult, error) {
	t, err := e.tournaments.Get(cmd.TournamentID)
	if err != nil {
		return nil, err
	}
	if err := t.GuardRegistrable(cmd.Timestamp); err != nil {
		return nil, err
	}
	if e.tournaments.HasEntry(cmd.TournamentID, cmd.PlayerID) {
		return nil, errs.New(errs.KindStateGuard, "player %s already registered in %s", cmd.PlayerID, cmd.TournamentID)
	}

	// Escrow the entry fee: player cash -> tournament vault
	fee, err := safemath.ToI64(t.EntryFee)
	if err != nil {
		return nil, err
	}
	playerKey := vault.NewUserCashKey(cmd.PlayerID, t.AssetID)
	if err := e.book.ValidateSufficient(playerKey, fee); err != nil {
		return nil, err
	}

	batch := e.custody.NewBatch(cmd.IdempotencyKey(), e.sequence, cmd.Timestamp)
	if err := e.custody.AddLeg(batch, playerKey, t.VaultKey(), t.EntryFee, vault.TransferTypeEntryFee, nil); err != nil {
		return nil, err
	}

	if err := t.RecordRegistration(); err != nil {
		return nil, err
	}
	entry, err := e.tournaments.Register(cmd.TournamentID, cmd.PlayerID, t.EntryFee, cmd.Timestamp)
	if err != nil {
		// Duplicate was checked above; surface anyway
		return nil, err
	}

	return &handlerResult{batch: batch, tournament: t, entry: entry}, nil
}

func (e *Engine) handleStartTournament(cmd *command.StartTournament) (*handlerResult, error) {
	t, err := e.tournaments.Get(cmd.TournamentID)
	if err != nil {
		return nil, err
	}
	if err := t.GuardAuthority(cmd.Actor); err != nil {
		return nil, err
	}
	if err := t.Start(cmd.Timestamp); err != nil {
		return nil, err
	}

	return &handlerResult{tournament: t}, nil
}

func (e *Engine) handleSubmitResults(cmd *command.SubmitResults) (*handlerResult, error) {
	t, err := e.tournaments.Get(cmd.TournamentID)
	if err != nil {
		return nil, err
	}
	if err := t.GuardAuthority(cmd.Actor); err != nil {
		return nil, err
	}
	if err := t.End(cmd.Timestamp); err != nil {
		return nil, err
	}

	return &handlerResult{tournament: t}, nil
}

func (e *Engine) handleDistributePrizes(cmd *command.DistributePrizes) (*handlerResult, error) {
	t, err := e.tournaments.Get(cmd.TournamentID)
	if err != nil {
		return nil, err
	}
	if err := t.GuardAuthority(cmd.Actor); err != nil {
		return nil, err
	}

	return e.distributePrizes(t, cmd.IdempotencyKey(), cmd.Winners, cmd.Amounts, cmd.Timestamp)
}

func (e *Engine) handleDistributePrizesOracle(cmd *command.DistributePrizesOracle) (*handlerResult, error) {
	t, err := e.tournaments.Get(cmd.TournamentID)
	if err != nil {
		return nil, err
	}

	cfg, err := e.oracles.Get(vault.EntityKindTournament, cmd.TournamentID)
	if err != nil {
		return nil, err
	}

	// Re-encode the attestation from the command's own winners and amounts;
	// the signed message must match byte for byte. A valid signature over a
	// different split authorizes nothing.
	expected := &oracle.Attestation{
		EntityKind: vault.EntityKindTournament,
		EntityID:   cmd.TournamentID,
		Timestamp:  cmd.SignedAt,
		Winners:    cmd.Winners,
		Amounts:    cmd.Amounts,
	}
	signed := oracle.SignedAttestation{
		Message:   cmd.Message,
		Signature: cmd.Signature,
		Signer:    cmd.Signer,
	}
	if err := oracle.Verify(cfg, signed, expected, cmd.Timestamp, e.oracleMaxAge); err != nil {
		return nil, err
	}

	result, err := e.distributePrizes(t, cmd.IdempotencyKey(), cmd.Winners, cmd.Amounts, cmd.Timestamp)
	if err != nil {
		return nil, err
	}
	e.oracles.RecordVerification(cfg, cmd.Timestamp, len(cmd.Winners))

	return result, nil
}

// distributePrizes builds the full payout batch, then applies record
// mutations. Shared by the manual and oracle-gated paths.
func (e *Engine) distributePrizes(t *tournament.Tournament, commandRef string, winners []uuid.UUID, amounts []uint64, timestamp int64) (*handlerResult, error) {
	if t.Status != tournament.StatusEnded {
		return nil, errs.New(errs.KindStateGuard, "cannot distribute prizes for tournament in state %s", t.Status)
	}

	total, err := t.ValidateDistribution(winners, amounts)
	if err != nil {
		return nil, err
	}

	// Prizes go to registered players only
	for _, w := range winners {
		if !e.tournaments.HasEntry(t.TournamentID, w) {
			return nil, errs.New(errs.KindValidation, "winner %s is not a registered player", w)
		}
	}

	authority := t.VaultAuthority()
	batch := e.custody.NewBatch(commandRef, e.sequence, timestamp)
	for i, w := range winners {
		if err := e.custody.AddLeg(batch, t.VaultKey(), vault.NewUserCashKey(w, t.AssetID), amounts[i], vault.TransferTypePrizePayout, &authority); err != nil {
			return nil, err
		}
	}

	if err := t.DebitPrizePool(total); err != nil {
		return nil, err
	}
	if err := t.Complete(); err != nil {
		return nil, err
	}

	return &handlerResult{batch: batch, tournament: t}, nil
}

func (e *Engine) handleCancelTournament(cmd *command.CancelTournament) (*handlerResult, error) {
	t, err := e.tournaments.Get(cmd.TournamentID)
	if err != nil {
		return nil, err
	}
	if err := t.GuardAuthority(cmd.Actor); err != nil {
		return nil, err
	}
	if err := t.Cancel(); err != nil {
		return nil, err
	}

	return &handlerResult{tournament: t}, nil
}

func (e *Engine) handleClaimRefund(cmd *command.ClaimRefund) (*handlerResult, error) {
	t, err := e.tournaments.Get(cmd.TournamentID)
	if err != nil {
		return nil, err
	}
	if t.Status != tournament.StatusCancelled {
		return nil, errs.New(errs.KindStateGuard, "tournament %s is %s, refunds require cancellation", t.TournamentID, t.Status)
	}

	entry, err := e.tournaments.GetEntry(cmd.TournamentID, cmd.PlayerID)
	if err != nil {
		return nil, err
	}
	if entry.Refunded {
		return nil, errs.New(errs.KindAlreadyFinalized, "entry already refunded")
	}

	authority := t.VaultAuthority()
	batch := e.custody.NewBatch(cmd.IdempotencyKey(), e.sequence, cmd.Timestamp)
	if err := e.custody.AddLeg(batch, t.VaultKey(), vault.NewUserCashKey(cmd.PlayerID, t.AssetID), entry.PaidAmount, vault.TransferTypeEntryRefund, &authority); err != nil {
		return nil, err
	}

	if err := entry.MarkRefunded(); err != nil {
		return nil, err
	}
	if err := t.DebitPrizePool(entry.PaidAmount); err != nil {
		return nil, err
	}

	return &handlerResult{batch: batch, tournament: t, entry: entry}, nil
}

func (e *Engine) handleInitializeOracle(cmd *command.InitializeOracle) (*handlerResult, error) {
	kind := vault.EntityKind(cmd.EntityKind)

	// Only the entity's authority may bind a feed to it
	var result handlerResult
	switch kind {
	case vault.EntityKindMarket:
		m, err := e.markets.Get(cmd.EntityID)
		if err != nil {
			return nil, err
		}
		if err := m.GuardAuthority(cmd.Actor); err != nil {
			return nil, err
		}
		result.market = m
	case vault.EntityKindTournament:
		t, err := e.tournaments.Get(cmd.EntityID)
		if err != nil {
			return nil, err
		}
		if err := t.GuardAuthority(cmd.Actor); err != nil {
			return nil, err
		}
		result.tournament = t
	default:
		return nil, errs.New(errs.KindValidation, "unknown entity kind %d", cmd.EntityKind)
	}

	if _, err := e.oracles.Initialize(kind, cmd.EntityID, cmd.FeedPublicKey, cmd.QueueID); err != nil {
		return nil, err
	}

	return &result, nil
}
