package engine

import (
	"wagerledger/internal/command"
	"wagerledger/internal/errs"
	"wagerledger/internal/safemath"
	"wagerledger/internal/vault"
)

func (e *Engine) handleDeposit(cmd *command.Deposit) (*handlerResult, error) {
	assetID, ok := vault.GetAssetID(cmd.Asset)
	if !ok {
		return nil, errs.New(errs.KindValidation, "unknown asset: %s", cmd.Asset)
	}

	batch := e.custody.NewBatch(cmd.IdempotencyKey(), e.sequence, cmd.Timestamp)
	from := vault.NewExternalAccountKey(vault.SubTypeExternalDeposits, assetID)
	to := vault.NewUserCashKey(cmd.UserID, assetID)
	if err := e.custody.AddLeg(batch, from, to, cmd.Amount, vault.TransferTypeDeposit, nil); err != nil {
		return nil, err
	}

	return &handlerResult{batch: batch}, nil
}

func (e *Engine) handleWithdraw(cmd *command.Withdraw) (*handlerResult, error) {
	assetID, ok := vault.GetAssetID(cmd.Asset)
	if !ok {
		return nil, errs.New(errs.KindValidation, "unknown asset: %s", cmd.Asset)
	}

	amount, err := safemath.ToI64(cmd.Amount)
	if err != nil {
		return nil, err
	}
	from := vault.NewUserCashKey(cmd.UserID, assetID)
	if err := e.book.ValidateSufficient(from, amount); err != nil {
		return nil, err
	}

	batch := e.custody.NewBatch(cmd.IdempotencyKey(), e.sequence, cmd.Timestamp)
	to := vault.NewExternalAccountKey(vault.SubTypeExternalPayouts, assetID)
	if err := e.custody.AddLeg(batch, from, to, cmd.Amount, vault.TransferTypeWithdrawal, nil); err != nil {
		return nil, err
	}

	return &handlerResult{batch: batch}, nil
}
