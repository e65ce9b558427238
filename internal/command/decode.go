package command

import (
	"encoding/json"
	"fmt"
)

// ParseCommandType maps the stored discriminator string back to its
// CommandType. Inverse of CommandType.String.
func ParseCommandType(s string) CommandType {
	switch s {
	case "CreateMarket":
		return CommandTypeCreateMarket
	case "InitPosition":
		return CommandTypeInitPosition
	case "PlaceBet":
		return CommandTypePlaceBet
	case "CloseMarket":
		return CommandTypeCloseMarket
	case "SettleMarket":
		return CommandTypeSettleMarket
	case "SettleMarketOracle":
		return CommandTypeSettleMarketOracle
	case "ClaimWinnings":
		return CommandTypeClaimWinnings
	case "CancelMarket":
		return CommandTypeCancelMarket
	case "RefundBet":
		return CommandTypeRefundBet
	case "CreateTournament":
		return CommandTypeCreateTournament
	case "RegisterPlayer":
		return CommandTypeRegisterPlayer
	case "StartTournament":
		return CommandTypeStartTournament
	case "SubmitResults":
		return CommandTypeSubmitResults
	case "DistributePrizes":
		return CommandTypeDistributePrizes
	case "DistributePrizesOracle":
		return CommandTypeDistributePrizesOracle
	case "CancelTournament":
		return CommandTypeCancelTournament
	case "ClaimRefund":
		return CommandTypeClaimRefund
	case "InitializeOracle":
		return CommandTypeInitializeOracle
	case "Deposit":
		return CommandTypeDeposit
	case "Withdraw":
		return CommandTypeWithdraw
	default:
		return CommandTypeUnknown
	}
}

// DecodePayload unmarshals a stored envelope payload back into its typed
// command. Used during event-log replay; the payload is the engine's own
// json.Marshal of the command struct.
func DecodePayload(ct CommandType, payload []byte) (Command, error) {
	var cmd Command
	switch ct {
	case CommandTypeCreateMarket:
		cmd = &CreateMarket{}
	case CommandTypeInitPosition:
		cmd = &InitPosition{}
	case CommandTypePlaceBet:
		cmd = &PlaceBet{}
	case CommandTypeCloseMarket:
		cmd = &CloseMarket{}
	case CommandTypeSettleMarket:
		cmd = &SettleMarket{}
	case CommandTypeSettleMarketOracle:
		cmd = &SettleMarketOracle{}
	case CommandTypeClaimWinnings:
		cmd = &ClaimWinnings{}
	case CommandTypeCancelMarket:
		cmd = &CancelMarket{}
	case CommandTypeRefundBet:
		cmd = &RefundBet{}
	case CommandTypeCreateTournament:
		cmd = &CreateTournament{}
	case CommandTypeRegisterPlayer:
		cmd = &RegisterPlayer{}
	case CommandTypeStartTournament:
		cmd = &StartTournament{}
	case CommandTypeSubmitResults:
		cmd = &SubmitResults{}
	case CommandTypeDistributePrizes:
		cmd = &DistributePrizes{}
	case CommandTypeDistributePrizesOracle:
		cmd = &DistributePrizesOracle{}
	case CommandTypeCancelTournament:
		cmd = &CancelTournament{}
	case CommandTypeClaimRefund:
		cmd = &ClaimRefund{}
	case CommandTypeInitializeOracle:
		cmd = &InitializeOracle{}
	case CommandTypeDeposit:
		cmd = &Deposit{}
	case CommandTypeWithdraw:
		cmd = &Withdraw{}
	default:
		return nil, fmt.Errorf("unknown command type %d", ct)
	}

	if err := json.Unmarshal(payload, cmd); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", ct, err)
	}
	return cmd, nil
}
