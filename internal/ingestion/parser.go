package ingestion

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"wagerledger/internal/command"
	"wagerledger/internal/market"
	"wagerledger/internal/vault"
)

// ParseRawCommand converts a RawCommand into a typed command.Command.
// The trailing subject token names the command type, e.g.
// wager.commands.place_bet. The shell validates and parses here so the
// engine only ever sees well-formed typed commands.
func ParseRawCommand(raw RawCommand) (command.Command, error) {
	idx := strings.LastIndex(raw.Subject, ".")
	if idx < 0 || idx == len(raw.Subject)-1 {
		return nil, fmt.Errorf("malformed subject: %s", raw.Subject)
	}
	commandType := raw.Subject[idx+1:]

	switch commandType {
	case "create_market":
		return parseCreateMarket(raw.Data)
	case "init_position":
		return parseInitPosition(raw.Data)
	case "place_bet":
		return parsePlaceBet(raw.Data)
	case "close_market":
		return parseCloseMarket(raw.Data)
	case "settle_market":
		return parseSettleMarket(raw.Data)
	case "settle_market_oracle":
		return parseSettleMarketOracle(raw.Data)
	case "claim_winnings":
		return parseClaimWinnings(raw.Data)
	case "cancel_market":
		return parseCancelMarket(raw.Data)
	case "refund_bet":
		return parseRefundBet(raw.Data)
	case "create_tournament":
		return parseCreateTournament(raw.Data)
	case "register_player":
		return parseRegisterPlayer(raw.Data)
	case "start_tournament":
		return parseStartTournament(raw.Data)
	case "submit_results":
		return parseSubmitResults(raw.Data)
	case "distribute_prizes":
		return parseDistributePrizes(raw.Data)
	case "distribute_prizes_oracle":
		return parseDistributePrizesOracle(raw.Data)
	case "cancel_tournament":
		return parseCancelTournament(raw.Data)
	case "claim_refund":
		return parseClaimRefund(raw.Data)
	case "initialize_oracle":
		return parseInitializeOracle(raw.Data)
	case "deposit":
		return parseDeposit(raw.Data)
	case "withdraw":
		return parseWithdraw(raw.Data)
	default:
		return nil, fmt.Errorf("unknown command type: %s", commandType)
	}
}

// --- JSON wire formats ---
// Field names use snake_case to match upstream producers. Byte fields
// (message, signature, signer, feed_public_key) arrive base64-encoded.

func parseOutcome(s string) (int32, error) {
	switch s {
	case "yes":
		return int32(market.OutcomeYes), nil
	case "no":
		return int32(market.OutcomeNo), nil
	default:
		return 0, fmt.Errorf("invalid outcome %q (want yes or no)", s)
	}
}

type createMarketJSON struct {
	CommandID string `json:"command_id"`
	MarketID  string `json:"market_id"`
	Authority string `json:"authority"`
	Question  string `json:"question"`
	Asset     string `json:"asset"`
	ClosesAt  int64  `json:"closes_at"`
	Nonce     uint64 `json:"nonce"`
	Sequence  int64  `json:"sequence"`
	Timestamp int64  `json:"timestamp"`
}

func parseCreateMarket(data []byte) (*command.CreateMarket, error) {
	var j createMarketJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse create_market: %w", err)
	}
	commandID, err := uuid.Parse(j.CommandID)
	if err != nil {
		return nil, fmt.Errorf("parse command_id: %w", err)
	}
	marketID, err := uuid.Parse(j.MarketID)
	if err != nil {
		return nil, fmt.Errorf("parse market_id: %w", err)
	}
	authority, err := uuid.Parse(j.Authority)
	if err != nil {
		return nil, fmt.Errorf("parse authority: %w", err)
	}
	return &command.CreateMarket{
		CommandID: commandID,
		MarketID:  marketID,
		Authority: authority,
		Question:  j.Question,
		Asset:     j.Asset,
		ClosesAt:  j.ClosesAt,
		Nonce:     j.Nonce,
		Sequence:  j.Sequence,
		Timestamp: j.Timestamp,
	}, nil
}

type marketUserJSON struct {
	CommandID string `json:"command_id"`
	MarketID  string `json:"market_id"`
	UserID    string `json:"user_id"`
	Sequence  int64  `json:"sequence"`
	Timestamp int64  `json:"timestamp"`
}

func (j *marketUserJSON) ids() (commandID, marketID, userID uuid.UUID, err error) {
	commandID, err = uuid.Parse(j.CommandID)
	if err != nil {
		return commandID, marketID, userID, fmt.Errorf("parse command_id: %w", err)
	}
	marketID, err = uuid.Parse(j.MarketID)
	if err != nil {
		return commandID, marketID, userID, fmt.Errorf("parse market_id: %w", err)
	}
	userID, err = uuid.Parse(j.UserID)
	if err != nil {
		return commandID, marketID, userID, fmt.Errorf("parse user_id: %w", err)
	}
	return commandID, marketID, userID, nil
}

func parseInitPosition(data []byte) (*command.InitPosition, error) {
	var j marketUserJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse init_position: %w", err)
	}
	commandID, marketID, userID, err := j.ids()
	if err != nil {
		return nil, err
	}
	return &command.InitPosition{
		CommandID: commandID,
		MarketID:  marketID,
		UserID:    userID,
		Sequence:  j.Sequence,
		Timestamp: j.Timestamp,
	}, nil
}

type placeBetJSON struct {
	CommandID string `json:"command_id"`
	MarketID  string `json:"market_id"`
	UserID    string `json:"user_id"`
	Outcome   string `json:"outcome"` // "yes" or "no"
	Amount    uint64 `json:"amount"`
	Sequence  int64  `json:"sequence"`
	Timestamp int64  `json:"timestamp"`
}

func parsePlaceBet(data []byte) (*command.PlaceBet, error) {
	var j placeBetJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse place_bet: %w", err)
	}
	commandID, err := uuid.Parse(j.CommandID)
	if err != nil {
		return nil, fmt.Errorf("parse command_id: %w", err)
	}
	marketID, err := uuid.Parse(j.MarketID)
	if err != nil {
		return nil, fmt.Errorf("parse market_id: %w", err)
	}
	userID, err := uuid.Parse(j.UserID)
	if err != nil {
		return nil, fmt.Errorf("parse user_id: %w", err)
	}
	outcome, err := parseOutcome(j.Outcome)
	if err != nil {
		return nil, err
	}
	return &command.PlaceBet{
		CommandID: commandID,
		MarketID:  marketID,
		UserID:    userID,
		Outcome:   outcome,
		Amount:    j.Amount,
		Sequence:  j.Sequence,
		Timestamp: j.Timestamp,
	}, nil
}

type marketActorJSON struct {
	CommandID string `json:"command_id"`
	MarketID  string `json:"market_id"`
	Actor     string `json:"actor"`
	Sequence  int64  `json:"sequence"`
	Timestamp int64  `json:"timestamp"`
}

func (j *marketActorJSON) ids() (commandID, marketID, actor uuid.UUID, err error) {
	commandID, err = uuid.Parse(j.CommandID)
	if err != nil {
		return commandID, marketID, actor, fmt.Errorf("parse command_id: %w", err)
	}
	marketID, err = uuid.Parse(j.MarketID)
	if err != nil {
		return commandID, marketID, actor, fmt.Errorf("parse market_id: %w", err)
	}
	actor, err = uuid.Parse(j.Actor)
	if err != nil {
		return commandID, marketID, actor, fmt.Errorf("parse actor: %w", err)
	}
	return commandID, marketID, actor, nil
}

func parseCloseMarket(data []byte) (*command.CloseMarket, error) {
	var j marketActorJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse close_market: %w", err)
	}
	commandID, marketID, actor, err := j.ids()
	if err != nil {
		return nil, err
	}
	return &command.CloseMarket{
		CommandID: commandID,
		MarketID:  marketID,
		Actor:     actor,
		Sequence:  j.Sequence,
		Timestamp: j.Timestamp,
	}, nil
}

type settleMarketJSON struct {
	CommandID string `json:"command_id"`
	MarketID  string `json:"market_id"`
	Actor     string `json:"actor"`
	Outcome   string `json:"outcome"`
	Sequence  int64  `json:"sequence"`
	Timestamp int64  `json:"timestamp"`
}

func parseSettleMarket(data []byte) (*command.SettleMarket, error) {
	var j settleMarketJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse settle_market: %w", err)
	}
	commandID, err := uuid.Parse(j.CommandID)
	if err != nil {
		return nil, fmt.Errorf("parse command_id: %w", err)
	}
	marketID, err := uuid.Parse(j.MarketID)
	if err != nil {
		return nil, fmt.Errorf("parse market_id: %w", err)
	}
	actor, err := uuid.Parse(j.Actor)
	if err != nil {
		return nil, fmt.Errorf("parse actor: %w", err)
	}
	outcome, err := parseOutcome(j.Outcome)
	if err != nil {
		return nil, err
	}
	return &command.SettleMarket{
		CommandID: commandID,
		MarketID:  marketID,
		Actor:     actor,
		Outcome:   outcome,
		Sequence:  j.Sequence,
		Timestamp: j.Timestamp,
	}, nil
}

type settleMarketOracleJSON struct {
	CommandID string `json:"command_id"`
	MarketID  string `json:"market_id"`
	Actor     string `json:"actor"`
	Outcome   string `json:"outcome"`
	Message   []byte `json:"message"`
	Signature []byte `json:"signature"`
	Signer    []byte `json:"signer"`
	SignedAt  int64  `json:"signed_at"`
	Sequence  int64  `json:"sequence"`
	Timestamp int64  `json:"timestamp"`
}

func parseSettleMarketOracle(data []byte) (*command.SettleMarketOracle, error) {
	var j settleMarketOracleJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse settle_market_oracle: %w", err)
	}
	commandID, err := uuid.Parse(j.CommandID)
	if err != nil {
		return nil, fmt.Errorf("parse command_id: %w", err)
	}
	marketID, err := uuid.Parse(j.MarketID)
	if err != nil {
		return nil, fmt.Errorf("parse market_id: %w", err)
	}
	actor, err := uuid.Parse(j.Actor)
	if err != nil {
		return nil, fmt.Errorf("parse actor: %w", err)
	}
	outcome, err := parseOutcome(j.Outcome)
	if err != nil {
		return nil, err
	}
	return &command.SettleMarketOracle{
		CommandID: commandID,
		MarketID:  marketID,
		Actor:     actor,
		Outcome:   outcome,
		Message:   j.Message,
		Signature: j.Signature,
		Signer:    j.Signer,
		SignedAt:  j.SignedAt,
		Sequence:  j.Sequence,
		Timestamp: j.Timestamp,
	}, nil
}

func parseClaimWinnings(data []byte) (*command.ClaimWinnings, error) {
	var j marketUserJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse claim_winnings: %w", err)
	}
	commandID, marketID, userID, err := j.ids()
	if err != nil {
		return nil, err
	}
	return &command.ClaimWinnings{
		CommandID: commandID,
		MarketID:  marketID,
		UserID:    userID,
		Sequence:  j.Sequence,
		Timestamp: j.Timestamp,
	}, nil
}

func parseCancelMarket(data []byte) (*command.CancelMarket, error) {
	var j marketActorJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse cancel_market: %w", err)
	}
	commandID, marketID, actor, err := j.ids()
	if err != nil {
		return nil, err
	}
	return &command.CancelMarket{
		CommandID: commandID,
		MarketID:  marketID,
		Actor:     actor,
		Sequence:  j.Sequence,
		Timestamp: j.Timestamp,
	}, nil
}

func parseRefundBet(data []byte) (*command.RefundBet, error) {
	var j marketUserJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse refund_bet: %w", err)
	}
	commandID, marketID, userID, err := j.ids()
	if err != nil {
		return nil, err
	}
	return &command.RefundBet{
		CommandID: commandID,
		MarketID:  marketID,
		UserID:    userID,
		Sequence:  j.Sequence,
		Timestamp: j.Timestamp,
	}, nil
}

type createTournamentJSON struct {
	CommandID    string `json:"command_id"`
	TournamentID string `json:"tournament_id"`
	Authority    string `json:"authority"`
	Name         string `json:"name"`
	Asset        string `json:"asset"`
	EntryFee     uint64 `json:"entry_fee"`
	MaxPlayers   uint32 `json:"max_players"`
	StartTime    int64  `json:"start_time"`
	EndTime      int64  `json:"end_time"`
	Nonce        uint64 `json:"nonce"`
	Sequence     int64  `json:"sequence"`
	Timestamp    int64  `json:"timestamp"`
}

func parseCreateTournament(data []byte) (*command.CreateTournament, error) {
	var j createTournamentJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse create_tournament: %w", err)
	}
	commandID, err := uuid.Parse(j.CommandID)
	if err != nil {
		return nil, fmt.Errorf("parse command_id: %w", err)
	}
	tournamentID, err := uuid.Parse(j.TournamentID)
	if err != nil {
		return nil, fmt.Errorf("parse tournament_id: %w", err)
	}
	authority, err := uuid.Parse(j.Authority)
	if err != nil {
		return nil, fmt.Errorf("parse authority: %w", err)
	}
	return &command.CreateTournament{
		CommandID:    commandID,
		TournamentID: tournamentID,
		Authority:    authority,
		Name:         j.Name,
		Asset:        j.Asset,
		EntryFee:     j.EntryFee,
		MaxPlayers:   j.MaxPlayers,
		StartTime:    j.StartTime,
		EndTime:      j.EndTime,
		Nonce:        j.Nonce,
		Sequence:     j.Sequence,
		Timestamp:    j.Timestamp,
	}, nil
}

type tournamentPlayerJSON struct {
	CommandID    string `json:"command_id"`
	TournamentID string `json:"tournament_id"`
	PlayerID     string `json:"player_id"`
	Sequence     int64  `json:"sequence"`
	Timestamp    int64  `json:"timestamp"`
}

func (j *tournamentPlayerJSON) ids() (commandID, tournamentID, playerID uuid.UUID, err error) {
	commandID, err = uuid.Parse(j.CommandID)
	if err != nil {
		return commandID, tournamentID, playerID, fmt.Errorf("parse command_id: %w", err)
	}
	tournamentID, err = uuid.Parse(j.TournamentID)
	if err != nil {
		return commandID, tournamentID, playerID, fmt.Errorf("parse tournament_id: %w", err)
	}
	playerID, err = uuid.Parse(j.PlayerID)
	if err != nil {
		return commandID, tournamentID, playerID, fmt.Errorf("parse player_id: %w", err)
	}
	return commandID, tournamentID, playerID, nil
}

func parseRegisterPlayer(data []byte) (*command.RegisterPlayer, error) {
	var j tournamentPlayerJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse register_player: %w", err)
	}
	commandID, tournamentID, playerID, err := j.ids()
	if err != nil {
		return nil, err
	}
	return &command.RegisterPlayer{
		CommandID:    commandID,
		TournamentID: tournamentID,
		PlayerID:     playerID,
		Sequence:     j.Sequence,
		Timestamp:    j.Timestamp,
	}, nil
}

type tournamentActorJSON struct {
	CommandID    string `json:"command_id"`
	TournamentID string `json:"tournament_id"`
	Actor        string `json:"actor"`
	Sequence     int64  `json:"sequence"`
	Timestamp    int64  `json:"timestamp"`
}

func (j *tournamentActorJSON) ids() (commandID, tournamentID, actor uuid.UUID, err error) {
	commandID, err = uuid.Parse(j.CommandID)
	if err != nil {
		return commandID, tournamentID, actor, fmt.Errorf("parse command_id: %w", err)
	}
	tournamentID, err = uuid.Parse(j.TournamentID)
	if err != nil {
		return commandID, tournamentID, actor, fmt.Errorf("parse tournament_id: %w", err)
	}
	actor, err = uuid.Parse(j.Actor)
	if err != nil {
		return commandID, tournamentID, actor, fmt.Errorf("parse actor: %w", err)
	}
	return commandID, tournamentID, actor, nil
}

func parseStartTournament(data []byte) (*command.StartTournament, error) {
	var j tournamentActorJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse start_tournament: %w", err)
	}
	commandID, tournamentID, actor, err := j.ids()
	if err != nil {
		return nil, err
	}
	return &command.StartTournament{
		CommandID:    commandID,
		TournamentID: tournamentID,
		Actor:        actor,
		Sequence:     j.Sequence,
		Timestamp:    j.Timestamp,
	}, nil
}

func parseSubmitResults(data []byte) (*command.SubmitResults, error) {
	var j tournamentActorJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse submit_results: %w", err)
	}
	commandID, tournamentID, actor, err := j.ids()
	if err != nil {
		return nil, err
	}
	return &command.SubmitResults{
		CommandID:    commandID,
		TournamentID: tournamentID,
		Actor:        actor,
		Sequence:     j.Sequence,
		Timestamp:    j.Timestamp,
	}, nil
}

type distributePrizesJSON struct {
	CommandID    string   `json:"command_id"`
	TournamentID string   `json:"tournament_id"`
	Actor        string   `json:"actor"`
	Winners      []string `json:"winners"`
	Amounts      []uint64 `json:"amounts"`
	Sequence     int64    `json:"sequence"`
	Timestamp    int64    `json:"timestamp"`
}

func parseWinners(winners []string) ([]uuid.UUID, error) {
	out := make([]uuid.UUID, 0, len(winners))
	for i, w := range winners {
		id, err := uuid.Parse(w)
		if err != nil {
			return nil, fmt.Errorf("parse winners[%d]: %w", i, err)
		}
		out = append(out, id)
	}
	return out, nil
}

func parseDistributePrizes(data []byte) (*command.DistributePrizes, error) {
	var j distributePrizesJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse distribute_prizes: %w", err)
	}
	commandID, err := uuid.Parse(j.CommandID)
	if err != nil {
		return nil, fmt.Errorf("parse command_id: %w", err)
	}
	tournamentID, err := uuid.Parse(j.TournamentID)
	if err != nil {
		return nil, fmt.Errorf("parse tournament_id: %w", err)
	}
	actor, err := uuid.Parse(j.Actor)
	if err != nil {
		return nil, fmt.Errorf("parse actor: %w", err)
	}
	winners, err := parseWinners(j.Winners)
	if err != nil {
		return nil, err
	}
	return &command.DistributePrizes{
		CommandID:    commandID,
		TournamentID: tournamentID,
		Actor:        actor,
		Winners:      winners,
		Amounts:      j.Amounts,
		Sequence:     j.Sequence,
		Timestamp:    j.Timestamp,
	}, nil
}

type distributePrizesOracleJSON struct {
	CommandID    string   `json:"command_id"`
	TournamentID string   `json:"tournament_id"`
	Actor        string   `json:"actor"`
	Winners      []string `json:"winners"`
	Amounts      []uint64 `json:"amounts"`
	Message      []byte   `json:"message"`
	Signature    []byte   `json:"signature"`
	Signer       []byte   `json:"signer"`
	SignedAt     int64    `json:"signed_at"`
	Sequence     int64    `json:"sequence"`
	Timestamp    int64    `json:"timestamp"`
}

func parseDistributePrizesOracle(data []byte) (*command.DistributePrizesOracle, error) {
	var j distributePrizesOracleJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse distribute_prizes_oracle: %w", err)
	}
	commandID, err := uuid.Parse(j.CommandID)
	if err != nil {
		return nil, fmt.Errorf("parse command_id: %w", err)
	}
	tournamentID, err := uuid.Parse(j.TournamentID)
	if err != nil {
		return nil, fmt.Errorf("parse tournament_id: %w", err)
	}
	actor, err := uuid.Parse(j.Actor)
	if err != nil {
		return nil, fmt.Errorf("parse actor: %w", err)
	}
	winners, err := parseWinners(j.Winners)
	if err != nil {
		return nil, err
	}
	return &command.DistributePrizesOracle{
		CommandID:    commandID,
		TournamentID: tournamentID,
		Actor:        actor,
		Winners:      winners,
		Amounts:      j.Amounts,
		Message:      j.Message,
		Signature:    j.Signature,
		Signer:       j.Signer,
		SignedAt:     j.SignedAt,
		Sequence:     j.Sequence,
		Timestamp:    j.Timestamp,
	}, nil
}

func parseCancelTournament(data []byte) (*command.CancelTournament, error) {
	var j tournamentActorJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse cancel_tournament: %w", err)
	}
	commandID, tournamentID, actor, err := j.ids()
	if err != nil {
		return nil, err
	}
	return &command.CancelTournament{
		CommandID:    commandID,
		TournamentID: tournamentID,
		Actor:        actor,
		Sequence:     j.Sequence,
		Timestamp:    j.Timestamp,
	}, nil
}

func parseClaimRefund(data []byte) (*command.ClaimRefund, error) {
	var j tournamentPlayerJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse claim_refund: %w", err)
	}
	commandID, tournamentID, playerID, err := j.ids()
	if err != nil {
		return nil, err
	}
	return &command.ClaimRefund{
		CommandID:    commandID,
		TournamentID: tournamentID,
		PlayerID:     playerID,
		Sequence:     j.Sequence,
		Timestamp:    j.Timestamp,
	}, nil
}

type initializeOracleJSON struct {
	CommandID     string `json:"command_id"`
	EntityKind    string `json:"entity_kind"` // "market" or "tournament"
	EntityID      string `json:"entity_id"`
	Actor         string `json:"actor"`
	FeedPublicKey []byte `json:"feed_public_key"`
	QueueID       string `json:"queue_id"`
	Sequence      int64  `json:"sequence"`
	Timestamp     int64  `json:"timestamp"`
}

func parseInitializeOracle(data []byte) (*command.InitializeOracle, error) {
	var j initializeOracleJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse initialize_oracle: %w", err)
	}
	commandID, err := uuid.Parse(j.CommandID)
	if err != nil {
		return nil, fmt.Errorf("parse command_id: %w", err)
	}
	entityID, err := uuid.Parse(j.EntityID)
	if err != nil {
		return nil, fmt.Errorf("parse entity_id: %w", err)
	}
	actor, err := uuid.Parse(j.Actor)
	if err != nil {
		return nil, fmt.Errorf("parse actor: %w", err)
	}
	queueID, err := uuid.Parse(j.QueueID)
	if err != nil {
		return nil, fmt.Errorf("parse queue_id: %w", err)
	}

	var kind int32
	switch j.EntityKind {
	case "market":
		kind = int32(vault.EntityKindMarket)
	case "tournament":
		kind = int32(vault.EntityKindTournament)
	default:
		return nil, fmt.Errorf("invalid entity_kind %q (want market or tournament)", j.EntityKind)
	}

	return &command.InitializeOracle{
		CommandID:     commandID,
		EntityKind:    kind,
		EntityID:      entityID,
		Actor:         actor,
		FeedPublicKey: j.FeedPublicKey,
		QueueID:       queueID,
		Sequence:      j.Sequence,
		Timestamp:     j.Timestamp,
	}, nil
}

type fundingJSON struct {
	CommandID string `json:"command_id"`
	UserID    string `json:"user_id"`
	Asset     string `json:"asset"`
	Amount    uint64 `json:"amount"`
	Sequence  int64  `json:"sequence"`
	Timestamp int64  `json:"timestamp"`
}

func (j *fundingJSON) ids() (commandID, userID uuid.UUID, err error) {
	commandID, err = uuid.Parse(j.CommandID)
	if err != nil {
		return commandID, userID, fmt.Errorf("parse command_id: %w", err)
	}
	userID, err = uuid.Parse(j.UserID)
	if err != nil {
		return commandID, userID, fmt.Errorf("parse user_id: %w", err)
	}
	return commandID, userID, nil
}

func parseDeposit(data []byte) (*command.Deposit, error) {
	var j fundingJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse deposit: %w", err)
	}
	commandID, userID, err := j.ids()
	if err != nil {
		return nil, err
	}
	return &command.Deposit{
		CommandID: commandID,
		UserID:    userID,
		Asset:     j.Asset,
		Amount:    j.Amount,
		Sequence:  j.Sequence,
		Timestamp: j.Timestamp,
	}, nil
}

func parseWithdraw(data []byte) (*command.Withdraw, error) {
	var j fundingJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse withdraw: %w", err)
	}
	commandID, userID, err := j.ids()
	if err != nil {
		return nil, err
	}
	return &command.Withdraw{
		CommandID: commandID,
		UserID:    userID,
		Asset:     j.Asset,
		Amount:    j.Amount,
		Sequence:  j.Sequence,
		Timestamp: j.Timestamp,
	}, nil
}
