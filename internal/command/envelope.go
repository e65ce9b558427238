package command

// CommandType discriminator for command payloads
type CommandType int32

const (
	CommandTypeUnknown CommandType = iota

	// Market commands
	CommandTypeCreateMarket
	CommandTypeInitPosition
	CommandTypePlaceBet
	CommandTypeCloseMarket
	CommandTypeSettleMarket
	CommandTypeSettleMarketOracle
	CommandTypeClaimWinnings
	CommandTypeCancelMarket
	CommandTypeRefundBet

	// Tournament commands
	CommandTypeCreateTournament
	CommandTypeRegisterPlayer
	CommandTypeStartTournament
	CommandTypeSubmitResults
	CommandTypeDistributePrizes
	CommandTypeDistributePrizesOracle
	CommandTypeCancelTournament
	CommandTypeClaimRefund
	CommandTypeInitializeOracle

	// Funding commands
	CommandTypeDeposit
	CommandTypeWithdraw
)

func (ct CommandType) String() string {
	switch ct {
	case CommandTypeCreateMarket:
		return "CreateMarket"
	case CommandTypeInitPosition:
		return "InitPosition"
	case CommandTypePlaceBet:
		return "PlaceBet"
	case CommandTypeCloseMarket:
		return "CloseMarket"
	case CommandTypeSettleMarket:
		return "SettleMarket"
	case CommandTypeSettleMarketOracle:
		return "SettleMarketOracle"
	case CommandTypeClaimWinnings:
		return "ClaimWinnings"
	case CommandTypeCancelMarket:
		return "CancelMarket"
	case CommandTypeRefundBet:
		return "RefundBet"
	case CommandTypeCreateTournament:
		return "CreateTournament"
	case CommandTypeRegisterPlayer:
		return "RegisterPlayer"
	case CommandTypeStartTournament:
		return "StartTournament"
	case CommandTypeSubmitResults:
		return "SubmitResults"
	case CommandTypeDistributePrizes:
		return "DistributePrizes"
	case CommandTypeDistributePrizesOracle:
		return "DistributePrizesOracle"
	case CommandTypeCancelTournament:
		return "CancelTournament"
	case CommandTypeClaimRefund:
		return "ClaimRefund"
	case CommandTypeInitializeOracle:
		return "InitializeOracle"
	case CommandTypeDeposit:
		return "Deposit"
	case CommandTypeWithdraw:
		return "Withdraw"
	default:
		return "Unknown"
	}
}

// Command is the interface all command payloads implement.
type Command interface {
	// IdempotencyKey returns the stable dedup key
	IdempotencyKey() string

	// CommandType returns the discriminator
	CommandType() CommandType

	// Partition returns the ordering partition (market:<id>, tournament:<id>,
	// user:<id>)
	Partition() string

	// SourceSequence returns the upstream per-partition ordering key
	SourceSequence() int64

	// At returns the versioned input timestamp (epoch seconds, NOT wall-clock)
	At() int64
}

// Envelope wraps every processed command in the event log.
type Envelope struct {
	// Global monotonic sequence assigned by the engine
	Sequence int64

	// Stable idempotency key from upstream
	IdempotencyKey string

	// Command type discriminator
	CommandType CommandType

	// Ordering partition the command belonged to
	Partition string

	// Versioned input timestamp (NOT wall-clock)
	Timestamp int64

	// Upstream sequence for ordering validation
	SourceSequence int64

	// JSON-encoded command payload
	Payload []byte

	// SHA-256 of state AFTER applying this command
	StateHash [32]byte

	// Previous command's state hash (chain integrity)
	PrevHash [32]byte
}
