package query

import "github.com/google/uuid"

// MarketResponse represents a market for API queries.
type MarketResponse struct {
	MarketID       uuid.UUID `json:"market_id"`
	Authority      uuid.UUID `json:"authority"`
	Question       string    `json:"question"`
	MarketType     int32     `json:"market_type"`
	AssetID        uint16    `json:"asset_id"`
	YesPool        int64     `json:"yes_pool"`
	NoPool         int64     `json:"no_pool"`
	TotalYesShares int64     `json:"total_yes_shares"`
	TotalNoShares  int64     `json:"total_no_shares"`
	Status         int32     `json:"status"`
	Outcome        int32     `json:"outcome"`
	ClosesAt       int64     `json:"closes_at"`
	CreatedAt      int64     `json:"created_at"`
	SettledAt      int64     `json:"settled_at"`
	PriceYes       float64   `json:"price_yes"`
	PriceNo        float64   `json:"price_no"`
	Version        int64     `json:"version"`
	AsOfSequence   int64     `json:"as_of_sequence"`
}

// PositionResponse represents a betting position for API queries.
type PositionResponse struct {
	UserID       uuid.UUID `json:"user_id"`
	MarketID     uuid.UUID `json:"market_id"`
	Outcome      int32     `json:"outcome"`
	Amount       int64     `json:"amount"`
	Shares       int64     `json:"shares"`
	Claimed      bool      `json:"claimed"`
	Refunded     bool      `json:"refunded"`
	CreatedAt    int64     `json:"created_at"`
	Version      int64     `json:"version"`
	AsOfSequence int64     `json:"as_of_sequence"`
}

// TournamentResponse represents a tournament for API queries.
type TournamentResponse struct {
	TournamentID   uuid.UUID `json:"tournament_id"`
	Authority      uuid.UUID `json:"authority"`
	Name           string    `json:"name"`
	AssetID        uint16    `json:"asset_id"`
	EntryFee       int64     `json:"entry_fee"`
	PrizePool      int64     `json:"prize_pool"`
	MaxPlayers     int64     `json:"max_players"`
	CurrentPlayers int64     `json:"current_players"`
	StartTime      int64     `json:"start_time"`
	EndTime        int64     `json:"end_time"`
	Status         int32     `json:"status"`
	CreatedAt      int64     `json:"created_at"`
	Version        int64     `json:"version"`
	AsOfSequence   int64     `json:"as_of_sequence"`
}

// EntryResponse represents a tournament entry for API queries.
type EntryResponse struct {
	TournamentID uuid.UUID `json:"tournament_id"`
	PlayerID     uuid.UUID `json:"player_id"`
	PaidAmount   int64     `json:"paid_amount"`
	RegisteredAt int64     `json:"registered_at"`
	Refunded     bool      `json:"refunded"`
	Version      int64     `json:"version"`
	AsOfSequence int64     `json:"as_of_sequence"`
}

// BalanceResponse represents a user's cash balance for one asset.
type BalanceResponse struct {
	UserID       uuid.UUID `json:"user_id"`
	Asset        string    `json:"asset"`
	Balance      int64     `json:"balance"`
	AsOfSequence int64     `json:"as_of_sequence"`
}

// TransferHistoryEntry represents a settled transfer for API queries.
type TransferHistoryEntry struct {
	TransferID    string `json:"transfer_id"`
	BatchID       string `json:"batch_id"`
	CommandRef    string `json:"command_ref"`
	Sequence      int64  `json:"sequence"`
	DebitAccount  string `json:"debit_account"`
	CreditAccount string `json:"credit_account"`
	AssetID       uint16 `json:"asset_id"`
	Amount        int64  `json:"amount"`
	TransferType  int32  `json:"transfer_type"`
	Timestamp     int64  `json:"timestamp"`
}

// IntegrityReport is the result of an integrity verification check.
type IntegrityReport struct {
	IsHealthy        bool              `json:"is_healthy"`
	HashChainBreaks  []int64           `json:"hash_chain_breaks,omitempty"`
	UnbalancedAssets []UnbalancedAsset `json:"unbalanced_assets,omitempty"`
}

// UnbalancedAsset represents an asset with non-zero global balance sum.
type UnbalancedAsset struct {
	AssetID   uint16 `json:"asset_id"`
	Imbalance int64  `json:"imbalance"`
}
