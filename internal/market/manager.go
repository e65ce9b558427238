package market

import (
	"github.com/google/uuid"

	"wagerledger/internal/errs"
	"wagerledger/internal/vault"
)

// PositionKey identifies one user's position in one market.
type PositionKey struct {
	MarketID uuid.UUID
	UserID   uuid.UUID
}

// Manager holds all market and position records. It is owned by the engine
// goroutine; no internal locking.
type Manager struct {
	markets   map[uuid.UUID]*Market
	positions map[PositionKey]*Position
}

func NewManager() *Manager {
	return &Manager{
		markets:   make(map[uuid.UUID]*Market),
		positions: make(map[PositionKey]*Position),
	}
}

// Create registers a new market. The cutoff must be in the future relative
// to the command's versioned timestamp.
func (mm *Manager) Create(
	marketID, authority uuid.UUID,
	question string,
	assetID vault.AssetID,
	closesAt, now int64,
	nonce uint64,
) (*Market, error) {
	if _, exists := mm.markets[marketID]; exists {
		return nil, errs.New(errs.KindStateGuard, "market %s already exists", marketID)
	}
	if question == "" {
		return nil, errs.New(errs.KindValidation, "empty market question")
	}
	if closesAt <= now {
		return nil, errs.New(errs.KindValidation, "cutoff %d not in the future (now %d)", closesAt, now)
	}

	m := &Market{
		MarketID:   marketID,
		Authority:  authority,
		Question:   question,
		MarketType: MarketTypeBinary,
		AssetID:    assetID,
		Status:     StatusOpen,
		Outcome:    OutcomeNone,
		ClosesAt:   closesAt,
		CreatedAt:  now,
		Nonce:      nonce,
		Version:    1,
	}
	mm.markets[marketID] = m
	return m, nil
}

// Get returns a market record.
func (mm *Manager) Get(marketID uuid.UUID) (*Market, error) {
	m, ok := mm.markets[marketID]
	if !ok {
		return nil, errs.New(errs.KindValidation, "unknown market %s", marketID)
	}
	return m, nil
}

// InitPosition creates an empty position for a user. Explicit init keeps
// bet handling free of implicit record creation.
func (mm *Manager) InitPosition(marketID, userID uuid.UUID, now int64) (*Position, error) {
	if _, err := mm.Get(marketID); err != nil {
		return nil, err
	}
	key := PositionKey{MarketID: marketID, UserID: userID}
	if _, exists := mm.positions[key]; exists {
		return nil, errs.New(errs.KindStateGuard, "position already initialized for user %s in market %s", userID, marketID)
	}

	p := &Position{
		UserID:    userID,
		MarketID:  marketID,
		Outcome:   OutcomeNone,
		CreatedAt: now,
		Version:   1,
	}
	mm.positions[key] = p
	return p, nil
}

// GetPosition returns a user's position in a market.
func (mm *Manager) GetPosition(marketID, userID uuid.UUID) (*Position, error) {
	p, ok := mm.positions[PositionKey{MarketID: marketID, UserID: userID}]
	if !ok {
		return nil, errs.New(errs.KindValidation, "no position for user %s in market %s", userID, marketID)
	}
	return p, nil
}

// Markets returns all market records (snapshot/projection use).
func (mm *Manager) Markets() []*Market {
	out := make([]*Market, 0, len(mm.markets))
	for _, m := range mm.markets {
		out = append(out, m)
	}
	return out
}

// Positions returns all position records (snapshot/projection use).
func (mm *Manager) Positions() []*Position {
	out := make([]*Position, 0, len(mm.positions))
	for _, p := range mm.positions {
		out = append(out, p)
	}
	return out
}

// RestoreMarket reinstates a record from a snapshot.
func (mm *Manager) RestoreMarket(m *Market) {
	mm.markets[m.MarketID] = m
}

// RestorePosition reinstates a record from a snapshot.
func (mm *Manager) RestorePosition(p *Position) {
	mm.positions[PositionKey{MarketID: p.MarketID, UserID: p.UserID}] = p
}
