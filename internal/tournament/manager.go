package tournament

import (
	"github.com/google/uuid"

	"wagerledger/internal/errs"
	"wagerledger/internal/vault"
)

// EntryKey identifies one player's entry in one tournament.
type EntryKey struct {
	TournamentID uuid.UUID
	PlayerID     uuid.UUID
}

// Manager holds all tournament and entry records. Owned by the engine
// goroutine; no internal locking.
type Manager struct {
	tournaments map[uuid.UUID]*Tournament
	entries     map[EntryKey]*Entry
}

func NewManager() *Manager {
	return &Manager{
		tournaments: make(map[uuid.UUID]*Tournament),
		entries:     make(map[EntryKey]*Entry),
	}
}

// Create registers a new tournament. Times must form a future window and
// capacity and fee must be positive.
func (tm *Manager) Create(
	tournamentID, authority uuid.UUID,
	name string,
	assetID vault.AssetID,
	entryFee uint64,
	maxPlayers uint32,
	startTime, endTime, now int64,
	nonce uint64,
) (*Tournament, error) {
	if _, exists := tm.tournaments[tournamentID]; exists {
		return nil, errs.New(errs.KindStateGuard, "tournament %s already exists", tournamentID)
	}
	if name == "" {
		return nil, errs.New(errs.KindValidation, "empty tournament name")
	}
	if startTime <= now {
		return nil, errs.New(errs.KindValidation, "start time %d not in the future (now %d)", startTime, now)
	}
	if startTime >= endTime {
		return nil, errs.New(errs.KindValidation, "start time %d not before end time %d", startTime, endTime)
	}
	if maxPlayers == 0 {
		return nil, errs.New(errs.KindValidation, "max players must be positive")
	}
	if entryFee == 0 {
		return nil, errs.New(errs.KindValidation, "entry fee must be positive")
	}

	t := &Tournament{
		TournamentID: tournamentID,
		Authority:    authority,
		Name:         name,
		AssetID:      assetID,
		EntryFee:     entryFee,
		MaxPlayers:   maxPlayers,
		StartTime:    startTime,
		EndTime:      endTime,
		Status:       StatusRegistration,
		CreatedAt:    now,
		Nonce:        nonce,
		Version:      1,
	}
	tm.tournaments[tournamentID] = t
	return t, nil
}

// Get returns a tournament record.
func (tm *Manager) Get(tournamentID uuid.UUID) (*Tournament, error) {
	t, ok := tm.tournaments[tournamentID]
	if !ok {
		return nil, errs.New(errs.KindValidation, "unknown tournament %s", tournamentID)
	}
	return t, nil
}

// Register creates an entry record for a player. Guards must have passed
// upstream; this only rejects duplicate registration.
func (tm *Manager) Register(tournamentID, playerID uuid.UUID, paidAmount uint64, now int64) (*Entry, error) {
	key := EntryKey{TournamentID: tournamentID, PlayerID: playerID}
	if _, exists := tm.entries[key]; exists {
		return nil, errs.New(errs.KindStateGuard, "player %s already registered in %s", playerID, tournamentID)
	}

	e := &Entry{
		TournamentID: tournamentID,
		PlayerID:     playerID,
		PaidAmount:   paidAmount,
		RegisteredAt: now,
		Version:      1,
	}
	tm.entries[key] = e
	return e, nil
}

// GetEntry returns a player's entry.
func (tm *Manager) GetEntry(tournamentID, playerID uuid.UUID) (*Entry, error) {
	e, ok := tm.entries[EntryKey{TournamentID: tournamentID, PlayerID: playerID}]
	if !ok {
		return nil, errs.New(errs.KindValidation, "no entry for player %s in tournament %s", playerID, tournamentID)
	}
	return e, nil
}

// HasEntry reports whether a player is registered.
func (tm *Manager) HasEntry(tournamentID, playerID uuid.UUID) bool {
	_, ok := tm.entries[EntryKey{TournamentID: tournamentID, PlayerID: playerID}]
	return ok
}

// Tournaments returns all tournament records (snapshot/projection use).
func (tm *Manager) Tournaments() []*Tournament {
	out := make([]*Tournament, 0, len(tm.tournaments))
	for _, t := range tm.tournaments {
		out = append(out, t)
	}
	return out
}

// Entries returns all entry records (snapshot/projection use).
func (tm *Manager) Entries() []*Entry {
	out := make([]*Entry, 0, len(tm.entries))
	for _, e := range tm.entries {
		out = append(out, e)
	}
	return out
}

// RestoreTournament reinstates a record from a snapshot.
func (tm *Manager) RestoreTournament(t *Tournament) {
	tm.tournaments[t.TournamentID] = t
}

// RestoreEntry reinstates a record from a snapshot.
func (tm *Manager) RestoreEntry(e *Entry) {
	tm.entries[EntryKey{TournamentID: e.TournamentID, PlayerID: e.PlayerID}] = e
}
