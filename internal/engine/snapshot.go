package engine

import (
	"wagerledger/internal/market"
	"wagerledger/internal/oracle"
	"wagerledger/internal/tournament"
	"wagerledger/internal/vault"
)

// SnapshotState holds the serializable in-memory state for restore.
// This mirrors persistence.SnapshotData but uses typed fields.
type SnapshotState struct {
	Sequence        int64
	StateHash       [32]byte
	Balances        map[vault.AccountKey]int64
	Authorities     map[vault.AccountKey]vault.Authority
	Markets         []*market.Market
	Positions       []*market.Position
	Tournaments     []*tournament.Tournament
	Entries         []*tournament.Entry
	OracleConfigs   []*oracle.Config
	SequenceState   map[string]int64
	IdempotencyKeys []string
}

// RestoreFromSnapshot restores the engine's in-memory state. On warm
// restart, load the latest snapshot then replay events forward.
func (e *Engine) RestoreFromSnapshot(snap *SnapshotState) {
	e.sequence = snap.Sequence + 1 // Next sequence to assign
	e.hasher.SetPrevHash(snap.StateHash)

	e.book.Restore(snap.Balances)
	e.custody.Restore(snap.Authorities)

	for _, m := range snap.Markets {
		e.markets.RestoreMarket(m)
	}
	for _, p := range snap.Positions {
		e.markets.RestorePosition(p)
	}
	for _, t := range snap.Tournaments {
		e.tournaments.RestoreTournament(t)
	}
	for _, en := range snap.Entries {
		e.tournaments.RestoreEntry(en)
	}
	for _, cfg := range snap.OracleConfigs {
		e.oracles.Restore(cfg)
	}

	for partition, nextSeq := range snap.SequenceState {
		e.sequenceValidator.SetExpectedSequence(partition, nextSeq)
	}
}

// WarmLRU loads recent idempotency keys into the LRU cache, avoiding
// cold-path DB lookups for recently processed commands.
func (e *Engine) WarmLRU(keys []string) {
	e.idempotency.lru.WarmFromKeys(keys)
}

// CreateSnapshotState captures the current in-memory state for persistence.
func (e *Engine) CreateSnapshotState() *SnapshotState {
	return &SnapshotState{
		Sequence:        e.sequence - 1, // Last processed sequence
		StateHash:       e.hasher.GetPrevHash(),
		Balances:        e.book.Snapshot(),
		Authorities:     e.custody.Snapshot(),
		Markets:         e.markets.Markets(),
		Positions:       e.markets.Positions(),
		Tournaments:     e.tournaments.Tournaments(),
		Entries:         e.tournaments.Entries(),
		OracleConfigs:   e.oracles.Configs(),
		SequenceState:   e.sequenceValidator.GetAllPartitions(),
		IdempotencyKeys: e.idempotency.lru.GetAllKeys(),
	}
}
