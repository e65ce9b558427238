package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"wagerledger/internal/engine"
	"wagerledger/internal/market"
	"wagerledger/internal/oracle"
	"wagerledger/internal/tournament"
	"wagerledger/internal/vault"
)

// SnapshotManager handles creating and loading state snapshots for
// recovery. On warm restart the engine loads the latest verified
// snapshot and replays events from snapshot.sequence+1.
type SnapshotManager struct {
	db *sql.DB
}

// SnapshotData contains the full in-memory state at a point in time.
// Balance and authority maps are keyed by account path so the snapshot
// stays a plain JSON document.
type SnapshotData struct {
	Sequence        int64                    `json:"sequence"`
	StateHash       []byte                   `json:"state_hash"`
	Balances        map[string]int64         `json:"balances"`
	Authorities     map[string]string        `json:"authorities"`
	Markets         []*market.Market         `json:"markets"`
	Positions       []*market.Position       `json:"positions"`
	Tournaments     []*tournament.Tournament `json:"tournaments"`
	Entries         []*tournament.Entry      `json:"entries"`
	OracleConfigs   []*oracle.Config         `json:"oracle_configs"`
	SequenceState   map[string]int64         `json:"sequence_state"`
	IdempotencyKeys []string                 `json:"idempotency_keys"`
	CreatedAt       time.Time                `json:"created_at"`
}

func NewSnapshotManager(db *sql.DB) *SnapshotManager {
	return &SnapshotManager{db: db}
}

// FromEngineState converts the engine's typed snapshot into the
// serializable form.
func FromEngineState(state *engine.SnapshotState, createdAt time.Time) *SnapshotData {
	balances := make(map[string]int64, len(state.Balances))
	for k, v := range state.Balances {
		balances[k.AccountPath()] = v
	}
	authorities := make(map[string]string, len(state.Authorities))
	for k, a := range state.Authorities {
		authorities[k.AccountPath()] = a.String()
	}

	hash := state.StateHash

	return &SnapshotData{
		Sequence:        state.Sequence,
		StateHash:       hash[:],
		Balances:        balances,
		Authorities:     authorities,
		Markets:         state.Markets,
		Positions:       state.Positions,
		Tournaments:     state.Tournaments,
		Entries:         state.Entries,
		OracleConfigs:   state.OracleConfigs,
		SequenceState:   state.SequenceState,
		IdempotencyKeys: state.IdempotencyKeys,
		CreatedAt:       createdAt,
	}
}

// ToEngineState converts a loaded snapshot back into the engine's typed
// form. Malformed account paths or authorities fail the whole restore;
// a partial state is worse than a cold start.
func (s *SnapshotData) ToEngineState() (*engine.SnapshotState, error) {
	balances := make(map[vault.AccountKey]int64, len(s.Balances))
	for path, v := range s.Balances {
		key, err := vault.ParseAccountPath(path)
		if err != nil {
			return nil, fmt.Errorf("snapshot balance: %w", err)
		}
		balances[key] = v
	}

	authorities := make(map[vault.AccountKey]vault.Authority, len(s.Authorities))
	for path, hexAuth := range s.Authorities {
		key, err := vault.ParseAccountPath(path)
		if err != nil {
			return nil, fmt.Errorf("snapshot authority: %w", err)
		}
		auth, ok := vault.ParseAuthority(hexAuth)
		if !ok {
			return nil, fmt.Errorf("snapshot authority for %s: malformed token", path)
		}
		authorities[key] = auth
	}

	var hash [32]byte
	if len(s.StateHash) != len(hash) {
		return nil, fmt.Errorf("snapshot state hash has %d bytes, want %d", len(s.StateHash), len(hash))
	}
	copy(hash[:], s.StateHash)

	return &engine.SnapshotState{
		Sequence:        s.Sequence,
		StateHash:       hash,
		Balances:        balances,
		Authorities:     authorities,
		Markets:         s.Markets,
		Positions:       s.Positions,
		Tournaments:     s.Tournaments,
		Entries:         s.Entries,
		OracleConfigs:   s.OracleConfigs,
		SequenceState:   s.SequenceState,
		IdempotencyKeys: s.IdempotencyKeys,
	}, nil
}

// SaveSnapshot persists a snapshot to Postgres.
func (sm *SnapshotManager) SaveSnapshot(ctx context.Context, snap *SnapshotData) (int, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return 0, fmt.Errorf("marshal snapshot: %w", err)
	}

	snapshotID := uuid.New()
	formatVersion := int32(1) // v1: JSON-encoded SnapshotData

	_, err = sm.db.ExecContext(ctx, `
		INSERT INTO event_log.snapshots
			(snapshot_id, sequence, data, state_hash, format_version, size_bytes, verified, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE, $7)
		ON CONFLICT (sequence) DO UPDATE SET data = $3, state_hash = $4, size_bytes = $6
	`, snapshotID, snap.Sequence, data, snap.StateHash, formatVersion, len(data), snap.CreatedAt)

	return len(data), err
}

// LoadLatestSnapshot loads the most recent verified snapshot. Returns
// nil when none exists (cold start).
func (sm *SnapshotManager) LoadLatestSnapshot(ctx context.Context) (*SnapshotData, error) {
	row := sm.db.QueryRowContext(ctx, `
		SELECT data FROM event_log.snapshots
		WHERE verified = TRUE
		ORDER BY sequence DESC
		LIMIT 1
	`)

	var data []byte
	if err := row.Scan(&data); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	var snap SnapshotData
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}

	return &snap, nil
}

// MarkVerified marks a snapshot as verified after integrity check.
func (sm *SnapshotManager) MarkVerified(ctx context.Context, sequence int64) error {
	_, err := sm.db.ExecContext(ctx, `
		UPDATE event_log.snapshots SET verified = TRUE WHERE sequence = $1
	`, sequence)
	return err
}

// LoadEventsFrom loads events from a given sequence for replay.
func (sm *SnapshotManager) LoadEventsFrom(ctx context.Context, fromSequence int64, limit int) ([]EventRow, error) {
	rows, err := sm.db.QueryContext(ctx, `
		SELECT sequence, command_type, idempotency_key, partition, payload,
		       state_hash, prev_hash, timestamp, source_sequence
		FROM event_log.events
		WHERE sequence >= $1
		ORDER BY sequence ASC
		LIMIT $2
	`, fromSequence, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []EventRow
	for rows.Next() {
		var e EventRow
		if err := rows.Scan(
			&e.Sequence, &e.CommandType, &e.IdempotencyKey, &e.Partition,
			&e.Payload, &e.StateHash, &e.PrevHash, &e.Timestamp, &e.SourceSequence,
		); err != nil {
			return nil, err
		}
		events = append(events, e)
	}

	return events, rows.Err()
}

// GetLatestSequence returns the highest sequence in the event log.
func (sm *SnapshotManager) GetLatestSequence(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	err := sm.db.QueryRowContext(ctx, `
		SELECT MAX(sequence) FROM event_log.events
	`).Scan(&seq)
	if err != nil {
		return 0, err
	}
	if !seq.Valid {
		return 0, nil
	}
	return seq.Int64, nil
}
