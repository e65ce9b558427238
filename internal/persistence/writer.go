package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// EventLogWriter writes command envelopes and transfer rows to Postgres
// using multi-row INSERT with ON CONFLICT DO NOTHING, so replays after a
// crash are idempotent at the storage layer.
type EventLogWriter struct {
	db *sql.DB
}

// EventRow represents a row in event_log.events.
type EventRow struct {
	Sequence       int64
	CommandType    string
	IdempotencyKey string
	Partition      string
	Payload        []byte // JSON-encoded command payload
	StateHash      []byte
	PrevHash       []byte
	Timestamp      time.Time
	SourceSequence int64
}

// TransferRow represents a row in event_log.transfers.
type TransferRow struct {
	TransferID    string
	BatchID       string
	CommandRef    string
	Sequence      int64
	DebitAccount  string
	CreditAccount string
	AssetID       uint16
	Amount        int64
	TransferType  int32
	Timestamp     int64
}

func NewEventLogWriter(db *sql.DB) *EventLogWriter {
	return &EventLogWriter{db: db}
}

// WriteEventBatch writes a batch of envelopes within tx.
func (w *EventLogWriter) WriteEventBatch(ctx context.Context, tx *sql.Tx, events []EventRow) error {
	if len(events) == 0 {
		return nil
	}

	query := `INSERT INTO event_log.events
		(sequence, command_type, idempotency_key, partition, payload, state_hash, prev_hash, timestamp, source_sequence)
		VALUES `

	values := make([]string, 0, len(events))
	args := make([]interface{}, 0, len(events)*9)

	for i, e := range events {
		base := i * 9
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9,
		))
		args = append(args,
			e.Sequence, e.CommandType, e.IdempotencyKey, e.Partition,
			e.Payload, e.StateHash, e.PrevHash, e.Timestamp, e.SourceSequence,
		)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (sequence) DO NOTHING"

	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// WriteTransferBatch writes a batch of transfer rows within tx.
func (w *EventLogWriter) WriteTransferBatch(ctx context.Context, tx *sql.Tx, transfers []TransferRow) error {
	if len(transfers) == 0 {
		return nil
	}

	query := `INSERT INTO event_log.transfers
		(transfer_id, batch_id, command_ref, sequence, debit_account, credit_account, asset_id, amount, transfer_type, timestamp)
		VALUES `

	values := make([]string, 0, len(transfers))
	args := make([]interface{}, 0, len(transfers)*10)

	for i, t := range transfers {
		base := i * 10
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9, base+10,
		))
		args = append(args,
			t.TransferID, t.BatchID, t.CommandRef, t.Sequence,
			t.DebitAccount, t.CreditAccount, t.AssetID, t.Amount,
			t.TransferType, t.Timestamp,
		)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (transfer_id) DO NOTHING"

	_, err := tx.ExecContext(ctx, query, args...)
	return err
}
