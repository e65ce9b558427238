package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"wagerledger/internal/observability"
)

// Output mirrors engine.Output flattened for storage. The orchestrator
// bridges between the two to avoid an import cycle.
type Output struct {
	EventRow     EventRow
	TransferRows []TransferRow
}

// Worker drains the persist channel and batch-writes to Postgres. The
// persist channel uses BLOCKING sends from the engine, so if this worker
// falls behind the engine stalls. No envelope is ever dropped.
type Worker struct {
	writer       *EventLogWriter
	db           *sql.DB
	inputChan    <-chan Output
	batchSize    int
	flushTimeout time.Duration
	metrics      *observability.Metrics
	log          zerolog.Logger
}

func NewWorker(
	db *sql.DB,
	inputChan <-chan Output,
	batchSize int,
	flushTimeout time.Duration,
	metrics *observability.Metrics,
) *Worker {
	return &Worker{
		writer:       NewEventLogWriter(db),
		db:           db,
		inputChan:    inputChan,
		batchSize:    batchSize,
		flushTimeout: flushTimeout,
		metrics:      metrics,
		log:          observability.NewLogger("persistence"),
	}
}

// Run starts the worker loop. It batches incoming outputs and flushes
// either when the batch is full or the flush timeout expires. Blocks
// until ctx is cancelled or the input channel closes.
func (w *Worker) Run(ctx context.Context) error {
	eventBatch := make([]EventRow, 0, w.batchSize)
	transferBatch := make([]TransferRow, 0, w.batchSize*2)

	timer := time.NewTimer(w.flushTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			if len(eventBatch) > 0 {
				if err := w.flush(context.Background(), eventBatch, transferBatch); err != nil {
					w.log.Error().Err(err).Msg("final flush failed")
				}
			}
			return ctx.Err()

		case output, ok := <-w.inputChan:
			if !ok {
				if len(eventBatch) > 0 {
					if err := w.flush(context.Background(), eventBatch, transferBatch); err != nil {
						w.log.Error().Err(err).Msg("final flush failed")
					}
				}
				return nil
			}

			eventBatch = append(eventBatch, output.EventRow)
			transferBatch = append(transferBatch, output.TransferRows...)

			if len(eventBatch) >= w.batchSize {
				if err := w.flushWithRetry(ctx, eventBatch, transferBatch); err != nil {
					w.log.Error().Err(err).Msg("batch flush failed after retries")
				}
				eventBatch = eventBatch[:0]
				transferBatch = transferBatch[:0]
				timer.Reset(w.flushTimeout)
			}

		case <-timer.C:
			if len(eventBatch) > 0 {
				if err := w.flushWithRetry(ctx, eventBatch, transferBatch); err != nil {
					w.log.Error().Err(err).Msg("timeout flush failed after retries")
				}
				eventBatch = eventBatch[:0]
				transferBatch = transferBatch[:0]
			}
			timer.Reset(w.flushTimeout)
		}
	}
}

// flushWithRetry retries with exponential backoff. The worker never
// drops a batch; it retries until the write succeeds or ctx is
// cancelled, at which point it makes one final attempt with a
// background context.
func (w *Worker) flushWithRetry(ctx context.Context, events []EventRow, transfers []TransferRow) error {
	backoff := 100 * time.Millisecond
	const maxBackoff = 30 * time.Second

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			w.log.Warn().
				Int("attempt", attempt).
				Dur("backoff", backoff).
				Int("events", len(events)).
				Msg("persistence retry")
			select {
			case <-ctx.Done():
				if err := w.flush(context.Background(), events, transfers); err != nil {
					return fmt.Errorf("final flush on shutdown failed: %w", err)
				}
				return nil
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}

		err := w.flush(ctx, events, transfers)
		if err == nil {
			if attempt > 0 {
				w.log.Info().Int("retries", attempt).Msg("persistence flush recovered")
			}
			return nil
		}

		if w.metrics != nil {
			w.metrics.PersistRetry.Inc()
		}
	}
}

func (w *Worker) flush(ctx context.Context, events []EventRow, transfers []TransferRow) error {
	start := time.Now()

	// Events and transfers commit atomically
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		if w.metrics != nil {
			w.metrics.PersistErrors.WithLabelValues("tx_begin").Inc()
		}
		return err
	}
	defer tx.Rollback()

	if err := w.writer.WriteEventBatch(ctx, tx, events); err != nil {
		if w.metrics != nil {
			w.metrics.PersistErrors.WithLabelValues("write_events").Inc()
		}
		return err
	}

	if err := w.writer.WriteTransferBatch(ctx, tx, transfers); err != nil {
		if w.metrics != nil {
			w.metrics.PersistErrors.WithLabelValues("write_transfers").Inc()
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		if w.metrics != nil {
			w.metrics.PersistErrors.WithLabelValues("tx_commit").Inc()
		}
		return err
	}

	if w.metrics != nil {
		w.metrics.PersistBatchDur.Observe(time.Since(start).Seconds())
		w.metrics.PersistBatchSize.Observe(float64(len(events)))
		w.metrics.PersistEventsWritten.Add(float64(len(events)))
		w.metrics.PersistTransfersWritten.Add(float64(len(transfers)))
		if len(events) > 0 {
			w.metrics.PersistLastSequence.Set(float64(events[len(events)-1].Sequence))
		}
	}

	return nil
}
