// Package projection maintains the Postgres read model and the Redis
// price cache from processed engine outputs.
package projection

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	cache "wagerledger/internal/cache/redis"
	"wagerledger/internal/engine"
	"wagerledger/internal/market"
	"wagerledger/internal/observability"
	"wagerledger/internal/tournament"
	"wagerledger/internal/vault"
)

// Worker updates projection tables from processed commands. The engine
// feeds it over a non-blocking channel; dropped outputs are recovered by
// Rebuild, so every write here must be an upsert.
type Worker struct {
	db      *sql.DB
	input   <-chan engine.Output
	prices  *cache.PriceCache // nil when Redis is disabled
	metrics *observability.Metrics
	log     zerolog.Logger
	lastSeq int64
}

func NewWorker(db *sql.DB, input <-chan engine.Output, prices *cache.PriceCache, metrics *observability.Metrics) *Worker {
	return &Worker{
		db:      db,
		input:   input,
		prices:  prices,
		metrics: metrics,
		log:     observability.NewLogger("projection"),
	}
}

// Run starts the projection worker loop. Blocks until ctx is cancelled
// or the input channel closes.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case output, ok := <-w.input:
			if !ok {
				return nil
			}

			if err := w.processOutput(ctx, output); err != nil {
				// Projections are eventually consistent and rebuildable
				w.log.Warn().
					Err(err).
					Int64("sequence", output.Envelope.Sequence).
					Msg("projection update failed")
			}

			w.lastSeq = output.Envelope.Sequence
		}
	}
}

func (w *Worker) processOutput(ctx context.Context, output engine.Output) error {
	seq := output.Envelope.Sequence

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if output.Batch != nil {
		for _, t := range output.Batch.Transfers {
			if err := w.updateBalances(ctx, tx, t, seq); err != nil {
				return fmt.Errorf("balance projection: %w", err)
			}
		}
	}

	if output.Market != nil {
		if err := w.upsertMarket(ctx, tx, output.Market, seq); err != nil {
			return fmt.Errorf("market projection: %w", err)
		}
	}
	if output.Position != nil {
		if err := w.upsertPosition(ctx, tx, output.Position, seq); err != nil {
			return fmt.Errorf("position projection: %w", err)
		}
	}
	if output.Tournament != nil {
		if err := w.upsertTournament(ctx, tx, output.Tournament, seq); err != nil {
			return fmt.Errorf("tournament projection: %w", err)
		}
	}
	if output.Entry != nil {
		if err := w.upsertEntry(ctx, tx, output.Entry, seq); err != nil {
			return fmt.Errorf("entry projection: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projections.watermark (worker_id, last_sequence, updated_at)
		VALUES ('main', $1, NOW())
		ON CONFLICT (worker_id) DO UPDATE SET last_sequence = $1, updated_at = NOW()
	`, seq); err != nil {
		return fmt.Errorf("watermark update: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	// Redis is a side channel; a cache failure never fails the projection
	if output.Market != nil && w.prices != nil {
		w.pushPrice(ctx, output.Market)
	}

	return nil
}

// updateBalances mirrors vault.BalanceBook.ApplyTransfer: the debit
// account gains, the credit account loses.
func (w *Worker) updateBalances(ctx context.Context, tx *sql.Tx, t vault.Transfer, seq int64) error {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projections.balances (account_path, asset_id, balance, last_sequence)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (account_path, asset_id)
		DO UPDATE SET balance = projections.balances.balance + $3, last_sequence = $4
	`, t.DebitAccount.AccountPath(), uint16(t.AssetID), t.Amount, seq); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projections.balances (account_path, asset_id, balance, last_sequence)
		VALUES ($1, $2, -$3, $4)
		ON CONFLICT (account_path, asset_id)
		DO UPDATE SET balance = projections.balances.balance - $3, last_sequence = $4
	`, t.CreditAccount.AccountPath(), uint16(t.AssetID), t.Amount, seq); err != nil {
		return err
	}

	return nil
}

func (w *Worker) upsertMarket(ctx context.Context, tx *sql.Tx, m *market.Market, seq int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO projections.markets
			(market_id, authority, question, market_type, asset_id,
			 yes_pool, no_pool, total_yes_shares, total_no_shares,
			 status, outcome, closes_at, created_at, settled_at,
			 price_yes, price_no, version, last_sequence)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (market_id) DO UPDATE SET
			yes_pool = $6, no_pool = $7,
			total_yes_shares = $8, total_no_shares = $9,
			status = $10, outcome = $11, settled_at = $14,
			price_yes = $15, price_no = $16,
			version = $17, last_sequence = $18
	`,
		m.MarketID, m.Authority, m.Question, int32(m.MarketType), uint16(m.AssetID),
		int64(m.YesPool), int64(m.NoPool), int64(m.TotalYesShares), int64(m.TotalNoShares),
		int32(m.Status), int32(m.Outcome), m.ClosesAt, m.CreatedAt, m.SettledAt,
		market.PriceYes(m.YesPool, m.NoPool), market.PriceNo(m.YesPool, m.NoPool),
		m.Version, seq,
	)
	return err
}

func (w *Worker) upsertPosition(ctx context.Context, tx *sql.Tx, p *market.Position, seq int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO projections.positions
			(user_id, market_id, outcome, amount, shares, claimed, refunded, created_at, version, last_sequence)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (user_id, market_id) DO UPDATE SET
			outcome = $3, amount = $4, shares = $5,
			claimed = $6, refunded = $7, version = $9, last_sequence = $10
	`,
		p.UserID, p.MarketID, int32(p.Outcome), int64(p.Amount), int64(p.Shares),
		p.Claimed, p.Refunded, p.CreatedAt, p.Version, seq,
	)
	return err
}

func (w *Worker) upsertTournament(ctx context.Context, tx *sql.Tx, t *tournament.Tournament, seq int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO projections.tournaments
			(tournament_id, authority, name, asset_id, entry_fee, prize_pool,
			 max_players, current_players, start_time, end_time, status,
			 created_at, version, last_sequence)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (tournament_id) DO UPDATE SET
			prize_pool = $6, current_players = $8,
			status = $11, version = $13, last_sequence = $14
	`,
		t.TournamentID, t.Authority, t.Name, uint16(t.AssetID),
		int64(t.EntryFee), int64(t.PrizePool),
		int64(t.MaxPlayers), int64(t.CurrentPlayers), t.StartTime, t.EndTime,
		int32(t.Status), t.CreatedAt, t.Version, seq,
	)
	return err
}

func (w *Worker) upsertEntry(ctx context.Context, tx *sql.Tx, e *tournament.Entry, seq int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO projections.entries
			(tournament_id, player_id, paid_amount, registered_at, refunded, version, last_sequence)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (tournament_id, player_id) DO UPDATE SET
			refunded = $5, version = $6, last_sequence = $7
	`,
		e.TournamentID, e.PlayerID, int64(e.PaidAmount), e.RegisteredAt, e.Refunded, e.Version, seq,
	)
	return err
}

func (w *Worker) pushPrice(ctx context.Context, m *market.Market) {
	cctx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()

	totalPool, err := m.TotalPool()
	if err != nil {
		totalPool = 0
	}

	err = w.prices.SetPrice(cctx, m.MarketID.String(), cache.MarketPrice{
		Yes:       market.PriceYes(m.YesPool, m.NoPool),
		No:        market.PriceNo(m.YesPool, m.NoPool),
		TotalPool: totalPool,
		UpdatedAt: time.Now(),
	})
	if err != nil {
		if w.metrics != nil {
			w.metrics.PriceCacheErrors.Inc()
		}
		w.log.Warn().Err(err).Str("market_id", m.MarketID.String()).Msg("price cache write failed")
		return
	}
	if w.metrics != nil {
		w.metrics.PriceCacheWrites.Inc()
	}
}

// balanceRow is one row of the rebuilt balance projection.
type balanceRow struct {
	accountPath string
	assetID     uint16
	balance     int64
}

// balanceRows flattens the engine's balance map into a deterministic
// insert order.
func balanceRows(state *engine.SnapshotState) []balanceRow {
	rows := make([]balanceRow, 0, len(state.Balances))
	for key, bal := range state.Balances {
		rows = append(rows, balanceRow{
			accountPath: key.AccountPath(),
			assetID:     uint16(key.AssetID),
			balance:     bal,
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].accountPath < rows[j].accountPath
	})
	return rows
}

// Rebuild reconstructs every projection table from the engine's
// in-memory state. After snapshot restore and replay the engine is
// authoritative, so dropped projection sends are recovered by dumping
// its records wholesale in one transaction.
func (w *Worker) Rebuild(ctx context.Context, state *engine.SnapshotState) error {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	truncateStatements := []string{
		`TRUNCATE projections.balances`,
		`TRUNCATE projections.markets`,
		`TRUNCATE projections.positions`,
		`TRUNCATE projections.tournaments`,
		`TRUNCATE projections.entries`,
		`DELETE FROM projections.watermark WHERE worker_id = 'main'`,
	}
	for _, stmt := range truncateStatements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("truncate failed: %w", err)
		}
	}

	seq := state.Sequence
	for _, row := range balanceRows(state) {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO projections.balances (account_path, asset_id, balance, last_sequence)
			VALUES ($1, $2, $3, $4)
		`, row.accountPath, row.assetID, row.balance, seq); err != nil {
			return fmt.Errorf("rebuild balance %s: %w", row.accountPath, err)
		}
	}

	for _, m := range state.Markets {
		if err := w.upsertMarket(ctx, tx, m, seq); err != nil {
			return fmt.Errorf("rebuild market %s: %w", m.MarketID, err)
		}
	}
	for _, p := range state.Positions {
		if err := w.upsertPosition(ctx, tx, p, seq); err != nil {
			return fmt.Errorf("rebuild position %s/%s: %w", p.UserID, p.MarketID, err)
		}
	}
	for _, t := range state.Tournaments {
		if err := w.upsertTournament(ctx, tx, t, seq); err != nil {
			return fmt.Errorf("rebuild tournament %s: %w", t.TournamentID, err)
		}
	}
	for _, e := range state.Entries {
		if err := w.upsertEntry(ctx, tx, e, seq); err != nil {
			return fmt.Errorf("rebuild entry %s/%s: %w", e.TournamentID, e.PlayerID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projections.watermark (worker_id, last_sequence, updated_at)
		VALUES ('main', $1, NOW())
	`, seq); err != nil {
		return fmt.Errorf("watermark update: %w", err)
	}

	return tx.Commit()
}
