// Package query provides read-only access to the projection tables.
// Every response carries as_of_sequence so clients can reason about
// staleness relative to the engine's event log.
package query

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"wagerledger/internal/errs"
)

// ErrNotFound is the cause carried by lookups that match no row.
var ErrNotFound = errors.New("not found")

type Service struct {
	db *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// GetMarket returns a single projected market.
func (s *Service) GetMarket(ctx context.Context, marketID uuid.UUID) (*MarketResponse, error) {
	asOfSeq, err := s.getWatermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}

	var m MarketResponse
	m.AsOfSequence = asOfSeq
	err = s.db.QueryRowContext(ctx, `
		SELECT market_id, authority, question, market_type, asset_id,
		       yes_pool, no_pool, total_yes_shares, total_no_shares,
		       status, outcome, closes_at, created_at, settled_at,
		       price_yes, price_no, version
		FROM projections.markets
		WHERE market_id = $1
	`, marketID).Scan(
		&m.MarketID, &m.Authority, &m.Question, &m.MarketType, &m.AssetID,
		&m.YesPool, &m.NoPool, &m.TotalYesShares, &m.TotalNoShares,
		&m.Status, &m.Outcome, &m.ClosesAt, &m.CreatedAt, &m.SettledAt,
		&m.PriceYes, &m.PriceNo, &m.Version,
	)
	if err == sql.ErrNoRows {
		return nil, errs.Wrap(errs.KindValidation, ErrNotFound, "market %s", marketID)
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListMarkets returns markets, optionally filtered by status, newest
// first with cursor pagination on created_at.
func (s *Service) ListMarkets(ctx context.Context, status *int32, limit int, beforeCreatedAt *int64) ([]MarketResponse, error) {
	asOfSeq, err := s.getWatermark(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT market_id, authority, question, market_type, asset_id,
		       yes_pool, no_pool, total_yes_shares, total_no_shares,
		       status, outcome, closes_at, created_at, settled_at,
		       price_yes, price_no, version
		FROM projections.markets
		WHERE TRUE
	`
	args := []interface{}{}
	argIdx := 1

	if status != nil {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, *status)
		argIdx++
	}
	if beforeCreatedAt != nil {
		query += fmt.Sprintf(" AND created_at < $%d", argIdx)
		args = append(args, *beforeCreatedAt)
		argIdx++
	}

	query += " ORDER BY created_at DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var markets []MarketResponse
	for rows.Next() {
		var m MarketResponse
		m.AsOfSequence = asOfSeq
		if err := rows.Scan(
			&m.MarketID, &m.Authority, &m.Question, &m.MarketType, &m.AssetID,
			&m.YesPool, &m.NoPool, &m.TotalYesShares, &m.TotalNoShares,
			&m.Status, &m.Outcome, &m.ClosesAt, &m.CreatedAt, &m.SettledAt,
			&m.PriceYes, &m.PriceNo, &m.Version,
		); err != nil {
			return nil, err
		}
		markets = append(markets, m)
	}
	return markets, rows.Err()
}

// GetPosition returns a user's position in one market.
func (s *Service) GetPosition(ctx context.Context, userID, marketID uuid.UUID) (*PositionResponse, error) {
	asOfSeq, err := s.getWatermark(ctx)
	if err != nil {
		return nil, err
	}

	var p PositionResponse
	p.AsOfSequence = asOfSeq
	err = s.db.QueryRowContext(ctx, `
		SELECT user_id, market_id, outcome, amount, shares, claimed, refunded, created_at, version
		FROM projections.positions
		WHERE user_id = $1 AND market_id = $2
	`, userID, marketID).Scan(
		&p.UserID, &p.MarketID, &p.Outcome, &p.Amount, &p.Shares,
		&p.Claimed, &p.Refunded, &p.CreatedAt, &p.Version,
	)
	if err == sql.ErrNoRows {
		return nil, errs.Wrap(errs.KindValidation, ErrNotFound, "position for user %s in market %s", userID, marketID)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetUserPositions returns all of a user's positions.
func (s *Service) GetUserPositions(ctx context.Context, userID uuid.UUID) ([]PositionResponse, error) {
	asOfSeq, err := s.getWatermark(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, market_id, outcome, amount, shares, claimed, refunded, created_at, version
		FROM projections.positions
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var positions []PositionResponse
	for rows.Next() {
		var p PositionResponse
		p.AsOfSequence = asOfSeq
		if err := rows.Scan(
			&p.UserID, &p.MarketID, &p.Outcome, &p.Amount, &p.Shares,
			&p.Claimed, &p.Refunded, &p.CreatedAt, &p.Version,
		); err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// GetTournament returns a single projected tournament.
func (s *Service) GetTournament(ctx context.Context, tournamentID uuid.UUID) (*TournamentResponse, error) {
	asOfSeq, err := s.getWatermark(ctx)
	if err != nil {
		return nil, err
	}

	var t TournamentResponse
	t.AsOfSequence = asOfSeq
	err = s.db.QueryRowContext(ctx, `
		SELECT tournament_id, authority, name, asset_id, entry_fee, prize_pool,
		       max_players, current_players, start_time, end_time, status, created_at, version
		FROM projections.tournaments
		WHERE tournament_id = $1
	`, tournamentID).Scan(
		&t.TournamentID, &t.Authority, &t.Name, &t.AssetID, &t.EntryFee, &t.PrizePool,
		&t.MaxPlayers, &t.CurrentPlayers, &t.StartTime, &t.EndTime, &t.Status, &t.CreatedAt, &t.Version,
	)
	if err == sql.ErrNoRows {
		return nil, errs.Wrap(errs.KindValidation, ErrNotFound, "tournament %s", tournamentID)
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListTournaments returns tournaments, optionally filtered by status.
func (s *Service) ListTournaments(ctx context.Context, status *int32, limit int) ([]TournamentResponse, error) {
	asOfSeq, err := s.getWatermark(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT tournament_id, authority, name, asset_id, entry_fee, prize_pool,
		       max_players, current_players, start_time, end_time, status, created_at, version
		FROM projections.tournaments
		WHERE TRUE
	`
	args := []interface{}{}
	argIdx := 1

	if status != nil {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, *status)
		argIdx++
	}

	query += " ORDER BY created_at DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tournaments []TournamentResponse
	for rows.Next() {
		var t TournamentResponse
		t.AsOfSequence = asOfSeq
		if err := rows.Scan(
			&t.TournamentID, &t.Authority, &t.Name, &t.AssetID, &t.EntryFee, &t.PrizePool,
			&t.MaxPlayers, &t.CurrentPlayers, &t.StartTime, &t.EndTime, &t.Status, &t.CreatedAt, &t.Version,
		); err != nil {
			return nil, err
		}
		tournaments = append(tournaments, t)
	}
	return tournaments, rows.Err()
}

// GetEntries returns all entries for a tournament.
func (s *Service) GetEntries(ctx context.Context, tournamentID uuid.UUID) ([]EntryResponse, error) {
	asOfSeq, err := s.getWatermark(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT tournament_id, player_id, paid_amount, registered_at, refunded, version
		FROM projections.entries
		WHERE tournament_id = $1
		ORDER BY registered_at ASC
	`, tournamentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []EntryResponse
	for rows.Next() {
		var e EntryResponse
		e.AsOfSequence = asOfSeq
		if err := rows.Scan(
			&e.TournamentID, &e.PlayerID, &e.PaidAmount, &e.RegisteredAt, &e.Refunded, &e.Version,
		); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// GetBalance returns a user's cash balance for a specific asset.
func (s *Service) GetBalance(ctx context.Context, userID uuid.UUID, asset string) (*BalanceResponse, error) {
	asOfSeq, err := s.getWatermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}

	accountPath := fmt.Sprintf("user:%s:cash:%s", userID, asset)

	var balance int64
	err = s.db.QueryRowContext(ctx, `
		SELECT COALESCE(balance, 0) FROM projections.balances
		WHERE account_path = $1
	`, accountPath).Scan(&balance)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}

	return &BalanceResponse{
		UserID:       userID,
		Asset:        asset,
		Balance:      balance,
		AsOfSequence: asOfSeq,
	}, nil
}

// GetTransferHistory returns settled transfers touching a user's
// accounts, newest first, with cursor pagination on sequence.
func (s *Service) GetTransferHistory(ctx context.Context, userID uuid.UUID, limit int, afterSequence *int64) ([]TransferHistoryEntry, error) {
	accountPrefix := fmt.Sprintf("user:%s:%%", userID)

	query := `
		SELECT transfer_id, batch_id, command_ref, sequence,
		       debit_account, credit_account, asset_id, amount, transfer_type, timestamp
		FROM event_log.transfers
		WHERE (debit_account LIKE $1 OR credit_account LIKE $1)
	`
	args := []interface{}{accountPrefix}
	argIdx := 2

	if afterSequence != nil {
		query += fmt.Sprintf(" AND sequence < $%d", argIdx)
		args = append(args, *afterSequence)
		argIdx++
	}

	query += " ORDER BY sequence DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []TransferHistoryEntry
	for rows.Next() {
		var e TransferHistoryEntry
		if err := rows.Scan(
			&e.TransferID, &e.BatchID, &e.CommandRef, &e.Sequence,
			&e.DebitAccount, &e.CreditAccount, &e.AssetID, &e.Amount,
			&e.TransferType, &e.Timestamp,
		); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// VerifyIntegrity checks hash chain continuity and the global zero-sum
// invariant from the durable side.
func (s *Service) VerifyIntegrity(ctx context.Context) (*IntegrityReport, error) {
	report := &IntegrityReport{}

	rows, err := s.db.QueryContext(ctx, `
		SELECT e1.sequence
		FROM event_log.events e1
		LEFT JOIN event_log.events e2 ON e2.sequence = e1.sequence - 1
		WHERE e1.sequence > 0 AND e1.prev_hash != COALESCE(e2.state_hash, e1.prev_hash)
		LIMIT 10
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var seq int64
		if err := rows.Scan(&seq); err != nil {
			return nil, err
		}
		report.HashChainBreaks = append(report.HashChainBreaks, seq)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	balanceRows, err := s.db.QueryContext(ctx, `
		SELECT asset_id, SUM(balance) AS total
		FROM projections.balances
		GROUP BY asset_id
		HAVING SUM(balance) != 0
	`)
	if err != nil {
		return nil, err
	}
	defer balanceRows.Close()

	for balanceRows.Next() {
		var assetID uint16
		var total int64
		if err := balanceRows.Scan(&assetID, &total); err != nil {
			return nil, err
		}
		report.UnbalancedAssets = append(report.UnbalancedAssets, UnbalancedAsset{
			AssetID:   assetID,
			Imbalance: total,
		})
	}
	if err := balanceRows.Err(); err != nil {
		return nil, err
	}

	report.IsHealthy = len(report.HashChainBreaks) == 0 && len(report.UnbalancedAssets) == 0
	return report, nil
}

func (s *Service) getWatermark(ctx context.Context) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(last_sequence, 0) FROM projections.watermark WHERE worker_id = 'main'
	`).Scan(&seq)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return seq, err
}
