package persistence

import (
	"context"
	"database/sql"
	"time"
)

// PostgresIdempotencyChecker is the second dedup tier behind the
// in-memory LRU. A miss here means the command has truly never been
// processed.
type PostgresIdempotencyChecker struct {
	db *sql.DB
}

func NewPostgresIdempotencyChecker(db *sql.DB) *PostgresIdempotencyChecker {
	return &PostgresIdempotencyChecker{db: db}
}

// IsDuplicate checks whether a command with this type and key already
// exists in the event log.
func (c *PostgresIdempotencyChecker) IsDuplicate(commandType string, idempotencyKey string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	query := `
        SELECT 1
        FROM event_log.events
        WHERE command_type = $1 AND idempotency_key = $2
        LIMIT 1
    `

	var exists int
	err := c.db.QueryRowContext(ctx, query, commandType, idempotencyKey).Scan(&exists)

	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// LoadRecentKeys returns the most recent idempotency keys for warming
// the in-memory LRU on startup.
func (c *PostgresIdempotencyChecker) LoadRecentKeys(ctx context.Context, limit int) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT command_type, idempotency_key
		FROM event_log.events
		ORDER BY sequence DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var commandType, key string
		if err := rows.Scan(&commandType, &key); err != nil {
			return nil, err
		}
		keys = append(keys, commandType+":"+key)
	}
	return keys, rows.Err()
}
