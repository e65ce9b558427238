package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when a market has no cached price.
var ErrNotFound = errors.New("price not cached")

// PriceCache stores implied market prices as Redis hashes. Each market's
// price is a hash at key "market_price:{marketID}" with fields "yes",
// "no", "pool" and "ts" (Unix nanosecond timestamp).
type PriceCache struct {
	rdb *redis.Client
}

// NewPriceCache creates a PriceCache backed by the given Client.
func NewPriceCache(c *Client) *PriceCache {
	return &PriceCache{rdb: c.Underlying()}
}

func priceKey(marketID string) string {
	return "market_price:" + marketID
}

// MarketPrice is the cached price view of a single market.
type MarketPrice struct {
	Yes       float64
	No        float64
	TotalPool uint64
	UpdatedAt time.Time
}

// SetPrice stores the latest implied prices for a market.
func (pc *PriceCache) SetPrice(ctx context.Context, marketID string, p MarketPrice) error {
	fields := map[string]interface{}{
		"yes":  strconv.FormatFloat(p.Yes, 'f', -1, 64),
		"no":   strconv.FormatFloat(p.No, 'f', -1, 64),
		"pool": strconv.FormatUint(p.TotalPool, 10),
		"ts":   strconv.FormatInt(p.UpdatedAt.UnixNano(), 10),
	}
	if err := pc.rdb.HSet(ctx, priceKey(marketID), fields).Err(); err != nil {
		return fmt.Errorf("redis: set price %s: %w", marketID, err)
	}
	return nil
}

// GetPrice retrieves the latest cached prices for a market. Returns
// ErrNotFound when the key does not exist.
func (pc *PriceCache) GetPrice(ctx context.Context, marketID string) (MarketPrice, error) {
	vals, err := pc.rdb.HGetAll(ctx, priceKey(marketID)).Result()
	if err != nil {
		return MarketPrice{}, fmt.Errorf("redis: get price %s: %w", marketID, err)
	}
	if len(vals) == 0 {
		return MarketPrice{}, ErrNotFound
	}

	yes, err := strconv.ParseFloat(vals["yes"], 64)
	if err != nil {
		return MarketPrice{}, fmt.Errorf("redis: parse yes price %s: %w", marketID, err)
	}
	no, err := strconv.ParseFloat(vals["no"], 64)
	if err != nil {
		return MarketPrice{}, fmt.Errorf("redis: parse no price %s: %w", marketID, err)
	}
	pool, err := strconv.ParseUint(vals["pool"], 10, 64)
	if err != nil {
		return MarketPrice{}, fmt.Errorf("redis: parse pool %s: %w", marketID, err)
	}
	tsNano, err := strconv.ParseInt(vals["ts"], 10, 64)
	if err != nil {
		return MarketPrice{}, fmt.Errorf("redis: parse ts %s: %w", marketID, err)
	}

	return MarketPrice{
		Yes:       yes,
		No:        no,
		TotalPool: pool,
		UpdatedAt: time.Unix(0, tsNano),
	}, nil
}

// GetPrices retrieves cached prices for multiple markets using a
// pipeline. Markets without cached prices are omitted from the result.
func (pc *PriceCache) GetPrices(ctx context.Context, marketIDs []string) (map[string]MarketPrice, error) {
	if len(marketIDs) == 0 {
		return map[string]MarketPrice{}, nil
	}

	pipe := pc.rdb.Pipeline()
	cmds := make(map[string]*redis.MapStringStringCmd, len(marketIDs))
	for _, id := range marketIDs {
		cmds[id] = pipe.HGetAll(ctx, priceKey(id))
	}

	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis: get prices pipeline: %w", err)
	}

	result := make(map[string]MarketPrice, len(marketIDs))
	for id, cmd := range cmds {
		vals, err := cmd.Result()
		if err != nil || len(vals) == 0 {
			continue
		}
		yes, err := strconv.ParseFloat(vals["yes"], 64)
		if err != nil {
			continue
		}
		no, err := strconv.ParseFloat(vals["no"], 64)
		if err != nil {
			continue
		}
		pool, _ := strconv.ParseUint(vals["pool"], 10, 64)
		tsNano, _ := strconv.ParseInt(vals["ts"], 10, 64)
		result[id] = MarketPrice{Yes: yes, No: no, TotalPool: pool, UpdatedAt: time.Unix(0, tsNano)}
	}

	return result, nil
}
