package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/alanyoungcy/polymarketbot/internal/domain"
	"github.com/redis/go-redis/v9"
)

// SnapshotCache implements domain.SnapshotCache using Redis hashes, one per
// instrument per kind (quote/depth), each holding the pre-encoded payload
// bytes and a timestamp field so cross-process detector instances can read
// a consistent cut without re-running the feed aggregator's merge.
//
// Key schema:
//
//	snap:{instrumentID}:quote - hash with fields "data" and "ts"
//	snap:{instrumentID}:depth - hash with fields "data" and "ts"
type SnapshotCache struct {
	rdb *redis.Client
}

// NewSnapshotCache creates a SnapshotCache backed by the given Client.
func NewSnapshotCache(c *Client) *SnapshotCache {
	return &SnapshotCache{rdb: c.Underlying()}
}

func quoteKey(instrumentID string) string { return "snap:" + instrumentID + ":quote" }
func depthKey(instrumentID string) string { return "snap:" + instrumentID + ":depth" }

// SetQuote stores the encoded quote payload and its timestamp for an
// instrument.
func (sc *SnapshotCache) SetQuote(ctx context.Context, instrumentID string, quote []byte, ts time.Time) error {
	return sc.set(ctx, quoteKey(instrumentID), quote, ts)
}

// GetQuote retrieves the latest encoded quote payload and timestamp for an
// instrument. Returns domain.ErrNotFound when nothing is cached.
func (sc *SnapshotCache) GetQuote(ctx context.Context, instrumentID string) ([]byte, time.Time, error) {
	return sc.get(ctx, quoteKey(instrumentID))
}

// SetDepth stores the encoded depth payload and its timestamp for an
// instrument.
func (sc *SnapshotCache) SetDepth(ctx context.Context, instrumentID string, depth []byte, ts time.Time) error {
	return sc.set(ctx, depthKey(instrumentID), depth, ts)
}

// GetDepth retrieves the latest encoded depth payload and timestamp for an
// instrument. Returns domain.ErrNotFound when nothing is cached.
func (sc *SnapshotCache) GetDepth(ctx context.Context, instrumentID string) ([]byte, time.Time, error) {
	return sc.get(ctx, depthKey(instrumentID))
}

func (sc *SnapshotCache) set(ctx context.Context, key string, data []byte, ts time.Time) error {
	fields := map[string]interface{}{
		"data": data,
		"ts":   strconv.FormatInt(ts.UnixNano(), 10),
	}
	if err := sc.rdb.HSet(ctx, key, fields).Err(); err != nil {
		return fmt.Errorf("redis: set snapshot %s: %w", key, err)
	}
	return nil
}

func (sc *SnapshotCache) get(ctx context.Context, key string) ([]byte, time.Time, error) {
	vals, err := sc.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("redis: get snapshot %s: %w", key, err)
	}
	if len(vals) == 0 {
		return nil, time.Time{}, domain.ErrNotFound
	}
	data, ok := vals["data"]
	if !ok {
		return nil, time.Time{}, domain.ErrNotFound
	}
	tsStr, ok := vals["ts"]
	if !ok {
		return nil, time.Time{}, domain.ErrNotFound
	}
	tsNano, err := strconv.ParseInt(tsStr, 10, 64)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("redis: parse snapshot ts %s: %w", key, err)
	}
	return []byte(data), time.Unix(0, tsNano), nil
}

// Compile-time interface check.
var _ domain.SnapshotCache = (*SnapshotCache)(nil)
