package domain

import (
	"context"
	"time"
)

// SnapshotCache stores the latest published MarketSnapshot encoding, keyed
// by canonical instrument id, so detector instances spread across
// processes read a consistent cut without re-running the aggregator merge.
type SnapshotCache interface {
	SetQuote(ctx context.Context, instrumentID string, quote []byte, ts time.Time) error
	GetQuote(ctx context.Context, instrumentID string) ([]byte, time.Time, error)
	SetDepth(ctx context.Context, instrumentID string, depth []byte, ts time.Time) error
	GetDepth(ctx context.Context, instrumentID string) ([]byte, time.Time, error)
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	Wait(ctx context.Context, key string) error
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// StreamMessage represents a single entry from a Redis stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub and durable streams used to carry market
// events, mispricing opportunities, and validated arbitrage opportunities
// between pipeline stages that may run in separate processes.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}
