package domain

import "context"

// MarketCache is a read-through cache for hot market snapshots.
type MarketCache interface {
	Set(ctx context.Context, m Market) error
	// Get returns ErrNotFound on a cache miss.
	Get(ctx context.Context, marketID string) (Market, error)
	Invalidate(ctx context.Context, marketID string) error
}

// RateLimiter bounds request rates per caller key.
type RateLimiter interface {
	// Allow reports whether one more event fits under the key's window and
	// counts it when it does.
	Allow(ctx context.Context, key string) (bool, error)
}

// Broadcaster fans an event out to connected clients.
type Broadcaster interface {
	Publish(event string, payload any)
}
