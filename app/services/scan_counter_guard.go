package services

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// ScanCounterGuard tracks the highest scan counter observed per chip UID and
// flags scans whose counter does not advance past it. The guard is advisory:
// a flagged scan is reported to the caller, never rejected, and guard
// failures degrade to "not replayed" so cache trouble cannot break scans.
// With no backing store configured every scan passes and replay protection
// is explicitly not guaranteed.
type ScanCounterGuard interface {
	Observe(ctx context.Context, uid string, counter uint32) (replayed bool, err error)
}

// counterScript atomically keeps the per-UID maximum so two concurrent scans
// cannot both record the same counter as fresh.
var counterScript = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]))
local counter = tonumber(ARGV[1])
if current == nil or counter > current then
	redis.call('SET', KEYS[1], counter)
	return 0
end
return 1
`)

// RedisScanCounterGuard implements ScanCounterGuard on a Redis cache
type RedisScanCounterGuard struct {
	rc        *redis.Client
	keyPrefix string
}

// NewRedisScanCounterGuard creates a Redis-backed scan counter guard
func NewRedisScanCounterGuard(rc *redis.Client, keyPrefix string) ScanCounterGuard {
	if keyPrefix == "" {
		keyPrefix = "leaftag:scan_counter"
	}
	return &RedisScanCounterGuard{rc: rc, keyPrefix: keyPrefix}
}

// Observe records the counter for the UID and reports whether it failed to
// advance past the highest value previously seen.
func (g *RedisScanCounterGuard) Observe(ctx context.Context, uid string, counter uint32) (bool, error) {
	key := fmt.Sprintf("%s:%s", g.keyPrefix, uid)
	stale, err := counterScript.Run(ctx, g.rc, []string{key}, counter).Int()
	if err != nil {
		return false, fmt.Errorf("scan counter guard unavailable: %w", err)
	}
	return stale == 1, nil
}

// NoopScanCounterGuard is used when no cache is configured; every scan is
// treated as fresh.
type NoopScanCounterGuard struct{}

// NewNoopScanCounterGuard creates a guard that never flags a scan
func NewNoopScanCounterGuard() ScanCounterGuard {
	return &NoopScanCounterGuard{}
}

// Observe always reports the scan as fresh
func (g *NoopScanCounterGuard) Observe(ctx context.Context, uid string, counter uint32) (bool, error) {
	return false, nil
}
