package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// FloodGate spaces outbound IRC commands so the server does not throttle or
// disconnect the client. Keepalive replies never pass through it.
type FloodGate struct {
	limiter *rate.Limiter
}

// NewFloodGate allows burst lines immediately, then one line per interval.
// An interval of zero disables throttling.
func NewFloodGate(interval time.Duration, burst int) *FloodGate {
	if burst < 1 {
		burst = 1
	}
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &FloodGate{limiter: rate.NewLimiter(limit, burst)}
}

// Wait blocks until one line may be sent or ctx is done
func (g *FloodGate) Wait(ctx context.Context) error {
	return g.limiter.Wait(ctx)
}

// Allow reports whether a line may be sent right now, consuming a token if so
func (g *FloodGate) Allow() bool {
	return g.limiter.Allow()
}
