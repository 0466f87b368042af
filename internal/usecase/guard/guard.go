// Package guard decides whether a review trigger should run at all: it
// rejects duplicate webhook deliveries and rate-limited tenants before any
// reviewer is invoked.
package guard

import (
	"context"
	"time"

	"github.com/bkyoung/pr-council/internal/store"
)

// Rejection reasons reported in Outcome.Reason.
const (
	ReasonDuplicateDelivery = "duplicate_delivery"
	ReasonRateLimited       = "rate_limited"
)

// Outcome is the admission decision for one trigger.
type Outcome struct {
	Allowed bool
	// Reason is set when Allowed is false.
	Reason string
	// RetryAfter is set for rate-limited rejections.
	RetryAfter time.Duration
}

// Guard combines delivery idempotency and per-tenant rate limiting.
//
// Store errors fail open: a broken store must not block reviews, it only
// costs the duplicate protection for that one delivery.
type Guard struct {
	store   store.DeliveryStore
	limiter *RateLimiter
	ttl     time.Duration
	logger  Logger
}

// New creates a guard. Store may be nil to disable idempotency checks and
// limiter may be nil to disable rate limiting.
func New(deliveryStore store.DeliveryStore, limiter *RateLimiter, ttl time.Duration, logger Logger) *Guard {
	return &Guard{
		store:   deliveryStore,
		limiter: limiter,
		ttl:     ttl,
		logger:  logger,
	}
}

// Check admits or rejects a trigger. An empty deliveryID skips the
// idempotency check; an empty tenant skips rate limiting.
func (g *Guard) Check(ctx context.Context, deliveryID, tenant string) Outcome {
	if g.store != nil && deliveryID != "" {
		seen, err := g.store.Seen(ctx, deliveryID)
		if err != nil {
			g.logWarning(ctx, "idempotency check failed, proceeding", map[string]interface{}{
				"delivery_id": deliveryID,
				"error":       err.Error(),
			})
		} else if seen {
			return Outcome{Allowed: false, Reason: ReasonDuplicateDelivery}
		}
	}

	if g.limiter != nil && tenant != "" {
		allowed, retryAfter := g.limiter.Allow(tenant)
		if !allowed {
			return Outcome{Allowed: false, Reason: ReasonRateLimited, RetryAfter: retryAfter}
		}
	}

	return Outcome{Allowed: true}
}

// Commit records an admitted trigger: it claims the delivery identifier and
// counts the event against the tenant's window. Returns false when another
// process claimed the delivery first.
func (g *Guard) Commit(ctx context.Context, deliveryID, tenant string) bool {
	won := true
	if g.store != nil && deliveryID != "" {
		var err error
		won, err = g.store.MarkProcessed(ctx, deliveryID, g.ttl)
		if err != nil {
			g.logWarning(ctx, "failed to record delivery, proceeding", map[string]interface{}{
				"delivery_id": deliveryID,
				"error":       err.Error(),
			})
			won = true
		}
	}

	if won && g.limiter != nil && tenant != "" {
		g.limiter.Record(tenant)
	}
	return won
}

func (g *Guard) logWarning(ctx context.Context, message string, fields map[string]interface{}) {
	if g.logger != nil {
		g.logger.LogWarning(ctx, message, fields)
	}
}
