// Package store defines the persistence port for delivery idempotency
// records.
package store

import (
	"context"
	"time"
)

// DeliveryRecord marks a delivery identifier as processed until ExpiresAt.
// The record, not the review result, is what gets persisted.
type DeliveryRecord struct {
	DeliveryID string
	ExpiresAt  time.Time
}

// DeliveryStore persists idempotency records.
//
// MarkProcessed must be atomic first-writer-wins: when two concurrent
// deliveries race on the same identifier, exactly one insert succeeds.
type DeliveryStore interface {
	// Seen reports whether an unexpired record exists for the delivery.
	Seen(ctx context.Context, deliveryID string) (bool, error)

	// MarkProcessed inserts a record with the given TTL. It returns true
	// when this call won the insert and false when a record already existed.
	MarkProcessed(ctx context.Context, deliveryID string, ttl time.Duration) (bool, error)

	// Close releases any underlying resources.
	Close() error
}
