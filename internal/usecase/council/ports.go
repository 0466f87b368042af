package council

import (
	"context"

	"github.com/bkyoung/pr-council/internal/domain"
)

// Reviewer identifies one member of the council and how files route to it.
type Reviewer struct {
	ID string

	// Extensions limits which files the reviewer sees (lower-cased, with
	// leading dot). Empty means all files.
	Extensions []string

	// Convention marks a convention-enforcing reviewer: it only runs when the
	// repo policy defines conventions and its output is deduplicated
	// separately with content similarity disabled.
	Convention bool
}

// DispatchResult is what a reviewer backend returns for one batch.
type DispatchResult struct {
	Findings []domain.Finding

	// Truncated signals the backend's output was cut off mid-generation.
	// Returned findings are still used; the truncation surfaces as a warning.
	Truncated bool

	Usage domain.TokenUsage
}

// Dispatcher is the outbound port to the reviewer backends. How findings are
// produced is opaque to the pipeline.
type Dispatcher interface {
	Review(ctx context.Context, batch []domain.PatchFile, reviewerID string) (DispatchResult, error)
}

// Redactor scrubs secrets from outbound patch text.
type Redactor interface {
	Redact(input string) (string, error)
}

// Logger provides structured logging for the council use case.
type Logger interface {
	// LogWarning logs a warning message with structured fields.
	LogWarning(ctx context.Context, message string, fields map[string]interface{})

	// LogInfo logs an informational message with structured fields.
	LogInfo(ctx context.Context, message string, fields map[string]interface{})
}
