// Package static provides a deterministic reviewer backend for end-to-end
// runs and tests; no network calls are made.
package static

import (
	"context"
	"fmt"
	"sort"

	"github.com/bkyoung/pr-council/internal/diff"
	"github.com/bkyoung/pr-council/internal/domain"
	"github.com/bkyoung/pr-council/internal/usecase/council"
)

// Dispatcher implements the council Dispatcher port with canned findings:
// one info finding on the first valid diff line of each file in the batch.
type Dispatcher struct{}

// NewDispatcher constructs a static Dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

// Review produces a deterministic result for the batch.
func (d *Dispatcher) Review(ctx context.Context, batch []domain.PatchFile, reviewerID string) (council.DispatchResult, error) {
	var findings []domain.Finding

	for _, file := range batch {
		line, ok := firstValidLine(file.Patch)
		if !ok {
			continue
		}
		findings = append(findings, domain.Finding{
			File:      file.Filename,
			LineStart: line,
			LineEnd:   line,
			Severity:  domain.SeverityInfo,
			Category:  "style",
			Message:   fmt.Sprintf("static %s review placeholder for %s", reviewerID, file.Filename),
		})
	}

	return council.DispatchResult{Findings: findings}, nil
}

func firstValidLine(patch string) (int, bool) {
	valid := diff.ValidLines(patch)
	if len(valid) == 0 {
		return 0, false
	}
	lines := make([]int, 0, len(valid))
	for line := range valid {
		lines = append(lines, line)
	}
	sort.Ints(lines)
	return lines[0], true
}
