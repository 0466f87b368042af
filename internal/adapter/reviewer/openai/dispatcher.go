package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/bkyoung/pr-council/internal/domain"
	"github.com/bkyoung/pr-council/internal/usecase/council"
)

const systemPrompt = `You are a code review assistant. Review the supplied unified diffs and report findings as JSON: {"findings": [{"file", "line_start", "line_end", "severity", "category", "message", "suggestion"}]}. Severity is one of info, warning, error. Line numbers refer to the new side of the diff. Respond with JSON only.`

// Backend is the completion call consumed by the dispatcher. Satisfied by
// HTTPClient; tests substitute fakes.
type Backend interface {
	Call(ctx context.Context, system, prompt string, maxTokens int) (*APIResponse, error)
}

// Profile carries the per-reviewer prompt additions and output budget.
type Profile struct {
	// Instructions extend the system prompt with the reviewer's focus and,
	// for convention reviewers, the sanitized repo policy statements.
	Instructions string

	// MaxTokens bounds the completion. Zero leaves the backend default.
	MaxTokens int
}

type backendEntry struct {
	client  Backend
	profile Profile
}

// Dispatcher routes review batches to registered reviewer backends. It
// implements the council Dispatcher port.
type Dispatcher struct {
	backends map[string]backendEntry
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{backends: make(map[string]backendEntry)}
}

// Register binds a reviewer identity to a backend and profile.
func (d *Dispatcher) Register(reviewerID string, client Backend, profile Profile) {
	d.backends[reviewerID] = backendEntry{client: client, profile: profile}
}

// Review sends one batch to the reviewer's backend. A finish reason of
// "length" marks the result truncated; returned findings are still used.
func (d *Dispatcher) Review(ctx context.Context, batch []domain.PatchFile, reviewerID string) (council.DispatchResult, error) {
	entry, ok := d.backends[reviewerID]
	if !ok {
		return council.DispatchResult{}, fmt.Errorf("no backend registered for reviewer %s", reviewerID)
	}

	system := systemPrompt
	if entry.profile.Instructions != "" {
		system += "\n\n" + entry.profile.Instructions
	}

	resp, err := entry.client.Call(ctx, system, buildPrompt(batch), entry.profile.MaxTokens)
	if err != nil {
		return council.DispatchResult{}, err
	}

	return council.DispatchResult{
		Findings:  parseFindings(resp.Text),
		Truncated: resp.FinishReason == "length",
		Usage: domain.TokenUsage{
			InputTokens:  resp.TokensIn,
			OutputTokens: resp.TokensOut,
			TotalTokens:  resp.TokensIn + resp.TokensOut,
		},
	}, nil
}

// buildPrompt renders the batch as one diff document per file.
func buildPrompt(batch []domain.PatchFile) string {
	var b strings.Builder
	for i, file := range batch {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "### %s\n```diff\n%s\n```", file.Filename, file.Patch)
	}
	return b.String()
}

var codeFenceRE = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// parseFindings extracts findings from the model output. Output that cannot
// be parsed yields no findings; schema validation of individual entries
// happens downstream at the ingestion boundary.
func parseFindings(text string) []domain.Finding {
	jsonText := strings.TrimSpace(text)
	if match := codeFenceRE.FindStringSubmatch(jsonText); match != nil {
		jsonText = match[1]
	}

	var wrapped struct {
		Findings []domain.Finding `json:"findings"`
	}
	if err := json.Unmarshal([]byte(jsonText), &wrapped); err == nil && wrapped.Findings != nil {
		return wrapped.Findings
	}

	var bare []domain.Finding
	if err := json.Unmarshal([]byte(jsonText), &bare); err == nil {
		return bare
	}

	return nil
}
