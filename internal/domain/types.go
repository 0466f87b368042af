package domain

import (
	"errors"
	"fmt"
)

// Severity classifies how serious a finding is.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Rank returns the numeric ordering of a severity (higher is more severe).
// Unknown severities rank below info.
func (s Severity) Rank() int {
	switch s {
	case SeverityError:
		return 3
	case SeverityWarning:
		return 2
	case SeverityInfo:
		return 1
	default:
		return 0
	}
}

// Valid reports whether the severity is a member of the closed enum.
func (s Severity) Valid() bool {
	return s == SeverityInfo || s == SeverityWarning || s == SeverityError
}

// Max returns the higher of two severities.
func (s Severity) Max(other Severity) Severity {
	if other.Rank() > s.Rank() {
		return other
	}
	return s
}

// PatchFile is one file's unified-diff hunk text. Immutable once fetched.
type PatchFile struct {
	Filename string `json:"filename"`
	Patch    string `json:"patch"`
}

// PullRequest is the normalized pull request representation consumed by the
// pipeline. It is not forge-specific.
type PullRequest struct {
	Number  int         `json:"number"`
	Title   string      `json:"title"`
	Body    string      `json:"body,omitempty"`
	Files   []PatchFile `json:"files"`
	BaseSHA string      `json:"base_sha,omitempty"`
	HeadSHA string      `json:"head_sha,omitempty"`
}

// Finding is a single raw observation from a reviewer, before the source
// identifier is attached.
type Finding struct {
	File       string   `json:"file"`
	LineStart  int      `json:"line_start"`
	LineEnd    int      `json:"line_end"`
	Severity   Severity `json:"severity"`
	Category   string   `json:"category"`
	Message    string   `json:"message"`
	Suggestion string   `json:"suggestion,omitempty"`
}

// Validate enforces the ingestion schema: line numbers must be positive and
// ordered, severity must be a known value, and file/message must be present.
// Findings that fail validation are rejected before moderation.
func (f Finding) Validate() error {
	if f.File == "" {
		return errors.New("finding has empty file")
	}
	if f.Message == "" {
		return errors.New("finding has empty message")
	}
	if f.LineStart < 1 {
		return fmt.Errorf("finding line_start %d is below 1", f.LineStart)
	}
	if f.LineEnd < f.LineStart {
		return fmt.Errorf("finding line_end %d precedes line_start %d", f.LineEnd, f.LineStart)
	}
	if !f.Severity.Valid() {
		return fmt.Errorf("finding severity %q is not one of info, warning, error", f.Severity)
	}
	return nil
}

// Comment is a finding tagged with the reviewer that produced it. Comments
// are never mutated after construction; the dedup engine synthesizes new
// comments when merging.
type Comment struct {
	Finding
	Source string `json:"source"`
}

// NewComment attaches a source identifier to a finding. The source is always
// injected in code, never taken from reviewer output.
func NewComment(source string, f Finding) Comment {
	return Comment{Finding: f, Source: source}
}

// Overlaps reports whether two comments target intersecting line ranges in
// the same file.
func (c Comment) Overlaps(other Comment) bool {
	if c.File != other.File {
		return false
	}
	return !(c.LineStart > other.LineEnd || c.LineEnd < other.LineStart)
}

// WarningKind enumerates the reasons input had to be dropped or truncated.
type WarningKind string

const (
	WarnSkippedLargeFile WarningKind = "skipped_large_file"
	WarnBatchOutputLimit WarningKind = "batch_output_limit"
	WarnRateLimited      WarningKind = "rate_limited"
)

// Warning surfaces input that could not be fully reviewed. Warnings are
// always carried through to the final review, never silently swallowed.
type Warning struct {
	Kind    WarningKind `json:"kind"`
	Message string      `json:"message"`
	File    string      `json:"file,omitempty"`
}

// CouncilReview is the final decision set handed to the publisher.
type CouncilReview struct {
	Comments []Comment  `json:"comments"`
	Warnings []Warning  `json:"warnings"`
	Summary  string     `json:"summary"`
	Meta     ReviewMeta `json:"meta"`
}
