// Package anchor maps deduplicated comments onto valid diff lines, snapping
// near-misses and routing the rest to an overflow list.
package anchor

import (
	"github.com/bkyoung/pr-council/internal/diff"
	"github.com/bkyoung/pr-council/internal/domain"
)

// Config bounds anchoring behavior.
type Config struct {
	// MaxSnapDistance is how far a comment may be moved to reach a valid
	// diff line before it is routed to overflow.
	MaxSnapDistance int

	// MaxInline caps the number of inline comments. Anchored comments
	// beyond the cap overflow into the summary. Zero means no cap.
	MaxInline int
}

// DefaultConfig returns the production anchoring bounds.
func DefaultConfig() Config {
	return Config{MaxSnapDistance: 5, MaxInline: 20}
}

// Result splits comments into the inline set and the overflow list.
// Overflowed comments are rendered in the summary; nothing surviving
// deduplication is ever lost.
type Result struct {
	Inline   []domain.Comment
	Overflow []domain.Comment
}

// Resolve anchors each comment to a valid diff line. Comments already on a
// valid line are kept unchanged; the rest snap to the closest valid line
// within the distance bound or overflow. Anchored comments past MaxInline
// also overflow.
func Resolve(comments []domain.Comment, lineMap diff.FileLineMap, cfg Config) Result {
	result := Result{
		Inline:   make([]domain.Comment, 0, len(comments)),
		Overflow: make([]domain.Comment, 0),
	}

	for _, comment := range comments {
		line, ok := lineMap.Snap(comment.File, comment.LineStart, cfg.MaxSnapDistance)
		if !ok {
			result.Overflow = append(result.Overflow, comment)
			continue
		}

		anchored := comment
		anchored.LineStart = line
		if anchored.LineEnd < line {
			anchored.LineEnd = line
		}

		if cfg.MaxInline > 0 && len(result.Inline) >= cfg.MaxInline {
			result.Overflow = append(result.Overflow, anchored)
			continue
		}
		result.Inline = append(result.Inline, anchored)
	}

	return result
}
