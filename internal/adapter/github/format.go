package github

import (
	"fmt"
	"strings"

	"github.com/bkyoung/pr-council/internal/domain"
)

// FormatInlineComment renders one comment as an inline review comment body.
func FormatInlineComment(comment domain.Comment) string {
	var b strings.Builder

	fmt.Fprintf(&b, "**%s** · **%s** · %s\n\n%s",
		comment.Source,
		strings.ToUpper(string(comment.Severity)),
		comment.Category,
		comment.Message,
	)

	if comment.Suggestion != "" {
		fmt.Fprintf(&b, "\n\n**Suggestion:** %s", comment.Suggestion)
	}

	return b.String()
}

// FormatFailureComment renders the fallback comment posted when review
// aggregation failed; distinct from a normal review so readers know the
// change was not actually reviewed.
func FormatFailureComment(reason string) string {
	return fmt.Sprintf("## Council Review\n\n"+
		":warning: The review could not be completed: %s\n\n"+
		"This is not a review result. Push a new commit or re-trigger to retry.", reason)
}
