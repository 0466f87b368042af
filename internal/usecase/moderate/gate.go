// Package moderate applies a rule-based sanity pass over raw review
// comments before deduplication.
//
// Two independent rule families run in a fixed order: known false-positive
// drops first, then hedge downgrades. A dropped comment never reaches the
// downgrade step; a downgraded comment is never dropped.
package moderate

import (
	"strings"

	"github.com/bkyoung/pr-council/internal/domain"
)

// Gate filters and downgrades raw comments. All matching is case-insensitive
// substring matching on the message.
type Gate struct {
	dropRules    []DropRule
	hedgePhrases []string
}

// NewGate constructs a gate from explicit rule tables.
func NewGate(dropRules []DropRule, hedgePhrases []string) *Gate {
	return &Gate{dropRules: dropRules, hedgePhrases: hedgePhrases}
}

// NewDefaultGate constructs a gate with the built-in rule tables.
func NewDefaultGate() *Gate {
	return NewGate(DefaultDropRules(), DefaultHedgePhrases())
}

// Apply runs the gate over the full raw comment list and returns the
// sanitized list. Input comments are never mutated; downgrades produce
// copies.
func (g *Gate) Apply(comments []domain.Comment) []domain.Comment {
	kept := make([]domain.Comment, 0, len(comments))
	for _, comment := range comments {
		if g.shouldDrop(comment) {
			continue
		}
		kept = append(kept, g.downgradeHedged(comment))
	}
	return kept
}

// shouldDrop reports whether the comment matches a known false-positive rule.
func (g *Gate) shouldDrop(comment domain.Comment) bool {
	messageLower := strings.ToLower(comment.Message)
	for _, rule := range g.dropRules {
		if rule.Source != "" && rule.Source != comment.Source {
			continue
		}
		if containsAll(messageLower, rule.Keywords) {
			return true
		}
	}
	return false
}

// downgradeHedged rewrites an error-severity comment containing hedging
// language to warning severity. It never drops a comment, only lowers
// confidence.
func (g *Gate) downgradeHedged(comment domain.Comment) domain.Comment {
	if comment.Severity != domain.SeverityError {
		return comment
	}
	messageLower := strings.ToLower(comment.Message)
	for _, phrase := range g.hedgePhrases {
		if strings.Contains(messageLower, phrase) {
			downgraded := comment
			downgraded.Severity = domain.SeverityWarning
			return downgraded
		}
	}
	return comment
}

func containsAll(s string, keywords []string) bool {
	if len(keywords) == 0 {
		return false
	}
	for _, keyword := range keywords {
		if !strings.Contains(s, keyword) {
			return false
		}
	}
	return true
}
