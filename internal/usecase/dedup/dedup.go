// Package dedup removes or merges overlapping and near-duplicate review
// comments under a count budget.
//
// The engine is a pure function of its inputs: identical input and policy
// always yield identical output, so callers may invoke it repeatedly.
package dedup

import (
	"sort"
	"strings"

	"github.com/bkyoung/pr-council/internal/domain"
)

// DefaultSimilarityThreshold is the Jaccard score at which two same-file
// messages are considered duplicates. Historical tuning moved between 0.5
// and 0.6; 0.6 is used as the precision-biased default.
const DefaultSimilarityThreshold = 0.6

// Policy configures one deduplication pass.
type Policy struct {
	// MergeOverlapping selects merge mode: matching pairs are combined into
	// a synthesized comment. When false, the later candidate is dropped.
	MergeOverlapping bool

	// UseContentSimilarity additionally matches same-file comments whose
	// message keyword sets meet SimilarityThreshold.
	UseContentSimilarity bool

	// SimilarityThreshold is the minimum Jaccard similarity for a content
	// match. Zero falls back to DefaultSimilarityThreshold.
	SimilarityThreshold float64

	// MaxComments caps the kept list. Zero keeps all non-duplicates.
	MaxComments int
}

// Apply deduplicates the comments under the policy. Input comments are
// never mutated; merges synthesize new comments.
func Apply(comments []domain.Comment, policy Policy) []domain.Comment {
	threshold := policy.SimilarityThreshold
	if threshold == 0 {
		threshold = DefaultSimilarityThreshold
	}

	sorted := make([]domain.Comment, len(comments))
	copy(sorted, comments)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Severity.Rank() != sorted[j].Severity.Rank() {
			return sorted[i].Severity.Rank() > sorted[j].Severity.Rank()
		}
		if sorted[i].File != sorted[j].File {
			return sorted[i].File < sorted[j].File
		}
		return sorted[i].LineStart < sorted[j].LineStart
	})

	kept := make([]domain.Comment, 0, len(sorted))
	for _, candidate := range sorted {
		if policy.MaxComments > 0 && len(kept) >= policy.MaxComments {
			break
		}

		matched := false
		for i := 0; i < len(kept); i++ {
			if !isDuplicate(candidate, kept[i], policy, threshold) {
				continue
			}
			if policy.MergeOverlapping {
				// The widened span may now reach any other kept entry, on
				// either side of the match; fold to a fixpoint so no
				// duplicate pair survives the pass.
				merged := merge(kept[i], candidate)
				position := i
				kept = append(kept[:i], kept[i+1:]...)
				for {
					hit := -1
					for j := range kept {
						if isDuplicate(merged, kept[j], policy, threshold) {
							hit = j
							break
						}
					}
					if hit == -1 {
						break
					}
					merged = merge(merged, kept[hit])
					if hit < position {
						position = hit
					}
					kept = append(kept[:hit], kept[hit+1:]...)
				}
				kept = append(kept[:position], append([]domain.Comment{merged}, kept[position:]...)...)
			}
			matched = true
			break
		}

		if !matched {
			kept = append(kept, candidate)
		}
	}

	return kept
}

func isDuplicate(candidate, existing domain.Comment, policy Policy, threshold float64) bool {
	if candidate.Overlaps(existing) {
		return true
	}
	if policy.UseContentSimilarity && candidate.File == existing.File {
		return similarity(candidate.Message, existing.Message) >= threshold
	}
	return false
}

// merge synthesizes a single comment from two duplicates: union line span,
// the higher severity, the first comment's category and suggestion (falling
// back to the second's), and a bulleted concatenation of both messages.
func merge(first, second domain.Comment) domain.Comment {
	merged := first

	if second.LineStart < merged.LineStart {
		merged.LineStart = second.LineStart
	}
	if second.LineEnd > merged.LineEnd {
		merged.LineEnd = second.LineEnd
	}
	merged.Severity = first.Severity.Max(second.Severity)
	if merged.Suggestion == "" {
		merged.Suggestion = second.Suggestion
	}
	merged.Message = bulletJoin(first.Message, second.Message)

	return merged
}

// bulletJoin concatenates messages as a bulleted list, flattening messages
// that are already bulleted from an earlier merge.
func bulletJoin(first, second string) string {
	var b strings.Builder
	if strings.HasPrefix(first, "- ") {
		b.WriteString(first)
	} else {
		b.WriteString("- ")
		b.WriteString(first)
	}
	b.WriteString("\n- ")
	b.WriteString(second)
	return b.String()
}
