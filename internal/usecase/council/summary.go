package council

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/bkyoung/pr-council/internal/domain"
)

// summaryHeader opens every review body.
const summaryHeader = "## Council Review"

// maxExcerptLen bounds the error excerpts quoted in the summary.
const maxExcerptLen = 80

var titleCaser = cases.Title(language.English)

// BuildSummary renders the final report: warnings block, risk level, counts
// by severity and category, top error excerpts, and the overflow comments
// that could not be posted inline.
func BuildSummary(inline, overflow []domain.Comment, warnings []domain.Warning) string {
	all := make([]domain.Comment, 0, len(inline)+len(overflow))
	all = append(all, inline...)
	all = append(all, overflow...)

	var lines []string
	lines = append(lines, summaryHeader, "")

	if len(warnings) > 0 {
		lines = append(lines, "**Warnings:**")
		for _, warning := range warnings {
			lines = append(lines, "- "+warning.Message)
		}
		lines = append(lines, "")
	}

	if len(all) == 0 {
		lines = append(lines, "No issues found. The code looks good.")
		return strings.Join(lines, "\n")
	}

	errorCount, warningCount, infoCount := 0, 0, 0
	byCategory := make(map[string]int)
	for _, comment := range all {
		switch comment.Severity {
		case domain.SeverityError:
			errorCount++
		case domain.SeverityWarning:
			warningCount++
		case domain.SeverityInfo:
			infoCount++
		}
		byCategory[comment.Category]++
	}

	risk := "LOW"
	if errorCount > 0 {
		risk = "HIGH"
	} else if warningCount > 2 {
		risk = "MEDIUM"
	}

	lines = append(lines,
		fmt.Sprintf("**Risk Level:** %s", risk),
		"",
		fmt.Sprintf("**Issues Found:** %d total", len(all)),
		fmt.Sprintf("- Errors: %d", errorCount),
		fmt.Sprintf("- Warnings: %d", warningCount),
		fmt.Sprintf("- Info: %d", infoCount),
		"",
		"**By Category:**",
	)

	categories := make([]string, 0, len(byCategory))
	for category := range byCategory {
		categories = append(categories, category)
	}
	sort.Strings(categories)
	for _, category := range categories {
		lines = append(lines, fmt.Sprintf("- %s: %d", displayCategory(category), byCategory[category]))
	}

	if excerpts := topErrorExcerpts(all); len(excerpts) > 0 {
		lines = append(lines, "", "**Top Concerns:**")
		lines = append(lines, excerpts...)
	}

	if len(overflow) > 0 {
		lines = append(lines, "", "**Not shown inline:**")
		for _, comment := range overflow {
			lines = append(lines, fmt.Sprintf("- [%s:%d] %s (%s)",
				comment.File, comment.LineStart, comment.Message, comment.Severity))
		}
	}

	return strings.Join(lines, "\n")
}

// topErrorExcerpts returns up to three truncated error messages.
func topErrorExcerpts(comments []domain.Comment) []string {
	var excerpts []string
	for _, comment := range comments {
		if comment.Severity != domain.SeverityError {
			continue
		}
		excerpts = append(excerpts, fmt.Sprintf("- [%s:%d] %s",
			comment.File, comment.LineStart, truncateMessage(comment.Message)))
		if len(excerpts) == 3 {
			break
		}
	}
	return excerpts
}

// truncateMessage cuts on a rune boundary so multi-byte messages stay
// valid UTF-8.
func truncateMessage(message string) string {
	runes := []rune(message)
	if len(runes) <= maxExcerptLen {
		return message
	}
	return string(runes[:maxExcerptLen]) + "..."
}

// displayCategory renders a category slug for humans: "missing-deps" becomes
// "Missing Deps".
func displayCategory(category string) string {
	cleaned := strings.NewReplacer("-", " ", "_", " ").Replace(category)
	return titleCaser.String(cleaned)
}
