// Package skip detects opt-out markers that let authors bypass the council
// for a pull request.
package skip

import (
	"regexp"
	"strings"
)

// triggerPattern matches [skip council] or [skip-council], case-insensitive.
var triggerPattern = regexp.MustCompile(`(?i)\[skip[ -]council\]`)

// ContainsTrigger reports whether text carries a skip marker.
func ContainsTrigger(text string) bool {
	return triggerPattern.MatchString(text)
}

// Result names where a skip marker was found.
type Result struct {
	ShouldSkip bool
	Reason     string
}

// Check examines the pull request title and description for skip markers.
// The title wins when both carry one.
func Check(title, description string) Result {
	if ContainsTrigger(strings.TrimSpace(title)) {
		return Result{ShouldSkip: true, Reason: "pull request title"}
	}
	if ContainsTrigger(description) {
		return Result{ShouldSkip: true, Reason: "pull request description"}
	}
	return Result{}
}
