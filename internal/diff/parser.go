// Package diff parses unified-diff patches into the set of new-side line
// numbers that are legal targets for inline review comments.
//
// Review APIs only accept comments on lines present in the diff's "new"
// side: additions ('+') and context (' ') lines. Deletions ('-') have no
// new-side line number and are never valid anchors.
package diff

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/bkyoung/pr-council/internal/domain"
)

// hunkHeaderRE matches hunk headers like "@@ -10,5 +12,8 @@ optional context".
// Group 1 captures the new-side start line.
var hunkHeaderRE = regexp.MustCompile(`^@@ -\d+(?:,\d+)? \+(\d+)(?:,(\d+))? @@`)

// FileLineMap maps a filename to the set of line numbers valid for inline
// comments in that file's diff.
type FileLineMap map[string]map[int]bool

// ValidLines parses a unified-diff patch and returns the set of new-side
// line numbers valid for inline comments.
//
// Malformed patches (no hunk header) yield an empty set, never an error:
// comments against such a file are simply unmappable and flow to the
// overflow path.
func ValidLines(patch string) map[int]bool {
	valid := make(map[int]bool)
	if patch == "" {
		return valid
	}

	currentNewLine := 0
	inHunk := false

	for _, line := range strings.Split(patch, "\n") {
		if match := hunkHeaderRE.FindStringSubmatch(line); match != nil {
			currentNewLine, _ = strconv.Atoi(match[1])
			inHunk = true
			continue
		}

		if !inHunk || line == "" {
			continue
		}

		switch line[0] {
		case '+', ' ':
			valid[currentNewLine] = true
			currentNewLine++
		case '-':
			// Deletions have no new-side line number.
		case '\\':
			// "\ No newline at end of file" marker.
		}
	}

	return valid
}

// BuildFileLineMap derives the valid-line map for every patched file.
// Files with an empty filename or patch are omitted.
func BuildFileLineMap(files []domain.PatchFile) FileLineMap {
	result := make(FileLineMap, len(files))
	for _, file := range files {
		if file.Filename == "" || file.Patch == "" {
			continue
		}
		result[file.Filename] = ValidLines(file.Patch)
	}
	return result
}

// IsValidLine reports whether the line number is a legal inline-comment
// target for the file. Unknown files are never valid.
func (m FileLineMap) IsValidLine(filename string, line int) bool {
	valid, ok := m[filename]
	if !ok {
		return false
	}
	return valid[line]
}

// Snap returns the closest valid line for the file within maxDistance.
//
// If the exact line is valid it is returned unchanged. Otherwise the nearest
// valid line wins; on equal distance the lower line number is kept. The
// second return value is false when no valid line lies within the bound.
func (m FileLineMap) Snap(filename string, line, maxDistance int) (int, bool) {
	valid, ok := m[filename]
	if !ok || len(valid) == 0 {
		return 0, false
	}

	if valid[line] {
		return line, true
	}

	candidates := make([]int, 0, len(valid))
	for candidate := range valid {
		candidates = append(candidates, candidate)
	}
	sort.Ints(candidates)

	bestLine := 0
	bestDistance := maxDistance + 1
	for _, candidate := range candidates {
		distance := candidate - line
		if distance < 0 {
			distance = -distance
		}
		if distance <= maxDistance && distance < bestDistance {
			bestDistance = distance
			bestLine = candidate
		}
	}

	if bestDistance > maxDistance {
		return 0, false
	}
	return bestLine, true
}

// ExtractLine returns the source text at the given new-side line number with
// the diff prefix stripped. The second return value is false when the line
// is not present in the patch.
func ExtractLine(patch string, target int) (string, bool) {
	if patch == "" {
		return "", false
	}

	currentNewLine := 0
	inHunk := false

	for _, line := range strings.Split(patch, "\n") {
		if match := hunkHeaderRE.FindStringSubmatch(line); match != nil {
			currentNewLine, _ = strconv.Atoi(match[1])
			inHunk = true
			continue
		}

		if !inHunk || line == "" {
			continue
		}

		switch line[0] {
		case '+', ' ':
			if currentNewLine == target {
				return line[1:], true
			}
			currentNewLine++
		}
	}

	return "", false
}
