package diff_test

import (
	"testing"

	"github.com/bkyoung/pr-council/internal/diff"
	"github.com/bkyoung/pr-council/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestValidLines_MixedHunk(t *testing.T) {
	patch := "@@ -1,3 +1,4 @@\n a\n+b\n c\n-d\n"

	valid := diff.ValidLines(patch)

	// Lines 1 (' a'), 2 ('+b'), 3 (' c'); '-d' contributes no new-side line.
	assert.Equal(t, map[int]bool{1: true, 2: true, 3: true}, valid)
}

func TestValidLines_DeletionsNeverIncluded(t *testing.T) {
	patch := "@@ -10,4 +10,2 @@\n keep\n-gone\n-also gone\n keep too\n"

	valid := diff.ValidLines(patch)

	assert.Equal(t, map[int]bool{10: true, 11: true}, valid)
}

func TestValidLines_MultipleHunks(t *testing.T) {
	patch := "@@ -1,2 +1,3 @@\n one\n+two\n three\n@@ -20,2 +21,3 @@\n a\n+b\n c\n"

	valid := diff.ValidLines(patch)

	assert.True(t, valid[1])
	assert.True(t, valid[2])
	assert.True(t, valid[3])
	assert.True(t, valid[21])
	assert.True(t, valid[22])
	assert.True(t, valid[23])
	assert.Len(t, valid, 6)
}

func TestValidLines_NoNewlineMarkerIgnored(t *testing.T) {
	patch := "@@ -1,1 +1,1 @@\n+only line\n\\ No newline at end of file\n"

	valid := diff.ValidLines(patch)

	assert.Equal(t, map[int]bool{1: true}, valid)
}

func TestValidLines_MalformedPatchYieldsEmptySet(t *testing.T) {
	assert.Empty(t, diff.ValidLines(""))
	assert.Empty(t, diff.ValidLines("this is not a diff at all"))
	// Lines before any hunk header are ignored.
	assert.Empty(t, diff.ValidLines("+orphan addition\n context\n"))
}

func TestValidLines_HunkHeaderWithoutLength(t *testing.T) {
	patch := "@@ -5 +7 @@\n+single\n"

	valid := diff.ValidLines(patch)

	assert.Equal(t, map[int]bool{7: true}, valid)
}

func TestValidLines_Deterministic(t *testing.T) {
	patch := "@@ -1,3 +1,4 @@\n a\n+b\n c\n-d\n"

	first := diff.ValidLines(patch)
	second := diff.ValidLines(patch)

	assert.Equal(t, first, second)
}

func TestBuildFileLineMap(t *testing.T) {
	files := []domain.PatchFile{
		{Filename: "a.go", Patch: "@@ -1,1 +1,2 @@\n keep\n+add\n"},
		{Filename: "b.go", Patch: ""},
		{Filename: "", Patch: "@@ -1,1 +1,1 @@\n x\n"},
	}

	m := diff.BuildFileLineMap(files)

	assert.Len(t, m, 1)
	assert.True(t, m.IsValidLine("a.go", 1))
	assert.True(t, m.IsValidLine("a.go", 2))
	assert.False(t, m.IsValidLine("a.go", 3))
	assert.False(t, m.IsValidLine("b.go", 1))
	assert.False(t, m.IsValidLine("missing.go", 1))
}

func TestSnap_ExactLineUnchanged(t *testing.T) {
	m := diff.FileLineMap{"a.go": {40: true, 41: true, 55: true, 56: true}}

	line, ok := m.Snap("a.go", 41, 5)

	assert.True(t, ok)
	assert.Equal(t, 41, line)
}

func TestSnap_NearestWithinBound(t *testing.T) {
	m := diff.FileLineMap{"a.go": {40: true, 41: true, 55: true, 56: true}}

	// Nearest to 50 is 55 (distance 5), within the default bound.
	line, ok := m.Snap("a.go", 50, 5)

	assert.True(t, ok)
	assert.Equal(t, 55, line)
}

func TestSnap_BeyondBoundFails(t *testing.T) {
	m := diff.FileLineMap{"a.go": {40: true, 41: true, 60: true, 61: true}}

	// Nearest distances are 9 and 10, both beyond the bound of 5.
	_, ok := m.Snap("a.go", 50, 5)

	assert.False(t, ok)
}

func TestSnap_TieBreaksToLowerLine(t *testing.T) {
	m := diff.FileLineMap{"a.go": {48: true, 52: true}}

	line, ok := m.Snap("a.go", 50, 5)

	assert.True(t, ok)
	assert.Equal(t, 48, line)
}

func TestSnap_UnknownFile(t *testing.T) {
	m := diff.FileLineMap{}

	_, ok := m.Snap("missing.go", 10, 5)

	assert.False(t, ok)
}

func TestExtractLine(t *testing.T) {
	patch := "@@ -1,3 +1,4 @@\n alpha\n+beta\n gamma\n-deleted\n"

	tests := []struct {
		line   int
		want   string
		wantOK bool
	}{
		{line: 1, want: "alpha", wantOK: true},
		{line: 2, want: "beta", wantOK: true},
		{line: 3, want: "gamma", wantOK: true},
		{line: 4, wantOK: false},
	}

	for _, tt := range tests {
		got, ok := diff.ExtractLine(patch, tt.line)
		assert.Equal(t, tt.wantOK, ok, "line %d", tt.line)
		assert.Equal(t, tt.want, got, "line %d", tt.line)
	}
}

func TestExtractLine_EmptyPatch(t *testing.T) {
	_, ok := diff.ExtractLine("", 1)
	assert.False(t, ok)
}
