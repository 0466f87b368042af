package dedup

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeywords_TokenizationRules(t *testing.T) {
	set := keywords("The cast to `any` bypasses TS2345 checks!")

	assert.True(t, set["cast"])
	assert.True(t, set["bypasses"])
	assert.True(t, set["ts2345"])
	assert.True(t, set["checks"])
	// "the" and "any" are stop-words, "to" is too short.
	assert.False(t, set["the"])
	assert.False(t, set["any"])
	assert.False(t, set["to"])
}

func TestSimilarity_IdenticalMessages(t *testing.T) {
	score := similarity("unsafe cast bypasses checks", "unsafe cast bypasses checks")
	assert.Equal(t, 1.0, score)
}

func TestSimilarity_DisjointMessages(t *testing.T) {
	score := similarity("unsafe cast bypasses checks", "render loop allocates heavily")
	assert.Equal(t, 0.0, score)
}

func TestSimilarity_EmptyMessages(t *testing.T) {
	assert.Equal(t, 0.0, similarity("", ""))
	assert.Equal(t, 0.0, similarity("a an to", "unsafe cast"))
}

func TestSimilarity_PartialOverlap(t *testing.T) {
	// {unsafe, cast, handler} vs {unsafe, cast, parser}:
	// intersection 2, union 4.
	score := similarity("unsafe cast handler", "unsafe cast parser")
	assert.InDelta(t, 0.5, score, 1e-9)
}
