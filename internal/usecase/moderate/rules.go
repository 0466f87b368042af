package moderate

// DropRule suppresses a recurring reviewer-specific false positive. A
// comment is dropped when its source matches and its lower-cased message
// contains every keyword.
type DropRule struct {
	// Source is the reviewer identifier the rule applies to. Empty matches
	// any source.
	Source string

	// Keywords must all appear in the message (ContainsAll semantics).
	Keywords []string
}

// DefaultDropRules suppresses error claims the general reviewers get wrong
// often enough that prompt instructions alone cannot be trusted.
func DefaultDropRules() []DropRule {
	return []DropRule{
		// Nullable context values are an idiomatic pattern, not an error.
		{Source: "correctness", Keywords: []string{"context", "null"}},
		{Source: "correctness", Keywords: []string{"infinite loop"}},
		{Source: "correctness", Keywords: []string{"infinite re-render"}},
		{Source: "performance", Keywords: []string{"memory leak"}},
		// "without checking" is speculation about guards outside the diff.
		{Source: "", Keywords: []string{"without checking"}},
		{Source: "", Keywords: []string{"can throw"}},
		{Source: "", Keywords: []string{"can cause"}},
	}
}

// DefaultHedgePhrases lists the markers of speculative phrasing
// (ContainsAny semantics). An error-severity comment containing any of them
// is downgraded to a warning.
func DefaultHedgePhrases() []string {
	return []string{
		"might",
		"could",
		"possibly",
		"potentially",
		"suggest",
		"consider",
		"may cause",
		"may lead to",
		"leading to",
		"just in case",
		"to be safe",
	}
}
