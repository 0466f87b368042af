package dedup

import "strings"

// stopWords are common English tokens excluded from keyword sets so that
// similarity reflects the substance of a message, not its connective tissue.
var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "that": true, "this": true,
	"with": true, "from": true, "are": true, "was": true, "not": true,
	"but": true, "has": true, "have": true, "can": true, "will": true,
	"when": true, "which": true, "would": true, "should": true,
	"could": true, "there": true, "their": true, "than": true, "then": true,
	"into": true, "your": true, "you": true, "all": true, "any": true,
	"its": true, "out": true, "use": true, "used": true, "using": true,
	"may": true, "might": true, "been": true, "being": true, "does": true,
	"also": true, "more": true, "some": true, "such": true, "only": true,
	"each": true, "them": true, "these": true, "those": true, "what": true,
	"over": true, "under": true, "between": true, "because": true,
	"value": true, "values": true,
}

// keywords extracts the set of lower-cased alphanumeric tokens longer than
// two characters, with stop-words removed.
func keywords(message string) map[string]bool {
	set := make(map[string]bool)
	var token strings.Builder

	flush := func() {
		if token.Len() > 2 {
			word := token.String()
			if !stopWords[word] {
				set[word] = true
			}
		}
		token.Reset()
	}

	for _, r := range strings.ToLower(message) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			token.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()

	return set
}

// similarity returns the Jaccard similarity of the two messages' keyword
// sets. Two empty sets are not similar.
func similarity(a, b string) float64 {
	setA := keywords(a)
	setB := keywords(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	intersection := 0
	for word := range setA {
		if setB[word] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection

	return float64(intersection) / float64(union)
}
