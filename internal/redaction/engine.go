// Package redaction strips credential material from patch text before it
// leaves the process. Secrets are replaced with stable placeholders so the
// same secret redacts identically across batches.
package redaction

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

// Engine performs regex-based secret detection and redaction.
type Engine struct {
	patterns []*regexp.Regexp
}

// NewEngine creates a redaction engine with the default secret patterns.
func NewEngine() *Engine {
	return &Engine{patterns: defaultPatterns()}
}

// Redact replaces detected secrets with placeholders. Single-line secrets
// are replaced inline, so line counts are preserved and diff line numbers
// stay valid for anchoring.
func (e *Engine) Redact(input string) (string, error) {
	placeholders := make(map[string]string)

	for _, pattern := range e.patterns {
		for _, match := range pattern.FindAllString(input, -1) {
			if strings.ContainsRune(match, '\n') {
				// Multi-line secrets (PEM blocks) are replaced line by line
				// to keep the diff shape intact.
				for _, line := range strings.Split(match, "\n") {
					if line != "" {
						placeholders[line] = placeholder(line)
					}
				}
				continue
			}
			if _, seen := placeholders[match]; !seen {
				placeholders[match] = placeholder(match)
			}
		}
	}

	result := input
	for secret, ph := range placeholders {
		result = strings.ReplaceAll(result, secret, ph)
	}
	return result, nil
}

// IsRedacted reports whether the content carries redaction placeholders.
func (e *Engine) IsRedacted(content string) bool {
	return strings.Contains(content, "<REDACTED:")
}

// placeholder derives a stable marker from the secret's hash so repeated
// occurrences redact to the same token without revealing the value.
func placeholder(secret string) string {
	hash := sha256.Sum256([]byte(secret))
	return fmt.Sprintf("<REDACTED:%s>", hex.EncodeToString(hash[:])[:8])
}

func defaultPatterns() []*regexp.Regexp {
	patterns := []string{
		// OpenAI-style API keys
		`sk-[a-zA-Z0-9\-]{20,}`,
		// AWS access key IDs
		`AKIA[0-9A-Z]{16}`,
		// AWS secret keys assigned near an aws-prefixed identifier
		`aws.{0,20}?['\"][0-9a-zA-Z/+]{40}['\"]`,
		// GitHub tokens
		`gh[posr]_[a-zA-Z0-9]{20,}`,
		// Google API keys
		`AIza[0-9A-Za-z\-_]{35}`,
		// JWTs
		`eyJ[a-zA-Z0-9_-]+\.eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`,
		// PEM private key blocks
		`-----BEGIN\s+(?:RSA|EC|OPENSSH|DSA|ENCRYPTED)\s+PRIVATE\s+KEY-----[\s\S]*?-----END\s+(?:RSA|EC|OPENSSH|DSA|ENCRYPTED)\s+PRIVATE\s+KEY-----`,
		// Slack tokens
		`xox[baprs]-[a-zA-Z0-9\-]{10,}`,
		// Bearer credentials
		`Bearer\s+[a-zA-Z0-9_\-\.]{12,}`,
	}

	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, pattern := range patterns {
		compiled = append(compiled, regexp.MustCompile(pattern))
	}
	return compiled
}
