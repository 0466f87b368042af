// Package policy loads and validates the repo-level .council.yml file:
// reviewer toggles, rule toggles, freeform policy statements, review limits,
// and ignore globs. Every field that ends up inside a reviewer prompt is
// length-bounded and sanitized.
package policy

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"unicode"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// DefaultFilename is where the policy file lives in a repository root.
const DefaultFilename = ".council.yml"

// Limits on user-supplied content. Oversized configs are truncated, not
// rejected, so a sloppy policy file never blocks a review.
const (
	MaxShortString = 50
	MaxPolicyText  = 500
	MaxPolicies    = 10
	MaxListItems   = 20
)

// BlockedText replaces policy statements that look like prompt injection.
const BlockedText = "[BLOCKED: suspicious content removed]"

var (
	injectionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`^ignore\s+(all\s+)?(previous\s+)?instructions?`),
		regexp.MustCompile(`^forget\s+(all\s+)?(previous\s+)?`),
		regexp.MustCompile(`^disregard\s+(all\s+)?(previous\s+)?`),
		regexp.MustCompile(`^override\s+`),
		regexp.MustCompile(`^system\s*:`),
		regexp.MustCompile(`^assistant\s*:`),
		regexp.MustCompile(`^user\s*:`),
		regexp.MustCompile(`^<\s*system\s*>`),
		regexp.MustCompile(`^###\s*(system|instruction)`),
	}

	idCharsRE    = regexp.MustCompile(`[^a-zA-Z0-9_-]`)
	multiNewline = regexp.MustCompile(`\n{3,}`)
	multiSpace   = regexp.MustCompile(` {3,}`)
)

// Rule is a structured convention toggle with optional settings.
type Rule struct {
	ID       string            `yaml:"id"`
	Enabled  bool              `yaml:"enabled"`
	Severity string            `yaml:"severity"`
	Options  map[string]string `yaml:"options"`
}

// Statement is a freeform convention written in prose.
type Statement struct {
	ID       string `yaml:"id"`
	Severity string `yaml:"severity"`
	Text     string `yaml:"text"`
}

// Limits bounds convention review output.
type Limits struct {
	// MaxComments of zero means uncapped.
	MaxComments     int    `yaml:"max_comments"`
	DefaultSeverity string `yaml:"default_severity"`
}

// Policy is the root of a parsed .council.yml.
type Policy struct {
	Version   int             `yaml:"version"`
	Limits    Limits          `yaml:"limits"`
	Rules     []Rule          `yaml:"rules"`
	Policy    []Statement     `yaml:"policy"`
	Reviewers map[string]bool `yaml:"reviewers"`
	Ignore    []string        `yaml:"ignore"`
}

// Default returns the policy used when no .council.yml exists.
func Default() *Policy {
	return &Policy{
		Version:   1,
		Limits:    Limits{MaxComments: 0, DefaultSeverity: "warning"},
		Reviewers: map[string]bool{},
	}
}

// Load reads and validates a policy file. A missing file yields the default
// policy; a malformed file is an error the caller should surface.
func Load(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and sanitizes policy YAML.
func Parse(data []byte) (*Policy, error) {
	p := Default()
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("failed to parse policy file: %w", err)
	}
	p.sanitize()
	return p, nil
}

// sanitize enforces the content limits in place.
func (p *Policy) sanitize() {
	if p.Limits.DefaultSeverity != "error" {
		p.Limits.DefaultSeverity = "warning"
	}
	if p.Limits.MaxComments < 0 {
		p.Limits.MaxComments = 0
	}
	if p.Limits.MaxComments > 100 {
		p.Limits.MaxComments = 100
	}

	if len(p.Policy) > MaxPolicies {
		p.Policy = p.Policy[:MaxPolicies]
	}
	for i := range p.Policy {
		p.Policy[i].ID = sanitizeID(p.Policy[i].ID)
		p.Policy[i].Severity = sanitizeSeverity(p.Policy[i].Severity, p.Limits.DefaultSeverity)
		p.Policy[i].Text = SanitizeForPrompt(truncate(p.Policy[i].Text, MaxPolicyText))
	}

	if len(p.Rules) > MaxListItems {
		p.Rules = p.Rules[:MaxListItems]
	}
	for i := range p.Rules {
		p.Rules[i].ID = sanitizeID(p.Rules[i].ID)
		p.Rules[i].Severity = sanitizeSeverity(p.Rules[i].Severity, p.Limits.DefaultSeverity)
		for key, value := range p.Rules[i].Options {
			p.Rules[i].Options[key] = truncate(value, MaxShortString)
		}
	}

	if len(p.Ignore) > MaxListItems {
		p.Ignore = p.Ignore[:MaxListItems]
	}
	valid := p.Ignore[:0]
	for _, pattern := range p.Ignore {
		if doublestar.ValidatePattern(pattern) {
			valid = append(valid, pattern)
		}
	}
	p.Ignore = valid
}

// ReviewerEnabled reports whether a reviewer is on. Reviewers not mentioned
// in the file default to enabled.
func (p *Policy) ReviewerEnabled(id string) bool {
	enabled, ok := p.Reviewers[id]
	if !ok {
		return true
	}
	return enabled
}

// Ignored reports whether the filename matches any ignore glob.
func (p *Policy) Ignored(filename string) bool {
	for _, pattern := range p.Ignore {
		if match, err := doublestar.Match(pattern, filename); err == nil && match {
			return true
		}
	}
	return false
}

// HasConventions reports whether any rule or statement would give the
// convention reviewer something to enforce.
func (p *Policy) HasConventions() bool {
	for _, rule := range p.Rules {
		if rule.Enabled {
			return true
		}
	}
	return len(p.Policy) > 0
}

// SanitizeForPrompt strips control characters, collapses repeated
// whitespace, and blocks text opening with a known injection pattern.
func SanitizeForPrompt(text string) string {
	var b strings.Builder
	for _, r := range text {
		if unicode.IsPrint(r) || r == '\n' || r == '\t' {
			b.WriteRune(r)
		}
	}
	cleaned := multiNewline.ReplaceAllString(b.String(), "\n\n")
	cleaned = multiSpace.ReplaceAllString(cleaned, " ")
	cleaned = strings.TrimSpace(cleaned)

	lowered := strings.ToLower(cleaned)
	for _, pattern := range injectionPatterns {
		if pattern.MatchString(lowered) {
			return BlockedText
		}
	}
	return cleaned
}

func sanitizeID(id string) string {
	cleaned := idCharsRE.ReplaceAllString(id, "")
	if cleaned == "" {
		return "unnamed"
	}
	return truncate(cleaned, MaxShortString)
}

func sanitizeSeverity(severity, fallback string) string {
	if severity == "warning" || severity == "error" {
		return severity
	}
	return fallback
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
