package domain_test

import (
	"testing"

	"github.com/bkyoung/pr-council/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestSeverity_Rank(t *testing.T) {
	assert.Equal(t, 3, domain.SeverityError.Rank())
	assert.Equal(t, 2, domain.SeverityWarning.Rank())
	assert.Equal(t, 1, domain.SeverityInfo.Rank())
	assert.Equal(t, 0, domain.Severity("bogus").Rank())
}

func TestSeverity_Max(t *testing.T) {
	assert.Equal(t, domain.SeverityError, domain.SeverityWarning.Max(domain.SeverityError))
	assert.Equal(t, domain.SeverityError, domain.SeverityError.Max(domain.SeverityInfo))
	assert.Equal(t, domain.SeverityWarning, domain.SeverityWarning.Max(domain.SeverityWarning))
}

func TestFinding_Validate(t *testing.T) {
	valid := domain.Finding{
		File:      "src/app.ts",
		LineStart: 10,
		LineEnd:   12,
		Severity:  domain.SeverityWarning,
		Category:  "types",
		Message:   "unsafe cast",
	}

	tests := []struct {
		name    string
		mutate  func(f *domain.Finding)
		wantErr bool
	}{
		{name: "valid", mutate: func(f *domain.Finding) {}, wantErr: false},
		{name: "empty file", mutate: func(f *domain.Finding) { f.File = "" }, wantErr: true},
		{name: "empty message", mutate: func(f *domain.Finding) { f.Message = "" }, wantErr: true},
		{name: "zero line start", mutate: func(f *domain.Finding) { f.LineStart = 0 }, wantErr: true},
		{name: "negative line start", mutate: func(f *domain.Finding) { f.LineStart = -4 }, wantErr: true},
		{name: "end before start", mutate: func(f *domain.Finding) { f.LineEnd = 5 }, wantErr: true},
		{name: "unknown severity", mutate: func(f *domain.Finding) { f.Severity = "critical" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := valid
			tt.mutate(&f)
			err := f.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestComment_Overlaps(t *testing.T) {
	base := domain.NewComment("correctness", domain.Finding{
		File: "a.go", LineStart: 10, LineEnd: 12,
		Severity: domain.SeverityWarning, Category: "types", Message: "m",
	})

	tests := []struct {
		name  string
		other domain.Comment
		want  bool
	}{
		{
			name:  "same range",
			other: domain.NewComment("performance", domain.Finding{File: "a.go", LineStart: 10, LineEnd: 12, Severity: domain.SeverityWarning, Message: "m"}),
			want:  true,
		},
		{
			name:  "partial intersection",
			other: domain.NewComment("performance", domain.Finding{File: "a.go", LineStart: 12, LineEnd: 20, Severity: domain.SeverityWarning, Message: "m"}),
			want:  true,
		},
		{
			name:  "adjacent lines do not overlap",
			other: domain.NewComment("performance", domain.Finding{File: "a.go", LineStart: 13, LineEnd: 13, Severity: domain.SeverityWarning, Message: "m"}),
			want:  false,
		},
		{
			name:  "different file",
			other: domain.NewComment("performance", domain.Finding{File: "b.go", LineStart: 10, LineEnd: 12, Severity: domain.SeverityWarning, Message: "m"}),
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, base.Overlaps(tt.other))
			assert.Equal(t, tt.want, tt.other.Overlaps(base))
		})
	}
}

func TestTokenUsage_CostUSD(t *testing.T) {
	usage := domain.TokenUsage{InputTokens: 1_000_000, OutputTokens: 1_000_000, TotalTokens: 2_000_000}

	assert.InDelta(t, 0.75, usage.CostUSD("gpt-4o-mini"), 1e-9)
	assert.InDelta(t, 12.50, usage.CostUSD("gpt-4o"), 1e-9)
	// Unknown models fall back to gpt-4o-mini pricing.
	assert.InDelta(t, 0.75, usage.CostUSD("some-new-model"), 1e-9)
}

func TestReviewMeta_Totals(t *testing.T) {
	meta := domain.ReviewMeta{
		TokenUsage: []domain.TokenUsage{
			{InputTokens: 100, OutputTokens: 50, TotalTokens: 150, Reviewer: "correctness"},
			{InputTokens: 200, OutputTokens: 25, TotalTokens: 225, Reviewer: "conventions"},
		},
	}

	assert.Equal(t, 375, meta.TotalTokens())
	assert.Greater(t, meta.TotalCostUSD("gpt-4o-mini"), 0.0)
}
