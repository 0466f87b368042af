package council_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/bkyoung/pr-council/internal/domain"
	"github.com/bkyoung/pr-council/internal/policy"
	"github.com/bkyoung/pr-council/internal/usecase/council"
	"github.com/bkyoung/pr-council/internal/usecase/dedup"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDispatcher returns canned results per reviewer and records calls.
type fakeDispatcher struct {
	mu      sync.Mutex
	results map[string]council.DispatchResult
	errs    map[string]error
	calls   map[string][][]domain.PatchFile
}

func newFakeDispatcher() *fakeDispatcher {
	return &fakeDispatcher{
		results: make(map[string]council.DispatchResult),
		errs:    make(map[string]error),
		calls:   make(map[string][][]domain.PatchFile),
	}
}

func (d *fakeDispatcher) Review(ctx context.Context, batch []domain.PatchFile, reviewerID string) (council.DispatchResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls[reviewerID] = append(d.calls[reviewerID], batch)
	if err := d.errs[reviewerID]; err != nil {
		return council.DispatchResult{}, err
	}
	return d.results[reviewerID], nil
}

func (d *fakeDispatcher) callsFor(reviewerID string) [][]domain.PatchFile {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls[reviewerID]
}

const tsPatch = "@@ -1,3 +1,4 @@\n a\n+b\n c\n-d\n"

func tsFile(name string) domain.PatchFile {
	return domain.PatchFile{Filename: name, Patch: tsPatch}
}

func finding(file string, line int, severity domain.Severity, message string) domain.Finding {
	return domain.Finding{
		File:      file,
		LineStart: line,
		LineEnd:   line,
		Severity:  severity,
		Category:  "types",
		Message:   message,
	}
}

func generalReviewers() []council.Reviewer {
	return []council.Reviewer{
		{ID: "correctness", Extensions: []string{".ts", ".tsx"}},
		{ID: "performance", Extensions: []string{".ts", ".tsx"}},
	}
}

func TestReview_EndToEnd(t *testing.T) {
	dispatcher := newFakeDispatcher()
	dispatcher.results["correctness"] = council.DispatchResult{
		Findings: []domain.Finding{finding("a.ts", 2, domain.SeverityError, "null dereference crash")},
		Usage:    domain.TokenUsage{InputTokens: 100, OutputTokens: 20, TotalTokens: 120},
	}
	dispatcher.results["performance"] = council.DispatchResult{
		Findings: []domain.Finding{finding("a.ts", 3, domain.SeverityInfo, "rerender churn")},
	}

	orch := council.NewOrchestrator(council.Deps{Dispatcher: dispatcher}, council.DefaultSettings())
	review, err := orch.Review(context.Background(), council.Request{
		PR:          domain.PullRequest{Number: 7, Files: []domain.PatchFile{tsFile("a.ts")}},
		Reviewers:   generalReviewers(),
		TriggeredBy: "octocat",
	})
	require.NoError(t, err)

	require.Len(t, review.Comments, 2)
	assert.Contains(t, review.Summary, "**Risk Level:** HIGH")
	assert.Equal(t, "octocat", review.Meta.TriggeredBy)
	assert.Equal(t, 120, review.Meta.TotalTokens())
}

func TestReview_DispatchErrorAbortsRequest(t *testing.T) {
	dispatcher := newFakeDispatcher()
	dispatcher.errs["performance"] = errors.New("backend unavailable")

	orch := council.NewOrchestrator(council.Deps{Dispatcher: dispatcher}, council.DefaultSettings())
	_, err := orch.Review(context.Background(), council.Request{
		PR:        domain.PullRequest{Files: []domain.PatchFile{tsFile("a.ts")}},
		Reviewers: generalReviewers(),
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "performance")
}

func TestReview_RoutesFilesByExtension(t *testing.T) {
	dispatcher := newFakeDispatcher()

	orch := council.NewOrchestrator(council.Deps{Dispatcher: dispatcher}, council.DefaultSettings())
	_, err := orch.Review(context.Background(), council.Request{
		PR: domain.PullRequest{Files: []domain.PatchFile{
			tsFile("a.ts"),
			{Filename: "README.md", Patch: tsPatch},
		}},
		Reviewers: []council.Reviewer{{ID: "correctness", Extensions: []string{".ts"}}},
	})
	require.NoError(t, err)

	calls := dispatcher.callsFor("correctness")
	require.Len(t, calls, 1)
	require.Len(t, calls[0], 1)
	assert.Equal(t, "a.ts", calls[0][0].Filename)
}

func TestReview_NoReviewableFiles(t *testing.T) {
	dispatcher := newFakeDispatcher()

	orch := council.NewOrchestrator(council.Deps{Dispatcher: dispatcher}, council.DefaultSettings())
	review, err := orch.Review(context.Background(), council.Request{
		PR:        domain.PullRequest{Files: []domain.PatchFile{{Filename: "README.md", Patch: tsPatch}}},
		Reviewers: []council.Reviewer{{ID: "correctness", Extensions: []string{".ts"}}},
	})
	require.NoError(t, err)

	assert.Empty(t, review.Comments)
	assert.Contains(t, review.Summary, "No issues found")
	assert.Empty(t, dispatcher.callsFor("correctness"))
}

func TestReview_PolicyDisablesReviewer(t *testing.T) {
	dispatcher := newFakeDispatcher()
	pol, err := policy.Parse([]byte("reviewers:\n  performance: false\n"))
	require.NoError(t, err)

	orch := council.NewOrchestrator(council.Deps{Dispatcher: dispatcher}, council.DefaultSettings())
	_, err = orch.Review(context.Background(), council.Request{
		PR:        domain.PullRequest{Files: []domain.PatchFile{tsFile("a.ts")}},
		Reviewers: generalReviewers(),
		Policy:    pol,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, dispatcher.callsFor("correctness"))
	assert.Empty(t, dispatcher.callsFor("performance"))
}

func TestReview_ConventionReviewerNeedsConventions(t *testing.T) {
	dispatcher := newFakeDispatcher()
	reviewers := []council.Reviewer{{ID: "conventions", Extensions: []string{".ts"}, Convention: true}}

	orch := council.NewOrchestrator(council.Deps{Dispatcher: dispatcher}, council.DefaultSettings())

	_, err := orch.Review(context.Background(), council.Request{
		PR:        domain.PullRequest{Files: []domain.PatchFile{tsFile("a.ts")}},
		Reviewers: reviewers,
	})
	require.NoError(t, err)
	assert.Empty(t, dispatcher.callsFor("conventions"))

	pol, err := policy.Parse([]byte("policy:\n  - id: naming\n    text: prefer named exports\n"))
	require.NoError(t, err)

	_, err = orch.Review(context.Background(), council.Request{
		PR:        domain.PullRequest{Files: []domain.PatchFile{tsFile("a.ts")}},
		Reviewers: reviewers,
		Policy:    pol,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, dispatcher.callsFor("conventions"))
}

func TestReview_ConventionCommentsNotCollapsedBySimilarity(t *testing.T) {
	dispatcher := newFakeDispatcher()
	dispatcher.results["conventions"] = council.DispatchResult{
		Findings: []domain.Finding{
			finding("a.ts", 1, domain.SeverityWarning, "prefix class names with the component prefix"),
			finding("a.ts", 3, domain.SeverityWarning, "prefix class names with the component prefix"),
		},
	}

	pol, err := policy.Parse([]byte("policy:\n  - id: naming\n    text: use the class prefix\n"))
	require.NoError(t, err)

	orch := council.NewOrchestrator(council.Deps{Dispatcher: dispatcher}, council.DefaultSettings())
	review, err := orch.Review(context.Background(), council.Request{
		PR:        domain.PullRequest{Files: []domain.PatchFile{tsFile("a.ts")}},
		Reviewers: []council.Reviewer{{ID: "conventions", Extensions: []string{".ts"}, Convention: true}},
		Policy:    pol,
	})
	require.NoError(t, err)

	// Identical violation text on non-overlapping lines stays separate.
	assert.Len(t, review.Comments, 2)
}

func TestReview_TruncatedBatchProducesWarning(t *testing.T) {
	dispatcher := newFakeDispatcher()
	dispatcher.results["correctness"] = council.DispatchResult{Truncated: true}

	orch := council.NewOrchestrator(council.Deps{Dispatcher: dispatcher}, council.DefaultSettings())
	review, err := orch.Review(context.Background(), council.Request{
		PR:        domain.PullRequest{Files: []domain.PatchFile{tsFile("a.ts")}},
		Reviewers: []council.Reviewer{{ID: "correctness", Extensions: []string{".ts"}}},
	})
	require.NoError(t, err)

	require.Len(t, review.Warnings, 1)
	assert.Equal(t, domain.WarnBatchOutputLimit, review.Warnings[0].Kind)
	assert.Contains(t, review.Warnings[0].Message, "a.ts")
	assert.Contains(t, review.Summary, "truncated")
}

func TestReview_OversizedFileSkippedOnce(t *testing.T) {
	dispatcher := newFakeDispatcher()
	huge := domain.PatchFile{Filename: "huge.ts", Patch: strings.Repeat("x", 70000)}

	orch := council.NewOrchestrator(council.Deps{Dispatcher: dispatcher}, council.DefaultSettings())
	review, err := orch.Review(context.Background(), council.Request{
		PR:        domain.PullRequest{Files: []domain.PatchFile{tsFile("a.ts"), huge}},
		Reviewers: generalReviewers(),
	})
	require.NoError(t, err)

	// Both reviewers skip the same file; the warning appears once.
	require.Len(t, review.Warnings, 1)
	assert.Equal(t, domain.WarnSkippedLargeFile, review.Warnings[0].Kind)
	assert.Equal(t, "huge.ts", review.Warnings[0].File)
}

func TestReview_InvalidFindingsRejected(t *testing.T) {
	dispatcher := newFakeDispatcher()
	dispatcher.results["correctness"] = council.DispatchResult{
		Findings: []domain.Finding{
			{File: "a.ts", LineStart: 0, LineEnd: 0, Severity: domain.SeverityError, Category: "types", Message: "bad line"},
			{File: "a.ts", LineStart: 2, LineEnd: 2, Severity: "critical", Category: "types", Message: "bad severity"},
			finding("a.ts", 2, domain.SeverityInfo, "valid finding"),
		},
	}

	orch := council.NewOrchestrator(council.Deps{Dispatcher: dispatcher}, council.DefaultSettings())
	review, err := orch.Review(context.Background(), council.Request{
		PR:        domain.PullRequest{Files: []domain.PatchFile{tsFile("a.ts")}},
		Reviewers: []council.Reviewer{{ID: "correctness", Extensions: []string{".ts"}}},
	})
	require.NoError(t, err)

	require.Len(t, review.Comments, 1)
	assert.Equal(t, "valid finding", review.Comments[0].Message)
}

func TestReview_HedgedErrorDowngraded(t *testing.T) {
	dispatcher := newFakeDispatcher()
	dispatcher.results["correctness"] = council.DispatchResult{
		Findings: []domain.Finding{finding("a.ts", 2, domain.SeverityError, "this might break rendering")},
	}

	orch := council.NewOrchestrator(council.Deps{Dispatcher: dispatcher}, council.DefaultSettings())
	review, err := orch.Review(context.Background(), council.Request{
		PR:        domain.PullRequest{Files: []domain.PatchFile{tsFile("a.ts")}},
		Reviewers: []council.Reviewer{{ID: "correctness", Extensions: []string{".ts"}}},
	})
	require.NoError(t, err)

	require.Len(t, review.Comments, 1)
	assert.Equal(t, domain.SeverityWarning, review.Comments[0].Severity)
}

func TestReview_IgnoredFilesNeverDispatched(t *testing.T) {
	dispatcher := newFakeDispatcher()
	pol, err := policy.Parse([]byte("ignore:\n  - \"**/*.generated.ts\"\n"))
	require.NoError(t, err)

	orch := council.NewOrchestrator(council.Deps{Dispatcher: dispatcher}, council.DefaultSettings())
	_, err = orch.Review(context.Background(), council.Request{
		PR: domain.PullRequest{Files: []domain.PatchFile{
			tsFile("a.ts"),
			tsFile("api/schema.generated.ts"),
		}},
		Reviewers: []council.Reviewer{{ID: "correctness", Extensions: []string{".ts"}}},
		Policy:    pol,
	})
	require.NoError(t, err)

	calls := dispatcher.callsFor("correctness")
	require.Len(t, calls, 1)
	require.Len(t, calls[0], 1)
	assert.Equal(t, "a.ts", calls[0][0].Filename)
}

func TestReview_UnanchorableCommentLandsInSummary(t *testing.T) {
	dispatcher := newFakeDispatcher()
	dispatcher.results["correctness"] = council.DispatchResult{
		Findings: []domain.Finding{finding("a.ts", 90, domain.SeverityWarning, "far from the diff")},
	}

	orch := council.NewOrchestrator(council.Deps{Dispatcher: dispatcher}, council.DefaultSettings())
	review, err := orch.Review(context.Background(), council.Request{
		PR:        domain.PullRequest{Files: []domain.PatchFile{tsFile("a.ts")}},
		Reviewers: []council.Reviewer{{ID: "correctness", Extensions: []string{".ts"}}},
	})
	require.NoError(t, err)

	assert.Empty(t, review.Comments)
	assert.Contains(t, review.Summary, "**Not shown inline:**")
	assert.Contains(t, review.Summary, "far from the diff")
}

func TestReview_GeneralCapSharedAcrossReviewers(t *testing.T) {
	dispatcher := newFakeDispatcher()
	var correctness, performance []domain.Finding
	for i := 0; i < 4; i++ {
		correctness = append(correctness, finding("a.ts", 1, domain.SeverityWarning, "unique issue alpha "+strings.Repeat("a", i+1)))
		performance = append(performance, finding("b.ts", 1, domain.SeverityWarning, "unique issue beta "+strings.Repeat("b", i+1)))
	}
	dispatcher.results["correctness"] = council.DispatchResult{Findings: correctness}
	dispatcher.results["performance"] = council.DispatchResult{Findings: performance}

	settings := council.DefaultSettings()
	settings.GeneralDedup = dedup.Policy{MergeOverlapping: false, MaxComments: 3}

	orch := council.NewOrchestrator(council.Deps{Dispatcher: dispatcher}, settings)
	review, err := orch.Review(context.Background(), council.Request{
		PR:        domain.PullRequest{Files: []domain.PatchFile{tsFile("a.ts"), tsFile("b.ts")}},
		Reviewers: generalReviewers(),
	})
	require.NoError(t, err)

	total := len(review.Comments)
	assert.LessOrEqual(t, total, 3)
}

func TestReview_Deterministic(t *testing.T) {
	dispatcher := newFakeDispatcher()
	dispatcher.results["correctness"] = council.DispatchResult{
		Findings: []domain.Finding{
			finding("a.ts", 2, domain.SeverityError, "null dereference"),
			finding("b.ts", 1, domain.SeverityWarning, "loose typing"),
		},
	}
	dispatcher.results["performance"] = council.DispatchResult{
		Findings: []domain.Finding{finding("a.ts", 3, domain.SeverityInfo, "extra render")},
	}

	orch := council.NewOrchestrator(council.Deps{Dispatcher: dispatcher}, council.DefaultSettings())
	req := council.Request{
		PR:        domain.PullRequest{Files: []domain.PatchFile{tsFile("a.ts"), tsFile("b.ts")}},
		Reviewers: generalReviewers(),
	}

	first, err := orch.Review(context.Background(), req)
	require.NoError(t, err)
	second, err := orch.Review(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first.Comments, second.Comments)
	assert.Equal(t, first.Summary, second.Summary)
}

type fakeRedactor struct{}

func (fakeRedactor) Redact(input string) (string, error) {
	return strings.ReplaceAll(input, "ghp_secret", "<REDACTED:deadbeef>"), nil
}

func TestReview_RedactsPatchesBeforeDispatch(t *testing.T) {
	dispatcher := newFakeDispatcher()
	dispatcher.results["correctness"] = council.DispatchResult{}

	orch := council.NewOrchestrator(council.Deps{
		Dispatcher: dispatcher,
		Redactor:   fakeRedactor{},
	}, council.DefaultSettings())

	leaky := domain.PatchFile{
		Filename: "a.ts",
		Patch:    "@@ -1,2 +1,3 @@\n a\n+const token = \"ghp_secret\"\n c\n",
	}
	_, err := orch.Review(context.Background(), council.Request{
		PR:        domain.PullRequest{Files: []domain.PatchFile{leaky}},
		Reviewers: []council.Reviewer{{ID: "correctness", Extensions: []string{".ts"}}},
	})
	require.NoError(t, err)

	calls := dispatcher.callsFor("correctness")
	require.Len(t, calls, 1)
	require.Len(t, calls[0], 1)
	assert.NotContains(t, calls[0][0].Patch, "ghp_secret")
	assert.Contains(t, calls[0][0].Patch, "<REDACTED:")
}
