// Package council runs the review pipeline: it routes changed files to
// reviewers, fans the dispatch out, then funnels raw findings through the
// moderation gate, deduplication, and diff-line anchoring into one review.
package council

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bkyoung/pr-council/internal/diff"
	"github.com/bkyoung/pr-council/internal/domain"
	"github.com/bkyoung/pr-council/internal/policy"
	"github.com/bkyoung/pr-council/internal/usecase/anchor"
	"github.com/bkyoung/pr-council/internal/usecase/batch"
	"github.com/bkyoung/pr-council/internal/usecase/dedup"
	"github.com/bkyoung/pr-council/internal/usecase/moderate"
)

// Settings tunes the pipeline stages.
type Settings struct {
	Batch batch.Config

	// GeneralDedup applies to the shared pass over all general reviewers.
	// Convention reviewers get their own pass with similarity disabled and
	// the cap taken from the repo policy.
	GeneralDedup dedup.Policy

	Anchor anchor.Config
}

// DefaultSettings returns the production pipeline settings.
func DefaultSettings() Settings {
	return Settings{
		Batch: batch.DefaultConfig(),
		GeneralDedup: dedup.Policy{
			MergeOverlapping:     true,
			UseContentSimilarity: true,
			SimilarityThreshold:  dedup.DefaultSimilarityThreshold,
			MaxComments:          10,
		},
		Anchor: anchor.DefaultConfig(),
	}
}

// Deps wires the orchestrator's collaborators.
type Deps struct {
	Dispatcher Dispatcher
	Gate       *moderate.Gate

	// Redactor scrubs patch text before it is handed to the dispatcher.
	// Optional; findings still anchor against the original patches.
	Redactor Redactor

	Logger Logger
}

// Request describes one review run.
type Request struct {
	PR            domain.PullRequest
	Reviewers     []Reviewer
	Policy        *policy.Policy
	TriggeredBy   string
	TriggeredByID int64
}

// Orchestrator coordinates one review request end to end. It holds no
// per-request state; a single instance serves concurrent requests.
type Orchestrator struct {
	deps     Deps
	settings Settings
}

// NewOrchestrator creates an orchestrator with the given collaborators.
func NewOrchestrator(deps Deps, settings Settings) *Orchestrator {
	if deps.Gate == nil {
		deps.Gate = moderate.NewDefaultGate()
	}
	return &Orchestrator{deps: deps, settings: settings}
}

// reviewerRun is the pre-computed dispatch plan for one reviewer.
type reviewerRun struct {
	reviewer Reviewer
	batches  [][]domain.PatchFile
}

// reviewerResult is one reviewer's raw output after all its batches ran.
type reviewerResult struct {
	findings       []domain.Finding
	truncatedFiles []string
	usage          []domain.TokenUsage
	err            error
}

// Review executes the full pipeline for one request. A reviewer dispatch
// error aborts the whole request; the caller's retry policy handles it.
func (o *Orchestrator) Review(ctx context.Context, req Request) (domain.CouncilReview, error) {
	pol := req.Policy
	if pol == nil {
		pol = policy.Default()
	}

	files := o.filterIgnored(ctx, req.PR.Files, pol)

	runs, warnings := o.plan(files, req.Reviewers, pol)
	if len(runs) == 0 {
		return domain.CouncilReview{
			Warnings: warnings,
			Summary:  BuildSummary(nil, nil, warnings),
			Meta:     domain.ReviewMeta{TriggeredBy: req.TriggeredBy, TriggeredByID: req.TriggeredByID},
		}, nil
	}

	results := o.dispatchAll(ctx, runs)

	comments := make([]domain.Comment, 0)
	usage := make([]domain.TokenUsage, 0)
	conventionSource := make(map[string]bool, len(runs))

	for i, run := range runs {
		result := results[i]
		if result.err != nil {
			return domain.CouncilReview{}, fmt.Errorf("reviewer %s: %w", run.reviewer.ID, result.err)
		}

		conventionSource[run.reviewer.ID] = run.reviewer.Convention
		usage = append(usage, result.usage...)

		if len(result.truncatedFiles) > 0 {
			warnings = append(warnings, truncationWarning(run.reviewer.ID, result.truncatedFiles))
		}

		for _, finding := range result.findings {
			if err := finding.Validate(); err != nil {
				o.logWarning(ctx, "rejected invalid finding", map[string]interface{}{
					"reviewer": run.reviewer.ID,
					"file":     finding.File,
					"error":    err.Error(),
				})
				continue
			}
			comments = append(comments, domain.NewComment(run.reviewer.ID, finding))
		}
	}

	moderated := o.deps.Gate.Apply(comments)

	var general, conventions []domain.Comment
	for _, comment := range moderated {
		if conventionSource[comment.Source] {
			conventions = append(conventions, comment)
		} else {
			general = append(general, comment)
		}
	}

	deduped := dedup.Apply(general, o.settings.GeneralDedup)
	deduped = append(deduped, dedup.Apply(conventions, dedup.Policy{
		MergeOverlapping: true,
		MaxComments:      pol.Limits.MaxComments,
	})...)

	anchored := anchor.Resolve(deduped, diff.BuildFileLineMap(files), o.settings.Anchor)

	return domain.CouncilReview{
		Comments: anchored.Inline,
		Warnings: warnings,
		Summary:  BuildSummary(anchored.Inline, anchored.Overflow, warnings),
		Meta: domain.ReviewMeta{
			TriggeredBy:   req.TriggeredBy,
			TriggeredByID: req.TriggeredByID,
			TokenUsage:    usage,
		},
	}, nil
}

// filterIgnored drops files matching the policy's ignore globs.
func (o *Orchestrator) filterIgnored(ctx context.Context, files []domain.PatchFile, pol *policy.Policy) []domain.PatchFile {
	kept := make([]domain.PatchFile, 0, len(files))
	for _, file := range files {
		if pol.Ignored(file.Filename) {
			o.logInfo(ctx, "file ignored by repo policy", map[string]interface{}{"file": file.Filename})
			continue
		}
		kept = append(kept, file)
	}
	return kept
}

// plan computes each active reviewer's batches up front, before any dispatch,
// so batch composition is a pure function of the input. Skipped-file warnings
// are deduplicated across reviewers; at most one rate-limited warning is kept.
func (o *Orchestrator) plan(files []domain.PatchFile, reviewers []Reviewer, pol *policy.Policy) ([]reviewerRun, []domain.Warning) {
	var runs []reviewerRun
	skipped := make(map[string]bool)
	var skippedOrder []string
	var rateLimited *domain.Warning

	for _, reviewer := range reviewers {
		if !pol.ReviewerEnabled(reviewer.ID) {
			continue
		}
		if reviewer.Convention && !pol.HasConventions() {
			continue
		}

		routed := filterByExtensions(files, reviewer.Extensions)
		if len(routed) == 0 {
			continue
		}

		chunked := batch.Chunk(routed, o.settings.Batch)
		for _, file := range chunked.SkippedFiles {
			if !skipped[file] {
				skipped[file] = true
				skippedOrder = append(skippedOrder, file)
			}
		}

		batches, warning := batch.Cap(chunked.Batches, o.settings.Batch.MaxBatches)
		if warning != nil && rateLimited == nil {
			rateLimited = warning
		}
		if len(batches) == 0 {
			continue
		}

		runs = append(runs, reviewerRun{reviewer: reviewer, batches: batches})
	}

	sort.Strings(skippedOrder)
	warnings := make([]domain.Warning, 0, len(skippedOrder)+1)
	for _, file := range skippedOrder {
		warnings = append(warnings, domain.Warning{
			Kind:    domain.WarnSkippedLargeFile,
			Message: fmt.Sprintf("%s exceeds the patch size ceiling and was not reviewed", file),
			File:    file,
		})
	}
	if rateLimited != nil {
		warnings = append(warnings, *rateLimited)
	}
	return runs, warnings
}

// dispatchAll fans reviewers out concurrently; batches within one reviewer
// run sequentially to bound memory and keep per-batch numbering stable.
func (o *Orchestrator) dispatchAll(ctx context.Context, runs []reviewerRun) []reviewerResult {
	results := make([]reviewerResult, len(runs))

	var wg sync.WaitGroup
	for i, run := range runs {
		wg.Add(1)
		go func(i int, run reviewerRun) {
			defer func() {
				if r := recover(); r != nil {
					results[i].err = fmt.Errorf("reviewer %s panicked: %v", run.reviewer.ID, r)
				}
				wg.Done()
			}()
			results[i] = o.dispatchBatches(ctx, run)
		}(i, run)
	}
	wg.Wait()

	return results
}

func (o *Orchestrator) dispatchBatches(ctx context.Context, run reviewerRun) reviewerResult {
	var result reviewerResult

	for index, b := range run.batches {
		dispatched, err := o.deps.Dispatcher.Review(ctx, o.redacted(ctx, b), run.reviewer.ID)
		if err != nil {
			result.err = fmt.Errorf("batch %d: %w", index, err)
			return result
		}

		result.findings = append(result.findings, dispatched.Findings...)

		dispatched.Usage.Reviewer = run.reviewer.ID
		dispatched.Usage.BatchIndex = index
		result.usage = append(result.usage, dispatched.Usage)

		if dispatched.Truncated {
			for _, file := range b {
				if len(result.truncatedFiles) >= 3 {
					break
				}
				result.truncatedFiles = append(result.truncatedFiles, file.Filename)
			}
		}
	}

	return result
}

// redacted returns a copy of the batch with secrets scrubbed from patch
// text. A redaction failure falls back to the original patch with a warning
// rather than dropping the file from review.
func (o *Orchestrator) redacted(ctx context.Context, batch []domain.PatchFile) []domain.PatchFile {
	if o.deps.Redactor == nil {
		return batch
	}
	out := make([]domain.PatchFile, len(batch))
	for i, file := range batch {
		scrubbed, err := o.deps.Redactor.Redact(file.Patch)
		if err != nil {
			o.logWarning(ctx, "redaction failed, sending original patch", map[string]interface{}{
				"file": file.Filename,
			})
			out[i] = file
			continue
		}
		out[i] = domain.PatchFile{Filename: file.Filename, Patch: scrubbed}
	}
	return out
}

func truncationWarning(reviewerID string, files []string) domain.Warning {
	return domain.Warning{
		Kind: domain.WarnBatchOutputLimit,
		Message: fmt.Sprintf("%s output was truncated; findings may be incomplete for %s",
			reviewerID, strings.Join(files, ", ")),
	}
}

// filterByExtensions routes files by suffix. Empty extensions match all.
func filterByExtensions(files []domain.PatchFile, extensions []string) []domain.PatchFile {
	if len(extensions) == 0 {
		return files
	}
	allowed := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		allowed[strings.ToLower(ext)] = true
	}

	var routed []domain.PatchFile
	for _, file := range files {
		if allowed[strings.ToLower(filepath.Ext(file.Filename))] {
			routed = append(routed, file)
		}
	}
	return routed
}

func (o *Orchestrator) logWarning(ctx context.Context, message string, fields map[string]interface{}) {
	if o.deps.Logger != nil {
		o.deps.Logger.LogWarning(ctx, message, fields)
	}
}

func (o *Orchestrator) logInfo(ctx context.Context, message string, fields map[string]interface{}) {
	if o.deps.Logger != nil {
		o.deps.Logger.LogInfo(ctx, message, fields)
	}
}
