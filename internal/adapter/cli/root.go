// Package cli exposes the council command line: it selects the source of
// changed files (pull request file, forge, or local repository), runs the
// pipeline, and renders or publishes the result.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bkyoung/pr-council/internal/domain"
	"github.com/bkyoung/pr-council/internal/policy"
	"github.com/bkyoung/pr-council/internal/usecase/council"
	"github.com/bkyoung/pr-council/internal/usecase/guard"
	"github.com/bkyoung/pr-council/internal/usecase/skip"
)

// ErrVersionRequested indicates the user requested the CLI version and no further work should be done.
var ErrVersionRequested = errors.New("version requested")

// Reviewer runs the review pipeline for one request.
type Reviewer interface {
	Review(ctx context.Context, req council.Request) (domain.CouncilReview, error)
}

// Forge fetches pull requests and publishes reviews.
type Forge interface {
	FetchPullRequest(ctx context.Context, owner, repo string, number int) (domain.PullRequest, error)
	PostReview(ctx context.Context, owner, repo string, number int, review domain.CouncilReview) error
	PostFailureComment(ctx context.Context, owner, repo string, number int, reason string) error
}

// LocalDiffer extracts changed files from a local repository.
type LocalDiffer interface {
	ChangedFiles(baseRef, targetRef string) ([]domain.PatchFile, error)
}

// DeliveryGuard suppresses duplicate deliveries and over-limit tenants.
type DeliveryGuard interface {
	Check(ctx context.Context, deliveryID, tenant string) guard.Outcome
	Commit(ctx context.Context, deliveryID, tenant string) bool
}

// Arguments encapsulates IO writers injected from the host process.
type Arguments struct {
	OutWriter io.Writer
	ErrWriter io.Writer
}

// Dependencies captures the collaborators for the CLI.
type Dependencies struct {
	Reviewer  Reviewer
	Forge     Forge
	Differ    LocalDiffer
	Guard     DeliveryGuard
	Reviewers []council.Reviewer

	// ApplyPolicy lets the host rebind policy-dependent reviewer profiles
	// once the repo policy is loaded. Optional.
	ApplyPolicy func(pol *policy.Policy)

	Args    Arguments
	Version string
}

// NewRootCommand constructs the root Cobra command.
func NewRootCommand(deps Dependencies) *cobra.Command {
	versionString := deps.Version
	if versionString == "" {
		versionString = "v0.0.0"
	}

	root := &cobra.Command{
		Use:   "council",
		Short: "Multi-reviewer pull request review pipeline",
	}
	root.SilenceUsage = true
	root.SilenceErrors = true

	outWriter := deps.Args.OutWriter
	if outWriter == nil {
		outWriter = os.Stdout
	}
	errWriter := deps.Args.ErrWriter
	if errWriter == nil {
		errWriter = os.Stderr
	}
	root.SetOut(outWriter)
	root.SetErr(errWriter)

	root.AddCommand(reviewCommand(deps))

	var showVersion bool
	root.PersistentFlags().BoolVarP(&showVersion, "version", "v", false, "Show version and exit")
	versionHandler := func(cmd *cobra.Command, args []string) error {
		if showVersion {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), versionString)
			return ErrVersionRequested
		}
		return nil
	}
	root.PersistentPreRunE = versionHandler
	root.PreRunE = versionHandler
	root.RunE = func(cmd *cobra.Command, args []string) error {
		if err := versionHandler(cmd, args); err != nil {
			return err
		}
		return cmd.Help()
	}

	return root
}

func reviewCommand(deps Dependencies) *cobra.Command {
	var prFile string
	var owner string
	var repo string
	var prNumber int
	var baseRef string
	var targetRef string
	var policyFile string
	var outputFormat string
	var deliveryID string
	var tenant string
	var publish bool

	cmd := &cobra.Command{
		Use:   "review",
		Short: "Review a pull request or local branch",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if deps.Guard != nil {
				outcome := deps.Guard.Check(ctx, deliveryID, tenant)
				if !outcome.Allowed {
					if outcome.Reason == guard.ReasonRateLimited {
						fmt.Fprintf(cmd.ErrOrStderr(), "skipped: %s (retry after %s)\n", outcome.Reason, outcome.RetryAfter)
					} else {
						fmt.Fprintf(cmd.ErrOrStderr(), "skipped: %s\n", outcome.Reason)
					}
					return nil
				}
			}

			pol, err := loadPolicy(policyFile)
			if err != nil {
				return err
			}
			if deps.ApplyPolicy != nil {
				deps.ApplyPolicy(pol)
			}

			pr, remote, err := resolvePullRequest(ctx, deps, prFile, owner, repo, prNumber, baseRef, targetRef)
			if err != nil {
				return err
			}

			if result := skip.Check(pr.Title, pr.Body); result.ShouldSkip {
				fmt.Fprintf(cmd.ErrOrStderr(), "skipped: opt-out marker in %s\n", result.Reason)
				return nil
			}

			review, err := deps.Reviewer.Review(ctx, council.Request{
				PR:          pr,
				Reviewers:   deps.Reviewers,
				Policy:      pol,
				TriggeredBy: tenant,
			})
			if err != nil {
				if remote && publish && deps.Forge != nil {
					if postErr := deps.Forge.PostFailureComment(ctx, owner, repo, prNumber, err.Error()); postErr != nil {
						fmt.Fprintf(cmd.ErrOrStderr(), "failure comment not posted: %v\n", postErr)
					}
				}
				return fmt.Errorf("review failed: %w", err)
			}

			if deps.Guard != nil {
				// Losing the commit race means a concurrent run claimed this
				// delivery first; it will publish, so this run must not.
				if !deps.Guard.Commit(ctx, deliveryID, tenant) {
					fmt.Fprintf(cmd.ErrOrStderr(), "skipped: %s\n", guard.ReasonDuplicateDelivery)
					return nil
				}
			}

			if remote && publish {
				if deps.Forge == nil {
					return fmt.Errorf("publishing requested but no forge is configured")
				}
				if err := deps.Forge.PostReview(ctx, owner, repo, prNumber, review); err != nil {
					return fmt.Errorf("publish review: %w", err)
				}
			}

			return renderReview(cmd.OutOrStdout(), review, outputFormat)
		},
	}

	cmd.Flags().StringVar(&prFile, "pr-file", "", "Path to a JSON file with the pull request payload")
	cmd.Flags().StringVar(&owner, "owner", "", "Repository owner for remote review")
	cmd.Flags().StringVar(&repo, "repo", "", "Repository name for remote review")
	cmd.Flags().IntVar(&prNumber, "pr", 0, "Pull request number for remote review")
	cmd.Flags().StringVar(&baseRef, "base", "", "Base reference for local review")
	cmd.Flags().StringVar(&targetRef, "target", "", "Target reference for local review")
	cmd.Flags().StringVar(&policyFile, "policy-file", "", "Path to the repo policy file (default "+policy.DefaultFilename+")")
	cmd.Flags().StringVar(&outputFormat, "output", "text", "Output format: text or json")
	cmd.Flags().StringVar(&deliveryID, "delivery-id", "", "Delivery identifier for idempotency")
	cmd.Flags().StringVar(&tenant, "tenant", "", "Tenant identifier for rate limiting")
	cmd.Flags().BoolVar(&publish, "publish", false, "Post the review back to the pull request")

	return cmd
}

func loadPolicy(path string) (*policy.Policy, error) {
	if path == "" {
		path = policy.DefaultFilename
	}
	pol, err := policy.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load policy %s: %w", path, err)
	}
	return pol, nil
}

// resolvePullRequest picks the review source: an explicit payload file, the
// forge, or a local diff. Exactly one source must be selected.
func resolvePullRequest(ctx context.Context, deps Dependencies, prFile, owner, repo string, prNumber int, baseRef, targetRef string) (domain.PullRequest, bool, error) {
	switch {
	case prFile != "":
		data, err := os.ReadFile(prFile)
		if err != nil {
			return domain.PullRequest{}, false, fmt.Errorf("read pull request file: %w", err)
		}
		var pr domain.PullRequest
		if err := json.Unmarshal(data, &pr); err != nil {
			return domain.PullRequest{}, false, fmt.Errorf("parse pull request file: %w", err)
		}
		return pr, false, nil

	case owner != "" || repo != "" || prNumber != 0:
		if owner == "" || repo == "" || prNumber <= 0 {
			return domain.PullRequest{}, false, fmt.Errorf("--owner, --repo, and --pr are all required for a remote review")
		}
		if deps.Forge == nil {
			return domain.PullRequest{}, false, fmt.Errorf("remote review requested but no forge is configured; set a GitHub token")
		}
		pr, err := deps.Forge.FetchPullRequest(ctx, owner, repo, prNumber)
		if err != nil {
			return domain.PullRequest{}, false, err
		}
		return pr, true, nil

	case targetRef != "":
		if deps.Differ == nil {
			return domain.PullRequest{}, false, fmt.Errorf("local review requested but no repository is available")
		}
		base := baseRef
		if base == "" {
			base = "main"
		}
		files, err := deps.Differ.ChangedFiles(base, targetRef)
		if err != nil {
			return domain.PullRequest{}, false, fmt.Errorf("local diff: %w", err)
		}
		return domain.PullRequest{Title: targetRef, Files: files}, false, nil

	default:
		return domain.PullRequest{}, false, fmt.Errorf("no review source; pass --pr-file, --owner/--repo/--pr, or --target")
	}
}

func renderReview(w io.Writer, review domain.CouncilReview, format string) error {
	switch format {
	case "json":
		encoded, err := json.MarshalIndent(review, "", "  ")
		if err != nil {
			return fmt.Errorf("encode review: %w", err)
		}
		_, _ = fmt.Fprintln(w, string(encoded))
		return nil
	case "text", "":
		fmt.Fprintln(w, review.Summary)
		if len(review.Comments) > 0 {
			fmt.Fprintln(w)
			fmt.Fprintln(w, "### Inline Comments")
			for _, comment := range review.Comments {
				fmt.Fprintf(w, "%s:%d [%s/%s] %s\n",
					comment.File, comment.LineStart, comment.Source,
					strings.ToUpper(string(comment.Severity)), comment.Message)
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown output format %q; use text or json", format)
	}
}
