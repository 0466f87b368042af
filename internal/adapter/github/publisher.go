// Package github is the forge boundary: it fetches the normalized pull
// request representation and publishes the finished review.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/go-github/v60/github"

	"github.com/bkyoung/pr-council/internal/domain"
)

// Publisher fetches pull requests and posts reviews via the GitHub API.
type Publisher struct {
	client *github.Client
}

// Option configures the publisher.
type Option func(*Publisher)

// WithBaseURL sets a custom base URL (GitHub Enterprise, tests).
func WithBaseURL(url string) Option {
	return func(p *Publisher) {
		p.client.BaseURL, _ = p.client.BaseURL.Parse(url + "/")
	}
}

// NewPublisher creates a publisher authenticated with the given token.
func NewPublisher(token string, opts ...Option) *Publisher {
	p := &Publisher{client: github.NewClient(nil).WithAuthToken(token)}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// FetchPullRequest returns the normalized pull request representation the
// pipeline consumes. Files without patch text (binary, too large) are
// carried with an empty patch and end up unmappable, never fatal.
func (p *Publisher) FetchPullRequest(ctx context.Context, owner, repo string, number int) (domain.PullRequest, error) {
	pr, _, err := p.client.PullRequests.Get(ctx, owner, repo, number)
	if err != nil {
		return domain.PullRequest{}, fmt.Errorf("fetching pull request: %w", err)
	}

	var files []domain.PatchFile
	opts := &github.ListOptions{PerPage: 100}
	for {
		page, resp, err := p.client.PullRequests.ListFiles(ctx, owner, repo, number, opts)
		if err != nil {
			return domain.PullRequest{}, fmt.Errorf("listing changed files: %w", err)
		}
		for _, f := range page {
			files = append(files, domain.PatchFile{
				Filename: f.GetFilename(),
				Patch:    f.GetPatch(),
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return domain.PullRequest{
		Number:  pr.GetNumber(),
		Title:   pr.GetTitle(),
		Body:    pr.GetBody(),
		Files:   files,
		BaseSHA: pr.GetBase().GetSHA(),
		HeadSHA: pr.GetHead().GetSHA(),
	}, nil
}

// PostReview publishes the review: the summary as the review body and each
// comment as an inline annotation on the new side of the diff. If GitHub
// rejects the inline positions (422), the review is reposted summary-only so
// the result is never lost.
func (p *Publisher) PostReview(ctx context.Context, owner, repo string, number int, review domain.CouncilReview) error {
	comments := make([]*github.DraftReviewComment, 0, len(review.Comments))
	for _, comment := range review.Comments {
		comments = append(comments, &github.DraftReviewComment{
			Path: github.String(comment.File),
			Line: github.Int(comment.LineStart),
			Side: github.String("RIGHT"),
			Body: github.String(FormatInlineComment(comment)),
		})
	}

	req := &github.PullRequestReviewRequest{
		Body:     github.String(review.Summary),
		Event:    github.String("COMMENT"),
		Comments: comments,
	}

	_, _, err := p.client.PullRequests.CreateReview(ctx, owner, repo, number, req)
	if err == nil {
		return nil
	}

	if len(comments) > 0 && isUnprocessable(err) {
		fallback := &github.PullRequestReviewRequest{
			Body:  github.String(review.Summary + "\n\n*Inline comments could not be attached to the diff.*"),
			Event: github.String("COMMENT"),
		}
		if _, _, retryErr := p.client.PullRequests.CreateReview(ctx, owner, repo, number, fallback); retryErr != nil {
			return fmt.Errorf("posting summary-only review: %w", retryErr)
		}
		return nil
	}

	return fmt.Errorf("posting review: %w", err)
}

// PostFailureComment posts the best-effort fallback notification when the
// pipeline itself failed.
func (p *Publisher) PostFailureComment(ctx context.Context, owner, repo string, number int, reason string) error {
	body := FormatFailureComment(reason)
	_, _, err := p.client.Issues.CreateComment(ctx, owner, repo, number, &github.IssueComment{Body: &body})
	if err != nil {
		return fmt.Errorf("posting failure comment: %w", err)
	}
	return nil
}

func isUnprocessable(err error) bool {
	var errResp *github.ErrorResponse
	return errors.As(err, &errResp) &&
		errResp.Response != nil &&
		errResp.Response.StatusCode == http.StatusUnprocessableEntity
}
