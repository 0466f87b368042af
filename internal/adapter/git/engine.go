// Package git reads changed files from a local repository, for running
// reviews against a branch without a forge round trip.
package git

import (
	"bytes"
	"fmt"

	goGit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	formatdiff "github.com/go-git/go-git/v5/plumbing/format/diff"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/bkyoung/pr-council/internal/domain"
)

// Engine extracts patch files from a repository backed by go-git.
type Engine struct {
	repoDir string
}

// NewEngine constructs a Git engine for the provided repository directory.
func NewEngine(repoDir string) *Engine {
	return &Engine{repoDir: repoDir}
}

// ChangedFiles returns the per-file unified diffs between two refs in the
// shape the pipeline consumes. Binary and deleted files are skipped; they
// have no new-side lines to anchor comments to.
func (e *Engine) ChangedFiles(baseRef, targetRef string) ([]domain.PatchFile, error) {
	repo, err := goGit.PlainOpenWithOptions(e.repoDir, &goGit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("open repo: %w", err)
	}

	baseCommit, err := resolveCommit(repo, baseRef)
	if err != nil {
		return nil, fmt.Errorf("resolve base ref: %w", err)
	}
	targetCommit, err := resolveCommit(repo, targetRef)
	if err != nil {
		return nil, fmt.Errorf("resolve target ref: %w", err)
	}

	patch, err := baseCommit.Patch(targetCommit)
	if err != nil {
		return nil, fmt.Errorf("compute patch: %w", err)
	}

	files := make([]domain.PatchFile, 0, len(patch.FilePatches()))
	for _, fp := range patch.FilePatches() {
		if fp.IsBinary() {
			continue
		}
		_, to := fp.Files()
		if to == nil {
			continue
		}

		patchText, err := encodeFilePatch(fp)
		if err != nil {
			return nil, fmt.Errorf("encode patch for %s: %w", to.Path(), err)
		}
		files = append(files, domain.PatchFile{
			Filename: to.Path(),
			Patch:    patchText,
		})
	}

	return files, nil
}

func resolveCommit(repo *goGit.Repository, ref string) (*object.Commit, error) {
	candidates := []string{
		ref,
		fmt.Sprintf("refs/heads/%s", ref),
		fmt.Sprintf("refs/remotes/origin/%s", ref),
	}

	var lastErr error
	for _, candidate := range candidates {
		name := plumbing.Revision(candidate)
		hash, err := repo.ResolveRevision(name)
		if err != nil {
			lastErr = err
			continue
		}
		return repo.CommitObject(*hash)
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, fmt.Errorf("unable to resolve ref %s", ref)
}

func encodeFilePatch(fp formatdiff.FilePatch) (string, error) {
	var buf bytes.Buffer
	encoder := formatdiff.NewUnifiedEncoder(&buf, formatdiff.DefaultContextLines)
	if err := encoder.Encode(singlePatch{fp: fp}); err != nil {
		return "", err
	}
	return buf.String(), nil
}

type singlePatch struct {
	fp formatdiff.FilePatch
}

func (s singlePatch) FilePatches() []formatdiff.FilePatch {
	return []formatdiff.FilePatch{s.fp}
}

func (s singlePatch) Message() string {
	return ""
}
