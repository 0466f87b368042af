// Package batch orders and packs patched files into bounded batches for
// reviewer dispatch.
package batch

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bkyoung/pr-council/internal/domain"
)

// Config bounds batch composition.
type Config struct {
	// MaxChars is the character budget per batch.
	MaxChars int

	// MaxFiles is the file-count budget per batch.
	MaxFiles int

	// MaxPatchSize is the hard ceiling above which a single file is skipped
	// entirely. Oversized files are omitted, never truncated, to avoid
	// reviewing a sheared diff.
	MaxPatchSize int

	// MaxBatches caps the number of batches dispatched per reviewer.
	MaxBatches int
}

// DefaultConfig returns the production batching budgets.
func DefaultConfig() Config {
	return Config{
		MaxChars:     40_000,
		MaxFiles:     12,
		MaxPatchSize: 60_000,
		MaxBatches:   5,
	}
}

// Result holds the packed batches plus the files skipped for size.
type Result struct {
	Batches      [][]domain.PatchFile
	SkippedFiles []string
}

// File priority ranks, lower reviewed first.
const (
	priorityComponent = iota
	priorityHook
	priorityPage
	priorityUtility
	priorityTest
	priorityConfig
)

// filePriority ranks a path by name heuristics so the highest-impact files
// are batched (and therefore reviewed) first.
func filePriority(path string) int {
	pathLower := strings.ToLower(path)
	fileName := pathLower
	if idx := strings.LastIndex(pathLower, "/"); idx >= 0 {
		fileName = pathLower[idx+1:]
	}

	if containsAny(pathLower,
		"config", ".config.", "generated", ".gen.", "mock", "__mock__",
		"package.json", "tsconfig", "eslint", "prettier", ".d.ts", ".lock",
	) {
		return priorityConfig
	}

	if containsAny(pathLower, ".test.", ".spec.", "_test.", "__tests__", "/tests/", "/test/") {
		return priorityTest
	}

	if containsAny(pathLower,
		"/utils/", "/util/", "/helpers/", "/helper/", "/lib/", "/services/",
		"utils.", "helper.", "service.",
	) {
		return priorityUtility
	}

	if containsAny(pathLower, "/pages/", "/app/", "/routes/", "page.", "route.", "layout.") {
		return priorityPage
	}

	// A hook is named by its file, not its directory: hooks/helpers.ts is
	// a utility, hooks/useCart.ts is a hook.
	if strings.HasPrefix(fileName, "use") {
		return priorityHook
	}

	if containsAny(pathLower, "/components/", "/component/", "component.") ||
		strings.HasSuffix(pathLower, ".tsx") {
		return priorityComponent
	}

	return priorityUtility
}

func containsAny(s string, patterns ...string) bool {
	for _, pattern := range patterns {
		if strings.Contains(s, pattern) {
			return true
		}
	}
	return false
}

// sortKey orders files by (priority, directory, filename) so identical input
// always yields identical batch composition.
func sortKey(path string) (int, string, string) {
	directory := ""
	if idx := strings.LastIndex(path, "/"); idx >= 0 {
		directory = path[:idx]
	}
	return filePriority(path), directory, path
}

// Chunk packs files into batches under the character and file-count budgets.
// Files whose individual patch exceeds MaxPatchSize are excluded entirely
// and reported in SkippedFiles.
func Chunk(files []domain.PatchFile, cfg Config) Result {
	sorted := make([]domain.PatchFile, len(files))
	copy(sorted, files)
	sort.SliceStable(sorted, func(i, j int) bool {
		pi, di, ni := sortKey(sorted[i].Filename)
		pj, dj, nj := sortKey(sorted[j].Filename)
		if pi != pj {
			return pi < pj
		}
		if di != dj {
			return di < dj
		}
		return ni < nj
	})

	var result Result
	var current []domain.PatchFile
	currentChars := 0

	for _, file := range sorted {
		patchSize := len(file.Patch)

		if patchSize > cfg.MaxPatchSize {
			result.SkippedFiles = append(result.SkippedFiles, file.Filename)
			continue
		}

		if len(current) > 0 && (currentChars+patchSize > cfg.MaxChars || len(current) >= cfg.MaxFiles) {
			result.Batches = append(result.Batches, current)
			current = nil
			currentChars = 0
		}

		current = append(current, file)
		currentChars += patchSize
	}

	if len(current) > 0 {
		result.Batches = append(result.Batches, current)
	}

	return result
}

// Cap truncates the batch list to maxBatches. The returned warning, present
// only when batches were dropped, names the count of files left unreviewed.
func Cap(batches [][]domain.PatchFile, maxBatches int) ([][]domain.PatchFile, *domain.Warning) {
	if maxBatches <= 0 || len(batches) <= maxBatches {
		return batches, nil
	}

	skippedFiles := 0
	for _, b := range batches[maxBatches:] {
		skippedFiles += len(b)
	}

	warning := &domain.Warning{
		Kind: domain.WarnRateLimited,
		Message: fmt.Sprintf("change set too large: reviewed first %d batches, skipped %d files",
			maxBatches, skippedFiles),
	}
	return batches[:maxBatches], warning
}
