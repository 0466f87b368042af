package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bkyoung/pr-council/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := config.Load(config.LoaderOptions{ConfigPaths: []string{t.TempDir()}})
	require.NoError(t, err)

	assert.Equal(t, 40000, cfg.Batch.MaxChars)
	assert.Equal(t, 12, cfg.Batch.MaxFiles)
	assert.Equal(t, 60000, cfg.Batch.MaxPatchSize)
	assert.Equal(t, 5, cfg.Batch.MaxBatches)
	assert.Equal(t, 0.6, cfg.Dedup.SimilarityThreshold)
	assert.Equal(t, 5, cfg.Anchor.MaxSnapDistance)
	assert.Equal(t, "24h", cfg.Idempotency.TTL)
	assert.Equal(t, "1h", cfg.RateLimit.Window)
	assert.Equal(t, "60s", cfg.HTTP.Timeout)
	assert.True(t, cfg.Reviewers["correctness"].Enabled)
	assert.True(t, cfg.Reviewers["conventions"].Convention)
	assert.False(t, cfg.Reviewers["correctness"].Convention)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	content := `
batch:
  maxChars: 20000
  maxFiles: 6
  maxPatchSize: 30000
  maxBatches: 3
dedup:
  useContentSimilarity: false
  similarityThreshold: 0.8
  maxComments: 4
reviewers:
  performance:
    enabled: false
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "council.yaml"), []byte(content), 0o644))

	cfg, err := config.Load(config.LoaderOptions{ConfigPaths: []string{dir}})
	require.NoError(t, err)

	assert.Equal(t, 20000, cfg.Batch.MaxChars)
	assert.Equal(t, 0.8, cfg.Dedup.SimilarityThreshold)
	assert.Equal(t, 4, cfg.Dedup.MaxComments)
	assert.False(t, cfg.Reviewers["performance"].Enabled)
	// Untouched sections keep their defaults.
	assert.Equal(t, "60s", cfg.HTTP.Timeout)
}

func TestLoad_ExpandsEnvVarsInValues(t *testing.T) {
	t.Setenv("COUNCIL_TEST_KEY", "sk-secret")

	dir := t.TempDir()
	content := `
reviewers:
  correctness:
    enabled: true
    model: gpt-4o
    apiKey: ${COUNCIL_TEST_KEY}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "council.yaml"), []byte(content), 0o644))

	cfg, err := config.Load(config.LoaderOptions{ConfigPaths: []string{dir}})
	require.NoError(t, err)
	assert.Equal(t, "sk-secret", cfg.Reviewers["correctness"].APIKey)
}

func TestLoad_UnsetEnvVarLeftVerbatim(t *testing.T) {
	dir := t.TempDir()
	content := `
github:
  token: ${COUNCIL_DEFINITELY_UNSET_VAR}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "council.yaml"), []byte(content), 0o644))

	cfg, err := config.Load(config.LoaderOptions{ConfigPaths: []string{dir}})
	require.NoError(t, err)
	assert.Equal(t, "${COUNCIL_DEFINITELY_UNSET_VAR}", cfg.GitHub.Token)
}

func TestLoad_MalformedFileIsAnError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "council.yaml"), []byte("batch: [oops"), 0o644))

	_, err := config.Load(config.LoaderOptions{ConfigPaths: []string{dir}})
	assert.Error(t, err)
}
