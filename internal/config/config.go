// Package config holds the application configuration: reviewer definitions,
// pipeline limits, guard settings, and the observability block. Values come
// from council.yaml merged with COUNCIL_* environment variables.
package config

// Config represents the full application configuration.
type Config struct {
	Reviewers     map[string]ReviewerConfig `yaml:"reviewers"`
	HTTP          HTTPConfig                `yaml:"http"`
	Batch         BatchConfig               `yaml:"batch"`
	Dedup         DedupConfig               `yaml:"dedup"`
	Anchor        AnchorConfig              `yaml:"anchor"`
	RateLimit     RateLimitConfig           `yaml:"rateLimit"`
	Idempotency   IdempotencyConfig         `yaml:"idempotency"`
	Store         StoreConfig               `yaml:"store"`
	GitHub        GitHubConfig              `yaml:"github"`
	Observability ObservabilityConfig       `yaml:"observability"`
}

// ReviewerConfig configures a single reviewer.
type ReviewerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Model   string `yaml:"model"`
	APIKey  string `yaml:"apiKey"`

	// Extensions limits which files the reviewer sees (e.g. ".ts", ".tsx").
	// Empty means all files.
	Extensions []string `yaml:"extensions"`

	// Convention marks the reviewer as convention-enforcing: it is gated on
	// the repo policy file and deduplicated separately.
	Convention bool `yaml:"convention"`
}

// HTTPConfig holds global HTTP client settings for reviewer backends.
type HTTPConfig struct {
	Timeout           string  `yaml:"timeout"`
	MaxRetries        int     `yaml:"maxRetries"`
	InitialBackoff    string  `yaml:"initialBackoff"`
	MaxBackoff        string  `yaml:"maxBackoff"`
	BackoffMultiplier float64 `yaml:"backoffMultiplier"`
}

// BatchConfig bounds how changed files are grouped per reviewer call.
type BatchConfig struct {
	MaxChars     int `yaml:"maxChars"`
	MaxFiles     int `yaml:"maxFiles"`
	MaxPatchSize int `yaml:"maxPatchSize"`
	MaxBatches   int `yaml:"maxBatches"`
}

// DedupConfig tunes the merge stage for general reviewers.
type DedupConfig struct {
	UseContentSimilarity bool    `yaml:"useContentSimilarity"`
	SimilarityThreshold  float64 `yaml:"similarityThreshold"`
	MaxComments          int     `yaml:"maxComments"`
}

// AnchorConfig bounds comment anchoring.
type AnchorConfig struct {
	MaxSnapDistance int `yaml:"maxSnapDistance"`
	MaxInline       int `yaml:"maxInline"`
}

// RateLimitConfig bounds triggers per tenant over a sliding window.
type RateLimitConfig struct {
	Enabled      bool   `yaml:"enabled"`
	MaxPerWindow int    `yaml:"maxPerWindow"`
	Window       string `yaml:"window"`
}

// IdempotencyConfig controls duplicate-delivery suppression.
type IdempotencyConfig struct {
	Enabled bool   `yaml:"enabled"`
	TTL     string `yaml:"ttl"`
}

// StoreConfig configures the persistence layer for delivery records.
type StoreConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// GitHubConfig configures the publishing boundary.
type GitHubConfig struct {
	Token string `yaml:"token"`
}

// ObservabilityConfig configures logging.
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig configures structured log output.
type LoggingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Level   string `yaml:"level"`  // debug, info, error
	Format  string `yaml:"format"` // json, human
}

// Merge combines multiple configuration instances, prioritising the latter ones.
func Merge(configs ...Config) Config {
	result := Config{}
	for _, cfg := range configs {
		result = merge(result, cfg)
	}
	return result
}

func merge(base, overlay Config) Config {
	result := base

	result.HTTP = chooseHTTP(base.HTTP, overlay.HTTP)
	result.Batch = chooseBatch(base.Batch, overlay.Batch)
	result.Dedup = chooseDedup(base.Dedup, overlay.Dedup)
	result.Anchor = chooseAnchor(base.Anchor, overlay.Anchor)
	result.RateLimit = chooseRateLimit(base.RateLimit, overlay.RateLimit)
	result.Idempotency = chooseIdempotency(base.Idempotency, overlay.Idempotency)
	result.Store = chooseStore(base.Store, overlay.Store)
	result.GitHub = chooseGitHub(base.GitHub, overlay.GitHub)
	result.Observability = chooseObservability(base.Observability, overlay.Observability)
	result.Reviewers = mergeReviewers(base.Reviewers, overlay.Reviewers)

	return result
}

func mergeReviewers(base, overlay map[string]ReviewerConfig) map[string]ReviewerConfig {
	if len(base) == 0 && len(overlay) == 0 {
		return nil
	}
	result := make(map[string]ReviewerConfig, len(base)+len(overlay))
	for key, value := range base {
		result[key] = value
	}
	for key, value := range overlay {
		result[key] = value
	}
	return result
}

func chooseHTTP(base, overlay HTTPConfig) HTTPConfig {
	if overlay.Timeout != "" || overlay.MaxRetries != 0 || overlay.InitialBackoff != "" || overlay.MaxBackoff != "" || overlay.BackoffMultiplier != 0 {
		return overlay
	}
	return base
}

func chooseBatch(base, overlay BatchConfig) BatchConfig {
	if overlay.MaxChars != 0 || overlay.MaxFiles != 0 || overlay.MaxPatchSize != 0 || overlay.MaxBatches != 0 {
		return overlay
	}
	return base
}

func chooseDedup(base, overlay DedupConfig) DedupConfig {
	if overlay.UseContentSimilarity || overlay.SimilarityThreshold != 0 || overlay.MaxComments != 0 {
		return overlay
	}
	return base
}

func chooseAnchor(base, overlay AnchorConfig) AnchorConfig {
	if overlay.MaxSnapDistance != 0 || overlay.MaxInline != 0 {
		return overlay
	}
	return base
}

func chooseRateLimit(base, overlay RateLimitConfig) RateLimitConfig {
	if overlay.Enabled || overlay.MaxPerWindow != 0 || overlay.Window != "" {
		return overlay
	}
	return base
}

func chooseIdempotency(base, overlay IdempotencyConfig) IdempotencyConfig {
	if overlay.Enabled || overlay.TTL != "" {
		return overlay
	}
	return base
}

func chooseStore(base, overlay StoreConfig) StoreConfig {
	if overlay.Enabled || overlay.Path != "" {
		return overlay
	}
	return base
}

func chooseGitHub(base, overlay GitHubConfig) GitHubConfig {
	if overlay.Token != "" {
		return overlay
	}
	return base
}

func chooseObservability(base, overlay ObservabilityConfig) ObservabilityConfig {
	result := base
	if overlay.Logging.Enabled || overlay.Logging.Level != "" || overlay.Logging.Format != "" {
		result.Logging = overlay.Logging
	}
	return result
}
