package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/viper"
)

// LoaderOptions describes how configuration should be discovered.
type LoaderOptions struct {
	ConfigPaths []string
	FileName    string
	EnvPrefix   string
}

// Load returns the merged configuration from files and environment variables.
func Load(opts LoaderOptions) (Config, error) {
	v := viper.New()

	name := opts.FileName
	if name == "" {
		name = "council"
	}

	configFile := locateConfigFile(name, opts.ConfigPaths)
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(name)
	}

	prefix := opts.EnvPrefix
	if prefix == "" {
		prefix = "COUNCIL"
	}
	v.SetEnvPrefix(prefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AllowEmptyEnv(true)

	setDefaults(v)

	if configFile != "" {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	return expandEnvVars(cfg), nil
}

// expandEnvVars expands ${VAR} and $VAR syntax in configuration strings.
func expandEnvVars(cfg Config) Config {
	for name, reviewer := range cfg.Reviewers {
		reviewer.APIKey = expandEnvString(reviewer.APIKey)
		reviewer.Model = expandEnvString(reviewer.Model)
		cfg.Reviewers[name] = reviewer
	}

	cfg.HTTP.Timeout = expandEnvString(cfg.HTTP.Timeout)
	cfg.HTTP.InitialBackoff = expandEnvString(cfg.HTTP.InitialBackoff)
	cfg.HTTP.MaxBackoff = expandEnvString(cfg.HTTP.MaxBackoff)
	cfg.Store.Path = expandEnvString(cfg.Store.Path)
	cfg.GitHub.Token = expandEnvString(cfg.GitHub.Token)
	cfg.Observability.Logging.Level = expandEnvString(cfg.Observability.Logging.Level)
	cfg.Observability.Logging.Format = expandEnvString(cfg.Observability.Logging.Format)

	return cfg
}

// expandEnvString replaces ${VAR} or $VAR with environment variable values.
func expandEnvString(s string) string {
	if s == "" {
		return s
	}

	re := regexp.MustCompile(`\$\{([A-Z_][A-Z0-9_]*)\}`)
	s = re.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match
	})

	re = regexp.MustCompile(`\$([A-Z_][A-Z0-9_]*)`)
	s = re.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[1:]
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match
	})

	return s
}

func locateConfigFile(name string, paths []string) string {
	searchPaths := append([]string{}, paths...)
	searchPaths = append(searchPaths, ".")
	for _, dir := range searchPaths {
		if dir == "" {
			continue
		}
		candidate := filepath.Join(dir, name+".yaml")
		info, err := os.Stat(candidate)
		if err == nil && !info.IsDir() {
			return candidate
		}
	}
	return ""
}

func setDefaults(v *viper.Viper) {
	// HTTP defaults
	v.SetDefault("http.timeout", "60s")
	v.SetDefault("http.maxRetries", 5)
	v.SetDefault("http.initialBackoff", "2s")
	v.SetDefault("http.maxBackoff", "32s")
	v.SetDefault("http.backoffMultiplier", 2.0)

	// Batch defaults
	v.SetDefault("batch.maxChars", 40000)
	v.SetDefault("batch.maxFiles", 12)
	v.SetDefault("batch.maxPatchSize", 60000)
	v.SetDefault("batch.maxBatches", 5)

	// Dedup defaults
	v.SetDefault("dedup.useContentSimilarity", true)
	v.SetDefault("dedup.similarityThreshold", 0.6)
	v.SetDefault("dedup.maxComments", 10)

	// Anchor defaults
	v.SetDefault("anchor.maxSnapDistance", 5)
	v.SetDefault("anchor.maxInline", 20)

	// Guard defaults
	v.SetDefault("rateLimit.enabled", true)
	v.SetDefault("rateLimit.maxPerWindow", 10)
	v.SetDefault("rateLimit.window", "1h")
	v.SetDefault("idempotency.enabled", true)
	v.SetDefault("idempotency.ttl", "24h")

	// Store defaults
	v.SetDefault("store.enabled", true)
	v.SetDefault("store.path", defaultStorePath())

	// Observability defaults
	v.SetDefault("observability.logging.enabled", true)
	v.SetDefault("observability.logging.level", "info")
	v.SetDefault("observability.logging.format", "auto")

	// GitHub defaults
	v.SetDefault("github.token", "${GITHUB_TOKEN}")

	// Reviewer defaults
	v.SetDefault("reviewers.correctness.enabled", true)
	v.SetDefault("reviewers.correctness.model", "gpt-4o-mini")
	v.SetDefault("reviewers.correctness.extensions", []string{".ts", ".tsx"})
	v.SetDefault("reviewers.performance.enabled", true)
	v.SetDefault("reviewers.performance.model", "gpt-4o-mini")
	v.SetDefault("reviewers.performance.extensions", []string{".ts", ".tsx", ".scss", ".css"})
	v.SetDefault("reviewers.conventions.enabled", true)
	v.SetDefault("reviewers.conventions.model", "gpt-4o-mini")
	v.SetDefault("reviewers.conventions.convention", true)
}

func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./council.db"
	}
	return filepath.Join(home, ".config", "council", "council.db")
}
