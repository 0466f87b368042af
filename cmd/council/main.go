package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/bkyoung/pr-council/internal/adapter/cli"
	"github.com/bkyoung/pr-council/internal/adapter/git"
	githubadapter "github.com/bkyoung/pr-council/internal/adapter/github"
	"github.com/bkyoung/pr-council/internal/adapter/observability"
	reviewerhttp "github.com/bkyoung/pr-council/internal/adapter/reviewer/http"
	"github.com/bkyoung/pr-council/internal/adapter/reviewer/openai"
	"github.com/bkyoung/pr-council/internal/adapter/reviewer/static"
	"github.com/bkyoung/pr-council/internal/adapter/store/sqlite"
	"github.com/bkyoung/pr-council/internal/config"
	"github.com/bkyoung/pr-council/internal/policy"
	"github.com/bkyoung/pr-council/internal/redaction"
	"github.com/bkyoung/pr-council/internal/store"
	"github.com/bkyoung/pr-council/internal/usecase/council"
	"github.com/bkyoung/pr-council/internal/usecase/dedup"
	"github.com/bkyoung/pr-council/internal/usecase/guard"
	"github.com/bkyoung/pr-council/internal/version"
)

func main() {
	if err := run(); err != nil {
		log.Println(err)
		os.Exit(1)
	}
}

func run() error {
	// Best-effort: a missing .env file is not an error.
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(config.LoaderOptions{
		ConfigPaths: defaultConfigPaths(),
		FileName:    "council",
		EnvPrefix:   "COUNCIL",
	})
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}

	logger := buildLogger(cfg.Observability)

	deliveryGuard := buildGuard(cfg, logger)

	dispatcher, reviewers, applyPolicy := buildDispatcher(cfg)

	orchestrator := council.NewOrchestrator(council.Deps{
		Dispatcher: dispatcher,
		Redactor:   redaction.NewEngine(),
		Logger:     councilLogger(logger),
	}, buildSettings(cfg))

	var forge cli.Forge
	if token := resolvedSecret(cfg.GitHub.Token); token != "" {
		forge = githubadapter.NewPublisher(token)
	}

	root := cli.NewRootCommand(cli.Dependencies{
		Reviewer:    orchestrator,
		Forge:       forge,
		Differ:      git.NewEngine("."),
		Guard:       deliveryGuard,
		Reviewers:   reviewers,
		ApplyPolicy: applyPolicy,
		Version:     version.Value(),
	})

	if err := root.ExecuteContext(ctx); err != nil {
		if errors.Is(err, cli.ErrVersionRequested) {
			return nil
		}
		return fmt.Errorf("command failed: %w", err)
	}
	return nil
}

func defaultConfigPaths() []string {
	paths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "council"))
	}
	return paths
}

func buildLogger(cfg config.ObservabilityConfig) *observability.Logger {
	if !cfg.Logging.Enabled {
		return nil
	}
	return observability.NewLogger(
		observability.ParseLevel(cfg.Logging.Level),
		observability.ParseFormat(cfg.Logging.Format),
	)
}

// councilLogger avoids handing the orchestrator a typed-nil interface.
func councilLogger(logger *observability.Logger) council.Logger {
	if logger == nil {
		return nil
	}
	return logger
}

func buildGuard(cfg config.Config, logger *observability.Logger) cli.DeliveryGuard {
	var deliveryStore store.DeliveryStore
	if cfg.Idempotency.Enabled {
		deliveryStore = buildDeliveryStore(cfg.Store)
	}

	var limiter *guard.RateLimiter
	if cfg.RateLimit.Enabled {
		limiter = guard.NewRateLimiter(cfg.RateLimit.MaxPerWindow, parseDuration(cfg.RateLimit.Window, time.Hour))
	}

	if deliveryStore == nil && limiter == nil {
		return nil
	}

	var guardLogger guard.Logger
	if logger != nil {
		guardLogger = logger
	}
	ttl := parseDuration(cfg.Idempotency.TTL, 24*time.Hour)
	return guard.New(deliveryStore, limiter, ttl, guardLogger)
}

func buildDeliveryStore(cfg config.StoreConfig) store.DeliveryStore {
	if !cfg.Enabled || cfg.Path == "" {
		return store.NewMemoryStore()
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		log.Printf("warning: failed to create store directory, using in-memory store: %v", err)
		return store.NewMemoryStore()
	}
	sqliteStore, err := sqlite.NewStore(cfg.Path)
	if err != nil {
		log.Printf("warning: failed to initialize store, using in-memory store: %v", err)
		return store.NewMemoryStore()
	}
	return sqliteStore
}

// personaInstructions extend the shared system prompt per reviewer identity.
var personaInstructions = map[string]string{
	"correctness": "Focus on correctness: logic errors, null and undefined handling, broken control flow, off-by-one mistakes, and type misuse.",
	"performance": "Focus on performance: unnecessary re-renders, allocations in hot paths, missing memoization, inefficient loops, and expensive style recalculation.",
	"conventions": "Enforce the project conventions listed below. Report only violations of those conventions.",
}

// buildDispatcher wires one backend per enabled reviewer. Reviewers without
// an API key are dropped with a warning; if no reviewer has a key at all,
// the static dispatcher takes over so local runs still produce output.
func buildDispatcher(cfg config.Config) (council.Dispatcher, []council.Reviewer, func(pol *policy.Policy)) {
	names := make([]string, 0, len(cfg.Reviewers))
	for name, rc := range cfg.Reviewers {
		if rc.Enabled {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	retry := reviewerhttp.DefaultRetryConfig()
	if cfg.HTTP.MaxRetries != 0 {
		retry.MaxRetries = cfg.HTTP.MaxRetries
	}
	retry.InitialBackoff = parseDuration(cfg.HTTP.InitialBackoff, retry.InitialBackoff)
	retry.MaxBackoff = parseDuration(cfg.HTTP.MaxBackoff, retry.MaxBackoff)
	if cfg.HTTP.BackoffMultiplier != 0 {
		retry.Multiplier = cfg.HTTP.BackoffMultiplier
	}
	timeout := parseDuration(cfg.HTTP.Timeout, 60*time.Second)

	dispatcher := openai.NewDispatcher()
	conventionClients := make(map[string]*openai.HTTPClient)
	var reviewers []council.Reviewer
	registered := 0

	for _, name := range names {
		rc := cfg.Reviewers[name]
		reviewers = append(reviewers, council.Reviewer{
			ID:         name,
			Extensions: rc.Extensions,
			Convention: rc.Convention,
		})

		apiKey := resolvedSecret(rc.APIKey)
		if apiKey == "" {
			log.Printf("warning: reviewer %s has no API key, skipping backend registration", name)
			continue
		}
		model := rc.Model
		if model == "" {
			model = "gpt-4o-mini"
		}
		client := openai.NewHTTPClient(apiKey, model)
		client.SetTimeout(timeout)
		client.SetRetryConfig(retry)
		dispatcher.Register(name, client, openai.Profile{Instructions: personaInstructions[name]})
		registered++
		if rc.Convention {
			conventionClients[name] = client
		}
	}

	if registered == 0 {
		log.Println("no reviewer API keys configured, using static dispatcher")
		return static.NewDispatcher(), reviewers, nil
	}

	applyPolicy := func(pol *policy.Policy) {
		for name, client := range conventionClients {
			dispatcher.Register(name, client, openai.Profile{
				Instructions: conventionInstructions(name, pol),
			})
		}
	}
	return dispatcher, reviewers, applyPolicy
}

func conventionInstructions(reviewerID string, pol *policy.Policy) string {
	base := personaInstructions[reviewerID]
	if base == "" {
		base = personaInstructions["conventions"]
	}
	if pol == nil || len(pol.Policy) == 0 {
		return base
	}

	var b strings.Builder
	b.WriteString(base)
	b.WriteString("\n\nProject conventions:")
	for _, st := range pol.Policy {
		text := policy.SanitizeForPrompt(st.Text)
		if text == "" {
			continue
		}
		fmt.Fprintf(&b, "\n- [%s] (%s) %s", st.ID, st.Severity, text)
	}
	return b.String()
}

func buildSettings(cfg config.Config) council.Settings {
	settings := council.DefaultSettings()

	if cfg.Batch.MaxChars != 0 {
		settings.Batch.MaxChars = cfg.Batch.MaxChars
	}
	if cfg.Batch.MaxFiles != 0 {
		settings.Batch.MaxFiles = cfg.Batch.MaxFiles
	}
	if cfg.Batch.MaxPatchSize != 0 {
		settings.Batch.MaxPatchSize = cfg.Batch.MaxPatchSize
	}
	if cfg.Batch.MaxBatches != 0 {
		settings.Batch.MaxBatches = cfg.Batch.MaxBatches
	}

	settings.GeneralDedup = dedup.Policy{
		MergeOverlapping:     true,
		UseContentSimilarity: cfg.Dedup.UseContentSimilarity,
		SimilarityThreshold:  cfg.Dedup.SimilarityThreshold,
		MaxComments:          cfg.Dedup.MaxComments,
	}

	if cfg.Anchor.MaxSnapDistance != 0 {
		settings.Anchor.MaxSnapDistance = cfg.Anchor.MaxSnapDistance
	}
	if cfg.Anchor.MaxInline != 0 {
		settings.Anchor.MaxInline = cfg.Anchor.MaxInline
	}

	return settings
}

// resolvedSecret treats values that still carry an unexpanded environment
// variable reference as absent.
func resolvedSecret(value string) string {
	if strings.Contains(value, "$") {
		return ""
	}
	return value
}

func parseDuration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("warning: invalid duration %q, using %s", value, fallback)
		return fallback
	}
	return parsed
}
