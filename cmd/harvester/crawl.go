package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/harvester/internal/config"
	"github.com/nao1215/harvester/internal/crawler"
	"github.com/nao1215/harvester/internal/database"
	"github.com/nao1215/harvester/internal/fetch"
	harvesterlog "github.com/nao1215/harvester/internal/log"
	"github.com/nao1215/harvester/internal/model"
	"github.com/nao1215/harvester/internal/pipeline"
	"github.com/nao1215/harvester/internal/proxy"
	"github.com/nao1215/harvester/internal/queue"
	"github.com/nao1215/harvester/internal/ratelimit"
	"github.com/nao1215/harvester/internal/report"
	"github.com/nao1215/harvester/internal/session"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [urls...]",
		Short: "Crawl one or more URLs through the scheduling engine",
		Long: `Crawl seeds the task queue with the given URLs and runs the worker
pool until the queue drains or an interrupt arrives.

Each fetch is admitted by the per-domain rate limiter and routed through
the configured proxy pool. Transient failures retry with exponential
backoff; permanent failures (4xx, invalid URLs) die immediately.

Examples:
  # Crawl a single page
  harvester crawl https://example.com/

  # Crawl several seeds and follow discovered links up to 50 pages
  harvester crawl --follow --max-pages 50 https://example.com/

  # Slow down for a fragile target and write a Markdown report
  harvester crawl --rate 0.5 --markdown -o report.md https://example.com/

  # Use a custom configuration file with proxies and per-domain limits
  harvester crawl -c myconfig.yaml https://example.com/

Configuration file (.harvester) example:
  defaultRateLimit:
    requestsPerSecond: 1.0
    burst: 2
  rateLimits:
    api.example.com:
      requestsPerSecond: 0.5
      burst: 1
  proxies:
    - address: socks5://proxy-eu.example.net:1080
      region: eu
  regionRules:
    de: eu`,
		Args: cobra.ArbitraryArgs,
		RunE: runCrawlCmd,
	}

	// Fetch behavior flags
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Connection timeout for each request")
	cmd.Flags().IntP("workers", "w", config.DefaultWorkers,
		"Number of concurrent fetch workers")
	cmd.Flags().StringP("user-agent", "u", config.DefaultUserAgent,
		"User-Agent header sent with requests")

	// Link discovery flags
	cmd.Flags().BoolP("follow", "f", false,
		"Follow links discovered on fetched pages")
	cmd.Flags().IntP("max-pages", "p", config.DefaultMaxPages,
		"Maximum number of tasks a session may grow to via link discovery")

	// Retry flags
	cmd.Flags().IntP("max-attempts", "a", config.DefaultMaxAttempts,
		"Retry budget per task, counting the first attempt")
	cmd.Flags().Duration("base-delay", config.DefaultBaseDelay,
		"Backoff delay before the first retry")
	cmd.Flags().Duration("max-delay", config.DefaultMaxDelay,
		"Cap on exponential backoff growth")
	cmd.Flags().Float64("multiplier", config.DefaultMultiplier,
		"Exponential backoff growth factor")
	cmd.Flags().Float64("jitter", config.DefaultJitter,
		"Random fraction applied to backoff delays (0 to 1)")

	// Rate limiting flags
	cmd.Flags().Float64("rate", config.DefaultRequestsPerSecond,
		"Default requests per second per domain")
	cmd.Flags().Int("burst", config.DefaultBurst,
		"Requests a domain may absorb back-to-back before pacing")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .harvester in current or home directory)")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := harvesterlog.NewSecureLogger(os.Stderr, cfg.Verbose)
	slog.SetDefault(logger)

	// Set up context with signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal, cancelling...")
		cancel()
	}()

	return runCrawl(ctx, cancel, cfg, logger)
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from cobra command flags.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	cfg.Verbose = getVerboseFlag(cmd)

	var err error

	cfg.Timeout, err = cmd.Flags().GetDuration("timeout")
	if err != nil {
		return nil, err
	}

	cfg.Workers, err = cmd.Flags().GetInt("workers")
	if err != nil {
		return nil, err
	}

	cfg.UserAgent, err = cmd.Flags().GetString("user-agent")
	if err != nil {
		return nil, err
	}

	cfg.FollowLinks, err = cmd.Flags().GetBool("follow")
	if err != nil {
		return nil, err
	}

	cfg.MaxPages, err = cmd.Flags().GetInt("max-pages")
	if err != nil {
		return nil, err
	}

	cfg.MaxAttempts, err = cmd.Flags().GetInt("max-attempts")
	if err != nil {
		return nil, err
	}

	cfg.BaseDelay, err = cmd.Flags().GetDuration("base-delay")
	if err != nil {
		return nil, err
	}

	cfg.MaxDelay, err = cmd.Flags().GetDuration("max-delay")
	if err != nil {
		return nil, err
	}

	cfg.Multiplier, err = cmd.Flags().GetFloat64("multiplier")
	if err != nil {
		return nil, err
	}

	cfg.Jitter, err = cmd.Flags().GetFloat64("jitter")
	if err != nil {
		return nil, err
	}

	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	// Load rate limits, proxies, and region rules from the config file.
	// If user explicitly specified a config file path, error if not found.
	// If no path specified, silently use empty config if no file found.
	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)

	if configPath != "" {
		cfg.FileConfig, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	} else if explicitConfigPath {
		return nil, fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
	} else {
		cfg.FileConfig = &config.File{}
	}

	applyFileRetry(cmd, cfg)

	// CLI rate flags override the file's default limit when given
	if cmd.Flags().Changed("rate") || cmd.Flags().Changed("burst") {
		rps, err := cmd.Flags().GetFloat64("rate")
		if err != nil {
			return nil, err
		}
		burst, err := cmd.Flags().GetInt("burst")
		if err != nil {
			return nil, err
		}
		cfg.FileConfig.DefaultRateLimit = &ratelimit.DomainLimit{
			RequestsPerSecond: rps,
			Burst:             burst,
		}
	}

	cfg.JSONReport, err = cmd.Flags().GetBool("json")
	if err != nil {
		return nil, err
	}

	cfg.MarkdownReport, err = cmd.Flags().GetBool("markdown")
	if err != nil {
		return nil, err
	}

	cfg.ReportFile, err = cmd.Flags().GetString("output")
	if err != nil {
		return nil, err
	}

	// Always save to database using XDG data directory
	cfg.SaveToDB = true
	cfg.DBDir = config.XDGDataDir()

	// Get positional arguments (seed URLs)
	cfg.Targets = args

	return cfg, nil
}

// applyFileRetry applies the config file's retry overrides. A flag the
// user set explicitly wins over the file.
func applyFileRetry(cmd *cobra.Command, cfg *config.Config) {
	retry := cfg.FileConfig.Retry
	if retry == nil {
		return
	}

	if retry.MaxAttempts > 0 && !cmd.Flags().Changed("max-attempts") {
		cfg.MaxAttempts = retry.MaxAttempts
	}
	if retry.BaseDelay > 0 && !cmd.Flags().Changed("base-delay") {
		cfg.BaseDelay = time.Duration(retry.BaseDelay)
	}
	if retry.MaxDelay > 0 && !cmd.Flags().Changed("max-delay") {
		cfg.MaxDelay = time.Duration(retry.MaxDelay)
	}
	if retry.Multiplier > 0 && !cmd.Flags().Changed("multiplier") {
		cfg.Multiplier = retry.Multiplier
	}
	if retry.Jitter != nil && !cmd.Flags().Changed("jitter") {
		cfg.Jitter = *retry.Jitter
	}
}

// collectStep gathers page summaries for the session report as pages flow
// through the pipeline.
type collectStep struct {
	mu    sync.Mutex
	pages []model.PageSummary
}

// Do implements pipeline.Step.
func (s *collectStep) Do(_ context.Context, result *pipeline.Result) error {
	page := result.Page

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages = append(s.pages, model.PageSummary{
		URL:          page.URL,
		StatusCode:   page.StatusCode,
		Title:        page.Title,
		Language:     page.Language,
		ProxyAddress: page.ProxyAddress,
	})
	return nil
}

// Name implements pipeline.Step.
func (s *collectStep) Name() string { return "collect" }

// Pages returns the collected summaries.
func (s *collectStep) Pages() []model.PageSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.PageSummary(nil), s.pages...)
}

// runCrawl wires the crawl session together and runs it to completion.
func runCrawl(ctx context.Context, cancel context.CancelFunc, cfg *config.Config, logger *slog.Logger) error {
	registry := session.NewRegistry()
	sess := registry.Begin(cfg.Targets)
	sess.Bind(cancel)

	logger.Info("starting crawl",
		"session", sess.ID,
		"targets", cfg.Targets,
		"workers", cfg.Workers,
		"followLinks", cfg.FollowLinks,
	)

	// Open database connection if saving is enabled
	var db *database.HarvestDB
	if cfg.SaveToDB {
		var err error
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Info("database opened", "dir", cfg.DBDir)
	}

	q := queue.New(sess.ID,
		queue.WithBackoffPolicy(queue.BackoffPolicy{
			MaxAttempts: cfg.MaxAttempts,
			BaseDelay:   cfg.BaseDelay,
			MaxDelay:    cfg.MaxDelay,
			Multiplier:  cfg.Multiplier,
			Exponential: true,
			Jitter:      cfg.Jitter,
		}),
		queue.WithMaxConcurrency(cfg.Workers),
		queue.WithValidator(fetch.ValidateURL),
		queue.WithLogger(logger),
	)

	limiter := cfg.FileConfig.Limiter()
	rotator := proxy.NewRotator(cfg.FileConfig.RequestProxies(),
		proxy.WithRotatorLogger(logger))

	client := fetch.NewClient(
		fetch.WithTimeout(cfg.Timeout),
		fetch.WithUserAgent(cfg.UserAgent),
		fetch.WithMaxBodySize(cfg.MaxBodySize),
	)

	collect := &collectStep{}
	pipe := pipeline.New(
		pipeline.WithLogger(logger),
		pipeline.WithContinueOnError(true),
	)
	pipe.AddSteps(&crawler.ExtractStep{}, &crawler.ClassifyStep{}, collect)
	if db != nil {
		pipe.AddSteps(crawler.NewStoreStep(db))
	}

	opts := []crawler.HarvesterOption{
		crawler.WithWorkers(cfg.Workers),
		crawler.WithPipeline(pipe),
		crawler.WithHarvesterLogger(logger),
	}
	if pools := cfg.FileConfig.RegionPools(); len(pools) > 0 {
		opts = append(opts, crawler.WithGeoSelector(
			proxy.NewGeoSelector(pools, proxy.WithRegionRules(cfg.FileConfig.RegionRules))))
	}
	if cfg.FollowLinks {
		opts = append(opts, crawler.WithFollowLinks(cfg.MaxPages))
	}

	h := crawler.New(q, limiter, rotator, client, opts...)

	if _, err := q.EnqueueBatch(cfg.Targets, model.PriorityNormal); err != nil {
		return fmt.Errorf("failed to enqueue targets: %w", err)
	}

	fmt.Printf("Crawling %d seed(s)...\n", len(cfg.Targets))
	startTime := time.Now()

	runErr := h.Run(ctx)
	sess.Finish()

	elapsed := time.Since(startTime)
	fmt.Printf("Crawl finished in %s\n\n", elapsed.Round(time.Millisecond))

	sessionReport := &model.SessionReport{
		SessionID:  sess.ID,
		Targets:    sess.Targets,
		StartedAt:  sess.StartedAt,
		FinishedAt: sess.FinishedAt(),
		Stats:      q.Stats(),
		Pages:      collect.Pages(),
		DeadTasks:  deadTaskSummaries(q.DeadTasks()),
		Proxies:    proxySummaries(rotator.HealthStatus()),
	}

	if err := outputReport(cfg, sessionReport); err != nil {
		logger.Error("report failed", "session", sess.ID, "error", err)
	}

	if err := saveSession(ctx, db, q, sessionReport, logger); err != nil {
		logger.Error("failed to save session", "session", sess.ID, "error", err)
	}

	// Cancellation is a normal way to end a session; the partial report
	// has already been written.
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}

// deadTaskSummaries converts dead tasks into report entries.
func deadTaskSummaries(tasks []*model.Task) []model.DeadTaskSummary {
	out := make([]model.DeadTaskSummary, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, model.DeadTaskSummary{
			URL:       t.URL,
			Attempts:  t.AttemptCount,
			LastError: t.LastError,
		})
	}
	return out
}

// proxySummaries converts rotator health snapshots into report entries.
func proxySummaries(proxies []proxy.RequestProxy) []model.ProxySummary {
	out := make([]model.ProxySummary, 0, len(proxies))
	for _, p := range proxies {
		out = append(out, model.ProxySummary{
			Address:      p.Address,
			Healthy:      p.Healthy,
			FailureCount: p.FailureCount,
		})
	}
	return out
}

// outputReport outputs the session report in the requested format.
func outputReport(cfg *config.Config, sessionReport *model.SessionReport) error {
	output, err := report.Output(cfg.ReportFile)
	if err != nil {
		return fmt.Errorf("failed to open report output: %w", err)
	}
	defer output.Close()

	var writer report.Writer
	switch {
	case cfg.JSONReport:
		writer = report.NewFullJSONWriter(output, getVersion(), report.WithPrettyPrint())
	case cfg.MarkdownReport:
		writer = report.NewMarkdownWriter(output)
	default:
		writer = report.NewSimpleWriter(output, report.WithVerbose(cfg.Verbose))
	}

	if _, err := writer.Write(sessionReport); err != nil {
		return err
	}
	return nil
}

// saveSession persists session statistics and the dead-task audit trail.
// If db is nil, this function is a no-op.
func saveSession(ctx context.Context, db *database.HarvestDB, q *queue.Queue, sessionReport *model.SessionReport, logger *slog.Logger) error {
	if db == nil {
		return nil
	}

	record := &database.SessionRecord{
		ID:         sessionReport.SessionID,
		StartedAt:  sessionReport.StartedAt,
		FinishedAt: sessionReport.FinishedAt,
		Stats:      sessionReport.Stats,
	}
	if err := db.SaveSession(ctx, record); err != nil {
		return fmt.Errorf("failed to save session record: %w", err)
	}

	if dead := q.DeadTasks(); len(dead) > 0 {
		if err := db.SaveDeadTasks(ctx, sessionReport.SessionID, dead); err != nil {
			return fmt.Errorf("failed to save dead tasks: %w", err)
		}
	}

	logger.Info("session saved to database", "session", sessionReport.SessionID)
	return nil
}
