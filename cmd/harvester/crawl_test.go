package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nao1215/harvester/internal/config"
	"github.com/nao1215/harvester/internal/model"
	"github.com/nao1215/harvester/internal/pipeline"
	"github.com/nao1215/harvester/internal/proxy"
)

// TestBuildConfigDefaults tests config building with default flag values.
func TestBuildConfigDefaults(t *testing.T) {
	t.Parallel()

	cmd := NewCrawlCmd()
	if err := cmd.ParseFlags(nil); err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}

	cfg, err := buildConfig(cmd, []string{"https://example.com/"})
	if err != nil {
		t.Fatalf("buildConfig() error = %v, want nil", err)
	}

	if cfg.Timeout != config.DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", cfg.Timeout, config.DefaultTimeout)
	}
	if cfg.Workers != config.DefaultWorkers {
		t.Errorf("Workers = %d, want %d", cfg.Workers, config.DefaultWorkers)
	}
	if cfg.MaxAttempts != config.DefaultMaxAttempts {
		t.Errorf("MaxAttempts = %d, want %d", cfg.MaxAttempts, config.DefaultMaxAttempts)
	}
	if cfg.FollowLinks {
		t.Error("FollowLinks should default to false")
	}
	if len(cfg.Targets) != 1 || cfg.Targets[0] != "https://example.com/" {
		t.Errorf("Targets = %v, want the positional argument", cfg.Targets)
	}
	if cfg.FileConfig == nil {
		t.Fatal("FileConfig should never be nil after buildConfig")
	}
	if cfg.FileConfig.DefaultRateLimit != nil {
		t.Error("DefaultRateLimit should stay nil when rate flags are untouched")
	}
	if !cfg.SaveToDB {
		t.Error("SaveToDB should default to true")
	}
}

// TestBuildConfigFlags tests config building with explicit flag values.
func TestBuildConfigFlags(t *testing.T) {
	t.Parallel()

	cmd := NewCrawlCmd()
	args := []string{
		"--timeout", "10s",
		"--workers", "8",
		"--follow",
		"--max-pages", "25",
		"--max-attempts", "5",
		"--base-delay", "500ms",
		"--rate", "0.5",
		"--burst", "1",
		"--json",
		"--output", "out.json",
	}
	if err := cmd.ParseFlags(args); err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}

	cfg, err := buildConfig(cmd, []string{"https://example.com/"})
	if err != nil {
		t.Fatalf("buildConfig() error = %v, want nil", err)
	}

	if cfg.Timeout != 10*time.Second {
		t.Errorf("Timeout = %v, want 10s", cfg.Timeout)
	}
	if cfg.Workers != 8 {
		t.Errorf("Workers = %d, want 8", cfg.Workers)
	}
	if !cfg.FollowLinks {
		t.Error("FollowLinks should be true")
	}
	if cfg.MaxPages != 25 {
		t.Errorf("MaxPages = %d, want 25", cfg.MaxPages)
	}
	if cfg.MaxAttempts != 5 {
		t.Errorf("MaxAttempts = %d, want 5", cfg.MaxAttempts)
	}
	if cfg.BaseDelay != 500*time.Millisecond {
		t.Errorf("BaseDelay = %v, want 500ms", cfg.BaseDelay)
	}
	if !cfg.JSONReport {
		t.Error("JSONReport should be true")
	}
	if cfg.ReportFile != "out.json" {
		t.Errorf("ReportFile = %q, want %q", cfg.ReportFile, "out.json")
	}

	limit := cfg.FileConfig.DefaultRateLimit
	if limit == nil {
		t.Fatal("rate flags should set the default rate limit")
	}
	if limit.RequestsPerSecond != 0.5 || limit.Burst != 1 {
		t.Errorf("DefaultRateLimit = %+v, want 0.5 rps burst 1", limit)
	}
}

// TestBuildConfigMissingConfigFile tests the explicit config path error.
func TestBuildConfigMissingConfigFile(t *testing.T) {
	t.Parallel()

	cmd := NewCrawlCmd()
	if err := cmd.ParseFlags([]string{"--config", "/nonexistent/config.yaml"}); err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}

	if _, err := buildConfig(cmd, []string{"https://example.com/"}); err == nil {
		t.Error("buildConfig() with missing explicit config file should fail")
	}
}

// TestBuildConfigLoadsFile tests loading proxies and limits from a file.
func TestBuildConfigLoadsFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "harvester.yaml")
	content := `
defaultRateLimit:
  requestsPerSecond: 2.0
  burst: 4
proxies:
  - address: socks5://proxy-eu.example.net:1080
    region: eu
retry:
  maxAttempts: 7
  baseDelay: 250ms
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cmd := NewCrawlCmd()
	if err := cmd.ParseFlags([]string{"--config", path}); err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}

	cfg, err := buildConfig(cmd, []string{"https://example.com/"})
	if err != nil {
		t.Fatalf("buildConfig() error = %v, want nil", err)
	}

	if cfg.FileConfig.DefaultRateLimit == nil || cfg.FileConfig.DefaultRateLimit.RequestsPerSecond != 2.0 {
		t.Errorf("DefaultRateLimit = %+v, want 2.0 rps from file", cfg.FileConfig.DefaultRateLimit)
	}
	if len(cfg.FileConfig.Proxies) != 1 {
		t.Fatalf("Proxies = %d entries, want 1", len(cfg.FileConfig.Proxies))
	}
	pools := cfg.FileConfig.RegionPools()
	if len(pools["eu"]) != 1 {
		t.Errorf("RegionPools()[eu] = %v, want the configured proxy", pools["eu"])
	}

	if cfg.MaxAttempts != 7 {
		t.Errorf("MaxAttempts = %d, want the file's retry override", cfg.MaxAttempts)
	}
	if cfg.BaseDelay != 250*time.Millisecond {
		t.Errorf("BaseDelay = %v, want 250ms from the file", cfg.BaseDelay)
	}
	if cfg.MaxDelay != config.DefaultMaxDelay {
		t.Errorf("MaxDelay = %v, want the default kept", cfg.MaxDelay)
	}
}

// TestBuildConfigFlagBeatsFileRetry tests flag precedence over the file.
func TestBuildConfigFlagBeatsFileRetry(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "harvester.yaml")
	content := "retry:\n  maxAttempts: 7\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cmd := NewCrawlCmd()
	if err := cmd.ParseFlags([]string{"--config", path, "--max-attempts", "2"}); err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}

	cfg, err := buildConfig(cmd, []string{"https://example.com/"})
	if err != nil {
		t.Fatalf("buildConfig() error = %v, want nil", err)
	}
	if cfg.MaxAttempts != 2 {
		t.Errorf("MaxAttempts = %d, want the explicit flag to win", cfg.MaxAttempts)
	}
}

// TestCollectStep tests page summary collection in the pipeline.
func TestCollectStep(t *testing.T) {
	t.Parallel()

	step := &collectStep{}
	page := &model.Page{
		URL:          "https://example.com/",
		StatusCode:   200,
		Title:        "Example",
		Language:     "en",
		ProxyAddress: "socks5://proxy:1080",
	}
	task := model.NewTask("session", page.URL, model.PriorityNormal)

	if err := step.Do(context.Background(), &pipeline.Result{Task: task, Page: page}); err != nil {
		t.Fatalf("Do() error = %v, want nil", err)
	}

	pages := step.Pages()
	if len(pages) != 1 {
		t.Fatalf("Pages() = %d entries, want 1", len(pages))
	}
	got := pages[0]
	if got.URL != page.URL || got.StatusCode != 200 || got.Title != "Example" {
		t.Errorf("summary = %+v, want the page's fields", got)
	}
	if got.ProxyAddress != page.ProxyAddress {
		t.Errorf("ProxyAddress = %q, want %q", got.ProxyAddress, page.ProxyAddress)
	}
	if step.Name() != "collect" {
		t.Errorf("Name() = %q, want %q", step.Name(), "collect")
	}
}

// TestSummaryConversions tests dead task and proxy summary building.
func TestSummaryConversions(t *testing.T) {
	t.Parallel()

	task := model.NewTask("session", "https://example.com/broken", model.PriorityNormal)
	task.AttemptCount = 3
	task.LastError = "connection refused"

	dead := deadTaskSummaries([]*model.Task{task})
	if len(dead) != 1 {
		t.Fatalf("deadTaskSummaries() = %d entries, want 1", len(dead))
	}
	if dead[0].Attempts != 3 || dead[0].LastError != "connection refused" {
		t.Errorf("summary = %+v, want the task's failure state", dead[0])
	}

	summaries := proxySummaries([]proxy.RequestProxy{
		{Address: "socks5://a:1080", Healthy: true},
		{Address: "socks5://b:1080", Healthy: false, FailureCount: 5},
	})
	if len(summaries) != 2 {
		t.Fatalf("proxySummaries() = %d entries, want 2", len(summaries))
	}
	if summaries[1].Healthy || summaries[1].FailureCount != 5 {
		t.Errorf("summary = %+v, want unhealthy with 5 failures", summaries[1])
	}
}
