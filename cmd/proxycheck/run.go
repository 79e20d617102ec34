package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/modelplex/proxycheck/internal/config"
	"github.com/modelplex/proxycheck/internal/monitoring"
	"github.com/modelplex/proxycheck/internal/scenario"
)

type runCommand struct {
	ProxyURL    string         `long:"proxy-url" description:"Proxy base URL (default http://localhost:9000)"`
	Only        []string       `long:"only" description:"Run only the named scenario: anthropic, openai or openai-stream (repeatable)"`
	Pause       *time.Duration `long:"pause" description:"Pause after each scenario (default 1s)"`
	Timeout     *time.Duration `long:"timeout" description:"Per-request HTTP timeout (default 60s)"`
	LogRequests bool           `long:"log-requests" description:"Write one JSON record per scenario to stderr"`
	MetricsFile string         `long:"metrics-file" description:"Write Prometheus textfile metrics to this path after the run"`

	global *Options
	stdout io.Writer
	stderr io.Writer
}

// apply overlays command line values on cfg.
func (c *runCommand) apply(cfg *config.Config) {
	if c.ProxyURL != "" {
		cfg.Proxy.BaseURL = c.ProxyURL
	}
	if len(c.Only) > 0 {
		cfg.Run.Only = c.Only
	}
	if c.Pause != nil {
		cfg.Run.Pause = config.Duration(*c.Pause)
	}
	if c.Timeout != nil {
		cfg.Proxy.Timeout = config.Duration(*c.Timeout)
	}
	if c.LogRequests {
		cfg.Log.Requests = true
	}
	if c.MetricsFile != "" {
		cfg.Log.MetricsFile = c.MetricsFile
	}
}

func (c *runCommand) Execute(_ []string) error {
	if err := config.LoadDotenv(c.global.EnvFile); err != nil {
		return err
	}

	cfg, err := config.Load(c.global.Config)
	if err != nil {
		return fmt.Errorf("loading config %s: %w", c.global.Config, err)
	}
	c.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	if c.global.Config != "" {
		slog.Debug("Loaded configuration", "file", c.global.Config)
	}

	selected, err := scenario.Select(scenario.Build(cfg), cfg.Run.Only)
	if err != nil {
		return err
	}

	out := c.stdout
	fmt.Fprintln(out, "--- Starting Go SDK Proxy Tests ---")
	fmt.Fprintf(out, "Proxy URL Base: %s\n", cfg.Proxy.BaseURL)
	fmt.Fprintf(out, "(Loading API keys from %s file)\n", c.global.EnvFile)
	fmt.Fprintln(out, "(Ensure the proxy server is running and configured)")
	fmt.Fprintln(out, scenario.Separator)

	if missing := cfg.MissingCredentials(scenario.Providers(selected)...); len(missing) > 0 {
		fmt.Fprintf(out, "ERROR: Missing required API keys in .env file or environment: %s\n", strings.Join(missing, ", "))
		fmt.Fprintln(out, "Please ensure they are defined in the .env file or exported in the environment.")
		return errMissingCredentials
	}

	runLog := monitoring.NewRunLog(cfg.Log.Requests, c.stderr)
	defer func() { _ = runLog.Sync() }()
	metrics := monitoring.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Debug("Running scenarios", "run_id", runLog.RunID(), "scenarios", scenario.Names(selected))
	results := scenario.NewRunner(out, cfg.Run.Pause.Std(), runLog, metrics).Run(ctx, selected)

	fmt.Fprintln(out, "--- All Go SDK Tests Completed ---")
	logSummary(results)

	if cfg.Log.MetricsFile != "" {
		if err := metrics.WriteFile(cfg.Log.MetricsFile); err != nil {
			slog.Error("Failed to write metrics", "error", err)
		} else {
			slog.Debug("Wrote metrics", "file", cfg.Log.MetricsFile)
		}
	}
	return nil
}

func logSummary(results []scenario.Result) {
	counts := make(map[scenario.Outcome]int)
	for _, r := range results {
		counts[r.Outcome]++
	}
	slog.Info("Scenarios finished",
		"passed", counts[scenario.OutcomePassed],
		"failed", counts[scenario.OutcomeFailed],
		"skipped", counts[scenario.OutcomeSkipped],
	)
}
