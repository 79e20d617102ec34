// Package scenario implements the smoke-test requests sent through the proxy
// and the sequential runner that prints their outcome.
package scenario

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/modelplex/proxycheck/internal/config"
	"github.com/modelplex/proxycheck/internal/diagnose"
)

// Scenario names accepted by Select.
const (
	NameAnthropic    = "anthropic"
	NameOpenAI       = "openai"
	NameOpenAIStream = "openai-stream"
)

// Info describes a scenario for banners, skip messages and run records.
type Info struct {
	Name     string
	Provider string
	Model    string
	Stream   bool
	// Title follows ">>> Testing ".
	Title string
	// Label names the scenario in the skip message.
	Label string
	// ErrorPrefix precedes " ERROR: " in diagnostics.
	ErrorPrefix string
	// ErrorOnNewLine starts diagnostics on a fresh line, for scenarios that
	// may have printed partial output.
	ErrorOnNewLine bool
	// Credential names the missing key in the skip message.
	Credential string
	Configured bool
}

// Scenario sends one request through the proxy and prints the response to w.
type Scenario interface {
	Info() Info
	Run(ctx context.Context, w io.Writer) error
}

type Outcome string

const (
	OutcomePassed  Outcome = "passed"
	OutcomeFailed  Outcome = "failed"
	OutcomeSkipped Outcome = "skipped"
)

// Result is the record of one executed or skipped scenario.
type Result struct {
	Info      Info
	Outcome   Outcome
	Diagnosis diagnose.Diagnosis
	Duration  time.Duration
}

// Build returns every scenario in run order, configured from cfg.
func Build(cfg *config.Config) []Scenario {
	httpClient := &http.Client{Timeout: cfg.Proxy.Timeout.Std()}

	return []Scenario{
		NewAnthropic(cfg, httpClient),
		NewOpenAIChat(cfg, httpClient),
		NewOpenAIStream(cfg, httpClient),
	}
}

// Names lists the names of scenarios in order.
func Names(scenarios []Scenario) []string {
	return lo.Map(scenarios, func(s Scenario, _ int) string {
		return s.Info().Name
	})
}

// Select keeps the scenarios named in only, preserving run order. An empty
// only keeps everything.
func Select(all []Scenario, only []string) ([]Scenario, error) {
	if len(only) == 0 {
		return all, nil
	}

	known := Names(all)
	if unknown := lo.Without(lo.Uniq(only), known...); len(unknown) > 0 {
		return nil, fmt.Errorf("unknown scenario %s (known: %s)",
			strings.Join(unknown, ", "), strings.Join(known, ", "))
	}

	return lo.Filter(all, func(s Scenario, _ int) bool {
		return lo.Contains(only, s.Info().Name)
	}), nil
}

// Providers lists the distinct providers used by scenarios.
func Providers(scenarios []Scenario) []string {
	return lo.Uniq(lo.Map(scenarios, func(s Scenario, _ int) string {
		return s.Info().Provider
	}))
}
