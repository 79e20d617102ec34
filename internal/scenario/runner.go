package scenario

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/modelplex/proxycheck/internal/diagnose"
)

// Separator is printed after every executed scenario.
var Separator = strings.Repeat("-", 30)

// Recorder receives every scenario result as soon as it is known.
type Recorder interface {
	Record(result Result)
}

// Runner executes scenarios one at a time, printing their output and
// diagnostics. Failures never stop the run.
type Runner struct {
	out       io.Writer
	pause     time.Duration
	recorders []Recorder
	sleep     func(ctx context.Context, d time.Duration)
	now       func() time.Time
}

// NewRunner creates a runner printing to out and waiting pause after each
// executed scenario.
func NewRunner(out io.Writer, pause time.Duration, recorders ...Recorder) *Runner {
	return &Runner{
		out:       out,
		pause:     pause,
		recorders: recorders,
		sleep:     sleepContext,
		now:       time.Now,
	}
}

func sleepContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Run executes scenarios in order and returns one result per scenario. When
// ctx is canceled the remaining scenarios are not started.
func (r *Runner) Run(ctx context.Context, scenarios []Scenario) []Result {
	results := make([]Result, 0, len(scenarios))
	for _, s := range scenarios {
		if ctx.Err() != nil {
			slog.Warn("Run interrupted", "remaining", len(scenarios)-len(results))
			break
		}
		result := r.runOne(ctx, s)
		for _, rec := range r.recorders {
			rec.Record(result)
		}
		results = append(results, result)
	}
	return results
}

func (r *Runner) runOne(ctx context.Context, s Scenario) Result {
	info := s.Info()
	fmt.Fprintf(r.out, ">>> Testing %s\n", info.Title)

	if !info.Configured {
		fmt.Fprintf(r.out, "--- Skipping %s test (%s not found) ---\n", info.Label, info.Credential)
		slog.Debug("Scenario skipped", "scenario", info.Name, "credential", info.Credential)
		return Result{Info: info, Outcome: OutcomeSkipped}
	}

	slog.Debug("Scenario started", "scenario", info.Name, "model", info.Model)
	start := r.now()
	err := s.Run(ctx, r.out)
	result := Result{
		Info:      info,
		Outcome:   OutcomePassed,
		Diagnosis: diagnose.Classify(err),
		Duration:  r.now().Sub(start),
	}

	if err != nil {
		result.Outcome = OutcomeFailed
		if info.ErrorOnNewLine {
			fmt.Fprintln(r.out)
		}
		fmt.Fprintf(r.out, "%s ERROR: %s\n", info.ErrorPrefix, result.Diagnosis.Message())
		slog.Debug("Scenario failed", "scenario", info.Name, "category", result.Diagnosis.Category, "error", err)
	}

	fmt.Fprintln(r.out, Separator)
	r.sleep(ctx, r.pause)
	return result
}
