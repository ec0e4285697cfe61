// Package suite runs a set of scenarios in parallel and collects their
// verdicts into a report.
package suite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/v0xg/formprobe/internal/scenario"
)

// ScenarioRunner plays one scenario. *scenario.Runner implements it.
type ScenarioRunner interface {
	Run(ctx context.Context, sc scenario.Scenario) scenario.Verdict
}

// Options configures a Suite.
type Options struct {
	// Concurrency bounds the scenarios running at once.
	Concurrency int
	// ScenarioTimeout bounds each attempt of a scenario.
	ScenarioTimeout time.Duration
	// RetryNotFound is how many extra attempts a scenario gets when it
	// fails because an element could not be found.
	RetryNotFound int
	// RetryDelay separates those attempts.
	RetryDelay time.Duration
}

// AbortError stops the suite. It is returned when a scenario hits a
// configuration defect no other scenario can be expected to survive.
type AbortError struct {
	Scenario string
	Reason   string
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("suite aborted by %s: %s", e.Scenario, e.Reason)
}

// Suite runs scenarios.
type Suite struct {
	runner ScenarioRunner
	opts   Options
	logger *zap.Logger
}

// New returns a suite over runner.
func New(runner ScenarioRunner, opts Options, logger *zap.Logger) *Suite {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.RetryNotFound < 0 {
		opts.RetryNotFound = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Suite{runner: runner, opts: opts, logger: logger.Named("suite")}
}

// Run plays every scenario and returns the report. Verdicts keep the order
// of scenarios. The error is non-nil only when the suite was aborted or ctx
// ended; the report is returned either way and lists what did not run.
func (s *Suite) Run(ctx context.Context, scenarios []scenario.Scenario) (*Report, error) {
	report := &Report{RunID: uuid.NewString(), StartedAt: time.Now()}
	logger := s.logger.With(zap.String("runId", report.RunID))
	logger.Info("Starting suite",
		zap.Int("scenarios", len(scenarios)),
		zap.Int("concurrency", s.opts.Concurrency),
	)

	verdicts := make([]*scenario.Verdict, len(scenarios))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)

	for i, sc := range scenarios {
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			v := s.runWithRetry(gctx, sc, logger)
			verdicts[i] = &v
			if v.Cause == scenario.CauseUnknownField {
				return &AbortError{Scenario: v.Scenario, Reason: v.Reason}
			}
			return nil
		})
	}
	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	for i, v := range verdicts {
		if v == nil {
			report.Skipped = append(report.Skipped, scenarios[i].Title())
			continue
		}
		report.Verdicts = append(report.Verdicts, *v)
	}
	report.Duration = time.Since(report.StartedAt)
	report.Summary = summarize(report.Verdicts, len(report.Skipped))

	var abort *AbortError
	if errors.As(err, &abort) {
		report.Aborted = abort.Error()
	}
	fields := []zap.Field{
		zap.Int("passed", report.Summary.Passed),
		zap.Int("failed", report.Summary.Failed),
		zap.Int("inconclusive", report.Summary.Inconclusive),
		zap.Int("skipped", report.Summary.Skipped),
		zap.Duration("duration", report.Duration),
	}
	if err != nil {
		logger.Error("Suite stopped early", append(fields, zap.Error(err))...)
		return report, err
	}
	logger.Info("Suite finished", fields...)
	return report, nil
}

var errElementNotFound = errors.New("element not found")

// runWithRetry repeats a scenario that failed with not_found, up to
// RetryNotFound extra times. Every other verdict is final.
func (s *Suite) runWithRetry(ctx context.Context, sc scenario.Scenario, logger *zap.Logger) scenario.Verdict {
	var (
		v        scenario.Verdict
		attempts int
	)
	op := func() error {
		attempts++
		v = s.runOnce(ctx, sc)
		if v.Cause == scenario.CauseNotFound {
			return errElementNotFound
		}
		return nil
	}
	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(s.opts.RetryDelay), uint64(s.opts.RetryNotFound)),
		ctx,
	)
	notify := func(err error, next time.Duration) {
		logger.Warn("Retrying scenario",
			zap.String("scenario", sc.Title()),
			zap.Int("attempt", attempts),
			zap.Duration("delay", next),
			zap.String("reason", v.Reason),
		)
	}
	_ = backoff.RetryNotify(op, b, notify)
	v.Attempts = attempts
	return v
}

func (s *Suite) runOnce(ctx context.Context, sc scenario.Scenario) scenario.Verdict {
	if s.opts.ScenarioTimeout <= 0 {
		return s.runner.Run(ctx, sc)
	}
	sctx, cancel := context.WithTimeout(ctx, s.opts.ScenarioTimeout)
	defer cancel()
	return s.runner.Run(sctx, sc)
}
