package scenario

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/v0xg/formprobe/internal/action"
	"github.com/v0xg/formprobe/internal/browser"
	"github.com/v0xg/formprobe/internal/locator"
	"github.com/v0xg/formprobe/internal/resolve"
	"github.com/v0xg/formprobe/internal/semantic"
)

// UniquePlaceholder in an input value is replaced with a token unique to
// each scenario run, so repeated runs never collide on server-side state
// such as already registered e-mails.
const UniquePlaceholder = "{{unique}}"

// Recorder produces a diagnostic recording per scenario run.
type Recorder interface {
	Begin(sc Scenario) Recording
}

// Recording observes the actions of one run and is finished with the
// verdict. Finish returns the artifact path, or "" when nothing was kept.
type Recording interface {
	action.Observer
	Finish(ctx context.Context, page browser.Page, v Verdict) (string, error)
}

// Options configures a Runner.
type Options struct {
	FormURL string
	// FormPattern is a regular expression every location of the form page
	// matches. Leaving it is what counts as navigation.
	FormPattern          string
	ActionabilityTimeout time.Duration
	Policy               Policy
	Recorder             Recorder
}

// Runner plays scenarios. It is safe for concurrent use: every Run opens
// its own page and builds its own resolution engine, and shares only the
// immutable registry and the resolver.
type Runner struct {
	opener   browser.Opener
	registry *locator.Registry
	resolver semantic.Resolver
	opts     Options
	form     *regexp.Regexp
	logger   *zap.Logger
}

// NewRunner validates opts and returns a runner.
func NewRunner(opener browser.Opener, registry *locator.Registry, resolver semantic.Resolver, opts Options, logger *zap.Logger) (*Runner, error) {
	if opener == nil || registry == nil {
		return nil, errors.New("runner needs a browser opener and a locator registry")
	}
	if opts.FormURL == "" {
		return nil, errors.New("runner needs the form URL")
	}
	if opts.FormPattern == "" {
		opts.FormPattern = regexp.QuoteMeta(opts.FormURL)
	}
	form, err := regexp.Compile(opts.FormPattern)
	if err != nil {
		return nil, fmt.Errorf("invalid form location pattern: %w", err)
	}
	if opts.Policy.Attempts <= 0 {
		opts.Policy = DefaultPolicy
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		opener:   opener,
		registry: registry,
		resolver: resolver,
		opts:     opts,
		form:     form,
		logger:   logger.Named("runner"),
	}, nil
}

// Run plays sc on a fresh page and returns its verdict. It never returns an
// error: every failure is classified into the verdict.
func (r *Runner) Run(ctx context.Context, sc Scenario) Verdict {
	start := time.Now()
	logger := r.logger.With(zap.String("scenario", sc.Title()))

	var rec Recording
	if r.opts.Recorder != nil {
		rec = r.opts.Recorder.Begin(sc)
	}

	v, entries, page := r.play(ctx, sc, rec, logger)
	v.Scenario = sc.Title()
	v.Entries = entries
	v.Attempts = 1

	if page != nil {
		if rec != nil {
			// the recording is written even when the scenario deadline hit
			finishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
			path, err := rec.Finish(finishCtx, page, v)
			cancel()
			if err != nil {
				logger.Warn("Failed to write recording", zap.Error(err))
			}
			v.Artifact = path
		}
		if err := page.Close(); err != nil {
			logger.Warn("Failed to close page", zap.Error(err))
		}
	}
	v.Duration = time.Since(start)

	logger.Info("Scenario finished",
		zap.String("status", string(v.Status)),
		zap.String("cause", string(v.Cause)),
		zap.String("confidence", string(v.Confidence)),
		zap.String("reason", v.Reason),
		zap.Duration("duration", v.Duration),
	)
	return v
}

func (r *Runner) play(ctx context.Context, sc Scenario, rec Recording, logger *zap.Logger) (Verdict, []action.Entry, browser.Page) {
	if err := sc.Validate(); err != nil {
		return inconclusive(CauseInvalid, err.Error()), nil, nil
	}

	page, err := r.opener.Open(ctx)
	if err != nil {
		return r.classify(ctx, fmt.Errorf("open page: %w", err)), nil, nil
	}

	engine := resolve.NewEngine(r.registry, r.resolver, logger)
	opts := action.Options{ActionabilityTimeout: r.opts.ActionabilityTimeout}
	if rec != nil {
		opts.Observer = rec
	}
	facade := action.New(page, engine, opts, logger)

	if err := page.Navigate(ctx, r.opts.FormURL); err != nil {
		return r.classify(ctx, fmt.Errorf("navigate to form: %w", err)), facade.Entries(), page
	}

	token := uniqueToken()
	for _, in := range sc.Inputs {
		if err := facade.SetValue(ctx, in.Field, expand(in.Value, token)); err != nil {
			return r.classify(ctx, err), facade.Entries(), page
		}
	}

	expect := sc.Expect
	expect.Value = expand(expect.Value, token)
	ev := &evaluator{engine: engine, page: page, form: r.form, policy: r.opts.Policy, logger: logger}
	base, err := ev.capture(ctx, expect)
	if err != nil {
		return r.classify(ctx, err), facade.Entries(), page
	}

	if err := facade.TriggerSubmit(ctx, action.SubmitOptions{Force: sc.Force}); err != nil {
		return r.classify(ctx, err), facade.Entries(), page
	}

	v, err := ev.evaluate(ctx, expect, base)
	if err != nil {
		return r.classify(ctx, err), facade.Entries(), page
	}
	return v, facade.Entries(), page
}

// classify is the only place errors become verdicts.
func (r *Runner) classify(ctx context.Context, err error) Verdict {
	var (
		unknown         *locator.UnknownFieldError
		notInteractable *action.ElementNotInteractableError
	)
	switch {
	case ctx.Err() != nil:
		return inconclusive(CauseTimeout, err.Error())
	case errors.As(err, &unknown):
		return inconclusive(CauseUnknownField, err.Error())
	case errors.As(err, &notInteractable):
		return fail(CauseNotInteractable, err.Error())
	case resolve.IsNotFound(err):
		return fail(CauseNotFound, err.Error())
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return inconclusive(CauseTimeout, err.Error())
	}
	return inconclusive(CauseBrowser, err.Error())
}

func uniqueToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

func expand(value, token string) string {
	if !strings.Contains(value, UniquePlaceholder) {
		return value
	}
	return strings.ReplaceAll(value, UniquePlaceholder, token)
}
