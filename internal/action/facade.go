// Package action performs the two things a scenario does to a form: write
// a field and submit. Each action resolves its target, enforces the
// actionability pre-condition within a fixed timeout, and emits one
// structured log entry.
package action

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/v0xg/formprobe/internal/browser"
	"github.com/v0xg/formprobe/internal/field"
	"github.com/v0xg/formprobe/internal/resolve"
)

// DefaultActionabilityTimeout bounds the attached+interactable wait.
const DefaultActionabilityTimeout = 5 * time.Second

// ElementNotInteractableError reports that the element was found but did
// not become interactable within the actionability timeout.
type ElementNotInteractableError struct {
	Field   field.Field
	Timeout time.Duration
	Err     error
}

func (e *ElementNotInteractableError) Error() string {
	return fmt.Sprintf("element for field %q not interactable within %s: %v", e.Field, e.Timeout, e.Err)
}

func (e *ElementNotInteractableError) Unwrap() error { return e.Err }

// Observer sees every action after it ran. el is nil when resolution
// failed.
type Observer interface {
	ObserveAction(ctx context.Context, page browser.Page, entry Entry, el browser.Element)
}

// Options tunes a Facade.
type Options struct {
	ActionabilityTimeout time.Duration
	Observer             Observer
}

// SubmitOptions controls TriggerSubmit.
type SubmitOptions struct {
	// Force skips the interactability pre-check and dispatches the click
	// directly on the element.
	Force bool
}

// Facade acts on one page through one resolution engine. Like the engine
// it belongs to a single scenario flow.
type Facade struct {
	page     browser.Page
	engine   *resolve.Engine
	timeout  time.Duration
	observer Observer
	logger   *zap.Logger
	entries  []Entry
}

// New returns a facade for page.
func New(page browser.Page, engine *resolve.Engine, opts Options, logger *zap.Logger) *Facade {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := opts.ActionabilityTimeout
	if timeout <= 0 {
		timeout = DefaultActionabilityTimeout
	}
	return &Facade{
		page:     page,
		engine:   engine,
		timeout:  timeout,
		observer: opts.Observer,
		logger:   logger.Named("action"),
	}
}

// Page returns the page the facade acts on.
func (f *Facade) Page() browser.Page { return f.page }

// Entries returns the actions performed so far, oldest first.
func (f *Facade) Entries() []Entry { return append([]Entry(nil), f.entries...) }

// SetValue resolves fld, waits until it is interactable and replaces its
// value. An empty value clears the field.
func (f *Facade) SetValue(ctx context.Context, fld field.Field, value string) error {
	if !fld.Fillable() {
		return fmt.Errorf("field %q does not take a value", fld)
	}
	entry := newEntry(ActionSetValue, fld)

	res, err := f.engine.Resolve(ctx, f.page, fld)
	if err != nil {
		entry.unresolved(err)
		return f.finish(ctx, entry, nil, err)
	}
	entry.resolved(res)

	if err := f.waitInteractable(ctx, fld, res.Element); err != nil {
		return f.finish(ctx, entry, res.Element, err)
	}
	if err := res.Element.SetValue(ctx, value); err != nil {
		return f.finish(ctx, entry, res.Element, fmt.Errorf("set value of %s: %w", fld, err))
	}
	return f.finish(ctx, entry, res.Element, nil)
}

// TriggerSubmit resolves the submit control and activates it.
func (f *Facade) TriggerSubmit(ctx context.Context, opts SubmitOptions) error {
	entry := newEntry(ActionSubmit, field.Submit)
	entry.Forced = opts.Force

	res, err := f.engine.Resolve(ctx, f.page, field.Submit)
	if err != nil {
		entry.unresolved(err)
		return f.finish(ctx, entry, nil, err)
	}
	entry.resolved(res)

	if !opts.Force {
		if err := f.waitInteractable(ctx, field.Submit, res.Element); err != nil {
			return f.finish(ctx, entry, res.Element, err)
		}
	}
	if err := res.Element.Click(ctx, opts.Force); err != nil {
		return f.finish(ctx, entry, res.Element, fmt.Errorf("activate submit control: %w", err))
	}
	return f.finish(ctx, entry, res.Element, nil)
}

// waitInteractable applies the fixed actionability timeout. When the
// caller's own context ended first the context error is returned instead,
// so an external deadline is never mistaken for an unusable element.
func (f *Facade) waitInteractable(ctx context.Context, fld field.Field, el browser.Element) error {
	waitCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	err := el.WaitInteractable(waitCtx)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return fmt.Errorf("wait for %s: %w", fld, ctx.Err())
	}
	return &ElementNotInteractableError{Field: fld, Timeout: f.timeout, Err: err}
}

func (f *Facade) finish(ctx context.Context, entry Entry, el browser.Element, err error) error {
	entry.Duration = time.Since(entry.At)
	entry.Success = err == nil
	if err != nil {
		entry.Error = err.Error()
	}
	f.entries = append(f.entries, entry)

	fields := []zap.Field{
		zap.String("action", string(entry.Action)),
		zap.Stringer("fieldId", entry.Field),
		zap.String("strategyKind", string(entry.StrategyKind)),
		zap.Bool("success", entry.Success),
		zap.Int64("latencyMs", entry.LatencyMs),
		zap.Bool("cached", entry.Cached),
		zap.String("pageId", entry.PageID),
		zap.Duration("duration", entry.Duration),
	}
	if err != nil {
		f.logger.Warn("Action failed", append(fields, zap.Error(err))...)
	} else {
		f.logger.Info("Action", fields...)
	}

	if f.observer != nil {
		f.observer.ObserveAction(ctx, f.page, entry, el)
	}
	return err
}
