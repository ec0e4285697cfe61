package scenario

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.uber.org/zap"

	"github.com/v0xg/formprobe/internal/browser"
	"github.com/v0xg/formprobe/internal/field"
	"github.com/v0xg/formprobe/internal/locator"
	"github.com/v0xg/formprobe/internal/resolve"
)

// Policy bounds outcome evaluation: after Settle, the page is observed up
// to Attempts times, Interval apart. Evidence seen on the last attempt
// still counts.
type Policy struct {
	Attempts int
	Interval time.Duration
	Settle   time.Duration
}

// DefaultPolicy is a three second window.
var DefaultPolicy = Policy{Attempts: 10, Interval: 300 * time.Millisecond, Settle: 200 * time.Millisecond}

// baseline is what the page looked like right before submission.
type baseline struct {
	location  string
	value     string
	haveValue bool
}

// prober accumulates evidence for one outcome kind.
type prober interface {
	// observe looks at the page once; done is set when the verdict is final.
	observe(ctx context.Context) (v Verdict, done bool, err error)
	// conclude gives the verdict once the window has elapsed.
	conclude() Verdict
}

type evaluator struct {
	engine *resolve.Engine
	page   browser.Page
	form   *regexp.Regexp
	policy Policy
	logger *zap.Logger
}

// capture records the baseline for o. It runs after the inputs are applied
// and before submission.
func (ev *evaluator) capture(ctx context.Context, o Outcome) (baseline, error) {
	var b baseline
	loc, ok, err := ev.location(ctx)
	if err != nil {
		return b, err
	}
	if ok {
		b.location = loc
	}
	if o.Kind == ExpectValidationError {
		b.value, b.haveValue, err = ev.readValue(ctx, o.Field)
		if err != nil {
			return b, err
		}
	}
	return b, nil
}

// evaluate polls the page until o is decided or the window closes.
func (ev *evaluator) evaluate(ctx context.Context, o Outcome, b baseline) (Verdict, error) {
	var p prober
	switch o.Kind {
	case ExpectValidationError:
		p = &validationErrorProbe{
			ev:         ev,
			field:      o.Field,
			baseline:   b,
			indicators: len(ev.engine.Registry().ErrorIndicatorsFor(o.Field)) > 0,
		}
	case ExpectNoNavigation:
		p = &noNavigationProbe{ev: ev}
	case ExpectNavigationTo:
		re, err := regexp.Compile(o.Pattern)
		if err != nil {
			return Verdict{}, fmt.Errorf("navigation pattern: %w", err)
		}
		p = &navigationProbe{ev: ev, target: re}
	case ExpectFieldRetainsValue:
		p = &retainsValueProbe{ev: ev, field: o.Field, want: o.Value}
	default:
		return Verdict{}, fmt.Errorf("unknown expected outcome %q", o.Kind)
	}

	if err := sleep(ctx, ev.policy.Settle); err != nil {
		return Verdict{}, err
	}
	attempts := max(ev.policy.Attempts, 1)
	for attempt := 1; attempt <= attempts; attempt++ {
		v, done, err := p.observe(ctx)
		if err != nil {
			return Verdict{}, err
		}
		if done {
			ev.logger.Debug("Outcome decided", zap.Stringer("outcome", o), zap.Int("attempt", attempt), zap.String("status", string(v.Status)))
			return v, nil
		}
		if attempt < attempts {
			if err := sleep(ctx, ev.policy.Interval); err != nil {
				return Verdict{}, err
			}
		}
	}
	return p.conclude(), nil
}

// location reads the current URL. ok is false when the page could not
// answer; only context errors are returned.
func (ev *evaluator) location(ctx context.Context) (string, bool, error) {
	loc, err := ev.page.Location(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return "", false, err
		}
		ev.logger.Debug("Location unreadable", zap.Error(err))
		return "", false, nil
	}
	return loc, true, nil
}

// readValue resolves f and reads its value. ok is false when the field
// cannot be found or read; context errors and unknown fields are returned.
func (ev *evaluator) readValue(ctx context.Context, f field.Field) (string, bool, error) {
	res, err := ev.engine.Resolve(ctx, ev.page, f)
	if err != nil {
		if ctx.Err() != nil {
			return "", false, err
		}
		var unknown *locator.UnknownFieldError
		if errors.As(err, &unknown) {
			return "", false, err
		}
		return "", false, nil
	}
	v, err := res.Element.Value(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return "", false, err
		}
		// a re-render may have replaced the node; resolve afresh next time
		ev.engine.Forget(f)
		return "", false, nil
	}
	return v, true, nil
}

func (ev *evaluator) onForm(loc string) bool { return ev.form.MatchString(loc) }

type validationErrorProbe struct {
	ev         *evaluator
	field      field.Field
	baseline   baseline
	indicators bool
	unchanged  bool
	sharedSeen bool
}

func (p *validationErrorProbe) observe(ctx context.Context) (Verdict, bool, error) {
	loc, ok, err := p.ev.location(ctx)
	if err != nil {
		return Verdict{}, false, err
	}
	if ok && !p.ev.onForm(loc) {
		return fail(CauseEvidence, fmt.Sprintf("form was accepted: navigated to %s", loc)), true, nil
	}

	if p.indicators {
		m, err := p.ev.engine.Indicator(ctx, p.ev.page, p.field)
		if err != nil {
			return Verdict{}, false, err
		}
		if m != nil {
			visible, err := m.Element.Visible(ctx)
			if err != nil && ctx.Err() != nil {
				return Verdict{}, false, err
			}
			switch {
			case err != nil || !visible:
			case m.Shared:
				// the message may belong to another field
				p.sharedSeen = true
			default:
				return pass(ConfidenceHigh, fmt.Sprintf("error indicator visible for %s", p.field)), true, nil
			}
		}
	}

	if p.baseline.haveValue {
		v, ok, err := p.ev.readValue(ctx, p.field)
		if err != nil {
			return Verdict{}, false, err
		}
		if ok && v == p.baseline.value {
			p.unchanged = true
			if !p.indicators {
				return p.weakPass(), true, nil
			}
		}
	}
	return Verdict{}, false, nil
}

func (p *validationErrorProbe) weakPass() Verdict {
	if p.sharedSeen {
		return pass(ConfidenceLow, fmt.Sprintf("%s kept its value %q; the only error message seen is shared with another field", p.field, p.baseline.value))
	}
	return pass(ConfidenceLow, fmt.Sprintf("%s kept its value %q and no error indicator was seen", p.field, p.baseline.value))
}

func (p *validationErrorProbe) conclude() Verdict {
	if p.unchanged {
		return p.weakPass()
	}
	return inconclusive(CauseEvidence, fmt.Sprintf("no validation evidence for %s within the window", p.field))
}

type noNavigationProbe struct {
	ev   *evaluator
	last string
	seen bool
}

func (p *noNavigationProbe) observe(ctx context.Context) (Verdict, bool, error) {
	loc, ok, err := p.ev.location(ctx)
	if err != nil || !ok {
		return Verdict{}, false, err
	}
	p.seen, p.last = true, loc
	if !p.ev.onForm(loc) {
		return fail(CauseEvidence, fmt.Sprintf("navigated away from the form to %s", loc)), true, nil
	}
	return Verdict{}, false, nil
}

func (p *noNavigationProbe) conclude() Verdict {
	if !p.seen {
		return inconclusive(CauseEvidence, "location could not be read within the window")
	}
	return pass(ConfidenceHigh, fmt.Sprintf("stayed on the form at %s", p.last))
}

type navigationProbe struct {
	ev     *evaluator
	target *regexp.Regexp
	last   string
}

func (p *navigationProbe) observe(ctx context.Context) (Verdict, bool, error) {
	loc, ok, err := p.ev.location(ctx)
	if err != nil || !ok {
		return Verdict{}, false, err
	}
	p.last = loc
	if p.target.MatchString(loc) {
		return pass(ConfidenceHigh, fmt.Sprintf("navigated to %s", loc)), true, nil
	}
	return Verdict{}, false, nil
}

func (p *navigationProbe) conclude() Verdict {
	if p.last == "" {
		return inconclusive(CauseEvidence, "location could not be read within the window")
	}
	return inconclusive(CauseEvidence, fmt.Sprintf("location %s did not match %s within the window", p.last, p.target))
}

type retainsValueProbe struct {
	ev    *evaluator
	field field.Field
	want  string
	last  string
	read  bool
	left  string
}

func (p *retainsValueProbe) observe(ctx context.Context) (Verdict, bool, error) {
	v, ok, err := p.ev.readValue(ctx, p.field)
	if err != nil {
		return Verdict{}, false, err
	}
	if ok {
		p.read, p.last = true, v
		if v == p.want {
			return pass(ConfidenceHigh, fmt.Sprintf("%s holds %q", p.field, v)), true, nil
		}
		return Verdict{}, false, nil
	}
	loc, ok, err := p.ev.location(ctx)
	if err != nil {
		return Verdict{}, false, err
	}
	if ok && !p.ev.onForm(loc) {
		p.left = loc
	}
	return Verdict{}, false, nil
}

func (p *retainsValueProbe) conclude() Verdict {
	switch {
	case p.read:
		return fail(CauseEvidence, fmt.Sprintf("%s holds %q, want %q", p.field, p.last, p.want))
	case p.left != "":
		return fail(CauseEvidence, fmt.Sprintf("navigated away to %s; %s is gone", p.left, p.field))
	}
	return inconclusive(CauseEvidence, fmt.Sprintf("value of %s could not be read within the window", p.field))
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
