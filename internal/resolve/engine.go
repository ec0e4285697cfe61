// Package resolve turns a logical field into a concrete element on the
// current page, trying the registry's strategies in priority order and
// falling back to the semantic resolver only when every deterministic one
// has failed.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/v0xg/formprobe/internal/browser"
	"github.com/v0xg/formprobe/internal/field"
	"github.com/v0xg/formprobe/internal/locator"
	"github.com/v0xg/formprobe/internal/semantic"
)

// ResolvedElement is a concrete element tagged with the strategy that
// produced it. It is valid only while the page keeps the identity it was
// resolved under.
type ResolvedElement struct {
	Field    field.Field
	Element  browser.Element
	Strategy locator.Strategy
	PageID   string
	// Latency is the time this Resolve call took, cache hits included.
	Latency time.Duration
	Cached  bool
}

// Engine resolves fields for one scenario. It caches the first success per
// field for the lifetime of the current page identity and remembers failed
// semantic attempts for the same lifetime, so the resolver is asked at most
// once per field per page.
//
// An Engine is driven by a single goroutine; each scenario builds its own.
type Engine struct {
	registry *locator.Registry
	resolver semantic.Resolver
	logger   *zap.Logger

	page     browser.Page
	pageID   string
	cache    map[field.Field]*ResolvedElement
	semantic map[field.Field]error
}

// NewEngine returns an engine over a shared, immutable registry. resolver
// may be nil, in which case semantic strategies always fail.
func NewEngine(registry *locator.Registry, resolver semantic.Resolver, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		registry: registry,
		resolver: resolver,
		logger:   logger.Named("resolve"),
		cache:    make(map[field.Field]*ResolvedElement),
		semantic: make(map[field.Field]error),
	}
}

// Registry returns the registry the engine resolves against.
func (e *Engine) Registry() *locator.Registry { return e.registry }

// Resolve finds the element for f on page.
func (e *Engine) Resolve(ctx context.Context, page browser.Page, f field.Field) (*ResolvedElement, error) {
	start := time.Now()

	strategies, err := e.registry.StrategiesFor(f)
	if err != nil {
		return nil, err
	}

	id, err := page.Identity(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", f, err)
	}
	e.bind(page, id)

	if hit, ok := e.cache[f]; ok {
		out := *hit
		out.Cached = true
		out.Latency = time.Since(start)
		return &out, nil
	}

	var (
		misses           []string
		lastKind         locator.Kind
		semanticStrategy *locator.Strategy
	)
	for i := range strategies {
		s := strategies[i]
		if !s.Kind.Deterministic() {
			semanticStrategy = &strategies[i]
			continue
		}
		el, miss, err := e.tryDeterministic(ctx, page, s)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", f, err)
		}
		if el != nil {
			return e.store(f, el, s, id, start), nil
		}
		misses = append(misses, miss)
		lastKind = s.Kind
	}

	if semanticStrategy == nil {
		return nil, &ElementNotFoundError{Field: f, Kind: lastKind, Misses: misses}
	}

	el, err := e.trySemantic(ctx, page, f, *semanticStrategy)
	if err != nil {
		return nil, err
	}
	return e.store(f, el, *semanticStrategy, id, start), nil
}

// bind resets all page-scoped state when the page or its identity changed.
func (e *Engine) bind(page browser.Page, id string) {
	if page == e.page && id == e.pageID {
		return
	}
	if e.page != nil {
		e.logger.Debug("Page identity changed, dropping resolution cache",
			zap.String("previousPageId", e.pageID),
			zap.String("pageId", id),
			zap.Int("cached", len(e.cache)),
		)
	}
	e.page = page
	e.pageID = id
	clear(e.cache)
	clear(e.semantic)
}

// tryDeterministic returns the element, or a miss description when the
// strategy matched nothing or matched ambiguously. Only context errors are
// returned as errors; a driver error counts as a miss.
func (e *Engine) tryDeterministic(ctx context.Context, page browser.Page, s locator.Strategy) (browser.Element, string, error) {
	els, err := page.FindAll(ctx, s)
	if err != nil {
		if ctx.Err() != nil {
			return nil, "", err
		}
		return nil, fmt.Sprintf("%s: %v", s, err), nil
	}
	idx, ok := s.Ordinal.Pick(len(els))
	if !ok {
		return nil, fmt.Sprintf("%s: %d matches", s, len(els)), nil
	}
	return els[idx], "", nil
}

func (e *Engine) trySemantic(ctx context.Context, page browser.Page, f field.Field, s locator.Strategy) (browser.Element, error) {
	if prev, tried := e.semantic[f]; tried {
		return nil, &SemanticResolutionError{Field: f, Description: s.Description, Err: prev}
	}

	fail := func(err error) (browser.Element, error) {
		if ctx.Err() != nil {
			// a cancelled attempt says nothing about the page
			return nil, fmt.Errorf("resolve %s: %w", f, err)
		}
		e.semantic[f] = err
		return nil, &SemanticResolutionError{Field: f, Description: s.Description, Err: err}
	}

	if e.resolver == nil {
		return fail(ErrNoResolver)
	}

	pm, err := page.Snapshot(ctx)
	if err != nil {
		return fail(fmt.Errorf("snapshot page: %w", err))
	}
	res, err := e.resolver.Resolve(ctx, semantic.Request{Field: f, Description: s.Description, Page: pm})
	if err != nil {
		return fail(err)
	}
	el, err := page.Element(ctx, res.Selector)
	if err != nil {
		return fail(fmt.Errorf("element %s from semantic resolver: %w", res.Selector, err))
	}
	return el, nil
}

func (e *Engine) store(f field.Field, el browser.Element, s locator.Strategy, id string, start time.Time) *ResolvedElement {
	r := &ResolvedElement{
		Field:    f,
		Element:  el,
		Strategy: s,
		PageID:   id,
		Latency:  time.Since(start),
	}
	e.cache[f] = r
	e.logger.Debug("Resolved field",
		zap.Stringer("fieldId", f),
		zap.String("strategyKind", string(s.Kind)),
		zap.String("strategy", s.String()),
		zap.Int64("latencyMs", r.Latency.Milliseconds()),
		zap.String("pageId", id),
	)
	out := *r
	return &out
}

// Forget drops the cached element for f, for callers that found the cached
// handle detached while the page identity stayed the same (a client-side
// re-render). The semantic attempt record is kept.
func (e *Engine) Forget(f field.Field) {
	delete(e.cache, f)
}

// IndicatorMatch is an error indicator found for a field.
type IndicatorMatch struct {
	Element  browser.Element
	Strategy locator.Strategy
	// Shared is set when other fields register the same message and the
	// page shows fewer copies of it than there are such fields. The
	// ordinal pick may then have landed on another field's message.
	Shared bool
}

// Indicator finds the element that shows f's validation error, using the
// registry's indicator strategies in order. It returns nil without error
// when none matches. Indicators are never cached: they come and go while
// the page identity stays the same.
func (e *Engine) Indicator(ctx context.Context, page browser.Page, f field.Field) (*IndicatorMatch, error) {
	for _, s := range e.registry.ErrorIndicatorsFor(f) {
		els, err := page.FindAll(ctx, s)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			continue
		}
		idx, ok := s.Ordinal.Pick(len(els))
		if !ok {
			continue
		}
		sharers := e.registry.IndicatorSharers(s)
		return &IndicatorMatch{
			Element:  els[idx],
			Strategy: s,
			Shared:   s.Ordinal != locator.Unique && sharers > 1 && len(els) < sharers,
		}, nil
	}
	return nil, nil
}

// IsNotFound reports whether err is a resolution failure that a caller may
// retry at scenario level.
func IsNotFound(err error) bool { return errors.Is(err, ErrElementNotFound) }
