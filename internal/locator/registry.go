// Package locator holds the static mapping from logical fields to the
// ordered strategies that find them on a page.
//
// A Registry is built once through a Builder and is immutable afterwards, so
// it can be shared by every concurrently running scenario without locking.
package locator

import (
	"errors"
	"fmt"

	"github.com/v0xg/formprobe/internal/field"
)

// UnknownFieldError reports a lookup for a field that was never registered.
// It is a configuration defect and is never retried.
type UnknownFieldError struct {
	Field field.Field
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("no locator strategies registered for field %q", e.Field)
}

// Registry maps each logical field to its strategies and, optionally, to
// strategies that find the field's validation error indicator.
type Registry struct {
	strategies map[field.Field][]Strategy
	indicators map[field.Field][]Strategy
	// sharers counts the fields whose indicators address each target.
	sharers map[Strategy]int
}

// StrategiesFor returns the field's strategies in priority order. The
// returned slice is a copy.
func (r *Registry) StrategiesFor(f field.Field) ([]Strategy, error) {
	s, ok := r.strategies[f]
	if !ok {
		return nil, &UnknownFieldError{Field: f}
	}
	return append([]Strategy(nil), s...), nil
}

// ErrorIndicatorsFor returns strategies locating the field's error
// indicator. A field without registered indicators returns nil.
func (r *Registry) ErrorIndicatorsFor(f field.Field) []Strategy {
	return append([]Strategy(nil), r.indicators[f]...)
}

// IndicatorSharers reports how many fields register an error indicator
// with the same target as s, ordinal aside. A count above one means the
// message text alone does not tell the fields apart.
func (r *Registry) IndicatorSharers(s Strategy) int {
	return r.sharers[s.Target()]
}

// Fields lists the registered fields in declaration order.
func (r *Registry) Fields() []field.Field {
	var out []field.Field
	for _, f := range field.All() {
		if _, ok := r.strategies[f]; ok {
			out = append(out, f)
		}
	}
	return out
}

// HasSemantic reports whether the field has a semantic fallback.
func (r *Registry) HasSemantic(f field.Field) bool {
	s := r.strategies[f]
	return len(s) > 0 && s[len(s)-1].Kind == KindSemantic
}

// Builder accumulates registrations. It is not safe for concurrent use;
// configuration is assembled on a single goroutine at start-up.
type Builder struct {
	strategies map[field.Field][]Strategy
	indicators map[field.Field][]Strategy
	errs       []error
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{
		strategies: make(map[field.Field][]Strategy),
		indicators: make(map[field.Field][]Strategy),
	}
}

// Register sets the ordered strategies for f. Registering the same field
// twice is an error reported by Build.
func (b *Builder) Register(f field.Field, strategies ...Strategy) *Builder {
	if err := validateStrategies(f, strategies); err != nil {
		b.errs = append(b.errs, err)
		return b
	}
	if _, dup := b.strategies[f]; dup {
		b.errs = append(b.errs, fmt.Errorf("field %q registered twice", f))
		return b
	}
	b.strategies[f] = append([]Strategy(nil), strategies...)
	return b
}

// RegisterErrorIndicator adds deterministic strategies that find the
// validation message shown for f.
func (b *Builder) RegisterErrorIndicator(f field.Field, strategies ...Strategy) *Builder {
	for _, s := range strategies {
		if err := s.Validate(); err != nil {
			b.errs = append(b.errs, fmt.Errorf("error indicator for %q: %w", f, err))
			return b
		}
		if !s.Kind.Deterministic() {
			b.errs = append(b.errs, fmt.Errorf("error indicator for %q must be deterministic", f))
			return b
		}
	}
	b.indicators[f] = append(b.indicators[f], strategies...)
	return b
}

// Build freezes the registrations into a Registry.
func (b *Builder) Build() (*Registry, error) {
	if len(b.errs) > 0 {
		return nil, errors.Join(b.errs...)
	}
	for f := range b.indicators {
		if _, ok := b.strategies[f]; !ok {
			return nil, fmt.Errorf("error indicator registered for unregistered field %q", f)
		}
	}
	r := &Registry{
		strategies: make(map[field.Field][]Strategy, len(b.strategies)),
		indicators: make(map[field.Field][]Strategy, len(b.indicators)),
		sharers:    make(map[Strategy]int),
	}
	for f, s := range b.strategies {
		r.strategies[f] = append([]Strategy(nil), s...)
	}
	for f, s := range b.indicators {
		r.indicators[f] = append([]Strategy(nil), s...)
		seen := make(map[Strategy]bool)
		for _, st := range s {
			if t := st.Target(); !seen[t] {
				seen[t] = true
				r.sharers[t]++
			}
		}
	}
	return r, nil
}

// validateStrategies enforces that a field has at least one deterministic
// strategy and at most one semantic strategy, which must come last.
func validateStrategies(f field.Field, strategies []Strategy) error {
	if !f.Valid() {
		return fmt.Errorf("cannot register invalid field %d", int(f))
	}
	if len(strategies) == 0 {
		return fmt.Errorf("field %q: no strategies", f)
	}
	deterministic := 0
	for i, s := range strategies {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("field %q strategy %d: %w", f, i, err)
		}
		if s.Kind.Deterministic() {
			deterministic++
			continue
		}
		if i != len(strategies)-1 {
			return fmt.Errorf("field %q: semantic strategy must be last", f)
		}
	}
	if deterministic == 0 {
		return fmt.Errorf("field %q: at least one deterministic strategy is required", f)
	}
	return nil
}
