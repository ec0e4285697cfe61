// Package semantic turns a natural-language element description into a
// concrete selector on the current page. It is the fallback behind the
// deterministic locators and is only consulted when all of them fail.
package semantic

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/v0xg/formprobe/internal/browser"
	"github.com/v0xg/formprobe/internal/field"
)

var (
	// ErrNoMatch means the resolver looked at the page and found nothing
	// that fits the description.
	ErrNoMatch = errors.New("no element on the page matches the description")
	// ErrUnknownSelector means the resolver answered with a selector that
	// is not part of the page map it was given.
	ErrUnknownSelector = errors.New("resolver returned a selector outside the page map")
)

// Request asks for the element described by Description on the page
// summarised by Page.
type Request struct {
	Field       field.Field
	Description string
	Page        *browser.PageMap
}

// Result names the chosen control by one of the page map's selectors.
type Result struct {
	Selector string
	Reason   string
}

// Resolver is the semantic resolution capability. Implementations must be
// safe for concurrent use; one resolver serves every running scenario.
type Resolver interface {
	Resolve(ctx context.Context, req Request) (Result, error)
}

// Func adapts a plain function to Resolver.
type Func func(ctx context.Context, req Request) (Result, error)

// Resolve implements Resolver.
func (f Func) Resolve(ctx context.Context, req Request) (Result, error) { return f(ctx, req) }

// Options selects and tunes a provider.
type Options struct {
	Provider string
	Model    string
	// APIKey overrides the provider's environment variables.
	APIKey string
	// BaseURL points the client at a different endpoint.
	BaseURL           string
	RequestsPerMinute int
	RequestTimeout    time.Duration
	MaxRetries        uint64
}

// New creates the resolver named by opts.Provider. The "none" provider (and
// the empty string) yields a nil Resolver and no error: semantic strategies
// then fail as not found.
func New(opts Options, logger *zap.Logger) (Resolver, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		c   completer
		err error
	)
	switch strings.ToLower(strings.TrimSpace(opts.Provider)) {
	case "", "none":
		return nil, nil
	case "keyword", "offline":
		r := NewKeyword()
		return limit(r, opts.RequestsPerMinute), nil
	case "claude", "anthropic":
		c, err = newClaude(opts)
	case "openai", "gpt":
		c, err = newOpenAI(opts)
	case "gemini", "google":
		c, err = newGemini(context.Background(), opts)
	default:
		return nil, fmt.Errorf("unknown semantic provider: %s (supported: claude, openai, gemini, keyword, none)", opts.Provider)
	}
	if err != nil {
		return nil, err
	}

	r := &llmResolver{
		client:     c,
		timeout:    opts.RequestTimeout,
		maxRetries: opts.MaxRetries,
		logger:     logger.Named("semantic." + c.name()),
	}
	return limit(r, opts.RequestsPerMinute), nil
}

func limit(r Resolver, perMinute int) Resolver {
	if perMinute <= 0 {
		return r
	}
	return NewRateLimited(r, perMinute)
}
