package semantic

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// completer is the provider-specific part of an LLM resolver: one system
// prompt plus one user prompt in, the model's text out.
type completer interface {
	name() string
	complete(ctx context.Context, system, user string) (string, error)
}

// llmResolver builds the prompt, calls the provider with bounded retries,
// and validates the answer against the page map it sent.
type llmResolver struct {
	client     completer
	timeout    time.Duration
	maxRetries uint64
	logger     *zap.Logger
}

func (r *llmResolver) Resolve(ctx context.Context, req Request) (Result, error) {
	if req.Page == nil {
		return Result{}, errors.New("semantic request carries no page context")
	}
	pageMapJSON, err := json.MarshalIndent(req.Page, "", "  ")
	if err != nil {
		return Result{}, fmt.Errorf("failed to marshal page map: %w", err)
	}
	userPrompt := buildUserPrompt(string(pageMapJSON), req)

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	b.MaxElapsedTime = 0 // bounded by ctx and the retry count

	start := time.Now()
	attempts := 0
	text, err := backoff.RetryWithData(func() (string, error) {
		attempts++
		text, err := r.client.complete(ctx, systemPrompt, userPrompt)
		if err == nil {
			return text, nil
		}
		if ctx.Err() != nil {
			return "", backoff.Permanent(err)
		}
		r.logger.Warn("Semantic resolver request failed, retrying...", zap.Int("attempt", attempts), zap.Error(err))
		return "", err
	}, backoff.WithContext(backoff.WithMaxRetries(b, r.maxRetries), ctx))
	if err != nil {
		return Result{}, fmt.Errorf("%s API error: %w", r.client.name(), err)
	}

	res, err := parseSelectorJSON(text)
	if err != nil {
		return Result{}, fmt.Errorf("failed to parse %s response as JSON: %w\nResponse: %s", r.client.name(), err, text)
	}

	r.logger.Debug("Semantic resolution complete",
		zap.Stringer("field", req.Field),
		zap.String("selector", res.Selector),
		zap.String("reason", res.Reason),
		zap.Int("attempts", attempts),
		zap.Duration("duration", time.Since(start)),
	)

	if res.Selector == "" {
		return Result{}, fmt.Errorf("%w: %s", ErrNoMatch, res.Reason)
	}
	if !req.Page.Has(res.Selector) {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownSelector, res.Selector)
	}
	return res, nil
}
