package semantic

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/v0xg/formprobe/internal/browser"
	"github.com/v0xg/formprobe/internal/field"
)

func signupPageMap() *browser.PageMap {
	return &browser.PageMap{
		URL:   "https://example.test/signup",
		Title: "Sign up",
		Controls: []browser.Control{
			{Selector: `[data-formprobe-handle="1"]`, Type: "text", Placeholder: "Seu nome completo"},
			{Selector: `[data-formprobe-handle="2"]`, Type: "email", Placeholder: "Seu e-mail"},
			{Selector: `[data-formprobe-handle="3"]`, Type: "password", Placeholder: "Deve ter no mínimo 7 caracteres"},
			{Selector: `[data-formprobe-handle="4"]`, Type: "password", Placeholder: "Deve ter no mínimo 7 caracteres"},
			{Selector: `[data-formprobe-handle="5"]`, Type: "button", Role: "button", Text: "Cadastrar-se gratuitamente"},
		},
	}
}

func TestParseSelectorJSON(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     string
		wantErr  bool
	}{
		{name: "bare object", response: `{"selector": "#email", "reason": "label"}`, want: "#email"},
		{name: "markdown fence", response: "```json\n{\"selector\": \"#name\"}\n```", want: "#name"},
		{name: "braces inside strings", response: `Sure: {"selector": "[data-x=\"}\"]", "reason": "odd {"} done`, want: `[data-x="}"]`},
		{name: "explicit no match", response: `{"selector": "", "reason": "nothing"}`, want: ""},
		{name: "missing member", response: `{"reason": "nothing"}`, wantErr: true},
		{name: "no object", response: "I cannot help", wantErr: true},
		{name: "unterminated", response: `{"selector": "#a"`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := parseSelectorJSON(tt.response)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Selector)
		})
	}
}

type scriptedCompleter struct {
	calls     atomic.Int32
	responses []string
	errs      []error
}

func (s *scriptedCompleter) name() string { return "scripted" }

func (s *scriptedCompleter) complete(ctx context.Context, system, user string) (string, error) {
	i := int(s.calls.Add(1)) - 1
	if i < len(s.errs) && s.errs[i] != nil {
		return "", s.errs[i]
	}
	return s.responses[i], nil
}

func TestLLMResolver(t *testing.T) {
	req := Request{Field: field.Email, Description: "the e-mail input", Page: signupPageMap()}

	t.Run("returns a selector from the page map", func(t *testing.T) {
		c := &scriptedCompleter{responses: []string{`{"selector": "[data-formprobe-handle=\"2\"]"}`}}
		r := &llmResolver{client: c, logger: zap.NewNop()}

		res, err := r.Resolve(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, `[data-formprobe-handle="2"]`, res.Selector)
	})

	t.Run("retries transient provider errors", func(t *testing.T) {
		c := &scriptedCompleter{
			errs:      []error{errors.New("503 overloaded"), nil},
			responses: []string{"", `{"selector": "[data-formprobe-handle=\"2\"]"}`},
		}
		r := &llmResolver{client: c, maxRetries: 2, logger: zap.NewNop()}

		_, err := r.Resolve(context.Background(), req)
		require.NoError(t, err)
		assert.EqualValues(t, 2, c.calls.Load())
	})

	t.Run("gives up after the retry budget", func(t *testing.T) {
		boom := errors.New("503 overloaded")
		c := &scriptedCompleter{errs: []error{boom, boom, boom}, responses: make([]string, 3)}
		r := &llmResolver{client: c, maxRetries: 1, logger: zap.NewNop()}

		_, err := r.Resolve(context.Background(), req)
		require.ErrorIs(t, err, boom)
		assert.EqualValues(t, 2, c.calls.Load())
	})

	t.Run("rejects selectors outside the page map", func(t *testing.T) {
		c := &scriptedCompleter{responses: []string{`{"selector": "#made-up"}`}}
		r := &llmResolver{client: c, logger: zap.NewNop()}

		_, err := r.Resolve(context.Background(), req)
		require.ErrorIs(t, err, ErrUnknownSelector)
	})

	t.Run("empty selector is no match", func(t *testing.T) {
		c := &scriptedCompleter{responses: []string{`{"selector": "", "reason": "no e-mail input"}`}}
		r := &llmResolver{client: c, logger: zap.NewNop()}

		_, err := r.Resolve(context.Background(), req)
		require.ErrorIs(t, err, ErrNoMatch)
	})

	t.Run("requires page context", func(t *testing.T) {
		r := &llmResolver{client: &scriptedCompleter{}, logger: zap.NewNop()}
		_, err := r.Resolve(context.Background(), Request{Field: field.Email, Description: "x"})
		require.Error(t, err)
	})
}

func TestOpenAIProviderOverHTTP(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"model": "gpt-4o-mini",
			"choices": [{
				"index": 0,
				"message": {"role": "assistant", "content": "{\"selector\": \"[data-formprobe-handle=\\\"5\\\"]\", \"reason\": \"submit button\"}"},
				"finish_reason": "stop"
			}]
		}`)
	}))
	defer srv.Close()

	r, err := New(Options{Provider: "openai", APIKey: "test-key", BaseURL: srv.URL + "/v1"}, zap.NewNop())
	require.NoError(t, err)

	res, err := r.Resolve(context.Background(), Request{
		Field:       field.Submit,
		Description: "the button that submits the sign-up form",
		Page:        signupPageMap(),
	})
	require.NoError(t, err)
	assert.Equal(t, `[data-formprobe-handle="5"]`, res.Selector)
	assert.Equal(t, "submit button", res.Reason)
	assert.Contains(t, gotBody, "Cadastrar-se gratuitamente")
	assert.Contains(t, gotBody, "gpt-4o-mini")
}

func TestNewProviders(t *testing.T) {
	r, err := New(Options{Provider: "none"}, nil)
	require.NoError(t, err)
	assert.Nil(t, r)

	_, err = New(Options{Provider: "carrier-pigeon"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown semantic provider")

	r, err = New(Options{Provider: "keyword", RequestsPerMinute: 60}, nil)
	require.NoError(t, err)
	assert.IsType(t, &RateLimited{}, r)

	t.Setenv("FORMPROBE_ANTHROPIC_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")
	_, err = New(Options{Provider: "claude"}, nil)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "ANTHROPIC_API_KEY"))

	r, err = New(Options{Provider: "claude", APIKey: "k"}, nil)
	require.NoError(t, err)
	assert.NotNil(t, r)
}

func TestKeywordResolver(t *testing.T) {
	k := NewKeyword()
	page := signupPageMap()

	tests := []struct {
		description string
		want        string
	}{
		{"full name input (Seu nome completo)", `[data-formprobe-handle="1"]`},
		{"e-mail address field", `[data-formprobe-handle="2"]`},
		{"password field, first of the two", `[data-formprobe-handle="3"]`},
		{"confirm password field", `[data-formprobe-handle="4"]`},
		{"Cadastrar-se button", `[data-formprobe-handle="5"]`},
	}
	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			res, err := k.Resolve(context.Background(), Request{Description: tt.description, Page: page})
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Selector)
		})
	}

	_, err := k.Resolve(context.Background(), Request{Description: "newsletter checkbox", Page: page})
	require.ErrorIs(t, err, ErrNoMatch)
	assert.Equal(t, len(tests)+1, k.Calls())
}

func TestRateLimitedHonoursContext(t *testing.T) {
	k := NewKeyword()
	r := NewRateLimited(k, 1)
	req := Request{Description: "e-mail", Page: signupPageMap()}

	_, err := r.Resolve(context.Background(), req)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = r.Resolve(ctx, req)
	require.Error(t, err)
	assert.Equal(t, 1, k.Calls())
}
