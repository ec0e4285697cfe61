package rodpage_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-rod/rod/lib/launcher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v0xg/formprobe/internal/browser"
	"github.com/v0xg/formprobe/internal/browser/rodpage"
	"github.com/v0xg/formprobe/internal/locator"
)

const signupHTML = `<!doctype html>
<html><head><title>Cadastro</title></head><body>
<form onsubmit="return false">
  <div class="field">
    <input name="name" placeholder="Seu nome completo" value="stale">
    <span class="error">Campo obrigatório</span>
  </div>
  <div class="field">
    <label for="email">E-mail</label>
    <input id="email" type="email" placeholder="Seu e-mail">
    <div class="wrap"><span class="error">Campo obrigatório</span></div>
  </div>
  <input type="password" placeholder="Deve ter no mínimo 7 caracteres">
  <input type="password" placeholder="Deve ter no mínimo 7 caracteres">
  <div role="button" aria-label="Ajuda">?</div>
  <button type="submit">Cadastrar-se gratuitamente</button>
  <input type="hidden" name="csrf" value="x">
</form>
</body></html>`

// openSignup launches a local Chromium and opens the form. Tests skip when
// no browser is installed.
func openSignup(t *testing.T) (context.Context, browser.Page) {
	t.Helper()
	if testing.Short() {
		t.Skip("browser test skipped in short mode")
	}
	if _, ok := launcher.LookPath(); !ok {
		t.Skip("no local Chromium found")
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, signupHTML)
	}))
	t.Cleanup(srv.Close)

	b, err := rodpage.Launch(rodpage.Options{Width: 800, Height: 600, Headless: true, NoSandbox: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)

	page, err := b.Open(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = page.Close() })
	require.NoError(t, page.Navigate(ctx, srv.URL+"/signup"))
	return ctx, page
}

func TestQueryScript(t *testing.T) {
	ctx, page := openSignup(t)

	tests := []struct {
		name     string
		strategy locator.Strategy
		want     int
	}{
		{"placeholder exact", locator.ByPlaceholder("Seu e-mail", locator.Unique), 1},
		{"shared placeholder", locator.ByPlaceholder("Deve ter no mínimo 7 caracteres", locator.First), 2},
		{"role with implicit button", locator.ByRole("button", "cadastrar-se", locator.Unique), 1},
		{"role attribute and aria-label", locator.ByRole("button", "Ajuda", locator.Unique), 1},
		{"textbox named by label", locator.ByRole("textbox", "E-mail", locator.Unique), 1},
		{"innermost text only", locator.ByText("Campo obrigatório", locator.First), 2},
		{"selector", locator.BySelector(`input[type="password"]`, locator.Last), 2},
		{"no match", locator.ByText("Bem-vindo", locator.Unique), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			els, err := page.FindAll(ctx, tt.strategy)
			require.NoError(t, err)
			assert.Len(t, els, tt.want)
		})
	}
}

func TestQueryScriptStampsStableHandles(t *testing.T) {
	ctx, page := openSignup(t)

	first, err := page.FindAll(ctx, locator.ByPlaceholder("Seu e-mail", locator.Unique))
	require.NoError(t, err)
	require.Len(t, first, 1)
	again, err := page.FindAll(ctx, locator.BySelector("#email", locator.Unique))
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.Equal(t, first[0].Selector(), again[0].Selector())

	el, err := page.Element(ctx, first[0].Selector())
	require.NoError(t, err)
	visible, err := el.Visible(ctx)
	require.NoError(t, err)
	assert.True(t, visible)
}

func TestSnapshotScript(t *testing.T) {
	ctx, page := openSignup(t)

	pm, err := page.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Cadastro", pm.Title)

	byPlaceholder := map[string]int{}
	var buttons []string
	for _, c := range pm.Controls {
		assert.NotEmpty(t, c.Selector)
		if c.Placeholder != "" {
			byPlaceholder[c.Placeholder]++
		}
		if c.Type == "button" {
			buttons = append(buttons, c.Label)
		}
		assert.NotEqual(t, "csrf", c.Name, "hidden inputs are not controls")
	}
	assert.Equal(t, 2, byPlaceholder["Deve ter no mínimo 7 caracteres"])
	assert.ElementsMatch(t, []string{"ajuda", "cadastrar-se gratuitamente"}, buttons)

	el, err := page.Element(ctx, pm.Controls[0].Selector)
	require.NoError(t, err)
	assert.NotNil(t, el)
}

func TestSetValueEmptyClears(t *testing.T) {
	ctx, page := openSignup(t)

	els, err := page.FindAll(ctx, locator.ByPlaceholder("Seu nome completo", locator.Unique))
	require.NoError(t, err)
	require.Len(t, els, 1)
	name := els[0]

	got, err := name.Value(ctx)
	require.NoError(t, err)
	require.Equal(t, "stale", got)

	require.NoError(t, name.SetValue(ctx, ""))
	got, err = name.Value(ctx)
	require.NoError(t, err)
	assert.Equal(t, "", got)

	require.NoError(t, name.SetValue(ctx, "Ana Souza"))
	got, err = name.Value(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Ana Souza", got)
}
