package resolve

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/v0xg/formprobe/internal/browser/browsertest"
	"github.com/v0xg/formprobe/internal/field"
	"github.com/v0xg/formprobe/internal/locator"
	"github.com/v0xg/formprobe/internal/semantic"
)

type mockResolver struct{ mock.Mock }

func (m *mockResolver) Resolve(ctx context.Context, req semantic.Request) (semantic.Result, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(semantic.Result), args.Error(1)
}

const formURL = "https://example.test/signup"

func signupNodes() []*browsertest.Node {
	return []*browsertest.Node{
		{ID: "name", Tag: "input", Role: "textbox", Placeholder: "Seu nome completo", Selectors: []string{"#name"}},
		{ID: "email", Tag: "input", Role: "textbox", Placeholder: "Seu e-mail", Selectors: []string{"#email"}},
		{ID: "password", Tag: "input", Placeholder: "Deve ter no mínimo 7 caracteres", Selectors: []string{"#password"}},
		{ID: "confirm", Tag: "input", Placeholder: "Deve ter no mínimo 7 caracteres", Selectors: []string{"#confirm"}},
		{ID: "submit", Tag: "button", Role: "button", Name: "Cadastrar-se gratuitamente", Text: "Cadastrar-se gratuitamente", Submits: true, Selectors: []string{"#submit"}},
	}
}

func mustRegistry(t *testing.T, b *locator.Builder) *locator.Registry {
	t.Helper()
	r, err := b.Build()
	require.NoError(t, err)
	return r
}

func TestDeterministicFieldsNeverCallResolver(t *testing.T) {
	reg := mustRegistry(t, locator.NewBuilder().
		Register(field.Name, locator.ByPlaceholder("Seu nome completo", locator.Unique)).
		Register(field.Password, locator.ByPlaceholder("Deve ter no mínimo 7 caracteres", locator.First)).
		Register(field.ConfirmPassword, locator.ByPlaceholder("Deve ter no mínimo 7 caracteres", locator.Last)).
		Register(field.Submit, locator.ByRole("button", "Cadastrar-se", locator.Unique)))
	res := &mockResolver{}
	page := browsertest.NewPage(formURL, signupNodes()...)
	e := NewEngine(reg, res, zap.NewNop())

	want := map[field.Field]string{
		field.Name:            "name",
		field.Password:        "password",
		field.ConfirmPassword: "confirm",
		field.Submit:          "submit",
	}
	for f, id := range want {
		got, err := e.Resolve(context.Background(), page, f)
		require.NoError(t, err, f)
		assert.Equal(t, id, got.Element.(*browsertest.Element).Node().ID)
		assert.True(t, got.Strategy.Kind.Deterministic())
	}
	res.AssertNotCalled(t, "Resolve", mock.Anything, mock.Anything)
	assert.Zero(t, page.Snapshots())
}

func TestStrategiesTriedInPriorityOrder(t *testing.T) {
	reg := mustRegistry(t, locator.NewBuilder().
		Register(field.Email,
			locator.BySelector("#e-mail-old", locator.Unique),
			locator.ByPlaceholder("Seu e-mail", locator.Unique),
			locator.BySelector("#email", locator.Unique),
		))
	page := browsertest.NewPage(formURL, signupNodes()...)
	e := NewEngine(reg, nil, nil)

	got, err := e.Resolve(context.Background(), page, field.Email)
	require.NoError(t, err)
	assert.Equal(t, locator.KindPlaceholder, got.Strategy.Kind)
	assert.Equal(t, []locator.Kind{locator.KindSelector, locator.KindPlaceholder}, page.Queries())
	assert.False(t, got.Cached)
	assert.Equal(t, "doc-1", got.PageID)
}

func TestSecondResolveHitsCache(t *testing.T) {
	reg := mustRegistry(t, locator.NewBuilder().
		Register(field.Email, locator.BySelector("#missing", locator.Unique), locator.ByPlaceholder("Seu e-mail", locator.Unique)))
	page := browsertest.NewPage(formURL, signupNodes()...)
	e := NewEngine(reg, nil, nil)

	first, err := e.Resolve(context.Background(), page, field.Email)
	require.NoError(t, err)
	queries := len(page.Queries())

	second, err := e.Resolve(context.Background(), page, field.Email)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Strategy.Kind, second.Strategy.Kind)
	assert.Equal(t, first.Element.Selector(), second.Element.Selector())
	assert.Len(t, page.Queries(), queries, "cache hit must not query the page")
}

func TestNavigationInvalidatesCache(t *testing.T) {
	reg := mustRegistry(t, locator.NewBuilder().
		Register(field.Name, locator.ByPlaceholder("Seu nome completo", locator.Unique)))
	page := browsertest.NewPage(formURL, signupNodes()...)
	e := NewEngine(reg, nil, nil)
	ctx := context.Background()

	before, err := e.Resolve(ctx, page, field.Name)
	require.NoError(t, err)
	require.NoError(t, page.Reload(ctx))

	after, err := e.Resolve(ctx, page, field.Name)
	require.NoError(t, err)
	assert.False(t, after.Cached)
	assert.NotEqual(t, before.PageID, after.PageID)
	assert.Len(t, page.Queries(), 2)

	// the stale handle belongs to the old document
	_, err = before.Element.Value(ctx)
	require.ErrorIs(t, err, browsertest.ErrDetached)
}

func TestOrdinalDisambiguation(t *testing.T) {
	shared := "Deve ter no mínimo 7 caracteres"
	reg := mustRegistry(t, locator.NewBuilder().
		Register(field.Password, locator.ByPlaceholder(shared, locator.Unique)).
		Register(field.ConfirmPassword, locator.ByPlaceholder(shared, locator.Nth(2))))
	page := browsertest.NewPage(formURL, signupNodes()...)
	e := NewEngine(reg, nil, nil)

	_, err := e.Resolve(context.Background(), page, field.Password)
	var nf *ElementNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, field.Password, nf.Field)
	assert.Contains(t, nf.Error(), "2 matches")

	got, err := e.Resolve(context.Background(), page, field.ConfirmPassword)
	require.NoError(t, err)
	assert.Equal(t, "confirm", got.Element.(*browsertest.Element).Node().ID)
}

func TestSemanticFallback(t *testing.T) {
	reg := mustRegistry(t, locator.NewBuilder().
		Register(field.Email,
			locator.BySelector("#renamed", locator.Unique),
			locator.Semantic("the e-mail address input"),
		))
	page := browsertest.NewPage(formURL, signupNodes()...)
	res := &mockResolver{}
	res.On("Resolve", mock.Anything, mock.MatchedBy(func(req semantic.Request) bool {
		return req.Field == field.Email && req.Description == "the e-mail address input" && len(req.Page.Controls) == 5
	})).Return(semantic.Result{Selector: "#email"}, nil).Once()
	e := NewEngine(reg, res, zap.NewNop())

	got, err := e.Resolve(context.Background(), page, field.Email)
	require.NoError(t, err)
	assert.Equal(t, locator.KindSemantic, got.Strategy.Kind)
	assert.Equal(t, "email", got.Element.(*browsertest.Element).Node().ID)

	again, err := e.Resolve(context.Background(), page, field.Email)
	require.NoError(t, err)
	assert.True(t, again.Cached)
	assert.Equal(t, locator.KindSemantic, again.Strategy.Kind)
	res.AssertExpectations(t)
}

func TestSemanticFailureIsAskedOncePerPage(t *testing.T) {
	reg := mustRegistry(t, locator.NewBuilder().
		Register(field.Email,
			locator.BySelector("#renamed", locator.Unique),
			locator.Semantic("the e-mail address input"),
		))
	page := browsertest.NewPage(formURL, signupNodes()...)
	res := &mockResolver{}
	res.On("Resolve", mock.Anything, mock.Anything).Return(semantic.Result{}, semantic.ErrNoMatch)
	e := NewEngine(reg, res, zap.NewNop())
	ctx := context.Background()

	for range 3 {
		_, err := e.Resolve(ctx, page, field.Email)
		var se *SemanticResolutionError
		require.ErrorAs(t, err, &se)
		assert.True(t, errors.Is(err, ErrElementNotFound))
		assert.True(t, errors.Is(err, semantic.ErrNoMatch))
		assert.True(t, IsNotFound(err))
	}
	res.AssertNumberOfCalls(t, "Resolve", 1)

	require.NoError(t, page.Navigate(ctx, formURL))
	_, err := e.Resolve(ctx, page, field.Email)
	require.Error(t, err)
	res.AssertNumberOfCalls(t, "Resolve", 2)
}

func TestSemanticWithoutResolver(t *testing.T) {
	reg := mustRegistry(t, locator.NewBuilder().
		Register(field.Email, locator.BySelector("#renamed", locator.Unique), locator.Semantic("e-mail input")))
	page := browsertest.NewPage(formURL, signupNodes()...)
	e := NewEngine(reg, nil, nil)

	_, err := e.Resolve(context.Background(), page, field.Email)
	require.ErrorIs(t, err, ErrNoResolver)
	require.ErrorIs(t, err, ErrElementNotFound)
}

func TestSemanticWithKeywordResolver(t *testing.T) {
	reg := mustRegistry(t, locator.NewBuilder().
		Register(field.ConfirmPassword,
			locator.BySelector("#password-confirmation", locator.Unique),
			locator.Semantic("confirm password input"),
		))
	page := browsertest.NewPage(formURL, signupNodes()...)
	kw := semantic.NewKeyword()
	e := NewEngine(reg, kw, nil)

	// the fake exposes the shared placeholder; "confirm" picks the later one
	got, err := e.Resolve(context.Background(), page, field.ConfirmPassword)
	require.NoError(t, err)
	assert.Equal(t, "confirm", got.Element.(*browsertest.Element).Node().ID)
	assert.Equal(t, 1, kw.Calls())
}

func TestUnknownField(t *testing.T) {
	reg := mustRegistry(t, locator.NewBuilder().
		Register(field.Name, locator.ByPlaceholder("Seu nome completo", locator.Unique)))
	e := NewEngine(reg, nil, nil)

	_, err := e.Resolve(context.Background(), browsertest.NewPage(formURL), field.Email)
	var uf *locator.UnknownFieldError
	require.ErrorAs(t, err, &uf)
	assert.False(t, IsNotFound(err))
}

func TestCancelledContextIsNotNegativeCached(t *testing.T) {
	reg := mustRegistry(t, locator.NewBuilder().
		Register(field.Email, locator.BySelector("#renamed", locator.Unique), locator.Semantic("e-mail input")))
	page := browsertest.NewPage(formURL, signupNodes()...)
	ctx, cancel := context.WithCancel(context.Background())
	res := &mockResolver{}
	res.On("Resolve", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return(semantic.Result{}, context.Canceled).Once()
	res.On("Resolve", mock.Anything, mock.Anything).Return(semantic.Result{Selector: "#email"}, nil).Once()
	e := NewEngine(reg, res, nil)

	_, err := e.Resolve(ctx, page, field.Email)
	require.ErrorIs(t, err, context.Canceled)
	var se *SemanticResolutionError
	assert.False(t, errors.As(err, &se))

	got, err := e.Resolve(context.Background(), page, field.Email)
	require.NoError(t, err)
	assert.Equal(t, locator.KindSemantic, got.Strategy.Kind)
	res.AssertNumberOfCalls(t, "Resolve", 2)
}

func TestIndicator(t *testing.T) {
	reg := mustRegistry(t, locator.NewBuilder().
		Register(field.Name, locator.ByPlaceholder("Seu nome completo", locator.Unique)).
		RegisterErrorIndicator(field.Name, locator.ByText("Campo obrigatório", locator.First)))
	page := browsertest.NewPage(formURL, signupNodes()...)
	e := NewEngine(reg, nil, nil)
	ctx := context.Background()

	m, err := e.Indicator(ctx, page, field.Name)
	require.NoError(t, err)
	assert.Nil(t, m)

	page.Replace(formURL, append(signupNodes(), &browsertest.Node{ID: "name-error", Tag: "span", Text: "Campo obrigatório"})...)
	m, err = e.Indicator(ctx, page, field.Name)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.False(t, m.Shared)
	visible, err := m.Element.Visible(ctx)
	require.NoError(t, err)
	assert.True(t, visible)

	m, err = e.Indicator(ctx, page, field.Email)
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestIndicatorSharedMessageNeedsEveryCopy(t *testing.T) {
	reg := mustRegistry(t, locator.NewBuilder().
		Register(field.Name, locator.ByPlaceholder("Seu nome completo", locator.Unique)).
		Register(field.Email, locator.ByPlaceholder("Seu e-mail", locator.Unique)).
		RegisterErrorIndicator(field.Name, locator.ByText("Campo obrigatório", locator.First)).
		RegisterErrorIndicator(field.Email, locator.ByText("Campo obrigatório", locator.Last)))
	e := NewEngine(reg, nil, nil)
	ctx := context.Background()
	required := func(id string) *browsertest.Node {
		return &browsertest.Node{ID: id, Tag: "span", Text: "Campo obrigatório"}
	}

	// only the e-mail message is on screen
	page := browsertest.NewPage(formURL, append(signupNodes(), required("email-error"))...)
	m, err := e.Indicator(ctx, page, field.Name)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.True(t, m.Shared)

	page.Replace(formURL, append(signupNodes(), required("name-error"), required("email-error"))...)
	for _, f := range []field.Field{field.Name, field.Email} {
		m, err := e.Indicator(ctx, page, f)
		require.NoError(t, err)
		require.NotNil(t, m, f)
		assert.False(t, m.Shared, f)
	}
}
