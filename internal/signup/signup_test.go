package signup

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v0xg/formprobe/internal/browser/browsertest"
	"github.com/v0xg/formprobe/internal/field"
	"github.com/v0xg/formprobe/internal/locator"
	"github.com/v0xg/formprobe/internal/resolve"
)

func TestRegistryCoversEveryField(t *testing.T) {
	reg, err := Registry()
	require.NoError(t, err)
	assert.Equal(t, field.All(), reg.Fields())
	for _, f := range field.All() {
		assert.True(t, reg.HasSemantic(f), f)
		strategies, err := reg.StrategiesFor(f)
		require.NoError(t, err)
		assert.True(t, strategies[0].Kind.Deterministic(), f)
	}
}

func TestRegistryResolvesFakeForm(t *testing.T) {
	reg, err := Registry()
	require.NoError(t, err)
	page := browsertest.NewSignupForm(browsertest.SignupOptions{})
	e := resolve.NewEngine(reg, nil, nil)

	want := map[field.Field]string{
		field.Name:            "name",
		field.Email:           "email",
		field.Password:        "password",
		field.ConfirmPassword: "confirm",
		field.Submit:          "submit",
	}
	for f, id := range want {
		got, err := e.Resolve(context.Background(), page, f)
		require.NoError(t, err, f)
		assert.Equal(t, id, got.Element.(*browsertest.Element).Node().ID, f)
		assert.NotEqual(t, locator.KindSemantic, got.Strategy.Kind)
	}
}

func TestScenariosAreValid(t *testing.T) {
	ids := map[string]bool{}
	for _, sc := range Scenarios() {
		require.NoError(t, sc.Validate())
		assert.True(t, sc.Force, sc.ID)
		assert.False(t, ids[sc.ID], "duplicate %s", sc.ID)
		ids[sc.ID] = true
	}
	assert.Len(t, ids, 7)
}
