package scenario

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v0xg/formprobe/internal/field"
)

const scenarioFile = `
scenarios:
  - id: TC002
    name: invalid e-mail format
    force: true
    inputs:
      - {field: name, value: Teste Nome}
      - {field: email, value: emailinvalido}
    expect:
      kind: field_retains_value
      field: email
      value: emailinvalido
  - id: NAV
    inputs:
      - {field: confirm_password, value: "x{{unique}}"}
    expect:
      kind: navigation_to
      pattern: /welcome$
`

func TestDecode(t *testing.T) {
	got, err := Decode(strings.NewReader(scenarioFile))
	require.NoError(t, err)

	want := []Scenario{
		{
			ID:    "TC002",
			Name:  "invalid e-mail format",
			Force: true,
			Inputs: []Input{
				{Field: field.Name, Value: "Teste Nome"},
				{Field: field.Email, Value: "emailinvalido"},
			},
			Expect: FieldRetainsValue(field.Email, "emailinvalido"),
		},
		{
			ID:     "NAV",
			Inputs: []Input{{Field: field.ConfirmPassword, Value: "x{{unique}}"}},
			Expect: NavigationTo("/welcome$"),
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Decode mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeRejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"unknown key", "scenarios:\n  - id: A\n    expekt: {kind: no_navigation}\n", "expekt"},
		{"unknown field", "scenarios:\n  - id: A\n    inputs: [{field: phone, value: x}]\n    expect: {kind: no_navigation}\n", "phone"},
		{"unknown outcome", "scenarios:\n  - id: A\n    expect: {kind: maybe}\n", "maybe"},
		{"submit takes no value", "scenarios:\n  - id: A\n    inputs: [{field: submit, value: x}]\n    expect: {kind: no_navigation}\n", "does not take a value"},
		{"bad pattern", "scenarios:\n  - id: A\n    expect: {kind: navigation_to, pattern: \"(\"}\n", "pattern"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenarios.yaml")
	require.NoError(t, os.WriteFile(path, []byte(scenarioFile), 0o644))

	got, err := LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
