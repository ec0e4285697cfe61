package scenario

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/v0xg/formprobe/internal/field"
)

// fileDoc is the on-disk shape of a scenario file:
//
//	scenarios:
//	  - id: TC002
//	    name: invalid e-mail format
//	    force: true
//	    inputs:
//	      - {field: name, value: Teste Nome}
//	      - {field: email, value: emailinvalido}
//	    expect:
//	      kind: field_retains_value
//	      field: email
//	      value: emailinvalido
type fileDoc struct {
	Scenarios []scenarioSpec `yaml:"scenarios"`
}

type scenarioSpec struct {
	ID     string      `yaml:"id"`
	Name   string      `yaml:"name"`
	Force  bool        `yaml:"force"`
	Inputs []inputSpec `yaml:"inputs"`
	Expect outcomeSpec `yaml:"expect"`
}

type inputSpec struct {
	Field string `yaml:"field"`
	Value string `yaml:"value"`
}

type outcomeSpec struct {
	Kind    string `yaml:"kind"`
	Field   string `yaml:"field"`
	Pattern string `yaml:"pattern"`
	Value   string `yaml:"value"`
}

// Decode reads and validates every scenario in r.
func Decode(r io.Reader) ([]Scenario, error) {
	var doc fileDoc
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode scenario file: %w", err)
	}

	out := make([]Scenario, 0, len(doc.Scenarios))
	var errs []error
	for i, ss := range doc.Scenarios {
		sc, err := ss.toScenario()
		if err == nil {
			err = sc.Validate()
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("scenario %d: %w", i, err))
			continue
		}
		out = append(out, sc)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return out, nil
}

// LoadFile reads scenarios from path.
func LoadFile(path string) ([]Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}

func (ss scenarioSpec) toScenario() (Scenario, error) {
	sc := Scenario{ID: ss.ID, Name: ss.Name, Force: ss.Force}
	for _, in := range ss.Inputs {
		f, err := field.Parse(in.Field)
		if err != nil {
			return Scenario{}, err
		}
		sc.Inputs = append(sc.Inputs, Input{Field: f, Value: in.Value})
	}

	sc.Expect = Outcome{Kind: OutcomeKind(ss.Expect.Kind), Pattern: ss.Expect.Pattern, Value: ss.Expect.Value}
	if ss.Expect.Field != "" {
		f, err := field.Parse(ss.Expect.Field)
		if err != nil {
			return Scenario{}, fmt.Errorf("expect: %w", err)
		}
		sc.Expect.Field = f
	}
	return sc, nil
}
