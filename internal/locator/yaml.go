package locator

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/v0xg/formprobe/internal/field"
)

// fileDoc is the on-disk shape of a locator file:
//
//	fields:
//	  - field: password
//	    strategies:
//	      - selector: 'input[placeholder="Deve ter no mínimo 7 caracteres"]'
//	        ordinal: first
//	      - semantic: the first password box
//	    error_indicators:
//	      - text: Deve ter no mínimo 7 caracteres
type fileDoc struct {
	Fields []fieldSpec `yaml:"fields"`
}

type fieldSpec struct {
	Field           string         `yaml:"field"`
	Strategies      []strategySpec `yaml:"strategies"`
	ErrorIndicators []strategySpec `yaml:"error_indicators"`
}

type strategySpec struct {
	Selector    string `yaml:"selector"`
	Role        string `yaml:"role"`
	Name        string `yaml:"name"`
	Exact       bool   `yaml:"exact"`
	Placeholder string `yaml:"placeholder"`
	Text        string `yaml:"text"`
	Semantic    string `yaml:"semantic"`
	Ordinal     string `yaml:"ordinal"`
}

func (s strategySpec) toStrategy() (Strategy, error) {
	ord, err := ParseOrdinal(s.Ordinal)
	if err != nil {
		return Strategy{}, err
	}
	var out []Strategy
	if s.Selector != "" {
		out = append(out, BySelector(s.Selector, ord))
	}
	if s.Role != "" {
		st := ByRole(s.Role, s.Name, ord)
		st.Exact = s.Exact
		out = append(out, st)
	}
	if s.Placeholder != "" {
		out = append(out, ByPlaceholder(s.Placeholder, ord))
	}
	if s.Text != "" {
		st := ByText(s.Text, ord)
		st.Exact = s.Exact
		out = append(out, st)
	}
	if s.Semantic != "" {
		out = append(out, Semantic(s.Semantic))
	}
	if len(out) != 1 {
		return Strategy{}, fmt.Errorf("a strategy entry must set exactly one of selector, role, placeholder, text, semantic (got %d)", len(out))
	}
	return out[0], nil
}

// Decode reads a locator file into a fresh Builder. Callers may add further
// registrations before calling Build.
func Decode(r io.Reader) (*Builder, error) {
	var doc fileDoc
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode locator file: %w", err)
	}

	b := NewBuilder()
	for _, fs := range doc.Fields {
		f, err := field.Parse(fs.Field)
		if err != nil {
			return nil, err
		}
		strategies, err := convert(fs.Strategies)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f, err)
		}
		b.Register(f, strategies...)

		if len(fs.ErrorIndicators) > 0 {
			indicators, err := convert(fs.ErrorIndicators)
			if err != nil {
				return nil, fmt.Errorf("field %q error indicators: %w", f, err)
			}
			b.RegisterErrorIndicator(f, indicators...)
		}
	}
	return b, nil
}

// LoadFile decodes and builds a Registry from path.
func LoadFile(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	b, err := Decode(f)
	if err != nil {
		return nil, err
	}
	return b.Build()
}

func convert(specs []strategySpec) ([]Strategy, error) {
	out := make([]Strategy, 0, len(specs))
	for i, s := range specs {
		st, err := s.toStrategy()
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		out = append(out, st)
	}
	return out, nil
}
