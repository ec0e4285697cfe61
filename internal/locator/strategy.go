package locator

import (
	"fmt"
	"strings"
)

// Kind tags which technique a Strategy uses to find an element.
type Kind string

const (
	KindSelector    Kind = "selector"
	KindRole        Kind = "role"
	KindPlaceholder Kind = "placeholder"
	KindText        Kind = "text"
	KindSemantic    Kind = "semantic"
)

// Deterministic reports whether the kind is resolved by the browser driver
// alone, without the semantic resolver.
func (k Kind) Deterministic() bool {
	switch k {
	case KindSelector, KindRole, KindPlaceholder, KindText:
		return true
	case KindSemantic:
		return false
	}
	return false
}

// Ordinal picks one element when a locator matches several.
type Ordinal struct {
	// Pos is 0 for "exactly one match required", 1-based from the start for
	// positive values, and 1-based from the end for negative values
	// (-1 is the last match).
	Pos int
}

var (
	Unique = Ordinal{}
	First  = Ordinal{Pos: 1}
	Last   = Ordinal{Pos: -1}
)

// Nth returns the 1-based ordinal n.
func Nth(n int) Ordinal { return Ordinal{Pos: n} }

// Pick returns the index selected among count matches, or false when the
// matches are absent or ambiguous under this ordinal.
func (o Ordinal) Pick(count int) (int, bool) {
	switch {
	case count == 0:
		return 0, false
	case o.Pos == 0:
		return 0, count == 1
	case o.Pos > 0:
		if o.Pos > count {
			return 0, false
		}
		return o.Pos - 1, true
	default:
		idx := count + o.Pos
		if idx < 0 {
			return 0, false
		}
		return idx, true
	}
}

func (o Ordinal) String() string {
	switch {
	case o.Pos == 0:
		return "unique"
	case o.Pos == 1:
		return "first"
	case o.Pos == -1:
		return "last"
	case o.Pos > 0:
		return fmt.Sprintf("nth(%d)", o.Pos)
	default:
		return fmt.Sprintf("nth-from-end(%d)", -o.Pos)
	}
}

// ParseOrdinal accepts "", "unique", "first", "last", or a signed integer.
func ParseOrdinal(s string) (Ordinal, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "unique", "only":
		return Unique, nil
	case "first":
		return First, nil
	case "last":
		return Last, nil
	}
	var n int
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil {
		return Unique, fmt.Errorf("invalid ordinal %q", s)
	}
	return Nth(n), nil
}

// Strategy is one way to find the element behind a logical field. Only the
// members relevant to Kind are set.
type Strategy struct {
	Kind Kind

	// Selector is a CSS selector (KindSelector).
	Selector string
	// Role and Name address an element by accessible role and accessible
	// name (KindRole). Name matching is a case-insensitive substring match
	// unless Exact is set.
	Role  string
	Name  string
	Exact bool
	// Placeholder matches the placeholder attribute exactly (KindPlaceholder).
	Placeholder string
	// Text matches visible text content (KindText), substring unless Exact.
	Text string
	// Description is the natural-language instruction (KindSemantic).
	Description string

	Ordinal Ordinal
}

// BySelector builds a structural CSS strategy.
func BySelector(css string, ord Ordinal) Strategy {
	return Strategy{Kind: KindSelector, Selector: css, Ordinal: ord}
}

// ByRole builds an accessible role + name strategy.
func ByRole(role, name string, ord Ordinal) Strategy {
	return Strategy{Kind: KindRole, Role: role, Name: name, Ordinal: ord}
}

// ByPlaceholder builds a placeholder-text strategy.
func ByPlaceholder(placeholder string, ord Ordinal) Strategy {
	return Strategy{Kind: KindPlaceholder, Placeholder: placeholder, Ordinal: ord}
}

// ByText builds a visible-text strategy.
func ByText(text string, ord Ordinal) Strategy {
	return Strategy{Kind: KindText, Text: text, Ordinal: ord}
}

// Semantic builds a natural-language strategy.
func Semantic(description string) Strategy {
	return Strategy{Kind: KindSemantic, Description: description}
}

// Target returns s without its ordinal: two strategies with the same
// target match the same set of elements.
func (s Strategy) Target() Strategy {
	s.Ordinal = Unique
	return s
}

// Validate checks that the members required by Kind are present.
func (s Strategy) Validate() error {
	switch s.Kind {
	case KindSelector:
		if s.Selector == "" {
			return fmt.Errorf("selector strategy needs a selector")
		}
	case KindRole:
		if s.Role == "" {
			return fmt.Errorf("role strategy needs a role")
		}
	case KindPlaceholder:
		if s.Placeholder == "" {
			return fmt.Errorf("placeholder strategy needs a placeholder")
		}
	case KindText:
		if s.Text == "" {
			return fmt.Errorf("text strategy needs text")
		}
	case KindSemantic:
		if s.Description == "" {
			return fmt.Errorf("semantic strategy needs a description")
		}
	default:
		return fmt.Errorf("unknown strategy kind %q", s.Kind)
	}
	return nil
}

func (s Strategy) String() string {
	var target string
	switch s.Kind {
	case KindSelector:
		target = s.Selector
	case KindRole:
		target = fmt.Sprintf("%s[name=%q]", s.Role, s.Name)
	case KindPlaceholder:
		target = fmt.Sprintf("%q", s.Placeholder)
	case KindText:
		target = fmt.Sprintf("%q", s.Text)
	case KindSemantic:
		return fmt.Sprintf("semantic(%q)", s.Description)
	}
	if s.Ordinal == Unique {
		return fmt.Sprintf("%s(%s)", s.Kind, target)
	}
	return fmt.Sprintf("%s(%s).%s", s.Kind, target, s.Ordinal)
}
