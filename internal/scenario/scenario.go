// Package scenario holds the declarative validation scenario model and the
// runner that plays a scenario against a fresh page and classifies the
// outcome into a Verdict.
package scenario

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/v0xg/formprobe/internal/field"
)

// OutcomeKind is the class of result a scenario expects after submission.
type OutcomeKind string

const (
	// ExpectValidationError expects the form to reject the named field.
	ExpectValidationError OutcomeKind = "validation_error"
	// ExpectNoNavigation expects the browser to stay on the form.
	ExpectNoNavigation OutcomeKind = "no_navigation"
	// ExpectNavigationTo expects the location to match Pattern.
	ExpectNavigationTo OutcomeKind = "navigation_to"
	// ExpectFieldRetainsValue expects Field to still hold Value.
	ExpectFieldRetainsValue OutcomeKind = "field_retains_value"
)

// Outcome is the expected result. Only the members relevant to Kind are set.
type Outcome struct {
	Kind    OutcomeKind
	Field   field.Field
	Pattern string
	Value   string
}

// ValidationError expects a validation error on f.
func ValidationError(f field.Field) Outcome {
	return Outcome{Kind: ExpectValidationError, Field: f}
}

// NoNavigation expects the page to stay on the form.
func NoNavigation() Outcome { return Outcome{Kind: ExpectNoNavigation} }

// NavigationTo expects the location to match the regular expression pattern.
func NavigationTo(pattern string) Outcome {
	return Outcome{Kind: ExpectNavigationTo, Pattern: pattern}
}

// FieldRetainsValue expects f to hold value after submission.
func FieldRetainsValue(f field.Field, value string) Outcome {
	return Outcome{Kind: ExpectFieldRetainsValue, Field: f, Value: value}
}

func (o Outcome) String() string {
	switch o.Kind {
	case ExpectValidationError:
		return fmt.Sprintf("validation-error(%s)", o.Field)
	case ExpectNoNavigation:
		return "no-navigation"
	case ExpectNavigationTo:
		return fmt.Sprintf("navigation-to(%s)", o.Pattern)
	case ExpectFieldRetainsValue:
		return fmt.Sprintf("field-retains-value(%s, %q)", o.Field, o.Value)
	}
	return string(o.Kind)
}

// Input writes Value into Field. An empty Value leaves the field blank.
type Input struct {
	Field field.Field
	Value string
}

// Scenario is pure data: what to type, how to submit, what to expect.
type Scenario struct {
	ID     string
	Name   string
	Inputs []Input
	// Force submits without the interactability pre-check.
	Force  bool
	Expect Outcome
}

// Title is the display name used in logs and reports.
func (s Scenario) Title() string {
	switch {
	case s.ID != "" && s.Name != "":
		return s.ID + " - " + s.Name
	case s.ID != "":
		return s.ID
	}
	return s.Name
}

// Validate checks the scenario is well formed. It does not consult a
// registry; unknown fields surface when the scenario runs.
func (s Scenario) Validate() error {
	var errs []error
	if s.ID == "" && s.Name == "" {
		errs = append(errs, errors.New("scenario needs an id or a name"))
	}
	for i, in := range s.Inputs {
		if !in.Field.Fillable() {
			errs = append(errs, fmt.Errorf("input %d: field %q does not take a value", i, in.Field))
		}
	}
	switch s.Expect.Kind {
	case ExpectValidationError:
		if !s.Expect.Field.Valid() {
			errs = append(errs, errors.New("validation_error needs a field"))
		}
	case ExpectNoNavigation:
	case ExpectNavigationTo:
		if s.Expect.Pattern == "" {
			errs = append(errs, errors.New("navigation_to needs a pattern"))
		} else if _, err := regexp.Compile(s.Expect.Pattern); err != nil {
			errs = append(errs, fmt.Errorf("navigation_to pattern: %w", err))
		}
	case ExpectFieldRetainsValue:
		if !s.Expect.Field.Fillable() {
			errs = append(errs, errors.New("field_retains_value needs a fillable field"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown expected outcome %q", s.Expect.Kind))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("scenario %s: %w", s.Title(), err)
	}
	return nil
}
