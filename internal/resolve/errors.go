package resolve

import (
	"errors"
	"fmt"
	"strings"

	"github.com/v0xg/formprobe/internal/field"
	"github.com/v0xg/formprobe/internal/locator"
)

// ErrElementNotFound matches every resolution failure with errors.Is,
// including semantic ones.
var ErrElementNotFound = errors.New("element not found")

// ErrNoResolver is the cause recorded when a field has a semantic strategy
// but no resolver is configured.
var ErrNoResolver = errors.New("no semantic resolver configured")

// ElementNotFoundError reports that no strategy produced exactly one
// element for the field. Misses lists why each strategy failed and Kind is
// the kind of the last one tried.
type ElementNotFoundError struct {
	Field  field.Field
	Kind   locator.Kind
	Misses []string
}

func (e *ElementNotFoundError) Error() string {
	if len(e.Misses) == 0 {
		return fmt.Sprintf("element not found for field %q", e.Field)
	}
	return fmt.Sprintf("element not found for field %q: %s", e.Field, strings.Join(e.Misses, "; "))
}

// Is makes the error match ErrElementNotFound.
func (e *ElementNotFoundError) Is(target error) bool { return target == ErrElementNotFound }

// SemanticResolutionError reports that the semantic fallback failed.
// Callers treat it as not found.
type SemanticResolutionError struct {
	Field       field.Field
	Description string
	Err         error
}

func (e *SemanticResolutionError) Error() string {
	return fmt.Sprintf("semantic resolution of field %q (%q) failed: %v", e.Field, e.Description, e.Err)
}

func (e *SemanticResolutionError) Unwrap() error { return e.Err }

// Is makes the error match ErrElementNotFound.
func (e *SemanticResolutionError) Is(target error) bool { return target == ErrElementNotFound }

// AttemptedKind returns the kind of the last strategy tried before err, or
// "" when err is not a resolution failure.
func AttemptedKind(err error) locator.Kind {
	var (
		notFound *ElementNotFoundError
		sem      *SemanticResolutionError
	)
	switch {
	case errors.As(err, &sem):
		return locator.KindSemantic
	case errors.As(err, &notFound):
		return notFound.Kind
	}
	return ""
}
