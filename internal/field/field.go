// Package field defines the closed set of logical form controls a scenario
// can address. Logical fields are stable across markup changes; how each one
// is found on the page is the locator registry's business.
package field

import (
	"fmt"
	"strings"
)

// Field identifies a semantic form control.
type Field int

const (
	Name Field = iota + 1
	Email
	Password
	ConfirmPassword
	Submit
)

// All returns every field in declaration order.
func All() []Field {
	return []Field{Name, Email, Password, ConfirmPassword, Submit}
}

// String returns the stable identifier used in config files and logs.
func (f Field) String() string {
	switch f {
	case Name:
		return "name"
	case Email:
		return "email"
	case Password:
		return "password"
	case ConfirmPassword:
		return "confirm_password"
	case Submit:
		return "submit"
	}
	return fmt.Sprintf("field(%d)", int(f))
}

// Label is a human description of the control, used when no explicit
// natural-language description was registered.
func (f Field) Label() string {
	switch f {
	case Name:
		return "full name input"
	case Email:
		return "e-mail input"
	case Password:
		return "password input"
	case ConfirmPassword:
		return "confirm password input"
	case Submit:
		return "sign-up submit button"
	}
	return f.String()
}

// Valid reports whether f is one of the declared fields.
func (f Field) Valid() bool {
	return f >= Name && f <= Submit
}

// Fillable reports whether the field accepts a value. The submit control
// is activated, never written.
func (f Field) Fillable() bool {
	switch f {
	case Name, Email, Password, ConfirmPassword:
		return true
	case Submit:
		return false
	}
	return false
}

// Parse maps an identifier back to its field. Hyphens and case are
// tolerated so "Confirm-Password" and "confirm_password" are the same.
func Parse(s string) (Field, error) {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	for _, f := range All() {
		if f.String() == key {
			return f, nil
		}
	}
	return 0, fmt.Errorf("unknown logical field %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (f Field) MarshalText() ([]byte, error) {
	if !f.Valid() {
		return nil, fmt.Errorf("invalid logical field %d", int(f))
	}
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Field) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}
