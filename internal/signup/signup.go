// Package signup describes the reference sign-up form: where it lives, how
// each logical field is found on it, and the built-in validation scenarios.
package signup

import (
	"github.com/v0xg/formprobe/internal/field"
	"github.com/v0xg/formprobe/internal/locator"
	"github.com/v0xg/formprobe/internal/scenario"
)

const (
	// FormURL is the sign-up page.
	FormURL = "https://app.rocketseat.com.br/signup?to=%2F"
	// LocationPattern matches every location of the sign-up page.
	LocationPattern = "signup"

	// ExistingEmail is treated as already registered by the live site.
	ExistingEmail = "teste@rocketseat.com.br"

	placeholderName     = "Seu nome completo"
	placeholderEmail    = "Seu e-mail"
	placeholderPassword = "Deve ter no mínimo 7 caracteres"
	submitLabel         = "Cadastrar-se gratuitamente"

	msgRequired  = "Campo obrigatório"
	msgMinLength = "Deve ter no mínimo 7 caracteres"
)

func exactText(text string, ord locator.Ordinal) locator.Strategy {
	s := locator.ByText(text, ord)
	s.Exact = true
	return s
}

// Builder returns the built-in registrations. Callers may add error
// indicators or other fields before building.
func Builder() *locator.Builder {
	submit := locator.ByRole("button", submitLabel, locator.Unique)
	submit.Exact = true

	return locator.NewBuilder().
		Register(field.Name,
			locator.ByPlaceholder(placeholderName, locator.Unique),
			locator.BySelector(`input[name="name"]`, locator.Unique),
			locator.Semantic("full name text input (placeholder: Seu nome completo)"),
		).
		Register(field.Email,
			locator.ByPlaceholder(placeholderEmail, locator.Unique),
			locator.BySelector(`input[type="email"]`, locator.Unique),
			locator.Semantic("e-mail address input (placeholder: Seu e-mail)"),
		).
		// both password inputs share one placeholder
		Register(field.Password,
			locator.ByPlaceholder(placeholderPassword, locator.First),
			locator.BySelector(`input[type="password"]`, locator.First),
			locator.Semantic("password input, the first of the two password boxes"),
		).
		Register(field.ConfirmPassword,
			locator.ByPlaceholder(placeholderPassword, locator.Last),
			locator.BySelector(`input[type="password"]`, locator.Last),
			locator.Semantic("confirm password input, the second password box"),
		).
		Register(field.Submit,
			submit,
			locator.BySelector(`button[type="submit"]`, locator.Unique),
			locator.Semantic("button that submits the sign-up form (Cadastrar-se gratuitamente)"),
		).
		RegisterErrorIndicator(field.Name, exactText(msgRequired, locator.First)).
		RegisterErrorIndicator(field.Email, exactText(msgRequired, locator.Last)).
		RegisterErrorIndicator(field.Password, exactText(msgMinLength, locator.First)).
		RegisterErrorIndicator(field.ConfirmPassword, exactText(msgMinLength, locator.Last))
}

// Registry builds the built-in registry.
func Registry() (*locator.Registry, error) {
	return Builder().Build()
}

func inputs(name, email, password, confirm string) []scenario.Input {
	return []scenario.Input{
		{Field: field.Name, Value: name},
		{Field: field.Email, Value: email},
		{Field: field.Password, Value: password},
		{Field: field.ConfirmPassword, Value: confirm},
	}
}

// Scenarios returns the built-in scenarios TC001 to TC007. Fresh e-mail
// addresses use the per-run unique placeholder.
func Scenarios() []scenario.Scenario {
	fresh := "teste" + scenario.UniquePlaceholder + "@teste.com"
	return []scenario.Scenario{
		{
			ID:     "TC001",
			Name:   "all fields empty is rejected",
			Inputs: inputs("", "", "", ""),
			Force:  true,
			Expect: scenario.ValidationError(field.Name),
		},
		{
			ID:     "TC002",
			Name:   "invalid e-mail format is rejected",
			Inputs: inputs("Teste Nome", "emailinvalido", "senhaforte123", "senhaforte123"),
			Force:  true,
			Expect: scenario.FieldRetainsValue(field.Email, "emailinvalido"),
		},
		{
			ID:     "TC003",
			Name:   "password shorter than 7 characters is rejected",
			Inputs: inputs("Teste Nome", fresh, "curta", "curta"),
			Force:  true,
			Expect: scenario.FieldRetainsValue(field.Password, "curta"),
		},
		{
			ID:     "TC004",
			Name:   "mismatched passwords are rejected",
			Inputs: inputs("Teste Nome", fresh, "senhaforte123", "senhadiferente"),
			Force:  true,
			Expect: scenario.NoNavigation(),
		},
		{
			ID:     "TC005",
			Name:   "empty name is rejected",
			Inputs: inputs("", fresh, "senhaforte123", "senhaforte123"),
			Force:  true,
			Expect: scenario.ValidationError(field.Name),
		},
		{
			ID:     "TC006",
			Name:   "already registered e-mail is rejected",
			Inputs: inputs("Teste Nome", ExistingEmail, "senhaforte123", "senhaforte123"),
			Force:  true,
			Expect: scenario.NoNavigation(),
		},
		{
			// the live form sits behind reCAPTCHA, so an otherwise valid
			// submission still stays on the page
			ID:     "TC007",
			Name:   "password with a special character is accepted by validation",
			Inputs: inputs("Teste Caractere", fresh, "Senha@123", "Senha@123"),
			Force:  true,
			Expect: scenario.NoNavigation(),
		},
	}
}
