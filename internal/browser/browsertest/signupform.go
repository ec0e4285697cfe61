package browsertest

import (
	"strings"
	"unicode/utf8"
)

// Messages shown by the fake sign-up form.
const (
	MsgRequired      = "Campo obrigatório"
	MsgMinLength     = "Deve ter no mínimo 7 caracteres"
	MsgInvalidEmail  = "E-mail inválido"
	MsgEmailTaken    = "E-mail já cadastrado"
	MsgPasswordMatch = "As senhas não coincidem"
	MsgCaptcha       = "Confirme que você não é um robô"
)

// SignupOptions configures NewSignupForm.
type SignupOptions struct {
	URL        string
	SuccessURL string
	// Registered e-mails are rejected as already taken.
	Registered []string
	// Captcha blocks every otherwise valid submission.
	Captcha bool
}

// NewSignupForm returns a page that behaves like the reference sign-up
// form: inline validation messages under each invalid input, and a
// navigation to SuccessURL on a valid submission.
func NewSignupForm(opts SignupOptions) *Page {
	if opts.URL == "" {
		opts.URL = "https://example.test/signup?to=%2F"
	}
	if opts.SuccessURL == "" {
		opts.SuccessURL = "https://example.test/welcome"
	}

	name := &Node{ID: "name", Tag: "input", Role: "textbox", Placeholder: "Seu nome completo", Selectors: []string{"input[name=name]"}}
	email := &Node{ID: "email", Tag: "input", Role: "textbox", Placeholder: "Seu e-mail", Selectors: []string{"input[name=email]"}}
	password := &Node{ID: "password", Tag: "input", Placeholder: MsgMinLength, Selectors: []string{"input[name=password]"}}
	confirm := &Node{ID: "confirm", Tag: "input", Placeholder: MsgMinLength, Selectors: []string{"input[name=password_confirmation]"}}
	submit := &Node{ID: "submit", Tag: "button", Role: "button", Name: "Cadastrar-se gratuitamente", Text: "Cadastrar-se gratuitamente", Submits: true, Selectors: []string{"button[type=submit]"}}
	inputs := []*Node{name, email, password, confirm}

	p := NewPage(opts.URL, name, email, password, confirm, submit)
	p.OnSubmit = func(p *Page) {
		var problems map[*Node]string
		p.Mutate(func([]*Node) {
			problems = validateSignup(name.Value, email.Value, password.Value, confirm.Value, opts.Registered, name, email, password, confirm)
		})

		if len(problems) == 0 && !opts.Captcha {
			p.Replace(opts.SuccessURL, &Node{ID: "welcome", Tag: "h1", Role: "heading", Text: "Bem-vindo"})
			return
		}

		var nodes []*Node
		for _, in := range inputs {
			nodes = append(nodes, in)
			if msg, ok := problems[in]; ok {
				nodes = append(nodes, &Node{ID: in.ID + "-error", Tag: "span", Text: msg})
			}
		}
		if len(problems) == 0 {
			nodes = append(nodes, &Node{ID: "captcha-error", Tag: "span", Text: MsgCaptcha})
		}
		p.SetNodes(append(nodes, submit)...)
	}
	return p
}

func validateSignup(name, email, password, confirm string, registered []string, nameN, emailN, passwordN, confirmN *Node) map[*Node]string {
	problems := make(map[*Node]string)
	if strings.TrimSpace(name) == "" {
		problems[nameN] = MsgRequired
	}

	switch at := strings.Index(email, "@"); {
	case email == "":
		problems[emailN] = MsgRequired
	case at <= 0 || !strings.Contains(email[at+1:], "."):
		problems[emailN] = MsgInvalidEmail
	default:
		for _, r := range registered {
			if strings.EqualFold(r, email) {
				problems[emailN] = MsgEmailTaken
			}
		}
	}

	if utf8.RuneCountInString(password) < 7 {
		problems[passwordN] = MsgMinLength
	}
	switch {
	case utf8.RuneCountInString(confirm) < 7:
		problems[confirmN] = MsgMinLength
	case confirm != password:
		problems[confirmN] = MsgPasswordMatch
	}
	return problems
}
