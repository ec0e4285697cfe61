package semantic

import (
	"context"
	"strings"
	"sync/atomic"
	"unicode"
)

// Keyword is an offline resolver that scores page-map controls by how many
// description words they mention. It is deterministic, which makes it the
// resolver of choice for tests and for runs without an API key.
type Keyword struct {
	calls atomic.Int64
}

// NewKeyword returns a keyword resolver.
func NewKeyword() *Keyword { return &Keyword{} }

// Calls reports how many requests the resolver has served.
func (k *Keyword) Calls() int { return int(k.calls.Load()) }

// words that point at the later of two equally good matches
var preferLast = map[string]bool{
	"last": true, "second": true, "confirm": true, "confirmation": true,
	"repeat": true, "again": true, "confirmar": true, "confirmação": true,
}

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "that": true,
	"this": true, "field": true, "input": true, "box": true, "into": true,
	"your": true, "campo": true, "seu": true, "sua": true, "para": true,
}

// Resolve implements Resolver.
func (k *Keyword) Resolve(ctx context.Context, req Request) (Result, error) {
	k.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if req.Page == nil {
		return Result{}, ErrNoMatch
	}

	words := tokenize(req.Description)
	last := false
	for _, w := range words {
		if preferLast[w] {
			last = true
		}
	}

	best, bestScore := -1, 0
	for i, c := range req.Page.Controls {
		hay := strings.Join(tokenize(strings.Join([]string{
			c.Type, c.Role, c.Label, c.Text, c.Placeholder, c.Name, c.ID,
		}, " ")), " ")
		score := 0
		for _, w := range words {
			if strings.Contains(hay, w) {
				score++
			}
		}
		if score > bestScore || (score == bestScore && score > 0 && last) {
			best, bestScore = i, score
		}
	}
	if best < 0 {
		return Result{}, ErrNoMatch
	}
	return Result{Selector: req.Page.Controls[best].Selector, Reason: "keyword match"}, nil
}

func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) >= 3 && !stopwords[f] {
			out = append(out, f)
		}
	}
	return out
}

var _ Resolver = (*Keyword)(nil)
