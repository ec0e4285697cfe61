package semantic

import (
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type answer struct {
	Selector *string `json:"selector"`
	Reason   string  `json:"reason"`
}

// parseSelectorJSON extracts and parses the JSON object from a response
// that may contain surrounding text or a markdown fence.
func parseSelectorJSON(response string) (Result, error) {
	var a answer
	if err := json.Unmarshal([]byte(strings.TrimSpace(response)), &a); err == nil {
		return a.result()
	}

	start := strings.Index(response, "{")
	if start == -1 {
		return Result{}, fmt.Errorf("no JSON object found in response")
	}

	// find the matching closing brace, skipping braces inside strings
	depth := 0
	end := -1
	inString, escaped := false, false
	for i := start; i < len(response) && end == -1; i++ {
		ch := response[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				end = i + 1
			}
		}
	}
	if end == -1 {
		return Result{}, fmt.Errorf("no matching closing brace found")
	}

	a = answer{}
	if err := json.Unmarshal([]byte(response[start:end]), &a); err != nil {
		return Result{}, fmt.Errorf("failed to parse extracted JSON: %w", err)
	}
	return a.result()
}

func (a answer) result() (Result, error) {
	if a.Selector == nil {
		return Result{}, fmt.Errorf("response has no selector member")
	}
	return Result{Selector: strings.TrimSpace(*a.Selector), Reason: a.Reason}, nil
}
