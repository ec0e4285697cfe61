package suite

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/v0xg/formprobe/internal/scenario"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Summary counts verdicts by status.
type Summary struct {
	Total         int `json:"total"`
	Passed        int `json:"passed"`
	Failed        int `json:"failed"`
	Inconclusive  int `json:"inconclusive"`
	Skipped       int `json:"skipped"`
	LowConfidence int `json:"lowConfidence"`
}

// Report is the outcome of one suite run.
type Report struct {
	RunID     string             `json:"runId"`
	StartedAt time.Time          `json:"startedAt"`
	Duration  time.Duration      `json:"durationNs"`
	Summary   Summary            `json:"summary"`
	Verdicts  []scenario.Verdict `json:"verdicts"`
	Skipped   []string           `json:"skipped,omitempty"`
	Aborted   string             `json:"aborted,omitempty"`
}

// OK reports whether every scenario ran and passed.
func (r *Report) OK() bool {
	return r.Aborted == "" && len(r.Skipped) == 0 && r.Summary.Passed == r.Summary.Total
}

func summarize(verdicts []scenario.Verdict, skipped int) Summary {
	s := Summary{Total: len(verdicts) + skipped, Skipped: skipped}
	for _, v := range verdicts {
		switch v.Status {
		case scenario.StatusPass:
			s.Passed++
			if v.Confidence == scenario.ConfidenceLow {
				s.LowConfidence++
			}
		case scenario.StatusFail:
			s.Failed++
		default:
			s.Inconclusive++
		}
	}
	return s
}

// WriteText writes a human summary, one line per scenario.
func (r *Report) WriteText(w io.Writer) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Run %s\n\n", r.RunID)
	for _, v := range r.Verdicts {
		fmt.Fprintf(&b, "%-12s %s\n", statusLabel(v), v.Scenario)
		if v.Reason != "" {
			fmt.Fprintf(&b, "             %s\n", v.Reason)
		}
		if v.Status != scenario.StatusPass {
			fmt.Fprintf(&b, "             cause: %s, attempts: %d\n", v.Cause, v.Attempts)
		}
		if v.Artifact != "" {
			fmt.Fprintf(&b, "             recording: %s\n", v.Artifact)
		}
	}
	for _, name := range r.Skipped {
		fmt.Fprintf(&b, "%-12s %s\n", "SKIPPED", name)
	}
	if r.Aborted != "" {
		fmt.Fprintf(&b, "\n%s\n", r.Aborted)
	}
	s := r.Summary
	fmt.Fprintf(&b, "\n%d scenarios: %d passed (%d low confidence), %d failed, %d inconclusive, %d skipped in %s\n",
		s.Total, s.Passed, s.LowConfidence, s.Failed, s.Inconclusive, s.Skipped, r.Duration.Round(time.Millisecond))

	_, err := io.WriteString(w, b.String())
	return err
}

func statusLabel(v scenario.Verdict) string {
	switch {
	case v.Status == scenario.StatusPass && v.Confidence == scenario.ConfidenceLow:
		return "PASS (low)"
	case v.Status == scenario.StatusPass:
		return "PASS"
	case v.Status == scenario.StatusFail:
		return "FAIL"
	}
	return "INCONCLUSIVE"
}

// WriteJSON writes the report as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

// WriteJSONFile writes the JSON report to path.
func (r *Report) WriteJSONFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	if err := r.WriteJSON(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
