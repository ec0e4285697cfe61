package scenario

import (
	"time"

	"github.com/v0xg/formprobe/internal/action"
)

// Status is the verdict class.
type Status string

const (
	StatusPass         Status = "pass"
	StatusFail         Status = "fail"
	StatusInconclusive Status = "inconclusive"
)

// Confidence grades a pass. A validation-error pass resting only on the
// field value being unchanged is low confidence.
type Confidence string

const (
	ConfidenceHigh Confidence = "high"
	ConfidenceLow  Confidence = "low"
)

// Cause classifies why a verdict is not a plain evidence-based one.
type Cause string

const (
	CauseEvidence        Cause = "evidence"
	CauseNotFound        Cause = "not_found"
	CauseNotInteractable Cause = "not_interactable"
	CauseUnknownField    Cause = "unknown_field"
	CauseTimeout         Cause = "timeout"
	CauseBrowser         Cause = "browser"
	CauseInvalid         Cause = "invalid"
)

// Verdict is the result of running one scenario.
type Verdict struct {
	Scenario   string         `json:"scenario"`
	Status     Status         `json:"status"`
	Reason     string         `json:"reason,omitempty"`
	Confidence Confidence     `json:"confidence,omitempty"`
	Cause      Cause          `json:"cause"`
	Entries    []action.Entry `json:"actions"`
	Duration   time.Duration  `json:"durationNs"`
	// Attempts counts scenario-level runs, retries included.
	Attempts int `json:"attempts"`
	// Artifact is the path of the diagnostic recording, if one was written.
	Artifact string `json:"artifact,omitempty"`
}

// Passed reports whether the verdict is a pass.
func (v Verdict) Passed() bool { return v.Status == StatusPass }

func pass(c Confidence, reason string) Verdict {
	return Verdict{Status: StatusPass, Confidence: c, Cause: CauseEvidence, Reason: reason}
}

func fail(cause Cause, reason string) Verdict {
	return Verdict{Status: StatusFail, Confidence: ConfidenceHigh, Cause: cause, Reason: reason}
}

func inconclusive(cause Cause, reason string) Verdict {
	return Verdict{Status: StatusInconclusive, Cause: cause, Reason: reason}
}
