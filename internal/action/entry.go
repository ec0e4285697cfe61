package action

import (
	"time"

	"github.com/v0xg/formprobe/internal/field"
	"github.com/v0xg/formprobe/internal/locator"
	"github.com/v0xg/formprobe/internal/resolve"
)

// Kind names an action.
type Kind string

const (
	ActionSetValue Kind = "set_value"
	ActionSubmit   Kind = "submit"
)

// Entry is the record of one action. The same data is logged and carried
// on the scenario verdict.
type Entry struct {
	Action       Kind         `json:"action"`
	Field        field.Field  `json:"fieldId"`
	StrategyKind locator.Kind `json:"strategyKind,omitempty"`
	Strategy     string       `json:"strategy,omitempty"`
	Success      bool         `json:"success"`
	// LatencyMs is the resolution latency.
	LatencyMs int64         `json:"latencyMs"`
	Cached    bool          `json:"cached"`
	Forced    bool          `json:"forced,omitempty"`
	PageID    string        `json:"pageId,omitempty"`
	Error     string        `json:"error,omitempty"`
	At        time.Time     `json:"at"`
	Duration  time.Duration `json:"durationNs"`
}

func newEntry(kind Kind, f field.Field) Entry {
	return Entry{Action: kind, Field: f, At: time.Now()}
}

// unresolved records a failed resolution: the time spent before it gave up
// and the last strategy kind it tried.
func (e *Entry) unresolved(err error) {
	e.StrategyKind = resolve.AttemptedKind(err)
	e.LatencyMs = time.Since(e.At).Milliseconds()
}

func (e *Entry) resolved(res *resolve.ResolvedElement) {
	e.StrategyKind = res.Strategy.Kind
	e.Strategy = res.Strategy.String()
	e.LatencyMs = res.Latency.Milliseconds()
	e.Cached = res.Cached
	e.PageID = res.PageID
}
