package suite

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/v0xg/formprobe/internal/browser/browsertest"
	"github.com/v0xg/formprobe/internal/scenario"
	"github.com/v0xg/formprobe/internal/signup"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// scriptedRunner returns verdicts from fn and tracks concurrency.
type scriptedRunner struct {
	fn      func(ctx context.Context, sc scenario.Scenario, call int) scenario.Verdict
	mu      sync.Mutex
	calls   map[string]int
	running atomic.Int32
	peak    atomic.Int32
}

func (r *scriptedRunner) Run(ctx context.Context, sc scenario.Scenario) scenario.Verdict {
	n := r.running.Add(1)
	defer r.running.Add(-1)
	for {
		p := r.peak.Load()
		if n <= p || r.peak.CompareAndSwap(p, n) {
			break
		}
	}

	r.mu.Lock()
	if r.calls == nil {
		r.calls = map[string]int{}
	}
	r.calls[sc.ID]++
	call := r.calls[sc.ID]
	r.mu.Unlock()

	v := r.fn(ctx, sc, call)
	v.Scenario = sc.Title()
	return v
}

func (r *scriptedRunner) callsFor(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[id]
}

func scenarios(ids ...string) []scenario.Scenario {
	out := make([]scenario.Scenario, len(ids))
	for i, id := range ids {
		out[i] = scenario.Scenario{ID: id, Expect: scenario.NoNavigation()}
	}
	return out
}

func passing() scenario.Verdict {
	return scenario.Verdict{Status: scenario.StatusPass, Confidence: scenario.ConfidenceHigh, Cause: scenario.CauseEvidence}
}

func TestRunKeepsScenarioOrder(t *testing.T) {
	r := &scriptedRunner{fn: func(_ context.Context, sc scenario.Scenario, _ int) scenario.Verdict {
		if sc.ID == "A" {
			time.Sleep(20 * time.Millisecond)
		}
		return passing()
	}}
	s := New(r, Options{Concurrency: 3}, zaptest.NewLogger(t))

	report, err := s.Run(context.Background(), scenarios("A", "B", "C"))
	require.NoError(t, err)
	require.Len(t, report.Verdicts, 3)
	for i, id := range []string{"A", "B", "C"} {
		assert.Equal(t, id, report.Verdicts[i].Scenario)
		assert.Equal(t, 1, report.Verdicts[i].Attempts)
	}
	assert.True(t, report.OK())
	assert.NotEmpty(t, report.RunID)
}

func TestRunHonoursConcurrency(t *testing.T) {
	r := &scriptedRunner{fn: func(_ context.Context, sc scenario.Scenario, _ int) scenario.Verdict {
		time.Sleep(10 * time.Millisecond)
		return passing()
	}}
	s := New(r, Options{Concurrency: 2}, nil)

	_, err := s.Run(context.Background(), scenarios("A", "B", "C", "D", "E", "F"))
	require.NoError(t, err)
	assert.LessOrEqual(t, r.peak.Load(), int32(2))
}

func TestRunRetriesNotFound(t *testing.T) {
	r := &scriptedRunner{fn: func(_ context.Context, sc scenario.Scenario, call int) scenario.Verdict {
		if sc.ID == "flaky" && call < 3 {
			return scenario.Verdict{Status: scenario.StatusFail, Cause: scenario.CauseNotFound, Reason: "no submit"}
		}
		if sc.ID == "broken" {
			return scenario.Verdict{Status: scenario.StatusFail, Cause: scenario.CauseNotFound}
		}
		if sc.ID == "wrong" {
			return scenario.Verdict{Status: scenario.StatusFail, Cause: scenario.CauseEvidence}
		}
		return passing()
	}}
	s := New(r, Options{Concurrency: 1, RetryNotFound: 2}, zaptest.NewLogger(t))

	report, err := s.Run(context.Background(), scenarios("flaky", "broken", "wrong"))
	require.NoError(t, err)

	assert.Equal(t, scenario.StatusPass, report.Verdicts[0].Status)
	assert.Equal(t, 3, report.Verdicts[0].Attempts)
	assert.Equal(t, scenario.CauseNotFound, report.Verdicts[1].Cause)
	assert.Equal(t, 3, report.Verdicts[1].Attempts)
	assert.Equal(t, 1, r.callsFor("wrong"))
	assert.Equal(t, Summary{Total: 3, Passed: 1, Failed: 2}, report.Summary)
	assert.False(t, report.OK())
}

func TestRunAppliesScenarioTimeout(t *testing.T) {
	r := &scriptedRunner{fn: func(ctx context.Context, sc scenario.Scenario, _ int) scenario.Verdict {
		<-ctx.Done()
		return scenario.Verdict{Status: scenario.StatusInconclusive, Cause: scenario.CauseTimeout}
	}}
	s := New(r, Options{Concurrency: 2, ScenarioTimeout: 20 * time.Millisecond}, nil)

	report, err := s.Run(context.Background(), scenarios("A", "B"))
	require.NoError(t, err)
	assert.Equal(t, 2, report.Summary.Inconclusive)
}

func TestRunAbortsOnUnknownField(t *testing.T) {
	r := &scriptedRunner{fn: func(ctx context.Context, sc scenario.Scenario, _ int) scenario.Verdict {
		if sc.ID == "B" {
			return scenario.Verdict{Status: scenario.StatusInconclusive, Cause: scenario.CauseUnknownField, Reason: "no locator strategies registered for field \"email\""}
		}
		return passing()
	}}
	s := New(r, Options{Concurrency: 1}, zaptest.NewLogger(t))

	report, err := s.Run(context.Background(), scenarios("A", "B", "C", "D"))
	var abort *AbortError
	require.ErrorAs(t, err, &abort)
	assert.Equal(t, "B", abort.Scenario)
	assert.Equal(t, []string{"C", "D"}, report.Skipped)
	assert.Len(t, report.Verdicts, 2)
	assert.NotEmpty(t, report.Aborted)
	assert.False(t, report.OK())
}

func TestRunReportsParentCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := &scriptedRunner{fn: func(_ context.Context, sc scenario.Scenario, _ int) scenario.Verdict {
		cancel()
		return passing()
	}}
	s := New(r, Options{Concurrency: 1}, nil)

	report, err := s.Run(ctx, scenarios("A", "B"))
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, []string{"B"}, report.Skipped)
}

func TestRunBuiltInScenariosInParallel(t *testing.T) {
	reg, err := signup.Registry()
	require.NoError(t, err)
	opener := &browsertest.Opener{New: func() *browsertest.Page {
		return browsertest.NewSignupForm(browsertest.SignupOptions{
			Registered: []string{signup.ExistingEmail},
			Captcha:    true,
		})
	}}
	runner, err := scenario.NewRunner(opener, reg, nil, scenario.Options{
		FormURL:     signup.FormURL,
		FormPattern: signup.LocationPattern,
		Policy:      scenario.Policy{Attempts: 3, Interval: 5 * time.Millisecond},
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	s := New(runner, Options{Concurrency: 4, ScenarioTimeout: 5 * time.Second}, zaptest.NewLogger(t))
	report, err := s.Run(context.Background(), signup.Scenarios())
	require.NoError(t, err)
	assert.True(t, report.OK(), "%+v", report.Summary)
	assert.Len(t, opener.Pages(), len(signup.Scenarios()))
}

func TestReportWriters(t *testing.T) {
	report := &Report{
		RunID: "run-1",
		Verdicts: []scenario.Verdict{
			{Scenario: "TC001", Status: scenario.StatusPass, Confidence: scenario.ConfidenceLow, Cause: scenario.CauseEvidence, Attempts: 1},
			{Scenario: "TC002", Status: scenario.StatusFail, Cause: scenario.CauseNotFound, Reason: "no email", Attempts: 2, Artifact: "rec/TC002.gif"},
		},
		Skipped: []string{"TC003"},
	}
	report.Summary = summarize(report.Verdicts, len(report.Skipped))

	var text bytes.Buffer
	require.NoError(t, report.WriteText(&text))
	out := text.String()
	assert.Contains(t, out, "PASS (low)")
	assert.Contains(t, out, "FAIL")
	assert.Contains(t, out, "cause: not_found, attempts: 2")
	assert.Contains(t, out, "recording: rec/TC002.gif")
	assert.Contains(t, out, "SKIPPED")
	assert.Contains(t, out, "3 scenarios: 1 passed (1 low confidence), 1 failed, 0 inconclusive, 1 skipped")

	path := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, report.WriteJSONFile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "run-1", decoded["runId"])
	verdicts := decoded["verdicts"].([]any)
	assert.Equal(t, "not_found", verdicts[1].(map[string]any)["cause"])
}
