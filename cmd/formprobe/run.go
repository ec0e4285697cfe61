package main

import (
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/v0xg/formprobe/internal/recording"
	"github.com/v0xg/formprobe/internal/scenario"
	"github.com/v0xg/formprobe/internal/suite"
)

var only []string

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the validation scenarios and print a report",
		Args:  cobra.NoArgs,
		RunE:  runSuite,
	}
	f := cmd.Flags()
	f.Int("concurrency", 2, "Scenarios running at once")
	f.Duration("scenario-timeout", 0, "Deadline for each scenario attempt")
	f.Int("retry-not-found", 1, "Extra attempts for scenarios failing on a missing element")
	f.String("report", "", "Write a JSON report to this file")
	f.Bool("record", false, "Write GIF recordings of failing scenarios")
	f.String("record-dir", "", "Directory for recordings")
	f.StringSliceVar(&only, "only", nil, "Run only these scenario ids")
	_ = v.BindPFlag("suite.concurrency", f.Lookup("concurrency"))
	_ = v.BindPFlag("suite.scenario_timeout", f.Lookup("scenario-timeout"))
	_ = v.BindPFlag("suite.retry_not_found", f.Lookup("retry-not-found"))
	_ = v.BindPFlag("suite.report_file", f.Lookup("report"))
	_ = v.BindPFlag("recording.enabled", f.Lookup("record"))
	_ = v.BindPFlag("recording.dir", f.Lookup("record-dir"))
	return cmd
}

func runSuite(cmd *cobra.Command, _ []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	scenarios, err := a.scenarios()
	if err != nil {
		return err
	}
	if len(only) > 0 {
		scenarios = slices.DeleteFunc(scenarios, func(sc scenario.Scenario) bool {
			return !slices.Contains(only, sc.ID)
		})
		if len(scenarios) == 0 {
			return fmt.Errorf("no scenario matches %v", only)
		}
	}

	resolver, err := a.resolver()
	if err != nil {
		return fmt.Errorf("semantic resolver: %w", err)
	}

	ctx, stop := signalContext()
	defer stop()

	opener, err := a.openBrowser()
	if err != nil {
		return err
	}
	defer func() {
		if err := opener.Close(); err != nil {
			a.logger.Warn("Failed to close browser", zap.Error(err))
		}
	}()

	formURL, pattern := a.formOptions()
	opts := scenario.Options{
		FormURL:              formURL,
		FormPattern:          pattern,
		ActionabilityTimeout: a.cfg.Actions.ActionabilityTimeout,
		Policy: scenario.Policy{
			Attempts: a.cfg.Evaluation.PollAttempts,
			Interval: a.cfg.Evaluation.PollInterval,
			Settle:   a.cfg.Evaluation.Settle,
		},
	}
	if rc := a.cfg.Recording; rc.Enabled {
		opts.Recorder = recording.New(recording.Options{
			Dir:        rc.Dir,
			MaxWidth:   rc.MaxWidth,
			Mode:       recording.Mode(rc.On),
			FrameDelay: rc.FrameDelay,
		}, a.logger)
	}

	runner, err := scenario.NewRunner(opener, a.registry, resolver, opts, a.logger)
	if err != nil {
		return err
	}
	s := suite.New(runner, suite.Options{
		Concurrency:     a.cfg.Suite.Concurrency,
		ScenarioTimeout: a.cfg.Suite.ScenarioTimeout,
		RetryNotFound:   a.cfg.Suite.RetryNotFound,
		RetryDelay:      a.cfg.Suite.RetryDelay,
	}, a.logger)

	report, runErr := s.Run(ctx, scenarios)
	if err := report.WriteText(cmd.OutOrStdout()); err != nil {
		return err
	}
	if path := a.cfg.Suite.ReportFile; path != "" {
		if err := report.WriteJSONFile(path); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Report written to %s\n", path)
	}
	if runErr != nil {
		return runErr
	}
	if !report.OK() {
		return errNotAllPassed
	}
	return nil
}
