package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/v0xg/formprobe/internal/browser"
	"github.com/v0xg/formprobe/internal/field"
	"github.com/v0xg/formprobe/internal/resolve"
)

var reloadCheck bool

func newResolveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Open the form and show which strategy finds each field",
		Long: `resolve opens the form once and resolves every registered field, printing
the winning strategy and its latency. A field resolving through the semantic
fallback, or not at all, points at a locator that no longer matches the page.

With --reload the page is reloaded and every field resolved again, which
shows strategies that only win on a fresh document.`,
		Args: cobra.NoArgs,
		RunE: runResolve,
	}
	cmd.Flags().BoolVar(&reloadCheck, "reload", false, "Reload the page and resolve every field a second time")
	return cmd
}

func runResolve(cmd *cobra.Command, _ []string) error {
	a, err := setup()
	if err != nil {
		return err
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

	page, err := opener.Open(ctx)
	if err != nil {
		return fmt.Errorf("open page: %w", err)
	}
	defer page.Close()

	formURL, _ := a.formOptions()
	if err := page.Navigate(ctx, formURL); err != nil {
		return fmt.Errorf("navigate to form: %w", err)
	}

	engine := resolve.NewEngine(a.registry, resolver, a.logger)
	fields := a.registry.Fields()
	first, missing, err := resolveAll(ctx, engine, page, fields)
	if err != nil {
		return err
	}

	header := []string{"Field", "Fallback", "Kind", "Strategy", "Latency"}
	var second [][]string
	if reloadCheck {
		if err := page.Reload(ctx); err != nil {
			return fmt.Errorf("reload form: %w", err)
		}
		var missed int
		second, missed, err = resolveAll(ctx, engine, page, fields)
		if err != nil {
			return err
		}
		missing += missed
		header = append(header, "After reload")
	}

	table := newTable(cmd.OutOrStdout(), header...)
	for i, f := range fields {
		fallback := "-"
		if a.registry.HasSemantic(f) {
			fallback = "semantic"
		}
		row := append([]string{f.String(), fallback}, first[i]...)
		if reloadCheck {
			row = append(row, second[i][0])
		}
		table.Append(row)
	}
	table.Render()

	if missing > 0 {
		return fmt.Errorf("%d field resolution(s) failed", missing)
	}
	return nil
}

// resolveAll returns one row of kind, strategy and latency per field, in
// order, and the number of fields that could not be resolved.
func resolveAll(ctx context.Context, engine *resolve.Engine, page browser.Page, fields []field.Field) ([][]string, int, error) {
	rows := make([][]string, 0, len(fields))
	missing := 0
	for _, f := range fields {
		res, err := engine.Resolve(ctx, page, f)
		if err != nil {
			if ctx.Err() != nil {
				return nil, 0, ctx.Err()
			}
			missing++
			rows = append(rows, []string{"failed (last: " + string(resolve.AttemptedKind(err)) + ")", err.Error(), "-"})
			continue
		}
		rows = append(rows, []string{string(res.Strategy.Kind), res.Strategy.String(), res.Latency.Round(time.Millisecond).String()})
	}
	return rows, missing, nil
}
