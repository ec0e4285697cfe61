package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/v0xg/formprobe/internal/browser"
	"github.com/v0xg/formprobe/internal/browser/cdppage"
	"github.com/v0xg/formprobe/internal/browser/rodpage"
	"github.com/v0xg/formprobe/internal/config"
	"github.com/v0xg/formprobe/internal/locator"
	"github.com/v0xg/formprobe/internal/observability"
	"github.com/v0xg/formprobe/internal/scenario"
	"github.com/v0xg/formprobe/internal/semantic"
	"github.com/v0xg/formprobe/internal/signup"
)

var (
	configFile string
	v          = config.New()
)

func main() {
	// Load .env file if present (API keys live there)
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "formprobe",
		Short: "Acceptance-test a web sign-up form",
		Long: `formprobe drives a real browser through validation scenarios against a
sign-up form. Fields are found by stable locators first and by an LLM only
as a last resort, and every scenario ends in a pass, fail or inconclusive
verdict backed by evidence.

Example:
  formprobe run --concurrency 3 --record
  formprobe resolve --provider claude`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if configFile != "" {
				v.SetConfigFile(configFile)
				if err := v.ReadInConfig(); err != nil {
					return fmt.Errorf("read config: %w", err)
				}
			}
			return nil
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "Config file (YAML)")
	pf.String("log-level", "info", "Log level: debug, info, warn, error")
	pf.String("log-file", "", "Also write JSON logs to this file")
	pf.String("driver", "rod", "Browser driver: rod, chromedp")
	pf.Bool("headless", true, "Run the browser headless")
	pf.String("profile", "", "Chrome/Chromium profile directory (close the browser first)")
	pf.String("url", "", "Form URL (default: the built-in sign-up form)")
	pf.String("provider", "none", "Semantic fallback: claude, openai, gemini, keyword, none")
	pf.String("model", "", "Model override for the semantic provider")
	pf.String("locators", "", "Locator registry file (YAML) replacing the built-in one")
	pf.String("scenarios", "", "Scenario file (YAML) replacing the built-in scenarios")
	// flags override config only when set; unset flags fall back to the
	// config defaults
	_ = v.BindPFlag("logger.level", pf.Lookup("log-level"))
	_ = v.BindPFlag("logger.log_file", pf.Lookup("log-file"))
	_ = v.BindPFlag("browser.driver", pf.Lookup("driver"))
	_ = v.BindPFlag("browser.headless", pf.Lookup("headless"))
	_ = v.BindPFlag("browser.profile_dir", pf.Lookup("profile"))
	_ = v.BindPFlag("form.url", pf.Lookup("url"))
	_ = v.BindPFlag("resolution.provider", pf.Lookup("provider"))
	_ = v.BindPFlag("resolution.model", pf.Lookup("model"))
	_ = v.BindPFlag("suite.locators_file", pf.Lookup("locators"))
	_ = v.BindPFlag("suite.scenarios_file", pf.Lookup("scenarios"))

	rootCmd.AddCommand(newRunCmd(), newListCmd(), newResolveCmd())

	err := rootCmd.Execute()
	observability.Sync()
	if err != nil {
		os.Exit(1)
	}
}

// app is what every command needs: configuration, a logger and the
// registry for the form under test.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	registry *locator.Registry
}

func setup() (*app, error) {
	cfg, err := config.NewConfigFromViper(v)
	if err != nil {
		return nil, err
	}
	observability.InitializeLogger(cfg.Logger)
	logger := observability.GetLogger()

	registry, err := loadRegistry(cfg.Suite.LocatorsFile)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, logger: logger, registry: registry}, nil
}

func loadRegistry(path string) (*locator.Registry, error) {
	if path == "" {
		return signup.Registry()
	}
	reg, err := locator.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load locators: %w", err)
	}
	return reg, nil
}

func (a *app) resolver() (semantic.Resolver, error) {
	r := a.cfg.Resolution
	return semantic.New(semantic.Options{
		Provider:          r.Provider,
		Model:             r.Model,
		BaseURL:           r.BaseURL,
		RequestsPerMinute: r.RequestsPerMinute,
		RequestTimeout:    r.RequestTimeout,
		MaxRetries:        uint64(r.MaxRetries),
	}, a.logger)
}

func (a *app) openBrowser() (browser.Opener, error) {
	b := a.cfg.Browser
	a.logger.Info("Launching browser", zap.String("driver", b.Driver), zap.Bool("headless", b.Headless))
	switch b.Driver {
	case "chromedp":
		br, err := cdppage.Launch(cdppage.Options{Width: b.Width, Height: b.Height, Headless: b.Headless, NoSandbox: b.NoSandbox, ProfileDir: b.ProfileDir})
		if err != nil {
			return nil, fmt.Errorf("launch chromedp: %w", err)
		}
		return br, nil
	case "rod":
		br, err := rodpage.Launch(rodpage.Options{Width: b.Width, Height: b.Height, Headless: b.Headless, NoSandbox: b.NoSandbox, ProfileDir: b.ProfileDir})
		if err != nil {
			return nil, fmt.Errorf("launch rod: %w", err)
		}
		return br, nil
	}
	return nil, fmt.Errorf("unknown browser driver %q", b.Driver)
}

func (a *app) formOptions() (string, string) {
	url, pattern := a.cfg.Form.URL, a.cfg.Form.LocationPattern
	if url == "" {
		url = signup.FormURL
	}
	return url, pattern
}

func (a *app) scenarios() ([]scenario.Scenario, error) {
	if path := a.cfg.Suite.ScenariosFile; path != "" {
		scs, err := scenario.LoadFile(path)
		if err != nil {
			return nil, fmt.Errorf("load scenarios: %w", err)
		}
		return scs, nil
	}
	return signup.Scenarios(), nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

var errNotAllPassed = errors.New("not every scenario passed")
