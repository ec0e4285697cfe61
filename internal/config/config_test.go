package config

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "rod", cfg.Browser.Driver)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, "https://app.rocketseat.com.br/signup?to=%2F", cfg.Form.URL)
	assert.Equal(t, "signup", cfg.Form.LocationPattern)
	assert.Equal(t, "none", cfg.Resolution.Provider)
	assert.Equal(t, 20*time.Second, cfg.Resolution.RequestTimeout)
	assert.Equal(t, 5*time.Second, cfg.Actions.ActionabilityTimeout)
	assert.Equal(t, 10, cfg.Evaluation.PollAttempts)
	assert.Equal(t, 300*time.Millisecond, cfg.Evaluation.PollInterval)
	assert.Equal(t, 1, cfg.Suite.RetryNotFound)
	assert.Equal(t, uint(960), cfg.Recording.MaxWidth)
	assert.NoError(t, cfg.Validate())
}

func TestConfigFileAndEnvOverrides(t *testing.T) {
	t.Setenv("FORMPROBE_SUITE_CONCURRENCY", "6")
	t.Setenv("FORMPROBE_RESOLUTION_PROVIDER", "Gemini")

	v := New()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(bytes.NewBufferString(`
browser:
  driver: chromedp
  headless: false
evaluation:
  poll_attempts: 4
  poll_interval: 1s
suite:
  concurrency: 3
recording:
  enabled: true
  on: all
`)))

	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)
	assert.Equal(t, "chromedp", cfg.Browser.Driver)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, 4, cfg.Evaluation.PollAttempts)
	assert.Equal(t, time.Second, cfg.Evaluation.PollInterval)
	assert.Equal(t, 6, cfg.Suite.Concurrency, "environment beats the file")
	assert.Equal(t, "gemini", cfg.Resolution.Provider)
	assert.True(t, cfg.Recording.Enabled)
	assert.Equal(t, "all", cfg.Recording.On)
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"driver", func(c *Config) { c.Browser.Driver = "webkit" }, "browser.driver"},
		{"viewport", func(c *Config) { c.Browser.Width = 0 }, "browser.width"},
		{"form url", func(c *Config) { c.Form.URL = "" }, "form.url"},
		{"pattern", func(c *Config) { c.Form.LocationPattern = "(" }, "form.location_pattern"},
		{"provider", func(c *Config) { c.Resolution.Provider = "llama" }, "resolution.provider"},
		{"actionability", func(c *Config) { c.Actions.ActionabilityTimeout = 0 }, "actions.actionability_timeout"},
		{"attempts", func(c *Config) { c.Evaluation.PollAttempts = 0 }, "evaluation.poll_attempts"},
		{"concurrency", func(c *Config) { c.Suite.Concurrency = -1 }, "suite.concurrency"},
		{"retry", func(c *Config) { c.Suite.RetryNotFound = -1 }, "suite.retry_not_found"},
		{"recording mode", func(c *Config) { c.Recording.Enabled = true; c.Recording.On = "sometimes" }, "recording.on"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidationReportsEveryProblem(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Browser.Driver = "webkit"
	cfg.Suite.Concurrency = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "browser.driver")
	assert.Contains(t, err.Error(), "suite.concurrency")
}

func TestPathsExpandHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	homedir.DisableCache = true
	t.Cleanup(func() { homedir.DisableCache = false })

	v := New()
	v.Set("recording.dir", "~/formprobe/recordings")
	v.Set("suite.report_file", "report.json")

	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "formprobe", "recordings"), cfg.Recording.Dir)
	assert.Equal(t, "report.json", cfg.Suite.ReportFile)
}
