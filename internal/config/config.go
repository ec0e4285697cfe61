// Package config loads formprobe's configuration from defaults, an optional
// YAML file, FORMPROBE_ environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. FORMPROBE_SUITE_CONCURRENCY.
const EnvPrefix = "FORMPROBE"

// Config is the whole configuration.
type Config struct {
	Logger     LoggerConfig     `mapstructure:"logger" yaml:"logger"`
	Browser    BrowserConfig    `mapstructure:"browser" yaml:"browser"`
	Form       FormConfig       `mapstructure:"form" yaml:"form"`
	Resolution ResolutionConfig `mapstructure:"resolution" yaml:"resolution"`
	Actions    ActionsConfig    `mapstructure:"actions" yaml:"actions"`
	Evaluation EvaluationConfig `mapstructure:"evaluation" yaml:"evaluation"`
	Suite      SuiteConfig      `mapstructure:"suite" yaml:"suite"`
	Recording  RecordingConfig  `mapstructure:"recording" yaml:"recording"`
}

// LoggerConfig configures the zap logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig names the console colour of each level.
type ColorConfig struct {
	Debug string `mapstructure:"debug" yaml:"debug"`
	Info  string `mapstructure:"info" yaml:"info"`
	Warn  string `mapstructure:"warn" yaml:"warn"`
	Error string `mapstructure:"error" yaml:"error"`
}

// BrowserConfig selects and configures the browser driver.
type BrowserConfig struct {
	Driver     string `mapstructure:"driver" yaml:"driver"`
	Headless   bool   `mapstructure:"headless" yaml:"headless"`
	Width      int    `mapstructure:"width" yaml:"width"`
	Height     int    `mapstructure:"height" yaml:"height"`
	ProfileDir string `mapstructure:"profile_dir" yaml:"profile_dir"`
	NoSandbox  bool   `mapstructure:"no_sandbox" yaml:"no_sandbox"`
}

// FormConfig locates the form under test.
type FormConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
	// LocationPattern is a regular expression every location of the form
	// page matches.
	LocationPattern string `mapstructure:"location_pattern" yaml:"location_pattern"`
}

// ResolutionConfig configures the semantic fallback.
type ResolutionConfig struct {
	Provider          string        `mapstructure:"provider" yaml:"provider"`
	Model             string        `mapstructure:"model" yaml:"model"`
	BaseURL           string        `mapstructure:"base_url" yaml:"base_url"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	MaxRetries        int           `mapstructure:"max_retries" yaml:"max_retries"`
}

// ActionsConfig configures the action facade.
type ActionsConfig struct {
	ActionabilityTimeout time.Duration `mapstructure:"actionability_timeout" yaml:"actionability_timeout"`
}

// EvaluationConfig bounds outcome polling.
type EvaluationConfig struct {
	PollAttempts int           `mapstructure:"poll_attempts" yaml:"poll_attempts"`
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	Settle       time.Duration `mapstructure:"settle" yaml:"settle"`
}

// SuiteConfig configures suite execution.
type SuiteConfig struct {
	Concurrency     int           `mapstructure:"concurrency" yaml:"concurrency"`
	ScenarioTimeout time.Duration `mapstructure:"scenario_timeout" yaml:"scenario_timeout"`
	RetryNotFound   int           `mapstructure:"retry_not_found" yaml:"retry_not_found"`
	RetryDelay      time.Duration `mapstructure:"retry_delay" yaml:"retry_delay"`
	ScenariosFile   string        `mapstructure:"scenarios_file" yaml:"scenarios_file"`
	LocatorsFile    string        `mapstructure:"locators_file" yaml:"locators_file"`
	ReportFile      string        `mapstructure:"report_file" yaml:"report_file"`
}

// RecordingConfig configures diagnostic GIF recordings.
type RecordingConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Dir      string `mapstructure:"dir" yaml:"dir"`
	MaxWidth uint   `mapstructure:"max_width" yaml:"max_width"`
	// On is "failures" or "all".
	On         string        `mapstructure:"on" yaml:"on"`
	FrameDelay time.Duration `mapstructure:"frame_delay" yaml:"frame_delay"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "formprobe")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")

	v.SetDefault("browser.driver", "rod")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.width", 1280)
	v.SetDefault("browser.height", 800)
	v.SetDefault("browser.profile_dir", "")
	v.SetDefault("browser.no_sandbox", false)

	v.SetDefault("form.url", "https://app.rocketseat.com.br/signup?to=%2F")
	v.SetDefault("form.location_pattern", "signup")

	v.SetDefault("resolution.provider", "none")
	v.SetDefault("resolution.model", "")
	v.SetDefault("resolution.base_url", "")
	v.SetDefault("resolution.requests_per_minute", 30)
	v.SetDefault("resolution.request_timeout", "20s")
	v.SetDefault("resolution.max_retries", 2)

	v.SetDefault("actions.actionability_timeout", "5s")

	v.SetDefault("evaluation.poll_attempts", 10)
	v.SetDefault("evaluation.poll_interval", "300ms")
	v.SetDefault("evaluation.settle", "200ms")

	v.SetDefault("suite.concurrency", 2)
	v.SetDefault("suite.scenario_timeout", "60s")
	v.SetDefault("suite.retry_not_found", 1)
	v.SetDefault("suite.retry_delay", "1s")
	v.SetDefault("suite.scenarios_file", "")
	v.SetDefault("suite.locators_file", "")
	v.SetDefault("suite.report_file", "")

	v.SetDefault("recording.enabled", false)
	v.SetDefault("recording.dir", "recordings")
	v.SetDefault("recording.max_width", 960)
	v.SetDefault("recording.on", "failures")
	v.SetDefault("recording.frame_delay", "800ms")
}

// New returns a viper instance with defaults and environment overrides
// wired, ready for a config file and flag bindings.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// NewDefaultConfig returns the defaults alone.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// NewConfigFromViper decodes and validates v.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	cfg.Browser.Driver = strings.ToLower(strings.TrimSpace(cfg.Browser.Driver))
	cfg.Resolution.Provider = strings.ToLower(strings.TrimSpace(cfg.Resolution.Provider))
	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// expandPaths resolves a leading ~ in every path setting.
func (c *Config) expandPaths() error {
	for _, p := range []*string{
		&c.Logger.LogFile,
		&c.Browser.ProfileDir,
		&c.Suite.ScenariosFile,
		&c.Suite.LocatorsFile,
		&c.Suite.ReportFile,
		&c.Recording.Dir,
	} {
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("expand path %q: %w", *p, err)
		}
		*p = expanded
	}
	return nil
}

// Validate checks for required fields and sane values.
func (c *Config) Validate() error {
	var errs []error
	switch c.Browser.Driver {
	case "rod", "chromedp":
	default:
		errs = append(errs, fmt.Errorf("browser.driver must be rod or chromedp, got %q", c.Browser.Driver))
	}
	if c.Browser.Width <= 0 || c.Browser.Height <= 0 {
		errs = append(errs, errors.New("browser.width and browser.height must be positive"))
	}
	if c.Form.URL == "" {
		errs = append(errs, errors.New("form.url is required"))
	}
	if c.Form.LocationPattern != "" {
		if _, err := regexp.Compile(c.Form.LocationPattern); err != nil {
			errs = append(errs, fmt.Errorf("form.location_pattern: %w", err))
		}
	}
	switch c.Resolution.Provider {
	case "", "none", "keyword", "offline", "claude", "anthropic", "openai", "gpt", "gemini", "google":
	default:
		errs = append(errs, fmt.Errorf("resolution.provider %q is not supported", c.Resolution.Provider))
	}
	if c.Resolution.RequestsPerMinute < 0 {
		errs = append(errs, errors.New("resolution.requests_per_minute must not be negative"))
	}
	if c.Resolution.MaxRetries < 0 {
		errs = append(errs, errors.New("resolution.max_retries must not be negative"))
	}
	if c.Actions.ActionabilityTimeout <= 0 {
		errs = append(errs, errors.New("actions.actionability_timeout must be a positive duration"))
	}
	if c.Evaluation.PollAttempts <= 0 {
		errs = append(errs, errors.New("evaluation.poll_attempts must be a positive integer"))
	}
	if c.Evaluation.PollInterval < 0 || c.Evaluation.Settle < 0 {
		errs = append(errs, errors.New("evaluation durations must not be negative"))
	}
	if c.Suite.Concurrency <= 0 {
		errs = append(errs, errors.New("suite.concurrency must be a positive integer"))
	}
	if c.Suite.RetryNotFound < 0 {
		errs = append(errs, errors.New("suite.retry_not_found must not be negative"))
	}
	if c.Recording.Enabled {
		switch c.Recording.On {
		case "failures", "all":
		default:
			errs = append(errs, fmt.Errorf("recording.on must be failures or all, got %q", c.Recording.On))
		}
		if c.Recording.Dir == "" {
			errs = append(errs, errors.New("recording.dir is required when recording is enabled"))
		}
	}
	return errors.Join(errs...)
}
