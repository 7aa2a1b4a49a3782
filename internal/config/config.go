// File: internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger  LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Browser BrowserConfig  `mapstructure:"browser" yaml:"browser"`
	Form    FormConfig     `mapstructure:"form" yaml:"form"`
	Filler  FillerConfig   `mapstructure:"filler" yaml:"filler"`
	Run     RunConfig      `mapstructure:"run" yaml:"run"`
	LLM     LLMModelConfig `mapstructure:"llm" yaml:"llm"`
	Quota   QuotaConfig    `mapstructure:"quota" yaml:"quota"`
	Persona PersonaConfig  `mapstructure:"persona" yaml:"persona"`

	// LLMFallback is consulted when the primary model fails. Disabled when its provider is empty.
	LLMFallback LLMModelConfig `mapstructure:"llm_fallback" yaml:"llm_fallback"`
}

// LoggerConfig holds all the configuration for the logger.
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

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig holds settings for the automated browser.
// The capability profile is fixed per run: every attempt shares one process.
type BrowserConfig struct {
	Headless   bool           `mapstructure:"headless" yaml:"headless"`
	DisableGPU bool           `mapstructure:"disable_gpu" yaml:"disable_gpu"`
	ExecPath   string         `mapstructure:"exec_path" yaml:"exec_path"`
	UserAgent  string         `mapstructure:"user_agent" yaml:"user_agent"`
	Args       []string       `mapstructure:"args" yaml:"args"`
	Viewport   map[string]int `mapstructure:"viewport" yaml:"viewport"`
	// ActionTimeout bounds every individual browser call that has no tighter deadline.
	ActionTimeout time.Duration `mapstructure:"action_timeout" yaml:"action_timeout"`
}

// FormConfig tunes page readiness and extraction.
type FormConfig struct {
	WaitTimeout         time.Duration `mapstructure:"wait_timeout" yaml:"wait_timeout"`
	SettleDelay         time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`
	FillSettleDelay     time.Duration `mapstructure:"fill_settle_delay" yaml:"fill_settle_delay"`
	SnapshotDir         string        `mapstructure:"snapshot_dir" yaml:"snapshot_dir"`
	ConfirmationPhrases []string      `mapstructure:"confirmation_phrases" yaml:"confirmation_phrases"`
	AllowedURLs         []string      `mapstructure:"allowed_urls" yaml:"allowed_urls"`
}

// FillerConfig tunes answer injection and submission.
type FillerConfig struct {
	CharDelay      time.Duration `mapstructure:"char_delay" yaml:"char_delay"`
	ElementTimeout time.Duration `mapstructure:"element_timeout" yaml:"element_timeout"`
	SubmitWait     time.Duration `mapstructure:"submit_wait" yaml:"submit_wait"`
	ScrollSettle   time.Duration `mapstructure:"scroll_settle" yaml:"scroll_settle"`
	PostSubmitWait time.Duration `mapstructure:"post_submit_wait" yaml:"post_submit_wait"`
}

// RunConfig controls the sequential submission loop.
type RunConfig struct {
	MaxPerRun       int           `mapstructure:"max_per_run" yaml:"max_per_run"`
	SubmissionDelay time.Duration `mapstructure:"submission_delay" yaml:"submission_delay"`
	FailureBackoff  time.Duration `mapstructure:"failure_backoff" yaml:"failure_backoff"`
}

// LLMProvider defines the supported LLM providers.
type LLMProvider string

const (
	ProviderGemini LLMProvider = "gemini"
	ProviderOpenAI LLMProvider = "openai"
)

// LLMModelConfig defines the configuration for the answer model.
type LLMModelConfig struct {
	Provider      LLMProvider       `mapstructure:"provider" yaml:"provider"`
	Model         string            `mapstructure:"model" yaml:"model"`
	APIKey        string            `mapstructure:"api_key" yaml:"api_key"`
	Endpoint      string            `mapstructure:"endpoint" yaml:"endpoint"`
	APITimeout    time.Duration     `mapstructure:"api_timeout" yaml:"api_timeout"`
	Temperature   float32           `mapstructure:"temperature" yaml:"temperature"`
	TopP          float32           `mapstructure:"top_p" yaml:"top_p"`
	TopK          int               `mapstructure:"top_k" yaml:"top_k"`
	MaxTokens     int               `mapstructure:"max_tokens" yaml:"max_tokens"`
	SafetyFilters map[string]string `mapstructure:"safety_filters" yaml:"safety_filters"`
}

// QuotaBackend names a quota store implementation.
type QuotaBackend string

const (
	QuotaNone     QuotaBackend = "none"
	QuotaPostgres QuotaBackend = "postgres"
	QuotaRedis    QuotaBackend = "redis"
)

// QuotaConfig selects and tunes the per-caller daily allowance.
type QuotaConfig struct {
	Backend    QuotaBackend   `mapstructure:"backend" yaml:"backend"`
	DailyLimit int            `mapstructure:"daily_limit" yaml:"daily_limit"`
	MaxPerForm int            `mapstructure:"max_per_form" yaml:"max_per_form"`
	Postgres   PostgresConfig `mapstructure:"postgres" yaml:"postgres"`
	Redis      RedisConfig    `mapstructure:"redis" yaml:"redis"`
}

// PostgresConfig holds the connection details for a PostgreSQL database.
type PostgresConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// RedisConfig holds the connection details for a Redis server.
type RedisConfig struct {
	Addr     string `mapstructure:"addr" yaml:"addr"`
	Password string `mapstructure:"password" yaml:"password"`
	DB       int    `mapstructure:"db" yaml:"db"`
}

// PersonaConfig overrides the built-in demographic vocabularies. Empty lists
// keep the defaults.
type PersonaConfig struct {
	AgeGroups []string `mapstructure:"age_groups" yaml:"age_groups"`
	Genders   []string `mapstructure:"genders" yaml:"genders"`
	Countries []string `mapstructure:"countries" yaml:"countries"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "formpilot")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "magenta")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.disable_gpu", true)
	v.SetDefault("browser.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("browser.args", []string{"disable-blink-features=AutomationControlled"})
	v.SetDefault("browser.viewport", map[string]int{"width": 1920, "height": 1080})
	v.SetDefault("browser.action_timeout", "15s")

	// -- Form --
	v.SetDefault("form.wait_timeout", "20s")
	v.SetDefault("form.settle_delay", "2s")
	v.SetDefault("form.fill_settle_delay", "1s")
	v.SetDefault("form.snapshot_dir", "")
	v.SetDefault("form.confirmation_phrases", []string{"Your response has been recorded", "Submission successful"})
	v.SetDefault("form.allowed_urls", []string{"https://docs.google.com/forms/d/e/*/viewform*"})

	// -- Filler --
	v.SetDefault("filler.char_delay", "10ms")
	v.SetDefault("filler.element_timeout", "5s")
	v.SetDefault("filler.submit_wait", "5s")
	v.SetDefault("filler.scroll_settle", "500ms")
	v.SetDefault("filler.post_submit_wait", "3s")

	// -- Run --
	v.SetDefault("run.max_per_run", 15)
	v.SetDefault("run.submission_delay", "5s")
	v.SetDefault("run.failure_backoff", "0s")

	// -- LLM --
	v.SetDefault("llm.provider", string(ProviderGemini))
	v.SetDefault("llm.model", "gemini-2.0-flash")
	v.SetDefault("llm.api_timeout", "60s")
	v.SetDefault("llm.temperature", 0.9)
	v.SetDefault("llm.max_tokens", 4096)

	// -- Quota --
	v.SetDefault("quota.backend", string(QuotaNone))
	v.SetDefault("quota.daily_limit", 15)
	v.SetDefault("quota.max_per_form", 50)
	v.SetDefault("quota.redis.addr", "localhost:6379")
	v.SetDefault("quota.redis.db", 0)
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Secrets are commonly provided under their vendor names.
	_ = v.BindEnv("llm.api_key", "FORMPILOT_LLM_API_KEY", "GEMINI_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("llm_fallback.api_key", "FORMPILOT_LLM_FALLBACK_API_KEY")
	_ = v.BindEnv("quota.postgres.url", "FORMPILOT_QUOTA_POSTGRES_URL", "DATABASE_URL")
	_ = v.BindEnv("quota.redis.password", "FORMPILOT_QUOTA_REDIS_PASSWORD")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (c *Config) expandPaths() error {
	for _, p := range []*string{&c.Logger.LogFile, &c.Form.SnapshotDir, &c.Browser.ExecPath} {
		if *p == "" {
			continue
		}
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("could not resolve path '%s': %w", *p, err)
		}
		*p = expanded
	}
	return nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.Form.WaitTimeout <= 0 {
		return fmt.Errorf("form.wait_timeout must be a positive duration")
	}
	if c.Form.SettleDelay < 0 || c.Form.FillSettleDelay < 0 {
		return fmt.Errorf("form settle delays must not be negative")
	}
	if c.Filler.SubmitWait <= 0 {
		return fmt.Errorf("filler.submit_wait must be a positive duration")
	}
	if c.Filler.ElementTimeout <= 0 {
		return fmt.Errorf("filler.element_timeout must be a positive duration")
	}
	if err := c.Run.Validate(); err != nil {
		return fmt.Errorf("run configuration invalid: %w", err)
	}
	if err := c.LLM.Validate(); err != nil {
		return fmt.Errorf("llm configuration invalid: %w", err)
	}
	if c.LLMFallback.Provider != "" {
		if err := c.LLMFallback.Validate(); err != nil {
			return fmt.Errorf("llm_fallback configuration invalid: %w", err)
		}
	}
	if err := c.Quota.Validate(); err != nil {
		return fmt.Errorf("quota configuration invalid: %w", err)
	}
	return nil
}

// Validate checks the RunConfig settings.
func (r *RunConfig) Validate() error {
	if r.MaxPerRun <= 0 {
		return fmt.Errorf("max_per_run must be greater than 0")
	}
	if r.SubmissionDelay < 0 || r.FailureBackoff < 0 {
		return fmt.Errorf("delays must not be negative")
	}
	return nil
}

// Validate checks the LLMModelConfig settings. The API key is checked when a
// client is built so commands that never call the model work without one.
func (l *LLMModelConfig) Validate() error {
	switch LLMProvider(strings.ToLower(string(l.Provider))) {
	case ProviderGemini, ProviderOpenAI:
	default:
		return fmt.Errorf("unsupported provider '%s'. Supported: [%s, %s]", l.Provider, ProviderGemini, ProviderOpenAI)
	}
	if l.Model == "" {
		return fmt.Errorf("model is required")
	}
	if l.Temperature < 0 || l.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2")
	}
	return nil
}

// Validate checks the QuotaConfig settings.
func (q *QuotaConfig) Validate() error {
	if q.DailyLimit <= 0 {
		return fmt.Errorf("daily_limit must be greater than 0")
	}
	if q.MaxPerForm <= 0 {
		return fmt.Errorf("max_per_form must be greater than 0")
	}
	switch q.Backend {
	case QuotaNone, "":
	case QuotaPostgres:
		if q.Postgres.URL == "" {
			return fmt.Errorf("postgres.url is required for the postgres backend")
		}
	case QuotaRedis:
		if q.Redis.Addr == "" {
			return fmt.Errorf("redis.addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown backend '%s'", q.Backend)
	}
	return nil
}
