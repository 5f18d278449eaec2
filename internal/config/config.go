package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/outreach-cli/internal/cost"
	"github.com/sells-group/outreach-cli/internal/model"
)

// Config holds the full application configuration.
type Config struct {
	Sheets     SheetsConfig     `yaml:"sheets" mapstructure:"sheets"`
	Gmail      GmailConfig      `yaml:"gmail" mapstructure:"gmail"`
	Perplexity PerplexityConfig `yaml:"perplexity" mapstructure:"perplexity"`
	OpenAI     OpenAIConfig     `yaml:"openai" mapstructure:"openai"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Research   TaskConfig       `yaml:"research" mapstructure:"research"`
	Email      TaskConfig       `yaml:"email" mapstructure:"email"`
	Pricing    PricingConfig    `yaml:"pricing" mapstructure:"pricing"`
	Scheduler  SchedulerConfig  `yaml:"scheduler" mapstructure:"scheduler"`
	Sink       SinkConfig       `yaml:"sink" mapstructure:"sink"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// SheetsConfig identifies the spreadsheet holding profiles.
type SheetsConfig struct {
	CredentialsPath string `yaml:"credentials_path" mapstructure:"credentials_path"`
	SpreadsheetID   string `yaml:"spreadsheet_id" mapstructure:"spreadsheet_id"`
	SheetName       string `yaml:"sheet_name" mapstructure:"sheet_name"`
}

// GmailConfig configures draft creation.
type GmailConfig struct {
	CredentialsPath string `yaml:"credentials_path" mapstructure:"credentials_path"`
	SubjectPrefix   string `yaml:"subject_prefix" mapstructure:"subject_prefix"`
}

// PerplexityConfig holds Perplexity API settings.
type PerplexityConfig struct {
	Key           string  `yaml:"key" mapstructure:"key"`
	BaseURL       string  `yaml:"base_url" mapstructure:"base_url"`
	Model         string  `yaml:"model" mapstructure:"model"`
	RatePerSecond float64 `yaml:"rate_per_second" mapstructure:"rate_per_second"`
}

// OpenAIConfig holds OpenAI API settings.
type OpenAIConfig struct {
	Key           string  `yaml:"key" mapstructure:"key"`
	Model         string  `yaml:"model" mapstructure:"model"`
	RatePerSecond float64 `yaml:"rate_per_second" mapstructure:"rate_per_second"`
}

// AnthropicConfig holds Anthropic API settings. The key is optional: it
// enables the alternate research provider and exact token counting.
type AnthropicConfig struct {
	Key           string  `yaml:"key" mapstructure:"key"`
	Model         string  `yaml:"model" mapstructure:"model"`
	RatePerSecond float64 `yaml:"rate_per_second" mapstructure:"rate_per_second"`
}

// TaskConfig tunes one task kind.
type TaskConfig struct {
	Provider  string `yaml:"provider" mapstructure:"provider"`
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
	// PromptFile overrides the built-in email template; ignored for research.
	PromptFile string `yaml:"prompt_file" mapstructure:"prompt_file"`
}

// PricingConfig holds per-provider rates, keyed the same way the ledger is.
type PricingConfig struct {
	Perplexity cost.ProviderRate `yaml:"perplexity" mapstructure:"perplexity"`
	OpenAI     cost.ProviderRate `yaml:"openai" mapstructure:"openai"`
	Anthropic  cost.ProviderRate `yaml:"anthropic" mapstructure:"anthropic"`
}

// Rates converts the config block into the calculator's table.
func (p PricingConfig) Rates() cost.Rates {
	return cost.Rates{
		model.ProviderPerplexity: p.Perplexity,
		model.ProviderOpenAI:     p.OpenAI,
		model.ProviderAnthropic:  p.Anthropic,
	}
}

// SchedulerConfig tunes the worker pool and retry policy.
type SchedulerConfig struct {
	Workers         int     `yaml:"workers" mapstructure:"workers"`
	MaxAttempts     int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	BackoffSecs     float64 `yaml:"backoff_secs" mapstructure:"backoff_secs"`
	MaxBackoffSecs  float64 `yaml:"max_backoff_secs" mapstructure:"max_backoff_secs"`
	CallTimeoutSecs int     `yaml:"call_timeout_secs" mapstructure:"call_timeout_secs"`
}

// SinkConfig tunes batched sheet writes.
type SinkConfig struct {
	BatchSize         int `yaml:"batch_size" mapstructure:"batch_size"`
	FlushIntervalSecs int `yaml:"flush_interval_secs" mapstructure:"flush_interval_secs"`
}

// StoreConfig configures the local run-history database.
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("OUTREACH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("sheets.sheet_name", "Sheet1")
	v.SetDefault("perplexity.base_url", "https://api.perplexity.ai")
	v.SetDefault("perplexity.model", "sonar")
	v.SetDefault("perplexity.rate_per_second", 2)
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.rate_per_second", 2)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.rate_per_second", 2)
	v.SetDefault("research.provider", "perplexity")
	v.SetDefault("research.max_tokens", 2000)
	v.SetDefault("email.provider", "openai")
	v.SetDefault("email.max_tokens", 1000)
	v.SetDefault("pricing.perplexity.input_per_mtok", 1.00)
	v.SetDefault("pricing.perplexity.output_per_mtok", 1.00)
	v.SetDefault("pricing.perplexity.per_request", 0.005)
	v.SetDefault("pricing.openai.input_per_mtok", 0.15)
	v.SetDefault("pricing.openai.output_per_mtok", 0.60)
	v.SetDefault("pricing.anthropic.input_per_mtok", 0.80)
	v.SetDefault("pricing.anthropic.output_per_mtok", 4.00)
	v.SetDefault("scheduler.workers", 4)
	v.SetDefault("scheduler.max_attempts", 3)
	v.SetDefault("scheduler.backoff_secs", 2)
	v.SetDefault("scheduler.max_backoff_secs", 30)
	v.SetDefault("scheduler.call_timeout_secs", 120)
	v.SetDefault("sink.batch_size", 10)
	v.SetDefault("sink.flush_interval_secs", 15)
	v.SetDefault("store.path", "outreach.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
