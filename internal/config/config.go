// Package config handles configuration loading and validation.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/tathienbao/signal-bot/internal/alerting"
	"github.com/tathienbao/signal-bot/internal/engine"
	"github.com/tathienbao/signal-bot/internal/indicator"
	"github.com/tathienbao/signal-bot/internal/metrics"
	"github.com/tathienbao/signal-bot/internal/observer"
	"github.com/tathienbao/signal-bot/internal/strategy"
	"github.com/tathienbao/signal-bot/internal/telegram"
	"github.com/tathienbao/signal-bot/internal/types"
)

// Config represents the full application configuration.
type Config struct {
	App         AppConfig         `yaml:"app"`
	Market      MarketConfig      `yaml:"market"`
	Source      SourceConfig      `yaml:"source"`
	Indicators  IndicatorConfig   `yaml:"indicators"`
	Signal      SignalConfig      `yaml:"signal"`
	Scheduler   SchedulerConfig   `yaml:"scheduler"`
	Persistence PersistenceConfig `yaml:"persistence"`
	Telegram    TelegramConfig    `yaml:"telegram"`
	Registry    RegistryConfig    `yaml:"registry"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Shutdown    ShutdownConfig    `yaml:"shutdown"`
}

// AppConfig holds process-wide settings.
type AppConfig struct {
	Name      string `yaml:"name"`
	LogLevel  string `yaml:"log_level" validate:"oneof=debug info warn error"`
	LogFormat string `yaml:"log_format" validate:"oneof=text json"`
}

// MarketConfig selects what is scanned.
type MarketConfig struct {
	Symbols  []string `yaml:"symbols" validate:"min=1,dive,required"`
	Interval string   `yaml:"interval" validate:"required"` // bar size, e.g. 1m
	Lookback string   `yaml:"lookback" validate:"required"` // history per fetch, e.g. 1d
	MinBars  int      `yaml:"min_bars" validate:"gte=1"`
}

// SourceConfig selects the market data provider.
type SourceConfig struct {
	Provider          string  `yaml:"provider" validate:"oneof=yahoo polygon binance csv"`
	BaseURL           string  `yaml:"base_url" validate:"omitempty,url"`
	APIKey            string  `yaml:"api_key"`
	APISecret         string  `yaml:"api_secret"`
	CSVDir            string  `yaml:"csv_dir"`
	TimeoutSec        int     `yaml:"timeout_sec" validate:"gte=1"`
	RequestsPerSecond float64 `yaml:"requests_per_second" validate:"gte=0"`
}

// IndicatorConfig holds indicator periods and the computation backend.
type IndicatorConfig struct {
	Backend         string  `yaml:"backend" validate:"oneof=native talib decimal"`
	RSIPeriod       int     `yaml:"rsi_period" validate:"gte=1"`
	StochWindow     int     `yaml:"stoch_window" validate:"gte=1"`
	StochSmooth     int     `yaml:"stoch_smooth" validate:"gte=1"`
	BBWindow        int     `yaml:"bb_window" validate:"gte=2"`
	BBDeviation     float64 `yaml:"bb_deviation" validate:"gt=0"`
	VolumeSMAWindow int     `yaml:"volume_sma_window" validate:"gte=1"`
}

// SignalConfig holds the CALL/PUT thresholds.
type SignalConfig struct {
	CallRSIBelow   float64 `yaml:"call_rsi_below" validate:"gte=0,lte=100"`
	CallStochBelow float64 `yaml:"call_stoch_below" validate:"gte=0,lte=100"`
	CallBandFactor float64 `yaml:"call_band_factor" validate:"gt=0"`
	PutRSIAbove    float64 `yaml:"put_rsi_above" validate:"gte=0,lte=100"`
	PutStochAbove  float64 `yaml:"put_stoch_above" validate:"gte=0,lte=100"`
	PutBandFactor  float64 `yaml:"put_band_factor" validate:"gt=0"`
	MinVolumeRatio float64 `yaml:"min_volume_ratio" validate:"gte=0"`
}

// SchedulerConfig controls tick cadence and per-tick concurrency.
type SchedulerConfig struct {
	IntervalSec       int   `yaml:"interval_sec" validate:"gte=1"`
	MaxConcurrency    int   `yaml:"max_concurrency" validate:"gte=1"`
	SymbolTimeoutSec  int   `yaml:"symbol_timeout_sec" validate:"gte=1"`
	SkipDuplicateBars *bool `yaml:"skip_duplicate_bars"`
}

// PersistenceConfig holds feature store settings.
type PersistenceConfig struct {
	Path string `yaml:"path" validate:"required"`
}

// TelegramConfig holds notification and command channel settings.
type TelegramConfig struct {
	Enabled           bool    `yaml:"enabled"`
	BotToken          string  `yaml:"bot_token"`
	BaseURL           string  `yaml:"base_url" validate:"omitempty,url"`
	ChatIDs           []int64 `yaml:"chat_ids"`
	RegisterOnStart   *bool   `yaml:"register_on_start"`
	PollTimeoutSec    int     `yaml:"poll_timeout_sec" validate:"gte=0"`
	MessagesPerSecond float64 `yaml:"messages_per_second" validate:"gte=0"`
}

// RegistryConfig selects where recipients are stored.
type RegistryConfig struct {
	Type          string `yaml:"type" validate:"oneof=memory redis"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db" validate:"gte=0"`
	RedisKey      string `yaml:"redis_key"`
}

// MetricsConfig holds metrics settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port" validate:"omitempty,gte=1,lte=65535"`
	Path    string `yaml:"path"`
}

// ShutdownConfig holds shutdown settings.
type ShutdownConfig struct {
	TimeoutSec int `yaml:"timeout_sec" validate:"gte=1"`
}

// Default returns a configuration with every optional field filled in.
func Default() Config {
	return Config{
		App: AppConfig{Name: "signal-bot", LogLevel: "info", LogFormat: "text"},
		Market: MarketConfig{
			Symbols:  []string{"EURUSD=X", "GBPUSD=X", "USDJPY=X"},
			Interval: "1m",
			Lookback: "1d",
			MinBars:  50,
		},
		Source: SourceConfig{Provider: observer.ProviderYahoo, TimeoutSec: 15},
		Indicators: IndicatorConfig{
			Backend:         indicator.BackendNative,
			RSIPeriod:       2,
			StochWindow:     14,
			StochSmooth:     3,
			BBWindow:        20,
			BBDeviation:     2,
			VolumeSMAWindow: 10,
		},
		Signal: SignalConfig{
			CallRSIBelow:   8,
			CallStochBelow: 15,
			CallBandFactor: 1.001,
			PutRSIAbove:    92,
			PutStochAbove:  85,
			PutBandFactor:  0.999,
			MinVolumeRatio: 1.2,
		},
		Scheduler:   SchedulerConfig{IntervalSec: 120, MaxConcurrency: 4, SymbolTimeoutSec: 60},
		Persistence: PersistenceConfig{Path: "binary_ml.db"},
		Telegram:    TelegramConfig{PollTimeoutSec: 30, MessagesPerSecond: 20},
		Registry:    RegistryConfig{Type: "memory", RedisAddr: "localhost:6379", RedisKey: alerting.DefaultRedisKey},
		Metrics:     MetricsConfig{Port: 9090, Path: "/metrics"},
		Shutdown:    ShutdownConfig{TimeoutSec: 30},
	}
}

// Load loads configuration from a YAML file. A .env file next to it is
// loaded into the environment first, without overriding existing values.
func Load(path string) (*Config, error) {
	_ = godotenv.Load(filepath.Join(filepath.Dir(path), ".env"))

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return LoadFromBytes(data)
}

// LoadFromBytes loads configuration from YAML bytes on top of Default().
func LoadFromBytes(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []string

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("%w: %v", types.ErrInvalidConfig, err)
		}
		for _, fe := range verrs {
			errs = append(errs, fmt.Sprintf("%s failed '%s'", strings.TrimPrefix(fe.Namespace(), "Config."), fe.ActualTag()))
		}
	}

	interval, err := ParseDuration(c.Market.Interval)
	if err != nil {
		errs = append(errs, fmt.Sprintf("market.interval: %v", err))
	}
	lookback, err := ParseDuration(c.Market.Lookback)
	if err != nil {
		errs = append(errs, fmt.Sprintf("market.lookback: %v", err))
	}
	if interval > 0 && lookback > 0 && int(lookback/interval) < c.Market.MinBars {
		errs = append(errs, fmt.Sprintf("market.lookback %s holds fewer than min_bars=%d bars of %s", c.Market.Lookback, c.Market.MinBars, c.Market.Interval))
	}
	if warmup := c.IndicatorParams().Warmup(); c.Market.MinBars < warmup {
		errs = append(errs, fmt.Sprintf("market.min_bars must be at least %d for the configured indicators", warmup))
	}

	if c.Indicators.Backend == indicator.BackendTALib && c.Indicators.RSIPeriod < 2 {
		errs = append(errs, "indicators.rsi_period must be at least 2 for the talib backend")
	}

	switch c.Source.Provider {
	case observer.ProviderPolygon:
		if c.Source.APIKey == "" {
			errs = append(errs, "source.api_key is required for polygon")
		}
	case observer.ProviderCSV:
		if c.Source.CSVDir == "" {
			errs = append(errs, "source.csv_dir is required for csv")
		}
	}

	if c.Telegram.Enabled && c.Telegram.BotToken == "" {
		errs = append(errs, "telegram.bot_token is required when telegram is enabled")
	}
	if c.Registry.Type == "redis" && c.Registry.RedisAddr == "" {
		errs = append(errs, "registry.redis_addr is required for redis")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", types.ErrInvalidConfig, strings.Join(errs, "; "))
	}

	return nil
}

// ParseDuration accepts Go durations plus a "d" suffix for whole days.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("%w: %q", types.ErrInvalidInterval, s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%w: %q", types.ErrInvalidInterval, s)
	}
	return d, nil
}

// IndicatorParams converts to indicator.Params.
func (c *Config) IndicatorParams() indicator.Params {
	return indicator.Params{
		RSIPeriod:       c.Indicators.RSIPeriod,
		StochWindow:     c.Indicators.StochWindow,
		StochSmooth:     c.Indicators.StochSmooth,
		BBWindow:        c.Indicators.BBWindow,
		BBDeviation:     c.Indicators.BBDeviation,
		VolumeSMAWindow: c.Indicators.VolumeSMAWindow,
	}
}

// ReversalConfig converts to strategy.ReversalConfig.
func (c *Config) ReversalConfig() strategy.ReversalConfig {
	return strategy.ReversalConfig{
		CallRSIBelow:   c.Signal.CallRSIBelow,
		CallStochBelow: c.Signal.CallStochBelow,
		CallBandFactor: c.Signal.CallBandFactor,
		PutRSIAbove:    c.Signal.PutRSIAbove,
		PutStochAbove:  c.Signal.PutStochAbove,
		PutBandFactor:  c.Signal.PutBandFactor,
		MinVolumeRatio: c.Signal.MinVolumeRatio,
	}
}

// ObserverConfig converts to observer.Config.
func (c *Config) ObserverConfig() observer.Config {
	return observer.Config{
		Provider:       c.Source.Provider,
		BaseURL:        c.Source.BaseURL,
		APIKey:         c.Source.APIKey,
		APISecret:      c.Source.APISecret,
		CSVDir:         c.Source.CSVDir,
		Timeout:        time.Duration(c.Source.TimeoutSec) * time.Second,
		RequestsPerSec: c.Source.RequestsPerSecond,
	}
}

// EngineConfig converts to engine.Config. The config must be valid.
func (c *Config) EngineConfig() engine.Config {
	interval, _ := ParseDuration(c.Market.Interval)
	lookback, _ := ParseDuration(c.Market.Lookback)
	return engine.Config{
		Symbols:           append([]string(nil), c.Market.Symbols...),
		Interval:          interval,
		Lookback:          lookback,
		MinBars:           c.Market.MinBars,
		TickInterval:      time.Duration(c.Scheduler.IntervalSec) * time.Second,
		MaxConcurrency:    c.Scheduler.MaxConcurrency,
		SymbolTimeout:     time.Duration(c.Scheduler.SymbolTimeoutSec) * time.Second,
		SkipDuplicateBars: boolOr(c.Scheduler.SkipDuplicateBars, true),
	}
}

// TelegramClientConfig converts to telegram.Config.
func (c *Config) TelegramClientConfig() telegram.Config {
	return telegram.Config{
		Token:             c.Telegram.BotToken,
		BaseURL:           c.Telegram.BaseURL,
		MessagesPerSecond: c.Telegram.MessagesPerSecond,
	}
}

// RegisterOnStart reports whether /start subscribes the caller.
func (c *Config) RegisterOnStart() bool {
	return boolOr(c.Telegram.RegisterOnStart, true)
}

// PollTimeout returns the long-poll duration for chat updates.
func (c *Config) PollTimeout() time.Duration {
	return time.Duration(c.Telegram.PollTimeoutSec) * time.Second
}

// RedisConfig converts to alerting.RedisConfig.
func (c *Config) RedisConfig() alerting.RedisConfig {
	return alerting.RedisConfig{
		Addr:     c.Registry.RedisAddr,
		Password: c.Registry.RedisPassword,
		DB:       c.Registry.RedisDB,
		Key:      c.Registry.RedisKey,
	}
}

// MetricsServerConfig converts to metrics.ServerConfig.
func (c *Config) MetricsServerConfig() metrics.ServerConfig {
	cfg := metrics.DefaultServerConfig()
	cfg.Port = c.Metrics.Port
	if c.Metrics.Path != "" {
		cfg.MetricsPath = c.Metrics.Path
	}
	return cfg
}

// ShutdownTimeout returns the shutdown timeout duration.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Shutdown.TimeoutSec) * time.Second
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}
