package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tathienbao/signal-bot/internal/types"
)

func TestLoadFromBytes_Valid(t *testing.T) {
	yaml := `
market:
  symbols: ["EURUSD=X", "AUDUSD=X"]
  interval: "5m"
  lookback: "2d"
  min_bars: 60

source:
  provider: "polygon"
  api_key: "pk"

indicators:
  backend: "talib"

signal:
  call_rsi_below: 10

scheduler:
  interval_sec: 60
  skip_duplicate_bars: false

persistence:
  path: "/tmp/features.db"

telegram:
  enabled: true
  bot_token: "123:abc"
  chat_ids: [1001, -42]
  register_on_start: false
`

	cfg, err := LoadFromBytes([]byte(yaml))
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if len(cfg.Market.Symbols) != 2 || cfg.Market.Symbols[1] != "AUDUSD=X" {
		t.Errorf("Symbols = %v", cfg.Market.Symbols)
	}
	if cfg.Signal.CallRSIBelow != 10 {
		t.Errorf("CallRSIBelow = %f, want 10", cfg.Signal.CallRSIBelow)
	}
	// Unset fields keep their defaults.
	if cfg.Signal.PutRSIAbove != 92 || cfg.Indicators.StochWindow != 14 {
		t.Errorf("defaults lost: %+v %+v", cfg.Signal, cfg.Indicators)
	}

	ec := cfg.EngineConfig()
	if ec.Interval != 5*time.Minute || ec.Lookback != 48*time.Hour {
		t.Errorf("engine durations = %s %s", ec.Interval, ec.Lookback)
	}
	if ec.TickInterval != time.Minute {
		t.Errorf("TickInterval = %s, want 1m", ec.TickInterval)
	}
	if ec.SkipDuplicateBars {
		t.Error("SkipDuplicateBars = true, want false")
	}
	if cfg.RegisterOnStart() {
		t.Error("RegisterOnStart() = true, want false")
	}
	if len(cfg.Telegram.ChatIDs) != 2 || cfg.Telegram.ChatIDs[1] != -42 {
		t.Errorf("ChatIDs = %v", cfg.Telegram.ChatIDs)
	}
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}

	ec := cfg.EngineConfig()
	if ec.TickInterval != 2*time.Minute {
		t.Errorf("TickInterval = %s, want 2m", ec.TickInterval)
	}
	if !ec.SkipDuplicateBars {
		t.Error("SkipDuplicateBars default should be true")
	}
	if err := ec.Validate(); err != nil {
		t.Errorf("engine config invalid: %v", err)
	}
	if err := cfg.IndicatorParams().Validate(); err != nil {
		t.Errorf("indicator params invalid: %v", err)
	}
	if !cfg.RegisterOnStart() {
		t.Error("RegisterOnStart() default should be true")
	}
}

func TestLoadFromBytes_InvalidConfig(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "no symbols",
			yaml:    "market:\n  symbols: []\n",
			wantErr: "market.symbols",
		},
		{
			name:    "empty symbol",
			yaml:    "market:\n  symbols: [\"\"]\n",
			wantErr: "market.symbols[0]",
		},
		{
			name:    "unknown provider",
			yaml:    "source:\n  provider: bloomberg\n",
			wantErr: "source.provider",
		},
		{
			name:    "polygon without key",
			yaml:    "source:\n  provider: polygon\n",
			wantErr: "source.api_key is required",
		},
		{
			name:    "csv without dir",
			yaml:    "source:\n  provider: csv\n",
			wantErr: "source.csv_dir is required",
		},
		{
			name:    "unknown backend",
			yaml:    "indicators:\n  backend: gpu\n",
			wantErr: "indicators.backend",
		},
		{
			name:    "talib with rsi period 1",
			yaml:    "indicators:\n  backend: talib\n  rsi_period: 1\n",
			wantErr: "talib",
		},
		{
			name:    "bad interval",
			yaml:    "market:\n  interval: fortnight\n",
			wantErr: "market.interval",
		},
		{
			name:    "lookback too short",
			yaml:    "market:\n  lookback: 10m\n",
			wantErr: "fewer than min_bars",
		},
		{
			name:    "min bars below warmup",
			yaml:    "market:\n  min_bars: 5\n",
			wantErr: "market.min_bars must be at least 20",
		},
		{
			name:    "rsi threshold out of range",
			yaml:    "signal:\n  put_rsi_above: 150\n",
			wantErr: "signal.put_rsi_above",
		},
		{
			name:    "telegram without token",
			yaml:    "telegram:\n  enabled: true\n",
			wantErr: "telegram.bot_token",
		},
		{
			name:    "unknown registry",
			yaml:    "registry:\n  type: etcd\n",
			wantErr: "registry.type",
		},
		{
			name:    "bad log level",
			yaml:    "app:\n  log_level: verbose\n",
			wantErr: "app.log_level",
		},
		{
			name:    "zero tick interval",
			yaml:    "scheduler:\n  interval_sec: 0\n",
			wantErr: "scheduler.interval_sec",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromBytes([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !errors.Is(err, types.ErrInvalidConfig) {
				t.Errorf("error = %v, want ErrInvalidConfig", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromBytes_BadYAML(t *testing.T) {
	if _, err := LoadFromBytes([]byte("market: [unclosed")); err == nil {
		t.Error("expected parse error")
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"1m", time.Minute, false},
		{"90s", 90 * time.Second, false},
		{"1d", 24 * time.Hour, false},
		{" 5d ", 5 * 24 * time.Hour, false},
		{"0d", 0, true},
		{"-1m", 0, true},
		{"xd", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDuration(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseDuration(%q) error = %v", tt.in, err)
			}
			if err != nil && !errors.Is(err, types.ErrInvalidInterval) {
				t.Errorf("error = %v, want ErrInvalidInterval", err)
			}
			if got != tt.want {
				t.Errorf("ParseDuration(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestConfig_Conversions(t *testing.T) {
	cfg := Default()
	cfg.Source.TimeoutSec = 7
	cfg.Metrics.Path = "/prom"
	cfg.Registry.RedisDB = 3

	if oc := cfg.ObserverConfig(); oc.Timeout != 7*time.Second || oc.Provider != "yahoo" {
		t.Errorf("ObserverConfig() = %+v", oc)
	}
	if rc := cfg.ReversalConfig(); rc.CallRSIBelow != 8 || rc.MinVolumeRatio != 1.2 {
		t.Errorf("ReversalConfig() = %+v", rc)
	}
	if mc := cfg.MetricsServerConfig(); mc.MetricsPath != "/prom" || mc.Port != 9090 {
		t.Errorf("MetricsServerConfig() = %+v", mc)
	}
	if rc := cfg.RedisConfig(); rc.DB != 3 || rc.Key == "" {
		t.Errorf("RedisConfig() = %+v", rc)
	}
	if cfg.ShutdownTimeout() != 30*time.Second {
		t.Errorf("ShutdownTimeout() = %s", cfg.ShutdownTimeout())
	}
	if cfg.PollTimeout() != 30*time.Second {
		t.Errorf("PollTimeout() = %s", cfg.PollTimeout())
	}
}

func TestLoad_FromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yaml := `
market:
  symbols: ["USDJPY=X"]
persistence:
  path: "` + filepath.Join(tmpDir, "bot.db") + `"
`
	if err := os.WriteFile(configPath, []byte(yaml), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Market.Symbols[0] != "USDJPY=X" {
		t.Errorf("Symbols = %v", cfg.Market.Symbols)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	t.Setenv("TEST_BOT_TOKEN", "my-secret-token")

	yaml := `
telegram:
  enabled: true
  bot_token: "${TEST_BOT_TOKEN}"
`
	cfg, err := LoadFromBytes([]byte(yaml))
	if err != nil {
		t.Fatalf("LoadFromBytes() error = %v", err)
	}
	if cfg.Telegram.BotToken != "my-secret-token" {
		t.Errorf("BotToken = %s, want my-secret-token", cfg.Telegram.BotToken)
	}
}

func TestLoad_DotEnvFile(t *testing.T) {
	tmpDir := t.TempDir()
	const key = "SIGNALBOT_TEST_DOTENV_TOKEN"
	t.Setenv(key, "")
	os.Unsetenv(key)

	if err := os.WriteFile(filepath.Join(tmpDir, ".env"), []byte(key+"=from-dotenv\n"), 0644); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("telegram:\n  enabled: true\n  bot_token: \"${"+key+"}\"\n"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Telegram.BotToken != "from-dotenv" {
		t.Errorf("BotToken = %q, want from-dotenv", cfg.Telegram.BotToken)
	}
}

func TestLoad_ExampleConfig(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("POLYGON_API_KEY", "")

	cfg, err := Load(filepath.Join("..", "..", "configs", "config.example.yaml"))
	if err != nil {
		t.Fatalf("Load(example) error = %v", err)
	}
	if cfg.App.LogFormat != "json" || cfg.Registry.Type != "memory" {
		t.Errorf("unexpected example config: %+v %+v", cfg.App, cfg.Registry)
	}
	if ec := cfg.EngineConfig(); ec.Lookback != 48*time.Hour {
		t.Errorf("Lookback = %s, want 48h", ec.Lookback)
	}
}
