package config

import (
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"time"

	"sentinel/internal/domain"
	"sentinel/internal/provider"
	"sentinel/internal/signal"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// PredictConfig tunes the signal engine.
type PredictConfig struct {
	RSIPeriod      int   `yaml:"rsi_period"`
	FastEMA        int   `yaml:"fast_ema"`
	SlowEMA        int   `yaml:"slow_ema"`
	ProjectionDays int   `yaml:"projection_days"`
	VolumeWindow   int   `yaml:"volume_window"`
	Seed           int64 `yaml:"seed"`
}

type Config struct {
	HTTPPort  int    `yaml:"http_port"`
	LogLevel  string `yaml:"log_level"`
	LogPretty bool   `yaml:"log_pretty"`

	RedisURL     string `yaml:"redis_url"`
	CacheEnabled bool   `yaml:"cache_enabled"`
	CacheTTLSecs int    `yaml:"cache_ttl_secs"`

	BinanceBaseURL      string `yaml:"binance_base_url"`
	AlphaVantageBaseURL string `yaml:"alphavantage_base_url"`
	AlphaVantageAPIKey  string `yaml:"alphavantage_api_key"`
	HTTPTimeoutSecs     int    `yaml:"http_timeout_secs"`
	HTTPRequestsPerSec  int    `yaml:"http_requests_per_sec"`
	HTTPMaxRetrySecs    int    `yaml:"http_max_retry_secs"`

	CORSOrigins  []string `yaml:"cors_origins"`
	OTelEnabled  bool     `yaml:"otel_enabled"`
	OTelEndpoint string   `yaml:"otel_endpoint"`

	WarmCron    string   `yaml:"warm_cron"`
	WarmSymbols []string `yaml:"warm_symbols"`

	TelegramBotToken string `yaml:"telegram_bot_token"`
	SSHAddr          string `yaml:"ssh_addr"`
	SSHHostKey       string `yaml:"ssh_host_key"`

	MCPTransport          string `yaml:"mcp_transport"`
	MCPHTTPEnabled        bool   `yaml:"mcp_http_enabled"`
	MCPHTTPBind           string `yaml:"mcp_http_bind"`
	MCPHTTPPort           int    `yaml:"mcp_http_port"`
	MCPAuthToken          string `yaml:"mcp_auth_token"`
	MCPRequestTimeoutSecs int    `yaml:"mcp_request_timeout_secs"`
	MCPRateLimitPerMin    int    `yaml:"mcp_rate_limit_per_min"`

	Predict PredictConfig `yaml:"predict"`
}

func defaults() *Config {
	engine := signal.DefaultConfig()
	return &Config{
		HTTPPort:              8080,
		LogLevel:              "info",
		RedisURL:              "localhost:6379",
		CacheEnabled:          true,
		CacheTTLSecs:          60,
		BinanceBaseURL:        provider.DefaultBinanceBaseURL,
		AlphaVantageBaseURL:   provider.DefaultAlphaVantageBaseURL,
		AlphaVantageAPIKey:    provider.DefaultAlphaVantageAPIKey,
		HTTPTimeoutSecs:       15,
		HTTPRequestsPerSec:    5,
		HTTPMaxRetrySecs:      20,
		CORSOrigins:           []string{"*"},
		WarmSymbols:           []string{"BTCUSDT", "ETHUSDT"},
		SSHAddr:               ":23234",
		SSHHostKey:            ".ssh/id_ed25519",
		MCPTransport:          "stdio",
		MCPHTTPBind:           "127.0.0.1",
		MCPHTTPPort:           8090,
		MCPRequestTimeoutSecs: 5,
		MCPRateLimitPerMin:    60,
		Predict: PredictConfig{
			RSIPeriod:      engine.RSIPeriod,
			FastEMA:        engine.FastEMA,
			SlowEMA:        engine.SlowEMA,
			ProjectionDays: engine.ProjectionDays,
			VolumeWindow:   engine.VolumeWindow,
		},
	}
}

// Load builds the configuration from defaults, the optional YAML file named
// by CONFIG_FILE, and finally environment overrides.
func Load() (*Config, error) {
	cfg := defaults()

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if os.IsNotExist(err) {
			log.Warn().Str("path", path).Msg("config file not found, using environment only")
		}
		if len(data) > 0 {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	cfg.applyEnv()
	cfg.normalize()
	return cfg, nil
}

func (c *Config) applyEnv() {
	envPositiveInt("HTTP_PORT", &c.HTTPPort)
	envString("LOG_LEVEL", &c.LogLevel)
	envBool("LOG_PRETTY", &c.LogPretty)

	envString("REDIS_URL", &c.RedisURL)
	envBool("CACHE_ENABLED", &c.CacheEnabled)
	envPositiveInt("CACHE_TTL_SECS", &c.CacheTTLSecs)

	envString("BINANCE_BASE_URL", &c.BinanceBaseURL)
	envString("ALPHAVANTAGE_BASE_URL", &c.AlphaVantageBaseURL)
	envString("ALPHAVANTAGE_API_KEY", &c.AlphaVantageAPIKey)
	envPositiveInt("HTTP_TIMEOUT_SECS", &c.HTTPTimeoutSecs)
	envPositiveInt("HTTP_REQUESTS_PER_SEC", &c.HTTPRequestsPerSec)
	envPositiveInt("HTTP_MAX_RETRY_SECS", &c.HTTPMaxRetrySecs)

	envList("CORS_ORIGINS", &c.CORSOrigins)
	envBool("OTEL_ENABLED", &c.OTelEnabled)
	envString("OTEL_EXPORTER_OTLP_ENDPOINT", &c.OTelEndpoint)

	if v, ok := os.LookupEnv("WARM_CRON"); ok {
		c.WarmCron = strings.TrimSpace(v)
	}
	envList("WARM_SYMBOLS", &c.WarmSymbols)

	envString("TELEGRAM_BOT_TOKEN", &c.TelegramBotToken)
	envString("SSH_ADDR", &c.SSHAddr)
	envString("SSH_HOST_KEY", &c.SSHHostKey)

	envString("MCP_TRANSPORT", &c.MCPTransport)
	envBool("MCP_HTTP_ENABLED", &c.MCPHTTPEnabled)
	envString("MCP_HTTP_BIND", &c.MCPHTTPBind)
	envPositiveInt("MCP_HTTP_PORT", &c.MCPHTTPPort)
	envString("MCP_AUTH_TOKEN", &c.MCPAuthToken)
	envPositiveInt("MCP_REQUEST_TIMEOUT_SECS", &c.MCPRequestTimeoutSecs)
	envPositiveInt("MCP_RATE_LIMIT_PER_MIN", &c.MCPRateLimitPerMin)

	envPositiveInt("PREDICT_RSI_PERIOD", &c.Predict.RSIPeriod)
	envPositiveInt("PREDICT_FAST_EMA", &c.Predict.FastEMA)
	envPositiveInt("PREDICT_SLOW_EMA", &c.Predict.SlowEMA)
	envPositiveInt("PREDICT_PROJECTION_DAYS", &c.Predict.ProjectionDays)
	envPositiveInt("PREDICT_VOLUME_WINDOW", &c.Predict.VolumeWindow)
	if v := strings.TrimSpace(os.Getenv("PREDICT_SEED")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Predict.Seed = n
		} else {
			log.Warn().Str("key", "PREDICT_SEED").Str("value", v).Msg("invalid value, keeping default")
		}
	}
}

// normalize repairs values a YAML file may have set out of range.
func (c *Config) normalize() {
	d := defaults()

	c.MCPTransport = strings.ToLower(strings.TrimSpace(c.MCPTransport))
	if c.MCPTransport == "" {
		c.MCPTransport = d.MCPTransport
	}
	if c.MCPTransport != "stdio" && c.MCPTransport != "http" {
		log.Warn().Str("value", c.MCPTransport).Msg("unsupported MCP_TRANSPORT, defaulting to stdio")
		c.MCPTransport = "stdio"
	}

	positive := []struct {
		v   *int
		def int
	}{
		{&c.HTTPPort, d.HTTPPort},
		{&c.CacheTTLSecs, d.CacheTTLSecs},
		{&c.HTTPTimeoutSecs, d.HTTPTimeoutSecs},
		{&c.HTTPRequestsPerSec, d.HTTPRequestsPerSec},
		{&c.HTTPMaxRetrySecs, d.HTTPMaxRetrySecs},
		{&c.MCPHTTPPort, d.MCPHTTPPort},
		{&c.MCPRequestTimeoutSecs, d.MCPRequestTimeoutSecs},
		{&c.MCPRateLimitPerMin, d.MCPRateLimitPerMin},
		{&c.Predict.RSIPeriod, d.Predict.RSIPeriod},
		{&c.Predict.FastEMA, d.Predict.FastEMA},
		{&c.Predict.SlowEMA, d.Predict.SlowEMA},
		{&c.Predict.ProjectionDays, d.Predict.ProjectionDays},
		{&c.Predict.VolumeWindow, d.Predict.VolumeWindow},
	}
	for _, p := range positive {
		if *p.v <= 0 {
			*p.v = p.def
		}
	}

	if strings.TrimSpace(c.RedisURL) == "" {
		c.RedisURL = d.RedisURL
	}
	if strings.TrimSpace(c.MCPHTTPBind) == "" {
		c.MCPHTTPBind = d.MCPHTTPBind
	}
	if len(c.CORSOrigins) == 0 {
		c.CORSOrigins = d.CORSOrigins
	}
	c.WarmSymbols = normalizeSymbols(c.WarmSymbols)

	if c.TelegramBotToken == "" {
		log.Warn().Msg("TELEGRAM_BOT_TOKEN not set, bot will be disabled")
	}
}

// HTTPAddr is the listen address of the API server.
func (c *Config) HTTPAddr() string {
	return ":" + strconv.Itoa(c.HTTPPort)
}

func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSecs) * time.Second
}

// ClientOptions maps the upstream settings onto the provider HTTP client.
func (c *Config) ClientOptions() provider.ClientOptions {
	return provider.ClientOptions{
		Timeout:         time.Duration(c.HTTPTimeoutSecs) * time.Second,
		RequestsPerSec:  c.HTTPRequestsPerSec,
		MaxRetryTimeout: time.Duration(c.HTTPMaxRetrySecs) * time.Second,
	}
}

// PredictionConfig overlays the configured periods on the engine defaults.
func (c *Config) PredictionConfig() signal.Config {
	cfg := signal.DefaultConfig()
	cfg.RSIPeriod = c.Predict.RSIPeriod
	cfg.FastEMA = c.Predict.FastEMA
	cfg.SlowEMA = c.Predict.SlowEMA
	cfg.ProjectionDays = c.Predict.ProjectionDays
	cfg.VolumeWindow = c.Predict.VolumeWindow
	return cfg
}

// PredictionRand returns a seeded source when PREDICT_SEED is set, nil
// otherwise so the engine seeds from the clock.
func (c *Config) PredictionRand() *rand.Rand {
	if c.Predict.Seed == 0 {
		return nil
	}
	return rand.New(rand.NewSource(c.Predict.Seed))
}

func envString(key string, dst *string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func envBool(key string, dst *bool) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("invalid boolean, keeping default")
		return
	}
	*dst = b
}

func envPositiveInt(key string, dst *int) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Warn().Str("key", key).Str("value", v).Msg("invalid positive integer, keeping default")
		return
	}
	*dst = n
}

func envList(key string, dst *[]string) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) > 0 {
		*dst = out
	}
}

func normalizeSymbols(raw []string) []string {
	entries, invalid := domain.ParseWatchList(raw)
	for _, s := range invalid {
		log.Warn().Str("symbol", s).Msg("ignoring invalid warm symbol")
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.String())
	}
	return out
}

// WatchEntries returns the warm symbols with their asset modes.
func (c *Config) WatchEntries() []domain.WatchEntry {
	entries, _ := domain.ParseWatchList(c.WarmSymbols)
	return entries
}
