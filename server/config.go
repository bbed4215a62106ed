package server

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/topi314/gosign/docsign/database"
)

// LoadConfig reads the config file at cfgPath, or gosign.toml from the working
// directory and /etc/gosign/ when cfgPath is empty. Every key can be overridden
// with a GOSIGN_ prefixed environment variable, e.g. GOSIGN_DATABASE_TYPE.
func LoadConfig(cfgPath string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.SetConfigName("gosign")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/gosign/")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if cfgPath != "" || !errors.As(err, &notFoundErr) {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
	}
	v.SetEnvPrefix("gosign")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg, func(config *mapstructure.DecoderConfig) {
		config.TagName = "cfg"
		config.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
			mapstructure.TextUnmarshallerHookFunc(),
		)
	}); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("debug", false)
	v.SetDefault("dev_mode", false)
	v.SetDefault("listen_addr", ":80")
	v.SetDefault("http_timeout", "30s")
	v.SetDefault("jwt_secret", "")
	v.SetDefault("max_document_size", 20*1024*1024)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", string(LogFormatText))
	v.SetDefault("log.add_source", false)
	v.SetDefault("log.no_color", false)

	v.SetDefault("database.type", database.TypeSQLite)
	v.SetDefault("database.debug", false)
	v.SetDefault("database.path", "gosign.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.username", "gosign")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "gosign")
	v.SetDefault("database.ssl_mode", "disable")

	v.SetDefault("storage.path", "files")

	v.SetDefault("signing.timezone", "UTC")

	v.SetDefault("rate_limit.enabled", false)
	v.SetDefault("rate_limit.requests", 10)
	v.SetDefault("rate_limit.duration", "1m")
	v.SetDefault("rate_limit.whitelist", []string{"127.0.0.1"})
	v.SetDefault("rate_limit.blacklist", []string{})

	v.SetDefault("template_cache.enabled", true)
	v.SetDefault("template_cache.size", 512)
	v.SetDefault("template_cache.ttl", "10m")

	v.SetDefault("otel.enabled", false)
	v.SetDefault("otel.instance_id", "1")
	v.SetDefault("otel.trace.enabled", false)
	v.SetDefault("otel.trace.endpoint", "localhost:4318")
	v.SetDefault("otel.trace.insecure", false)
	v.SetDefault("otel.metrics.enabled", false)
	v.SetDefault("otel.metrics.listen_addr", ":8080")

	v.SetDefault("webhook.enabled", false)
	v.SetDefault("webhook.timeout", "10s")
	v.SetDefault("webhook.max_tries", 3)
	v.SetDefault("webhook.backoff", "1s")
	v.SetDefault("webhook.backoff_factor", 2)
	v.SetDefault("webhook.max_backoff", "5m")
}

type Config struct {
	Debug           bool                `cfg:"debug"`
	DevMode         bool                `cfg:"dev_mode"`
	ListenAddr      string              `cfg:"listen_addr"`
	HTTPTimeout     time.Duration       `cfg:"http_timeout"`
	JWTSecret       string              `cfg:"jwt_secret"`
	MaxDocumentSize int64               `cfg:"max_document_size"`
	Log             LogConfig           `cfg:"log"`
	Database        database.Config     `cfg:"database"`
	Storage         StorageConfig       `cfg:"storage"`
	Signing         SigningConfig       `cfg:"signing"`
	RateLimit       RateLimitConfig     `cfg:"rate_limit"`
	TemplateCache   TemplateCacheConfig `cfg:"template_cache"`
	Otel            OtelConfig          `cfg:"otel"`
	Webhook         WebhookConfig       `cfg:"webhook"`
}

func (c Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("jwt_secret must be set")
	}
	if c.Database.Type != database.TypePostgres && c.Database.Type != database.TypeSQLite {
		return fmt.Errorf("invalid database type %q, must be one of: postgres, sqlite", c.Database.Type)
	}
	if c.Log.Format != LogFormatText && c.Log.Format != LogFormatJSON {
		return fmt.Errorf("invalid log format %q, must be one of: text, json", c.Log.Format)
	}
	for i, endpoint := range c.Webhook.Endpoints {
		if endpoint.URL == "" {
			return fmt.Errorf("webhook endpoint %d is missing an url", i)
		}
	}
	return nil
}

func (c Config) String() string {
	return fmt.Sprintf("\n Debug: %t\n DevMode: %t\n ListenAddr: %s\n HTTPTimeout: %s\n JWTSecret: %s\n MaxDocumentSize: %d\n Log: %s\n Database: %s\n Storage: %s\n Signing: %s\n RateLimit: %s\n TemplateCache: %s\n Otel: %s\n Webhook: %s",
		c.Debug,
		c.DevMode,
		c.ListenAddr,
		c.HTTPTimeout,
		strings.Repeat("*", len(c.JWTSecret)),
		c.MaxDocumentSize,
		c.Log,
		c.Database,
		c.Storage,
		c.Signing,
		c.RateLimit,
		c.TemplateCache,
		c.Otel,
		c.Webhook,
	)
}

type LogFormat string

const (
	LogFormatJSON LogFormat = "json"
	LogFormatText LogFormat = "text"
)

type LogConfig struct {
	Level     slog.Level `cfg:"level"`
	Format    LogFormat  `cfg:"format"`
	AddSource bool       `cfg:"add_source"`
	NoColor   bool       `cfg:"no_color"`
}

func (c LogConfig) String() string {
	return fmt.Sprintf("\n  Level: %s\n  Format: %s\n  AddSource: %t\n  NoColor: %t",
		c.Level,
		c.Format,
		c.AddSource,
		c.NoColor,
	)
}

type StorageConfig struct {
	Path string `cfg:"path"`
}

func (c StorageConfig) String() string {
	return fmt.Sprintf("\n  Path: %s", c.Path)
}

type SigningConfig struct {
	Timezone string `cfg:"timezone"`
}

func (c SigningConfig) String() string {
	return fmt.Sprintf("\n  Timezone: %s", c.Timezone)
}

type RateLimitConfig struct {
	Enabled   bool          `cfg:"enabled"`
	Requests  int           `cfg:"requests"`
	Duration  time.Duration `cfg:"duration"`
	Whitelist []string      `cfg:"whitelist"`
	Blacklist []string      `cfg:"blacklist"`
}

func (c RateLimitConfig) String() string {
	return fmt.Sprintf("\n  Enabled: %t\n  Requests: %d\n  Duration: %s\n  Whitelist: %v\n  Blacklist: %v",
		c.Enabled,
		c.Requests,
		c.Duration,
		c.Whitelist,
		c.Blacklist,
	)
}

type TemplateCacheConfig struct {
	Enabled bool          `cfg:"enabled"`
	Size    int           `cfg:"size"`
	TTL     time.Duration `cfg:"ttl"`
}

func (c TemplateCacheConfig) String() string {
	return fmt.Sprintf("\n  Enabled: %t\n  Size: %d\n  TTL: %s",
		c.Enabled,
		c.Size,
		c.TTL,
	)
}

type OtelConfig struct {
	Enabled    bool          `cfg:"enabled"`
	InstanceID string        `cfg:"instance_id"`
	Trace      TraceConfig   `cfg:"trace"`
	Metrics    MetricsConfig `cfg:"metrics"`
}

func (c OtelConfig) String() string {
	return fmt.Sprintf("\n  Enabled: %t\n  InstanceID: %s\n  Trace: %s\n  Metrics: %s",
		c.Enabled,
		c.InstanceID,
		c.Trace,
		c.Metrics,
	)
}

type TraceConfig struct {
	Enabled  bool   `cfg:"enabled"`
	Endpoint string `cfg:"endpoint"`
	Insecure bool   `cfg:"insecure"`
}

func (c TraceConfig) String() string {
	return fmt.Sprintf("\n   Enabled: %t\n   Endpoint: %s\n   Insecure: %t",
		c.Enabled,
		c.Endpoint,
		c.Insecure,
	)
}

type MetricsConfig struct {
	Enabled    bool   `cfg:"enabled"`
	ListenAddr string `cfg:"listen_addr"`
}

func (c MetricsConfig) String() string {
	return fmt.Sprintf("\n   Enabled: %t\n   ListenAddr: %s",
		c.Enabled,
		c.ListenAddr,
	)
}

type WebhookConfig struct {
	Enabled       bool                    `cfg:"enabled"`
	Timeout       time.Duration           `cfg:"timeout"`
	MaxTries      int                     `cfg:"max_tries"`
	Backoff       time.Duration           `cfg:"backoff"`
	BackoffFactor float64                 `cfg:"backoff_factor"`
	MaxBackoff    time.Duration           `cfg:"max_backoff"`
	Endpoints     []WebhookEndpointConfig `cfg:"endpoints"`
}

func (c WebhookConfig) String() string {
	endpoints := make([]string, len(c.Endpoints))
	for i, endpoint := range c.Endpoints {
		endpoints[i] = endpoint.String()
	}
	return fmt.Sprintf("\n  Enabled: %t\n  Timeout: %s\n  MaxTries: %d\n  Backoff: %s\n  BackoffFactor: %f\n  MaxBackoff: %s\n  Endpoints: [%s]",
		c.Enabled,
		c.Timeout,
		c.MaxTries,
		c.Backoff,
		c.BackoffFactor,
		c.MaxBackoff,
		strings.Join(endpoints, ", "),
	)
}

type WebhookEndpointConfig struct {
	URL    string   `cfg:"url"`
	Secret string   `cfg:"secret"`
	Events []string `cfg:"events"`
}

func (c WebhookEndpointConfig) String() string {
	return fmt.Sprintf("%s (secret: %s, events: %v)", c.URL, strings.Repeat("*", len(c.Secret)), c.Events)
}
