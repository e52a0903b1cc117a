package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config application-wide configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"db"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Auth     AuthConfig     `mapstructure:"auth"`
	AI       AIConfig       `mapstructure:"ai"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Mail     MailConfig     `mapstructure:"mail"`
	PDF      PDFConfig      `mapstructure:"pdf"`
	Intake   IntakeConfig   `mapstructure:"intake"`
	Log      LogConfig      `mapstructure:"log"`
	Feature  FeatureConfig  `mapstructure:"feature"`
}

// ServerConfig HTTP server
type ServerConfig struct {
	Port        int        `mapstructure:"port"`
	BaseURL     string     `mapstructure:"base_url"`
	MaxBodySize int64      `mapstructure:"max_body_size"` // bytes, covers contract uploads
	CORS        CORSConfig `mapstructure:"cors"`
}

// CORSConfig cross-origin settings
type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// DatabaseConfig PostgreSQL
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Name            string `mapstructure:"name"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"sslmode"`
	Timezone        string `mapstructure:"timezone"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`  // minutes
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time"` // minutes
}

// DSN builds the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode, c.Timezone,
	)
}

// RedisConfig cache, rate limiting and the change-event channel
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig JWT settings
type AuthConfig struct {
	JWTSecret       string        `mapstructure:"jwt_secret"`
	AccessTokenTTL  time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL time.Duration `mapstructure:"refresh_token_ttl"`
}

// AIConfig generative model access.
// Provider "langchain" goes through langchaingo's googleai client,
// "genai" talks to the Gemini SDK directly.
type AIConfig struct {
	Provider        string        `mapstructure:"provider"`
	APIKey          string        `mapstructure:"api_key"`
	ExtractionModel string        `mapstructure:"extraction_model"`
	ChatModel       string        `mapstructure:"chat_model"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
}

// StorageConfig Aliyun OSS bucket holding contract files
type StorageConfig struct {
	Endpoint      string        `mapstructure:"endpoint"`
	AccessKey     string        `mapstructure:"access_key"`
	SecretKey     string        `mapstructure:"secret_key"`
	SecurityToken string        `mapstructure:"security_token"`
	Bucket        string        `mapstructure:"bucket"`
	PublicBase    string        `mapstructure:"public_base"`
	KeyPrefix     string        `mapstructure:"key_prefix"`
	SignedURLTTL  time.Duration `mapstructure:"signed_url_ttl"` // 0 = plain public URLs
	FetchTimeout  time.Duration `mapstructure:"fetch_timeout"`
	MaxFileSize   int64         `mapstructure:"max_file_size"`
	AllowedHosts  []string      `mapstructure:"allowed_hosts"` // foreign hosts contract URLs may point to
}

// MailConfig outbox delivery
type MailConfig struct {
	Provider          string        `mapstructure:"provider"` // gmail | log
	From              string        `mapstructure:"from"`
	GmailClientID     string        `mapstructure:"gmail_client_id"`
	GmailClientSecret string        `mapstructure:"gmail_client_secret"`
	GmailRefreshToken string        `mapstructure:"gmail_refresh_token"`
	PollInterval      time.Duration `mapstructure:"poll_interval"`
	BatchSize         int           `mapstructure:"batch_size"`
	MaxAttempts       int           `mapstructure:"max_attempts"`
	ClaimLease        time.Duration `mapstructure:"claim_lease"` // claimed mail stays hidden from other instances this long
	DashboardURL      string        `mapstructure:"dashboard_url"`
}

// PDFConfig contract generation
type PDFConfig struct {
	FontURL      string        `mapstructure:"font_url"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
}

// IntakeConfig change-event triggers
type IntakeConfig struct {
	Workers       int           `mapstructure:"workers"`
	ResumeOnStart bool          `mapstructure:"resume_on_start"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"` // 0 disables the periodic sweep
	EventBuffer   int           `mapstructure:"event_buffer"`
	ClaimTimeout  time.Duration `mapstructure:"claim_timeout"` // claimed analyses older than this are rejected by the sweep
}

// LogConfig logging
type LogConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`   // json | console
	Sampling bool   `mapstructure:"sampling"` // json only
}

// FeatureConfig feature switches
type FeatureConfig struct {
	OutboxEnabled bool `mapstructure:"outbox_enabled"`
	ChatRateLimit int  `mapstructure:"chat_rate_limit"` // requests per minute per IP
}

// Load reads configuration from file and environment.
// Precedence: environment > config file > defaults
func Load(path string) (*Config, error) {
	v := viper.New()

	// ── defaults ──
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("server.max_body_size", 20<<20)
	v.SetDefault("server.cors.allow_origins", []string{"http://localhost:3000"})

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.name", "praxihub")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.timezone", "Europe/Prague")
	v.SetDefault("db.max_open_conns", 25)
	v.SetDefault("db.max_idle_conns", 10)
	v.SetDefault("db.conn_max_lifetime", 60)
	v.SetDefault("db.conn_max_idle_time", 30)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("auth.access_token_ttl", "30m")
	v.SetDefault("auth.refresh_token_ttl", "168h")

	v.SetDefault("ai.provider", "langchain")
	v.SetDefault("ai.extraction_model", "gemini-2.5-pro")
	v.SetDefault("ai.chat_model", "gemini-2.5-flash")
	v.SetDefault("ai.request_timeout", "120s")

	v.SetDefault("storage.key_prefix", "")
	v.SetDefault("storage.signed_url_ttl", "0s")
	v.SetDefault("storage.fetch_timeout", "30s")
	v.SetDefault("storage.max_file_size", 15<<20)
	v.SetDefault("storage.allowed_hosts", []string{})

	v.SetDefault("mail.provider", "log")
	v.SetDefault("mail.from", "PraxiHub <noreply@praxihub.cz>")
	v.SetDefault("mail.poll_interval", "15s")
	v.SetDefault("mail.batch_size", 20)
	v.SetDefault("mail.max_attempts", 3)
	v.SetDefault("mail.claim_lease", "5m")
	v.SetDefault("mail.dashboard_url", "http://localhost:3000/dashboard")

	v.SetDefault("pdf.font_url", "https://cdnjs.cloudflare.com/ajax/libs/roboto-fontface/0.10.0/fonts/roboto/Roboto-Regular.ttf")
	v.SetDefault("pdf.fetch_timeout", "15s")

	v.SetDefault("intake.workers", 4)
	v.SetDefault("intake.resume_on_start", true)
	v.SetDefault("intake.sweep_interval", "1m")
	v.SetDefault("intake.event_buffer", 256)
	v.SetDefault("intake.claim_timeout", "10m")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.sampling", true)

	v.SetDefault("feature.outbox_enabled", true)
	v.SetDefault("feature.chat_rate_limit", 20)

	// ── config file ──
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	// ── environment ──
	v.SetEnvPrefix("PRAXIHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		// no file: defaults and environment only
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the settings the service cannot start without
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("config: auth.jwt_secret must not be empty")
	}
	if len(c.Auth.JWTSecret) < 16 {
		return fmt.Errorf("config: auth.jwt_secret must be at least 16 characters")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port must be within 1-65535")
	}
	switch c.AI.Provider {
	case "langchain", "genai":
	default:
		return fmt.Errorf("config: unknown ai.provider %q", c.AI.Provider)
	}
	switch c.Mail.Provider {
	case "gmail", "log":
	default:
		return fmt.Errorf("config: unknown mail.provider %q", c.Mail.Provider)
	}
	if c.Intake.Workers <= 0 {
		return fmt.Errorf("config: intake.workers must be positive")
	}
	return nil
}
