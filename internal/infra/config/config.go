package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	StorageBackendPostgres = "postgres"
	StorageBackendMemory   = "memory"

	IdentityProviderREST  = "rest"
	IdentityProviderLocal = "local"
)

type AppConfig struct {
	App       AppSettings       `mapstructure:"app"`
	Storage   StorageSettings   `mapstructure:"storage"`
	Postgres  PostgresSettings  `mapstructure:"postgres"`
	Redis     RedisSettings     `mapstructure:"redis"`
	Kafka     KafkaSettings     `mapstructure:"kafka"`
	Identity  IdentitySettings  `mapstructure:"identity"`
	Session   SessionSettings   `mapstructure:"session"`
	Telemetry TelemetrySettings `mapstructure:"telemetry"`
	RateLimit RateLimitSettings `mapstructure:"rate_limit"`
	Argon2    Argon2Settings    `mapstructure:"argon2"`
	Password  PasswordSettings  `mapstructure:"password"`
	Reminders ReminderSettings  `mapstructure:"reminders"`
}

type AppSettings struct {
	Name           string   `mapstructure:"name"`
	Env            string   `mapstructure:"env"`
	Host           string   `mapstructure:"host"`
	Port           int      `mapstructure:"port"`
	LoginPath      string   `mapstructure:"login_path"`
	Departments    []string `mapstructure:"departments"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// StorageSettings selects the document store backend.
type StorageSettings struct {
	Backend string `mapstructure:"backend"`
}

type PostgresSettings struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	User              string        `mapstructure:"user"`
	Password          string        `mapstructure:"password"`
	Database          string        `mapstructure:"database"`
	Schema            string        `mapstructure:"schema"`
	SSLMode           string        `mapstructure:"ssl_mode"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
}

// RedisSettings configures the Redis connection backing rate limits.
type RedisSettings struct {
	Enabled         bool   `mapstructure:"enabled"`
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	DB              int    `mapstructure:"db"`
	Password        string `mapstructure:"password"`
	TLSEnabled      bool   `mapstructure:"tls_enabled"`
	RateLimitPrefix string `mapstructure:"rate_limit_prefix"`
}

// KafkaSettings configures the domain event producer
type KafkaSettings struct {
	Enabled     bool     `mapstructure:"enabled"`
	Brokers     []string `mapstructure:"brokers"`
	TopicPrefix string   `mapstructure:"topic_prefix"`
	Async       bool     `mapstructure:"async"`
}

// IdentitySettings selects and configures the identity provider.
type IdentitySettings struct {
	Provider             string        `mapstructure:"provider"`
	APIKey               string        `mapstructure:"api_key"`
	BaseURL              string        `mapstructure:"base_url"`
	ServiceToken         string        `mapstructure:"service_token"`
	Timeout              time.Duration `mapstructure:"timeout"`
	MaxRequestsPerSecond float64       `mapstructure:"max_requests_per_second"`
	KeyDirectory         string        `mapstructure:"key_directory"`
	TokenTTL             time.Duration `mapstructure:"token_ttl"`
	Issuer               string        `mapstructure:"issuer"`
}

// SessionSettings controls the auth cookie written after login.
type SessionSettings struct {
	CookieName   string        `mapstructure:"cookie_name"`
	CookieSecure bool          `mapstructure:"cookie_secure"`
	CookieTTL    time.Duration `mapstructure:"cookie_ttl"`
}

// RateLimitSettings configures rate limiting windows and max attempts per endpoint
type RateLimitSettings struct {
	WindowDuration           time.Duration `mapstructure:"window_duration"`
	LoginMaxAttempts         int           `mapstructure:"login_max_attempts"`
	RegisterMaxAttempts      int           `mapstructure:"register_max_attempts"`
	PasswordResetMaxAttempts int           `mapstructure:"password_reset_max_attempts"`
	FailedLoginMaxAttempts   int           `mapstructure:"failed_login_max_attempts"`
	FailedLoginWindow        time.Duration `mapstructure:"failed_login_window"`
	DegradationMode          string        `mapstructure:"degradation_mode"`
}

// Argon2Settings configures Argon2id password hashing for the local identity provider
type Argon2Settings struct {
	Memory      uint32 `mapstructure:"memory"`
	Iterations  uint32 `mapstructure:"iterations"`
	Parallelism uint8  `mapstructure:"parallelism"`
	SaltLength  uint32 `mapstructure:"salt_length"`
	KeyLength   uint32 `mapstructure:"key_length"`
}

// PasswordSettings tunes the password policy applied at registration and password change.
type PasswordSettings struct {
	MinStrengthScore int `mapstructure:"min_strength_score"`
}

type TelemetrySettings struct {
	TracingEnabled bool    `mapstructure:"tracing_enabled"`
	OTLPEndpoint   string  `mapstructure:"otlp_endpoint"`
	ServiceName    string  `mapstructure:"service_name"`
	SamplingRate   float64 `mapstructure:"sampling_rate"`
}

// ReminderSettings drives the training reminder job.
type ReminderSettings struct {
	Enabled   bool          `mapstructure:"enabled"`
	Schedule  string        `mapstructure:"schedule"`
	Lookahead time.Duration `mapstructure:"lookahead"`
}

func Load() (*AppConfig, error) {
	v := viper.New()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("SKILLS")

	setDefaults(v)

	if err := bindEnvs(v, []string{
		"app.name",
		"app.env",
		"app.host",
		"app.port",
		"app.login_path",
		"app.departments",
		"app.allowed_origins",
		"storage.backend",
		"postgres.host",
		"postgres.port",
		"postgres.user",
		"postgres.password",
		"postgres.database",
		"postgres.schema",
		"postgres.ssl_mode",
		"postgres.max_conns",
		"postgres.min_conns",
		"postgres.max_conn_lifetime",
		"postgres.max_conn_idle_time",
		"postgres.health_check_period",
		"redis.enabled",
		"redis.host",
		"redis.port",
		"redis.db",
		"redis.password",
		"redis.tls_enabled",
		"redis.rate_limit_prefix",
		"kafka.enabled",
		"kafka.brokers",
		"kafka.topic_prefix",
		"kafka.async",
		"identity.provider",
		"identity.api_key",
		"identity.base_url",
		"identity.service_token",
		"identity.timeout",
		"identity.max_requests_per_second",
		"identity.key_directory",
		"identity.token_ttl",
		"identity.issuer",
		"session.cookie_name",
		"session.cookie_secure",
		"session.cookie_ttl",
		"telemetry.tracing_enabled",
		"telemetry.otlp_endpoint",
		"telemetry.service_name",
		"telemetry.sampling_rate",
		"rate_limit.window_duration",
		"rate_limit.login_max_attempts",
		"rate_limit.register_max_attempts",
		"rate_limit.password_reset_max_attempts",
		"rate_limit.failed_login_max_attempts",
		"rate_limit.failed_login_window",
		"rate_limit.degradation_mode",
		"argon2.memory",
		"argon2.iterations",
		"argon2.parallelism",
		"argon2.salt_length",
		"argon2.key_length",
		"password.min_strength_score",
		"reminders.enabled",
		"reminders.schedule",
		"reminders.lookahead",
	}); err != nil {
		return nil, err
	}

	v.AutomaticEnv()

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *AppConfig) validate() error {
	switch c.Storage.Backend {
	case StorageBackendPostgres, StorageBackendMemory:
	default:
		return fmt.Errorf("config: unknown storage backend %q", c.Storage.Backend)
	}

	switch c.Identity.Provider {
	case IdentityProviderLocal:
	case IdentityProviderREST:
		if c.Identity.APIKey == "" {
			return fmt.Errorf("config: identity.api_key is required for the rest provider")
		}
	default:
		return fmt.Errorf("config: unknown identity provider %q", c.Identity.Provider)
	}

	if c.Password.MinStrengthScore < 0 || c.Password.MinStrengthScore > 4 {
		return fmt.Errorf("config: password.min_strength_score must be between 0 and 4")
	}

	departments := make([]string, 0, len(c.App.Departments))
	for _, entry := range c.App.Departments {
		departments = append(departments, splitList(entry)...)
	}
	c.App.Departments = departments

	origins := make([]string, 0, len(c.App.AllowedOrigins))
	for _, entry := range c.App.AllowedOrigins {
		origins = append(origins, splitList(entry)...)
	}
	c.App.AllowedOrigins = origins
	return nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "skills-audit")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", 8080)
	v.SetDefault("app.login_path", "/auth/login")
	v.SetDefault("app.departments", []string{
		"National Treasury",
		"Finance",
		"Human Resources",
		"Information Technology",
		"Operations",
		"Legal",
		"Audit",
	})

	v.SetDefault("app.allowed_origins", []string{})

	v.SetDefault("storage.backend", StorageBackendPostgres)

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "skills")
	v.SetDefault("postgres.password", "skills_password")
	v.SetDefault("postgres.database", "skills")
	v.SetDefault("postgres.schema", "skills")
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.min_conns", 2)
	v.SetDefault("postgres.max_conn_lifetime", "60m")
	v.SetDefault("postgres.max_conn_idle_time", "15m")
	v.SetDefault("postgres.health_check_period", "30s")

	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.tls_enabled", false)
	v.SetDefault("redis.rate_limit_prefix", "skills:ratelimit")

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic_prefix", "skills")
	v.SetDefault("kafka.async", true)

	v.SetDefault("identity.provider", IdentityProviderLocal)
	v.SetDefault("identity.base_url", "https://identitytoolkit.googleapis.com/v1")
	v.SetDefault("identity.timeout", "10s")
	v.SetDefault("identity.max_requests_per_second", 20)
	v.SetDefault("identity.key_directory", "./secrets")
	v.SetDefault("identity.token_ttl", "1h")
	v.SetDefault("identity.issuer", "skills-audit")

	v.SetDefault("session.cookie_name", "auth_token")
	v.SetDefault("session.cookie_secure", true)
	v.SetDefault("session.cookie_ttl", "8h")

	v.SetDefault("telemetry.tracing_enabled", false)
	v.SetDefault("telemetry.otlp_endpoint", "http://localhost:4318")
	v.SetDefault("telemetry.service_name", "skills-audit")
	v.SetDefault("telemetry.sampling_rate", 1.0)

	v.SetDefault("rate_limit.window_duration", "1m")
	v.SetDefault("rate_limit.login_max_attempts", 10)
	v.SetDefault("rate_limit.register_max_attempts", 3)
	v.SetDefault("rate_limit.password_reset_max_attempts", 3)
	v.SetDefault("rate_limit.failed_login_max_attempts", 5)
	v.SetDefault("rate_limit.failed_login_window", "15m")
	v.SetDefault("rate_limit.degradation_mode", "lenient")

	v.SetDefault("argon2.memory", 65536) // 64 MB
	v.SetDefault("argon2.iterations", 3)
	v.SetDefault("argon2.parallelism", 4)
	v.SetDefault("argon2.salt_length", 16)
	v.SetDefault("argon2.key_length", 32)

	v.SetDefault("password.min_strength_score", 0)

	v.SetDefault("reminders.enabled", true)
	v.SetDefault("reminders.schedule", "0 7 * * *")
	v.SetDefault("reminders.lookahead", "72h")
}

func bindEnvs(v *viper.Viper, keys []string) error {
	for _, key := range keys {
		envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, "SKILLS_"+envKey, envKey); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}
