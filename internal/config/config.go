package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	SLA      SLAConfig
	Evidence EvidenceConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr           string
	Password       string
	DB             int
	ChangesChannel string
	NameCacheTTL   time.Duration
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines bearer token verification parameters.
type AuthConfig struct {
	JWTSecret             string
	Issuer                string
	AccessTokenTTLMinutes int
}

// SLAConfig drives the SLA clock and the lifecycle rules around it.
type SLAConfig struct {
	DefaultStandardHours int
	DefaultVIPHours      int
	MinSolutionWords     int
	// ExcludePausedTime subtracts paused intervals from elapsed time when
	// deciding whether a ticket is breached.
	ExcludePausedTime bool
	// LegacyPatternFallback classifies free-text pause reasons with the
	// parts/warranty/vendor/purchase pattern instead of treating them as untagged.
	LegacyPatternFallback bool
	// LegacyDescriptionWrites keeps appending notes, solutions and evidence
	// links to the description field for consumers that still read it.
	LegacyDescriptionWrites bool
	BreachSweepInterval     time.Duration
	LegacyNoteLocation      string

	location *time.Location
}

// EvidenceConfig holds object storage settings for ticket evidence.
type EvidenceConfig struct {
	Endpoint   string
	AccessKey  string
	SecretKey  string
	Bucket     string
	Region     string
	UseSSL     bool
	PresignTTL time.Duration
	MaxBytes   int64
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "helpdesk-sla"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:           getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:       os.Getenv("REDIS_PASSWORD"),
			DB:             redisDB,
			ChangesChannel: getEnv("REDIS_CHANGES_CHANNEL", "helpdesk:tickets:changed"),
			NameCacheTTL:   getEnvAsDuration("REDIS_NAME_CACHE_TTL", 10*time.Minute),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			Issuer:                getEnv("AUTH_ISSUER", "helpdesk"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
		},
		SLA: SLAConfig{
			DefaultStandardHours:    getEnvAsInt("SLA_DEFAULT_STANDARD_HOURS", 24),
			DefaultVIPHours:         getEnvAsInt("SLA_DEFAULT_VIP_HOURS", 8),
			MinSolutionWords:        getEnvAsInt("SLA_MIN_SOLUTION_WORDS", 20),
			ExcludePausedTime:       getEnvAsBool("SLA_EXCLUDE_PAUSED_TIME", false),
			LegacyPatternFallback:   getEnvAsBool("PAUSE_LEGACY_PATTERN_FALLBACK", false),
			LegacyDescriptionWrites: getEnvAsBool("LEGACY_DESCRIPTION_WRITES", false),
			BreachSweepInterval:     getEnvAsDuration("SLA_BREACH_SWEEP_INTERVAL", time.Minute),
			LegacyNoteLocation:      getEnv("LEGACY_NOTE_TIMEZONE", "UTC"),
		},
		Evidence: EvidenceConfig{
			Endpoint:   os.Getenv("EVIDENCE_ENDPOINT"),
			AccessKey:  os.Getenv("EVIDENCE_ACCESS_KEY"),
			SecretKey:  os.Getenv("EVIDENCE_SECRET_KEY"),
			Bucket:     getEnv("EVIDENCE_BUCKET", "ticket-evidence"),
			Region:     os.Getenv("EVIDENCE_REGION"),
			UseSSL:     getEnvAsBool("EVIDENCE_USE_SSL", true),
			PresignTTL: getEnvAsDuration("EVIDENCE_PRESIGN_TTL", 7*24*time.Hour),
			MaxBytes:   int64(getEnvAsInt("EVIDENCE_MAX_BYTES", 10<<20)),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.SLA.DefaultStandardHours <= 0 || c.SLA.DefaultVIPHours <= 0 {
		return fmt.Errorf("SLA default hours must be positive")
	}
	if c.SLA.MinSolutionWords < 0 {
		return fmt.Errorf("SLA_MIN_SOLUTION_WORDS must not be negative")
	}
	loc, err := time.LoadLocation(c.SLA.LegacyNoteLocation)
	if err != nil {
		return fmt.Errorf("invalid LEGACY_NOTE_TIMEZONE: %w", err)
	}
	c.SLA.location = loc
	return nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// Location is the zone legacy note timestamps are written in. Configs not
// built by Load resolve to UTC until Resolved is called.
func (s SLAConfig) Location() *time.Location {
	if s.location == nil {
		return time.UTC
	}
	return s.location
}

// Resolved returns a copy with the legacy note zone loaded. An unknown zone
// falls back to UTC.
func (s SLAConfig) Resolved() SLAConfig {
	if s.location != nil {
		return s
	}
	loc, err := time.LoadLocation(s.LegacyNoteLocation)
	if err != nil {
		loc = time.UTC
	}
	s.location = loc
	return s
}

// Enabled reports whether evidence storage is configured.
func (e EvidenceConfig) Enabled() bool {
	return e.Endpoint != "" && e.AccessKey != "" && e.SecretKey != ""
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(val)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}
