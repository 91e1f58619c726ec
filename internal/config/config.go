package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"supaconnect/utils"
)

const (
	DefaultListenAddr       = "0.0.0.0:10000"
	DefaultManagementAPIURL = "https://api.supabase.com/v1"
	DefaultAuthorizeURL     = "https://api.supabase.com/v1/oauth/authorize"
	DefaultTokenURL         = "https://api.supabase.com/v1/oauth/token"

	SessionBackendRedis  = "redis"
	SessionBackendMemory = "memory"
)

type Config struct {
	ClientID     string `validate:"required"`
	ClientSecret string `validate:"required"`
	RedirectURL  string `validate:"required,url"`

	ListenAddr string `validate:"required"`
	LogLevel   string

	ManagementAPIURL  string        `validate:"required,url"`
	AuthorizeURL      string        `validate:"required,url"`
	TokenURL          string        `validate:"required,url"`
	ManagementRPS     float64       `validate:"gt=0"`
	ManagementTimeout time.Duration `validate:"gt=0"`

	MaxSnapshotBytes int64 `validate:"gt=0"`
	MaxDocumentDepth int   `validate:"gt=0"`

	RateLimitPerMinute int64 `validate:"gt=0"`

	RedisAddr string `validate:"required"`

	WorkerConcurrency int           `validate:"gt=0"`
	SnapshotRetention time.Duration `validate:"gt=0"`
	PruneInterval     time.Duration `validate:"gt=0"`

	Session  SessionConfig
	Database DatabaseConfig

	// Firebase is nil when notifications are not configured.
	Firebase *FirebaseConfig `validate:"-"`
}

type SessionConfig struct {
	Backend      string        `validate:"oneof=redis memory"`
	Secret       string        `validate:"required,min=16"`
	TTL          time.Duration `validate:"gt=0"`
	SealingKey   string        `validate:"omitempty,base64"`
	KMSKeyID     string
	CookieSecure bool
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string `validate:"omitempty,oneof=disable allow prefer require verify-ca verify-full"`
}

// Enabled reports whether a database was configured. Snapshot history and
// preview jobs are unavailable without one.
func (d DatabaseConfig) Enabled() bool {
	return d.Host != ""
}

// DSN returns the lib/pq keyword/value connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// URL returns the postgres:// form used by golang-migrate.
func (d DatabaseConfig) URL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     d.Host + ":" + d.Port,
		Path:     "/" + d.Name,
		RawQuery: "sslmode=" + url.QueryEscape(d.SSLMode),
	}
	return u.String()
}

// DatabaseFromEnv reads the DB_* variables. The migrate command uses it on
// its own so that it runs without OAuth credentials.
func DatabaseFromEnv() DatabaseConfig {
	return DatabaseConfig{
		Host:     os.Getenv("DB_HOST"),
		Port:     getEnv("DB_PORT", "5432"),
		User:     getEnv("DB_USER", "postgres"),
		Password: os.Getenv("DB_PASSWORD"),
		Name:     getEnv("DB_NAME", "supaconnect"),
		SSLMode:  getEnv("DB_SSLMODE", "disable"),
	}
}

var validate = validator.New()

// Load reads .env (when present) and the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Warn("Failed to load .env file", "error", err)
	}
	return FromEnv()
}

// FromEnv builds the configuration from the process environment only.
func FromEnv() (*Config, error) {
	var errs []string

	cfg := &Config{
		ClientID:         os.Getenv("SUPA_CONNECT_CLIENT_ID"),
		ClientSecret:     os.Getenv("SUPA_CONNECT_CLIENT_SECRET"),
		RedirectURL:      os.Getenv("REDIRECT_URL"),
		ListenAddr:       getEnv("LISTEN_ADDR", DefaultListenAddr),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		ManagementAPIURL: strings.TrimRight(getEnv("MANAGEMENT_API_URL", DefaultManagementAPIURL), "/"),
		AuthorizeURL:     getEnv("OAUTH_AUTHORIZE_URL", DefaultAuthorizeURL),
		TokenURL:         getEnv("OAUTH_TOKEN_URL", DefaultTokenURL),
		RedisAddr:        getEnv("REDIS_ADDR", "localhost:6379"),
		Session: SessionConfig{
			Backend:    getEnv("SESSION_BACKEND", SessionBackendRedis),
			Secret:     os.Getenv("SESSION_SECRET"),
			SealingKey: os.Getenv("SESSION_SEALING_KEY"),
			KMSKeyID:   os.Getenv("AWS_KMS_KEY_ID"),
		},
		Database: DatabaseFromEnv(),
	}

	var err error
	if cfg.ManagementRPS, err = getEnvFloat("MANAGEMENT_API_RPS", 5); err != nil {
		errs = append(errs, err.Error())
	}
	if cfg.ManagementTimeout, err = getEnvDuration("MANAGEMENT_API_TIMEOUT", 30*time.Second); err != nil {
		errs = append(errs, err.Error())
	}
	if cfg.MaxSnapshotBytes, err = getEnvInt("MAX_SNAPSHOT_BYTES", 8<<20); err != nil {
		errs = append(errs, err.Error())
	}
	depth, err := getEnvInt("MAX_DOCUMENT_DEPTH", 64)
	if err != nil {
		errs = append(errs, err.Error())
	}
	cfg.MaxDocumentDepth = int(depth)
	if cfg.RateLimitPerMinute, err = getEnvInt("RATE_LIMIT_PER_MINUTE", 30); err != nil {
		errs = append(errs, err.Error())
	}
	concurrency, err := getEnvInt("WORKER_CONCURRENCY", 10)
	if err != nil {
		errs = append(errs, err.Error())
	}
	cfg.WorkerConcurrency = int(concurrency)
	if cfg.SnapshotRetention, err = getEnvDuration("SNAPSHOT_RETENTION", 90*24*time.Hour); err != nil {
		errs = append(errs, err.Error())
	}
	if cfg.PruneInterval, err = getEnvDuration("SNAPSHOT_PRUNE_INTERVAL", 24*time.Hour); err != nil {
		errs = append(errs, err.Error())
	}
	if cfg.Session.TTL, err = getEnvDuration("SESSION_TTL", 24*time.Hour); err != nil {
		errs = append(errs, err.Error())
	}
	if cfg.Session.CookieSecure, err = getEnvBool("COOKIE_SECURE", false); err != nil {
		errs = append(errs, err.Error())
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}

	if cfg.Session.Secret == "" {
		secret, err := utils.GenerateRandomAlphaNumeric(48)
		if err != nil {
			return nil, fmt.Errorf("failed to generate session secret: %w", err)
		}
		cfg.Session.Secret = secret
		slog.Warn("SESSION_SECRET not set, using a random secret; sessions will not survive a restart")
	}

	if os.Getenv("FIREBASE_PROJECT_ID") != "" {
		firebaseConfig, err := LoadFirebaseConfig()
		if err != nil {
			return nil, err
		}
		cfg.Firebase = firebaseConfig
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int64) (int64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %q", key, value)
	}
	return n, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %q", key, value)
	}
	return f, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %q", key, value)
	}
	return d, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean: %q", key, value)
	}
	return b, nil
}
