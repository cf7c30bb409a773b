// config/config.go
package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	PhotoStorageInline = "inline"
	PhotoStorageR2     = "r2"
)

// Config holds everything the server reads from the environment.
type Config struct {
	Port           string   `env:"PORT" envDefault:"5000"`
	Env            string   `env:"APP_ENV" envDefault:"development"`
	DatabaseURL    string   `env:"DATABASE_URL,required"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:5000"`
	LogLevel       string   `env:"LOG_LEVEL" envDefault:"info"`
	StaticDir      string   `env:"STATIC_DIR" envDefault:"./dist/public"`

	FacePP  FacePPConfig
	Scoring ScoringConfig

	UploadLimitBytes int64 `env:"UPLOAD_LIMIT_BYTES" envDefault:"52428800"`

	SessionTTL    time.Duration `env:"SESSION_TTL" envDefault:"720h"`
	SessionCookie string        `env:"SESSION_COOKIE" envDefault:"sid"`

	PhotoStorage string `env:"PHOTO_STORAGE" envDefault:"inline"`
	R2           R2Config

	RedisURL     string `env:"REDIS_URL"`
	RedisChannel string `env:"REDIS_CHANNEL" envDefault:"match-events"`

	SessionPurgeInterval  time.Duration `env:"SESSION_PURGE_INTERVAL" envDefault:"1h"`
	FeedbackFlushInterval time.Duration `env:"FEEDBACK_FLUSH_INTERVAL" envDefault:"1m"`
	ObserverSweepInterval time.Duration `env:"OBSERVER_SWEEP_INTERVAL" envDefault:"30s"`
}

// FacePPConfig are the Face++ detect API credentials.
type FacePPConfig struct {
	APIKey    string `env:"FACEPP_API_KEY"`
	APISecret string `env:"FACEPP_API_SECRET"`
	BaseURL   string `env:"FACEPP_BASE_URL" envDefault:"https://api-us.faceplusplus.com/facepp/v3"`
}

// ScoringConfig tunes the retry wrapper and the pacing between the two compare calls.
type ScoringConfig struct {
	MaxAttempts   int           `env:"SCORE_MAX_ATTEMPTS" envDefault:"3"`
	RetryBackoff  time.Duration `env:"SCORE_RETRY_BACKOFF" envDefault:"1s"`
	ComparePacing time.Duration `env:"COMPARE_PACING" envDefault:"500ms"`
	HTTPTimeout   time.Duration `env:"SCORE_HTTP_TIMEOUT" envDefault:"30s"`
}

// R2Config mirrors the Cloudflare R2 bucket settings.
type R2Config struct {
	AccountID       string `env:"CLOUDFLARE_ACCOUNT_ID"`
	AccessKeyID     string `env:"R2_ACCESS_KEY_ID"`
	AccessKeySecret string `env:"R2_ACCESS_KEY_SECRET"`
	Bucket          string `env:"R2_BUCKET_NAME"`
	CDNBaseURL      string `env:"CDN_BASE_URL"`
}

// Load reads .env (when present) and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return finalize(&cfg)
}

// LoadFrom parses config from an explicit environment map.
func LoadFrom(environ map[string]string) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return finalize(&cfg)
}

func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

func finalize(cfg *Config) (*Config, error) {
	cfg.Env = strings.ToLower(strings.TrimSpace(cfg.Env))
	cfg.PhotoStorage = strings.ToLower(strings.TrimSpace(cfg.PhotoStorage))

	origins := cfg.AllowedOrigins[:0]
	for _, o := range cfg.AllowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	cfg.AllowedOrigins = origins

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error

	if c.Env != EnvDevelopment && c.Env != EnvProduction {
		errs = append(errs, fmt.Errorf("APP_ENV must be %q or %q, got %q", EnvDevelopment, EnvProduction, c.Env))
	}
	if c.IsProduction() && (c.FacePP.APIKey == "" || c.FacePP.APISecret == "") {
		errs = append(errs, errors.New("FACEPP_API_KEY and FACEPP_API_SECRET are required in production"))
	}
	if c.Scoring.MaxAttempts < 1 {
		errs = append(errs, errors.New("SCORE_MAX_ATTEMPTS must be at least 1"))
	}
	if c.Scoring.RetryBackoff < 0 || c.Scoring.ComparePacing < 0 {
		errs = append(errs, errors.New("SCORE_RETRY_BACKOFF and COMPARE_PACING must not be negative"))
	}
	if c.UploadLimitBytes <= 0 {
		errs = append(errs, errors.New("UPLOAD_LIMIT_BYTES must be positive"))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}

	switch c.PhotoStorage {
	case PhotoStorageInline:
	case PhotoStorageR2:
		if c.R2.AccountID == "" || c.R2.AccessKeyID == "" || c.R2.AccessKeySecret == "" || c.R2.Bucket == "" {
			errs = append(errs, errors.New("PHOTO_STORAGE=r2 requires CLOUDFLARE_ACCOUNT_ID, R2_ACCESS_KEY_ID, R2_ACCESS_KEY_SECRET and R2_BUCKET_NAME"))
		}
	default:
		errs = append(errs, fmt.Errorf("PHOTO_STORAGE must be %q or %q, got %q", PhotoStorageInline, PhotoStorageR2, c.PhotoStorage))
	}

	return errors.Join(errs...)
}
