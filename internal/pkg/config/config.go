package config

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

const envProduction = "production"

type Config struct {
	Port      string `env:"PORT,       default=4000"`
	Env       string `env:"ENV,        default=development"`
	LogLevel  string `env:"LOG_LEVEL,  default=info"`
	APIPrefix string `env:"API_PREFIX, default=/api/v1"`

	Session SessionConfig
	HTTP    HTTPConfig
	Limits  LimitsConfig
	Audit   AuditConfig
	Mongo   MongoConfig
	Redis   RedisConfig
}

type SessionConfig struct {
	Secret string        `env:"SESSION_SECRET"`
	TTL    time.Duration `env:"SESSION_TTL, default=12h"`
	// CookieSecure is left empty to follow ENV: secure cookies in production only.
	CookieSecure   string `env:"COOKIE_SECURE"`
	CookieSameSite string `env:"COOKIE_SAMESITE, default=none"`
}

type HTTPConfig struct {
	CORSOrigin      string        `env:"CORS_ORIGIN,      default=*"`
	CORSCredentials bool          `env:"CORS_CREDENTIALS, default=false"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT,  default=15s"`
	EnableHSTS      bool          `env:"ENABLE_HSTS,      default=false"`
	BodyLimit       string        `env:"BODY_LIMIT,       default=1M"`
}

type LimitsConfig struct {
	LoginAttempts int           `env:"LOGIN_RATE_LIMIT,    default=50"`
	LoginWindow   time.Duration `env:"LOGIN_RATE_WINDOW,   default=10m"`
	APIPerSecond  float64       `env:"API_RATE_PER_SECOND, default=20"`
	APIBurst      int           `env:"API_RATE_BURST,      default=40"`
}

type AuditConfig struct {
	Workers int `env:"AUDIT_WORKERS, default=4"`
	Buffer  int `env:"AUDIT_BUFFER,  default=1024"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=fieldops"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR,     default=localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB,       default=0"`
}

// Load reads a .env file when one is present outside production, then the
// process environment, and validates the result.
func Load(ctx context.Context) (*Config, error) {
	if !strings.EqualFold(strings.TrimSpace(envLookup("ENV")), envProduction) {
		_ = godotenv.Load()
	}
	return LoadFrom(ctx, envconfig.OsLookuper())
}

// LoadFrom builds a Config from l. Tests pass a map lookuper.
func LoadFrom(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg.Session.CookieSameSite = strings.ToLower(strings.TrimSpace(cfg.Session.CookieSameSite))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the server cannot run safely with.
func (c *Config) Validate() error {
	var errs []error
	if len(c.Session.Secret) < 16 {
		errs = append(errs, errors.New("SESSION_SECRET must be at least 16 characters"))
	}
	switch c.Session.CookieSameSite {
	case "lax", "strict", "none":
	default:
		errs = append(errs, fmt.Errorf("COOKIE_SAMESITE must be one of lax, strict, none (got %q)", c.Session.CookieSameSite))
	}
	if c.Session.CookieSecure != "" {
		if _, err := strconv.ParseBool(c.Session.CookieSecure); err != nil {
			errs = append(errs, fmt.Errorf("COOKIE_SECURE must be a boolean (got %q)", c.Session.CookieSecure))
		}
	}
	if c.HTTP.CORSCredentials && c.HTTP.CORSOrigin == "*" {
		errs = append(errs, errors.New("CORS_CREDENTIALS cannot be used with CORS_ORIGIN=*"))
	}
	if c.Session.TTL <= 0 || c.HTTP.RequestTimeout <= 0 || c.Limits.LoginWindow <= 0 {
		errs = append(errs, errors.New("SESSION_TTL, REQUEST_TIMEOUT and LOGIN_RATE_WINDOW must be positive"))
	}
	if c.Limits.LoginAttempts <= 0 {
		errs = append(errs, errors.New("LOGIN_RATE_LIMIT must be positive"))
	}
	if !strings.HasPrefix(c.APIPrefix, "/") {
		errs = append(errs, fmt.Errorf("API_PREFIX must start with / (got %q)", c.APIPrefix))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, envProduction)
}

// SecureCookies reports whether the session cookie carries the Secure flag.
func (c *Config) SecureCookies() bool {
	if c.Session.CookieSecure == "" {
		return c.IsProduction()
	}
	v, _ := strconv.ParseBool(c.Session.CookieSecure)
	return v
}

// CORSOrigins splits CORS_ORIGIN on commas.
func (c *Config) CORSOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.HTTP.CORSOrigin, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

func envLookup(key string) string {
	v, _ := envconfig.OsLookuper().Lookup(key)
	return v
}
