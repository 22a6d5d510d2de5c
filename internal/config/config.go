package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Netflix/go-env"
)

type Config struct {
	BackendAPIURL          string `env:"BACKEND_API_URL,default=https://api.sbacem.com.br/apidois/api"`
	ExtractorPath          string `env:"EXTRACTOR_PATH,default=extractor"`
	HubVerifyURL           string `env:"HUB_VERIFY_URL,default=https://api.sbacem.com.br/apicentralizadora/auth/verify-session-browser"`
	SystemID               string `env:"SYSTEM_ID,default=2"`
	PublicBaseURL          string `env:"PUBLIC_BASE_URL,default=http://localhost:8080"`
	PollIntervalMS         int    `env:"POLL_INTERVAL_MS,default=2000"`
	ConsolidateConcurrency int    `env:"CONSOLIDATE_CONCURRENCY,default=4"`
	RequestTimeoutSec      int    `env:"REQUEST_TIMEOUT_SEC,default=0"`
	SessionCookie          string `env:"SESSION_COOKIE"`
	APIPort                int    `env:"API_PORT,default=8080"`
	LogLevel               string `env:"LOG_LEVEL,default=info"`
	LogFormat              string `env:"LOG_FORMAT,default=json"`
	DatabaseDSN            string `env:"DATABASE_DSN"`
	RedisURL               string `env:"REDIS_URL"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	for name, raw := range map[string]string{
		"BACKEND_API_URL": c.BackendAPIURL,
		"HUB_VERIFY_URL":  c.HubVerifyURL,
		"PUBLIC_BASE_URL": c.PublicBaseURL,
	} {
		if err := validateAbsoluteURL(raw); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}
	if strings.TrimSpace(c.SystemID) == "" {
		return fmt.Errorf("SYSTEM_ID is required")
	}
	if c.PollIntervalMS <= 0 {
		return fmt.Errorf("POLL_INTERVAL_MS must be positive, got %d", c.PollIntervalMS)
	}
	if c.ConsolidateConcurrency <= 0 {
		return fmt.Errorf("CONSOLIDATE_CONCURRENCY must be positive, got %d", c.ConsolidateConcurrency)
	}
	if c.RequestTimeoutSec < 0 {
		return fmt.Errorf("REQUEST_TIMEOUT_SEC must not be negative, got %d", c.RequestTimeoutSec)
	}
	if cookie := strings.TrimSpace(c.SessionCookie); cookie != "" && !strings.Contains(cookie, "=") {
		return fmt.Errorf("SESSION_COOKIE must have the form name=value")
	}
	return nil
}

// ExtractorBaseURL is the root every extraction endpoint is resolved against.
func (c *Config) ExtractorBaseURL() string {
	base := strings.TrimRight(c.BackendAPIURL, "/")
	path := strings.Trim(c.ExtractorPath, "/")
	if path == "" {
		return base
	}
	return base + "/" + path
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// RequestTimeout returns 0 when outbound calls should not time out.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSec) * time.Second
}

// SessionCookiePair splits SESSION_COOKIE into its name and value.
func (c *Config) SessionCookiePair() (string, string, bool) {
	name, value, ok := strings.Cut(strings.TrimSpace(c.SessionCookie), "=")
	if !ok || strings.TrimSpace(name) == "" {
		return "", "", false
	}
	return strings.TrimSpace(name), value, true
}

func validateAbsoluteURL(raw string) error {
	u, err := url.ParseRequestURI(strings.TrimSpace(raw))
	if err != nil {
		return err
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%q is not an absolute URL", raw)
	}
	return nil
}
