// Package config loads service settings from an optional .env file and the
// process environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// BindingName is the store binding the gateway serves.
const BindingName = "KV_CACHE"

// FailureMode selects how store failures map onto HTTP statuses.
type FailureMode string

const (
	// FailureLegacy keeps read/delete failures at 404 and write failures at 500.
	FailureLegacy FailureMode = "legacy"
	// FailureUnified reports absent keys as 404 and backend errors as 502.
	FailureUnified FailureMode = "unified"
)

type Config struct {
	Addr            string
	MetricsAddr     string
	Bindings        map[string]string
	FailureMode     FailureMode
	LogLevel        string
	LogFormat       string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	RateLimit       float64
	RateBurst       int
	WorkersKVToken  string
	WorkersKVAPIURL string
	CORSOrigins     []string
}

func defaults() Config {
	return Config{
		Addr:            ":8080",
		FailureMode:     FailureLegacy,
		LogLevel:        "info",
		LogFormat:       "json",
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    15 * time.Second,
		ShutdownTimeout: 5 * time.Second,
	}
}

// Load reads envFile (if it exists) into the environment without overriding
// variables already set, then builds a Config. An empty envFile skips the
// file step.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("config: load %s: %w", envFile, err)
		}
	}
	return FromLookup(os.LookupEnv)
}

// FromLookup builds a Config from any variable source.
func FromLookup(lookup func(string) (string, bool)) (Config, error) {
	cfg := defaults()
	p := parser{lookup: lookup}

	cfg.Addr = p.str("KVGATE_ADDR", cfg.Addr)
	cfg.MetricsAddr = p.str("KVGATE_METRICS_ADDR", cfg.MetricsAddr)
	cfg.Bindings = map[string]string{BindingName: p.str(BindingName, "")}
	cfg.FailureMode = FailureMode(strings.ToLower(p.str("KV_FAILURE_MODE", string(cfg.FailureMode))))
	cfg.LogLevel = p.str("KVGATE_LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = p.str("KVGATE_LOG_FORMAT", cfg.LogFormat)
	cfg.ReadTimeout = p.duration("KVGATE_READ_TIMEOUT", cfg.ReadTimeout)
	cfg.WriteTimeout = p.duration("KVGATE_WRITE_TIMEOUT", cfg.WriteTimeout)
	cfg.ShutdownTimeout = p.duration("KVGATE_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	cfg.RateLimit = p.float("KVGATE_RATE_LIMIT", 0)
	cfg.RateBurst = p.int("KVGATE_RATE_BURST", 0)
	cfg.WorkersKVToken = p.str("WORKERS_KV_API_TOKEN", "")
	cfg.WorkersKVAPIURL = p.str("WORKERS_KV_API_URL", "")
	cfg.CORSOrigins = p.list("KVGATE_CORS_ORIGINS")

	if err := p.err(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that parse but make no sense. A missing KV_CACHE is
// not an error here: it surfaces on the first request that needs the store.
func (c Config) Validate() error {
	var errs []error
	switch c.FailureMode {
	case FailureLegacy, FailureUnified:
	default:
		errs = append(errs, fmt.Errorf("config: KV_FAILURE_MODE must be %q or %q, got %q", FailureLegacy, FailureUnified, c.FailureMode))
	}
	if c.Addr == "" {
		errs = append(errs, errors.New("config: KVGATE_ADDR must not be empty"))
	}
	if c.MetricsAddr != "" && c.MetricsAddr == c.Addr {
		errs = append(errs, errors.New("config: KVGATE_METRICS_ADDR must differ from KVGATE_ADDR"))
	}
	if c.RateLimit < 0 || c.RateBurst < 0 {
		errs = append(errs, errors.New("config: rate limit settings must not be negative"))
	}
	return errors.Join(errs...)
}

type parser struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (p *parser) str(key, def string) string {
	if v, ok := p.lookup(key); ok {
		return strings.TrimSpace(v)
	}
	return def
}

// list splits a comma-separated value, dropping empty items.
func (p *parser) list(key string) []string {
	var out []string
	for _, item := range strings.Split(p.str(key, ""), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	v := p.str(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		// Bare integers are seconds.
		n, convErr := strconv.Atoi(v)
		if convErr != nil {
			p.errs = append(p.errs, fmt.Errorf("config: %s: %w", key, err))
			return def
		}
		d = time.Duration(n) * time.Second
	}
	return d
}

func (p *parser) float(key string, def float64) float64 {
	v := p.str(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("config: %s: %w", key, err))
		return def
	}
	return f
}

func (p *parser) int(key string, def int) int {
	v := p.str(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("config: %s: %w", key, err))
		return def
	}
	return n
}

func (p *parser) err() error { return errors.Join(p.errs...) }
