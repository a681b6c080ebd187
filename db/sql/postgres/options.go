package postgres

import (
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// Options configures PostgreSQL connections and pool behavior.
type Options struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	// PurgeInterval is how often Connect's store deletes expired rows.
	// Negative disables the purge loop.
	PurgeInterval time.Duration
}

type Option func(*Options)

// WithDSN sets the lib/pq connection string.
func WithDSN(dsn string) Option {
	return func(o *Options) {
		if dsn != "" {
			o.DSN = dsn
		}
	}
}

// WithMaxOpenConns controls the maximum number of open connections.
func WithMaxOpenConns(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.MaxOpenConns = n
		}
	}
}

// WithMaxIdleConns controls the idle connection pool size.
func WithMaxIdleConns(n int) Option {
	return func(o *Options) {
		if n >= 0 {
			o.MaxIdleConns = n
		}
	}
}

// WithConnMaxLifetime controls how long a connection can be reused.
func WithConnMaxLifetime(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.ConnMaxLifetime = d
		}
	}
}

// WithPurgeInterval sets how often expired rows are deleted; d < 0 disables.
func WithPurgeInterval(d time.Duration) Option {
	return func(o *Options) {
		if d != 0 {
			o.PurgeInterval = d
		}
	}
}

// Pool and purge keys accepted in a binding URL query. They are stripped
// before the URL reaches lib/pq, which would forward them to the server as
// runtime parameters.
const (
	queryMaxOpenConns    = "max_open_conns"
	queryMaxIdleConns    = "max_idle_conns"
	queryConnMaxLifetime = "conn_max_lifetime"
	queryPurgeInterval   = "purge_interval"
)

// FromURL turns a postgres:// binding URL into options.
func FromURL(rawURL string) ([]Option, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse url: %w", err)
	}
	q := u.Query()
	var opts []Option
	if v := q.Get(queryMaxOpenConns); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("postgres: %s: %w", queryMaxOpenConns, err)
		}
		opts = append(opts, WithMaxOpenConns(n))
	}
	if v := q.Get(queryMaxIdleConns); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("postgres: %s: %w", queryMaxIdleConns, err)
		}
		opts = append(opts, WithMaxIdleConns(n))
	}
	if v := q.Get(queryConnMaxLifetime); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("postgres: %s: %w", queryConnMaxLifetime, err)
		}
		opts = append(opts, WithConnMaxLifetime(d))
	}
	if v := q.Get(queryPurgeInterval); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("postgres: %s: %w", queryPurgeInterval, err)
		}
		opts = append(opts, WithPurgeInterval(d))
	}
	q.Del(queryMaxOpenConns)
	q.Del(queryMaxIdleConns)
	q.Del(queryConnMaxLifetime)
	q.Del(queryPurgeInterval)
	u.RawQuery = q.Encode()
	return append([]Option{WithDSN(u.String())}, opts...), nil
}

func defaultOptions() Options {
	return Options{
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
		PurgeInterval:   5 * time.Minute,
	}
}

func resolveOptions(opts ...Option) Options {
	cfg := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}
