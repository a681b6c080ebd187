package redis

import (
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Options controls how the Redis cache store connects to the server.
type Options struct {
	Addr         string
	Username     string
	Password     string
	DB           int
	TLS          bool
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
}

// ParseURL builds Options from a redis:// or rediss:// URL.
func ParseURL(rawURL string) (Options, error) {
	parsed, err := goredis.ParseURL(rawURL)
	if err != nil {
		return Options{}, fmt.Errorf("redis: parse url: %w", err)
	}
	return Options{
		Addr:         parsed.Addr,
		Username:     parsed.Username,
		Password:     parsed.Password,
		DB:           parsed.DB,
		TLS:          parsed.TLSConfig != nil,
		DialTimeout:  parsed.DialTimeout,
		ReadTimeout:  parsed.ReadTimeout,
		WriteTimeout: parsed.WriteTimeout,
		PoolSize:     parsed.PoolSize,
	}, nil
}

func (o Options) withDefaults() Options {
	if o.Addr == "" {
		o.Addr = "127.0.0.1:6379"
	}
	if o.DialTimeout <= 0 {
		o.DialTimeout = 5 * time.Second
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = 2 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 2 * time.Second
	}
	if o.DB < 0 {
		o.DB = 0
	}
	if o.PoolSize <= 0 {
		o.PoolSize = 8
	}
	return o
}
