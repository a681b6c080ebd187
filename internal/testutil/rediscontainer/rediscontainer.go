package rediscontainer

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/adeilh/kvgate/internal/testutil/container"
)

var redis = &container.Container{
	Name:          "kvgate-redis-test",
	Image:         "redis:7-alpine",
	HostPort:      "6390",
	ContainerPort: "6379",
	ReadyTimeout:  5 * time.Second,
	Ready:         ping,
}

// Addr exposes the Redis host:port combination used by integration tests.
func Addr() string { return redis.Addr() }

// URL is Addr as a redis:// binding URL.
func URL() string { return "redis://" + Addr() + "/0" }

// Setup runs the Redis container and waits until it answers PING.
func Setup() error { return redis.Setup() }

// Teardown stops the Redis container if it is running.
func Teardown() error { return redis.Teardown() }

func ping(addr string) error {
	client := goredis.NewClient(&goredis.Options{Addr: addr, DialTimeout: 200 * time.Millisecond})
	defer client.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	return client.Ping(ctx).Err()
}
