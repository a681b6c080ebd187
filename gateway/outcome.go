package gateway

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/adeilh/kvgate/cache"
	"github.com/adeilh/kvgate/metrics"
)

// OutcomeKind tags the result of one store operation.
type OutcomeKind int

const (
	OutcomeFailure OutcomeKind = iota
	OutcomeFound
	OutcomeNotFound
	OutcomeSuccess
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeFound:
		return "found"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeSuccess:
		return "success"
	}
	return "failure"
}

// Outcome is Found(Value), NotFound, Success or Failure(Err).
type Outcome struct {
	Kind  OutcomeKind
	Value string
	Err   error
}

// Found reports a read that returned value.
func Found(value string) Outcome { return Outcome{Kind: OutcomeFound, Value: value} }

// NotFound reports a key the store does not hold.
func NotFound() Outcome { return Outcome{Kind: OutcomeNotFound} }

// Success reports a completed write or delete.
func Success() Outcome { return Outcome{Kind: OutcomeSuccess} }

// Failure reports a store error other than absence.
func Failure(err error) Outcome { return Outcome{Kind: OutcomeFailure, Err: err} }

// Client performs exactly one attempt per call against a store and reports
// the result as an Outcome. It never retries and never caches.
type Client struct {
	store   cache.Store
	logger  *zap.Logger
	metrics *metrics.Recorder
}

// NewClient wraps store; logger and recorder may be nil.
func NewClient(store cache.Store, logger *zap.Logger, recorder *metrics.Recorder) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{store: store, logger: logger, metrics: recorder}
}

// Get reads key as text.
func (c *Client) Get(ctx context.Context, key string) Outcome {
	start := time.Now()
	payload, err := c.store.Get(ctx, key)
	var out Outcome
	switch {
	case errors.Is(err, cache.ErrNotFound):
		out = NotFound()
	case err != nil:
		out = Failure(err)
	default:
		out = Found(string(payload))
	}
	return c.observe("get", key, start, out)
}

// Put writes value. A nil ttl requests no expiration; otherwise the entry
// expires ttl seconds after the write and any earlier expiration is replaced.
func (c *Client) Put(ctx context.Context, key, value string, ttl *uint64) Outcome {
	start := time.Now()
	var expiry time.Duration
	if ttl != nil {
		expiry = ttlDuration(*ttl)
	}
	out := Success()
	if err := c.store.Set(ctx, key, []byte(value), expiry); err != nil {
		out = Failure(err)
	}
	return c.observe("put", key, start, out)
}

// Delete removes key.
func (c *Client) Delete(ctx context.Context, key string) Outcome {
	start := time.Now()
	err := c.store.Delete(ctx, key)
	var out Outcome
	switch {
	case errors.Is(err, cache.ErrNotFound):
		out = NotFound()
	case err != nil:
		out = Failure(err)
	default:
		out = Success()
	}
	return c.observe("delete", key, start, out)
}

func (c *Client) observe(op, key string, start time.Time, out Outcome) Outcome {
	elapsed := time.Since(start)
	c.metrics.ObserveStore(op, out.Kind.String(), elapsed)
	if out.Kind == OutcomeFailure {
		c.logger.Warn("store operation failed",
			zap.String("op", op),
			zap.String("key", key),
			zap.Duration("elapsed", elapsed),
			zap.Error(out.Err),
		)
		return out
	}
	c.logger.Debug("store operation",
		zap.String("op", op),
		zap.String("key", key),
		zap.String("outcome", out.Kind.String()),
		zap.Duration("elapsed", elapsed),
	)
	return out
}

// maxTTLSeconds keeps ttl * time.Second inside time.Duration.
const maxTTLSeconds = uint64(1<<63-1) / uint64(time.Second)

func ttlDuration(seconds uint64) time.Duration {
	if seconds > maxTTLSeconds {
		seconds = maxTTLSeconds
	}
	return time.Duration(seconds) * time.Second
}
