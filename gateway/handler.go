package gateway

import (
	"errors"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/adeilh/kvgate/binding"
	"github.com/adeilh/kvgate/config"
	"github.com/adeilh/kvgate/httpx"
	"github.com/adeilh/kvgate/metrics"
)

// Handler serves GET /:key, PUT / and DELETE /:key against one binding.
// The store is resolved from the Env on every request.
type Handler struct {
	env        *binding.Env
	binding    string
	translator Translator
	logger     *zap.Logger
	metrics    *metrics.Recorder
}

// Option configures a Handler.
type Option func(*Handler)

// WithBinding overrides the binding name (default KV_CACHE).
func WithBinding(name string) Option {
	return func(h *Handler) {
		if name != "" {
			h.binding = name
		}
	}
}

// WithFailureMode selects how store failures map onto statuses.
func WithFailureMode(mode config.FailureMode) Option {
	return func(h *Handler) {
		if mode != "" {
			h.translator.Mode = mode
		}
	}
}

// WithLogger sets the logger for binding and store diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithMetrics records store outcomes on recorder.
func WithMetrics(recorder *metrics.Recorder) Option {
	return func(h *Handler) { h.metrics = recorder }
}

// NewHandler serves the binding resolved from env.
func NewHandler(env *binding.Env, opts ...Option) *Handler {
	h := &Handler{
		env:        env,
		binding:    config.BindingName,
		translator: Translator{Mode: config.FailureLegacy},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Read handles GET /:key.
func (h *Handler) Read(c httpx.Context) error {
	key, err := pathKey(c)
	if err != nil {
		return err
	}
	if key == "" {
		return render(c, h.translator.MissingKey())
	}
	client, err := h.client(c)
	if err != nil {
		return render(c, h.translator.Unavailable())
	}
	out := client.Get(c.Request().Context(), key)
	return render(c, h.translator.Read(key, out))
}

// Write handles PUT / with a JSON body of key, value and optional options.ttl.
// The body is validated before the binding is touched.
func (h *Handler) Write(c httpx.Context) error {
	req, err := DecodeWriteRequest(c.Request().Body)
	if err != nil {
		h.logger.Debug("rejected write body", zap.Error(err))
		return render(c, h.translator.BadRequest())
	}
	client, err := h.client(c)
	if err != nil {
		return render(c, h.translator.Unavailable())
	}
	out := client.Put(c.Request().Context(), req.Key, req.Value, req.TTL())
	return render(c, h.translator.Write(out))
}

// Delete handles DELETE /:key.
func (h *Handler) Delete(c httpx.Context) error {
	key, err := pathKey(c)
	if err != nil {
		return err
	}
	if key == "" {
		return render(c, h.translator.MissingKey())
	}
	client, err := h.client(c)
	if err != nil {
		return render(c, h.translator.Unavailable())
	}
	out := client.Delete(c.Request().Context(), key)
	return render(c, h.translator.Delete(key, out))
}

func (h *Handler) client(c httpx.Context) (*Client, error) {
	store, err := h.env.KV(c.Request().Context(), h.binding)
	if err != nil {
		fields := []zap.Field{zap.String("binding", h.binding), zap.Error(err)}
		if errors.Is(err, binding.ErrBindingNotFound) {
			h.logger.Error("store binding is not configured", fields...)
		} else {
			h.logger.Error("store binding unavailable", fields...)
		}
		return nil, err
	}
	return NewClient(store, h.logger, h.metrics), nil
}

// pathKey returns the decoded first path segment. echo's trailing param
// captures the rest of the path, so a literal slash means the request has
// more than one segment and is left to the not-found handler. The router
// matches on the raw path when escapes change the path, so the parameter is
// unescaped here in that case.
func pathKey(c httpx.Context) (string, error) {
	key := c.Param("key")
	if strings.Contains(key, "/") {
		return "", echo.ErrNotFound
	}
	if c.Request().URL.RawPath != "" {
		decoded, err := url.PathUnescape(key)
		if err != nil {
			return "", echo.ErrNotFound
		}
		key = decoded
	}
	return key, nil
}

func render(c httpx.Context, r Response) error {
	return c.String(r.Status, r.Body)
}
