package httpx

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

// HTTPErrorHandler is a function that handles errors during request processing.
type HTTPErrorHandler func(error, Context)

type ServerOptions struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Logger       *zap.Logger
	Middlewares  []MiddlewareFunc
	ErrorHandler HTTPErrorHandler
	CORS         *middleware.CORSConfig
	RateLimit    RateLimit
}

// RateLimit bounds requests per client IP. A zero Rate disables limiting.
type RateLimit struct {
	Rate      float64
	Burst     int
	ExpiresIn time.Duration
}

type ServerOption func(*ServerOptions)

func defaultServerOptions() ServerOptions {
	return ServerOptions{
		Address:      ":8080",
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		Logger:       zap.NewNop(),
		ErrorHandler: DefaultHTTPErrorHandler,
	}
}

func WithAddress(addr string) ServerOption {
	return func(o *ServerOptions) {
		if addr != "" {
			o.Address = addr
		}
	}
}

func WithTimeouts(read, write time.Duration) ServerOption {
	return func(o *ServerOptions) {
		if read > 0 {
			o.ReadTimeout = read
		}
		if write > 0 {
			o.WriteTimeout = write
		}
	}
}

// WithLogger sets the logger used for access logs and recovered panics.
func WithLogger(logger *zap.Logger) ServerOption {
	return func(o *ServerOptions) {
		if logger != nil {
			o.Logger = logger
		}
	}
}

// AppendMiddlewares appends additional middleware to the existing stack.
func AppendMiddlewares(mw ...MiddlewareFunc) ServerOption {
	return func(o *ServerOptions) {
		if len(mw) > 0 {
			o.Middlewares = append(o.Middlewares, mw...)
		}
	}
}

func WithErrorHandler(handler HTTPErrorHandler) ServerOption {
	return func(o *ServerOptions) {
		if handler != nil {
			o.ErrorHandler = handler
		}
	}
}

// WithCORSOrigins allows browser calls from origins to the gateway verbs.
// No origins leaves CORS disabled.
func WithCORSOrigins(origins ...string) ServerOption {
	return func(o *ServerOptions) {
		if len(origins) == 0 {
			o.CORS = nil
			return
		}
		o.CORS = &middleware.CORSConfig{
			AllowOrigins: append([]string(nil), origins...),
			AllowMethods: []string{http.MethodGet, http.MethodPut, http.MethodDelete},
			AllowHeaders: []string{echo.HeaderContentType},
		}
	}
}

// WithRateLimit enables per-IP rate limiting when rate > 0.
func WithRateLimit(rate float64, burst int) ServerOption {
	return func(o *ServerOptions) {
		if rate <= 0 {
			o.RateLimit = RateLimit{}
			return
		}
		if burst <= 0 {
			burst = int(rate)
			if burst < 1 {
				burst = 1
			}
		}
		o.RateLimit = RateLimit{Rate: rate, Burst: burst, ExpiresIn: 3 * time.Minute}
	}
}

type ClientOptions struct {
	BaseURL string
	Timeout time.Duration
	Headers map[string]string
}

type ClientOption func(*ClientOptions)

func defaultClientOptions() ClientOptions {
	return ClientOptions{Timeout: 10 * time.Second, Headers: map[string]string{"Content-Type": "application/json"}}
}

func WithBaseURL(url string) ClientOption {
	return func(o *ClientOptions) {
		if url != "" {
			o.BaseURL = url
		}
	}
}

func WithClientTimeout(d time.Duration) ClientOption {
	return func(o *ClientOptions) {
		if d > 0 {
			o.Timeout = d
		}
	}
}

func WithHeaders(headers map[string]string) ClientOption {
	return func(o *ClientOptions) {
		if len(headers) == 0 {
			return
		}
		o.Headers = make(map[string]string, len(headers))
		for k, v := range headers {
			o.Headers[k] = v
		}
	}
}
