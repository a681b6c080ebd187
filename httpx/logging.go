package httpx

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

// RegionHeader carries the caller's edge location when the service runs
// behind Cloudflare; it is logged when present.
const RegionHeader = "CF-IPCountry"

// RequestIDMiddleware tags each request with an X-Request-ID (uuid v4 unless
// the caller supplied one).
func RequestIDMiddleware() MiddlewareFunc {
	return middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	})
}

// AccessLogMiddleware writes one structured log line per request.
func AccessLogMiddleware(logger *zap.Logger) MiddlewareFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	regionKey := http.CanonicalHeaderKey(RegionHeader)
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURIPath:   true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogUserAgent: true,
		LogError:     true,
		HandleError:  true,
		LogHeaders:   []string{RegionHeader},
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("path", v.URIPath),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("remote_ip", v.RemoteIP),
				zap.String("request_id", v.RequestID),
				zap.String("user_agent", v.UserAgent),
			}
			if region := v.Headers[regionKey]; len(region) > 0 {
				fields = append(fields, zap.String("region", region[0]))
			}
			if v.Error != nil {
				fields = append(fields, zap.Error(v.Error))
			}
			switch {
			case v.Status >= StatusInternalError:
				logger.Error("request", fields...)
			case v.Status >= StatusBadRequest:
				logger.Warn("request", fields...)
			default:
				logger.Info("request", fields...)
			}
			return nil
		},
	})
}
