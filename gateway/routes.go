package gateway

import (
	"errors"

	"github.com/labstack/echo/v4"

	"github.com/adeilh/kvgate/httpx"
)

// KeyRoute captures everything after the first slash; the handlers answer
// captures that span more than one segment as unrouted.
const (
	KeyRoute  = "/:key"
	RootRoute = "/"
)

// RoutePatterns lists the registered paths, for labelling metrics.
var RoutePatterns = []string{KeyRoute, RootRoute}

// Routes lists the gateway routes for bulk registration.
func (h *Handler) Routes() []httpx.Route {
	return []httpx.Route{
		{Method: echo.GET, Path: KeyRoute, Handler: h.Read},
		{Method: echo.PUT, Path: RootRoute, Handler: h.Write},
		{Method: echo.DELETE, Path: KeyRoute, Handler: h.Delete},
	}
}

// Register adds the gateway routes to a.
func (h *Handler) Register(a *httpx.App) {
	httpx.RegisterRoutes(a, h.Routes()...)
}

// ErrorHandler reports a method mismatch on a known path as 404, the same as
// an unknown path, then defers to next.
func ErrorHandler(next httpx.HTTPErrorHandler) httpx.HTTPErrorHandler {
	if next == nil {
		next = httpx.DefaultHTTPErrorHandler
	}
	return func(err error, c httpx.Context) {
		var he *echo.HTTPError
		if errors.As(err, &he) && he.Code == httpx.StatusMethodNotAllowed {
			c.Response().Header().Del(echo.HeaderAllow)
			err = echo.ErrNotFound
		}
		next(err, c)
	}
}
