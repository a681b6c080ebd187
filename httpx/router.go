package httpx

import (
	"strings"
)

// Route represents a single HTTP route definition.
type Route struct {
	Method     string
	Path       string
	Handler    HandlerFunc
	Middleware []MiddlewareFunc
}

// RegisterRoutes applies a list of Route definitions to the App instance and
// reports how many were registered. Incomplete definitions are skipped.
func RegisterRoutes(a *App, routes ...Route) int {
	if a == nil || a.e == nil {
		return 0
	}
	n := 0
	for _, r := range routes {
		if r.Handler == nil || r.Path == "" || r.Method == "" {
			continue
		}
		a.e.Add(strings.ToUpper(r.Method), r.Path, r.Handler, r.Middleware...)
		n++
	}
	return n
}
