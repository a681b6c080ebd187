package httpx

import "net/http"

const (
	StatusOK               = http.StatusOK                  // Successful request
	StatusBadRequest       = http.StatusBadRequest          // Validation or malformed input
	StatusNotFound         = http.StatusNotFound            // Resource not found
	StatusMethodNotAllowed = http.StatusMethodNotAllowed    // Path matched, verb did not
	StatusTooManyRequests  = http.StatusTooManyRequests     // Rate limiting or quotas
	StatusInternalError    = http.StatusInternalServerError // Unexpected server error
	StatusBadGateway       = http.StatusBadGateway          // Upstream store failed
)
