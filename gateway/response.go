package gateway

import (
	"github.com/adeilh/kvgate/config"
	"github.com/adeilh/kvgate/httpx"
)

// Plain-text bodies written by the gateway handlers.
const (
	// BodySet answers a successful PUT.
	BodySet = "Value was successfully set"
	// BodyDeleted answers a successful DELETE.
	BodyDeleted = "Value was successfully deleted"
	// BodyBadRequest answers a PUT body that fails validation.
	BodyBadRequest = "Bad request"
	// BodyInternalError answers a write failure or an unavailable binding.
	BodyInternalError = "Internal server error"
	// BodyBadGateway answers a backend failure in the unified failure mode.
	BodyBadGateway = "Bad gateway"
	// BodyKeyNotFound answers a read or delete with an empty key; with a
	// ": <key>" suffix it answers an absent key.
	BodyKeyNotFound = "key not found"
)

const (
	keyNotFoundPrefix      = BodyKeyNotFound + ": "
	defaultFailureFallback = "store operation failed"
)

// Response is a rendered status and text/plain body.
type Response struct {
	Status int
	Body   string
}

// Translator maps store outcomes onto HTTP responses.
type Translator struct {
	Mode config.FailureMode
}

func (t Translator) unified() bool { return t.Mode == config.FailureUnified }

// Read renders the outcome of a GET.
func (t Translator) Read(key string, out Outcome) Response {
	switch out.Kind {
	case OutcomeFound:
		return Response{httpx.StatusOK, out.Value}
	case OutcomeNotFound:
		return notFound(key)
	default:
		if t.unified() {
			return badGateway()
		}
		return Response{httpx.StatusNotFound, failureBody(out)}
	}
}

// Write renders the outcome of a PUT that passed validation.
func (t Translator) Write(out Outcome) Response {
	switch out.Kind {
	case OutcomeSuccess:
		return Response{httpx.StatusOK, BodySet}
	default:
		if t.unified() {
			return badGateway()
		}
		return Response{httpx.StatusInternalError, BodyInternalError}
	}
}

// Delete renders the outcome of a DELETE.
func (t Translator) Delete(key string, out Outcome) Response {
	switch out.Kind {
	case OutcomeSuccess:
		return Response{httpx.StatusOK, BodyDeleted}
	case OutcomeNotFound:
		return notFound(key)
	default:
		if t.unified() {
			return badGateway()
		}
		return Response{httpx.StatusNotFound, failureBody(out)}
	}
}

// BadRequest is the response for a write body that fails validation.
func (Translator) BadRequest() Response {
	return Response{httpx.StatusBadRequest, BodyBadRequest}
}

// Unavailable is the response when the store binding cannot be resolved.
func (Translator) Unavailable() Response {
	return Response{httpx.StatusInternalError, BodyInternalError}
}

// MissingKey is the response for a read or delete with an empty key.
func (Translator) MissingKey() Response {
	return Response{httpx.StatusNotFound, BodyKeyNotFound}
}

func notFound(key string) Response {
	return Response{httpx.StatusNotFound, keyNotFoundPrefix + key}
}

func badGateway() Response {
	return Response{httpx.StatusBadGateway, BodyBadGateway}
}

func failureBody(out Outcome) string {
	if out.Err == nil {
		return defaultFailureFallback
	}
	return out.Err.Error()
}
