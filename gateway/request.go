package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ErrBadRequest marks a PUT body that does not decode into a WriteRequest.
var ErrBadRequest = errors.New("gateway: bad request")

// WriteRequest is the PUT / body.
type WriteRequest struct {
	Key     string
	Value   string
	Options *WriteOptions
}

// WriteOptions carries the optional per-write settings.
type WriteOptions struct {
	// TTL is seconds until expiration; nil requests none.
	TTL *uint64
}

// TTL returns options.ttl, or nil when either level is absent.
func (r WriteRequest) TTL() *uint64 {
	if r.Options == nil {
		return nil
	}
	return r.Options.TTL
}

type writeBody struct {
	Key     *string      `json:"key"`
	Value   *string      `json:"value"`
	Options *optionsBody `json:"options"`
}

type optionsBody struct {
	TTL *uint64 `json:"ttl"`
}

// DecodeWriteRequest parses a single JSON object from r. Every shape problem
// (malformed JSON, trailing data, missing or null key/value, an empty key,
// wrong types, a negative or fractional ttl) wraps ErrBadRequest.
func DecodeWriteRequest(r io.Reader) (WriteRequest, error) {
	dec := json.NewDecoder(r)
	var body writeBody
	if err := dec.Decode(&body); err != nil {
		return WriteRequest{}, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return WriteRequest{}, fmt.Errorf("%w: trailing data after JSON object", ErrBadRequest)
	}
	if body.Key == nil {
		return WriteRequest{}, fmt.Errorf("%w: missing field key", ErrBadRequest)
	}
	if *body.Key == "" {
		return WriteRequest{}, fmt.Errorf("%w: key must not be empty", ErrBadRequest)
	}
	if body.Value == nil {
		return WriteRequest{}, fmt.Errorf("%w: missing field value", ErrBadRequest)
	}

	req := WriteRequest{Key: *body.Key, Value: *body.Value}
	if body.Options != nil {
		req.Options = &WriteOptions{TTL: body.Options.TTL}
	}
	return req, nil
}
