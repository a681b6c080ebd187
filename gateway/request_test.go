package gateway

import (
	"errors"
	"strings"
	"testing"
)

func TestDecodeWriteRequest(t *testing.T) {
	u := func(v uint64) *uint64 { return &v }

	tests := []struct {
		name    string
		body    string
		want    WriteRequest
		wantTTL *uint64
	}{
		{name: "minimal", body: `{"key":"a","value":"b"}`, want: WriteRequest{Key: "a", Value: "b"}},
		{name: "empty options", body: `{"key":"a","value":"b","options":{}}`, want: WriteRequest{Key: "a", Value: "b"}},
		{name: "null ttl", body: `{"key":"a","value":"b","options":{"ttl":null}}`, want: WriteRequest{Key: "a", Value: "b"}},
		{name: "ttl", body: `{"key":"a","value":"b","options":{"ttl":60}}`, want: WriteRequest{Key: "a", Value: "b"}, wantTTL: u(60)},
		{name: "ttl zero", body: `{"key":"a","value":"b","options":{"ttl":0}}`, want: WriteRequest{Key: "a", Value: "b"}, wantTTL: u(0)},
		{name: "surrounding whitespace", body: "\n {\"key\":\"a\",\"value\":\"b\"} \n", want: WriteRequest{Key: "a", Value: "b"}},
		{name: "unicode", body: `{"key":"ключ","value":"значение"}`, want: WriteRequest{Key: "ключ", Value: "значение"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeWriteRequest(strings.NewReader(tt.body))
			if err != nil {
				t.Fatalf("DecodeWriteRequest() error = %v", err)
			}
			if got.Key != tt.want.Key || got.Value != tt.want.Value {
				t.Fatalf("DecodeWriteRequest() = %q/%q, want %q/%q", got.Key, got.Value, tt.want.Key, tt.want.Value)
			}
			ttl := got.TTL()
			switch {
			case tt.wantTTL == nil && ttl != nil:
				t.Fatalf("TTL() = %d, want nil", *ttl)
			case tt.wantTTL != nil && (ttl == nil || *ttl != *tt.wantTTL):
				t.Fatalf("TTL() = %v, want %d", ttl, *tt.wantTTL)
			}
		})
	}
}

func TestDecodeWriteRequestRejects(t *testing.T) {
	bodies := map[string]string{
		"empty":          ``,
		"malformed":      `{"key":`,
		"array":          `["a","b"]`,
		"missing value":  `{"key":"a"}`,
		"missing key":    `{"value":"a"}`,
		"null value":     `{"key":"a","value":null}`,
		"empty key":      `{"key":"","value":"a"}`,
		"numeric value":  `{"key":"a","value":1}`,
		"string ttl":     `{"key":"a","value":"b","options":{"ttl":"soon"}}`,
		"negative ttl":   `{"key":"a","value":"b","options":{"ttl":-5}}`,
		"fractional ttl": `{"key":"a","value":"b","options":{"ttl":2.5}}`,
		"options string": `{"key":"a","value":"b","options":"x"}`,
		"trailing data":  `{"key":"a","value":"b"} {}`,
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeWriteRequest(strings.NewReader(body))
			if !errors.Is(err, ErrBadRequest) {
				t.Fatalf("DecodeWriteRequest(%q) error = %v, want ErrBadRequest", body, err)
			}
		})
	}
}
