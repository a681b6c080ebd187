package workerskv

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// DefaultAPIURL is the Cloudflare v4 API root.
const DefaultAPIURL = "https://api.cloudflare.com/client/v4"

// MinTTL is the shortest expiration Workers KV accepts.
const MinTTL = 60 * time.Second

var ErrMissingNamespace = errors.New("workerskv: account and namespace ids are required")

// Options identifies a Workers KV namespace and how to reach it.
type Options struct {
	APIURL      string
	AccountID   string
	NamespaceID string
	Token       string
	Timeout     time.Duration
}

// ParseURL reads workerskv://<account_id>/<namespace_id>. Token and API URL
// come from configuration, never from the binding URL.
func ParseURL(rawURL string) (Options, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Options{}, fmt.Errorf("workerskv: parse url: %w", err)
	}
	if u.Scheme != "workerskv" {
		return Options{}, fmt.Errorf("workerskv: unsupported scheme %q", u.Scheme)
	}
	opts := Options{
		AccountID:   u.Host,
		NamespaceID: strings.Trim(u.Path, "/"),
	}
	if opts.AccountID == "" || opts.NamespaceID == "" || strings.Contains(opts.NamespaceID, "/") {
		return Options{}, ErrMissingNamespace
	}
	return opts, nil
}

func (o Options) withDefaults() Options {
	if o.APIURL == "" {
		o.APIURL = DefaultAPIURL
	}
	o.APIURL = strings.TrimRight(o.APIURL, "/")
	if o.Timeout <= 0 {
		o.Timeout = 10 * time.Second
	}
	return o
}
