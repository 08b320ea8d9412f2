package telegram

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/m3rciful/convoflow/core/telegram/netutil"
)

// ClientOptions tunes the HTTP client used for Bot API calls. Zero
// values fall back to defaults suited for long polling.
type ClientOptions struct {
	// Timeout bounds a single API call including the long-poll wait.
	Timeout time.Duration
	// RetryLimit is the number of extra attempts after a transient
	// transport failure.
	RetryLimit int
	// RetryBackoff multiplies with the attempt number between retries.
	RetryBackoff time.Duration
}

func (o ClientOptions) withDefaults() ClientOptions {
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	if o.RetryLimit < 0 {
		o.RetryLimit = 0
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 2 * time.Second
	}
	return o
}

// BuildHTTPClient returns an HTTP client for the Bot API with pooled
// connections and transparent retries of transient transport failures.
func BuildHTTPClient(opts ClientOptions) *http.Client {
	opts = opts.withDefaults()
	return &http.Client{
		Timeout: opts.Timeout,
		Transport: &retryingTransport{
			next:    apiTransport(),
			limit:   opts.RetryLimit,
			backoff: opts.RetryBackoff,
		},
	}
}

func apiTransport() *http.Transport {
	dialer := &net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: 5 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
}

// retryingTransport re-issues requests that failed with a transient
// network error. Requests whose body cannot be replayed are never
// retried.
type retryingTransport struct {
	next    http.RoundTripper
	limit   int
	backoff time.Duration
}

func (t *retryingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.next.RoundTrip(req)
	if err == nil || !netutil.ShouldRetry(err) || !replayable(req) {
		return resp, err
	}

	for attempt := 1; attempt <= t.limit; attempt++ {
		if werr := sleepCtx(req.Context(), t.backoff*time.Duration(attempt)); werr != nil {
			return nil, werr
		}
		retry, rerr := rewound(req)
		if rerr != nil {
			return nil, rerr
		}
		resp, err = t.next.RoundTrip(retry)
		if err == nil || !netutil.ShouldRetry(err) {
			return resp, err
		}
	}
	return nil, err
}

// replayable reports whether the request body can be produced again.
func replayable(req *http.Request) bool {
	return req.Body == nil || req.GetBody != nil
}

// rewound clones the request with a fresh body for the next attempt.
func rewound(req *http.Request) (*http.Request, error) {
	clone := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		clone.Body = body
	}
	return clone, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
