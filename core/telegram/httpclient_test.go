package telegram

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"
)

type scriptedTransport struct {
	calls int
	errs  []error
}

func (s *scriptedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	s.calls++
	if req.Body != nil {
		// Consume the body like a real transport would.
		_, _ = io.Copy(io.Discard, req.Body)
		_ = req.Body.Close()
	}
	if s.calls <= len(s.errs) && s.errs[s.calls-1] != nil {
		return nil, s.errs[s.calls-1]
	}
	return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody}, nil
}

type transientErr struct{}

func (transientErr) Error() string   { return "i/o timeout" }
func (transientErr) Timeout() bool   { return true }
func (transientErr) Temporary() bool { return true }

func TestRetryingTransportRetriesTransientFailures(t *testing.T) {
	base := &scriptedTransport{errs: []error{transientErr{}, transientErr{}}}
	rt := &retryingTransport{next: base, limit: 2, backoff: time.Millisecond}

	req, _ := http.NewRequest(http.MethodGet, "https://api.telegram.org/getMe", nil)
	resp, err := rt.RoundTrip(req)
	if err != nil {
		t.Fatalf("RoundTrip: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if base.calls != 3 {
		t.Fatalf("attempts = %d, want 3", base.calls)
	}
}

func TestRetryingTransportGivesUpOnPermanentError(t *testing.T) {
	boom := errors.New("401 unauthorized")
	base := &scriptedTransport{errs: []error{boom}}
	rt := &retryingTransport{next: base, limit: 3, backoff: time.Millisecond}

	req, _ := http.NewRequest(http.MethodGet, "https://api.telegram.org/getMe", nil)
	if _, err := rt.RoundTrip(req); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want permanent error", err)
	}
	if base.calls != 1 {
		t.Fatalf("attempts = %d, want 1", base.calls)
	}
}

func TestRetryingTransportReplaysBody(t *testing.T) {
	base := &scriptedTransport{errs: []error{transientErr{}}}
	rt := &retryingTransport{next: base, limit: 1, backoff: time.Millisecond}

	req, _ := http.NewRequest(http.MethodPost, "https://api.telegram.org/sendMessage",
		strings.NewReader("chat_id=1&text=hi"))
	if req.GetBody == nil {
		t.Fatal("expected replayable body")
	}
	if _, err := rt.RoundTrip(req); err != nil {
		t.Fatalf("RoundTrip: %v", err)
	}
	if base.calls != 2 {
		t.Fatalf("attempts = %d, want 2", base.calls)
	}
}

func TestRetryingTransportSkipsNonReplayableBody(t *testing.T) {
	base := &scriptedTransport{errs: []error{transientErr{}}}
	rt := &retryingTransport{next: base, limit: 3, backoff: time.Millisecond}

	req, _ := http.NewRequest(http.MethodPost, "https://api.telegram.org/sendDocument", nil)
	req.Body = io.NopCloser(bytes.NewReader([]byte("payload")))
	req.GetBody = nil

	var netErr transientErr
	if _, err := rt.RoundTrip(req); !errors.As(err, &netErr) {
		t.Fatalf("err = %v, want the transport error", err)
	}
	if base.calls != 1 {
		t.Fatalf("attempts = %d, want 1", base.calls)
	}
}

func TestRetryingTransportHonorsContext(t *testing.T) {
	base := &scriptedTransport{errs: []error{transientErr{}, transientErr{}}}
	rt := &retryingTransport{next: base, limit: 2, backoff: time.Minute}

	ctx, cancel := context.WithCancel(context.Background())
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, "https://api.telegram.org/getMe", nil)
	cancel()

	if _, err := rt.RoundTrip(req); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if base.calls != 1 {
		t.Fatalf("attempts = %d, want 1", base.calls)
	}
}
