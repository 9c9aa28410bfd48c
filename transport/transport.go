// Package transport provides an http.RoundTripper that attaches the session's
// bearer token to outbound requests and transparently recovers from
// authentication expiry: a 401 response triggers (or joins) a single-flight
// token refresh and the request is reissued once with the new credential.
package transport

import (
	"context"
	"io"
	"net/http"

	"github.com/pkg/errors"

	"github.com/jrsteele09/go-auth-client/session"
)

type contextKey int

// retriedKey marks a request that has already been reissued once after a
// refresh. A marked request that fails authentication again propagates the
// failure unchanged, which guarantees termination.
const retriedKey contextKey = iota

var _ http.RoundTripper = (*Transport)(nil)

// Transport decorates a base RoundTripper with bearer authentication and
// retry-once refresh recovery.
type Transport struct {
	coordinator *session.Coordinator
	base        http.RoundTripper
}

// TransportOption defines a function type to modify the Transport instance.
type TransportOption func(*Transport)

// WithBase sets the underlying RoundTripper (default http.DefaultTransport).
func WithBase(base http.RoundTripper) TransportOption {
	return func(t *Transport) {
		t.base = base
	}
}

// New creates a Transport backed by the given session coordinator.
func New(coordinator *session.Coordinator, options ...TransportOption) (*Transport, error) {
	if coordinator == nil {
		return nil, errors.New("[transport.New] coordinator is required")
	}

	t := &Transport{
		coordinator: coordinator,
		base:        http.DefaultTransport,
	}
	for _, opt := range options {
		opt(t)
	}
	return t, nil
}

// NewClient returns an *http.Client whose requests carry the session's
// bearer token.
func NewClient(coordinator *session.Coordinator, options ...TransportOption) (*http.Client, error) {
	t, err := New(coordinator, options...)
	if err != nil {
		return nil, err
	}
	return &http.Client{Transport: t}, nil
}

// RoundTrip attaches the current access token and forwards the request. On a
// 401 response it obtains a replacement token via the coordinator (joining an
// in-flight refresh if one exists) and reissues the request exactly once.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	creds, err := t.coordinator.Token(req.Context())
	if err != nil {
		return nil, errors.Wrap(err, "[Transport.RoundTrip] obtain access token")
	}

	// RoundTrippers must not mutate the caller's request.
	outReq := req.Clone(req.Context())
	outReq.Header.Set("Authorization", creds.BearerHeader())

	resp, err := t.base.RoundTrip(outReq)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	// Second rejection after a retry, or a body that cannot be replayed:
	// surface the 401 to the caller.
	if wasRetried(req.Context()) {
		return resp, nil
	}
	if req.Body != nil && req.GetBody == nil {
		return resp, nil
	}

	// The 401 response is replaced by the retry's response.
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	if _, err := t.coordinator.ForceRefresh(req.Context(), creds.AccessToken); err != nil {
		return nil, errors.Wrap(err, "[Transport.RoundTrip] token refresh")
	}

	retryReq := req.Clone(markRetried(req.Context()))
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, errors.Wrap(err, "[Transport.RoundTrip] replay request body")
		}
		retryReq.Body = body
	}
	return t.RoundTrip(retryReq)
}

func markRetried(ctx context.Context) context.Context {
	return context.WithValue(ctx, retriedKey, true)
}

func wasRetried(ctx context.Context) bool {
	retried, _ := ctx.Value(retriedKey).(bool)
	return retried
}
