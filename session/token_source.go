package session

import (
	"context"

	"golang.org/x/oauth2"
)

// TokenSource adapts the coordinator to the golang.org/x/oauth2 TokenSource
// interface so the session can back any client built on that ecosystem
// (oauth2.NewClient, API SDKs taking a TokenSource, etc). Single-flight
// refresh semantics carry over unchanged.
func (c *Coordinator) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &tokenSource{ctx: ctx, coordinator: c}
}

type tokenSource struct {
	ctx         context.Context
	coordinator *Coordinator
}

var _ oauth2.TokenSource = (*tokenSource)(nil)

func (ts *tokenSource) Token() (*oauth2.Token, error) {
	creds, err := ts.coordinator.Token(ts.ctx)
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{
		AccessToken:  creds.AccessToken,
		TokenType:    creds.TokenType,
		RefreshToken: creds.RefreshToken,
		Expiry:       creds.ExpiresAt,
	}, nil
}
