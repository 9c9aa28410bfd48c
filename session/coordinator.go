// Package session owns the client-side credential lifecycle: it hands out
// the current access token, serializes concurrent refresh attempts into a
// single network call, and invalidates the session when a refresh fails.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-auth-client/credentials"
	"github.com/jrsteele09/go-auth-client/refresh"
)

const (
	defaultRefreshTimeout = 30 * time.Second
	defaultExpiryLeeway   = 10 * time.Second
)

// Refresher mints a new token pair from a refresh token and revokes refresh
// tokens on logout. *refresh.Client is the production implementation.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*refresh.TokenResponse, error)
	Revoke(ctx context.Context, refreshToken string) error
}

// InvalidatedFunc is called once per failed refresh episode (and on explicit
// logout), after local credentials have been wiped. Typically wired to a
// redirect or a "please log in again" prompt; the coordinator itself never
// navigates.
type InvalidatedFunc func(cause error)

// episode is one refresh attempt and the callers blocked on it. done is
// closed exactly once, after creds/err are set, so every waiter observes the
// same outcome.
type episode struct {
	done  chan struct{}
	creds *credentials.Credentials
	err   error
}

// Coordinator guards the credential pair. It cycles between two states:
// idle (c.episode == nil) and refreshing (c.episode != nil, callers that
// observe an expired token block on it). At most one refresh network call is
// outstanding at any time.
type Coordinator struct {
	store          credentials.Store
	refresher      Refresher
	onInvalidated  InvalidatedFunc
	refreshTimeout time.Duration
	expiryLeeway   time.Duration
	logger         zerolog.Logger
	nowFunc        func() time.Time

	lock    sync.Mutex // guards episode and the idle->refreshing transition
	episode *episode
}

// CoordinatorOption defines a function type to modify the Coordinator instance.
type CoordinatorOption func(*Coordinator)

// WithRefreshTimeout bounds how long a refresh network call (and therefore
// every waiter) may be suspended. Timeout counts as refresh failure.
func WithRefreshTimeout(timeout time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		c.refreshTimeout = timeout
	}
}

// WithExpiryLeeway sets how far ahead of access token expiry Token refreshes
// proactively.
func WithExpiryLeeway(leeway time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		c.expiryLeeway = leeway
	}
}

// WithInvalidatedFunc sets the session-invalidated callback.
func WithInvalidatedFunc(fn InvalidatedFunc) CoordinatorOption {
	return func(c *Coordinator) {
		c.onInvalidated = fn
	}
}

// WithLogger sets the logger (default: no-op).
func WithLogger(logger zerolog.Logger) CoordinatorOption {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// WithNowFunc sets the now time function (primarily for testing)
func WithNowFunc(now func() time.Time) CoordinatorOption {
	return func(c *Coordinator) {
		c.nowFunc = now
	}
}

// New initializes a Coordinator with required dependencies. Optional
// configuration can be provided via options.
func New(store credentials.Store, refresher Refresher, options ...CoordinatorOption) (*Coordinator, error) {
	if store == nil {
		return nil, errors.New("[session.New] store is required")
	}
	if refresher == nil {
		return nil, errors.New("[session.New] refresher is required")
	}

	c := &Coordinator{
		store:          store,
		refresher:      refresher,
		refreshTimeout: defaultRefreshTimeout,
		expiryLeeway:   defaultExpiryLeeway,
		logger:         zerolog.Nop(),
		nowFunc:        time.Now,
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// SetCredentials stores a freshly obtained credential pair (login).
func (c *Coordinator) SetCredentials(ctx context.Context, creds *credentials.Credentials) error {
	if !creds.Valid() {
		return errors.New("[Coordinator.SetCredentials] credentials have no access token")
	}
	return errors.Wrap(c.store.Put(ctx, creds), "[Coordinator.SetCredentials] store credentials")
}

// Token returns credentials carrying a usable access token, refreshing
// proactively when the stored token expires within the configured leeway.
func (c *Coordinator) Token(ctx context.Context) (*credentials.Credentials, error) {
	creds, err := c.store.Get(ctx)
	if err != nil {
		if errors.Is(err, credentials.ErrNotFound) {
			return nil, ErrNotAuthenticated
		}
		return nil, errors.Wrap(err, "[Coordinator.Token] store get")
	}

	if creds.Valid() && !creds.ExpiresWithin(c.expiryLeeway, c.nowFunc()) {
		return creds, nil
	}
	return c.ForceRefresh(ctx, creds.AccessToken)
}

// ForceRefresh is the unauthorized-response entry point: a caller whose
// access token was just rejected (or found expiring) calls it with that
// stale token and blocks until a usable replacement exists.
//
// Exactly one refresh network call is made per expiry episode regardless of
// how many callers arrive concurrently: the first caller starts the episode,
// the rest block on it, and all of them observe the same outcome. A caller
// whose stale token has already been replaced by a completed episode gets
// the stored credentials without any network call.
func (c *Coordinator) ForceRefresh(ctx context.Context, staleToken string) (*credentials.Credentials, error) {
	c.lock.Lock()

	if ep := c.episode; ep != nil {
		c.lock.Unlock()
		return c.wait(ctx, ep)
	}

	// Another caller may have finished an episode between this caller's
	// rejection and now; its rotated token is already in the store.
	creds, err := c.store.Get(ctx)
	if err != nil && !errors.Is(err, credentials.ErrNotFound) {
		c.lock.Unlock()
		return nil, errors.Wrap(err, "[Coordinator.ForceRefresh] store get")
	}
	if creds.Valid() && creds.AccessToken != staleToken {
		c.lock.Unlock()
		return creds, nil
	}

	var refreshToken string
	if creds != nil {
		refreshToken = creds.RefreshToken
	}

	ep := &episode{done: make(chan struct{})}
	c.episode = ep
	c.lock.Unlock()

	// The refresh runs detached from the triggering caller's context:
	// once an episode starts every waiter must see it settle, so a single
	// caller's cancellation must not abort it. The timeout bounds the
	// episode instead.
	go c.runEpisode(ep, refreshToken)

	return c.wait(ctx, ep)
}

// Logout revokes the refresh token (best effort), wipes local credentials
// and fires the invalidated callback.
func (c *Coordinator) Logout(ctx context.Context) error {
	creds, err := c.store.Get(ctx)
	if err == nil && creds.RefreshToken != "" {
		if revokeErr := c.refresher.Revoke(ctx, creds.RefreshToken); revokeErr != nil {
			c.logger.Warn().Err(revokeErr).Msg("refresh token revocation failed")
		}
	}

	if err := c.store.Delete(ctx); err != nil {
		return errors.Wrap(err, "[Coordinator.Logout] delete credentials")
	}

	c.invalidated(errors.New("logged out"))
	return nil
}

// runEpisode performs the single refresh network call for an episode,
// settles the outcome and returns the coordinator to idle.
func (c *Coordinator) runEpisode(ep *episode, refreshToken string) {
	ctx, cancel := context.WithTimeout(context.Background(), c.refreshTimeout)
	defer cancel()

	creds, err := c.doRefresh(ctx, refreshToken)

	c.lock.Lock()
	ep.creds = creds
	ep.err = err
	c.episode = nil
	c.lock.Unlock()

	// Settled under no lock so waiters can immediately re-enter.
	close(ep.done)
}

func (c *Coordinator) doRefresh(ctx context.Context, refreshToken string) (*credentials.Credentials, error) {
	if refreshToken == "" {
		return nil, c.invalidate(ctx, errors.New("no refresh token stored"))
	}

	c.logger.Info().Msg("attempting access token refresh")

	tokenResponse, err := c.refresher.Refresh(ctx, refreshToken)
	if err != nil {
		// Terminal either way: a rejected credential and an unreachable
		// endpoint are indistinguishable here (see refresh.Client.Refresh).
		return nil, c.invalidate(ctx, err)
	}

	creds := tokenResponse.Credentials(refreshToken, c.nowFunc())
	if err := c.store.Put(ctx, creds); err != nil {
		return nil, c.invalidate(ctx, errors.Wrap(err, "store refreshed credentials"))
	}

	c.logger.Info().Msg("access token refresh successful")
	return creds, nil
}

// invalidate wipes local credentials, fires the callback and returns the
// terminal error every waiter of the episode receives.
func (c *Coordinator) invalidate(ctx context.Context, cause error) error {
	c.logger.Error().Err(cause).Msg("token refresh failed, invalidating session")

	if err := c.store.Delete(ctx); err != nil {
		c.logger.Error().Err(err).Msg("failed to clear stored credentials")
	}

	err := errors.Wrapf(ErrSessionInvalidated, "refresh failed: %s", cause.Error())
	c.invalidated(err)
	return err
}

func (c *Coordinator) invalidated(cause error) {
	if c.onInvalidated != nil {
		c.onInvalidated(cause)
	}
}

func (c *Coordinator) wait(ctx context.Context, ep *episode) (*credentials.Credentials, error) {
	select {
	case <-ep.done:
		return ep.creds, ep.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
