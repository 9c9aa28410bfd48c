package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/jrsteele09/go-auth-client/credentials"
	"github.com/jrsteele09/go-auth-client/credentials/boltstore"
	"github.com/jrsteele09/go-auth-client/credentials/filestore"
	"github.com/jrsteele09/go-auth-client/internal/config"
	"github.com/jrsteele09/go-auth-client/refresh"
	"github.com/jrsteele09/go-auth-client/session"
)

// stack bundles the wired client components for one CLI invocation.
type stack struct {
	config      config.Config
	store       credentials.Store
	refresher   *refresh.Client
	coordinator *session.Coordinator
	closeStore  func()
}

// newStack wires store, refresh client and coordinator from environment
// configuration. The token endpoint is taken from AUTH_TOKEN_URL when set,
// otherwise discovered from the issuer's OIDC discovery document.
func newStack(ctx context.Context) (*stack, error) {
	c := config.New()

	endpoints := refresh.Endpoints{TokenURL: c.GetTokenURL()}
	if endpoints.TokenURL == "" {
		discovered, err := refresh.Discover(ctx, c.GetIssuer())
		if err != nil {
			return nil, errors.Wrap(err, "endpoint discovery failed (set AUTH_TOKEN_URL to skip discovery)")
		}
		endpoints = discovered
	}

	refreshClient, err := refresh.NewClient(endpoints, c.GetClientID())
	if err != nil {
		return nil, err
	}

	store, closeStore, err := newStore(c)
	if err != nil {
		return nil, err
	}

	coordinator, err := session.New(store, refreshClient,
		session.WithInvalidatedFunc(func(cause error) {
			fmt.Fprintln(os.Stderr, "session invalidated - run 'login' to authenticate again")
		}),
	)
	if err != nil {
		closeStore()
		return nil, err
	}

	return &stack{
		config:      c,
		store:       store,
		refresher:   refreshClient,
		coordinator: coordinator,
		closeStore:  closeStore,
	}, nil
}

func newStore(c config.Config) (credentials.Store, func(), error) {
	switch backend := c.GetStoreBackend(); backend {
	case "file":
		store, err := filestore.New(stateFilePath("credentials.json"))
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	case "bolt":
		store, err := boltstore.Open(stateFilePath("auth.db"))
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		return nil, nil, errors.Errorf("unknown AUTH_STORE backend %q (want file or bolt)", backend)
	}
}

func (s *stack) Close() {
	s.closeStore()
}

func stateFilePath(name string) string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	return filepath.Join(homeDir, ".go-auth-client", name)
}
