// Package memstore provides an in-memory credentials.Store. It is the
// default store for short-lived processes that re-authenticate on start.
package memstore

import (
	"context"
	"sync"

	"github.com/jrsteele09/go-auth-client/credentials"
)

var _ credentials.Store = (*Store)(nil)

type Store struct {
	creds *credentials.Credentials
	lock  sync.RWMutex
}

func New() *Store {
	return &Store{}
}

func (s *Store) Get(_ context.Context) (*credentials.Credentials, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	if s.creds == nil {
		return nil, credentials.ErrNotFound
	}
	c := *s.creds
	return &c, nil
}

func (s *Store) Put(_ context.Context, creds *credentials.Credentials) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	c := *creds
	s.creds = &c
	return nil
}

func (s *Store) Delete(_ context.Context) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.creds = nil
	return nil
}
