package storefakes

import (
	"context"
	"sync"

	"github.com/jrsteele09/go-auth-client/credentials"
)

var _ credentials.Store = (*FakeStore)(nil)

// FakeStore is an in-memory credentials.Store that records call counts and
// allows errors to be injected, for use in unit tests.
type FakeStore struct {
	creds *credentials.Credentials
	lock  sync.Mutex

	GetCalls    int
	PutCalls    int
	DeleteCalls int

	GetErr    error
	PutErr    error
	DeleteErr error
}

func NewFakeStore() *FakeStore {
	return &FakeStore{}
}

func (s *FakeStore) Get(_ context.Context) (*credentials.Credentials, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.GetCalls++
	if s.GetErr != nil {
		return nil, s.GetErr
	}
	if s.creds == nil {
		return nil, credentials.ErrNotFound
	}
	c := *s.creds
	return &c, nil
}

func (s *FakeStore) Put(_ context.Context, creds *credentials.Credentials) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.PutCalls++
	if s.PutErr != nil {
		return s.PutErr
	}
	c := *creds
	s.creds = &c
	return nil
}

func (s *FakeStore) Delete(_ context.Context) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.DeleteCalls++
	if s.DeleteErr != nil {
		return s.DeleteErr
	}
	s.creds = nil
	return nil
}

// Stored returns the currently stored credentials without counting a Get.
func (s *FakeStore) Stored() *credentials.Credentials {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.creds
}
