package sessionfakes

import (
	"context"
	"sync"

	"github.com/jrsteele09/go-auth-client/refresh"
	"github.com/jrsteele09/go-auth-client/session"
)

var _ session.Refresher = (*FakeRefresher)(nil)

// FakeRefresher is a controllable session.Refresher that records call counts,
// for use in unit tests.
type FakeRefresher struct {
	RefreshFunc func(ctx context.Context, refreshToken string) (*refresh.TokenResponse, error)
	RevokeErr   error

	lock         sync.Mutex
	refreshCalls int
	revokeCalls  int
}

func NewFakeRefresher() *FakeRefresher {
	return &FakeRefresher{}
}

func (f *FakeRefresher) Refresh(ctx context.Context, refreshToken string) (*refresh.TokenResponse, error) {
	f.lock.Lock()
	f.refreshCalls++
	fn := f.RefreshFunc
	f.lock.Unlock()

	if fn == nil {
		return nil, refresh.ErrRejected
	}
	return fn(ctx, refreshToken)
}

func (f *FakeRefresher) Revoke(_ context.Context, _ string) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.revokeCalls++
	return f.RevokeErr
}

func (f *FakeRefresher) RefreshCalls() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.refreshCalls
}

func (f *FakeRefresher) RevokeCalls() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.revokeCalls
}
