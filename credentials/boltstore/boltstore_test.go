package boltstore_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-auth-client/credentials"
	"github.com/jrsteele09/go-auth-client/credentials/boltstore"
)

func newStore(t *testing.T) *boltstore.Store {
	t.Helper()
	store, err := boltstore.Open(filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	t.Cleanup(store.Close)
	return store
}

func TestGetEmpty(t *testing.T) {
	store := newStore(t)
	_, err := store.Get(context.Background())
	require.ErrorIs(t, err, credentials.ErrNotFound)
}

func TestPutGetDelete(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	creds := &credentials.Credentials{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		TokenType:    "bearer",
		ExpiresAt:    time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Scope:        "openid profile",
	}
	require.NoError(t, store.Put(ctx, creds))

	got, err := store.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, creds.AccessToken, got.AccessToken)
	require.Equal(t, creds.RefreshToken, got.RefreshToken)
	require.Equal(t, creds.Scope, got.Scope)
	require.True(t, got.ExpiresAt.Equal(creds.ExpiresAt))

	require.NoError(t, store.Delete(ctx))
	_, err = store.Get(ctx)
	require.ErrorIs(t, err, credentials.ErrNotFound)
}

func TestPutOverwrites(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, &credentials.Credentials{AccessToken: "access-1"}))
	require.NoError(t, store.Put(ctx, &credentials.Credentials{AccessToken: "access-2"}))

	got, err := store.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, "access-2", got.AccessToken)
}

func TestDeleteEmptyStore(t *testing.T) {
	store := newStore(t)
	require.NoError(t, store.Delete(context.Background()))
}

// Credentials must survive a close/reopen cycle.
func TestPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth.db")
	ctx := context.Background()

	store, err := boltstore.Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, &credentials.Credentials{AccessToken: "access-1", RefreshToken: "refresh-1"}))
	store.Close()

	reopened, err := boltstore.Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, "access-1", got.AccessToken)
	require.Equal(t, "refresh-1", got.RefreshToken)
}
