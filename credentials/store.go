package credentials

import (
	"context"

	"github.com/pkg/errors"
)

// ErrNotFound is returned by Store.Get when no credentials are stored.
var ErrNotFound = errors.New("credentials not found")

// Store persists the credential pair between requests (and, for file and
// bolt backed implementations, between processes). The session coordinator
// is the sole writer; everything else only reads the access token.
type Store interface {
	// Get returns the stored credentials or ErrNotFound.
	Get(ctx context.Context) (*Credentials, error)

	// Put replaces the stored credentials.
	Put(ctx context.Context, creds *Credentials) error

	// Delete removes the stored credentials. Deleting an empty store is
	// not an error.
	Delete(ctx context.Context) error
}
