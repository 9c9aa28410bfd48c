package session

import "github.com/pkg/errors"

var (
	// ErrNotAuthenticated is returned when no credentials are stored -
	// the caller must log in before issuing authenticated requests.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrSessionInvalidated is returned to every caller blocked on a
	// refresh episode that failed. The local credential pair has been
	// wiped and the invalidated callback fired; re-authentication is
	// required.
	ErrSessionInvalidated = errors.New("session invalidated: re-authentication required")
)
