// Package session manages opaque authentication tokens.
//
// Tokens are minted on login and resolved on every request. The service treats
// the backing store as a black box: the only contract is that a token maps to
// a user id until its time-to-live expires or the token is destroyed.
package session

import (
	"context"
	"time"
)

// CodeInvalidToken is the error code returned when a token does not resolve.
const CodeInvalidToken = "INVALID_TOKEN"

// Store holds token to user-identity mappings with a time-to-live.
type Store interface {
	// Create mints a new opaque token for the user, valid for ttl.
	Create(ctx context.Context, userID int64, ttl time.Duration) (string, error)

	// Resolve returns the user id the token maps to. A missing or expired
	// token yields a T_Authentication error with code CodeInvalidToken.
	Resolve(ctx context.Context, token string) (int64, error)

	// Destroy invalidates the token. Destroying an unknown token yields the
	// same error as resolving one.
	Destroy(ctx context.Context, token string) error
}
