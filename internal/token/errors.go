package token

import "errors"

// Sentinel errors for the token lifecycle. Callers match them with errors.Is;
// the provider's underlying error stays attached through wrapping.
var (
	// ErrNoToken indicates that no persisted token record exists, or that the
	// record carries no refresh token and therefore cannot be refreshed.
	ErrNoToken = errors.New("no token record")

	// ErrTokenExpired indicates that the persisted record's expiry has already
	// passed. An expired token is never sent to the provider for refresh.
	ErrTokenExpired = errors.New("token expired")

	// ErrAuthExchange indicates that the provider rejected the one-time
	// authorization code.
	ErrAuthExchange = errors.New("authorization exchange rejected")

	// ErrRefresh indicates that the provider rejected the refresh token. The
	// caller decides whether to discard the local record to force
	// re-authorization.
	ErrRefresh = errors.New("token refresh rejected")
)
