// Package token owns the OAuth credential lifecycle for the remote
// storage provider.
//
// A single JSON record on disk is the source of truth across restarts:
// created by the authorization code exchange, its access token and expiry
// rewritten on every refresh, and deleted only when a refresh is rejected
// outright. An already-expired record is refused locally before any
// network call is made.
package token
