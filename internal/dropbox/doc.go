// Package dropbox is a thin client for the Dropbox HTTP API, covering the
// file operations the intake pipeline needs: folder listing, download,
// upload, delete and move.
//
// Every call is authenticated through a TokenProvider. When the provider
// rejects the access token mid-operation the client asks the TokenProvider
// for an immediate refresh and retries the call once; expiry is otherwise not
// checked client-side.
//
// RPC endpoints exchange JSON bodies against api.dropboxapi.com; content
// endpoints move file bytes against content.dropboxapi.com with their
// arguments in the Dropbox-API-Arg header.
package dropbox
