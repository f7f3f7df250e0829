// Package server is the HTTP front door: it completes the interactive
// OAuth handoff, answers the provider's webhook verification, turns signed
// change notifications into poll runs, and exposes health and metrics
// endpoints.
package server
