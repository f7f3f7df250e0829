// Package cmd implements the command-line interface for dropforward.
//
// This package provides the following commands:
//   - serve: Run the intake daemon with scheduled polling and the HTTP front door
//   - poll: Run a single folder poll and exit
//   - refresh: Refresh the persisted OAuth token once
//   - authorize: Begin or complete the interactive OAuth authorization
//   - version: Display version information
//
// The serve command is the default when no subcommand is specified.
package cmd
