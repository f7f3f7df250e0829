package pipeline

import "errors"

// Failure causes surfaced in processing results. Per-entry errors are
// contained at the entry boundary; only ErrListing aborts a whole run.
var (
	// ErrListing indicates the source folder could not be enumerated.
	ErrListing = errors.New("folder listing failed")

	// ErrDownload indicates the remote file could not be materialized
	// locally.
	ErrDownload = errors.New("download failed")

	// ErrEmptyContainer indicates a mail container could not be parsed or
	// held no accepted attachment. The remote original is deleted so it is
	// not retried.
	ErrEmptyContainer = errors.New("no accepted attachment in container")

	// ErrUnsupportedType indicates the file extension is not in the
	// accepted set. The remote original is deleted so it is not retried.
	ErrUnsupportedType = errors.New("not an accepted type")

	// ErrNotify indicates mail delivery failed. The remote original is
	// kept so the next run retries it.
	ErrNotify = errors.New("mail delivery failed")

	// ErrArchive indicates the backup upload failed. The remote original
	// is kept so the next run retries it.
	ErrArchive = errors.New("archive upload failed")

	// ErrRunInProgress indicates a poll run was skipped because the
	// previous one is still running.
	ErrRunInProgress = errors.New("poll run already in progress")
)
