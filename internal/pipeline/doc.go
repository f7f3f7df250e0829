// Package pipeline implements the per-file intake sequence and the folder
// poller that drives it.
//
// Each listed entry flows through download, classify, optional container
// unwrap, filter, notify, archive, and cleanup. A stage failure aborts
// only that entry; the poller carries on with the rest of the listing.
// Unsupported types and empty containers are poison: their remote
// originals are deleted so they are never retried, while notify and
// archive failures keep the original in place for the next run.
package pipeline
