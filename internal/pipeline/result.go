package pipeline

import "github.com/lcoppola/dropforward/internal/dropbox"

// Outcome classifies how an entry ended up.
type Outcome string

const (
	// OutcomeSent means the file was mailed, archived, and cleaned up.
	OutcomeSent Outcome = "sent"

	// OutcomeSkipped means the entry held nothing to process.
	OutcomeSkipped Outcome = "skipped"

	// OutcomeFailed means a stage failed; Err carries the cause.
	OutcomeFailed Outcome = "failed"
)

// Result records the fate of a single listed entry. Results are collected
// per poll run and logged, never persisted.
type Result struct {
	Outcome Outcome
	Entry   dropbox.Entry
	Detail  string
	Err     error
}

// sent builds a success result for entry.
func sent(entry dropbox.Entry, detail string) Result {
	return Result{Outcome: OutcomeSent, Entry: entry, Detail: detail}
}

// skipped builds a no-work result for entry.
func skipped(entry dropbox.Entry, detail string) Result {
	return Result{Outcome: OutcomeSkipped, Entry: entry, Detail: detail}
}

// failed builds a failure result for entry with its cause.
func failed(entry dropbox.Entry, err error) Result {
	return Result{Outcome: OutcomeFailed, Entry: entry, Detail: err.Error(), Err: err}
}
