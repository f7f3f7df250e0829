package dropbox

import "fmt"

// Entry tags as reported by the provider's folder listing.
const (
	TagFile   = "file"
	TagFolder = "folder"
)

// Entry is a single item returned by a folder listing. Entries are immutable
// and consumed once per pipeline run.
type Entry struct {
	// Tag distinguishes files from folders.
	Tag string `json:".tag"`

	// Name is the display name of the item.
	Name string `json:"name"`

	// Path is the display path of the item.
	Path string `json:"path_display"`
}

// ListingPage is one page of a folder listing. HasMore signals that another
// page exists; because processed files are deleted during the same run, the
// caller re-lists the folder rather than chasing a cursor.
type ListingPage struct {
	Entries []Entry `json:"entries"`
	HasMore bool    `json:"has_more"`
}

// LocalFile is a file materialized under the local storage root by a
// download.
type LocalFile struct {
	// Name is the base filename.
	Name string

	// Path is the absolute local path.
	Path string
}

// Receipt carries the provider metadata returned by a mutating operation.
type Receipt struct {
	Name string `json:"name"`
	Path string `json:"path_display"`
}

// APIError is a provider-side failure. Op names the operation, Summary is the
// provider's error summary when one was returned.
type APIError struct {
	// Op is the operation that failed (e.g., "list_folder", "download").
	Op string

	// Path is the remote path associated with the operation.
	Path string

	// StatusCode is the HTTP status returned by the provider.
	StatusCode int

	// Summary is the provider's error_summary field, if any.
	Summary string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Summary != "" {
		return fmt.Sprintf("dropbox %s %s: %s (status %d)", e.Op, e.Path, e.Summary, e.StatusCode)
	}
	return fmt.Sprintf("dropbox %s %s: status %d", e.Op, e.Path, e.StatusCode)
}

// Unauthorized reports whether the provider rejected the access token.
func (e *APIError) Unauthorized() bool {
	return e.StatusCode == 401
}
