package clip

import (
	"errors"
	"fmt"
)

// FetchErrorKind classifies fetch failures for the caller.
type FetchErrorKind string

// Fetch failure classes.
const (
	FetchTimeout    FetchErrorKind = "timeout"
	FetchDNS        FetchErrorKind = "dns"
	FetchHTTPStatus FetchErrorKind = "http_status"
	FetchNetwork    FetchErrorKind = "network"
)

// FetchError is the fatal error returned by the fetcher. StatusCode is
// set only for the http_status kind.
type FetchError struct {
	Kind       FetchErrorKind
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.Kind == FetchHTTPStatus {
		return fmt.Sprintf("fetch %s: http status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// StorageErrorKind classifies vault write failures.
type StorageErrorKind string

// Storage failure classes.
const (
	StorageConflict    StorageErrorKind = "conflict"
	StorageUnavailable StorageErrorKind = "unavailable"
	StorageNotFound    StorageErrorKind = "not_found"
)

// StorageError is surfaced by the vault writer after its bounded conflict
// retries are exhausted or the document store is unreachable.
type StorageError struct {
	Kind StorageErrorKind
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %s: %v", e.Path, e.Kind, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// IsConflict reports whether err is a storage conflict.
func IsConflict(err error) bool {
	var se *StorageError
	return errors.As(err, &se) && se.Kind == StorageConflict
}

// IsNotFound reports whether err means the addressed note does not
// exist in the store.
func IsNotFound(err error) bool {
	var se *StorageError
	return errors.As(err, &se) && se.Kind == StorageNotFound
}
