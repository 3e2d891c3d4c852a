package jama

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/temirov/rmtree/internal/traverse"
)

var (
	// ErrMalformedResponse reports a body that could not be decoded into the expected envelope.
	ErrMalformedResponse = errors.New("malformed response")
	// ErrItemNotFound reports a lookup of an item that does not exist.
	ErrItemNotFound = errors.New("item not found")
	// ErrProjectNotFound reports a project key no project carries.
	ErrProjectNotFound = errors.New("project not found")
	// ErrAmbiguousDocumentKey reports a document key shared by more than one item.
	ErrAmbiguousDocumentKey = errors.New("document key matches multiple items")

	errMissingBaseURL = errors.New("jama: base URL is required")
	errInvalidItemID  = errors.New("jama: item reference must be a numeric id")
)

// StatusError describes a non-success HTTP response.
// Rejected credentials (401, 403) match traverse.ErrFatal through errors.Is.
type StatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (statusError *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d for %s: %s", statusError.StatusCode, statusError.URL, statusError.Body)
}

// Is lets errors.Is classify authentication failures as fatal.
func (statusError *StatusError) Is(target error) bool {
	if target == traverse.ErrFatal {
		return statusError.StatusCode == http.StatusUnauthorized || statusError.StatusCode == http.StatusForbidden
	}
	if target == ErrItemNotFound {
		return statusError.StatusCode == http.StatusNotFound
	}
	return false
}

// retryable reports whether the status is worth another attempt.
func (statusError *StatusError) retryable() bool {
	return statusError.StatusCode == http.StatusTooManyRequests || statusError.StatusCode >= http.StatusInternalServerError
}
