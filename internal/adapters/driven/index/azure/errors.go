package azure

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is a non-2xx response from the search service.
type APIError struct {
	StatusCode int
	Message    string
	Path       string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("azure search: %s returned %d: %s", e.Path, e.StatusCode, e.Message)
}

// IsNotFound returns true if err is a 404 from the search service.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// ItemError reports records the service refused in an index batch.
type ItemError struct {
	Failed map[string]string
}

// Error implements the error interface.
func (e *ItemError) Error() string {
	for key, msg := range e.Failed {
		if len(e.Failed) == 1 {
			return fmt.Sprintf("azure search: record %s rejected: %s", key, msg)
		}
		return fmt.Sprintf("azure search: %d records rejected, e.g. %s: %s", len(e.Failed), key, msg)
	}
	return "azure search: records rejected"
}
