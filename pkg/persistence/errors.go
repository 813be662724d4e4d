package persistence

import "errors"

// ErrWorkflowNotFound indicates no workflow exists for the given id.
var ErrWorkflowNotFound = errors.New("workflow not found")

// IsWorkflowNotFound reports whether err wraps ErrWorkflowNotFound.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}
