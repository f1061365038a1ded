// internal/errors/errors.go
package errors

import "fmt"

// ErrInvalidSignature is returned when a webhook secret is configured and
// the delivery's signature header does not match the request body.
type ErrInvalidSignature struct {
	Header string
}

func (e *ErrInvalidSignature) Error() string {
	if e.Header == "" {
		return "webhook signature missing"
	}
	return "webhook signature mismatch"
}

// ErrStorageUnavailable wraps a storage-layer failure that should surface
// to the caller of the affected operation rather than being swallowed.
type ErrStorageUnavailable struct {
	Op  string
	Err error
}

func (e *ErrStorageUnavailable) Error() string {
	return fmt.Sprintf("storage unavailable during %s: %v", e.Op, e.Err)
}

func (e *ErrStorageUnavailable) Unwrap() error { return e.Err }

// ErrBackendUnavailable is recorded when an analysis backend cannot be
// reached; it is never fatal to the process.
type ErrBackendUnavailable struct {
	Backend string
	Err     error
}

func (e *ErrBackendUnavailable) Error() string {
	return fmt.Sprintf("backend %s unavailable: %v", e.Backend, e.Err)
}

func (e *ErrBackendUnavailable) Unwrap() error { return e.Err }

// ErrInvalidRepoRef is returned when a repository reference is not in
// 'owner/name' form.
type ErrInvalidRepoRef struct {
	Ref string
}

func (e *ErrInvalidRepoRef) Error() string {
	return fmt.Sprintf("invalid repository reference: %q, expected 'owner/name'", e.Ref)
}
