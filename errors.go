package rbackit

import (
	"errors"
	"fmt"
)

// Sentinel errors for RBACKit operations.
var (
	// ErrNodeNotFound is returned when an id, path or title does not resolve
	// to a node in the hierarchy.
	ErrNodeNotFound = errors.New("rbackit: node not found")

	// ErrInvalidReference is returned when a nil or malformed reference is
	// supplied where a role or permission is required.
	ErrInvalidReference = errors.New("rbackit: invalid reference")

	// ErrInvalidTitle is returned when an empty title is supplied on insert.
	ErrInvalidTitle = errors.New("rbackit: invalid title")

	// ErrPermissionNotFound is returned by Check when the permission does
	// not resolve to an existing node.
	ErrPermissionNotFound = errors.New("rbackit: permission not found")

	// ErrUserNotProvided is returned when an operation that requires an
	// explicit user identity receives none.
	ErrUserNotProvided = errors.New("rbackit: user not provided")

	// ErrConfirmationRequired is returned when a destructive reset is
	// invoked without its explicit confirm argument set to true.
	ErrConfirmationRequired = errors.New("rbackit: confirmation required")

	// ErrStorage is returned when a database operation fails. The adapter
	// error is preserved and reachable through errors.Unwrap chains.
	ErrStorage = errors.New("rbackit: storage failure")
)

// Error wraps a sentinel error with additional context.
type Error struct {
	Err       error  // Underlying sentinel error
	Message   string // Additional context
	Hierarchy string // Hierarchy involved ("roles" or "permissions")
	NodeID    int64  // Node involved (if applicable)
	Reference string // Raw reference that failed to resolve (if applicable)
	UserID    int64  // User involved (if applicable)
	cause     error  // Adapter error behind ErrStorage (if applicable)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying errors for errors.Is/As. The sentinel comes
// first; a storage cause, when present, is reachable as well.
func (e *Error) Unwrap() []error {
	if e.cause != nil {
		return []error{e.Err, e.cause}
	}
	return []error{e.Err}
}

// Is checks if the error matches a target error.
func (e *Error) Is(target error) bool {
	return errors.Is(e.Err, target) || (e.cause != nil && errors.Is(e.cause, target))
}

// NewError creates a new Error with context.
func NewError(err error, message string) *Error {
	return &Error{
		Err:     err,
		Message: message,
	}
}

// StorageError wraps an adapter error as ErrStorage, preserving the cause.
func StorageError(cause error, message string) *Error {
	return &Error{
		Err:     ErrStorage,
		Message: message,
		cause:   cause,
	}
}

// WithHierarchy adds the hierarchy name to the error.
func (e *Error) WithHierarchy(hierarchy string) *Error {
	e.Hierarchy = hierarchy
	return e
}

// WithNode adds node information to the error.
func (e *Error) WithNode(id int64) *Error {
	e.NodeID = id
	return e
}

// WithReference adds the unresolved reference to the error.
func (e *Error) WithReference(ref string) *Error {
	e.Reference = ref
	return e
}

// WithUser adds user information to the error.
func (e *Error) WithUser(userID int64) *Error {
	e.UserID = userID
	return e
}

// IsNodeNotFound checks if an error is due to an unresolvable node.
func IsNodeNotFound(err error) bool {
	return errors.Is(err, ErrNodeNotFound)
}

// IsInvalidTitle checks if an error is due to an empty title.
func IsInvalidTitle(err error) bool {
	return errors.Is(err, ErrInvalidTitle)
}

// IsConfirmationRequired checks if an error is due to a missing confirm
// argument on a destructive operation.
func IsConfirmationRequired(err error) bool {
	return errors.Is(err, ErrConfirmationRequired)
}

// IsUserNotProvided checks if an error is due to a missing user identity.
func IsUserNotProvided(err error) bool {
	return errors.Is(err, ErrUserNotProvided)
}

// IsStorage checks if an error originated in the storage adapter.
func IsStorage(err error) bool {
	return errors.Is(err, ErrStorage)
}
