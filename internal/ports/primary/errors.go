package primary

import "errors"

var (
	// ErrPermissionDenied is returned when the issuer of a lifecycle command
	// lacks the required role or ownership.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrInvalidCommand is returned when a lifecycle command fails validation.
	ErrInvalidCommand = errors.New("invalid command")
)
