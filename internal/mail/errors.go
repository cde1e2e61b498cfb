package mail

import "errors"

var (
	// ErrUnknownRequestType is returned when the service receives a
	// request type it has no handler for.
	ErrUnknownRequestType = errors.New("unknown request type")

	// ErrInvalidArgument is returned when an argument fails validation.
	// The wrapping message names the offending field.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrRecipientNotFound is returned when the recipient of a send is
	// not a registered agent.
	ErrRecipientNotFound = errors.New("recipient not found")

	// ErrReplyTargetNotFound is returned when a reply references a
	// message id that does not exist.
	ErrReplyTargetNotFound = errors.New("reply target not found")

	// ErrNotAuthorized is returned when the caller references a message
	// it is not a participant of.
	ErrNotAuthorized = errors.New("not authorized")

	// ErrNotFound is returned when a message or thread does not exist or
	// is not visible to the caller. The two cases are indistinguishable
	// so the error cannot be used as an existence oracle.
	ErrNotFound = errors.New("not found")

	// ErrStorageFailure wraps errors from the underlying store. Callers
	// may retry.
	ErrStorageFailure = errors.New("storage failure")
)
