package visitor

import "errors"

var (
	// ErrInvalidInput is returned when a required field is missing or malformed.
	ErrInvalidInput = errors.New("invalid input")
	// ErrPhotoRequired is returned when a submission carries no photo.
	ErrPhotoRequired = errors.New("photo upload is required")
	// ErrNotFound is returned when no entry matches a lookup.
	ErrNotFound = errors.New("visitor not found")
	// ErrAlreadyDecided is returned when a decision targets an entry that is no longer pending.
	ErrAlreadyDecided = errors.New("visitor request already decided")
	// ErrNotificationFailed wraps email delivery failures. The entry state is kept.
	ErrNotificationFailed = errors.New("notification failed")
)
