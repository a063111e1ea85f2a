package almalead

import (
	"errors"
	"fmt"
)

var (
	ErrLeadNotFound         = errors.New("lead not found")
	ErrUserNotFound         = errors.New("user not found")
	ErrDuplicatedUser       = errors.New("email already in use")
	ErrInvalidTransition    = errors.New("invalid state transition")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrUnsupportedMediaType = errors.New("file type not allowed")
	ErrPayloadTooLarge      = errors.New("file too large")
	ErrResumeNotFound       = errors.New("resume not found")
	ErrStorage              = errors.New("storage failure")
	ErrPersistence          = errors.New("persistence failure")
	ErrNotification         = errors.New("notification failure")
)

// ValidationError reports bad or missing input on a single field.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Field, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err is caused by bad caller input.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
