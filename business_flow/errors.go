// Package businessflow contains the core business logic and use cases for tag identity workflows
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Tag ownership errors
	ErrTagNotFound       = errors.New("tag not found")
	ErrDuplicateUID      = errors.New("tag UID already exists")
	ErrTagNotRegistrable = errors.New("tag is not available to register")
	ErrTagNotOwned       = errors.New("tag is not registered to this account")
	ErrTagInactive       = errors.New("tag has been deactivated")

	// Polymorphic link errors
	ErrUnknownLinkKind  = errors.New("unknown link kind")
	ErrLinkKeyMismatch  = errors.New("link object key does not match the kind's key type")
	ErrTagAlreadyLinked = errors.New("tag already carries a link")

	// Authentication errors
	ErrUserNotFound    = errors.New("user not found")
	ErrAccountInactive = errors.New("account is inactive")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func IsTagNotFound(err error) bool {
	return errors.Is(err, ErrTagNotFound)
}

func IsDuplicateUID(err error) bool {
	return errors.Is(err, ErrDuplicateUID)
}

func IsTagNotRegistrable(err error) bool {
	return errors.Is(err, ErrTagNotRegistrable)
}

func IsTagNotOwned(err error) bool {
	return errors.Is(err, ErrTagNotOwned)
}

func IsTagInactive(err error) bool {
	return errors.Is(err, ErrTagInactive)
}

func IsUnknownLinkKind(err error) bool {
	return errors.Is(err, ErrUnknownLinkKind)
}

func IsLinkKeyMismatch(err error) bool {
	return errors.Is(err, ErrLinkKeyMismatch)
}

func IsTagAlreadyLinked(err error) bool {
	return errors.Is(err, ErrTagAlreadyLinked)
}

func IsUserNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound)
}

func IsAccountInactive(err error) bool {
	return errors.Is(err, ErrAccountInactive)
}
