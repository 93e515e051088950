package apierr

import (
	"errors"
	"fmt"
)

// Kind classifies upstream failures so batch code can switch on category
// instead of matching error strings.
type Kind string

const (
	KindConfig           = Kind("config")
	KindNotFound         = Kind("not_found")
	KindPermissionDenied = Kind("permission_denied")
	KindProvider         = Kind("provider")
)

type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Message, e.Cause.Error())
	}

	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of the first *Error in err's chain, or KindProvider
// for anything unrecognised - unknown upstream failures are transient by
// definition here.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	return KindProvider
}

func IsConfig(err error) bool           { return KindOf(err) == KindConfig }
func IsNotFound(err error) bool         { return KindOf(err) == KindNotFound }
func IsPermissionDenied(err error) bool { return KindOf(err) == KindPermissionDenied }
