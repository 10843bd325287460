package token

import (
	"errors"
	"fmt"
)

// Error codes.
const (
	// ErrCodeTokenConsumed is returned by a second terminal call on a token.
	ErrCodeTokenConsumed = "TOKEN_CONSUMED"
)

// Error is a token misuse error.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsConsumed reports whether err is a consumption violation.
func IsConsumed(err error) bool {
	var te *Error
	return errors.As(err, &te) && te.Code == ErrCodeTokenConsumed
}

func consumedError() *Error {
	return &Error{
		Code:    ErrCodeTokenConsumed,
		Message: "token already consumed: values, changes and changesWithOps may be called only once per token",
	}
}

// ErrIteratorStopped is returned by Next after Stop.
var ErrIteratorStopped = errors.New("iterator stopped")
