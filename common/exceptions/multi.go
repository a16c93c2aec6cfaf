package exceptions

import (
	"errors"
	"strings"
)

type MultiError interface {
	UnwrapMulti() []error
}

type multiError struct {
	errors []error
}

func (e *multiError) Error() string {
	messages := make([]string, 0, len(e.errors))
	for _, err := range e.errors {
		messages = append(messages, err.Error())
	}
	return "multi error: (" + strings.Join(messages, " | ") + ")"
}

func (e *multiError) UnwrapMulti() []error {
	return e.errors
}

func (e *multiError) Unwrap() []error {
	return e.errors
}

// Errors joins the non-nil errors. It returns nil when none remain and the
// error itself when only one does.
func Errors(errors ...error) error {
	var nonNil []error
	for _, err := range errors {
		if err != nil {
			nonNil = append(nonNil, err)
		}
	}
	switch len(nonNil) {
	case 0:
		return nil
	case 1:
		return nonNil[0]
	}
	return &multiError{nonNil}
}

func IsMulti(err error, targetList ...error) bool {
	for _, target := range targetList {
		if errors.Is(err, target) {
			return true
		}
	}
	multiErr, isMulti := Cast[MultiError](err)
	if !isMulti {
		return false
	}
	for _, inner := range multiErr.UnwrapMulti() {
		if !IsMulti(inner, targetList...) {
			return false
		}
	}
	return true
}
