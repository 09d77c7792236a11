package doctags

import (
	"errors"
	"fmt"
)

// ErrMalformed matches every parse failure reported by this package.
var ErrMalformed = errors.New("malformed doctags")

// MalformedMarkupError reports input that is not well-formed tagged text.
type MalformedMarkupError struct {
	Err error
}

func (e *MalformedMarkupError) Error() string {
	return fmt.Sprintf("malformed markup: %v", e.Err)
}

func (e *MalformedMarkupError) Unwrap() error { return e.Err }

func (e *MalformedMarkupError) Is(target error) bool { return target == ErrMalformed }

// MalformedBoundingBoxError reports a bbox attribute that is not exactly four
// finite numbers.
type MalformedBoundingBoxError struct {
	Element string
	Value   string
	Reason  string
}

func (e *MalformedBoundingBoxError) Error() string {
	return fmt.Sprintf("malformed bbox %q on <%s>: %s", e.Value, e.Element, e.Reason)
}

func (e *MalformedBoundingBoxError) Is(target error) bool { return target == ErrMalformed }
