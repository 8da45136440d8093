package predict

import (
	"errors"
	"fmt"

	"github.com/mealphase/mealphase/features"
)

// Category splits failures into the caller's fault and ours.
type Category string

const (
	// BadRequest covers insufficient data, degenerate windows and malformed input.
	BadRequest Category = "bad_request"
	// ServerFault covers contract and shape mismatches and anything unexpected.
	ServerFault Category = "server_fault"
)

// CategoryOf classifies err. Only the bad-request sentinels are matched;
// everything else is a server fault.
func CategoryOf(err error) Category {
	if errors.Is(err, features.ErrInsufficientData) ||
		errors.Is(err, features.ErrDegenerateWindow) ||
		errors.Is(err, ErrMalformedInput) {
		return BadRequest
	}
	return ServerFault
}

type malformedError struct{ msg string }

func (e *malformedError) Error() string { return e.msg }

func (e *malformedError) Is(target error) bool { return target == ErrMalformedInput }

// Malformed returns an input error carrying only the formatted message that
// still matches ErrMalformedInput.
func Malformed(format string, args ...any) error {
	return &malformedError{msg: fmt.Sprintf(format, args...)}
}
