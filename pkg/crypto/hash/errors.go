package hash

import (
	"github.com/pkg/errors"
)

var (
	// ErrUnknownPrimitive is returned when an identifier has no registered primitive.
	ErrUnknownPrimitive = errors.New("unknown primitive")
	// ErrInvalidParameter is returned when a parameter is unknown, missing or out of range.
	ErrInvalidParameter = errors.New("invalid parameter")
	// ErrDuplicateIdentifier is returned when a different factory is registered under a taken identifier.
	ErrDuplicateIdentifier = errors.New("duplicate primitive identifier")
	// ErrKeyNotFound is returned by keyed primitives when the key id is not in the keyring.
	ErrKeyNotFound = errors.New("key not found")
)

func invalidParam(format string, args ...any) error {
	return errors.Wrapf(ErrInvalidParameter, format, args...)
}
