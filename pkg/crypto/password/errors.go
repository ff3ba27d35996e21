package password

import (
	"github.com/pkg/errors"

	"github.com/achuala/go-pasta/pkg/crypto/hash"
	"github.com/achuala/go-pasta/pkg/crypto/hashfmt"
)

var (
	// ErrVerification is matched by every *VerificationError.
	ErrVerification = errors.New("verification error")
	// ErrMigrationUnsupported is returned by Migrate when the active policy
	// cannot take a whole token as its input.
	ErrMigrationUnsupported = errors.New("policy cannot wrap existing hashes")
)

// VerificationError reports that a stored token could not be checked at all.
// A wrong password is not an error.
type VerificationError struct {
	Op  string
	Err error
}

func (e *VerificationError) Error() string {
	return ErrVerification.Error() + ": " + e.Op + ": " + e.Err.Error()
}

func (e *VerificationError) Unwrap() error { return e.Err }

func (e *VerificationError) Is(target error) bool { return target == ErrVerification }

// errKind names the class of err for logs, which never carry token content.
func errKind(err error) string {
	switch {
	case errors.Is(err, hashfmt.ErrMalformedHash):
		return "malformed_hash"
	case errors.Is(err, hash.ErrUnknownPrimitive):
		return "unknown_primitive"
	case errors.Is(err, hash.ErrInvalidParameter):
		return "invalid_parameter"
	case errors.Is(err, hash.ErrKeyNotFound):
		return "key_not_found"
	default:
		return "internal"
	}
}
