package hash

import (
	"crypto/rand"
	"crypto/subtle"
	"io"

	"github.com/pkg/errors"
)

// Identifiers of the built-in primitives.
const (
	IDArgon2id = "argon2id"
	IDScrypt   = "scrypt"
	IDBcrypt   = "bcrypt"
	IDPbkdf2   = "pbkdf2"
	IDHMAC     = "hmac"
)

// Primitive wraps one key derivation algorithm. Parameters are passed on every
// call so a single Primitive serves every configured cost level.
//
// Implementations must be immutable and safe for concurrent use.
type Primitive interface {
	// ID is the stable identifier written into hash strings.
	ID() string

	// Schema declares the accepted parameters, in encoding order.
	Schema() Schema

	// NewSalt returns a fresh random salt suitable for Derive.
	NewSalt() ([]byte, error)

	// Derive computes the digest of password under salt and params.
	Derive(password, salt []byte, params Params) ([]byte, error)

	// Verify recomputes the digest and compares it with digest in constant time.
	Verify(password, salt []byte, params Params, digest []byte) (bool, error)
}

// Factory constructs a Primitive for the registry.
type Factory func() Primitive

// Spec binds a primitive identifier to concrete parameter values.
type Spec struct {
	ID     string
	Params Params
}

func (s Spec) Clone() Spec {
	return Spec{ID: s.ID, Params: s.Params.Clone()}
}

func (s Spec) Equal(o Spec) bool {
	return s.ID == o.ID && s.Params.Equal(o.Params)
}

// String renders "id(k=v,...)" for logs and errors.
func (s Spec) String() string {
	return s.ID + "(" + s.Params.String() + ")"
}

func verifyDerived(p Primitive, password, salt []byte, params Params, digest []byte) (bool, error) {
	computed, err := p.Derive(password, salt, params)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(computed, digest) == 1, nil
}

func randomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return nil, errors.Wrap(err, "unable to generate salt")
	}
	return b, nil
}

func checkSaltLen(id string, salt []byte, want int) error {
	if len(salt) != want {
		return invalidParam("%s: salt must be %d bytes, got %d", id, want, len(salt))
	}
	return nil
}
