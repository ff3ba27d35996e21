package hash

import (
	"slices"

	"github.com/go-crypt/x/bcrypt"
	"github.com/pkg/errors"
)

const (
	// BcryptSaltLen is the length of the bcrypt-base64 encoded salt.
	BcryptSaltLen = bcrypt.EncodedSaltSize
	// BcryptDigestLen is the length of the bcrypt-base64 encoded digest.
	BcryptDigestLen = bcrypt.EncodedHashSize
	// BcryptMaxPassword is the longest input bcrypt uses in full.
	BcryptMaxPassword = 72

	bcryptRawSaltLen = 16
)

// Bcrypt derives keys with bcrypt. Salt and digest are kept in bcrypt's own
// base64 alphabet so native "$2b$" strings can be imported unchanged.
type Bcrypt struct{}

func NewHasherBcrypt() Primitive {
	return Bcrypt{}
}

func (Bcrypt) ID() string { return IDBcrypt }

func (Bcrypt) Schema() Schema {
	return Schema{
		{Name: "cost", Kind: KindInt, Min: int64(bcrypt.MinCost), Max: int64(bcrypt.MaxCost), Default: "12", Cost: true, Aliases: []string{"rounds"}},
	}
}

func (Bcrypt) NewSalt() ([]byte, error) {
	raw, err := bcrypt.NewSalt()
	if err != nil {
		return nil, errors.Wrap(err, "unable to generate salt")
	}
	return bcrypt.Base64Encode(raw), nil
}

func (Bcrypt) Derive(password, salt []byte, params Params) ([]byte, error) {
	if err := validateBcryptPasswordLength(password); err != nil {
		return nil, err
	}
	if err := checkSaltLen(IDBcrypt, salt, BcryptSaltLen); err != nil {
		return nil, err
	}
	// the final salt character carries two bits, so decoding is not strict;
	// Base64Decode appends padding to its argument
	raw, err := bcrypt.Base64Decode(slices.Clip(salt))
	if err != nil || len(raw) != bcryptRawSaltLen {
		return nil, invalidParam("%s: salt is not bcrypt base64", IDBcrypt)
	}
	key, err := bcrypt.Key(password, raw, int(params.Int("cost")))
	if err != nil {
		return nil, errors.Wrap(err, "bcrypt")
	}
	return key, nil
}

func (h Bcrypt) Verify(password, salt []byte, params Params, digest []byte) (bool, error) {
	return verifyDerived(h, password, salt, params, digest)
}

func validateBcryptPasswordLength(password []byte) error {
	// Bcrypt truncates the password to the first 72 bytes, following the OpenBSD implementation,
	// so if password is longer than 72 bytes, function returns an error
	// See https://en.wikipedia.org/wiki/Bcrypt#User_input
	if len(password) > BcryptMaxPassword {
		return errors.New("password cannot exceed 72 bytes")
	}
	return nil
}
