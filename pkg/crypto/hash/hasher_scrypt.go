package hash

import (
	"github.com/pkg/errors"
	"golang.org/x/crypto/scrypt"
)

const (
	scryptSaltLen = 16
	scryptKeyLen  = 32
)

// Scrypt derives keys with scrypt. ln is log2 of the CPU/memory cost N,
// r the block size and p the parallelization.
type Scrypt struct{}

func NewHasherScrypt() Primitive {
	return Scrypt{}
}

func (Scrypt) ID() string { return IDScrypt }

func (Scrypt) Schema() Schema {
	return Schema{
		{Name: "ln", Kind: KindInt, Min: 10, Max: 24, Default: "14", Cost: true, Aliases: []string{"log_n"}},
		{Name: "r", Kind: KindInt, Min: 1, Max: 32, Default: "8", Cost: true, Aliases: []string{"block"}},
		{Name: "p", Kind: KindInt, Min: 1, Max: 16, Default: "1", Cost: true, Aliases: []string{"parallelization"}},
	}
}

func (Scrypt) NewSalt() ([]byte, error) {
	return randomBytes(scryptSaltLen)
}

func (Scrypt) Derive(password, salt []byte, params Params) ([]byte, error) {
	if err := checkSaltLen(IDScrypt, salt, scryptSaltLen); err != nil {
		return nil, err
	}
	n := 1 << params.Int("ln")
	key, err := scrypt.Key(password, salt, n, int(params.Int("r")), int(params.Int("p")), scryptKeyLen)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return key, nil
}

func (h Scrypt) Verify(password, salt []byte, params Params, digest []byte) (bool, error) {
	return verifyDerived(h, password, salt, params, digest)
}
