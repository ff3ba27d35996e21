package hash

import (
	"strconv"

	"github.com/inhies/go-bytesize"
	"golang.org/x/crypto/argon2"
)

const (
	argon2SaltLen = 16
	argon2KeyLen  = 32
)

func kib(size bytesize.ByteSize) string {
	return strconv.FormatInt(int64(size/bytesize.KB), 10)
}

// Argon2 derives keys with Argon2id. m is the memory cost in KiB, t the
// number of passes and p the degree of parallelism.
type Argon2 struct{}

func NewHasherArgon2() Primitive {
	return Argon2{}
}

func (Argon2) ID() string { return IDArgon2id }

func (Argon2) Schema() Schema {
	return Schema{
		{Name: "m", Kind: KindByteSize, Min: 8 * 1024, Max: 4 * 1024 * 1024, Default: kib(19 * bytesize.MB), Cost: true, Aliases: []string{"memory"}},
		{Name: "t", Kind: KindInt, Min: 1, Max: 64, Default: "2", Cost: true, Aliases: []string{"time", "iterations"}},
		{Name: "p", Kind: KindInt, Min: 1, Max: 64, Default: "1", Cost: true, Aliases: []string{"parallelism", "lanes"}},
	}
}

func (Argon2) NewSalt() ([]byte, error) {
	return randomBytes(argon2SaltLen)
}

func (Argon2) Derive(password, salt []byte, params Params) ([]byte, error) {
	if err := checkSaltLen(IDArgon2id, salt, argon2SaltLen); err != nil {
		return nil, err
	}
	return argon2.IDKey(password, salt,
		uint32(params.Int("t")), uint32(params.Int("m")), uint8(params.Int("p")), argon2KeyLen), nil
}

func (h Argon2) Verify(password, salt []byte, params Params, digest []byte) (bool, error) {
	return verifyDerived(h, password, salt, params, digest)
}
