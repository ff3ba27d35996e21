package hash

import (
	"crypto/sha256"
	"crypto/sha512"
	gohash "hash"

	"golang.org/x/crypto/pbkdf2"
)

const (
	pbkdf2SaltLen = 16
	pbkdf2KeyLen  = 32
)

var digests = map[string]func() gohash.Hash{
	"sha256": sha256.New,
	"sha512": sha512.New,
}

// Pbkdf2 derives keys with PBKDF2. c is the iteration count and h the HMAC digest.
type Pbkdf2 struct{}

func NewHasherPbkdf2() Primitive {
	return Pbkdf2{}
}

func (Pbkdf2) ID() string { return IDPbkdf2 }

func (Pbkdf2) Schema() Schema {
	return Schema{
		{Name: "c", Kind: KindInt, Min: 10_000, Max: 10_000_000, Default: "600000", Cost: true, Aliases: []string{"iterations"}},
		{Name: "h", Kind: KindString, Default: "sha256", Choices: []string{"sha256", "sha512"}, Aliases: []string{"prf"}},
	}
}

func (Pbkdf2) NewSalt() ([]byte, error) {
	return randomBytes(pbkdf2SaltLen)
}

func (Pbkdf2) Derive(password, salt []byte, params Params) ([]byte, error) {
	if err := checkSaltLen(IDPbkdf2, salt, pbkdf2SaltLen); err != nil {
		return nil, err
	}
	h, _ := params.Get("h")
	newHash, ok := digests[h]
	if !ok {
		return nil, invalidParam("pbkdf2: unsupported digest %q", h)
	}
	return pbkdf2.Key(password, salt, int(params.Int("c")), pbkdf2KeyLen, newHash), nil
}

func (h Pbkdf2) Verify(password, salt []byte, params Params, digest []byte) (bool, error) {
	return verifyDerived(h, password, salt, params, digest)
}
