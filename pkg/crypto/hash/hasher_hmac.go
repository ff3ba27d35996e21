package hash

import (
	"crypto/hmac"
)

// Keyring resolves HMAC keys by id.
type Keyring interface {
	Key(id string) ([]byte, bool)
}

// StaticKeyring is an in-memory Keyring.
type StaticKeyring map[string][]byte

func (k StaticKeyring) Key(id string) ([]byte, bool) {
	key, ok := k[id]
	return key, ok
}

// HMAC is a keyed primitive, mostly used as the outer layer of a wrapped
// hash so that stored digests are useless without the key. It takes no salt.
type HMAC struct {
	keys Keyring
}

// HMACFactory returns a Factory for an HMAC primitive backed by keys.
func HMACFactory(keys Keyring) Factory {
	return func() Primitive {
		return &HMAC{keys: keys}
	}
}

func (*HMAC) ID() string { return IDHMAC }

func (*HMAC) Schema() Schema {
	return Schema{
		{Name: "h", Kind: KindString, Default: "sha256", Choices: []string{"sha256", "sha512"}},
		{Name: "key_id", Kind: KindString},
	}
}

func (*HMAC) NewSalt() ([]byte, error) {
	return []byte{}, nil
}

func (h *HMAC) Derive(data, salt []byte, params Params) ([]byte, error) {
	if err := checkSaltLen(IDHMAC, salt, 0); err != nil {
		return nil, err
	}
	alg, _ := params.Get("h")
	newHash, ok := digests[alg]
	if !ok {
		return nil, invalidParam("hmac: unsupported digest %q", alg)
	}
	id, _ := params.Get("key_id")
	key, ok := h.keys.Key(id)
	if !ok {
		return nil, ErrKeyNotFound
	}
	mac := hmac.New(newHash, key)
	mac.Write(data)
	return mac.Sum(nil), nil
}

func (h *HMAC) Verify(data, salt []byte, params Params, digest []byte) (bool, error) {
	return verifyDerived(h, data, salt, params, digest)
}
