package hashfmt

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"strconv"
	"strings"

	"github.com/dchest/siphash"
	"github.com/go-crypt/crypt/algorithm/bcrypt"
	"github.com/pkg/errors"

	"github.com/achuala/go-pasta/pkg/cache"
	"github.com/achuala/go-pasta/pkg/crypto/hash"
)

const (
	// MaxDepth bounds the number of layers in a wrapped token.
	MaxDepth = 8
	// MaxTokenLen bounds the size of a token accepted by Decode.
	MaxTokenLen = 4096

	wrapPrefix  = "$!"
	bcryptChars = "./ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// ErrMalformedHash is returned when a token violates the delimiter structure.
var ErrMalformedHash = errors.New("malformed hash string")

// Salts and digests never contain '$', ',' or '='.
var b64 = base64.RawStdEncoding.Strict()

// Encode renders h as a token.
//
//	leaf:    $<id>$<k=v,...>$<salt>$<digest>
//	wrapped: $!$<id>$<k=v,...>$<salt>$<digest><inner token>
//
// Inner layers are written with an empty digest whatever their Digest holds,
// since only the outermost digest is ever verified.
func Encode(h *HashString) string {
	var b strings.Builder
	for l := h; l != nil; l = l.Inner {
		if l.Inner != nil {
			b.WriteString(wrapPrefix)
		}
		b.WriteByte('$')
		b.WriteString(l.Spec.ID)
		b.WriteByte('$')
		b.WriteString(l.Spec.Params.String())
		b.WriteByte('$')
		b.WriteString(b64.EncodeToString(l.Salt))
		b.WriteByte('$')
		if l == h {
			b.WriteString(b64.EncodeToString(l.Digest))
		}
	}
	return b.String()
}

type cached struct {
	token string
	h     *HashString
}

// Codec decodes tokens against a registry.
type Codec struct {
	reg    *hash.Registry
	cache  cache.Cache
	k0, k1 uint64
}

type Option func(*Codec)

// WithCache memoizes successful decodes. Entries are keyed by a keyed
// SipHash-2-4 of the token.
func WithCache(c cache.Cache) Option {
	return func(codec *Codec) {
		codec.cache = c
	}
}

func NewCodec(reg *hash.Registry, opts ...Option) *Codec {
	c := &Codec{reg: reg}
	for _, opt := range opts {
		opt(c)
	}
	if c.cache != nil {
		var key [16]byte
		if _, err := rand.Read(key[:]); err != nil {
			// without a secret key cached lookups would be predictable
			c.cache = nil
		}
		c.k0 = binary.LittleEndian.Uint64(key[:8])
		c.k1 = binary.LittleEndian.Uint64(key[8:])
	}
	return c
}

// Encode builds and renders a token from its components.
func (c *Codec) Encode(spec hash.Spec, salt, digest []byte, inner *HashString) string {
	return Encode(&HashString{Spec: spec, Salt: salt, Digest: digest, Inner: inner})
}

// Decode parses a token, unwrapping every layer. It fails with
// ErrMalformedHash, hash.ErrUnknownPrimitive or hash.ErrInvalidParameter.
func (c *Codec) Decode(s string) (*HashString, error) {
	var key uint64
	if c.cache != nil {
		key = siphash.Hash(c.k0, c.k1, []byte(s))
		if v, ok := c.cache.Get(key); ok {
			if e, ok := v.(cached); ok && e.token == s {
				return e.h.Clone(), nil
			}
		}
	}
	if len(s) > MaxTokenLen {
		return nil, errors.Wrapf(ErrMalformedHash, "token exceeds %d bytes", MaxTokenLen)
	}
	h, err := c.decode(s, 0)
	if err != nil {
		return nil, err
	}
	if c.cache != nil {
		// a dropped entry only costs a re-parse
		_ = c.cache.Set(key, cached{token: s, h: h.Clone()})
	}
	return h, nil
}

func (c *Codec) decode(s string, depth int) (*HashString, error) {
	if depth >= MaxDepth {
		return nil, errors.Wrapf(ErrMalformedHash, "more than %d layers", MaxDepth)
	}
	root := depth == 0
	switch {
	case strings.HasPrefix(s, wrapPrefix):
		parts := strings.SplitN(s[len(wrapPrefix):], "$", 6)
		if len(parts) != 6 || parts[0] != "" {
			return nil, errors.Wrap(ErrMalformedHash, "wrapped token has no inner layer")
		}
		outer, err := c.layer(parts[1], parts[2], parts[3], parts[4], root)
		if err != nil {
			return nil, err
		}
		if outer.Inner, err = c.decode("$"+parts[5], depth+1); err != nil {
			return nil, err
		}
		return outer, nil
	case root && isBcryptMCF(s):
		return c.decodeBcryptMCF(s)
	default:
		parts := strings.Split(s, "$")
		if len(parts) != 5 || parts[0] != "" {
			return nil, errors.Wrapf(ErrMalformedHash, "expected 4 fields, got %d", len(parts)-1)
		}
		return c.layer(parts[1], parts[2], parts[3], parts[4], root)
	}
}

func (c *Codec) layer(id, params, salt, digest string, withDigest bool) (*HashString, error) {
	if id == "" {
		return nil, errors.Wrap(ErrMalformedHash, "empty identifier")
	}
	if withDigest != (digest != "") {
		if withDigest {
			return nil, errors.Wrap(ErrMalformedHash, "missing digest")
		}
		return nil, errors.Wrap(ErrMalformedHash, "wrapped layer carries a digest")
	}
	rawSalt, err := b64.DecodeString(salt)
	if err != nil {
		return nil, errors.Wrapf(ErrMalformedHash, "salt: %v", err)
	}
	rawDigest, err := b64.DecodeString(digest)
	if err != nil {
		return nil, errors.Wrapf(ErrMalformedHash, "digest: %v", err)
	}
	p, err := c.reg.Lookup(id)
	if err != nil {
		return nil, err
	}
	parsed, err := p.Schema().Parse(params)
	if err != nil {
		return nil, errors.WithMessage(err, id)
	}
	return &HashString{
		Spec:   hash.Spec{ID: id, Params: parsed},
		Salt:   rawSalt,
		Digest: rawDigest,
	}, nil
}

func isBcryptMCF(s string) bool {
	return strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$")
}

// decodeBcryptMCF imports a native "$2b$<cost>$<salt><hash>" string.
func (c *Codec) decodeBcryptMCF(s string) (*HashString, error) {
	parts := strings.Split(s, "$")
	if len(parts) != 4 || len(parts[2]) != 2 || len(parts[3]) != hash.BcryptSaltLen+hash.BcryptDigestLen {
		return nil, errors.Wrap(ErrMalformedHash, "bcrypt string")
	}
	if strings.Trim(parts[3], bcryptChars) != "" {
		return nil, errors.Wrap(ErrMalformedHash, "bcrypt string alphabet")
	}
	if _, err := bcrypt.Decode(s); err != nil {
		return nil, errors.Wrapf(ErrMalformedHash, "%v", err)
	}
	cost, err := strconv.Atoi(parts[2])
	if err != nil {
		return nil, errors.Wrap(ErrMalformedHash, "bcrypt cost")
	}
	p, err := c.reg.Lookup(hash.IDBcrypt)
	if err != nil {
		return nil, err
	}
	params, err := p.Schema().Parse("cost=" + strconv.Itoa(cost))
	if err != nil {
		return nil, errors.WithMessage(err, hash.IDBcrypt)
	}
	return &HashString{
		Spec:   hash.Spec{ID: hash.IDBcrypt, Params: params},
		Salt:   []byte(parts[3][:hash.BcryptSaltLen]),
		Digest: []byte(parts[3][hash.BcryptSaltLen:]),
	}, nil
}
