package hashfmt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/achuala/go-pasta/pkg/cache"
	"github.com/achuala/go-pasta/pkg/crypto/hash"
)

func mustSpec(t *testing.T, id string, raw map[string]any) hash.Spec {
	t.Helper()
	spec, err := hash.DefaultRegistry().NewSpec(id, raw)
	require.NoError(t, err)
	return spec
}

func leaf(t *testing.T, id string, raw map[string]any) *HashString {
	t.Helper()
	spec := mustSpec(t, id, raw)
	p, err := hash.DefaultRegistry().Lookup(id)
	require.NoError(t, err)
	salt, err := p.NewSalt()
	require.NoError(t, err)
	digest, err := p.Derive([]byte("hunter2"), salt, spec.Params)
	require.NoError(t, err)
	return &HashString{Spec: spec, Salt: salt, Digest: digest}
}

func TestEncodeLeaf(t *testing.T) {
	h := &HashString{
		Spec:   mustSpec(t, hash.IDScrypt, map[string]any{"ln": 11}),
		Salt:   []byte("0123456789abcdef"),
		Digest: []byte{0xde, 0xad, 0xbe, 0xef},
	}
	assert.Equal(t, "$scrypt$ln=11,r=8,p=1$MDEyMzQ1Njc4OWFiY2RlZg$3q2+7w", Encode(h))
	assert.Equal(t, Encode(h), h.String())
}

func TestRoundTrip(t *testing.T) {
	codec := NewCodec(hash.DefaultRegistry())
	for _, h := range []*HashString{
		leaf(t, hash.IDScrypt, map[string]any{"ln": 10}),
		leaf(t, hash.IDArgon2id, map[string]any{"m": 8192, "t": 1}),
		leaf(t, hash.IDPbkdf2, map[string]any{"c": 10000, "h": "sha512"}),
		leaf(t, hash.IDBcrypt, map[string]any{"cost": 4}),
	} {
		t.Run(h.Spec.ID, func(t *testing.T) {
			got, err := codec.Decode(Encode(h))
			require.NoError(t, err)
			assert.True(t, h.Equal(got), "decoded %s", got)
			assert.Equal(t, Encode(h), Encode(got))
		})
	}
}

func TestRoundTripWrapped(t *testing.T) {
	codec := NewCodec(hash.DefaultRegistry())
	inner := leaf(t, hash.IDBcrypt, map[string]any{"cost": 4})
	inner.Digest = nil
	middle := leaf(t, hash.IDPbkdf2, map[string]any{"c": 10000})
	middle.Digest = nil
	middle.Inner = inner
	outer := leaf(t, hash.IDScrypt, map[string]any{"ln": 10})
	outer.Inner = middle

	token := Encode(outer)
	assert.True(t, strings.HasPrefix(token, "$!$scrypt$ln=10,r=8,p=1$"))
	assert.True(t, strings.HasSuffix(token, "$"))

	got, err := codec.Decode(token)
	require.NoError(t, err)
	assert.True(t, outer.Equal(got))
	assert.Equal(t, 3, got.Depth())
	assert.Equal(t, []string{hash.IDBcrypt, hash.IDPbkdf2, hash.IDScrypt}, got.Chain())
	assert.Equal(t, hash.IDBcrypt, got.Leaf().Spec.ID)
}

func TestEncodeDropsInnerDigests(t *testing.T) {
	codec := NewCodec(hash.DefaultRegistry())
	inner := leaf(t, hash.IDPbkdf2, map[string]any{"c": 10000})
	require.NotEmpty(t, inner.Digest)
	outer := leaf(t, hash.IDScrypt, map[string]any{"ln": 10})

	token := codec.Encode(outer.Spec, outer.Salt, outer.Digest, inner)
	assert.True(t, strings.HasSuffix(token, "$"))

	got, err := codec.Decode(token)
	require.NoError(t, err)
	assert.Equal(t, outer.Digest, got.Digest)
	require.NotNil(t, got.Inner)
	assert.Empty(t, got.Inner.Digest)
	assert.True(t, inner.Spec.Equal(got.Inner.Spec))
	assert.Equal(t, inner.Salt, got.Inner.Salt)
	assert.NotEmpty(t, inner.Digest, "input must not be modified")

	middle := inner.Clone()
	middle.Inner = leaf(t, hash.IDBcrypt, map[string]any{"cost": 4})
	got, err = codec.Decode(Encode(&HashString{Spec: outer.Spec, Salt: outer.Salt, Digest: outer.Digest, Inner: middle}))
	require.NoError(t, err)
	assert.Equal(t, 3, got.Depth())
	assert.Empty(t, got.Inner.Digest)
	assert.Empty(t, got.Leaf().Digest)
}

func TestDecodeMalformed(t *testing.T) {
	codec := NewCodec(hash.DefaultRegistry())
	valid := Encode(leaf(t, hash.IDScrypt, map[string]any{"ln": 10}))
	parts := strings.Split(valid, "$")

	for name, token := range map[string]string{
		"empty":          "",
		"no leading":     strings.TrimPrefix(valid, "$"),
		"too few":        "$scrypt$ln=10,r=8,p=1$abc",
		"too many":       valid + "$extra",
		"empty id":       "$$ln=10,r=8,p=1$" + parts[3] + "$" + parts[4],
		"no digest":      "$scrypt$ln=10,r=8,p=1$" + parts[3] + "$",
		"padded salt":    "$scrypt$ln=10,r=8,p=1$" + parts[3] + "==$" + parts[4],
		"bad digest":     "$scrypt$ln=10,r=8,p=1$" + parts[3] + "$***",
		"bare wrap":      "$!",
		"wrap no inner":  "$!" + valid,
		"inner digest":   "$!" + valid + valid,
		"oversize":       "$scrypt$" + strings.Repeat("a", MaxTokenLen) + "$x$y",
		"bcrypt short":   "$2b$10$abc",
		"bcrypt charset": "$2b$10$" + strings.Repeat("!", hash.BcryptSaltLen+hash.BcryptDigestLen),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := codec.Decode(token)
			assert.ErrorIs(t, err, ErrMalformedHash)
		})
	}
}

func TestDecodeUnknownPrimitive(t *testing.T) {
	codec := NewCodec(hash.DefaultRegistry())
	_, err := codec.Decode("$md5$rounds=1$c2FsdA$ZGlnZXN0")
	assert.ErrorIs(t, err, hash.ErrUnknownPrimitive)
}

func TestDecodeInvalidParameter(t *testing.T) {
	codec := NewCodec(hash.DefaultRegistry())
	for name, params := range map[string]string{
		"out of range":  "ln=2,r=8,p=1",
		"missing":       "ln=10,r=8",
		"unknown":       "ln=10,r=8,p=1,x=1",
		"not canonical": "ln=010,r=8,p=1",
		"alias":         "log_n=10,r=8,p=1",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := codec.Decode("$scrypt$" + params + "$c2FsdA$ZGlnZXN0")
			assert.ErrorIs(t, err, hash.ErrInvalidParameter)
		})
	}
}

func TestDecodeParamOrderInsensitive(t *testing.T) {
	codec := NewCodec(hash.DefaultRegistry())
	h, err := codec.Decode("$scrypt$p=1,r=8,ln=10$c2FsdA$ZGlnZXN0")
	require.NoError(t, err)
	assert.Equal(t, "$scrypt$ln=10,r=8,p=1$c2FsdA$ZGlnZXN0", Encode(h))
}

func TestDecodeDepthLimit(t *testing.T) {
	codec := NewCodec(hash.DefaultRegistry())
	inner := "$pbkdf2$c=10000,h=sha256$c2FsdA$"
	build := func(layers int) string {
		token := inner
		for i := 1; i < layers; i++ {
			digest := ""
			if i == layers-1 {
				digest = "ZGlnZXN0"
			}
			token = "$!$pbkdf2$c=10000,h=sha256$c2FsdA$" + digest + token
		}
		return token
	}

	h, err := codec.Decode(build(MaxDepth))
	require.NoError(t, err)
	assert.Equal(t, MaxDepth, h.Depth())

	_, err = codec.Decode(build(MaxDepth + 1))
	assert.ErrorIs(t, err, ErrMalformedHash)
}

func TestDecodeBcryptMCF(t *testing.T) {
	codec := NewCodec(hash.DefaultRegistry())
	p, err := hash.DefaultRegistry().Lookup(hash.IDBcrypt)
	require.NoError(t, err)
	spec := mustSpec(t, hash.IDBcrypt, map[string]any{"cost": 4})
	salt, err := p.NewSalt()
	require.NoError(t, err)
	digest, err := p.Derive([]byte("hunter2"), salt, spec.Params)
	require.NoError(t, err)

	for _, prefix := range []string{"$2a$", "$2b$", "$2y$"} {
		h, err := codec.Decode(prefix + "04$" + string(salt) + string(digest))
		require.NoError(t, err)
		assert.True(t, spec.Equal(h.Spec))
		assert.Equal(t, salt, h.Salt)

		ok, err := p.Verify([]byte("hunter2"), h.Salt, h.Spec.Params, h.Digest)
		require.NoError(t, err)
		assert.True(t, ok)
	}
}

func TestDecodeBcryptMCFFromXCrypto(t *testing.T) {
	codec := NewCodec(hash.DefaultRegistry())
	p, err := hash.DefaultRegistry().Lookup(hash.IDBcrypt)
	require.NoError(t, err)

	for _, cost := range []int{4, 10} {
		mcf, err := bcrypt.GenerateFromPassword([]byte("hunter2"), cost)
		require.NoError(t, err)

		h, err := codec.Decode(string(mcf))
		require.NoError(t, err, "token %s", mcf)
		assert.True(t, mustSpec(t, hash.IDBcrypt, map[string]any{"cost": cost}).Equal(h.Spec))
		assert.Nil(t, h.Inner)

		ok, err := p.Verify([]byte("hunter2"), h.Salt, h.Spec.Params, h.Digest)
		require.NoError(t, err)
		assert.True(t, ok, "cost %d", cost)

		ok, err = p.Verify([]byte("hunter3"), h.Salt, h.Spec.Params, h.Digest)
		require.NoError(t, err)
		assert.False(t, ok, "cost %d", cost)
	}

	// Published golang.org/x/crypto/bcrypt test vector.
	h, err := codec.Decode("$2a$10$XajjQvNhvvRt5GSeFk1xFeyqRrsxkhBkUiQeg0dt.wU1qD4aFDcga")
	require.NoError(t, err)
	ok, err := p.Verify([]byte("allmine"), h.Salt, h.Spec.Params, h.Digest)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDecodeCacheReturnsCopies(t *testing.T) {
	c, err := cache.NewCache(&cache.CacheConfig{CacheName: "hashfmt", MaxElements: 100})
	require.NoError(t, err)
	codec := NewCodec(hash.DefaultRegistry(), WithCache(c))
	token := Encode(leaf(t, hash.IDScrypt, map[string]any{"ln": 10}))

	first, err := codec.Decode(token)
	require.NoError(t, err)
	c.Wait()

	first.Salt[0] ^= 0xff
	first.Spec.Params[0].Value = "24"

	second, err := codec.Decode(token)
	require.NoError(t, err)
	assert.Equal(t, token, Encode(second))

	_, err = codec.Decode("$md5$x=1$c2FsdA$ZGlnZXN0")
	assert.ErrorIs(t, err, hash.ErrUnknownPrimitive)
}

func TestCloneIsDeep(t *testing.T) {
	h := leaf(t, hash.IDScrypt, map[string]any{"ln": 10})
	h.Inner = leaf(t, hash.IDPbkdf2, map[string]any{"c": 10000})
	h.Inner.Digest = nil

	c := h.Clone()
	require.True(t, h.Equal(c))
	c.Inner.Salt[0] ^= 0xff
	assert.False(t, h.Equal(c))
}
