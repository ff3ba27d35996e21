package hash

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func weakSpec(t *testing.T, p Primitive) Params {
	t.Helper()
	var raw map[string]any
	switch p.ID() {
	case IDArgon2id:
		raw = map[string]any{"m": 8192, "t": 1, "p": 1}
	case IDScrypt:
		raw = map[string]any{"ln": 10}
	case IDBcrypt:
		raw = map[string]any{"cost": 4}
	case IDPbkdf2:
		raw = map[string]any{"c": 10000}
	case IDHMAC:
		raw = map[string]any{"key_id": "k1"}
	}
	params, err := p.Schema().Resolve(nil, raw)
	require.NoError(t, err)
	return params
}

func allPrimitives() []Primitive {
	return []Primitive{
		NewHasherArgon2(),
		NewHasherScrypt(),
		NewHasherBcrypt(),
		NewHasherPbkdf2(),
		HMACFactory(StaticKeyring{"k1": []byte("pepper")})(),
	}
}

func TestPrimitiveDeriveVerify(t *testing.T) {
	for _, p := range allPrimitives() {
		t.Run(p.ID(), func(t *testing.T) {
			params := weakSpec(t, p)
			salt, err := p.NewSalt()
			require.NoError(t, err)

			digest, err := p.Derive([]byte("hunter2"), salt, params)
			require.NoError(t, err)
			assert.NotEmpty(t, digest)

			again, err := p.Derive([]byte("hunter2"), salt, params)
			require.NoError(t, err)
			assert.Equal(t, digest, again, "derive must be deterministic")

			ok, err := p.Verify([]byte("hunter2"), salt, params, digest)
			require.NoError(t, err)
			assert.True(t, ok)

			ok, err = p.Verify([]byte("hunter3"), salt, params, digest)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestPrimitiveRejectsBadSalt(t *testing.T) {
	for _, p := range allPrimitives() {
		if p.ID() == IDHMAC {
			continue
		}
		t.Run(p.ID(), func(t *testing.T) {
			_, err := p.Derive([]byte("pw"), []byte("short"), weakSpec(t, p))
			assert.ErrorIs(t, err, ErrInvalidParameter)
		})
	}
}

func TestBcryptSaltAlphabet(t *testing.T) {
	salt, err := NewHasherBcrypt().NewSalt()
	require.NoError(t, err)
	assert.Len(t, salt, BcryptSaltLen)
	assert.Regexp(t, `^[./A-Za-z0-9]{22}$`, string(salt))
}

func TestBcryptInteropWithXCrypto(t *testing.T) {
	p := NewHasherBcrypt()
	for _, cost := range []int{4, 5, 10} {
		t.Run(strconv.Itoa(cost), func(t *testing.T) {
			mcf, err := bcrypt.GenerateFromPassword([]byte("correct horse"), cost)
			require.NoError(t, err)
			// $2a$NN$<22 salt><31 digest>
			secret := mcf[7:]
			salt, digest := secret[:BcryptSaltLen], secret[BcryptSaltLen:]

			params, err := p.Schema().Resolve(nil, map[string]any{"cost": cost})
			require.NoError(t, err)
			ok, err := p.Verify([]byte("correct horse"), salt, params, digest)
			require.NoError(t, err)
			assert.True(t, ok)

			ok, err = p.Verify([]byte("correct horsf"), salt, params, digest)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}

	// and the other way round
	salt, err := p.NewSalt()
	require.NoError(t, err)
	params, err := p.Schema().Resolve(nil, map[string]any{"cost": 4})
	require.NoError(t, err)
	digest, err := p.Derive([]byte("pw"), salt, params)
	require.NoError(t, err)
	require.Len(t, digest, BcryptDigestLen)
	mcf := "$2b$04$" + string(salt) + string(digest)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(mcf), []byte("pw")))
}

func TestBcryptRejectsForeignSalt(t *testing.T) {
	p := NewHasherBcrypt()
	params := weakSpec(t, p)
	_, err := p.Derive([]byte("pw"), []byte("!!!!!!!!!!!!!!!!!!!!!!"), params)
	assert.ErrorIs(t, err, ErrInvalidParameter)
	_, err = p.Derive([]byte("pw"), make([]byte, 16), params)
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestBcryptPasswordTooLong(t *testing.T) {
	p := NewHasherBcrypt()
	salt, err := p.NewSalt()
	require.NoError(t, err)
	long := make([]byte, 73)
	_, err = p.Derive(long, salt, weakSpec(t, p))
	assert.Error(t, err)
}

func TestHMACUnknownKey(t *testing.T) {
	p := HMACFactory(StaticKeyring{})()
	_, err := p.Derive([]byte("pw"), nil, weakSpec(t, p))
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestArgon2MemoryDefault(t *testing.T) {
	d, ok := NewHasherArgon2().Schema().Def("memory")
	require.True(t, ok)
	assert.Equal(t, "m", d.Name)
	assert.Equal(t, strconv.Itoa(19*1024), d.Default)
}

func TestSpecString(t *testing.T) {
	s := Spec{ID: IDScrypt, Params: Params{{"ln", "11"}, {"r", "8"}, {"p", "1"}}}
	assert.Equal(t, "scrypt(ln=11,r=8,p=1)", s.String())
	assert.True(t, s.Equal(s.Clone()))
}
