package jwk

import (
	"crypto"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"testing"

	"github.com/goccy/go-json"
	lestrratjwk "github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secpKey = JWK{
	KTY: KeyTypeEC,
	CRV: CurveSecp256k1,
	X:   "tXSKB_rubXS7sCjXqupVJEzTcW3MsjmEvq1YpXn96Zg",
	Y:   "dOicXqbjFxoGJ-K0-GJ1kHYJqic_D_OMuUwkQ7Ol6nk",
}

func TestThumbprint(t *testing.T) {
	t.Run("optional members do not change the thumbprint", func(tt *testing.T) {
		base, err := secpKey.Thumbprint()
		require.NoError(tt, err)

		decorated := secpKey
		decorated.ALG = "ES256K"
		decorated.KID = "key-1"
		decorated.Use = "sig"
		decorated.X5C = []string{"MIIB"}
		got, err := decorated.Thumbprint()
		require.NoError(tt, err)
		assert.Equal(tt, base, got)

		private := decorated
		private.D = "private"
		got, err = private.Thumbprint()
		require.NoError(tt, err)
		assert.Equal(tt, base, got)
	})

	t.Run("required members change the thumbprint", func(tt *testing.T) {
		base, err := secpKey.Thumbprint()
		require.NoError(tt, err)

		for _, mutate := range []func(*JWK){
			func(j *JWK) { j.X = "AAAA" + j.X[4:] },
			func(j *JWK) { j.Y = "AAAA" + j.Y[4:] },
			func(j *JWK) { j.CRV = "P-256" },
		} {
			other := secpKey
			mutate(&other)
			got, err := other.Thumbprint()
			require.NoError(tt, err)
			assert.NotEqual(tt, base, got)
		}
	})

	t.Run("matches an independent RFC 7638 implementation for OKP keys", func(tt *testing.T) {
		pub, _, err := ed25519.GenerateKey(rand.Reader)
		require.NoError(tt, err)
		okp := JWK{KTY: KeyTypeOKP, CRV: CurveEd25519, X: base64.RawURLEncoding.EncodeToString(pub)}

		ours, err := okp.Thumbprint()
		require.NoError(tt, err)

		key, err := lestrratjwk.FromRaw(pub)
		require.NoError(tt, err)
		theirs, err := key.Thumbprint(crypto.SHA256)
		require.NoError(tt, err)
		assert.Equal(tt, base64.RawURLEncoding.EncodeToString(theirs), ours)
	})

	t.Run("missing members fail", func(tt *testing.T) {
		_, err := JWK{KTY: KeyTypeEC, CRV: CurveSecp256k1, X: "abc"}.Thumbprint()
		assert.ErrorIs(tt, err, ErrInvalidKey)

		_, err = JWK{CRV: CurveEd25519, X: "abc"}.Thumbprint()
		assert.ErrorIs(tt, err, ErrInvalidKey)

		_, err = JWK{KTY: "RSA", X: "abc"}.Thumbprint()
		assert.ErrorIs(tt, err, ErrInvalidKey)
	})
}

func TestPublicKey(t *testing.T) {
	private := secpKey
	private.D = "secret"
	private.KeyOps = []string{"sign"}

	pub := private.PublicKey()
	assert.False(t, pub.IsPrivate())
	assert.True(t, private.IsPrivate())
	assert.Equal(t, private.X, pub.X)

	pub.KeyOps[0] = "verify"
	assert.Equal(t, "sign", private.KeyOps[0])
}

func TestJSON(t *testing.T) {
	raw := `{"kty":"OKP","crv":"Ed25519","x":"11qYAYKxCrfVS_7TyWQHOg7hcvPapiMlrwIaaPcHURo","x5t#S256":"abc","key_ops":["verify"]}`
	var key JWK
	require.NoError(t, json.Unmarshal([]byte(raw), &key))
	assert.Equal(t, KeyTypeOKP, key.KTY)
	assert.Equal(t, "abc", key.X5T256)
	assert.Equal(t, []string{"verify"}, key.KeyOps)

	out, err := json.Marshal(key)
	require.NoError(t, err)
	assert.NotContains(t, string(out), `"d"`)
	assert.NotContains(t, string(out), `"y"`)
}
