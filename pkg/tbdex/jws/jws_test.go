package jws

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbd54566975/tbdex-go/pkg/crypto/dsa"
	"github.com/tbd54566975/tbdex-go/pkg/crypto/keymanager"
	"github.com/tbd54566975/tbdex-go/pkg/dids"
	"github.com/tbd54566975/tbdex-go/pkg/dids/didcore"
	"github.com/tbd54566975/tbdex-go/pkg/dids/didjwk"
	"github.com/tbd54566975/tbdex-go/pkg/dids/resolver"
)

func newBearer(t *testing.T, alg dsa.Algorithm) (*dids.BearerDID, *keymanager.LocalKeyManager) {
	km, err := keymanager.NewLocalKeyManager()
	require.NoError(t, err)
	bearer, err := didjwk.Create(km, alg)
	require.NoError(t, err)
	return bearer, km
}

func TestSignAndVerify(t *testing.T) {
	registry := resolver.NewRegistry(didjwk.Resolver{})
	payload := []byte("a digest")

	for _, alg := range dsa.SupportedAlgorithms() {
		t.Run(alg.String(), func(tt *testing.T) {
			bearer, _ := newBearer(tt, alg)

			compact, err := Sign(payload, bearer, Detached(true))
			require.NoError(tt, err)
			assert.True(tt, compact.IsDetached())
			assert.Len(tt, strings.Split(compact.String(), "."), 3)

			decoded, verified, err := Verify(context.Background(), compact, payload, registry)
			require.NoError(tt, err)
			assert.True(tt, verified)
			assert.Equal(tt, bearer.URI, decoded.SignerDID.URI)
			assert.Equal(tt, bearer.URI+"#0", decoded.Header.KeyID())
			assert.Equal(tt, alg.String(), decoded.Header.Algorithm().String())

			_, verified, err = Verify(context.Background(), compact, []byte("another digest"), registry)
			assert.NoError(tt, err)
			assert.False(tt, verified)
		})
	}
}

func TestAttachedPayload(t *testing.T) {
	registry := resolver.NewRegistry(didjwk.Resolver{})
	bearer, _ := newBearer(t, dsa.AlgorithmEdDSA)

	compact, err := Sign([]byte("attached"), bearer)
	require.NoError(t, err)
	assert.False(t, compact.IsDetached())

	decoded, verified, err := Verify(context.Background(), compact, nil, registry)
	require.NoError(t, err)
	assert.True(t, verified)
	assert.Equal(t, []byte("attached"), decoded.Payload)

	t.Run("a different detached payload is rejected", func(tt *testing.T) {
		_, _, err := Verify(context.Background(), compact, []byte("other"), registry)
		assert.ErrorIs(tt, err, ErrMalformed)
	})

	t.Run("the same detached payload is accepted", func(tt *testing.T) {
		_, verified, err := Verify(context.Background(), compact, []byte("attached"), registry)
		require.NoError(tt, err)
		assert.True(tt, verified)
	})
}

func TestTamperedSignature(t *testing.T) {
	registry := resolver.NewRegistry(didjwk.Resolver{})
	bearer, _ := newBearer(t, dsa.AlgorithmES256K)
	payload := []byte("a digest")

	compact, err := Sign(payload, bearer, Detached(true))
	require.NoError(t, err)

	parts := strings.Split(compact.String(), ".")
	signature, err := base64.RawURLEncoding.DecodeString(parts[2])
	require.NoError(t, err)
	signature[10] ^= 0x01
	tampered := JWS(parts[0] + ".." + base64.RawURLEncoding.EncodeToString(signature))

	_, verified, err := Verify(context.Background(), tampered, payload, registry)
	assert.NoError(t, err)
	assert.False(t, verified)
}

func TestVerificationMethodFallback(t *testing.T) {
	registry := resolver.NewRegistry(didjwk.Resolver{})
	bearer, km := newBearer(t, dsa.AlgorithmEdDSA)
	aliases, err := km.Aliases()
	require.NoError(t, err)
	privateKey, err := km.ExportPrivateKey(aliases[0])
	require.NoError(t, err)

	signWithHeader := func(header string, payload []byte) JWS {
		encodedHeader := base64.RawURLEncoding.EncodeToString([]byte(header))
		input := encodedHeader + "." + base64.RawURLEncoding.EncodeToString(payload)
		signature, err := dsa.Sign([]byte(input), privateKey)
		require.NoError(t, err)
		return JWS(encodedHeader + ".." + base64.RawURLEncoding.EncodeToString(signature))
	}
	payload := []byte("a digest")

	t.Run("unknown kid falls back to a method matching alg", func(tt *testing.T) {
		compact := signWithHeader(`{"alg":"EdDSA","kid":"`+bearer.URI+`#unknown"}`, payload)
		_, verified, err := Verify(context.Background(), compact, payload, registry)
		assert.NoError(tt, err)
		assert.True(tt, verified)
	})

	t.Run("no method for alg", func(tt *testing.T) {
		compact := signWithHeader(`{"alg":"ES256K","kid":"`+bearer.URI+`#unknown"}`, payload)
		_, _, err := Verify(context.Background(), compact, payload, registry)
		assert.ErrorIs(tt, err, ErrVerificationMethodNotFound)
	})

	t.Run("alg does not match the kid's key", func(tt *testing.T) {
		compact := signWithHeader(`{"alg":"ES256K","kid":"`+bearer.URI+`#0"}`, payload)
		_, _, err := Verify(context.Background(), compact, payload, registry)
		assert.ErrorIs(tt, err, ErrAlgorithmMismatch)
	})

	t.Run("unresolvable signer", func(tt *testing.T) {
		compact := signWithHeader(`{"alg":"EdDSA","kid":"did:web:example.com#0"}`, payload)
		_, _, err := Verify(context.Background(), compact, payload, registry)
		assert.ErrorIs(tt, err, didcore.ErrResolution)
	})
}

func TestDecodeMalformed(t *testing.T) {
	encode := func(s string) string { return base64.RawURLEncoding.EncodeToString([]byte(s)) }

	for name, compact := range map[string]string{
		"two parts":         "abc.def",
		"header not base64": "!!!..abc",
		"header not json":   encode("nope") + "..abc",
		"missing alg":       encode(`{"kid":"did:example:123#0"}`) + "..abc",
		"kid not a did":     encode(`{"alg":"EdDSA","kid":"key-1"}`) + "..abc",
		"signature invalid": encode(`{"alg":"EdDSA","kid":"did:example:123#0"}`) + "..!!!",
	} {
		t.Run(name, func(tt *testing.T) {
			_, err := Decode(JWS(compact), []byte("payload"))
			assert.ErrorIs(tt, err, ErrMalformed)
		})
	}
}

func TestSignErrors(t *testing.T) {
	_, err := Sign([]byte("payload"), nil)
	assert.Error(t, err)

	bearer, _ := newBearer(t, dsa.AlgorithmEdDSA)
	_, err = Sign([]byte("payload"), bearer, VerificationMethod("missing"))
	assert.ErrorIs(t, err, dids.ErrNoSigningKey)
}
