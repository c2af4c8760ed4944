package didjwk

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbd54566975/tbdex-go/pkg/crypto/dsa"
	"github.com/tbd54566975/tbdex-go/pkg/crypto/keymanager"
	"github.com/tbd54566975/tbdex-go/pkg/dids/didcore"
)

func TestCreateAndResolve(t *testing.T) {
	for _, alg := range dsa.SupportedAlgorithms() {
		t.Run(alg.String(), func(tt *testing.T) {
			km, err := keymanager.NewLocalKeyManager()
			require.NoError(tt, err)

			bearer, err := Create(km, alg)
			require.NoError(tt, err)
			assert.Equal(tt, Method, bearer.Method())

			result := Resolver{}.Resolve(context.Background(), bearer.URI)
			require.NoError(tt, result.Err())
			doc := result.Document
			assert.Equal(tt, bearer.URI, doc.ID)
			assert.Equal(tt, bearer.Document, *doc)

			require.Len(tt, doc.VerificationMethod, 1)
			vm := doc.VerificationMethod[0]
			vmID := bearer.URI + "#0"
			assert.Equal(tt, vmID, vm.ID)
			assert.Equal(tt, didcore.JSONWebKey2020Type, vm.Type)
			assert.Equal(tt, bearer.URI, vm.Controller)

			aliases, err := km.Aliases()
			require.NoError(tt, err)
			require.Len(tt, aliases, 1)
			publicKey, err := km.GetPublicKey(aliases[0])
			require.NoError(tt, err)
			require.NotNil(tt, vm.PublicKeyJWK)
			assert.True(tt, publicKey.Equal(*vm.PublicKeyJWK))
			assert.False(tt, vm.PublicKeyJWK.IsPrivate())

			for _, relationship := range [][]didcore.VerificationRelationship{
				doc.Authentication, doc.AssertionMethod, doc.CapabilityDelegation, doc.CapabilityInvocation,
			} {
				require.Len(tt, relationship, 1)
				assert.Equal(tt, vmID, relationship[0].Reference)
			}
			assert.Empty(tt, doc.KeyAgreement)
		})
	}
}

func TestResolveKnownIdentifier(t *testing.T) {
	key := `{"crv":"Ed25519","kty":"OKP","x":"11qYAYKxCrfVS_7TyWQHOg7hcvPapiMlrwIaaPcHURo"}`
	uri := "did:jwk:" + base64.RawURLEncoding.EncodeToString([]byte(key))

	result := Resolver{}.Resolve(context.Background(), uri)
	require.NoError(t, result.Err())
	publicKey, err := result.Document.VerificationMethod[0].PublicKey()
	require.NoError(t, err)
	assert.Equal(t, "11qYAYKxCrfVS_7TyWQHOg7hcvPapiMlrwIaaPcHURo", publicKey.X)

	alg, err := dsa.AlgorithmForKey(publicKey)
	assert.NoError(t, err)
	assert.Equal(t, dsa.AlgorithmEdDSA, alg)
}

func TestResolveInvalid(t *testing.T) {
	encode := func(s string) string { return base64.RawURLEncoding.EncodeToString([]byte(s)) }

	for name, uri := range map[string]string{
		"not a did":       "invalid:uri",
		"other method":    "did:web:example.com",
		"not base64url":   "did:jwk:!!!",
		"not json":        "did:jwk:" + encode("hello"),
		"missing members": "did:jwk:" + encode(`{"kty":"OKP"}`),
		"private key":     "did:jwk:" + encode(`{"kty":"OKP","crv":"Ed25519","x":"abc","d":"def"}`),
		"unsupported kty": "did:jwk:" + encode(`{"kty":"RSA","n":"abc","e":"AQAB"}`),
	} {
		t.Run(name, func(tt *testing.T) {
			result := Resolver{}.Resolve(context.Background(), uri)
			assert.Equal(tt, didcore.ResolutionErrorInvalidDID, result.ResolutionMetadata.Error)
			assert.Nil(tt, result.Document)
		})
	}
}

func TestCreateErrors(t *testing.T) {
	_, err := Create(nil, dsa.AlgorithmEdDSA)
	assert.Error(t, err)

	km, err := keymanager.NewLocalKeyManager()
	require.NoError(t, err)
	_, err = Create(km, dsa.Algorithm("RS256"))
	assert.ErrorIs(t, err, dsa.ErrUnsupportedAlgorithm)
}
