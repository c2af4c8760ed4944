package didkey

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbd54566975/tbdex-go/pkg/crypto/dsa"
	"github.com/tbd54566975/tbdex-go/pkg/crypto/jwk"
	"github.com/tbd54566975/tbdex-go/pkg/crypto/keymanager"
	"github.com/tbd54566975/tbdex-go/pkg/dids/didcore"
)

func TestCreateAndResolve(t *testing.T) {
	prefixes := map[dsa.Algorithm]string{
		dsa.AlgorithmEdDSA:  "did:key:z6Mk",
		dsa.AlgorithmES256K: "did:key:zQ3s",
	}
	for _, alg := range dsa.SupportedAlgorithms() {
		t.Run(alg.String(), func(tt *testing.T) {
			km, err := keymanager.NewLocalKeyManager()
			require.NoError(tt, err)

			bearer, err := Create(km, alg)
			require.NoError(tt, err)
			assert.True(tt, strings.HasPrefix(bearer.URI, prefixes[alg]), bearer.URI)

			result := Resolver{}.Resolve(context.Background(), bearer.URI)
			require.NoError(tt, result.Err())
			require.Len(tt, result.Document.VerificationMethod, 1)

			vm := result.Document.VerificationMethod[0]
			assert.Equal(tt, bearer.URI+"#"+bearer.ID(), vm.ID)
			assert.True(tt, bearer.Document.VerificationMethod[0].PublicKeyJWK.Equal(*vm.PublicKeyJWK))

			signer, err := bearer.GetSigner("")
			require.NoError(tt, err)
			assert.Equal(tt, alg, signer.Algorithm)
			assert.Equal(tt, vm.ID, signer.KID)
		})
	}
}

func TestResolveKnownKey(t *testing.T) {
	uri := "did:key:z6MkhaXgBZDvotDkL5257faiztiGiC2QtKLGpbnnEGta2doK"
	result := Resolver{}.Resolve(context.Background(), uri)
	require.NoError(t, result.Err())
	assert.Equal(t, uri, result.Document.ID)

	publicKey, err := result.Document.VerificationMethod[0].PublicKey()
	require.NoError(t, err)
	assert.Equal(t, jwk.KeyTypeOKP, publicKey.KTY)
	assert.Equal(t, jwk.CurveEd25519, publicKey.CRV)
}

func TestResolveInvalid(t *testing.T) {
	for _, uri := range []string{"invalid:uri", "did:jwk:abc", "did:key:abc", "did:key:z123"} {
		result := Resolver{}.Resolve(context.Background(), uri)
		assert.Equal(t, didcore.ResolutionErrorInvalidDID, result.ResolutionMetadata.Error, uri)
	}
}
