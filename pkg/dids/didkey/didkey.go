// Package didkey implements the did:key method (https://w3c-ccg.github.io/did-method-key/) for Ed25519 and
// secp256k1 keys.
package didkey

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/tbd54566975/tbdex-go/internal/util"
	"github.com/tbd54566975/tbdex-go/pkg/crypto/dsa"
	"github.com/tbd54566975/tbdex-go/pkg/crypto/jwk"
	"github.com/tbd54566975/tbdex-go/pkg/crypto/keymanager"
	"github.com/tbd54566975/tbdex-go/pkg/dids"
	"github.com/tbd54566975/tbdex-go/pkg/dids/didcore"
)

const Method = "key"

// Create generates a key in km and returns the did:key bearing it.
func Create(km keymanager.KeyManager, alg dsa.Algorithm) (*dids.BearerDID, error) {
	if km == nil {
		return nil, util.LoggingNewError("key manager cannot be empty")
	}
	alias, err := km.GeneratePrivateKey(alg)
	if err != nil {
		return nil, errors.Wrap(err, "generating key")
	}
	publicKey, err := km.GetPublicKey(alias)
	if err != nil {
		return nil, errors.Wrap(err, "reading generated key")
	}

	mb, err := didcore.PublicKeyToMultibase(publicKey)
	if err != nil {
		return nil, errors.Wrap(err, "encoding did:key identifier")
	}
	did, err := didcore.Parse("did:" + Method + ":" + mb)
	if err != nil {
		return nil, errors.Wrap(err, "parsing generated did:key")
	}
	return dids.NewBearerDID(did.URI, expandDocument(did, publicKey), km)
}

// Resolver expands did:key URIs locally.
type Resolver struct{}

func (Resolver) Method() string {
	return Method
}

func (Resolver) Resolve(_ context.Context, uri string) didcore.ResolutionResult {
	did, err := didcore.Parse(uri)
	if err != nil || did.Method != Method {
		return didcore.ResolutionResultWithError(didcore.ResolutionErrorInvalidDID)
	}
	publicKey, err := didcore.MultibaseToPublicKey(did.ID)
	if err != nil {
		logrus.WithError(err).Debugf("decoding did:key identifier: %s", util.SanitizeLog(uri))
		return didcore.ResolutionResultWithError(didcore.ResolutionErrorInvalidDID)
	}
	return didcore.ResolutionResultWithDocument(expandDocument(did, publicKey))
}

func expandDocument(did didcore.DID, publicKey jwk.JWK) didcore.Document {
	doc := didcore.Document{
		Context: []string{didcore.KnownDIDContext},
		ID:      did.URI,
	}
	doc.AddVerificationMethod(didcore.VerificationMethod{
		ID:           did.VerificationMethodID(did.ID),
		Type:         didcore.JSONWebKey2020Type,
		Controller:   did.URI,
		PublicKeyJWK: &publicKey,
	},
		didcore.PurposeAuthentication,
		didcore.PurposeAssertionMethod,
		didcore.PurposeCapabilityDelegation,
		didcore.PurposeCapabilityInvocation,
	)
	return doc
}
