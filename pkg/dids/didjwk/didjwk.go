// Package didjwk implements the did:jwk method (https://github.com/quartzjer/did-jwk), where the method-specific id
// is the base64url encoded public JWK.
package didjwk

import (
	"context"
	"encoding/base64"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/tbd54566975/tbdex-go/internal/util"
	"github.com/tbd54566975/tbdex-go/pkg/crypto/dsa"
	"github.com/tbd54566975/tbdex-go/pkg/crypto/jwk"
	"github.com/tbd54566975/tbdex-go/pkg/crypto/keymanager"
	"github.com/tbd54566975/tbdex-go/pkg/dids"
	"github.com/tbd54566975/tbdex-go/pkg/dids/didcore"
)

const (
	Method = "jwk"

	verificationMethodFragment = "0"
)

// Create generates a key of the given algorithm in km and returns the did:jwk bearing it.
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

	uri, err := URIFromPublicKey(publicKey)
	if err != nil {
		return nil, err
	}
	did, err := didcore.Parse(uri)
	if err != nil {
		return nil, errors.Wrap(err, "parsing generated did:jwk")
	}
	return dids.NewBearerDID(uri, expandDocument(did, publicKey), km)
}

// URIFromPublicKey returns the did:jwk URI for a public key. Private material is never encoded.
func URIFromPublicKey(publicKey jwk.JWK) (string, error) {
	if err := publicKey.Validate(); err != nil {
		return "", errors.Wrap(err, "invalid public key")
	}
	encoded, err := json.Marshal(publicKey.PublicKey())
	if err != nil {
		return "", errors.Wrap(err, "marshaling public key")
	}
	return "did:" + Method + ":" + base64.RawURLEncoding.EncodeToString(encoded), nil
}

// Resolver resolves did:jwk URIs without any I/O.
type Resolver struct{}

func (Resolver) Method() string {
	return Method
}

// Resolve decodes the public key from the identifier and expands it into a single-key document.
func (Resolver) Resolve(_ context.Context, uri string) didcore.ResolutionResult {
	did, err := didcore.Parse(uri)
	if err != nil || did.Method != Method {
		return didcore.ResolutionResultWithError(didcore.ResolutionErrorInvalidDID)
	}

	decoded, err := base64.RawURLEncoding.DecodeString(did.ID)
	if err != nil {
		logrus.WithError(err).Debugf("decoding did:jwk identifier: %s", util.SanitizeLog(uri))
		return didcore.ResolutionResultWithError(didcore.ResolutionErrorInvalidDID)
	}
	var publicKey jwk.JWK
	if err = json.Unmarshal(decoded, &publicKey); err != nil {
		logrus.WithError(err).Debugf("unmarshaling did:jwk key: %s", util.SanitizeLog(uri))
		return didcore.ResolutionResultWithError(didcore.ResolutionErrorInvalidDID)
	}
	if err = publicKey.Validate(); err != nil || publicKey.IsPrivate() {
		return didcore.ResolutionResultWithError(didcore.ResolutionErrorInvalidDID)
	}
	return didcore.ResolutionResultWithDocument(expandDocument(did, publicKey))
}

func expandDocument(did didcore.DID, publicKey jwk.JWK) didcore.Document {
	vmID := did.VerificationMethodID(verificationMethodFragment)
	doc := didcore.Document{
		Context: []string{didcore.KnownDIDContext},
		ID:      did.URI,
	}
	doc.AddVerificationMethod(didcore.VerificationMethod{
		ID:           vmID,
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
