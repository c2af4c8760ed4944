package tbdex

import (
	"context"
	"crypto/sha256"

	"github.com/goccy/go-json"
	"github.com/gowebpki/jcs"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/tbd54566975/tbdex-go/internal/util"
	"github.com/tbd54566975/tbdex-go/pkg/dids"
	"github.com/tbd54566975/tbdex-go/pkg/dids/resolver"
	"github.com/tbd54566975/tbdex-go/pkg/tbdex/jws"
)

// Digest returns SHA-256 over the RFC 8785 canonical JSON of {"data": data, "metadata": metadata}.
func Digest(data, metadata any) ([]byte, error) {
	payload, err := json.Marshal(struct {
		Data     any `json:"data"`
		Metadata any `json:"metadata"`
	}{Data: data, Metadata: metadata})
	if err != nil {
		return nil, errors.Wrap(err, "marshaling digest payload")
	}
	canonical, err := jcs.Transform(payload)
	if err != nil {
		return nil, errors.Wrap(err, "canonicalizing digest payload")
	}
	digest := sha256.Sum256(canonical)
	return digest[:], nil
}

// sign produces the detached JWS of an envelope sent by from. Only the bearer of from may sign.
func sign(current string, data, metadata any, from string, bearer *dids.BearerDID, keyAlias []string) (string, error) {
	if current != "" {
		return "", ErrAlreadySigned
	}
	if bearer == nil {
		return "", util.LoggingNewError("cannot sign without a bearer DID")
	}
	if bearer.URI != from {
		return "", errors.Wrapf(ErrSignerMismatch, "%s cannot sign for %s", bearer.URI, from)
	}
	digest, err := Digest(data, metadata)
	if err != nil {
		return "", err
	}
	opts := []jws.SignOpt{jws.Detached(true)}
	if len(keyAlias) > 0 {
		opts = append(opts, jws.VerificationMethod(keyAlias[0]))
	}
	signature, err := jws.Sign(digest, bearer, opts...)
	if err != nil {
		return "", errors.Wrap(err, "signing envelope")
	}
	return signature.String(), nil
}

func verify(ctx context.Context, signature string, data, metadata any, from string, r resolver.Resolver) (bool, error) {
	if signature == "" {
		return false, ErrMissingSignature
	}
	if r == nil {
		return false, util.LoggingNewError("cannot verify without a resolver")
	}
	// the digest is always recomputed, so a payload carried in the signature is never trusted
	if !jws.JWS(signature).IsDetached() {
		return false, errors.Wrap(jws.ErrMalformed, "envelope signatures must be detached")
	}
	digest, err := Digest(data, metadata)
	if err != nil {
		return false, err
	}
	decoded, err := jws.Decode(jws.JWS(signature), digest)
	if err != nil {
		return false, errors.Wrap(err, "decoding signature")
	}
	if decoded.SignerDID.URI != from {
		return false, errors.Wrapf(ErrSignerMismatch, "signed by %s, from %s", decoded.SignerDID.URI, from)
	}
	verified, err := decoded.Verify(ctx, r)
	if err != nil {
		return false, errors.Wrap(err, "verifying signature")
	}
	if !verified {
		logrus.Infof("signature of envelope from %s did not verify", util.SanitizeLog(from))
	}
	return verified, nil
}
