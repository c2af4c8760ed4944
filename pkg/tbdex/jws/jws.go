// Package jws signs and verifies compact JWS with DID key ids, including the detached form used for tbDEX envelope
// signatures where the payload segment is left empty.
package jws

import (
	"bytes"
	"context"
	"encoding/base64"
	"strings"

	"github.com/goccy/go-json"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/tbd54566975/tbdex-go/internal/util"
	"github.com/tbd54566975/tbdex-go/pkg/crypto/dsa"
	"github.com/tbd54566975/tbdex-go/pkg/dids"
	"github.com/tbd54566975/tbdex-go/pkg/dids/didcore"
	"github.com/tbd54566975/tbdex-go/pkg/dids/resolver"
)

var (
	// ErrMalformed is returned for input that is not a compact JWS with a DID URL key id.
	ErrMalformed = errors.New("malformed JWS")
	// ErrVerificationMethodNotFound is returned when the signer's document has no usable verification method.
	ErrVerificationMethodNotFound = errors.New("verification method not found")
	// ErrAlgorithmMismatch is returned when the header alg does not match the verification method's key.
	ErrAlgorithmMismatch = errors.New("algorithm mismatch")
)

// JWS is a compact serialized JWS.
type JWS string

func (j JWS) String() string {
	return string(j)
}

// IsDetached reports whether the payload segment is empty.
func (j JWS) IsDetached() bool {
	parts := strings.Split(string(j), ".")
	return len(parts) == 3 && parts[1] == ""
}

type signOptions struct {
	detached bool
	selector string
}

// SignOpt configures Sign.
type SignOpt func(*signOptions)

// Detached leaves the payload out of the serialized JWS.
func Detached(detached bool) SignOpt {
	return func(o *signOptions) {
		o.detached = detached
	}
}

// VerificationMethod selects the signing verification method by id or fragment.
func VerificationMethod(selector string) SignOpt {
	return func(o *signOptions) {
		o.selector = selector
	}
}

// Sign signs payload on behalf of bearer. The protected header carries alg and kid, where kid is the absolute id of
// the signing verification method.
func Sign(payload []byte, bearer *dids.BearerDID, opts ...SignOpt) (JWS, error) {
	if bearer == nil {
		return "", util.LoggingNewError("cannot sign with nil bearer DID")
	}
	var o signOptions
	for _, opt := range opts {
		opt(&o)
	}

	signer, err := bearer.GetSigner(o.selector)
	if err != nil {
		return "", errors.Wrap(err, "selecting signer")
	}

	headers := jws.NewHeaders()
	if err = headers.Set(jws.AlgorithmKey, jwa.SignatureAlgorithm(signer.Algorithm)); err != nil {
		return "", errors.Wrap(err, "setting alg header")
	}
	if err = headers.Set(jws.KeyIDKey, signer.KID); err != nil {
		return "", errors.Wrap(err, "setting kid header")
	}
	headerJSON, err := json.Marshal(headers)
	if err != nil {
		return "", errors.Wrap(err, "marshaling protected header")
	}

	encodedHeader := base64.RawURLEncoding.EncodeToString(headerJSON)
	encodedPayload := base64.RawURLEncoding.EncodeToString(payload)
	signature, err := signer.Sign([]byte(encodedHeader + "." + encodedPayload))
	if err != nil {
		return "", errors.Wrap(err, "signing")
	}
	encodedSignature := base64.RawURLEncoding.EncodeToString(signature)

	if o.detached {
		encodedPayload = ""
	}
	return JWS(encodedHeader + "." + encodedPayload + "." + encodedSignature), nil
}

// Decoded is a parsed compact JWS.
type Decoded struct {
	Header    jws.Headers
	Payload   []byte
	Signature []byte
	// SignerDID is the DID URL in the kid header
	SignerDID didcore.DID

	parts []string
}

// Decode parses a compact JWS. For a detached JWS the payload must be given; it replaces an empty payload segment.
// A payload given alongside an attached JWS must equal the attached one.
func Decode(compact JWS, detachedPayload []byte) (*Decoded, error) {
	parts := strings.Split(string(compact), ".")
	if len(parts) != 3 {
		return nil, errors.Wrapf(ErrMalformed, "expected 3 parts, found %d", len(parts))
	}

	headerJSON, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, errors.Wrapf(ErrMalformed, "decoding header: %s", err.Error())
	}
	headers := jws.NewHeaders()
	if err = json.Unmarshal(headerJSON, headers); err != nil {
		return nil, errors.Wrapf(ErrMalformed, "unmarshaling header: %s", err.Error())
	}
	if headers.Algorithm() == "" {
		return nil, errors.Wrap(ErrMalformed, "header is missing alg")
	}
	signerDID, err := didcore.Parse(headers.KeyID())
	if err != nil {
		return nil, errors.Wrapf(ErrMalformed, "kid must be a DID URL: %s", err.Error())
	}

	payload := detachedPayload
	if parts[1] != "" {
		if payload, err = base64.RawURLEncoding.DecodeString(parts[1]); err != nil {
			return nil, errors.Wrapf(ErrMalformed, "decoding payload: %s", err.Error())
		}
		if detachedPayload != nil && !bytes.Equal(payload, detachedPayload) {
			return nil, errors.Wrap(ErrMalformed, "payload does not match the detached payload")
		}
	} else {
		parts[1] = base64.RawURLEncoding.EncodeToString(detachedPayload)
	}

	signature, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return nil, errors.Wrapf(ErrMalformed, "decoding signature: %s", err.Error())
	}

	return &Decoded{
		Header:    headers,
		Payload:   payload,
		Signature: signature,
		SignerDID: signerDID,
		parts:     parts,
	}, nil
}

// SigningInput returns the bytes the signature was computed over.
func (d *Decoded) SigningInput() []byte {
	return []byte(d.parts[0] + "." + d.parts[1])
}

// Verify resolves the signer's DID and checks the signature against the verification method named by kid. When kid
// matches no method, the first method whose key fits alg is used. A cryptographically invalid signature yields false
// without an error.
func (d *Decoded) Verify(ctx context.Context, r resolver.Resolver) (bool, error) {
	result := r.Resolve(ctx, d.SignerDID.URI)
	if err := result.Err(); err != nil {
		return false, errors.Wrapf(err, "resolving signer %s", d.SignerDID.URI)
	}

	alg := dsa.Algorithm(d.Header.Algorithm())
	vm, err := selectVerificationMethod(result.Document, d.Header.KeyID(), alg)
	if err != nil {
		return false, err
	}
	publicKey, err := vm.PublicKey()
	if err != nil {
		return false, errors.Wrapf(ErrVerificationMethodNotFound, "reading key of %s: %s", vm.ID, err.Error())
	}
	keyAlg, err := dsa.AlgorithmForKey(publicKey)
	if err != nil || keyAlg != alg {
		return false, errors.Wrapf(ErrAlgorithmMismatch, "alg %s cannot verify with key of %s", alg, vm.ID)
	}

	verified, err := dsa.Verify(d.SigningInput(), d.Signature, publicKey)
	if err != nil {
		return false, errors.Wrap(err, "verifying signature")
	}
	if !verified {
		logrus.Debugf("signature by %s did not verify", util.SanitizeLog(d.Header.KeyID()))
	}
	return verified, nil
}

func selectVerificationMethod(doc *didcore.Document, kid string, alg dsa.Algorithm) (*didcore.VerificationMethod, error) {
	if vm, ok := doc.DereferenceID(kid); ok {
		return vm, nil
	}
	for i := range doc.VerificationMethod {
		vm := &doc.VerificationMethod[i]
		publicKey, err := vm.PublicKey()
		if err != nil {
			continue
		}
		if keyAlg, err := dsa.AlgorithmForKey(publicKey); err == nil && keyAlg == alg {
			return vm, nil
		}
	}
	return nil, errors.Wrapf(ErrVerificationMethodNotFound, "no %s verification method for %s in %s", alg, kid, doc.ID)
}

// Verify decodes and verifies compact in one step.
func Verify(ctx context.Context, compact JWS, detachedPayload []byte, r resolver.Resolver) (*Decoded, bool, error) {
	decoded, err := Decode(compact, detachedPayload)
	if err != nil {
		return nil, false, err
	}
	verified, err := decoded.Verify(ctx, r)
	return decoded, verified, err
}
