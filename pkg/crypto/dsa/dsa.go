// Package dsa implements the digital signature algorithms supported for DIDs and tbDEX envelopes. Each algorithm is
// a flat, independent Provider selected through the closed Algorithm enum.
package dsa

import (
	"encoding/base64"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/pkg/errors"

	"github.com/tbd54566975/tbdex-go/pkg/crypto/jwk"
)

// Algorithm names a supported signature algorithm using its JWA identifier.
type Algorithm string

const (
	AlgorithmES256K Algorithm = Algorithm(jwa.ES256K)
	AlgorithmEdDSA  Algorithm = Algorithm(jwa.EdDSA)
)

func (a Algorithm) String() string {
	return string(a)
}

var (
	// ErrInvalidKey is returned when a key is missing members or has the wrong visibility for the operation.
	ErrInvalidKey = errors.New("invalid key")
	// ErrUnsupportedCurve is returned when a key's curve does not match the provider.
	ErrUnsupportedCurve = errors.New("unsupported curve")
	// ErrUnsupportedAlgorithm is returned for algorithms outside of the supported set.
	ErrUnsupportedAlgorithm = errors.New("unsupported algorithm")
)

// KeyGenerator creates private keys.
type KeyGenerator interface {
	Algorithm() Algorithm
	GeneratePrivateKey() (jwk.JWK, error)
}

// AsymmetricKeyGenerator derives public keys and converts between JWKs and raw key encodings.
type AsymmetricKeyGenerator interface {
	KeyGenerator
	ComputePublicKey(privateKey jwk.JWK) (jwk.JWK, error)
	PrivateKeyToBytes(privateKey jwk.JWK) ([]byte, error)
	BytesToPrivateKey(raw []byte) (jwk.JWK, error)
	PublicKeyToBytes(publicKey jwk.JWK) ([]byte, error)
	BytesToPublicKey(raw []byte) (jwk.JWK, error)
}

// Signer produces raw signatures.
type Signer interface {
	Sign(payload []byte, privateKey jwk.JWK) ([]byte, error)
}

// Verifier checks raw signatures. A signature that is well-formed input but cryptographically wrong yields false
// and no error.
type Verifier interface {
	Verify(payload, signature []byte, publicKey jwk.JWK) (bool, error)
}

// Provider is the full capability set implemented once per algorithm.
type Provider interface {
	AsymmetricKeyGenerator
	Signer
	Verifier
	IsValidKey(key jwk.JWK) bool
}

var providers = map[Algorithm]Provider{
	AlgorithmES256K: ES256K{},
	AlgorithmEdDSA:  EdDSA{},
}

// SupportedAlgorithms lists the algorithms with a registered provider.
func SupportedAlgorithms() []Algorithm {
	return []Algorithm{AlgorithmES256K, AlgorithmEdDSA}
}

// ProviderFor returns the provider for an algorithm.
func ProviderFor(alg Algorithm) (Provider, error) {
	p, ok := providers[alg]
	if !ok {
		return nil, errors.Wrapf(ErrUnsupportedAlgorithm, "algorithm: %s", alg)
	}
	return p, nil
}

// AlgorithmForKey determines the algorithm of a key from its alg member, falling back to its curve.
func AlgorithmForKey(key jwk.JWK) (Algorithm, error) {
	if key.ALG != "" {
		alg := Algorithm(key.ALG)
		// Ed25519 is sometimes published with the curve name as the alg
		if key.ALG == jwk.CurveEd25519 {
			alg = AlgorithmEdDSA
		}
		p, err := ProviderFor(alg)
		if err != nil {
			return "", err
		}
		if !p.IsValidKey(key) {
			return "", errors.Wrapf(ErrUnsupportedCurve, "alg %s does not match crv %s", key.ALG, key.CRV)
		}
		return alg, nil
	}
	switch {
	case key.KTY == jwk.KeyTypeEC && key.CRV == jwk.CurveSecp256k1:
		return AlgorithmES256K, nil
	case key.KTY == jwk.KeyTypeOKP && key.CRV == jwk.CurveEd25519:
		return AlgorithmEdDSA, nil
	}
	return "", errors.Wrapf(ErrUnsupportedCurve, "kty<%s> crv<%s>", key.KTY, key.CRV)
}

// ProviderForKey returns the provider able to operate on key.
func ProviderForKey(key jwk.JWK) (Provider, error) {
	alg, err := AlgorithmForKey(key)
	if err != nil {
		return nil, err
	}
	return ProviderFor(alg)
}

// GeneratePrivateKey creates a new private key for alg.
func GeneratePrivateKey(alg Algorithm) (jwk.JWK, error) {
	p, err := ProviderFor(alg)
	if err != nil {
		return jwk.JWK{}, err
	}
	return p.GeneratePrivateKey()
}

// ComputePublicKey derives the public key of a private key.
func ComputePublicKey(privateKey jwk.JWK) (jwk.JWK, error) {
	p, err := ProviderForKey(privateKey)
	if err != nil {
		return jwk.JWK{}, err
	}
	return p.ComputePublicKey(privateKey)
}

// Sign signs payload with privateKey using the key's algorithm.
func Sign(payload []byte, privateKey jwk.JWK) ([]byte, error) {
	p, err := ProviderForKey(privateKey)
	if err != nil {
		return nil, err
	}
	return p.Sign(payload, privateKey)
}

// Verify verifies signature over payload with publicKey using the key's algorithm.
func Verify(payload, signature []byte, publicKey jwk.JWK) (bool, error) {
	p, err := ProviderForKey(publicKey)
	if err != nil {
		return false, err
	}
	return p.Verify(payload, signature, publicKey)
}

func decodeMember(name, value string, size int) ([]byte, error) {
	if value == "" {
		return nil, errors.Wrapf(ErrInvalidKey, "missing %s", name)
	}
	decoded, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidKey, "decoding %s: %s", name, err.Error())
	}
	if size > 0 && len(decoded) != size {
		return nil, errors.Wrapf(ErrInvalidKey, "%s must be %d bytes, got %d", name, size, len(decoded))
	}
	return decoded, nil
}

func encodeMember(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

// withThumbprintKID sets the kid of a freshly generated key to its thumbprint.
func withThumbprintKID(key jwk.JWK) (jwk.JWK, error) {
	thumbprint, err := key.Thumbprint()
	if err != nil {
		return jwk.JWK{}, errors.Wrap(err, "computing thumbprint")
	}
	key.KID = thumbprint
	return key, nil
}
