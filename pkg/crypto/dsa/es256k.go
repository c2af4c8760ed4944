package dsa

import (
	"crypto/sha256"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/pkg/errors"

	"github.com/tbd54566975/tbdex-go/pkg/crypto/jwk"
)

const (
	secp256k1ScalarSize    = 32
	secp256k1SignatureSize = 64
)

// ES256K implements ECDSA over secp256k1 with SHA-256 and compact r||s signatures.
type ES256K struct{}

var _ Provider = ES256K{}

func (ES256K) Algorithm() Algorithm {
	return AlgorithmES256K
}

func (ES256K) IsValidKey(key jwk.JWK) bool {
	return key.KTY == jwk.KeyTypeEC && key.CRV == jwk.CurveSecp256k1
}

func (e ES256K) checkKey(key jwk.JWK) error {
	if !e.IsValidKey(key) {
		return errors.Wrapf(ErrUnsupportedCurve, "ES256K cannot use kty<%s> crv<%s>", key.KTY, key.CRV)
	}
	return nil
}

// GeneratePrivateKey samples a uniformly random scalar.
func (e ES256K) GeneratePrivateKey() (jwk.JWK, error) {
	privateKey, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return jwk.JWK{}, errors.Wrap(err, "generating secp256k1 key")
	}
	key := e.toJWK(privateKey.PubKey())
	key.D = encodeMember(privateKey.Serialize())
	return withThumbprintKID(key)
}

func (e ES256K) ComputePublicKey(privateKey jwk.JWK) (jwk.JWK, error) {
	priv, err := e.privateKey(privateKey)
	if err != nil {
		return jwk.JWK{}, err
	}
	pub := e.toJWK(priv.PubKey())
	pub.KID = privateKey.KID
	if pub.KID == "" {
		return withThumbprintKID(pub)
	}
	return pub, nil
}

func (e ES256K) PrivateKeyToBytes(privateKey jwk.JWK) ([]byte, error) {
	priv, err := e.privateKey(privateKey)
	if err != nil {
		return nil, err
	}
	return priv.Serialize(), nil
}

func (e ES256K) BytesToPrivateKey(raw []byte) (jwk.JWK, error) {
	if len(raw) != secp256k1ScalarSize {
		return jwk.JWK{}, errors.Wrapf(ErrInvalidKey, "secp256k1 private key must be %d bytes", secp256k1ScalarSize)
	}
	priv := secp256k1.PrivKeyFromBytes(raw)
	key := e.toJWK(priv.PubKey())
	key.D = encodeMember(priv.Serialize())
	return withThumbprintKID(key)
}

// PublicKeyToBytes returns the 33 byte compressed encoding.
func (e ES256K) PublicKeyToBytes(publicKey jwk.JWK) ([]byte, error) {
	pub, err := e.publicKey(publicKey)
	if err != nil {
		return nil, err
	}
	return pub.SerializeCompressed(), nil
}

// BytesToPublicKey accepts compressed or uncompressed SEC1 encodings.
func (e ES256K) BytesToPublicKey(raw []byte) (jwk.JWK, error) {
	pub, err := secp256k1.ParsePubKey(raw)
	if err != nil {
		return jwk.JWK{}, errors.Wrapf(ErrInvalidKey, "parsing secp256k1 public key: %s", err.Error())
	}
	return withThumbprintKID(e.toJWK(pub))
}

// Sign hashes payload with SHA-256 and returns a 64 byte r||s signature with s in low-S form.
func (e ES256K) Sign(payload []byte, privateKey jwk.JWK) ([]byte, error) {
	priv, err := e.privateKey(privateKey)
	if err != nil {
		return nil, err
	}
	hash := sha256.Sum256(payload)
	// RFC 6979 signing already yields low-S; drop the leading recovery code
	compact := ecdsa.SignCompact(priv, hash[:], true)
	return compact[len(compact)-secp256k1SignatureSize:], nil
}

// Verify accepts both low-S and high-S encodings of a valid signature by normalizing s first.
func (e ES256K) Verify(payload, signature []byte, publicKey jwk.JWK) (bool, error) {
	pub, err := e.publicKey(publicKey)
	if err != nil {
		return false, err
	}
	if len(signature) != secp256k1SignatureSize {
		return false, nil
	}

	var r, s secp256k1.ModNScalar
	if overflow := r.SetByteSlice(signature[:secp256k1ScalarSize]); overflow || r.IsZero() {
		return false, nil
	}
	if overflow := s.SetByteSlice(signature[secp256k1ScalarSize:]); overflow || s.IsZero() {
		return false, nil
	}
	if s.IsOverHalfOrder() {
		s.Negate()
	}

	hash := sha256.Sum256(payload)
	return ecdsa.NewSignature(&r, &s).Verify(hash[:], pub), nil
}

func (e ES256K) privateKey(key jwk.JWK) (*secp256k1.PrivateKey, error) {
	if err := e.checkKey(key); err != nil {
		return nil, err
	}
	d, err := decodeMember("d", key.D, secp256k1ScalarSize)
	if err != nil {
		return nil, err
	}
	return secp256k1.PrivKeyFromBytes(d), nil
}

func (e ES256K) publicKey(key jwk.JWK) (*secp256k1.PublicKey, error) {
	if err := e.checkKey(key); err != nil {
		return nil, err
	}
	if key.IsPrivate() {
		return nil, errors.Wrap(ErrInvalidKey, "expected a public key but d is present")
	}
	x, err := decodeMember("x", key.X, secp256k1ScalarSize)
	if err != nil {
		return nil, err
	}
	y, err := decodeMember("y", key.Y, secp256k1ScalarSize)
	if err != nil {
		return nil, err
	}

	uncompressed := make([]byte, 0, 65)
	uncompressed = append(uncompressed, 0x04)
	uncompressed = append(uncompressed, x...)
	uncompressed = append(uncompressed, y...)
	pub, err := secp256k1.ParsePubKey(uncompressed)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidKey, "point is not on secp256k1: %s", err.Error())
	}
	return pub, nil
}

func (ES256K) toJWK(pub *secp256k1.PublicKey) jwk.JWK {
	uncompressed := pub.SerializeUncompressed()
	return jwk.JWK{
		KTY: jwk.KeyTypeEC,
		CRV: jwk.CurveSecp256k1,
		ALG: AlgorithmES256K.String(),
		X:   encodeMember(uncompressed[1 : 1+secp256k1ScalarSize]),
		Y:   encodeMember(uncompressed[1+secp256k1ScalarSize:]),
	}
}
