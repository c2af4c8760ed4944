package dsa

import (
	"crypto/ed25519"

	"github.com/pkg/errors"

	"github.com/tbd54566975/tbdex-go/internal/util"
	"github.com/tbd54566975/tbdex-go/pkg/crypto/jwk"
)

// EdDSA implements Ed25519 signatures over the raw payload.
type EdDSA struct{}

var _ Provider = EdDSA{}

func (EdDSA) Algorithm() Algorithm {
	return AlgorithmEdDSA
}

func (EdDSA) IsValidKey(key jwk.JWK) bool {
	return key.KTY == jwk.KeyTypeOKP && key.CRV == jwk.CurveEd25519
}

func (e EdDSA) checkKey(key jwk.JWK) error {
	if !e.IsValidKey(key) {
		return errors.Wrapf(ErrUnsupportedCurve, "EdDSA cannot use kty<%s> crv<%s>", key.KTY, key.CRV)
	}
	return nil
}

// GeneratePrivateKey samples a 32 byte seed. The JWK d member carries the seed.
func (e EdDSA) GeneratePrivateKey() (jwk.JWK, error) {
	seed, err := util.RandomBytes(ed25519.SeedSize)
	if err != nil {
		return jwk.JWK{}, errors.Wrap(err, "generating ed25519 seed")
	}
	return e.BytesToPrivateKey(seed)
}

func (e EdDSA) ComputePublicKey(privateKey jwk.JWK) (jwk.JWK, error) {
	priv, err := e.privateKey(privateKey)
	if err != nil {
		return jwk.JWK{}, err
	}
	pub := e.toJWK(priv.Public().(ed25519.PublicKey))
	pub.KID = privateKey.KID
	if pub.KID == "" {
		return withThumbprintKID(pub)
	}
	return pub, nil
}

func (e EdDSA) PrivateKeyToBytes(privateKey jwk.JWK) ([]byte, error) {
	priv, err := e.privateKey(privateKey)
	if err != nil {
		return nil, err
	}
	return priv.Seed(), nil
}

func (e EdDSA) BytesToPrivateKey(raw []byte) (jwk.JWK, error) {
	if len(raw) != ed25519.SeedSize {
		return jwk.JWK{}, errors.Wrapf(ErrInvalidKey, "ed25519 seed must be %d bytes", ed25519.SeedSize)
	}
	priv := ed25519.NewKeyFromSeed(raw)
	key := e.toJWK(priv.Public().(ed25519.PublicKey))
	key.D = encodeMember(raw)
	return withThumbprintKID(key)
}

func (e EdDSA) PublicKeyToBytes(publicKey jwk.JWK) ([]byte, error) {
	pub, err := e.publicKey(publicKey)
	if err != nil {
		return nil, err
	}
	return []byte(pub), nil
}

func (e EdDSA) BytesToPublicKey(raw []byte) (jwk.JWK, error) {
	if len(raw) != ed25519.PublicKeySize {
		return jwk.JWK{}, errors.Wrapf(ErrInvalidKey, "ed25519 public key must be %d bytes", ed25519.PublicKeySize)
	}
	return withThumbprintKID(e.toJWK(raw))
}

func (e EdDSA) Sign(payload []byte, privateKey jwk.JWK) ([]byte, error) {
	priv, err := e.privateKey(privateKey)
	if err != nil {
		return nil, err
	}
	return ed25519.Sign(priv, payload), nil
}

func (e EdDSA) Verify(payload, signature []byte, publicKey jwk.JWK) (bool, error) {
	pub, err := e.publicKey(publicKey)
	if err != nil {
		return false, err
	}
	if len(signature) != ed25519.SignatureSize {
		return false, nil
	}
	return ed25519.Verify(pub, payload, signature), nil
}

func (e EdDSA) privateKey(key jwk.JWK) (ed25519.PrivateKey, error) {
	if err := e.checkKey(key); err != nil {
		return nil, err
	}
	seed, err := decodeMember("d", key.D, ed25519.SeedSize)
	if err != nil {
		return nil, err
	}
	return ed25519.NewKeyFromSeed(seed), nil
}

func (e EdDSA) publicKey(key jwk.JWK) (ed25519.PublicKey, error) {
	if err := e.checkKey(key); err != nil {
		return nil, err
	}
	if key.IsPrivate() {
		return nil, errors.Wrap(ErrInvalidKey, "expected a public key but d is present")
	}
	x, err := decodeMember("x", key.X, ed25519.PublicKeySize)
	if err != nil {
		return nil, err
	}
	return ed25519.PublicKey(x), nil
}

func (EdDSA) toJWK(pub ed25519.PublicKey) jwk.JWK {
	return jwk.JWK{
		KTY: jwk.KeyTypeOKP,
		CRV: jwk.CurveEd25519,
		ALG: AlgorithmEdDSA.String(),
		X:   encodeMember(pub),
	}
}
