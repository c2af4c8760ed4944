package didcore

import (
	"github.com/mr-tron/base58"
	"github.com/multiformats/go-multibase"
	"github.com/multiformats/go-varint"
	"github.com/pkg/errors"

	"github.com/tbd54566975/tbdex-go/pkg/crypto/dsa"
	"github.com/tbd54566975/tbdex-go/pkg/crypto/jwk"
)

// Multicodec identifiers of the public key types supported in multibase form.
const (
	Ed25519PubCodec   uint64 = 0xed
	Secp256k1PubCodec uint64 = 0xe7

	Ed25519VerificationKey2018Type        = "Ed25519VerificationKey2018"
	Ed25519VerificationKey2020Type        = "Ed25519VerificationKey2020"
	EcdsaSecp256k1VerificationKey2019Type = "EcdsaSecp256k1VerificationKey2019"
	MultikeyType                          = "Multikey"
)

// PublicKey returns the method's public key as a JWK regardless of how it is encoded in the document.
func (vm VerificationMethod) PublicKey() (jwk.JWK, error) {
	switch {
	case vm.PublicKeyJWK != nil:
		return *vm.PublicKeyJWK, nil
	case vm.PublicKeyMultibase != "":
		return MultibaseToPublicKey(vm.PublicKeyMultibase)
	case vm.PublicKeyBase58 != "":
		return base58ToPublicKey(vm.PublicKeyBase58, vm.Type)
	}
	return jwk.JWK{}, errors.Errorf("no public key found in verification method %s", vm.ID)
}

// MultibaseToPublicKey decodes a base58btc multibase, multicodec-prefixed public key.
func MultibaseToPublicKey(mb string) (jwk.JWK, error) {
	encoding, decoded, err := multibase.Decode(mb)
	if err != nil {
		return jwk.JWK{}, errors.Wrap(err, "decoding multibase")
	}
	if encoding != multibase.Base58BTC {
		return jwk.JWK{}, errors.Errorf("expected base58btc multibase encoding but found %d", encoding)
	}

	codec, n, err := varint.FromUvarint(decoded)
	if err != nil {
		return jwk.JWK{}, errors.Wrap(err, "reading multicodec prefix")
	}
	provider, err := providerForCodec(codec)
	if err != nil {
		return jwk.JWK{}, err
	}
	return provider.BytesToPublicKey(decoded[n:])
}

// PublicKeyToMultibase encodes a public key as base58btc multibase with its multicodec prefix.
func PublicKeyToMultibase(publicKey jwk.JWK) (string, error) {
	provider, err := dsa.ProviderForKey(publicKey)
	if err != nil {
		return "", err
	}
	var codec uint64
	switch provider.Algorithm() {
	case dsa.AlgorithmEdDSA:
		codec = Ed25519PubCodec
	case dsa.AlgorithmES256K:
		codec = Secp256k1PubCodec
	}
	raw, err := provider.PublicKeyToBytes(publicKey)
	if err != nil {
		return "", errors.Wrap(err, "encoding public key")
	}
	prefixed := append(varint.ToUvarint(codec), raw...)
	return multibase.Encode(multibase.Base58BTC, prefixed)
}

func providerForCodec(codec uint64) (dsa.Provider, error) {
	switch codec {
	case Ed25519PubCodec:
		return dsa.ProviderFor(dsa.AlgorithmEdDSA)
	case Secp256k1PubCodec:
		return dsa.ProviderFor(dsa.AlgorithmES256K)
	}
	return nil, errors.Wrapf(dsa.ErrUnsupportedCurve, "multicodec 0x%x", codec)
}

func base58ToPublicKey(b58, vmType string) (jwk.JWK, error) {
	raw, err := base58.Decode(b58)
	if err != nil {
		return jwk.JWK{}, errors.Wrap(err, "decoding base58 public key")
	}
	var alg dsa.Algorithm
	switch vmType {
	case Ed25519VerificationKey2018Type, Ed25519VerificationKey2020Type:
		alg = dsa.AlgorithmEdDSA
	case EcdsaSecp256k1VerificationKey2019Type:
		alg = dsa.AlgorithmES256K
	default:
		return jwk.JWK{}, errors.Errorf("unsupported verification method type for publicKeyBase58: %s", vmType)
	}
	provider, err := dsa.ProviderFor(alg)
	if err != nil {
		return jwk.JWK{}, err
	}
	return provider.BytesToPublicKey(raw)
}
