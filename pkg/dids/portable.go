package dids

import (
	"github.com/pkg/errors"

	"github.com/tbd54566975/tbdex-go/pkg/crypto/dsa"
	"github.com/tbd54566975/tbdex-go/pkg/crypto/jwk"
	"github.com/tbd54566975/tbdex-go/pkg/crypto/keymanager"
	"github.com/tbd54566975/tbdex-go/pkg/dids/didcore"
)

// PortableDID is the serializable form of a bearer DID, including the private keys of its verification methods.
type PortableDID struct {
	URI         string           `json:"uri" validate:"required"`
	Document    didcore.Document `json:"document"`
	PrivateKeys []jwk.JWK        `json:"privateKeys"`
	Metadata    map[string]any   `json:"metadata,omitempty"`
}

// ToPortableDID exports the private keys of every verification method the key manager holds. The key manager must
// implement keymanager.KeyExporter.
func (b *BearerDID) ToPortableDID() (*PortableDID, error) {
	exporter, ok := b.KeyManager.(keymanager.KeyExporter)
	if !ok {
		return nil, errors.New("key manager does not support exporting keys")
	}

	portable := PortableDID{
		URI:      b.URI,
		Document: b.Document,
	}
	for _, vm := range b.Document.VerificationMethod {
		publicKey, err := vm.PublicKey()
		if err != nil {
			return nil, errors.Wrapf(err, "reading public key of %s", vm.ID)
		}
		alias, err := b.KeyManager.GetDeterministicAlias(publicKey)
		if err != nil {
			return nil, errors.Wrap(err, "computing key alias")
		}
		privateKey, err := exporter.ExportPrivateKey(alias)
		if err != nil {
			if errors.Is(err, keymanager.ErrKeyAliasNotFound) {
				continue
			}
			return nil, errors.Wrapf(err, "exporting key for %s", vm.ID)
		}
		portable.PrivateKeys = append(portable.PrivateKeys, privateKey)
	}
	if len(portable.PrivateKeys) == 0 {
		return nil, errors.Wrapf(ErrNoSigningKey, "no exportable keys for %s", b.URI)
	}
	return &portable, nil
}

// FromPortableDID imports the private keys of portable into km and returns the resulting bearer DID. A nil km
// creates a new in-memory LocalKeyManager.
func FromPortableDID(portable PortableDID, km keymanager.KeyManager) (*BearerDID, error) {
	if km == nil {
		local, err := keymanager.NewLocalKeyManager()
		if err != nil {
			return nil, errors.Wrap(err, "creating key manager")
		}
		km = local
	}
	importer, ok := km.(keymanager.KeyImporter)
	if !ok {
		return nil, errors.New("key manager does not support importing keys")
	}

	for _, privateKey := range portable.PrivateKeys {
		alias, err := aliasInDocument(portable.Document, privateKey, km)
		if err != nil {
			return nil, err
		}
		// signers look keys up by the alias of the document's public key, whatever kid the private key carried
		privateKey.KID = alias
		if _, err = importer.ImportPrivateKey(privateKey); err != nil {
			return nil, errors.Wrap(err, "importing private key")
		}
	}
	return NewBearerDID(portable.URI, portable.Document, km)
}

// aliasInDocument returns the alias of the verification method holding the public half of privateKey.
func aliasInDocument(document didcore.Document, privateKey jwk.JWK, km keymanager.KeyManager) (string, error) {
	publicKey, err := dsa.ComputePublicKey(privateKey)
	if err != nil {
		return "", errors.Wrap(err, "deriving public key of private key")
	}
	for _, vm := range document.VerificationMethod {
		vmKey, err := vm.PublicKey()
		if err != nil || !vmKey.Equal(publicKey) {
			continue
		}
		return km.GetDeterministicAlias(vmKey)
	}
	return "", errors.Errorf("private key %s matches no verification method of %s", privateKey.KID, document.ID)
}
