// Package dids binds a DID to the key manager holding its private keys so that it can sign on the DID's behalf.
package dids

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/tbd54566975/tbdex-go/internal/util"
	"github.com/tbd54566975/tbdex-go/pkg/crypto/dsa"
	"github.com/tbd54566975/tbdex-go/pkg/crypto/keymanager"
	"github.com/tbd54566975/tbdex-go/pkg/dids/didcore"
)

// ErrNoSigningKey is returned when a bearer DID has no verification method whose key its key manager holds.
var ErrNoSigningKey = errors.New("no signing key")

// BearerDID is a DID together with the key manager holding the private keys of its verification methods.
type BearerDID struct {
	URI        string
	DID        didcore.DID
	Document   didcore.Document
	KeyManager keymanager.KeyManager
}

// NewBearerDID parses uri and binds it to document and km.
func NewBearerDID(uri string, document didcore.Document, km keymanager.KeyManager) (*BearerDID, error) {
	did, err := didcore.Parse(uri)
	if err != nil {
		return nil, errors.Wrap(err, "parsing bearer DID")
	}
	if km == nil {
		return nil, util.LoggingNewError("key manager cannot be empty")
	}
	return &BearerDID{
		URI:        did.URI,
		DID:        did,
		Document:   document,
		KeyManager: km,
	}, nil
}

func (b *BearerDID) Method() string {
	return b.DID.Method
}

func (b *BearerDID) ID() string {
	return b.DID.ID
}

func (b *BearerDID) Fragment() string {
	return b.DID.Fragment
}

func (b *BearerDID) Params() []didcore.Param {
	return b.DID.Params
}

func (b *BearerDID) Path() string {
	return b.DID.Path
}

func (b *BearerDID) Query() string {
	return b.DID.Query
}

func (b *BearerDID) String() string {
	return b.URI
}

// Signer signs payloads with a single verification method of a bearer DID.
type Signer struct {
	// Algorithm of the verification method's key
	Algorithm dsa.Algorithm
	// KID is the absolute id of the verification method, e.g. did:jwk:...#0
	KID string

	alias string
	km    keymanager.KeyManager
}

// Sign signs payload with the key behind the verification method.
func (s Signer) Sign(payload []byte) ([]byte, error) {
	return s.km.Sign(s.alias, payload)
}

// GetSigner returns a signer for the verification method identified by selector, which may be an absolute id or a
// fragment. An empty selector picks the first assertion method, falling back to the first verification method.
func (b *BearerDID) GetSigner(selector string) (*Signer, error) {
	vm, err := b.selectMethod(selector)
	if err != nil {
		return nil, err
	}

	publicKey, err := vm.PublicKey()
	if err != nil {
		return nil, errors.Wrapf(err, "reading public key of %s", vm.ID)
	}
	alg, err := dsa.AlgorithmForKey(publicKey)
	if err != nil {
		return nil, errors.Wrapf(err, "verification method %s", vm.ID)
	}
	alias, err := b.KeyManager.GetDeterministicAlias(publicKey)
	if err != nil {
		return nil, errors.Wrap(err, "computing key alias")
	}
	if _, err = b.KeyManager.GetPublicKey(alias); err != nil {
		logrus.WithError(err).Debugf("key manager has no key for %s", util.SanitizeLog(vm.ID))
		return nil, errors.Wrapf(ErrNoSigningKey, "key for %s not held: %s", vm.ID, err.Error())
	}

	return &Signer{
		Algorithm: alg,
		KID:       b.Document.GetAbsoluteResourceID(*vm),
		alias:     alias,
		km:        b.KeyManager,
	}, nil
}

func (b *BearerDID) selectMethod(selector string) (*didcore.VerificationMethod, error) {
	if selector != "" {
		if vm, ok := b.Document.DereferenceID(selector); ok {
			return vm, nil
		}
		if vm, ok := b.Document.DereferenceID("#" + selector); ok {
			return vm, nil
		}
		return nil, errors.Wrapf(ErrNoSigningKey, "verification method %s not found in %s", selector, b.URI)
	}

	vm, err := b.Document.SelectVerificationMethod(didcore.PurposeAssertionMethod)
	if err == nil {
		return vm, nil
	}
	vm, err = b.Document.SelectVerificationMethod("")
	if err != nil {
		return nil, errors.Wrapf(ErrNoSigningKey, "%s has no verification methods", b.URI)
	}
	return vm, nil
}
