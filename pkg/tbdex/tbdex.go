// Package tbdex implements tbDEX messages and resources: signed envelopes carrying typed protocol payloads whose
// authenticity is checked against the sender's DID.
package tbdex

import (
	"github.com/pkg/errors"

	"github.com/tbd54566975/tbdex-go/pkg/dids/didcore"
	"github.com/tbd54566975/tbdex-go/pkg/tbdex/jws"
)

// ProtocolVersion is written to the metadata of new envelopes.
const ProtocolVersion = "1.0"

var (
	// ErrMissingSignature is returned when verifying an envelope that was never signed.
	ErrMissingSignature = errors.New("envelope is not signed")
	// ErrAlreadySigned is returned when signing an envelope that already carries a signature.
	ErrAlreadySigned = errors.New("envelope is already signed")
	// ErrInvalidSignature is returned by the parse-and-verify helpers when the signature does not verify.
	ErrInvalidSignature = errors.New("invalid signature")
	// ErrUnknownKind is returned when decoding an envelope with a missing or unsupported kind.
	ErrUnknownKind = errors.New("unknown kind")
	// ErrSignerMismatch is returned when the signature's key id belongs to a DID other than metadata.from.
	ErrSignerMismatch = errors.New("signer does not match sender")

	ErrResolution                 = didcore.ErrResolution
	ErrVerificationMethodNotFound = jws.ErrVerificationMethodNotFound
	ErrAlgorithmMismatch          = jws.ErrAlgorithmMismatch
)

// MessageKind is the discriminant of a message's data.
type MessageKind string

const (
	KindRFQ               MessageKind = "rfq"
	KindQuote             MessageKind = "quote"
	KindOrder             MessageKind = "order"
	KindOrderInstructions MessageKind = "orderinstructions"
	KindOrderStatus       MessageKind = "orderstatus"
	KindCancel            MessageKind = "cancel"
	KindClose             MessageKind = "close"
)

// MessageKinds lists every message kind.
func MessageKinds() []MessageKind {
	return []MessageKind{KindRFQ, KindQuote, KindOrder, KindOrderInstructions, KindOrderStatus, KindCancel, KindClose}
}

// ResourceKind is the discriminant of a resource's data.
type ResourceKind string

const (
	KindOffering ResourceKind = "offering"
	KindBalance  ResourceKind = "balance"
)

// ResourceKinds lists every resource kind.
func ResourceKinds() []ResourceKind {
	return []ResourceKind{KindOffering, KindBalance}
}
