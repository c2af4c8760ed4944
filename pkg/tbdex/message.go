package tbdex

import (
	"context"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"

	"github.com/tbd54566975/tbdex-go/internal/util"
	"github.com/tbd54566975/tbdex-go/pkg/dids"
	"github.com/tbd54566975/tbdex-go/pkg/dids/didcore"
	"github.com/tbd54566975/tbdex-go/pkg/dids/resolver"
)

// Message is a signed tbDEX message exchanged between a customer and a PFI.
type Message struct {
	Metadata  MessageMetadata `json:"metadata"`
	Data      MessageData     `json:"data"`
	Signature string          `json:"signature,omitempty"`
	// Private holds rfq data that is not covered by the signature
	Private map[string]any `json:"private,omitempty"`
}

// NewMessage creates an unsigned message from one DID to another. rfq messages start a new exchange whose id is the
// message id; every other kind needs WithExchangeID.
func NewMessage(from, to string, data MessageData, opts ...Option) (*Message, error) {
	if data == nil {
		return nil, util.LoggingNewError("message data cannot be nil")
	}
	if _, err := didcore.Parse(from); err != nil {
		return nil, errors.Wrap(err, "from")
	}
	if _, err := didcore.Parse(to); err != nil {
		return nil, errors.Wrap(err, "to")
	}

	o := newEnvelopeOptions(opts)
	kind := data.Kind()
	id, err := newID(string(kind))
	if err != nil {
		return nil, err
	}

	exchangeID := o.exchangeID
	if exchangeID == "" {
		if kind != KindRFQ {
			return nil, errors.Errorf("%s messages require an exchange id", kind)
		}
		exchangeID = id
	}
	if o.private != nil && kind != KindRFQ {
		return nil, errors.Errorf("private data is only allowed on rfq messages, not %s", kind)
	}

	return &Message{
		Metadata: MessageMetadata{
			ID:         id,
			Kind:       kind,
			From:       from,
			To:         to,
			ExchangeID: exchangeID,
			CreatedAt:  FormatTimestamp(o.clock.Now()),
			ExternalID: o.externalID,
			Protocol:   o.protocol,
		},
		Data:    data,
		Private: o.private,
	}, nil
}

// Digest returns the digest the message signature covers.
func (m *Message) Digest() ([]byte, error) {
	return Digest(m.Data, m.Metadata)
}

// Sign signs the message on behalf of bearer. The optional key alias selects the verification method by id or
// fragment; by default the first assertion method is used. A message can be signed once.
func (m *Message) Sign(bearer *dids.BearerDID, keyAlias ...string) error {
	signature, err := sign(m.Signature, m.Data, m.Metadata, m.Metadata.From, bearer, keyAlias)
	if err != nil {
		return err
	}
	m.Signature = signature
	return nil
}

// Verify checks the signature against the current data and metadata using the key of metadata.from resolved with r.
// A signature that does not match yields false; everything else that prevents the check is an error.
func (m *Message) Verify(ctx context.Context, r resolver.Resolver) (bool, error) {
	return verify(ctx, m.Signature, m.Data, m.Metadata, m.Metadata.From, r)
}

// Validate checks the metadata and data fields.
func (m *Message) Validate() error {
	if err := util.IsValidStruct(m.Metadata); err != nil {
		return errors.Wrap(err, "metadata")
	}
	if m.Data == nil {
		return errors.New("data is required")
	}
	if m.Data.Kind() != m.Metadata.Kind {
		return errors.Errorf("data of kind %s does not match metadata kind %s", m.Data.Kind(), m.Metadata.Kind)
	}
	if err := util.IsValidStruct(m.Data); err != nil {
		return errors.Wrap(err, "data")
	}
	if !hasKindPrefix(m.Metadata.ID, string(m.Metadata.Kind)) {
		return errors.Errorf("id %s is not prefixed by kind %s", m.Metadata.ID, m.Metadata.Kind)
	}
	if _, err := didcore.Parse(m.Metadata.From); err != nil {
		return errors.Wrap(err, "from")
	}
	if _, err := didcore.Parse(m.Metadata.To); err != nil {
		return errors.Wrap(err, "to")
	}
	if _, err := ParseTimestamp(m.Metadata.CreatedAt); err != nil {
		return errors.Wrap(err, "createdAt")
	}
	if m.Private != nil && m.Metadata.Kind != KindRFQ {
		return errors.Errorf("private data is only allowed on rfq messages, not %s", m.Metadata.Kind)
	}
	return nil
}

func (m *Message) UnmarshalJSON(raw []byte) error {
	var envelope struct {
		Metadata  MessageMetadata `json:"metadata"`
		Data      json.RawMessage `json:"data"`
		Signature string          `json:"signature"`
		Private   map[string]any  `json:"private"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return errors.Wrap(err, "unmarshaling message")
	}
	data, err := decodeMessageData(envelope.Metadata.Kind, envelope.Data)
	if err != nil {
		return err
	}
	*m = Message{
		Metadata:  envelope.Metadata,
		Data:      data,
		Signature: envelope.Signature,
		Private:   envelope.Private,
	}
	return nil
}

func decodeMessageData(kind MessageKind, raw json.RawMessage) (MessageData, error) {
	switch kind {
	case KindRFQ:
		return decodeData[RFQ](raw)
	case KindQuote:
		return decodeData[Quote](raw)
	case KindOrder:
		return decodeData[Order](raw)
	case KindOrderInstructions:
		return decodeData[OrderInstructions](raw)
	case KindOrderStatus:
		return decodeData[OrderStatus](raw)
	case KindCancel:
		return decodeData[Cancel](raw)
	case KindClose:
		return decodeData[Close](raw)
	case "":
		return nil, errors.Wrap(ErrUnknownKind, "metadata.kind is missing")
	}
	return nil, errors.Wrapf(ErrUnknownKind, "message kind %q", kind)
}

func decodeData[T any](raw json.RawMessage) (T, error) {
	var data T
	if len(raw) == 0 || string(raw) == "null" {
		return data, errors.New("data is required")
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return data, errors.Wrap(err, "unmarshaling data")
	}
	return data, nil
}

// ParseMessage decodes a message of any kind, selecting the data type from metadata.kind.
func ParseMessage(raw []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// ParseAndVerifyMessage decodes, validates and verifies a message. A signature that does not verify is an error
// wrapping ErrInvalidSignature.
func ParseAndVerifyMessage(ctx context.Context, raw []byte, r resolver.Resolver) (*Message, error) {
	m, err := ParseMessage(raw)
	if err != nil {
		return nil, err
	}
	if err = m.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid message")
	}
	verified, err := m.Verify(ctx, r)
	if err != nil {
		return nil, err
	}
	if !verified {
		return nil, errors.Wrapf(ErrInvalidSignature, "message %s", m.Metadata.ID)
	}
	return m, nil
}
