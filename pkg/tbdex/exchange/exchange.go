// Package exchange records the messages of tbDEX exchanges and enforces the order and direction in which they may be
// sent.
package exchange

import (
	"slices"

	"github.com/pkg/errors"

	"github.com/tbd54566975/tbdex-go/pkg/tbdex"
)

var (
	// ErrNotFound is returned for an exchange id that has no recorded rfq.
	ErrNotFound = errors.New("exchange not found")
	// ErrInvalidNext is returned for a message that cannot follow the latest message of its exchange.
	ErrInvalidNext = errors.New("invalid next message")
	// ErrParticipant is returned for a message that is not sent between the exchange's customer and PFI in the
	// direction its kind requires.
	ErrParticipant = errors.New("invalid exchange participant")
	// ErrDuplicate is returned for a message id that is already part of the exchange.
	ErrDuplicate = errors.New("duplicate message")
	// ErrUnsigned is returned when recording a message that carries no signature.
	ErrUnsigned = errors.New("message is not signed")
)

var validNext = map[tbdex.MessageKind][]tbdex.MessageKind{
	tbdex.KindRFQ:               {tbdex.KindQuote, tbdex.KindClose},
	tbdex.KindQuote:             {tbdex.KindOrder, tbdex.KindClose},
	tbdex.KindOrder:             {tbdex.KindOrderInstructions, tbdex.KindOrderStatus, tbdex.KindCancel, tbdex.KindClose},
	tbdex.KindOrderInstructions: {tbdex.KindOrderStatus, tbdex.KindCancel, tbdex.KindClose},
	tbdex.KindOrderStatus:       {tbdex.KindOrderStatus, tbdex.KindCancel, tbdex.KindClose},
	tbdex.KindCancel:            {tbdex.KindOrderStatus, tbdex.KindClose},
	tbdex.KindClose:             {},
}

type sender int

const (
	customer sender = iota
	pfi
	either
)

var senders = map[tbdex.MessageKind]sender{
	tbdex.KindRFQ:               customer,
	tbdex.KindQuote:             pfi,
	tbdex.KindOrder:             customer,
	tbdex.KindOrderInstructions: pfi,
	tbdex.KindOrderStatus:       pfi,
	tbdex.KindCancel:            customer,
	tbdex.KindClose:             either,
}

// ValidNext returns the kinds that may follow a message of the given kind.
func ValidNext(kind tbdex.MessageKind) []tbdex.MessageKind {
	return slices.Clone(validNext[kind])
}

// Exchange is the ordered list of messages sharing an exchange id. The first message is always the rfq that opened
// it.
type Exchange struct {
	ID       string
	Messages []*tbdex.Message
}

// New opens an exchange with an rfq.
func New(rfq *tbdex.Message) (*Exchange, error) {
	if rfq == nil {
		return nil, errors.New("rfq cannot be nil")
	}
	if rfq.Metadata.Kind != tbdex.KindRFQ {
		return nil, errors.Wrapf(ErrInvalidNext, "exchanges start with an rfq, not %s", rfq.Metadata.Kind)
	}
	if rfq.Metadata.ExchangeID != rfq.Metadata.ID {
		return nil, errors.Wrapf(ErrInvalidNext, "rfq %s must be its own exchange id", rfq.Metadata.ID)
	}
	return &Exchange{ID: rfq.Metadata.ID, Messages: []*tbdex.Message{rfq}}, nil
}

// RFQ returns the message that opened the exchange.
func (e *Exchange) RFQ() *tbdex.Message {
	return e.Messages[0]
}

// Latest returns the most recent message.
func (e *Exchange) Latest() *tbdex.Message {
	return e.Messages[len(e.Messages)-1]
}

// IsOpen reports whether the exchange has not been closed.
func (e *Exchange) IsOpen() bool {
	return e.Latest().Metadata.Kind != tbdex.KindClose
}

// NextKinds returns the kinds that may be appended.
func (e *Exchange) NextKinds() []tbdex.MessageKind {
	return ValidNext(e.Latest().Metadata.Kind)
}

// Check reports whether m can be appended without changing the exchange.
func (e *Exchange) Check(m *tbdex.Message) error {
	if m == nil {
		return errors.New("message cannot be nil")
	}
	if m.Metadata.ExchangeID != e.ID {
		return errors.Wrapf(ErrInvalidNext, "message belongs to exchange %s, not %s", m.Metadata.ExchangeID, e.ID)
	}
	for _, existing := range e.Messages {
		if existing.Metadata.ID == m.Metadata.ID {
			return errors.Wrapf(ErrDuplicate, "message %s", m.Metadata.ID)
		}
	}

	latest := e.Latest().Metadata.Kind
	if !slices.Contains(validNext[latest], m.Metadata.Kind) {
		return errors.Wrapf(ErrInvalidNext, "%s cannot follow %s", m.Metadata.Kind, latest)
	}

	customerDID, pfiDID := e.RFQ().Metadata.From, e.RFQ().Metadata.To
	fromCustomer := m.Metadata.From == customerDID && m.Metadata.To == pfiDID
	fromPFI := m.Metadata.From == pfiDID && m.Metadata.To == customerDID
	var ok bool
	switch senders[m.Metadata.Kind] {
	case customer:
		ok = fromCustomer
	case pfi:
		ok = fromPFI
	case either:
		ok = fromCustomer || fromPFI
	}
	if !ok {
		return errors.Wrapf(ErrParticipant, "%s from %s to %s", m.Metadata.Kind, m.Metadata.From, m.Metadata.To)
	}
	return nil
}

// Append adds m to the exchange after checking it.
func (e *Exchange) Append(m *tbdex.Message) error {
	if err := e.Check(m); err != nil {
		return err
	}
	e.Messages = append(e.Messages, m)
	return nil
}
