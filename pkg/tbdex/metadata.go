package tbdex

import (
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// TimestampFormat is the ISO-8601 form used for createdAt and updatedAt: UTC with millisecond precision.
const TimestampFormat = "2006-01-02T15:04:05.000Z"

// MessageMetadata is the metadata of a message.
type MessageMetadata struct {
	ID         string      `json:"id" validate:"required"`
	Kind       MessageKind `json:"kind" validate:"required"`
	From       string      `json:"from" validate:"required"`
	To         string      `json:"to" validate:"required"`
	ExchangeID string      `json:"exchangeId" validate:"required"`
	CreatedAt  string      `json:"createdAt" validate:"required"`
	ExternalID string      `json:"externalId,omitempty"`
	Protocol   string      `json:"protocol" validate:"required"`
}

// ResourceMetadata is the metadata of a resource.
type ResourceMetadata struct {
	ID        string       `json:"id" validate:"required"`
	Kind      ResourceKind `json:"kind" validate:"required"`
	From      string       `json:"from" validate:"required"`
	CreatedAt string       `json:"createdAt" validate:"required"`
	UpdatedAt string       `json:"updatedAt,omitempty"`
	Protocol  string       `json:"protocol" validate:"required"`
}

// FormatTimestamp formats t in TimestampFormat.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampFormat)
}

// ParseTimestamp parses any RFC 3339 timestamp, as written by other implementations.
func ParseTimestamp(timestamp string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, timestamp)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "parsing timestamp %q", timestamp)
	}
	return t, nil
}

// newID returns a kind-prefixed, time-ordered envelope id.
func newID(kind string) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", errors.Wrap(err, "generating id")
	}
	return kind + "_" + id.String(), nil
}

func hasKindPrefix(id, kind string) bool {
	return strings.HasPrefix(id, kind+"_")
}

type envelopeOptions struct {
	clock      clock.Clock
	exchangeID string
	externalID string
	protocol   string
	private    map[string]any
}

func newEnvelopeOptions(opts []Option) envelopeOptions {
	o := envelopeOptions{
		clock:    clock.New(),
		protocol: ProtocolVersion,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Option configures NewMessage and NewResource.
type Option func(*envelopeOptions)

// WithClock sets the clock used for timestamps.
func WithClock(c clock.Clock) Option {
	return func(o *envelopeOptions) {
		o.clock = c
	}
}

// WithExchangeID sets the exchange a message belongs to. Required for every kind but rfq.
func WithExchangeID(exchangeID string) Option {
	return func(o *envelopeOptions) {
		o.exchangeID = exchangeID
	}
}

// WithExternalID sets an id meaningful to the sender's systems.
func WithExternalID(externalID string) Option {
	return func(o *envelopeOptions) {
		o.externalID = externalID
	}
}

// WithProtocol overrides the protocol version.
func WithProtocol(protocol string) Option {
	return func(o *envelopeOptions) {
		o.protocol = protocol
	}
}

// WithPrivate attaches private data to an rfq. It is never part of the signed digest.
func WithPrivate(private map[string]any) Option {
	return func(o *envelopeOptions) {
		o.private = private
	}
}
