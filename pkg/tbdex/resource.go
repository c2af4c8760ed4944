package tbdex

import (
	"context"

	"github.com/benbjohnson/clock"
	"github.com/goccy/go-json"
	"github.com/pkg/errors"

	"github.com/tbd54566975/tbdex-go/internal/util"
	"github.com/tbd54566975/tbdex-go/pkg/dids"
	"github.com/tbd54566975/tbdex-go/pkg/dids/didcore"
	"github.com/tbd54566975/tbdex-go/pkg/dids/resolver"
)

// Resource is a signed tbDEX resource published by a PFI.
type Resource struct {
	Metadata  ResourceMetadata `json:"metadata"`
	Data      ResourceData     `json:"data"`
	Signature string           `json:"signature,omitempty"`
}

// NewResource creates an unsigned resource published by from.
func NewResource(from string, data ResourceData, opts ...Option) (*Resource, error) {
	if data == nil {
		return nil, util.LoggingNewError("resource data cannot be nil")
	}
	if _, err := didcore.Parse(from); err != nil {
		return nil, errors.Wrap(err, "from")
	}

	o := newEnvelopeOptions(opts)
	if o.exchangeID != "" || o.private != nil {
		return nil, errors.New("resources do not take an exchange id or private data")
	}
	id, err := newID(string(data.Kind()))
	if err != nil {
		return nil, err
	}
	return &Resource{
		Metadata: ResourceMetadata{
			ID:        id,
			Kind:      data.Kind(),
			From:      from,
			CreatedAt: FormatTimestamp(o.clock.Now()),
			Protocol:  o.protocol,
		},
		Data: data,
	}, nil
}

// Digest returns the digest the resource signature covers.
func (r *Resource) Digest() ([]byte, error) {
	return Digest(r.Data, r.Metadata)
}

// Sign signs the resource on behalf of bearer. A resource can be signed once.
func (r *Resource) Sign(bearer *dids.BearerDID, keyAlias ...string) error {
	signature, err := sign(r.Signature, r.Data, r.Metadata, r.Metadata.From, bearer, keyAlias)
	if err != nil {
		return err
	}
	r.Signature = signature
	return nil
}

// Verify checks the signature against the current data and metadata using the key of metadata.from.
func (r *Resource) Verify(ctx context.Context, res resolver.Resolver) (bool, error) {
	return verify(ctx, r.Signature, r.Data, r.Metadata, r.Metadata.From, res)
}

// Validate checks the metadata and data fields.
func (r *Resource) Validate() error {
	if err := util.IsValidStruct(r.Metadata); err != nil {
		return errors.Wrap(err, "metadata")
	}
	if r.Data == nil {
		return errors.New("data is required")
	}
	if r.Data.Kind() != r.Metadata.Kind {
		return errors.Errorf("data of kind %s does not match metadata kind %s", r.Data.Kind(), r.Metadata.Kind)
	}
	if err := util.IsValidStruct(r.Data); err != nil {
		return errors.Wrap(err, "data")
	}
	if !hasKindPrefix(r.Metadata.ID, string(r.Metadata.Kind)) {
		return errors.Errorf("id %s is not prefixed by kind %s", r.Metadata.ID, r.Metadata.Kind)
	}
	if _, err := didcore.Parse(r.Metadata.From); err != nil {
		return errors.Wrap(err, "from")
	}
	if _, err := ParseTimestamp(r.Metadata.CreatedAt); err != nil {
		return errors.Wrap(err, "createdAt")
	}
	if r.Metadata.UpdatedAt != "" {
		if _, err := ParseTimestamp(r.Metadata.UpdatedAt); err != nil {
			return errors.Wrap(err, "updatedAt")
		}
	}
	return nil
}

// Touch sets updatedAt to the current time of c and clears the signature. The resource must be signed again.
func (r *Resource) Touch(c clock.Clock) {
	r.Metadata.UpdatedAt = FormatTimestamp(c.Now())
	r.Signature = ""
}

func (r *Resource) UnmarshalJSON(raw []byte) error {
	var envelope struct {
		Metadata  ResourceMetadata `json:"metadata"`
		Data      json.RawMessage  `json:"data"`
		Signature string           `json:"signature"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return errors.Wrap(err, "unmarshaling resource")
	}
	data, err := decodeResourceData(envelope.Metadata.Kind, envelope.Data)
	if err != nil {
		return err
	}
	*r = Resource{
		Metadata:  envelope.Metadata,
		Data:      data,
		Signature: envelope.Signature,
	}
	return nil
}

func decodeResourceData(kind ResourceKind, raw json.RawMessage) (ResourceData, error) {
	switch kind {
	case KindOffering:
		return decodeData[Offering](raw)
	case KindBalance:
		return decodeData[Balance](raw)
	case "":
		return nil, errors.Wrap(ErrUnknownKind, "metadata.kind is missing")
	}
	return nil, errors.Wrapf(ErrUnknownKind, "resource kind %q", kind)
}

// ParseResource decodes a resource of any kind, selecting the data type from metadata.kind.
func ParseResource(raw []byte) (*Resource, error) {
	var r Resource
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// ParseAndVerifyResource decodes, validates and verifies a resource.
func ParseAndVerifyResource(ctx context.Context, raw []byte, res resolver.Resolver) (*Resource, error) {
	r, err := ParseResource(raw)
	if err != nil {
		return nil, err
	}
	if err = r.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid resource")
	}
	verified, err := r.Verify(ctx, res)
	if err != nil {
		return nil, err
	}
	if !verified {
		return nil, errors.Wrapf(ErrInvalidSignature, "resource %s", r.Metadata.ID)
	}
	return r, nil
}
