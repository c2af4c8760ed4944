package main

import (
	"context"
	"slices"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"

	"github.com/tbd54566975/tbdex-go/pkg/dids"
	"github.com/tbd54566975/tbdex-go/pkg/dids/resolver"
	"github.com/tbd54566975/tbdex-go/pkg/tbdex"
)

// envelope is the behavior shared by messages and resources
type envelope interface {
	Digest() ([]byte, error)
	Sign(bearer *dids.BearerDID, keyAlias ...string) error
	Verify(ctx context.Context, r resolver.Resolver) (bool, error)
	Validate() error
	header() (id, kind, from string)
	value() any
}

type messageEnvelope struct{ *tbdex.Message }

func (m messageEnvelope) header() (string, string, string) {
	return m.Metadata.ID, string(m.Metadata.Kind), m.Metadata.From
}

func (m messageEnvelope) value() any { return m.Message }

type resourceEnvelope struct{ *tbdex.Resource }

func (r resourceEnvelope) header() (string, string, string) {
	return r.Metadata.ID, string(r.Metadata.Kind), r.Metadata.From
}

// parseEnvelope decodes a message or a resource depending on metadata.kind
func parseEnvelope(raw []byte) (envelope, error) {
	var peek struct {
		Metadata struct {
			Kind string `json:"kind"`
		} `json:"metadata"`
	}
	if err := json.Unmarshal(raw, &peek); err != nil {
		return nil, errors.Wrap(err, "decoding envelope")
	}

	kind := peek.Metadata.Kind
	if slices.Contains(tbdex.ResourceKinds(), tbdex.ResourceKind(kind)) {
		r, err := tbdex.ParseResource(raw)
		if err != nil {
			return nil, err
		}
		return resourceEnvelope{r}, nil
	}
	m, err := tbdex.ParseMessage(raw)
	if err != nil {
		return nil, err
	}
	return messageEnvelope{m}, nil
}

func (r resourceEnvelope) value() any { return r.Resource }
