// Package didion resolves did:ion URIs against an ION node's resolution endpoint.
package didion

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tbd54566975/tbdex-go/internal/util"
	"github.com/tbd54566975/tbdex-go/pkg/dids/didcore"
)

const (
	Method = "ion"

	// DefaultEndpoint is the public ION node used when none is configured.
	DefaultEndpoint = "https://ion.tbddev.org"

	identifiersPath = "/identifiers/"
	maxResultSize   = 1 << 20
)

// Resolver resolves did:ion URIs with a single GET on <endpoint>/identifiers/<did>.
type Resolver struct {
	endpoint string
	client   *http.Client
}

// NewResolver creates an ION resolver for endpoint. A nil client uses an instrumented default client.
func NewResolver(endpoint string, client *http.Client) (*Resolver, error) {
	if endpoint == "" {
		return nil, errors.New("ion endpoint cannot be empty")
	}
	parsed, err := url.ParseRequestURI(endpoint)
	if err != nil || parsed.Host == "" {
		return nil, errors.Errorf("invalid ion endpoint: %s", endpoint)
	}
	if client == nil {
		client = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	return &Resolver{
		endpoint: strings.TrimSuffix(endpoint, "/"),
		client:   client,
	}, nil
}

func (*Resolver) Method() string {
	return Method
}

// Resolve returns the resolution result served by the ION node as-is. Any failure to obtain it maps to notFound.
func (r *Resolver) Resolve(ctx context.Context, uri string) didcore.ResolutionResult {
	did, err := didcore.Parse(uri)
	if err != nil || did.Method != Method {
		return didcore.ResolutionResultWithError(didcore.ResolutionErrorInvalidDID)
	}

	resolutionURL := r.endpoint + identifiersPath + did.URI
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, resolutionURL, nil)
	if err != nil {
		logrus.WithError(err).Errorf("creating request for %s", util.SanitizeLog(resolutionURL))
		return didcore.ResolutionResultWithError(didcore.ResolutionErrorNotFound)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		logrus.WithError(err).Warnf("resolving %s", util.SanitizeLog(did.URI))
		return didcore.ResolutionResultWithError(didcore.ResolutionErrorNotFound)
	}
	defer resp.Body.Close()

	if !util.Is2xxResponse(resp.StatusCode) {
		logrus.Warnf("resolving %s: status %d", util.SanitizeLog(did.URI), resp.StatusCode)
		return didcore.ResolutionResultWithError(didcore.ResolutionErrorNotFound)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResultSize))
	if err != nil {
		logrus.WithError(err).Warnf("reading resolution result for %s", util.SanitizeLog(did.URI))
		return didcore.ResolutionResultWithError(didcore.ResolutionErrorNotFound)
	}

	var result didcore.ResolutionResult
	if err = json.Unmarshal(body, &result); err != nil {
		logrus.WithError(err).Warnf("decoding resolution result for %s", util.SanitizeLog(did.URI))
		return didcore.ResolutionResultWithError(didcore.ResolutionErrorNotFound)
	}
	return result
}
