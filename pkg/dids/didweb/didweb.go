// Package didweb implements the did:web method (https://w3c-ccg.github.io/did-method-web/): DID Documents hosted as
// did.json files on an HTTPS origin.
package didweb

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
	"github.com/tbd54566975/tbdex-go/pkg/crypto/dsa"
	"github.com/tbd54566975/tbdex-go/pkg/crypto/keymanager"
	"github.com/tbd54566975/tbdex-go/pkg/dids"
	"github.com/tbd54566975/tbdex-go/pkg/dids/didcore"
)

const (
	Method = "web"

	wellKnownPath = "/.well-known"
	documentFile  = "/did.json"
	// maxDocumentSize bounds the response body read from a did:web origin
	maxDocumentSize = 1 << 20
)

// URLFromURI maps a did:web URI to the HTTPS URL of its DID Document.
func URLFromURI(uri string) (string, error) {
	did, err := didcore.Parse(uri)
	if err != nil {
		return "", err
	}
	if did.Method != Method {
		return "", errors.Wrapf(didcore.ErrInvalidURI, "not a did:web: %s", uri)
	}

	segments := strings.Split(did.ID, ":")
	for i, segment := range segments {
		decoded, err := url.PathUnescape(segment)
		if err != nil {
			return "", errors.Wrapf(didcore.ErrInvalidURI, "decoding segment %q", segment)
		}
		segments[i] = decoded
	}

	path := wellKnownPath
	if len(segments) > 1 {
		path = "/" + strings.Join(segments[1:], "/")
	}
	return "https://" + segments[0] + path + documentFile, nil
}

// URIFromURL maps an origin URL, e.g. https://example.com:8443/users/alice, to its did:web URI.
func URIFromURL(rawURL string) (string, error) {
	if !strings.Contains(rawURL, "://") {
		rawURL = "https://" + rawURL
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", errors.Wrap(err, "parsing did:web origin")
	}
	if parsed.Host == "" {
		return "", errors.Errorf("no host in did:web origin: %s", rawURL)
	}

	id := strings.ReplaceAll(parsed.Host, ":", "%3A")
	path := strings.TrimSuffix(strings.TrimPrefix(parsed.Path, "/"), "/")
	path = strings.TrimSuffix(path, strings.TrimPrefix(documentFile, "/"))
	path = strings.TrimSuffix(path, "/")
	if path != "" && path != strings.TrimPrefix(wellKnownPath, "/") {
		id += ":" + strings.ReplaceAll(path, "/", ":")
	}
	return "did:" + Method + ":" + id, nil
}

// Create generates a key in km and returns a did:web bearer DID for the given origin. The returned document must be
// published at URLFromURI(bearer.URI) by the caller.
func Create(km keymanager.KeyManager, origin string, alg dsa.Algorithm, services ...didcore.Service) (*dids.BearerDID, error) {
	if km == nil {
		return nil, util.LoggingNewError("key manager cannot be empty")
	}
	uri, err := URIFromURL(origin)
	if err != nil {
		return nil, err
	}
	did, err := didcore.Parse(uri)
	if err != nil {
		return nil, errors.Wrap(err, "parsing generated did:web")
	}

	alias, err := km.GeneratePrivateKey(alg)
	if err != nil {
		return nil, errors.Wrap(err, "generating key")
	}
	publicKey, err := km.GetPublicKey(alias)
	if err != nil {
		return nil, errors.Wrap(err, "reading generated key")
	}

	doc := didcore.Document{
		Context: []string{didcore.KnownDIDContext},
		ID:      did.URI,
	}
	doc.AddVerificationMethod(didcore.VerificationMethod{
		ID:           did.VerificationMethodID("0"),
		Type:         didcore.JSONWebKey2020Type,
		Controller:   did.URI,
		PublicKeyJWK: &publicKey,
	},
		didcore.PurposeAuthentication,
		didcore.PurposeAssertionMethod,
		didcore.PurposeCapabilityDelegation,
		didcore.PurposeCapabilityInvocation,
	)
	for _, service := range services {
		doc.AddService(service)
	}
	return dids.NewBearerDID(uri, doc, km)
}

// Resolver resolves did:web URIs with a single HTTPS GET.
type Resolver struct {
	client *http.Client
}

// NewResolver creates a did:web resolver. A nil client uses an instrumented default client.
func NewResolver(client *http.Client) *Resolver {
	if client == nil {
		client = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	return &Resolver{client: client}
}

func (*Resolver) Method() string {
	return Method
}

// Resolve fetches the DID Document. Transport, status and decoding failures all map to notFound,
// as does a document whose id is not the requested DID.
func (r *Resolver) Resolve(ctx context.Context, uri string) didcore.ResolutionResult {
	did, err := didcore.Parse(uri)
	if err != nil {
		return didcore.ResolutionResultWithError(didcore.ResolutionErrorInvalidDID)
	}
	documentURL, err := URLFromURI(did.URI)
	if err != nil {
		return didcore.ResolutionResultWithError(didcore.ResolutionErrorInvalidDID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, documentURL, nil)
	if err != nil {
		logrus.WithError(err).Errorf("creating request for %s", util.SanitizeLog(documentURL))
		return didcore.ResolutionResultWithError(didcore.ResolutionErrorNotFound)
	}
	req.Header.Set("Accept", "application/did+json, application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		logrus.WithError(err).Warnf("fetching did:web document from %s", util.SanitizeLog(documentURL))
		return didcore.ResolutionResultWithError(didcore.ResolutionErrorNotFound)
	}
	defer resp.Body.Close()

	if !util.Is2xxResponse(resp.StatusCode) {
		logrus.Warnf("fetching did:web document from %s: status %d", util.SanitizeLog(documentURL), resp.StatusCode)
		return didcore.ResolutionResultWithError(didcore.ResolutionErrorNotFound)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		logrus.WithError(err).Warnf("reading did:web document from %s", util.SanitizeLog(documentURL))
		return didcore.ResolutionResultWithError(didcore.ResolutionErrorNotFound)
	}

	var doc didcore.Document
	if err = json.Unmarshal(body, &doc); err != nil || doc.IsEmpty() {
		logrus.WithError(err).Warnf("decoding did:web document from %s", util.SanitizeLog(documentURL))
		return didcore.ResolutionResultWithError(didcore.ResolutionErrorNotFound)
	}
	if doc.ID != did.URI {
		logrus.Warnf("did:web document from %s is for %s", util.SanitizeLog(documentURL), util.SanitizeLog(doc.ID))
		return didcore.ResolutionResultWithError(didcore.ResolutionErrorNotFound)
	}
	return didcore.ResolutionResultWithDocument(doc)
}
