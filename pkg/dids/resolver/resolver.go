// Package resolver dispatches DID resolution to method specific resolvers held in an explicit Registry.
package resolver

import (
	"context"
	"net/http"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbd54566975/tbdex-go/config"
	"github.com/tbd54566975/tbdex-go/internal/util"
	"github.com/tbd54566975/tbdex-go/pkg/dids/didcore"
	"github.com/tbd54566975/tbdex-go/pkg/dids/didion"
	"github.com/tbd54566975/tbdex-go/pkg/dids/didjwk"
	"github.com/tbd54566975/tbdex-go/pkg/dids/didkey"
	"github.com/tbd54566975/tbdex-go/pkg/dids/didweb"
)

const tracerName = "github.com/tbd54566975/tbdex-go/pkg/dids/resolver"

// Resolver resolves a DID URI. Failures are reported in the result's resolution metadata.
type Resolver interface {
	Resolve(ctx context.Context, uri string) didcore.ResolutionResult
}

// MethodResolver is a Resolver for a single DID method.
type MethodResolver interface {
	Resolver
	Method() string
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(ctx context.Context, uri string) didcore.ResolutionResult

func (f ResolverFunc) Resolve(ctx context.Context, uri string) didcore.ResolutionResult {
	return f(ctx, uri)
}

// Registry maps DID method names to resolvers.
type Registry struct {
	mu        sync.RWMutex
	resolvers map[string]Resolver
	tracer    trace.Tracer
}

var _ Resolver = (*Registry)(nil)

// NewRegistry creates a registry holding the given method resolvers.
func NewRegistry(resolvers ...MethodResolver) *Registry {
	r := &Registry{
		resolvers: make(map[string]Resolver, len(resolvers)),
		tracer:    otel.Tracer(tracerName),
	}
	for _, resolver := range resolvers {
		r.resolvers[resolver.Method()] = resolver
	}
	return r
}

// NewRegistryFromConfig creates a registry for the configured methods. Network resolvers share one instrumented
// HTTP client bound by the configured timeout.
func NewRegistryFromConfig(cfg config.ResolverConfig) (*Registry, error) {
	methods := cfg.Methods
	if len(methods) == 0 {
		methods = config.DefaultResolutionMethods
	}
	client := newHTTPClient(cfg)

	registry := NewRegistry()
	for _, method := range methods {
		resolver, err := knownResolver(method, cfg, client)
		if err != nil {
			return nil, util.LoggingErrorMsgf(err, "creating resolver for method %s", method)
		}
		registry.Register(method, resolver)
	}
	logrus.Debugf("DID resolver registry created for methods: %v", registry.Methods())
	return registry, nil
}

// all resolvers this module knows how to build
func knownResolver(method string, cfg config.ResolverConfig, client *http.Client) (Resolver, error) {
	switch method {
	case didjwk.Method:
		return didjwk.Resolver{}, nil
	case didkey.Method:
		return didkey.Resolver{}, nil
	case didweb.Method:
		return didweb.NewResolver(client), nil
	case didion.Method:
		endpoint := cfg.IONEndpoint
		if endpoint == "" {
			endpoint = didion.DefaultEndpoint
		}
		ion, err := didion.NewResolver(endpoint, client)
		if err != nil {
			return nil, err
		}
		return ion, nil
	}
	return nil, errors.Errorf("unsupported method: %s", method)
}

func newHTTPClient(cfg config.ResolverConfig) *http.Client {
	var transport http.RoundTripper = otelhttp.NewTransport(http.DefaultTransport)
	if cfg.UserAgent != "" {
		transport = userAgentTransport{userAgent: cfg.UserAgent, next: transport}
	}
	return &http.Client{Transport: transport, Timeout: cfg.HTTPTimeout}
}

type userAgentTransport struct {
	userAgent string
	next      http.RoundTripper
}

func (t userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", t.userAgent)
	return t.next.RoundTrip(req)
}

// Register adds or replaces the resolver for method.
func (r *Registry) Register(method string, resolver Resolver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolvers[method] = resolver
}

// Methods returns the registered method names in sorted order.
func (r *Registry) Methods() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	methods := make([]string, 0, len(r.resolvers))
	for method := range r.resolvers {
		methods = append(methods, method)
	}
	sort.Strings(methods)
	return methods
}

// Resolve parses uri and delegates to the resolver for its method. The method resolver's result is returned as-is.
func (r *Registry) Resolve(ctx context.Context, uri string) didcore.ResolutionResult {
	ctx, span := r.tracer.Start(ctx, "dids.resolve")
	defer span.End()

	did, err := didcore.Parse(uri)
	if err != nil {
		logrus.WithError(err).Debugf("cannot resolve invalid DID: %s", util.SanitizeLog(uri))
		return r.failed(span, didcore.ResolutionErrorInvalidDID)
	}
	span.SetAttributes(attribute.String("did.method", did.Method))

	r.mu.RLock()
	resolver, ok := r.resolvers[did.Method]
	r.mu.RUnlock()
	if !ok {
		logrus.Debugf("no resolver registered for method: %s", util.SanitizeLog(did.Method))
		return r.failed(span, didcore.ResolutionErrorMethodNotSupported)
	}

	result := resolver.Resolve(ctx, uri)
	if code := result.ResolutionMetadata.Error; code != "" {
		span.SetStatus(codes.Error, string(code))
	}
	return result
}

func (r *Registry) failed(span trace.Span, code didcore.ResolutionError) didcore.ResolutionResult {
	span.SetStatus(codes.Error, string(code))
	return didcore.ResolutionResultWithError(code)
}
