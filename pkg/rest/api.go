package rest

import (
	"slices"
	"strings"
)

// Base URL placeholders.
const (
	PlaceholderAPI     = "{api}"
	PlaceholderVersion = "{version}"

	DefaultSuffix = ".json"
)

// APIConfig wires an API to its collaborators.
type APIConfig struct {
	// BaseURL is a template such as "https://{api}.example.com/{version}".
	BaseURL string
	// Version fills the {version} placeholder.
	Version string
	// Suffix is appended to every endpoint. Empty means DefaultSuffix; use
	// CallOptions.Suffix to drop it for a single call.
	Suffix string
	// StreamingAPIs lists the subdomains whose endpoints are streams.
	StreamingAPIs []string

	Resolver     ParameterResolver
	Transport    Transport
	ErrorHandler ErrorHandler
	// Registry resolves pagination strategies. Nil means DefaultRegistry.
	Registry *Registry
}

// API builds RequestInvokers for the endpoints of a remote API. It is
// immutable and safe for concurrent use.
type API struct {
	cfg APIConfig
}

// NewAPI validates cfg and creates an API.
func NewAPI(cfg APIConfig) (*API, error) {
	if cfg.BaseURL == "" {
		return nil, ErrBaseURLRequired
	}

	if cfg.Resolver == nil {
		return nil, ErrResolverRequired
	}

	if cfg.Transport == nil {
		return nil, ErrTransportRequired
	}

	if cfg.Suffix == "" {
		cfg.Suffix = DefaultSuffix
	}

	if cfg.Registry == nil {
		cfg.Registry = DefaultRegistry
	}

	cfg.StreamingAPIs = slices.Clone(cfg.StreamingAPIs)

	return &API{cfg: cfg}, nil
}

// Registry returns the pagination registry.
func (a *API) Registry() *Registry {
	return a.cfg.Registry
}

// Subdomain returns the root path of the named API using the configured
// version.
func (a *API) Subdomain(name string) Path {
	return a.SubdomainVersion(name, a.cfg.Version)
}

// SubdomainVersion returns the root path of the named API at version.
func (a *API) SubdomainVersion(name, version string) Path {
	base := strings.NewReplacer(PlaceholderAPI, name, PlaceholderVersion, version).Replace(a.cfg.BaseURL)

	return Path{
		api:       a,
		base:      strings.TrimRight(base, "/"),
		streaming: slices.Contains(a.cfg.StreamingAPIs, name),
	}
}

// Path is an endpoint under construction. Each method returns a new Path.
type Path struct {
	api       *API
	base      string
	segments  []string
	streaming bool
}

// Path appends segments. Segments containing "/" are split and empty
// segments are dropped, so Path("statuses/show", "123") and
// Path("statuses", "show", "123") are the same endpoint.
func (p Path) Path(segments ...string) Path {
	next := p
	next.segments = slices.Clone(p.segments)

	for _, segment := range segments {
		for _, part := range strings.Split(segment, "/") {
			if part != "" {
				next.segments = append(next.segments, part)
			}
		}
	}

	return next
}

// Streaming reports whether the path belongs to a streaming API.
func (p Path) Streaming() bool {
	return p.streaming
}

// URL returns the endpoint URL including the suffix.
func (p Path) URL() string {
	return p.operation(MethodGet).URL(nil)
}

func (p Path) operation(method Method) Operation {
	return NewOperation(method, p.base, p.api.cfg.Suffix, p.segments...)
}

// Request returns an invoker for method on this path.
func (p Path) Request(method Method) *RequestInvoker {
	cfg := p.api.cfg

	return NewRequestInvoker(p.operation(method), cfg.Resolver, cfg.Transport, cfg.ErrorHandler, cfg.Registry)
}

// Get returns a GET invoker.
func (p Path) Get() *RequestInvoker {
	return p.Request(MethodGet)
}

// Post returns a POST invoker.
func (p Path) Post() *RequestInvoker {
	return p.Request(MethodPost)
}

// Put returns a PUT invoker.
func (p Path) Put() *RequestInvoker {
	return p.Request(MethodPut)
}

// Patch returns a PATCH invoker.
func (p Path) Patch() *RequestInvoker {
	return p.Request(MethodPatch)
}

// Delete returns a DELETE invoker.
func (p Path) Delete() *RequestInvoker {
	return p.Request(MethodDelete)
}
