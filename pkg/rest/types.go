package rest

import (
	"io"
	"maps"
	"net/http"
	"net/url"
	"strings"
)

// Method is an HTTP method accepted by the API.
type Method string

// Supported request methods.
const (
	MethodGet    Method = http.MethodGet
	MethodPost   Method = http.MethodPost
	MethodPut    Method = http.MethodPut
	MethodPatch  Method = http.MethodPatch
	MethodDelete Method = http.MethodDelete
)

// ParseMethod returns the Method matching name, ignoring case.
func ParseMethod(name string) (Method, error) {
	switch Method(strings.ToUpper(name)) {
	case MethodGet:
		return MethodGet, nil
	case MethodPost:
		return MethodPost, nil
	case MethodPut:
		return MethodPut, nil
	case MethodPatch:
		return MethodPatch, nil
	case MethodDelete:
		return MethodDelete, nil
	default:
		return "", &UnsupportedMethodError{Method: name}
	}
}

// HasBody reports whether parameters for this method travel in the body.
func (m Method) HasBody() bool {
	return m == MethodPost || m == MethodPut || m == MethodPatch
}

// Operation describes one logical API endpoint. It is immutable once built
// and may be shared by any number of concurrent calls.
type Operation struct {
	Method Method
	Base   string
	Path   []string
	Suffix string
}

// NewOperation creates an Operation. The path is copied.
func NewOperation(method Method, base, suffix string, path ...string) Operation {
	return Operation{
		Method: method,
		Base:   strings.TrimRight(base, "/"),
		Path:   append([]string(nil), path...),
		Suffix: suffix,
	}
}

// URL joins the base and path segments and appends the suffix. A non-nil
// override replaces the operation's own suffix.
func (o Operation) URL(override *string) string {
	suffix := o.Suffix
	if override != nil {
		suffix = *override
	}

	parts := make([]string, 0, len(o.Path)+1)
	parts = append(parts, o.Base)
	parts = append(parts, o.Path...)

	return strings.Join(parts, "/") + suffix
}

// String implements fmt.Stringer.
func (o Operation) String() string {
	return string(o.Method) + " " + o.URL(nil)
}

// Args holds the query or body arguments of a call.
type Args map[string]any

// Merge returns a new Args with the entries of other layered over a.
// Neither input is modified.
func (a Args) Merge(other Args) Args {
	merged := make(Args, len(a)+len(other))
	maps.Copy(merged, a)
	maps.Copy(merged, other)

	return merged
}

// CallOptions carries per-call control flags. None of them reach the wire.
type CallOptions struct {
	// SkipParams overrides the resolver's inferred skip-params flag when set.
	SkipParams *bool
	// ErrorHandling toggles the retry wrapper. Nil means enabled.
	ErrorHandling *bool
	// Suffix overrides the operation suffix (".json" by default).
	Suffix *string
	// Headers are added to the outgoing request.
	Headers http.Header
	// JSON forces the response body to be validated as JSON.
	JSON bool
	// NoCache sends the request even when a cached response exists, and
	// keeps the response out of the cache.
	NoCache bool
}

// ErrorHandlingEnabled reports whether the retry wrapper applies.
func (o CallOptions) ErrorHandlingEnabled() bool {
	return o.ErrorHandling == nil || *o.ErrorHandling
}

// Bool returns a pointer to b.
func Bool(b bool) *bool {
	return &b
}

// String returns a pointer to s.
func String(s string) *string {
	return &s
}

// WireArgs are arguments ready for the transport.
type WireArgs struct {
	Query url.Values
	Form  url.Values
	Files map[string]io.Reader
}

// Call is a single transport attempt. Method, URL and SkipParams are always
// populated by the RequestInvoker.
type Call struct {
	Method     Method
	URL        string
	SkipParams bool
	Args       WireArgs
	Headers    http.Header
	JSON       bool
	NoCache    bool
	Metadata   map[string]interface{}
}
