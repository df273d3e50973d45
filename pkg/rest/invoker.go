package rest

import (
	"context"
	"fmt"
)

// ParameterResolver turns raw arguments into wire-ready arguments and infers
// whether parameters must be left out of request signing.
type ParameterResolver interface {
	Resolve(method Method, args Args) (WireArgs, bool, error)
}

// Caller performs exactly one network attempt.
type Caller interface {
	Call(ctx context.Context, call *Call) (*Response, error)
}

// Transport performs network calls and opens streams.
type Transport interface {
	Caller
	OpenStream(ctx context.Context, call *Call) (ResponseStream, error)
}

// Invoker dispatches one logical request.
type Invoker interface {
	Dispatch(ctx context.Context, args Args, opts CallOptions) (*Response, error)
}

// InvokerFunc adapts a function to Invoker.
type InvokerFunc func(ctx context.Context, args Args, opts CallOptions) (*Response, error)

// Dispatch calls f.
func (f InvokerFunc) Dispatch(ctx context.Context, args Args, opts CallOptions) (*Response, error) {
	return f(ctx, args, opts)
}

// ErrorHandler wraps an Invoker with failure handling.
type ErrorHandler func(Invoker) Invoker

// RequestInvoker binds an Operation to its collaborators. It holds no
// mutable state and is safe for concurrent use.
type RequestInvoker struct {
	op           Operation
	resolver     ParameterResolver
	transport    Transport
	errorHandler ErrorHandler
	registry     *Registry
}

// NewRequestInvoker creates an invoker. errorHandler and registry may be nil;
// a nil registry falls back to DefaultRegistry.
func NewRequestInvoker(op Operation, resolver ParameterResolver, transport Transport, errorHandler ErrorHandler, registry *Registry) *RequestInvoker {
	if registry == nil {
		registry = DefaultRegistry
	}

	return &RequestInvoker{
		op:           op,
		resolver:     resolver,
		transport:    transport,
		errorHandler: errorHandler,
		registry:     registry,
	}
}

// Operation returns the bound operation.
func (r *RequestInvoker) Operation() Operation {
	return r.op
}

// Build resolves args into a Call without sending it.
func (r *RequestInvoker) Build(args Args, opts CallOptions) (*Call, error) {
	url := r.op.URL(opts.Suffix)

	wire, skipParams, err := r.resolver.Resolve(r.op.Method, args)
	if err != nil {
		return nil, fmt.Errorf("resolving parameters for %s %s: %w", r.op.Method, url, err)
	}

	if opts.SkipParams != nil {
		skipParams = *opts.SkipParams
	}

	return &Call{
		Method:     r.op.Method,
		URL:        url,
		SkipParams: skipParams,
		Args:       wire,
		Headers:    opts.Headers.Clone(),
		JSON:       opts.JSON,
		NoCache:    opts.NoCache,
	}, nil
}

// Dispatch sends the request. The call is wrapped by the error handler when
// one is configured and error handling is enabled for this call.
func (r *RequestInvoker) Dispatch(ctx context.Context, args Args, opts CallOptions) (*Response, error) {
	if r.errorHandler != nil && opts.ErrorHandlingEnabled() {
		return r.errorHandler(InvokerFunc(r.dispatchOnce)).Dispatch(ctx, args, opts)
	}

	return r.dispatchOnce(ctx, args, opts)
}

func (r *RequestInvoker) dispatchOnce(ctx context.Context, args Args, opts CallOptions) (*Response, error) {
	call, err := r.Build(args, opts)
	if err != nil {
		return nil, err
	}

	return r.transport.Call(ctx, call)
}

// Stream opens a streaming connection. Streams are never retried.
func (r *RequestInvoker) Stream(ctx context.Context, args Args, opts CallOptions) (ResponseStream, error) {
	call, err := r.Build(args, opts)
	if err != nil {
		return nil, err
	}

	stream, err := r.transport.OpenStream(ctx, call)
	if err != nil {
		return nil, fmt.Errorf("opening stream %s: %w", call.URL, err)
	}

	return stream, nil
}

// Iterate returns a page iterator for the named strategy.
func (r *RequestInvoker) Iterate(strategy string, args Args, opts ...IteratorOption) (PageIterator, error) {
	return r.registry.New(strategy, r, args, opts...)
}
