// Package rest provides the request-execution layer for a REST-style API:
// building and dispatching logical operations, retrying transient failures,
// and iterating multi-page results.
//
// # Overview
//
// An Operation names one endpoint (method, path, suffix). A RequestInvoker
// binds an Operation to a ParameterResolver and a Transport and turns keyword
// arguments into one dispatched call. Most consumers obtain invokers from an
// API built by the restclient package:
//
//	import (
//	  "context"
//	  "log"
//
//	  "github.com/fivetwenty-io/rest-dispatch/pkg/rest"
//	  "github.com/fivetwenty-io/rest-dispatch/pkg/restclient"
//	)
//
//	func example() {
//	  ctx := context.Background()
//	  api, err := restclient.New(ctx, &rest.Config{BearerToken: "..."})
//	  if err != nil { log.Fatal(err) }
//
//	  resp, err := api.Subdomain("api").Path("statuses", "home_timeline").Get().
//	    Dispatch(ctx, rest.Args{"count": 200}, rest.CallOptions{})
//	  if err != nil { log.Fatal(err) }
//	  _ = resp
//	}
//
// # Retries
//
// When error handling is enabled for a call (the default) and the API has an
// ErrorHandler, the call is wrapped in a RetryingInvoker. Rate limit errors
// are retried after sleeping until the limit resets; timeouts are retried
// immediately. Nothing else is retried. Disable handling per call with
// CallOptions{ErrorHandling: rest.Bool(false)}.
//
// # Pagination
//
// Iterators drive an Invoker page by page. Strategies are looked up by name
// in a Registry:
//
//	it, err := timeline.Iterate("max_id", rest.Args{"count": 200})
//	if err != nil { /* ErrUnknownStrategy */ }
//	for {
//	  page, err := it.NextPage(ctx)
//	  if errors.Is(err, rest.ErrNoMorePages) { break }
//	  if err != nil { return err }
//	  _ = page
//	}
//
// # Errors
//
// Transient failures are represented by RateLimitExceededError and
// TimeoutError. API errors are ResponseError values; IsNotFound,
// IsUnauthorized, IsRateLimited and IsTimeout branch on the common cases.
package rest
