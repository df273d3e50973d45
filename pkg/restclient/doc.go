// Package restclient provides the primary entry point for constructing a
// fully wired API client.
//
// It layers configuration defaults, parameter resolution, the HTTP
// transport, request signing, caching, metrics and the retry wrapper on top
// of the types defined in the rest package.
//
// Quick start
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
//
//	  // User context (OAuth1):
//	  cli, err := restclient.NewWithOAuth1(ctx, "ck", "cs", "at", "ats")
//	  if err != nil { log.Fatal(err) }
//	  defer cli.Close()
//
//	  timeline := cli.Subdomain("api").Path("statuses", "home_timeline").Get()
//	  it, err := timeline.Iterate("max_id", rest.Args{"count": 200})
//	  if err != nil { log.Fatal(err) }
//	  _ = it
//	}
//
// Authentication precedence, retries and caching are configured through
// rest.Config.
package restclient
