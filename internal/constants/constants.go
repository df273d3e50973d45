package constants

import "time"

// File and directory permissions.
const (
	// ConfigDirPerm is the permission for configuration directories.
	ConfigDirPerm = 0750

	// ConfigFilePerm is the permission for configuration files.
	ConfigFilePerm = 0600
)

// HTTP and network timeouts.
const (
	// DefaultHTTPTimeout is the default timeout for a single call.
	DefaultHTTPTimeout = 30 * time.Second

	// StreamIdleTimeout bounds the wait for the next line of a stream,
	// keep-alive newlines included.
	StreamIdleTimeout = 90 * time.Second
)

// Transport-level retries of 5xx responses and connection errors. Rate
// limits and timeouts are retried separately and without bound.
const (
	// DefaultRetryMax disables transport-level retries.
	DefaultRetryMax = 0

	// DefaultRetryWaitMin is the minimum wait between transport retries.
	DefaultRetryWaitMin = 1 * time.Second

	// DefaultRetryWaitMax is the maximum wait between transport retries.
	DefaultRetryWaitMax = 10 * time.Second
)

// API endpoint defaults.
const (
	// DefaultBaseURL is the endpoint template used when none is configured.
	DefaultBaseURL = "https://{api}.twitter.com/{version}"

	// DefaultAPIVersion fills the {version} placeholder.
	DefaultAPIVersion = "1.1"

	// DefaultTokenURL is the OAuth2 token endpoint for app-only auth.
	DefaultTokenURL = "https://api.twitter.com/oauth2/token"

	// DefaultUserAgent is sent when no user agent is configured.
	DefaultUserAgent = "rest-dispatch/1.0"
)

// DefaultStreamingAPIs are the subdomains served as streams.
func DefaultStreamingAPIs() []string {
	return []string{"stream", "userstream", "sitestream"}
}

// Response headers.
const (
	// HeaderRateLimitReset carries the epoch second the rate limit resets.
	HeaderRateLimitReset = "X-Rate-Limit-Reset"

	// HeaderRetryAfter carries seconds to wait before retrying.
	HeaderRetryAfter = "Retry-After"

	// DefaultRateLimitWait applies when a rate limited response carries
	// neither header.
	DefaultRateLimitWait = time.Minute
)

// Output formats.
const (
	// FormatJSON is the JSON output format.
	FormatJSON = "json"

	// FormatYAML is the YAML output format.
	FormatYAML = "yaml"

	// FormatTable is the table output format.
	FormatTable = "table"
)

// Display limits.
const (
	// MaxTableCellWidth truncates long values in table output.
	MaxTableCellWidth = 60

	// DefaultMaxPages caps pages fetched by the CLI iterate command.
	DefaultMaxPages = 10
)
