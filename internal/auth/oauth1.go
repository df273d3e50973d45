package auth

import (
	"crypto/hmac"
	"crypto/sha1" //nolint:gosec // OAuth1 mandates HMAC-SHA1
	"encoding/base64"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fivetwenty-io/rest-dispatch/pkg/rest"
)

const (
	oauthVersion         = "1.0"
	oauthSignatureMethod = "HMAC-SHA1"
)

// OAuth1Config holds user-context credentials.
type OAuth1Config struct {
	ConsumerKey       string
	ConsumerSecret    string
	AccessToken       string
	AccessTokenSecret string
}

// OAuth1Signer signs requests with OAuth 1.0a HMAC-SHA1.
type OAuth1Signer struct {
	config OAuth1Config
	nonce  func() string
	now    func() time.Time
}

// NewOAuth1Signer creates a signer for config.
func NewOAuth1Signer(config OAuth1Config) *OAuth1Signer {
	return &OAuth1Signer{
		config: config,
		nonce: func() string {
			return strings.ReplaceAll(uuid.NewString(), "-", "")
		},
		now: time.Now,
	}
}

// Sign sets the Authorization header. Query parameters and form parameters
// are part of the signature unless the call skips parameters (file
// uploads), in which case only the oauth_* values are signed.
func (s *OAuth1Signer) Sign(req *http.Request, call *rest.Call) error {
	oauth := map[string]string{
		"oauth_consumer_key":     s.config.ConsumerKey,
		"oauth_nonce":            s.nonce(),
		"oauth_signature_method": oauthSignatureMethod,
		"oauth_timestamp":        strconv.FormatInt(s.now().Unix(), 10),
		"oauth_version":          oauthVersion,
	}

	if s.config.AccessToken != "" {
		oauth["oauth_token"] = s.config.AccessToken
	}

	params := url.Values{}

	if !call.SkipParams {
		for key, list := range req.URL.Query() {
			params[key] = append(params[key], list...)
		}

		for key, list := range call.Args.Form {
			params[key] = append(params[key], list...)
		}
	}

	for key, value := range oauth {
		params.Set(key, value)
	}

	oauth["oauth_signature"] = s.signature(req.Method, baseURL(req.URL), params)

	req.Header.Set("Authorization", authorizationHeader(oauth))

	return nil
}

func (s *OAuth1Signer) signature(method, base string, params url.Values) string {
	message := strings.ToUpper(method) + "&" + percentEncode(base) + "&" + percentEncode(normalizeParams(params))
	key := percentEncode(s.config.ConsumerSecret) + "&" + percentEncode(s.config.AccessTokenSecret)

	mac := hmac.New(sha1.New, []byte(key))
	mac.Write([]byte(message))

	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// normalizeParams encodes params sorted by encoded key, then value.
func normalizeParams(params url.Values) string {
	type pair struct{ key, value string }

	pairs := make([]pair, 0, len(params))

	for key, list := range params {
		for _, value := range list {
			pairs = append(pairs, pair{percentEncode(key), percentEncode(value)})
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].key != pairs[j].key {
			return pairs[i].key < pairs[j].key
		}

		return pairs[i].value < pairs[j].value
	})

	encoded := make([]string, 0, len(pairs))
	for _, p := range pairs {
		encoded = append(encoded, p.key+"="+p.value)
	}

	return strings.Join(encoded, "&")
}

func authorizationHeader(oauth map[string]string) string {
	keys := make([]string, 0, len(oauth))
	for key := range oauth {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, percentEncode(key)+`="`+percentEncode(oauth[key])+`"`)
	}

	return "OAuth " + strings.Join(parts, ", ")
}

// baseURL is the scheme, host and path of u with default ports removed.
func baseURL(u *url.URL) string {
	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Host)

	switch {
	case scheme == "http" && strings.HasSuffix(host, ":80"):
		host = strings.TrimSuffix(host, ":80")
	case scheme == "https" && strings.HasSuffix(host, ":443"):
		host = strings.TrimSuffix(host, ":443")
	}

	return scheme + "://" + host + u.EscapedPath()
}

// percentEncode applies RFC 3986 encoding: everything except unreserved
// characters is escaped and spaces become %20.
func percentEncode(value string) string {
	return strings.ReplaceAll(url.QueryEscape(value), "+", "%20")
}
