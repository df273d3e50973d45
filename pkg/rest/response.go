package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"
)

// Response is the result of one transport call.
type Response struct {
	StatusCode int
	Header     http.Header
	URL        string
	Body       []byte
}

// Decode unmarshals the JSON body into v.
func (r *Response) Decode(v any) error {
	err := json.Unmarshal(r.Body, v)
	if err != nil {
		return fmt.Errorf("decoding response from %s: %w", r.URL, err)
	}

	return nil
}

// Get returns the value at a gjson path in the body.
func (r *Response) Get(path string) gjson.Result {
	if r == nil {
		return gjson.Result{}
	}

	return gjson.GetBytes(r.Body, path)
}

// root returns the parsed body, or the value at key when key is not empty.
func (r *Response) root(key string) gjson.Result {
	if r == nil {
		return gjson.Result{}
	}

	if key == "" {
		return gjson.ParseBytes(r.Body)
	}

	return r.Get(key)
}

// IsEmpty reports whether the body carries no data: missing, null, an empty
// array or an empty object.
func (r *Response) IsEmpty() bool {
	if r == nil || len(r.Body) == 0 {
		return true
	}

	result := gjson.ParseBytes(r.Body)

	switch {
	case result.Type == gjson.Null:
		return true
	case result.IsArray():
		return len(result.Array()) == 0
	case result.IsObject():
		return len(result.Map()) == 0
	default:
		return false
	}
}

// Items returns the elements of the array found at key (or at the root when
// key is empty). A non-array value yields nil.
func (r *Response) Items(key string) []gjson.Result {
	result := r.root(key)
	if !result.IsArray() {
		return nil
	}

	return result.Array()
}

// NextCursor returns the numeric cursor stored in field, if present.
func (r *Response) NextCursor(field string) (int64, bool) {
	result := r.Get(field)
	if !result.Exists() || result.Type == gjson.Null {
		return 0, false
	}

	return result.Int(), true
}

// String returns the body as text.
func (r *Response) String() string {
	if r == nil {
		return ""
	}

	return string(r.Body)
}

// ResponseStream is a lazy sequence of responses read from a long-lived
// connection. Next returns io.EOF once the stream ends.
type ResponseStream interface {
	Next(ctx context.Context) (*Response, error)
	Close() error
}
