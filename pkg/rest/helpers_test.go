package rest_test

import (
	"context"
	"fmt"
	"sync"

	"github.com/fivetwenty-io/rest-dispatch/pkg/rest"
)

// MockLogger records log entries.
type MockLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

type logEntry struct {
	level  string
	msg    string
	fields map[string]interface{}
}

func (l *MockLogger) log(level, msg string, fields map[string]interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, logEntry{level: level, msg: msg, fields: fields})
}

func (l *MockLogger) Debug(msg string, fields map[string]interface{}) { l.log("debug", msg, fields) }
func (l *MockLogger) Info(msg string, fields map[string]interface{})  { l.log("info", msg, fields) }
func (l *MockLogger) Warn(msg string, fields map[string]interface{})  { l.log("warn", msg, fields) }
func (l *MockLogger) Error(msg string, fields map[string]interface{}) { l.log("error", msg, fields) }

func (l *MockLogger) Entries(level string) []logEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []logEntry

	for _, entry := range l.entries {
		if entry.level == level {
			out = append(out, entry)
		}
	}

	return out
}

// MockTransport answers calls with handler and records them.
type MockTransport struct {
	mu      sync.Mutex
	calls   []*rest.Call
	handler func(call *rest.Call) (*rest.Response, error)
	stream  rest.ResponseStream
}

func (m *MockTransport) Call(_ context.Context, call *rest.Call) (*rest.Response, error) {
	m.mu.Lock()
	m.calls = append(m.calls, call)
	handler := m.handler
	m.mu.Unlock()

	if handler == nil {
		return jsonResponse(call.URL, `{}`), nil
	}

	return handler(call)
}

func (m *MockTransport) OpenStream(_ context.Context, call *rest.Call) (rest.ResponseStream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, call)

	return m.stream, nil
}

func (m *MockTransport) Calls() []*rest.Call {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]*rest.Call(nil), m.calls...)
}

// MockResolver puts every argument in the query as its fmt form.
type MockResolver struct {
	skip bool
	err  error
}

func (m *MockResolver) Resolve(method rest.Method, args rest.Args) (rest.WireArgs, bool, error) {
	if m.err != nil {
		return rest.WireArgs{}, false, m.err
	}

	values := map[string][]string{}
	for key, value := range args {
		values[key] = []string{fmt.Sprint(value)}
	}

	if method.HasBody() {
		return rest.WireArgs{Form: values}, m.skip, nil
	}

	return rest.WireArgs{Query: values}, m.skip, nil
}

// pageInvoker serves a fixed sequence of bodies and records the arguments
// of every dispatch.
type pageInvoker struct {
	bodies []string
	args   []rest.Args
	opts   []rest.CallOptions
	errAt  map[int]error
}

func (p *pageInvoker) Dispatch(_ context.Context, args rest.Args, opts rest.CallOptions) (*rest.Response, error) {
	index := len(p.args)
	p.args = append(p.args, args)
	p.opts = append(p.opts, opts)

	if err, ok := p.errAt[index]; ok {
		return nil, err
	}

	if index >= len(p.bodies) {
		return jsonResponse("https://api.example.com/list.json", `[]`), nil
	}

	return jsonResponse("https://api.example.com/list.json", p.bodies[index]), nil
}

func jsonResponse(url, body string) *rest.Response {
	return &rest.Response{
		StatusCode: 200,
		URL:        url,
		Body:       []byte(body),
	}
}
