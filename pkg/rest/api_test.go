package rest_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fivetwenty-io/rest-dispatch/pkg/rest"
)

func newTestAPI(t *testing.T) *rest.API {
	t.Helper()

	api, err := rest.NewAPI(rest.APIConfig{
		BaseURL:       "https://{api}.example.com/{version}",
		Version:       "1.1",
		StreamingAPIs: []string{"stream"},
		Resolver:      &MockResolver{},
		Transport:     &MockTransport{},
	})
	require.NoError(t, err)

	return api
}

func TestNewAPI_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  rest.APIConfig
		want error
	}{
		{"missing base URL", rest.APIConfig{Resolver: &MockResolver{}, Transport: &MockTransport{}}, rest.ErrBaseURLRequired},
		{"missing resolver", rest.APIConfig{BaseURL: "https://x", Transport: &MockTransport{}}, rest.ErrResolverRequired},
		{"missing transport", rest.APIConfig{BaseURL: "https://x", Resolver: &MockResolver{}}, rest.ErrTransportRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := rest.NewAPI(tt.cfg)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestAPI_Paths(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t)

	assert.Equal(t, "https://api.example.com/1.1/statuses/show/20.json",
		api.Subdomain("api").Path("statuses", "show", "20").URL())
	assert.Equal(t, "https://api.example.com/1.1/statuses/show/20.json",
		api.Subdomain("api").Path("statuses/show/", "/20").URL())
	assert.Equal(t, "https://upload.example.com/2/media/upload.json",
		api.SubdomainVersion("upload", "2").Path("media", "upload").URL())

	assert.True(t, api.Subdomain("stream").Streaming())
	assert.False(t, api.Subdomain("api").Streaming())
	assert.Same(t, rest.DefaultRegistry, api.Registry())
}

func TestAPI_PathsAreImmutable(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t)

	statuses := api.Subdomain("api").Path("statuses")
	show := statuses.Path("show")
	update := statuses.Path("update")

	assert.Equal(t, "https://api.example.com/1.1/statuses.json", statuses.URL())
	assert.Equal(t, "https://api.example.com/1.1/statuses/show.json", show.URL())
	assert.Equal(t, "https://api.example.com/1.1/statuses/update.json", update.URL())
}

func TestAPI_Requests(t *testing.T) {
	t.Parallel()

	path := newTestAPI(t).Subdomain("api").Path("friendships")

	tests := []struct {
		invoker *rest.RequestInvoker
		method  rest.Method
	}{
		{path.Get(), rest.MethodGet},
		{path.Post(), rest.MethodPost},
		{path.Put(), rest.MethodPut},
		{path.Patch(), rest.MethodPatch},
		{path.Delete(), rest.MethodDelete},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.method, tt.invoker.Operation().Method)
		assert.Equal(t, "https://api.example.com/1.1/friendships.json", tt.invoker.Operation().URL(nil))
	}
}

func TestAPI_CustomSuffixAndRegistry(t *testing.T) {
	t.Parallel()

	registry := rest.NewRegistry()

	api, err := rest.NewAPI(rest.APIConfig{
		BaseURL:   "https://example.com/{version}/",
		Version:   "v2",
		Suffix:    ".xml",
		Resolver:  &MockResolver{},
		Transport: &MockTransport{},
		Registry:  registry,
	})
	require.NoError(t, err)

	assert.Equal(t, "https://example.com/v2/users.xml", api.Subdomain("ignored").Path("users").URL())

	_, err = api.Subdomain("api").Path("users").Get().Iterate(rest.StrategyCursor, nil)
	require.ErrorIs(t, err, rest.ErrUnknownStrategy)
}
