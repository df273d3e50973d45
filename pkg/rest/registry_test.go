package rest_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fivetwenty-io/rest-dispatch/pkg/rest"
)

func TestDefaultRegistry(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{rest.StrategyCursor, rest.StrategyMaxID, rest.StrategySinceID}, rest.DefaultRegistry.Names())

	for _, name := range []string{"cursor", "with_cursor", "max_id", "with_max_id", "since_id", "with_since_id"} {
		_, err := rest.DefaultRegistry.Lookup(name)
		require.NoError(t, err, name)
	}
}

func TestRegistry_UnknownStrategy(t *testing.T) {
	t.Parallel()

	registry := rest.NewRegistry()

	_, err := registry.Lookup("cursor")
	require.ErrorIs(t, err, rest.ErrUnknownStrategy)
	assert.Contains(t, err.Error(), `"cursor"`)

	iterator, err := registry.New("page", &pageInvoker{}, nil)
	require.ErrorIs(t, err, rest.ErrUnknownStrategy)
	assert.Nil(t, iterator)
}

func TestRegistry_Register(t *testing.T) {
	t.Parallel()

	registry := rest.NewRegistry()

	require.ErrorIs(t, registry.Register("", func(rest.Invoker, rest.Args, ...rest.IteratorOption) rest.PageIterator {
		return nil
	}), rest.ErrStrategyNameInvalid)
	require.ErrorIs(t, registry.Register("page", nil), rest.ErrStrategyNameInvalid)

	err := registry.Register("single", func(invoker rest.Invoker, args rest.Args, opts ...rest.IteratorOption) rest.PageIterator {
		return rest.NewCursorIterator(invoker, args, opts...)
	})
	require.NoError(t, err)

	invoker := &pageInvoker{bodies: []string{`{"next_cursor":0}`}}

	iterator, err := registry.New("single", invoker, rest.Args{"q": "x"})
	require.NoError(t, err)

	_, err = iterator.NextPage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "x", invoker.args[0]["q"])
	assert.Equal(t, []string{"single"}, registry.Names())
}
