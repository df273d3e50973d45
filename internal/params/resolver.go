// Package params converts call arguments into wire parameters.
package params

import (
	"fmt"
	"io"
	"net/url"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/google/go-querystring/query"

	"github.com/fivetwenty-io/rest-dispatch/pkg/rest"
)

// Resolver implements rest.ParameterResolver.
//
// Conversion rules:
//   - bool becomes "true" or "false"
//   - integers and floats become their decimal form
//   - slices and arrays are joined with commas
//   - strings and fmt.Stringer values are sent as is
//   - io.Reader values are uploaded as files and force skip-params
//   - nil values are dropped
//   - structs (or pointers to structs) are expanded with go-querystring
//
// Any other kind fails with rest.ErrUnsupportedParam.
type Resolver struct{}

// NewResolver creates a Resolver.
func NewResolver() *Resolver {
	return &Resolver{}
}

// Resolve implements rest.ParameterResolver. The output only depends on the
// input, so resolving the same arguments twice yields equal results.
func (r *Resolver) Resolve(method rest.Method, args rest.Args) (rest.WireArgs, bool, error) {
	values := url.Values{}
	files := map[string]io.Reader{}

	for _, key := range sortedKeys(args) {
		value := args[key]

		if reader, ok := value.(io.Reader); ok {
			files[key] = reader

			continue
		}

		err := addValue(values, key, value)
		if err != nil {
			return rest.WireArgs{}, false, err
		}
	}

	wire := rest.WireArgs{}
	if method.HasBody() {
		wire.Form = values
	} else {
		wire.Query = values
	}

	skipParams := len(files) > 0
	if skipParams {
		wire.Files = files
	}

	return wire, skipParams, nil
}

// FromStruct flattens a struct tagged with `url:"..."` into Args, so typed
// request structs can be passed wherever Args are expected.
func FromStruct(v any) (rest.Args, error) {
	values, err := query.Values(v)
	if err != nil {
		return nil, fmt.Errorf("encoding %T: %w", v, err)
	}

	args := make(rest.Args, len(values))
	for key, list := range values {
		args[key] = strings.Join(list, ",")
	}

	return args, nil
}

func sortedKeys(args rest.Args) []string {
	keys := make([]string, 0, len(args))
	for key := range args {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	return keys
}

func addValue(values url.Values, key string, value any) error {
	if value == nil {
		return nil
	}

	if text, ok := convert(value); ok {
		values.Set(key, text)

		return nil
	}

	rv := reflect.ValueOf(value)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}

		rv = rv.Elem()
	}

	if text, ok := convert(rv.Interface()); ok {
		values.Set(key, text)

		return nil
	}

	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		parts := make([]string, 0, rv.Len())

		for i := range rv.Len() {
			text, ok := convert(rv.Index(i).Interface())
			if !ok {
				return fmt.Errorf("%w: %s contains %s", rest.ErrUnsupportedParam, key, rv.Index(i).Type())
			}

			parts = append(parts, text)
		}

		values.Set(key, strings.Join(parts, ","))

		return nil
	case reflect.Struct:
		nested, err := query.Values(rv.Interface())
		if err != nil {
			return fmt.Errorf("%w: %s: %w", rest.ErrUnsupportedParam, key, err)
		}

		for name, list := range nested {
			values[name] = append(values[name], list...)
		}

		return nil
	default:
		return fmt.Errorf("%w: %s is %s", rest.ErrUnsupportedParam, key, rv.Type())
	}
}

func convert(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case bool:
		return strconv.FormatBool(v), true
	case int:
		return strconv.Itoa(v), true
	case int8:
		return strconv.FormatInt(int64(v), 10), true
	case int16:
		return strconv.FormatInt(int64(v), 10), true
	case int32:
		return strconv.FormatInt(int64(v), 10), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case uint:
		return strconv.FormatUint(uint64(v), 10), true
	case uint8:
		return strconv.FormatUint(uint64(v), 10), true
	case uint16:
		return strconv.FormatUint(uint64(v), 10), true
	case uint32:
		return strconv.FormatUint(uint64(v), 10), true
	case uint64:
		return strconv.FormatUint(v, 10), true
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case fmt.Stringer:
		return v.String(), true
	default:
		return "", false
	}
}
