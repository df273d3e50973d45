package commands

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fivetwenty-io/rest-dispatch/pkg/rest"
	"github.com/fivetwenty-io/rest-dispatch/pkg/restclient"
)

// Static errors for err113 compliance.
var (
	ErrInvalidKeyValue = errors.New("expected KEY=VALUE")
)

// requestFlags are the flags shared by every command that sends a request.
type requestFlags struct {
	params     []string
	files      []string
	headers    []string
	noSuffix   bool
	skipParams bool
	json       bool
}

func (f *requestFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringArrayVarP(&f.params, "param", "p", nil, "request parameter KEY=VALUE (repeatable)")
	cmd.Flags().StringArrayVar(&f.files, "file", nil, "upload a file as FIELD=PATH (repeatable)")
	cmd.Flags().StringArrayVarP(&f.headers, "header", "H", nil, "extra header NAME=VALUE (repeatable)")
	cmd.Flags().BoolVar(&f.noSuffix, "no-suffix", false, "do not append the endpoint suffix")
	cmd.Flags().BoolVar(&f.skipParams, "skip-params", false, "exclude parameters from the OAuth1 signature")
	cmd.Flags().BoolVar(&f.json, "json", false, "fail when the response is not valid JSON")
}

// args builds the request arguments. Files are opened here; the returned
// function closes them.
func (f *requestFlags) args() (rest.Args, func(), error) {
	args := rest.Args{}

	for _, param := range f.params {
		key, value, err := parseKeyValue(param)
		if err != nil {
			return nil, nil, err
		}

		args[key] = value
	}

	var opened []*os.File

	closeAll := func() {
		for _, file := range opened {
			_ = file.Close()
		}
	}

	for _, spec := range f.files {
		field, path, err := parseKeyValue(spec)
		if err != nil {
			closeAll()

			return nil, nil, err
		}

		// #nosec G304 -- the user names the file to upload
		file, err := os.Open(path)
		if err != nil {
			closeAll()

			return nil, nil, fmt.Errorf("failed to open %s: %w", path, err)
		}

		opened = append(opened, file)
		args[field] = io.Reader(file)
	}

	return args, closeAll, nil
}

func (f *requestFlags) callOptions() (rest.CallOptions, error) {
	opts := rest.CallOptions{JSON: f.json}

	if f.noSuffix {
		opts.Suffix = rest.String("")
	}

	if f.skipParams {
		opts.SkipParams = rest.Bool(true)
	}

	if len(f.headers) > 0 {
		opts.Headers = http.Header{}

		for _, header := range f.headers {
			name, value, err := parseKeyValue(header)
			if err != nil {
				return rest.CallOptions{}, err
			}

			opts.Headers.Add(name, value)
		}
	}

	return opts, nil
}

// endpointPath resolves the API and PATH arguments against the client.
func endpointPath(client *restclient.Client, api, endpoint string) rest.Path {
	return client.Subdomain(api).Path(endpoint)
}

func parseKeyValue(pair string) (string, string, error) {
	key, value, ok := strings.Cut(pair, "=")
	if !ok || strings.TrimSpace(key) == "" {
		return "", "", fmt.Errorf("%w, got %q", ErrInvalidKeyValue, pair)
	}

	return strings.TrimSpace(key), value, nil
}
