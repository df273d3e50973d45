package http

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"sort"

	"github.com/fivetwenty-io/rest-dispatch/pkg/rest"
)

const contentTypeForm = "application/x-www-form-urlencoded"

// encodeBody renders the form and file arguments of call. Calls with files
// are sent as multipart/form-data; other calls with form values are
// url-encoded. The body is buffered so the request can be replayed.
func encodeBody(call *rest.Call) ([]byte, string, error) {
	if len(call.Args.Files) > 0 {
		return encodeMultipart(call)
	}

	if len(call.Args.Form) > 0 {
		return []byte(call.Args.Form.Encode()), contentTypeForm, nil
	}

	return nil, "", nil
}

func encodeMultipart(call *rest.Call) ([]byte, string, error) {
	var buf bytes.Buffer

	writer := multipart.NewWriter(&buf)

	for _, key := range sortedKeys(call.Args.Form) {
		for _, value := range call.Args.Form[key] {
			err := writer.WriteField(key, value)
			if err != nil {
				return nil, "", fmt.Errorf("%w: writing field %s: %w", rest.ErrTransport, key, err)
			}
		}
	}

	names := make([]string, 0, len(call.Args.Files))
	for name := range call.Args.Files {
		names = append(names, name)
	}

	sort.Strings(names)

	for _, name := range names {
		err := writeFile(writer, name, call.Args.Files[name])
		if err != nil {
			return nil, "", err
		}
	}

	err := writer.Close()
	if err != nil {
		return nil, "", fmt.Errorf("%w: closing multipart body: %w", rest.ErrTransport, err)
	}

	return buf.Bytes(), writer.FormDataContentType(), nil
}

func writeFile(writer *multipart.Writer, name string, reader io.Reader) error {
	// A seekable reader is rewound so that retried calls upload it again.
	if seeker, ok := reader.(io.Seeker); ok {
		_, err := seeker.Seek(0, io.SeekStart)
		if err != nil {
			return fmt.Errorf("%w: rewinding %s: %w", rest.ErrTransport, name, err)
		}
	}

	part, err := writer.CreateFormFile(name, fileName(name, reader))
	if err != nil {
		return fmt.Errorf("%w: creating part %s: %w", rest.ErrTransport, name, err)
	}

	_, err = io.Copy(part, reader)
	if err != nil {
		return fmt.Errorf("%w: copying %s: %w", rest.ErrTransport, name, err)
	}

	return nil
}

func fileName(field string, reader io.Reader) string {
	if named, ok := reader.(interface{ Name() string }); ok {
		return filepath.Base(named.Name())
	}

	return field
}

func sortedKeys(values map[string][]string) []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	return keys
}
