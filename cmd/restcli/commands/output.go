package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/viper"
	"github.com/tidwall/gjson"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/fivetwenty-io/rest-dispatch/internal/constants"
	"github.com/fivetwenty-io/rest-dispatch/pkg/rest"
)

// outputFormat returns the configured output format. Without one, terminals
// get a table and pipes get JSON.
func outputFormat(w io.Writer) string {
	if format := viper.GetString("output"); format != "" {
		return format
	}

	if file, ok := w.(*os.File); ok && term.IsTerminal(int(file.Fd())) { //nolint:gosec // fd fits in int
		return constants.FormatTable
	}

	return constants.FormatJSON
}

// renderResponse writes resp in format. itemsKey selects the array rendered
// as table rows.
func renderResponse(w io.Writer, resp *rest.Response, format, itemsKey string) error {
	if !gjson.ValidBytes(resp.Body) {
		_, err := fmt.Fprintln(w, resp.String())

		return err
	}

	switch format {
	case constants.FormatJSON:
		return renderJSON(w, resp.Body)
	case constants.FormatYAML:
		return renderYAML(w, resp.Body)
	default:
		return renderTable(w, resp, itemsKey)
	}
}

func renderJSON(w io.Writer, body []byte) error {
	var buf bytes.Buffer

	err := json.Indent(&buf, body, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to format JSON: %w", err)
	}

	buf.WriteByte('\n')

	_, err = buf.WriteTo(w)

	return err
}

func renderYAML(w io.Writer, body []byte) error {
	var value interface{}

	err := json.Unmarshal(body, &value)
	if err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return yaml.NewEncoder(w).Encode(value)
}

func renderTable(w io.Writer, resp *rest.Response, itemsKey string) error {
	table := tablewriter.NewWriter(w)

	items := resp.Items(itemsKey)

	switch {
	case len(items) > 0 && items[0].IsObject():
		columns := tableColumns(items)
		table.Header(toAny(columns)...)

		for _, item := range items {
			row := make([]string, 0, len(columns))
			for _, column := range columns {
				row = append(row, formatCell(item.Get(gjson.Escape(column))))
			}

			_ = table.Append(row)
		}
	case len(items) > 0:
		table.Header("#", "Value")

		for i, item := range items {
			_ = table.Append(fmt.Sprint(i), formatCell(item))
		}
	default:
		table.Header("Property", "Value")

		resp.Get("@this").ForEach(func(key, value gjson.Result) bool {
			_ = table.Append(key.String(), formatCell(value))

			return true
		})
	}

	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}

	return nil
}

// tableColumns lists the scalar fields of the first item, with "id" first
// when present.
func tableColumns(items []gjson.Result) []string {
	var columns []string

	items[0].ForEach(func(key, value gjson.Result) bool {
		if !value.IsObject() && !value.IsArray() {
			columns = append(columns, key.String())
		}

		return true
	})

	sort.SliceStable(columns, func(i, j int) bool {
		if columns[i] == rest.DefaultIDField || columns[j] == rest.DefaultIDField {
			return columns[i] == rest.DefaultIDField
		}

		return columns[i] < columns[j]
	})

	return columns
}

func formatCell(value gjson.Result) string {
	text := value.String()
	if value.IsObject() || value.IsArray() {
		text = value.Raw
	}

	text = strings.Join(strings.Fields(text), " ")

	if runes := []rune(text); len(runes) > constants.MaxTableCellWidth {
		return string(runes[:constants.MaxTableCellWidth-3]) + "..."
	}

	return text
}

func toAny(values []string) []any {
	out := make([]any, len(values))
	for i, value := range values {
		out[i] = value
	}

	return out
}
