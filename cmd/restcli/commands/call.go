package commands

import (
	"fmt"
	"sort"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/fivetwenty-io/rest-dispatch/pkg/rest"
)

// NewCallCommand creates the call command.
func NewCallCommand() *cobra.Command {
	var (
		flags    requestFlags
		itemsKey string
		dryRun   bool
	)

	cmd := &cobra.Command{
		Use:   "call METHOD API PATH",
		Short: "Send a single request",
		Long: `Send a single request to PATH on the named API.

API is substituted into the {api} placeholder of the base URL, PATH is joined
below it and the endpoint suffix is appended.`,
		Example: `  restcli call GET api statuses/show/20
  restcli call POST api statuses/update -p status="hello"
  restcli call POST upload media/upload --file media=./cat.png`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			method, err := rest.ParseMethod(args[0])
			if err != nil {
				return err
			}

			reqArgs, closeFiles, err := flags.args()
			if err != nil {
				return err
			}
			defer closeFiles()

			opts, err := flags.callOptions()
			if err != nil {
				return err
			}

			client, _, cleanup, err := newClient(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			invoker := endpointPath(client, args[1], args[2]).Request(method)

			if dryRun {
				call, err := invoker.Build(reqArgs, opts)
				if err != nil {
					return err
				}

				return displayCall(cmd, call)
			}

			resp, err := invoker.Dispatch(cmd.Context(), reqArgs, opts)
			if err != nil {
				return fmt.Errorf("%s failed: %w", invoker.Operation(), err)
			}

			return renderResponse(cmd.OutOrStdout(), resp, outputFormat(cmd.OutOrStdout()), itemsKey)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&itemsKey, "items-key", "", "response field holding the rows shown in table output")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the resolved request without sending it")

	return cmd
}

func displayCall(cmd *cobra.Command, call *rest.Call) error {
	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.Header("Property", "Value")

	_ = table.Append("Method", string(call.Method))
	_ = table.Append("URL", call.URL)
	_ = table.Append("Skip Params", fmt.Sprint(call.SkipParams))

	for _, key := range sortedValueKeys(call.Args.Query) {
		_ = table.Append("Query "+key, call.Args.Query.Get(key))
	}

	for _, key := range sortedValueKeys(call.Args.Form) {
		_ = table.Append("Form "+key, call.Args.Form.Get(key))
	}

	files := make([]string, 0, len(call.Args.Files))
	for field := range call.Args.Files {
		files = append(files, field)
	}

	sort.Strings(files)

	for _, field := range files {
		_ = table.Append("File", field)
	}

	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}

	return nil
}

func sortedValueKeys(values map[string][]string) []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	return keys
}
