package commands

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/fivetwenty-io/rest-dispatch/internal/constants"
	"github.com/fivetwenty-io/rest-dispatch/pkg/rest"
)

// NewStreamCommand creates the stream command.
func NewStreamCommand() *cobra.Command {
	var (
		flags       requestFlags
		method      string
		maxMessages int
	)

	cmd := &cobra.Command{
		Use:   "stream API PATH",
		Short: "Read messages from a streaming endpoint",
		Long: `Open a long-lived connection and print every message as it arrives.

The stream ends when the server closes it, after --max-messages messages or
on Ctrl-C. JSON output prints one compact message per line.`,
		Example: `  restcli stream stream statuses/filter --method POST -p track=golang
  restcli stream userstream user --max-messages 10`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			reqMethod, err := rest.ParseMethod(method)
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

			client, logger, cleanup, err := newClient(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			path := endpointPath(client, args[0], args[1])
			if !path.Streaming() {
				logger.Warn("API is not configured as a streaming API", map[string]interface{}{
					"api": args[0],
				})
			}

			stream, err := path.Request(reqMethod).Stream(cmd.Context(), reqArgs, opts)
			if err != nil {
				return err
			}
			defer stream.Close()

			format := outputFormat(cmd.OutOrStdout())

			for received := 0; maxMessages <= 0 || received < maxMessages; received++ {
				msg, err := stream.Next(cmd.Context())
				if errors.Is(err, io.EOF) {
					return nil
				}

				if err != nil {
					return fmt.Errorf("reading stream: %w", err)
				}

				err = renderMessage(cmd.OutOrStdout(), msg, format)
				if err != nil {
					return err
				}
			}

			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&method, "method", "X", string(rest.MethodGet), "request method")
	cmd.Flags().IntVarP(&maxMessages, "max-messages", "n", 0, "stop after this many messages (0 for no limit)")

	return cmd
}

func renderMessage(w io.Writer, msg *rest.Response, format string) error {
	if format == constants.FormatJSON {
		_, err := fmt.Fprintln(w, msg.String())

		return err
	}

	return renderResponse(w, msg, format, "")
}
