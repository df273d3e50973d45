package commands

import (
	"fmt"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/fivetwenty-io/rest-dispatch/pkg/rest"
)

// NewWhoAmICommand creates the whoami command.
func NewWhoAmICommand() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the authenticated account",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, cleanup, err := newClient(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			resp, err := client.VerifyCredentials(cmd.Context())
			if err != nil {
				if rest.IsUnauthorized(err) {
					return fmt.Errorf("%w; run 'restcli login' to store credentials", err)
				}

				return err
			}

			return renderResponse(cmd.OutOrStdout(), resp, outputFormat(cmd.OutOrStdout()), "")
		},
	}
}

// NewStrategiesCommand creates the strategies command.
func NewStrategiesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "strategies",
		Short: "List pagination strategies",
		RunE: func(cmd *cobra.Command, args []string) error {
			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.Header("Strategy", "Alias", "Parameter")

			for _, name := range rest.DefaultRegistry.Names() {
				_ = table.Append(name, "with_"+name, strategyParameter(name))
			}

			if err := table.Render(); err != nil {
				return fmt.Errorf("failed to render table: %w", err)
			}

			return nil
		},
	}
}

func strategyParameter(name string) string {
	switch name {
	case rest.StrategyCursor:
		return rest.ParamCursor
	case rest.StrategyMaxID:
		return rest.ParamMaxID
	case rest.StrategySinceID:
		return rest.ParamSinceID
	default:
		return "-"
	}
}
