package commands

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/fivetwenty-io/rest-dispatch/internal/constants"
	"github.com/fivetwenty-io/rest-dispatch/pkg/rest"
)

// NewIterateCommand creates the iterate command.
func NewIterateCommand() *cobra.Command {
	var (
		flags       requestFlags
		strategy    string
		maxPages    int
		force       bool
		fillGaps    bool
		follow      bool
		interval    time.Duration
		itemsKey    string
		idField     string
		cursorField string
	)

	cmd := &cobra.Command{
		Use:   "iterate API PATH",
		Short: "Walk a paginated GET endpoint",
		Long: `Walk a paginated GET endpoint and print every page.

Strategies:
  cursor    follow the next_cursor field until it is 0
  max_id    walk backwards in time below the smallest id seen
  since_id  walk forwards in time above the largest id seen

With --follow, a since_id iteration keeps polling every --interval once it
has caught up.`,
		Example: `  restcli iterate api followers/ids -p screen_name=golang
  restcli iterate api statuses/user_timeline --strategy max_id -p count=200
  restcli iterate api search/tweets --strategy since_id --items-key statuses --follow`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			reqArgs, closeFiles, err := flags.args()
			if err != nil {
				return err
			}
			defer closeFiles()

			callOpts, err := flags.callOptions()
			if err != nil {
				return err
			}

			client, logger, cleanup, err := newClient(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			iterator, err := endpointPath(client, args[0], args[1]).Get().Iterate(strategy, reqArgs,
				rest.WithForce(force || follow),
				rest.WithFillGaps(fillGaps),
				rest.WithItemsKey(itemsKey),
				rest.WithIDField(idField),
				rest.WithCursorField(cursorField),
				rest.WithCallOptions(callOpts),
			)
			if err != nil {
				return fmt.Errorf("%w (available: %s)", err, strings.Join(client.Registry().Names(), ", "))
			}

			format := outputFormat(cmd.OutOrStdout())

			for page := 0; maxPages <= 0 || page < maxPages; page++ {
				resp, err := iterator.NextPage(cmd.Context())
				if errors.Is(err, rest.ErrNoMorePages) {
					break
				}

				if err != nil {
					return fmt.Errorf("fetching page %d: %w", page+1, err)
				}

				err = renderResponse(cmd.OutOrStdout(), resp, format, itemsKey)
				if err != nil {
					return err
				}

				if iterator.Done() {
					break
				}

				if idler, ok := iterator.(interface{ Idle() bool }); ok && idler.Idle() {
					if !follow {
						break
					}

					logger.Info("No new items, waiting", map[string]interface{}{
						"interval": interval.String(),
					})

					err = rest.ContextSleep(cmd.Context(), interval)
					if err != nil {
						return err
					}
				}
			}

			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&strategy, "strategy", "s", rest.StrategyCursor, "pagination strategy (cursor, max_id, since_id)")
	cmd.Flags().IntVar(&maxPages, "max-pages", constants.DefaultMaxPages, "stop after this many pages (0 for no limit)")
	cmd.Flags().BoolVar(&force, "force", false, "keep a since_id iterator open on empty pages")
	cmd.Flags().BoolVar(&fillGaps, "fill-gaps", false, "fetch items missed between since_id pages")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "keep polling a since_id endpoint")
	cmd.Flags().DurationVar(&interval, "interval", time.Minute, "poll interval with --follow")
	cmd.Flags().StringVar(&itemsKey, "items-key", "", "response field holding the items")
	cmd.Flags().StringVar(&idField, "id-field", rest.DefaultIDField, "item field holding the numeric id")
	cmd.Flags().StringVar(&cursorField, "cursor-field", rest.DefaultCursorField, "response field holding the next cursor")

	return cmd
}
