package commands

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// Static errors for err113 compliance.
var (
	ErrNoCredentials = errors.New("no credentials given")
)

type loginOptions struct {
	bearer            bool
	consumerKey       string
	consumerSecret    string
	accessToken       string
	accessTokenSecret string
	verify            bool
}

// NewLoginCommand creates the login command.
func NewLoginCommand() *cobra.Command {
	opts := &loginOptions{}

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store API credentials",
		Long: `Store API credentials in the configuration file.

With --bearer a bearer token is requested. Otherwise the consumer key and
secret are stored, together with the access token and secret for user
context (OAuth1) requests; without an access token requests are sent with
an app-only OAuth2 token. Secrets not given as flags are prompted for.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.bearer, "bearer", false, "store a bearer token")
	cmd.Flags().StringVar(&opts.consumerKey, "consumer-key", "", "consumer (API) key")
	cmd.Flags().StringVar(&opts.consumerSecret, "consumer-secret", "", "consumer (API) secret")
	cmd.Flags().StringVar(&opts.accessToken, "access-token", "", "user access token")
	cmd.Flags().StringVar(&opts.accessTokenSecret, "access-token-secret", "", "user access token secret")
	cmd.Flags().BoolVar(&opts.verify, "verify", false, "verify the credentials after storing them")

	return cmd
}

func runLogin(cmd *cobra.Command, opts *loginOptions) error {
	config := loadConfig()
	reader := bufio.NewReader(cmd.InOrStdin())
	out := cmd.OutOrStdout()

	if opts.bearer {
		token, err := promptSecret(out, reader, "Bearer token: ")
		if err != nil {
			return err
		}

		if token == "" {
			return ErrNoCredentials
		}

		config.BearerToken = token
	} else {
		var err error

		if opts.consumerKey == "" {
			opts.consumerKey, err = promptLine(out, reader, "Consumer key: ")
			if err != nil {
				return err
			}
		}

		if opts.consumerKey == "" {
			return ErrNoCredentials
		}

		if opts.consumerSecret == "" {
			opts.consumerSecret, err = promptSecret(out, reader, "Consumer secret: ")
			if err != nil {
				return err
			}
		}

		if opts.accessToken != "" && opts.accessTokenSecret == "" {
			opts.accessTokenSecret, err = promptSecret(out, reader, "Access token secret: ")
			if err != nil {
				return err
			}
		}

		config.BearerToken = ""
		config.ConsumerKey = opts.consumerKey
		config.ConsumerSecret = opts.consumerSecret
		config.AccessToken = opts.accessToken
		config.AccessTokenSecret = opts.accessTokenSecret
	}

	config.AppToken = ""
	config.AppTokenExpiresAt = ""

	err := saveConfigStruct(config)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintln(out, "Credentials saved")

	if !opts.verify {
		return nil
	}

	client, _, cleanup, err := newClient(cmd.Context())
	if err != nil {
		return err
	}
	defer cleanup()

	resp, err := client.VerifyCredentials(cmd.Context())
	if err != nil {
		return err
	}

	if name := resp.Get("screen_name").String(); name != "" {
		_, _ = fmt.Fprintf(out, "Authenticated as %s\n", name)
	} else {
		_, _ = fmt.Fprintln(out, "Credentials verified")
	}

	return nil
}

func promptLine(out io.Writer, reader *bufio.Reader, prompt string) (string, error) {
	_, _ = fmt.Fprint(out, prompt)

	line, err := reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read input: %w", err)
	}

	return strings.TrimSpace(line), nil
}

// promptSecret reads without echo when stdin is a terminal.
func promptSecret(out io.Writer, reader *bufio.Reader, prompt string) (string, error) {
	fd := int(os.Stdin.Fd()) //nolint:gosec // fd fits in int
	if !term.IsTerminal(fd) {
		return promptLine(out, reader, prompt)
	}

	_, _ = fmt.Fprint(out, prompt)

	secret, err := term.ReadPassword(fd)

	_, _ = fmt.Fprintln(out)

	if err != nil {
		return "", fmt.Errorf("failed to read secret: %w", err)
	}

	return strings.TrimSpace(string(secret)), nil
}
