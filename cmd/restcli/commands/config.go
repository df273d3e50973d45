package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/fivetwenty-io/rest-dispatch/internal/constants"
)

// ConfigDirName is the directory below $HOME holding config.yml.
const ConfigDirName = ".restcli"

// Static errors for err113 compliance.
var (
	ErrUnknownConfigKey = errors.New("unknown configuration key")
	ErrInvalidValue     = errors.New("invalid configuration value")
)

// Config represents the CLI configuration.
type Config struct {
	BaseURL    string `json:"base_url,omitempty"    yaml:"base_url,omitempty"`
	APIVersion string `json:"api_version,omitempty" yaml:"api_version,omitempty"`

	ConsumerKey       string `json:"consumer_key,omitempty"        yaml:"consumer_key,omitempty"`
	ConsumerSecret    string `json:"consumer_secret,omitempty"     yaml:"consumer_secret,omitempty"`
	AccessToken       string `json:"access_token,omitempty"        yaml:"access_token,omitempty"`
	AccessTokenSecret string `json:"access_token_secret,omitempty" yaml:"access_token_secret,omitempty"`
	BearerToken       string `json:"bearer_token,omitempty"        yaml:"bearer_token,omitempty"`
	TokenURL          string `json:"token_url,omitempty"           yaml:"token_url,omitempty"`

	Output     string  `json:"output,omitempty"      yaml:"output,omitempty"`
	Timeout    string  `json:"timeout,omitempty"     yaml:"timeout,omitempty"`
	RateLimit  float64 `json:"rate_limit,omitempty"  yaml:"rate_limit,omitempty"`
	Cache      string  `json:"cache,omitempty"       yaml:"cache,omitempty"`
	CacheTTL   string  `json:"cache_ttl,omitempty"   yaml:"cache_ttl,omitempty"`
	NATSURL    string  `json:"nats_url,omitempty"    yaml:"nats_url,omitempty"`
	NATSBucket string  `json:"nats_bucket,omitempty" yaml:"nats_bucket,omitempty"`

	AppToken          string `json:"app_token,omitempty"            yaml:"app_token,omitempty"`
	AppTokenExpiresAt string `json:"app_token_expires_at,omitempty" yaml:"app_token_expires_at,omitempty"`
}

type configField struct {
	get func(*Config) string
	set func(*Config, string) error
}

// configFields maps config keys to accessors. Keys match the viper keys and
// the RESTCLI_* environment variables.
func configFields() map[string]configField {
	text := func(ptr func(*Config) *string) configField {
		return configField{
			get: func(c *Config) string { return *ptr(c) },
			set: func(c *Config, value string) error {
				*ptr(c) = value

				return nil
			},
		}
	}

	duration := func(ptr func(*Config) *string) configField {
		return configField{
			get: func(c *Config) string { return *ptr(c) },
			set: func(c *Config, value string) error {
				if value != "" {
					if _, err := time.ParseDuration(value); err != nil {
						return fmt.Errorf("%w: %q is not a duration: %w", ErrInvalidValue, value, err)
					}
				}

				*ptr(c) = value

				return nil
			},
		}
	}

	return map[string]configField{
		"base_url":            text(func(c *Config) *string { return &c.BaseURL }),
		"api_version":         text(func(c *Config) *string { return &c.APIVersion }),
		"consumer_key":        text(func(c *Config) *string { return &c.ConsumerKey }),
		"consumer_secret":     text(func(c *Config) *string { return &c.ConsumerSecret }),
		"access_token":        text(func(c *Config) *string { return &c.AccessToken }),
		"access_token_secret": text(func(c *Config) *string { return &c.AccessTokenSecret }),
		"bearer_token":        text(func(c *Config) *string { return &c.BearerToken }),
		"token_url":           text(func(c *Config) *string { return &c.TokenURL }),
		"nats_url":            text(func(c *Config) *string { return &c.NATSURL }),
		"nats_bucket":         text(func(c *Config) *string { return &c.NATSBucket }),
		"timeout":             duration(func(c *Config) *string { return &c.Timeout }),
		"cache_ttl":           duration(func(c *Config) *string { return &c.CacheTTL }),
		"app_token":           text(func(c *Config) *string { return &c.AppToken }),
		"app_token_expires_at": {
			get: func(c *Config) string { return c.AppTokenExpiresAt },
			set: func(c *Config, value string) error {
				if value != "" {
					if _, err := time.Parse(time.RFC3339, value); err != nil {
						return fmt.Errorf("%w: %q is not an RFC 3339 time: %w", ErrInvalidValue, value, err)
					}
				}

				c.AppTokenExpiresAt = value

				return nil
			},
		},
		"output": {
			get: func(c *Config) string { return c.Output },
			set: func(c *Config, value string) error {
				switch value {
				case "", constants.FormatTable, constants.FormatJSON, constants.FormatYAML:
					c.Output = value

					return nil
				default:
					return fmt.Errorf("%w: output must be table, json or yaml", ErrInvalidValue)
				}
			},
		},
		"cache": {
			get: func(c *Config) string { return c.Cache },
			set: func(c *Config, value string) error {
				switch value {
				case "", "memory", "nats", "none":
					c.Cache = value

					return nil
				default:
					return fmt.Errorf("%w: cache must be memory, nats or none", ErrInvalidValue)
				}
			},
		},
		"rate_limit": {
			get: func(c *Config) string {
				if c.RateLimit == 0 {
					return ""
				}

				return strconv.FormatFloat(c.RateLimit, 'f', -1, 64)
			},
			set: func(c *Config, value string) error {
				if value == "" {
					c.RateLimit = 0

					return nil
				}

				parsed, err := strconv.ParseFloat(value, 64)
				if err != nil || parsed < 0 {
					return fmt.Errorf("%w: rate_limit must be a non-negative number", ErrInvalidValue)
				}

				c.RateLimit = parsed

				return nil
			},
		},
	}
}

var secretKeys = map[string]bool{ //nolint:gochecknoglobals
	"consumer_secret":     true,
	"access_token":        true,
	"access_token_secret": true,
	"bearer_token":        true,
	"app_token":           true,
}

// NewConfigCommand creates the config command group.
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage CLI configuration",
		Long:  "View and modify the settings stored in $HOME/" + ConfigDirName + "/config.yml",
	}

	cmd.AddCommand(newConfigShowCommand())
	cmd.AddCommand(newConfigSetCommand())
	cmd.AddCommand(newConfigUnsetCommand())
	cmd.AddCommand(newConfigClearCommand())

	return cmd
}

func newConfigShowCommand() *cobra.Command {
	var showSecrets bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			config := loadConfig()
			if !showSecrets {
				config = maskSecrets(config)
			}

			switch outputFormat(cmd.OutOrStdout()) {
			case constants.FormatJSON:
				encoder := json.NewEncoder(cmd.OutOrStdout())
				encoder.SetIndent("", "  ")

				return encoder.Encode(config)
			case constants.FormatYAML:
				encoder := yaml.NewEncoder(cmd.OutOrStdout())

				return encoder.Encode(config)
			default:
				return displayConfigTable(cmd, config)
			}
		},
	}

	cmd.Flags().BoolVar(&showSecrets, "show-secrets", false, "print credentials in clear text")

	return cmd
}

func newConfigSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Set a configuration value",
		Long:  "Set a configuration value. Keys: " + strings.Join(configKeys(), ", "),
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			config := loadConfig()

			err := setConfigValue(config, args[0], args[1])
			if err != nil {
				return err
			}

			err = saveConfigStruct(config)
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Set %s\n", args[0])

			return nil
		},
	}
}

func newConfigUnsetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "unset KEY",
		Short: "Remove a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			config := loadConfig()

			err := setConfigValue(config, args[0], "")
			if err != nil {
				return err
			}

			err = saveConfigStruct(config)
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Unset %s\n", args[0])

			return nil
		},
	}
}

func newConfigClearCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove all configuration values",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "This removes every stored setting and credential. Re-run with --force to confirm.")

				return nil
			}

			err := saveConfigStruct(&Config{})
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Configuration cleared")

			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "skip confirmation")

	return cmd
}

func loadConfig() *Config {
	config := &Config{}

	for key, field := range configFields() {
		_ = field.set(config, viper.GetString(key))
	}

	return config
}

func setConfigValue(config *Config, key, value string) error {
	field, ok := configFields()[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownConfigKey, key)
	}

	return field.set(config, value)
}

func configKeys() []string {
	fields := configFields()

	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	return keys
}

func maskSecrets(config *Config) *Config {
	masked := *config
	fields := configFields()

	for key := range secretKeys {
		if fields[key].get(&masked) != "" {
			_ = fields[key].set(&masked, "********")
		}
	}

	return &masked
}

func configFilePath() (string, error) {
	configFile := viper.ConfigFileUsed()
	if configFile != "" {
		return configFile, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(home, ConfigDirName, "config.yml"), nil
}

func saveConfigStruct(config *Config) error {
	configFile, err := configFilePath()
	if err != nil {
		return err
	}

	err = os.MkdirAll(filepath.Dir(configFile), constants.ConfigDirPerm)
	if err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	err = os.WriteFile(configFile, data, constants.ConfigFilePerm)
	if err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	for key, field := range configFields() {
		viper.Set(key, field.get(config))
	}

	return nil
}

func displayConfigTable(cmd *cobra.Command, config *Config) error {
	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.Header("Key", "Value")

	fields := configFields()
	for _, key := range configKeys() {
		_ = table.Append(key, formatConfigValue(fields[key].get(config)))
	}

	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}

	return nil
}

func formatConfigValue(value string) string {
	if value == "" {
		return "-"
	}

	return value
}
