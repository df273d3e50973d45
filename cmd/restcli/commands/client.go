package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/fivetwenty-io/rest-dispatch/internal/constants"
	"github.com/fivetwenty-io/rest-dispatch/internal/logging"
	"github.com/fivetwenty-io/rest-dispatch/pkg/rest"
	"github.com/fivetwenty-io/rest-dispatch/pkg/restclient"
)

// newLogger creates the CLI logger. --debug logs every request, --verbose
// logs retries and informational messages, otherwise only warnings.
func newLogger() (*logging.Logger, error) {
	level := "warn"

	switch {
	case viper.GetBool("debug"):
		level = "debug"
	case viper.GetBool("verbose"):
		level = "info"
	}

	return logging.New(level, term.IsTerminal(int(os.Stderr.Fd()))) //nolint:gosec // fd fits in int
}

// buildRestConfig maps the viper settings onto a client configuration.
func buildRestConfig(logger rest.Logger) (*rest.Config, error) {
	config := loadConfig()

	restConfig := &rest.Config{
		BaseURL:              config.BaseURL,
		APIVersion:           config.APIVersion,
		ConsumerKey:          config.ConsumerKey,
		ConsumerSecret:       config.ConsumerSecret,
		AccessToken:          config.AccessToken,
		AccessTokenSecret:    config.AccessTokenSecret,
		BearerToken:          config.BearerToken,
		TokenURL:             config.TokenURL,
		RateLimit:            config.RateLimit,
		DisableErrorHandling: viper.GetBool("no_retry"),
		Debug:                viper.GetBool("debug"),
		Logger:               logger,
		HTTPTimeout:          constants.DefaultHTTPTimeout,
		TokenStore:           NewConfigTokenStore(),
	}

	if config.Timeout != "" {
		timeout, err := time.ParseDuration(config.Timeout)
		if err != nil {
			return nil, fmt.Errorf("%w: timeout: %w", ErrInvalidValue, err)
		}

		restConfig.HTTPTimeout = timeout
	}

	cacheConfig, err := buildCacheConfig(config)
	if err != nil {
		return nil, err
	}

	restConfig.Cache = cacheConfig

	return restConfig, nil
}

func buildCacheConfig(config *Config) (*rest.CacheConfig, error) {
	if config.Cache == "" || config.Cache == string(rest.CacheTypeNone) {
		return nil, nil //nolint:nilnil // caching disabled
	}

	options := rest.DefaultCacheOptions()

	if config.CacheTTL != "" {
		ttl, err := time.ParseDuration(config.CacheTTL)
		if err != nil {
			return nil, fmt.Errorf("%w: cache_ttl: %w", ErrInvalidValue, err)
		}

		options.TTL = ttl
	}

	cacheConfig := &rest.CacheConfig{
		Type:    rest.CacheType(config.Cache),
		Options: options,
	}

	if cacheConfig.Type == rest.CacheTypeNATS {
		cacheConfig.NATS = &rest.NATSKVConfig{
			URL:    config.NATSURL,
			Bucket: config.NATSBucket,
			TTL:    options.TTL,
		}
	}

	return cacheConfig, nil
}

// newClient creates a client from the current configuration. The returned
// cleanup closes the client and flushes the logger.
func newClient(ctx context.Context) (*restclient.Client, *logging.Logger, func(), error) {
	logger, err := newLogger()
	if err != nil {
		return nil, nil, nil, err
	}

	restConfig, err := buildRestConfig(logger)
	if err != nil {
		return nil, nil, nil, err
	}

	client, err := restclient.New(ctx, restConfig)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create client: %w", err)
	}

	cleanup := func() {
		client.Close()
		_ = logger.Sync()
	}

	return client, logger, cleanup, nil
}
