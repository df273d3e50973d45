//go:build integration

package integration

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCLIOffline(t *testing.T) {
	config := LoadTestConfig()
	config.SkipIfNoBinary(t)

	runner := NewCommandRunner(config, t)

	t.Run("version", func(t *testing.T) {
		stdout, stderr, err := runner.Run("version", "-o", "json")
		require.NoError(t, err, stderr)
		assert.Contains(t, stdout, `"version"`)
	})

	t.Run("strategies", func(t *testing.T) {
		stdout, stderr, err := runner.Run("strategies")
		require.NoError(t, err, stderr)

		for _, name := range []string{"cursor", "max_id", "since_id", "with_cursor"} {
			assert.Contains(t, stdout, name)
		}
	})

	t.Run("config round trip", func(t *testing.T) {
		_, stderr, err := runner.Run("config", "set", "base_url", "https://{api}.example.com/{version}")
		require.NoError(t, err, stderr)

		stdout, stderr, err := runner.Run("config", "show", "-o", "yaml")
		require.NoError(t, err, stderr)
		assert.Contains(t, stdout, "https://{api}.example.com/{version}")

		_, _, err = runner.Run("config", "set", "output", "xml")
		require.Error(t, err)
	})

	t.Run("dry run", func(t *testing.T) {
		stdout, stderr, err := runner.Run("call", "POST", "upload", "media/upload",
			"-p", "media_category=tweet_image", "--skip-params", "--dry-run")
		require.NoError(t, err, stderr)
		assert.Contains(t, stdout, "https://upload.example.com/1.1/media/upload.json")
		assert.Contains(t, strings.ToLower(stdout), "media_category")
	})
}

func TestCLILive(t *testing.T) {
	config := LoadTestConfig()
	config.SkipIfNoBinary(t)
	config.SkipIfNoCredentials(t)

	runner := NewCommandRunner(config, t)

	stdout, stderr, err := runner.Run("whoami", "-t", config.BearerToken, "-o", "json")
	if err != nil {
		t.Skipf("whoami needs a user-context token: %s", stderr)
	}

	assert.Contains(t, stdout, "screen_name")
}
