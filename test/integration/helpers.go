//go:build integration

package integration

import (
	"bytes"
	"os"
	"os/exec"
	"strings"
	"testing"
)

// TestConfig holds configuration for integration tests.
type TestConfig struct {
	BaseURL     string
	BearerToken string
	ScreenName  string
	CLIPath     string
	Verbose     bool
}

// LoadTestConfig loads configuration from environment variables.
func LoadTestConfig() *TestConfig {
	return &TestConfig{
		BaseURL:     os.Getenv("REST_DISPATCH_BASE_URL"),
		BearerToken: os.Getenv("REST_DISPATCH_BEARER_TOKEN"),
		ScreenName:  os.Getenv("REST_DISPATCH_SCREEN_NAME"),
		CLIPath:     getCLIPath(),
		Verbose:     os.Getenv("REST_DISPATCH_VERBOSE") == "true",
	}
}

func getCLIPath() string {
	if path := os.Getenv("RESTCLI_BINARY_PATH"); path != "" {
		return path
	}

	for _, candidate := range []string{"../../restcli", "./restcli", "../restcli"} {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}

	return "restcli"
}

// SkipIfNoCredentials skips tests that talk to a live API.
func (config *TestConfig) SkipIfNoCredentials(t *testing.T) {
	t.Helper()

	if config.BearerToken == "" {
		t.Skip("REST_DISPATCH_BEARER_TOKEN not set, skipping integration test")
	}
}

// SkipIfNoBinary skips tests that need the restcli binary.
func (config *TestConfig) SkipIfNoBinary(t *testing.T) {
	t.Helper()

	if _, err := exec.LookPath(config.CLIPath); err != nil {
		t.Skipf("restcli binary not found at %s, skipping integration test", config.CLIPath)
	}
}

// CommandRunner runs restcli with an isolated HOME.
type CommandRunner struct {
	config *TestConfig
	t      *testing.T
	home   string
}

// NewCommandRunner creates a runner whose configuration lives in a
// temporary directory.
func NewCommandRunner(config *TestConfig, t *testing.T) *CommandRunner {
	t.Helper()

	return &CommandRunner{
		config: config,
		t:      t,
		home:   t.TempDir(),
	}
}

// Run executes restcli and returns its output.
func (runner *CommandRunner) Run(args ...string) (string, string, error) {
	cmd := exec.Command(runner.config.CLIPath, args...) //nolint:gosec // test binary
	cmd.Env = append(os.Environ(), "HOME="+runner.home)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if runner.config.Verbose {
		runner.t.Logf("Running: %s %s", runner.config.CLIPath, strings.Join(args, " "))
	}

	err := cmd.Run()
	if runner.config.Verbose && err != nil {
		runner.t.Logf("Command failed: %v\nStdout: %s\nStderr: %s", err, stdout.String(), stderr.String())
	}

	return stdout.String(), stderr.String(), err
}
