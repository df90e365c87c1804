package opstrack

import (
	"context"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/slok/opstrack/internal/server/fake"
	"github.com/slok/opstrack/test/integration/testutils"
)

// Config holds integration test configuration loaded from environment variables.
type Config struct {
	Binary string
}

func (c *Config) defaults() error {
	if c.Binary == "" {
		c.Binary = "opstrack"
	}

	// go test changes the CWD to the test package directory, relative paths would break.
	if !filepath.IsAbs(c.Binary) {
		return fmt.Errorf("OPSTRACK_INTEGRATION_BINARY must be an absolute path, got %q", c.Binary)
	}
	if _, err := os.Stat(c.Binary); err != nil {
		return fmt.Errorf("opstrack binary not found at %q: %w", c.Binary, err)
	}

	return nil
}

// NewConfig loads integration test configuration from environment variables.
// If the config is invalid or the activation env var is not set, the test is skipped.
func NewConfig(t *testing.T) Config {
	t.Helper()

	const (
		envActivation = "OPSTRACK_INTEGRATION"
		envBinary     = "OPSTRACK_INTEGRATION_BINARY"
	)

	if os.Getenv(envActivation) != "true" {
		t.Skipf("Skipping integration test: %s is not set to 'true'", envActivation)
	}

	c := Config{Binary: os.Getenv(envBinary)}
	if err := c.defaults(); err != nil {
		t.Skipf("Skipping due to invalid config: %s", err)
	}

	return c
}

// Env is an isolated environment: a fake admin server and a history database.
type Env struct {
	Config    Config
	Server    *fake.Server
	ServerURL string
	DBPath    string
}

// NewEnv starts a fake admin server for the test.
func NewEnv(t *testing.T, config Config, cfg fake.ServerConfig) Env {
	t.Helper()

	srv, err := fake.NewServer(cfg)
	require.NoError(t, err)
	hs := httptest.NewServer(srv)
	t.Cleanup(hs.Close)

	return Env{
		Config:    config,
		Server:    srv,
		ServerURL: hs.URL,
		DBPath:    filepath.Join(t.TempDir(), "history.db"),
	}
}

// Run runs an opstrack command against the environment server. Progress is rendered as
// JSON lines and logging is suppressed.
func (e Env) Run(ctx context.Context, cmdArgs string) (stdout, stderr []byte, err error) {
	args := fmt.Sprintf("--no-color --reporter json --poll-interval 20ms --server-url %s --db-path %s %s", e.ServerURL, e.DBPath, cmdArgs)
	return testutils.RunOpstrack(ctx, nil, e.Config.Binary, args, true)
}

// RunConsole runs the interactive console feeding it the input lines.
func (e Env) RunConsole(ctx context.Context, input string) (stdout, stderr []byte, err error) {
	args := []string{
		"--no-color", "--reporter", "json", "--poll-interval", "20ms",
		"--server-url", e.ServerURL, "--db-path", e.DBPath, "console",
	}
	return testutils.RunOpstrackArgs(ctx, nil, e.Config.Binary, args, []byte(input), true)
}
