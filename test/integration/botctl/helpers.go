package botctl

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/slok/botctl/test/integration/testutils"
)

// Config holds integration test configuration loaded from environment variables.
type Config struct {
	Binary string
}

func (c *Config) defaults() error {
	if c.Binary == "" {
		c.Binary = "botctl"
	}

	// If relative, the caller should pass an absolute path via the env var,
	// because go test changes the CWD to the test package directory.
	if !filepath.IsAbs(c.Binary) {
		return fmt.Errorf("BOTCTL_INTEGRATION_BINARY must be an absolute path, got %q", c.Binary)
	}
	if _, err := os.Stat(c.Binary); err != nil {
		return fmt.Errorf("botctl binary not found at %q: %w", c.Binary, err)
	}

	if _, err := exec.LookPath("node"); err != nil {
		return fmt.Errorf("node runtime is required: %w", err)
	}

	return nil
}

// NewConfig loads integration test configuration from environment variables.
// If the config is invalid or the activation env var is not set, the test is skipped.
func NewConfig(t *testing.T) Config {
	t.Helper()

	const (
		envActivation = "BOTCTL_INTEGRATION"
		envBinary     = "BOTCTL_INTEGRATION_BINARY"
	)

	if os.Getenv(envActivation) != "true" {
		t.Skipf("Skipping integration test: %s is not set to 'true'", envActivation)
	}

	c := Config{
		Binary: os.Getenv(envBinary),
	}

	if err := c.defaults(); err != nil {
		t.Skipf("Skipping due to invalid config: %s", err)
	}

	return c
}

// Env returns the botctl env for a test bot, the data dir is isolated per test.
func Env(bot testutils.Bot, dataDir string) []string {
	return []string{
		"BOTCTL_CONFIG=" + bot.ConfigFile,
		"BOTCTL_DATA_DIR=" + dataDir,
	}
}

// RunBotctlCmd runs a botctl command for a test bot suppressing the logging output.
func RunBotctlCmd(ctx context.Context, config Config, env []string, cmdArgs string) (stdout, stderr []byte, err error) {
	return testutils.RunBotctl(ctx, env, config.Binary, cmdArgs, true)
}

// StartRun starts the bot in the foreground with the run command.
func StartRun(ctx context.Context, config Config, env []string) (wait func() (stdout, stderr []byte, err error), err error) {
	return testutils.StartBotctl(ctx, env, config.Binary, []string{"run", "--no-logs", "--no-messages"})
}

// RunSend sends a chat message through the bot.
func RunSend(ctx context.Context, config Config, env []string, text []string) (stdout, stderr []byte, err error) {
	args := append([]string{"send"}, text...)
	return testutils.RunBotctlArgs(ctx, env, config.Binary, args, true)
}
