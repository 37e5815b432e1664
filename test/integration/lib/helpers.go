package lib

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/require"

	sdklib "github.com/slok/botctl/pkg/lib"
	"github.com/slok/botctl/test/integration/testutils"
)

// NewConfig checks the integration tests are enabled and the host can run them.
// If not, the test is skipped.
func NewConfig(t *testing.T) {
	t.Helper()

	const envActivation = "BOTCTL_INTEGRATION"

	if os.Getenv(envActivation) != "true" {
		t.Skipf("Skipping integration test: %s is not set to 'true'", envActivation)
	}

	if _, err := exec.LookPath("node"); err != nil {
		t.Skipf("Skipping due to invalid config: %s", fmt.Errorf("node runtime is required: %w", err))
	}
}

// NewTestClient writes a test bot and creates an SDK client for it with a temp data dir.
// The client runs the bot as a real process.
func NewTestClient(t *testing.T, cfg sdklib.Config) (*sdklib.Client, testutils.Bot) {
	t.Helper()

	bot, err := testutils.WriteBot(t.TempDir())
	require.NoError(t, err)

	cfg.ConfigFile = bot.ConfigFile
	cfg.DataDir = t.TempDir()
	cfg.Spawner = sdklib.SpawnerExec

	client, err := sdklib.New(context.Background(), cfg)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = client.Close()
	})

	return client, bot
}
