//go:build !windows

package lib_test

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/botctl/pkg/lib"
)

func TestStartBotWithRuntimeInstalledAfterNew(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	srv := httptest.NewServer((&fakeBot{}).handler())
	defer srv.Close()

	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "botctl.yaml")
	cfgData := testConfig + "bot:\n  runtime: botctl-test-node\ninstall:\n  runtime_version: v22.11.0\n"
	require.NoError(os.WriteFile(cfgFile, []byte(cfgData), 0o644))
	require.NoError(os.MkdirAll(filepath.Join(dir, "bot"), 0o755))
	dataDir := filepath.Join(dir, "data")

	client, err := lib.New(context.Background(), lib.Config{
		ConfigFile: cfgFile,
		ControlURL: srv.URL,
		DataDir:    dataDir,
		Spawner:    lib.SpawnerExec,
	})
	require.NoError(err)
	defer client.Close()

	// Nothing installed yet.
	_, err = client.StartBot(context.Background())
	assert.ErrorIs(err, lib.ErrSpawnFailed)

	// What the runtime install step leaves on disk.
	binDir := filepath.Join(dataDir, "runtimes", "node-v22.11.0", "bin")
	require.NoError(os.MkdirAll(binDir, 0o755))
	require.NoError(os.WriteFile(filepath.Join(binDir, "botctl-test-node"), []byte("#!/bin/sh\nexec sleep 30\n"), 0o755))

	_, err = client.StartBot(context.Background())
	require.NoError(err)
	require.Eventually(func() bool { return client.Status() == lib.BotStateRunning }, 2*time.Second, 5*time.Millisecond)

	require.NoError(client.StopBot(context.Background()))
	assert.Equal(lib.BotStateStopped, client.Status())
}
