// Package lib provides a Go SDK for supervising a local chat bot programmatically.
//
// This package allows applications to install, start, stop and talk to a
// Node.js bot without shelling out to the botctl CLI binary. It is useful for
// scripting, automation, and building dashboards on top of botctl.
//
// # Quick Start
//
// Create a client, install the bot requirements and manage the bot lifecycle:
//
//	client, err := lib.New(ctx, lib.Config{ConfigFile: "botctl.yaml"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Install the runtime and the npm packages when missing.
//	client.Install(ctx, nil)
//
//	// Start, talk, stop.
//	client.StartBot(ctx)
//	client.SendMessage(ctx, "hello")
//	client.StopBot(ctx)
//
// # Lifecycle
//
// A started bot is starting until it settles, then running. Stopping asks the
// bot to shut down through its local control endpoint (POST /shutdown) and
// kills its whole process tree if it doesn't exit in the grace period. A bot
// that exits on its own is reported with [Config].OnExitedExternally.
//
// # Install
//
// [Client.Install] runs ordered steps: bot files check, Node.js runtime (downloaded
// and installed unattended when missing) and one step per npm package. The
// first failing step stops the run. Every run is recorded and can be listed
// with [Client.InstallHistory]:
//
//	res, err := client.Install(ctx, &lib.InstallOpts{
//	    OnProgress: func(p lib.InstallProgress) {
//	        fmt.Printf("[%3d%%] %s\n", p.Percent, p.Message)
//	    },
//	})
//
// # Logs and Chat
//
// [Client.Logs] reads the whole bot log file and [Client.Messages] fetches the
// chat messages relayed by the bot. [Client.Watch] follows both until its
// context is done:
//
//	client.Watch(ctx, lib.WatchOpts{
//	    OnLogs:     func(s lib.LogSnapshot) { fmt.Print(s.Text) },
//	    OnMessages: func(msgs []lib.ChatMessage) { ... },
//	})
//
// # Health Checks
//
// Run preflight checks to verify the host can run the bot:
//
//	results, _ := client.Doctor(ctx)
//	for _, r := range results {
//	    fmt.Printf("%s: %s (%s)\n", r.ID, r.Message, r.Status)
//	}
//
// # Error Handling
//
// All methods return errors that can be inspected with [errors.Is]:
//
//   - [ErrNotFound]: Resource does not exist.
//   - [ErrNotValid]: Invalid input or configuration (e.g. an empty chat message).
//   - [ErrAlreadyRunning], [ErrNotRunning], [ErrStopInProgress]: Invalid lifecycle operation.
//   - [ErrSpawnFailed]: The bot process could not be created.
//   - [ErrRuntimeInstallFailed], [ErrPackageInstallFailed]: An install step failed.
//   - [ErrNet]: The bot control endpoint could not be reached.
//
// # Testing
//
// Use [SpawnerFake] and a temporary data dir to write tests without a real bot:
//
//	client, _ := lib.New(ctx, lib.Config{
//	    DataDir: t.TempDir(),
//	    Spawner: lib.SpawnerFake,
//	})
//	defer client.Close()
//
// # Thread Safety
//
// A [Client] is safe for concurrent use from multiple goroutines. Only one
// install and one watch run at a time.
package lib
