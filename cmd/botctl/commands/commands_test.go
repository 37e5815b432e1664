package commands_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/kingpin/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/botctl/cmd/botctl/commands"
	"github.com/slok/botctl/internal/log"
	"github.com/slok/botctl/internal/model"
)

func newRootCommand(t *testing.T, args ...string) *commands.RootCommand {
	t.Helper()

	app := kingpin.New("test", "")
	rootCmd := commands.NewRootCommand(app)
	_, err := app.Parse(args)
	require.NoError(t, err)
	rootCmd.Logger = log.Noop

	return rootCmd
}

func TestRootCommandLoadConfig(t *testing.T) {
	t.Setenv("FROM_HOST", "host-value")

	tests := map[string]struct {
		files  map[string]string
		args   func(dir string) []string
		expCfg func(dir string) model.BotConfig
		expErr bool
	}{
		"Missing default config file should use the defaults.": {
			args: func(dir string) []string { return nil },
			expCfg: func(dir string) model.BotConfig {
				c := model.DefaultBotConfig()
				c.Bot.Dir = filepath.Join(dir, "bot")
				c.Bot.Env = map[string]string{}
				return c
			},
		},

		"Missing explicit config file should fail.": {
			args:   func(dir string) []string { return []string{"--config", filepath.Join(dir, "missing.yaml")} },
			expErr: true,
		},

		"Config file should be loaded and relative bot dirs resolved from it.": {
			files: map[string]string{
				"cfg/bot.yaml": "bot:\n  dir: mybot\n  script: main.js\n",
			},
			args: func(dir string) []string { return []string{"--config", filepath.Join(dir, "cfg", "bot.yaml")} },
			expCfg: func(dir string) model.BotConfig {
				c := model.DefaultBotConfig()
				c.Bot.Dir = filepath.Join(dir, "cfg", "mybot")
				c.Bot.Script = "main.js"
				c.Bot.Env = map[string]string{}
				return c
			},
		},

		"Env flags should override the config file env.": {
			files: map[string]string{
				"botctl.yaml": "bot:\n  dir: /srv/bot\n  env:\n    TOKEN: file\n    LEVEL: info\n",
			},
			args: func(dir string) []string {
				return []string{"--env", "TOKEN=flag", "--env", "FROM_HOST"}
			},
			expCfg: func(dir string) model.BotConfig {
				c := model.DefaultBotConfig()
				c.Bot.Dir = "/srv/bot"
				c.Bot.Env = map[string]string{"TOKEN": "flag", "LEVEL": "info", "FROM_HOST": "host-value"}
				return c
			},
		},

		"Invalid env flags should fail.": {
			args:   func(dir string) []string { return []string{"--env", "1INVALID=value"} },
			expErr: true,
		},

		"Invalid config file should fail.": {
			files: map[string]string{
				"botctl.yaml": "bot:\n  script: \"\"\n",
			},
			args:   func(dir string) []string { return nil },
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			dir := t.TempDir()
			for path, content := range test.files {
				p := filepath.Join(dir, path)
				require.NoError(os.MkdirAll(filepath.Dir(p), 0o755))
				require.NoError(os.WriteFile(p, []byte(content), 0o644))
			}
			t.Chdir(dir)

			rootCmd := newRootCommand(t, test.args(dir)...)
			gotCfg, err := rootCmd.LoadConfig(context.TODO())

			if test.expErr {
				assert.Error(err)
			} else if assert.NoError(err) {
				assert.Equal(test.expCfg(dir), gotCfg)
			}
		})
	}
}

func TestRootCommandDatabasePath(t *testing.T) {
	tests := map[string]struct {
		args   []string
		expDBP string
	}{
		"By default the database should be on the data dir.": {
			args:   []string{"--data-dir", "/tmp/botctl"},
			expDBP: filepath.Join("/tmp/botctl", "botctl.db"),
		},

		"An explicit database path should be used.": {
			args:   []string{"--data-dir", "/tmp/botctl", "--db-path", "/var/lib/botctl.db"},
			expDBP: "/var/lib/botctl.db",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			rootCmd := newRootCommand(t, test.args...)
			assert.Equal(t, test.expDBP, rootCmd.DatabasePath())
		})
	}
}
