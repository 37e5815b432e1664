package testutils

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"regexp"
	"strings"
)

var multiSpaceRegex = regexp.MustCompile(" +")

// RunBotctl executes a botctl command with the given arguments string (split by spaces).
// Use RunBotctlArgs when arguments contain spaces that should be preserved.
func RunBotctl(ctx context.Context, env []string, binary, cmdArgs string, nolog bool) (stdout, stderr []byte, err error) {
	// Sanitize command.
	cmdArgs = strings.TrimSpace(cmdArgs)
	cmdArgs = multiSpaceRegex.ReplaceAllString(cmdArgs, " ")

	// Split into args.
	var args []string
	if cmdArgs != "" {
		args = strings.Split(cmdArgs, " ")
	}

	return RunBotctlArgs(ctx, env, binary, args, nolog)
}

// RunBotctlArgs executes a botctl command with pre-split arguments.
func RunBotctlArgs(ctx context.Context, env []string, binary string, args []string, nolog bool) (stdout, stderr []byte, err error) {
	var outData, errData bytes.Buffer
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Stdout = &outData
	cmd.Stderr = &errData
	cmd.Env = commandEnv(env, nolog)

	err = cmd.Run()

	return outData.Bytes(), errData.Bytes(), err
}

// StartBotctl starts a long running botctl command (e.g. run) in the background. The
// returned wait function waits for the command to end and returns its output.
func StartBotctl(ctx context.Context, env []string, binary string, args []string) (wait func() (stdout, stderr []byte, err error), err error) {
	var outData, errData bytes.Buffer
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Stdout = &outData
	cmd.Stderr = &errData
	cmd.Env = commandEnv(env, false)

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	return func() ([]byte, []byte, error) {
		err := cmd.Wait()
		return outData.Bytes(), errData.Bytes(), err
	}, nil
}

// commandEnv returns os.Environ() with the custom env on top.
// In Go's exec.Cmd, when duplicate keys exist, the last one wins.
func commandEnv(env []string, nolog bool) []string {
	newEnv := append([]string{}, os.Environ()...)
	newEnv = append(newEnv, env...)
	if nolog {
		newEnv = append(newEnv, "BOTCTL_NO_LOG=true")
	}
	return newEnv
}
