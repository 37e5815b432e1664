package supervisor

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/slok/botctl/internal/log"
	"github.com/slok/botctl/internal/model"
	"github.com/slok/botctl/internal/utils/command"
)

// Process is a handle to a spawned OS process.
type Process interface {
	PID() int
	// Done is closed once the process has exited and has been reaped.
	Done() <-chan struct{}
	// Exited returns true if the process is no longer alive.
	Exited() bool
	// Kill forcefully terminates the process (and its children where the platform allows it).
	Kill() error
}

// Spawner knows how to create processes.
type Spawner interface {
	Spawn(ctx context.Context, cmd model.Command) (Process, error)
}

// Resolver resolves the command binary and base env when a process is spawned.
type Resolver interface {
	LookPath(name string) (string, error)
	Env() []string
}

// DefaultWaitDelay is how long the process output is drained after it exits.
const DefaultWaitDelay = 2 * time.Second

// ExecSpawnerConfig is the configuration of the exec based spawner.
type ExecSpawnerConfig struct {
	// Stdout and Stderr of the child, by default the host streams are inherited.
	Stdout io.Writer
	Stderr io.Writer
	// BaseEnv is the environment the command env is merged onto. By default the
	// Resolver env or the current process env.
	BaseEnv []string
	// Resolver is optional. Binaries without a dir are looked up with it first and
	// then on the PATH of the merged env.
	Resolver Resolver
	// WaitDelay bounds the output copy after the process exits, children keeping
	// the output open can't hold the exit detection.
	WaitDelay time.Duration
	Logger    log.Logger
}

func (c *ExecSpawnerConfig) defaults() error {
	if c.Stdout == nil {
		c.Stdout = os.Stdout
	}
	if c.Stderr == nil {
		c.Stderr = os.Stderr
	}
	if c.WaitDelay <= 0 {
		c.WaitDelay = DefaultWaitDelay
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "supervisor.ExecSpawner"})
	return nil
}

// ExecSpawner spawns real OS processes.
type ExecSpawner struct {
	stdout    io.Writer
	stderr    io.Writer
	baseEnv   []string
	resolver  Resolver
	waitDelay time.Duration
	logger    log.Logger
}

// NewExecSpawner returns a new OS process spawner.
func NewExecSpawner(cfg ExecSpawnerConfig) (*ExecSpawner, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &ExecSpawner{
		stdout:    cfg.Stdout,
		stderr:    cfg.Stderr,
		baseEnv:   cfg.BaseEnv,
		resolver:  cfg.Resolver,
		waitDelay: cfg.WaitDelay,
		logger:    cfg.Logger,
	}, nil
}

// Spawn starts the command. The context is only used for the spawn itself, the process outlives it.
func (s *ExecSpawner) Spawn(ctx context.Context, c model.Command) (Process, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	env := command.EnvList(s.env(), c.Env)
	cmd := exec.Command(s.lookPath(c.Path, env), c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = env
	cmd.Stdout = s.stdout
	cmd.Stderr = s.stderr
	cmd.SysProcAttr = sysProcAttr()
	cmd.WaitDelay = s.waitDelay

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	p := &execProcess{
		cmd:  cmd,
		done: make(chan struct{}),
	}

	// Waiter.
	go func() {
		p.err = cmd.Wait()
		close(p.done)
		if p.err != nil {
			s.logger.Debugf("Process %d finished with error: %v", cmd.Process.Pid, p.err)
		} else {
			s.logger.Debugf("Process %d finished without error", cmd.Process.Pid)
		}
	}()

	s.logger.Debugf("Spawned process %d: %s", cmd.Process.Pid, c)
	return p, nil
}

func (s *ExecSpawner) env() []string {
	switch {
	case s.baseEnv != nil:
		return s.baseEnv
	case s.resolver != nil:
		return s.resolver.Env()
	default:
		return os.Environ()
	}
}

// lookPath resolves the binary at spawn time, a runtime installed after the spawner
// was created is found. Unresolved names are left to exec.
func (s *ExecSpawner) lookPath(name string, env []string) string {
	if strings.ContainsRune(name, '/') || strings.ContainsRune(name, filepath.Separator) {
		return name
	}

	if s.resolver != nil {
		if path, err := s.resolver.LookPath(name); err == nil {
			return path
		}
	}

	for _, kv := range env {
		value, ok := strings.CutPrefix(kv, "PATH=")
		if !ok {
			continue
		}
		for _, dir := range filepath.SplitList(value) {
			if dir == "" || !filepath.IsAbs(dir) {
				continue
			}
			if path, err := exec.LookPath(filepath.Join(dir, name)); err == nil {
				return path
			}
		}
	}

	return name
}

type execProcess struct {
	cmd  *exec.Cmd
	done chan struct{}
	err  error
}

func (p *execProcess) PID() int              { return p.cmd.Process.Pid }
func (p *execProcess) Done() <-chan struct{} { return p.done }

func (p *execProcess) Exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

func (p *execProcess) Kill() error {
	return killProcessTree(p.cmd.Process)
}
