// Package fake has an in-memory process spawner, processes never touch the OS
// and are driven by the caller (exit, ignore kills, fail kills...).
package fake

import (
	"context"
	"fmt"
	"sync"

	"github.com/slok/botctl/internal/model"
	"github.com/slok/botctl/internal/supervisor"
)

// Process is a fake process.
type Process struct {
	pid int

	mu         sync.Mutex
	done       chan struct{}
	ignoreKill bool
	killErr    error
	kills      int
}

func newProcess(pid int) *Process {
	return &Process{pid: pid, done: make(chan struct{})}
}

func (p *Process) PID() int              { return p.pid }
func (p *Process) Done() <-chan struct{} { return p.done }

func (p *Process) Exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Kill counts the kill and exits the process unless it's set to ignore kills.
func (p *Process) Kill() error {
	p.mu.Lock()
	p.kills++
	ignore, err := p.ignoreKill, p.killErr
	p.mu.Unlock()

	if err != nil {
		return err
	}
	if !ignore {
		p.Exit()
	}
	return nil
}

// Exit makes the process exit, it's safe to call multiple times.
func (p *Process) Exit() {
	p.mu.Lock()
	defer p.mu.Unlock()
	select {
	case <-p.done:
	default:
		close(p.done)
	}
}

// IgnoreKill makes kills succeed without the process exiting.
func (p *Process) IgnoreKill() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ignoreKill = true
}

// FailKill makes kills return err.
func (p *Process) FailKill(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.killErr = err
}

// Kills returns the number of kill attempts.
func (p *Process) Kills() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.kills
}

// Spawner is a fake spawner.
type Spawner struct {
	mu       sync.Mutex
	nextPID  int
	spawnErr error
	procs    []*Process
	cmds     []model.Command
}

// NewSpawner returns a new fake spawner.
func NewSpawner() *Spawner {
	return &Spawner{nextPID: 1000}
}

func (s *Spawner) Spawn(ctx context.Context, cmd model.Command) (supervisor.Process, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.spawnErr != nil {
		return nil, s.spawnErr
	}
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("invalid command: %w", err)
	}

	s.nextPID++
	p := newProcess(s.nextPID)
	s.procs = append(s.procs, p)
	s.cmds = append(s.cmds, cmd)

	return p, nil
}

// FailSpawn makes the next spawns fail with err, nil restores them.
func (s *Spawner) FailSpawn(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spawnErr = err
}

// Processes returns all the spawned processes in spawn order.
func (s *Spawner) Processes() []*Process {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Process{}, s.procs...)
}

// Last returns the last spawned process.
func (s *Spawner) Last() *Process {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.procs) == 0 {
		return nil
	}
	return s.procs[len(s.procs)-1]
}

// Commands returns the spawned commands in spawn order.
func (s *Spawner) Commands() []model.Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Command{}, s.cmds...)
}
