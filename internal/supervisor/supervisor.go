package supervisor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/slok/botctl/internal/log"
	"github.com/slok/botctl/internal/model"
)

// ShutdownRequester asks a process to exit on its own.
type ShutdownRequester interface {
	RequestShutdown(ctx context.Context) error
}

//go:generate mockery --case underscore --output supervisormock --outpkg supervisormock --name ShutdownRequester

// HealthCheckFunc returns nil when the supervised process is healthy.
type HealthCheckFunc func(ctx context.Context) error

const (
	DefaultSettleDelay      = 1500 * time.Millisecond
	DefaultGracePeriod      = 3 * time.Second
	DefaultWatchdogInterval = 500 * time.Millisecond
	DefaultHealthInterval   = 500 * time.Millisecond
	DefaultKillWait         = time.Second
)

// SupervisorConfig is the configuration of the supervisor.
type SupervisorConfig struct {
	Spawner Spawner
	// ShutdownRequester is used for the graceful part of a stop, optional.
	ShutdownRequester ShutdownRequester
	SettleDelay       time.Duration
	GracePeriod       time.Duration
	WatchdogInterval  time.Duration
	// HealthCheck replaces the settle delay, the process is running after the first successful check.
	HealthCheck    HealthCheckFunc
	HealthInterval time.Duration
	// KillWait is how long a stop waits for the process to be reaped after a force kill.
	KillWait time.Duration
	// OnStateChanged receives the transitions in the order they happen. It must return
	// quickly and must not start or stop the supervisor.
	OnStateChanged     func(model.SupervisorState)
	OnExitedExternally func(model.ManagedProcess)
	Logger             log.Logger
}

func (c *SupervisorConfig) defaults() error {
	if c.Spawner == nil {
		return fmt.Errorf("spawner is required")
	}
	if c.SettleDelay <= 0 {
		c.SettleDelay = DefaultSettleDelay
	}
	if c.GracePeriod <= 0 {
		c.GracePeriod = DefaultGracePeriod
	}
	if c.WatchdogInterval <= 0 {
		c.WatchdogInterval = DefaultWatchdogInterval
	}
	if c.HealthInterval <= 0 {
		c.HealthInterval = DefaultHealthInterval
	}
	if c.KillWait <= 0 {
		c.KillWait = DefaultKillWait
	}
	if c.OnStateChanged == nil {
		c.OnStateChanged = func(model.SupervisorState) {}
	}
	if c.OnExitedExternally == nil {
		c.OnExitedExternally = func(model.ManagedProcess) {}
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "supervisor.Supervisor"})
	return nil
}

// Supervisor owns a single child process: it starts it, detects when it's healthy,
// stops it gracefully (then forcefully) and detects when it exits on its own.
//
// All writes of the state and the process handle happen under the same lock, background
// goroutines carry the generation they were created for and do nothing once it's stale.
type Supervisor struct {
	spawner            Spawner
	shutdown           ShutdownRequester
	settleDelay        time.Duration
	gracePeriod        time.Duration
	watchdogInterval   time.Duration
	healthCheck        HealthCheckFunc
	healthInterval     time.Duration
	killWait           time.Duration
	onStateChanged     func(model.SupervisorState)
	onExitedExternally func(model.ManagedProcess)
	logger             log.Logger

	mu         sync.Mutex
	state      model.SupervisorState
	proc       Process
	managed    *model.ManagedProcess
	generation uint64
	cancelProc context.CancelFunc
	// seq numbers the transitions, notified is the last one delivered.
	seq        uint64
	notifyMu   sync.Mutex
	notifyCond *sync.Cond
	notified   uint64
}

// NewSupervisor returns a new supervisor in the stopped state.
func NewSupervisor(cfg SupervisorConfig) (*Supervisor, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	s := &Supervisor{
		spawner:            cfg.Spawner,
		shutdown:           cfg.ShutdownRequester,
		settleDelay:        cfg.SettleDelay,
		gracePeriod:        cfg.GracePeriod,
		watchdogInterval:   cfg.WatchdogInterval,
		healthCheck:        cfg.HealthCheck,
		healthInterval:     cfg.HealthInterval,
		killWait:           cfg.KillWait,
		onStateChanged:     cfg.OnStateChanged,
		onExitedExternally: cfg.OnExitedExternally,
		logger:             cfg.Logger,
		state:              model.SupervisorStateStopped,
	}
	s.notifyCond = sync.NewCond(&s.notifyMu)

	return s, nil
}

// Status returns the last known state.
func (s *Supervisor) Status() model.SupervisorState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Process returns the currently managed process, if any.
func (s *Supervisor) Process() (*model.ManagedProcess, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.managed == nil {
		return nil, false
	}
	mp := *s.managed
	return &mp, true
}

// Start spawns the command. It fails if a process is already owned by the supervisor.
func (s *Supervisor) Start(ctx context.Context, cmd model.Command) (*model.ManagedProcess, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.state != model.SupervisorStateStopped {
		state := s.state
		s.mu.Unlock()
		return nil, fmt.Errorf("supervisor is %s: %w", state, model.ErrAlreadyRunning)
	}

	proc, err := s.spawner.Spawn(ctx, cmd)
	if err != nil {
		s.mu.Unlock()
		s.logger.Errorf("Could not spawn %q: %v", cmd, err)
		return nil, fmt.Errorf("could not spawn %q: %w: %w", cmd, model.ErrSpawnFailed, err)
	}

	s.generation++
	gen := s.generation
	procCtx, cancel := context.WithCancel(context.Background())
	s.proc = proc
	s.cancelProc = cancel
	s.managed = &model.ManagedProcess{
		PID:        proc.PID(),
		LaunchTime: time.Now().UTC(),
		WorkingDir: cmd.Dir,
		Command:    cmd,
	}
	s.state = model.SupervisorStateStarting
	seq := s.nextSeq()
	mp := *s.managed
	s.mu.Unlock()

	s.logger.Infof("Process %d started: %s", mp.PID, cmd)
	s.notify(seq, model.SupervisorStateStarting)

	go s.settle(procCtx, gen)
	go s.watchdog(procCtx, gen, proc)

	return &mp, nil
}

// settle promotes the process from starting to running.
func (s *Supervisor) settle(ctx context.Context, gen uint64) {
	if s.healthCheck == nil {
		timer := time.NewTimer(s.settleDelay)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			s.promote(gen)
			return
		}
	}

	ticker := time.NewTicker(s.healthInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.healthCheck(ctx); err != nil {
				s.logger.Debugf("Health check failed: %v", err)
				continue
			}
			s.promote(gen)
			return
		}
	}
}

func (s *Supervisor) promote(gen uint64) {
	s.mu.Lock()
	if s.generation != gen || s.state != model.SupervisorStateStarting {
		s.mu.Unlock()
		return
	}
	s.state = model.SupervisorStateRunning
	seq := s.nextSeq()
	s.mu.Unlock()

	s.logger.Infof("Process is running")
	s.notify(seq, model.SupervisorStateRunning)
}

// watchdog polls the process liveness and ends on the first unsolicited exit.
func (s *Supervisor) watchdog(ctx context.Context, gen uint64, proc Process) {
	ticker := time.NewTicker(s.watchdogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !proc.Exited() {
				continue
			}

			s.mu.Lock()
			if s.generation != gen || s.state == model.SupervisorStateStopping || s.state == model.SupervisorStateStopped {
				s.mu.Unlock()
				return
			}
			mp := *s.managed
			s.release()
			seq := s.nextSeq()
			s.mu.Unlock()

			s.logger.Warningf("Process %d exited externally", mp.PID)
			s.notify(seq, model.SupervisorStateStopped)
			s.onExitedExternally(mp)
			return
		}
	}
}

// Stop stops the process, first asking it to shut down and after the grace period killing it.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case model.SupervisorStateStopped:
		s.mu.Unlock()
		return fmt.Errorf("supervisor is stopped: %w", model.ErrNotRunning)
	case model.SupervisorStateStopping:
		s.mu.Unlock()
		return model.ErrStopInProgress
	}
	s.state = model.SupervisorStateStopping
	gen := s.generation
	proc := s.proc
	pid := s.managed.PID
	s.cancelProc()
	seq := s.nextSeq()
	s.mu.Unlock()

	s.notify(seq, model.SupervisorStateStopping)

	// Graceful.
	s.logger.Infof("[1/2] Requesting graceful shutdown of process %d", pid)
	if s.shutdown != nil {
		if err := s.shutdown.RequestShutdown(ctx); err != nil {
			s.logger.Warningf("Graceful shutdown request failed: %v", err)
		}
	}

	exited := s.waitExit(ctx, proc, s.gracePeriod)

	// Force.
	if !exited {
		s.logger.Infof("[2/2] Process %d still alive after %s, killing it", pid, s.gracePeriod)
		if err := proc.Kill(); err != nil {
			s.logger.Warningf("Could not kill process %d: %v", pid, err)
		} else if !s.waitExit(context.Background(), proc, s.killWait) {
			s.logger.Warningf("Process %d not reaped %s after kill", pid, s.killWait)
		}
	} else {
		s.logger.Infof("[2/2] Process %d exited gracefully", pid)
	}

	s.mu.Lock()
	if s.generation == gen {
		s.release()
	}
	seq = s.nextSeq()
	s.mu.Unlock()

	s.logger.Infof("Process %d stopped", pid)
	s.notify(seq, model.SupervisorStateStopped)

	return nil
}

// waitExit returns true if the process exits before the timeout. Context cancellation ends the wait early.
func (s *Supervisor) waitExit(ctx context.Context, proc Process, timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-proc.Done():
		return true
	case <-timer.C:
	case <-ctx.Done():
	}

	return proc.Exited()
}

// nextSeq must be called with the lock held, in the same critical section as the transition.
func (s *Supervisor) nextSeq() uint64 {
	s.seq++
	return s.seq
}

// notify delivers the transition numbered seq once all the previous ones were delivered.
func (s *Supervisor) notify(seq uint64, state model.SupervisorState) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	for s.notified != seq-1 {
		s.notifyCond.Wait()
	}
	s.onStateChanged(state)
	s.notified = seq
	s.notifyCond.Broadcast()
}

// release must be called with the lock held.
func (s *Supervisor) release() {
	if s.cancelProc != nil {
		s.cancelProc()
	}
	s.state = model.SupervisorStateStopped
	s.proc = nil
	s.managed = nil
	s.cancelProc = nil
}
