package supervisor_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/slok/botctl/internal/model"
	"github.com/slok/botctl/internal/supervisor"
	"github.com/slok/botctl/internal/supervisor/fake"
	"github.com/slok/botctl/internal/supervisor/supervisormock"
)

const (
	testSettle   = 20 * time.Millisecond
	testGrace    = 150 * time.Millisecond
	testWatchdog = 10 * time.Millisecond
	eventually   = 2 * time.Second
	tick         = 5 * time.Millisecond
)

var botCmd = model.Command{Path: "node", Args: []string{"index.js"}, Dir: "bot"}

type recorder struct {
	mu     sync.Mutex
	states []model.SupervisorState
	exited []model.ManagedProcess
}

func (r *recorder) onState(s model.SupervisorState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *recorder) onExited(mp model.ManagedProcess) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exited = append(r.exited, mp)
}

func (r *recorder) States() []model.SupervisorState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.SupervisorState{}, r.states...)
}

func (r *recorder) Exited() []model.ManagedProcess {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.ManagedProcess{}, r.exited...)
}

// waitLastState waits until the last notified state is the expected one, callbacks
// are delivered after the state is set.
func waitLastState(t *testing.T, rec *recorder, exp model.SupervisorState) {
	t.Helper()
	require.Eventually(t, func() bool {
		states := rec.States()
		return len(states) > 0 && states[len(states)-1] == exp
	}, eventually, tick)
}

func newSupervisor(t *testing.T, sp supervisor.Spawner, sr supervisor.ShutdownRequester, mod func(*supervisor.SupervisorConfig)) (*supervisor.Supervisor, *recorder) {
	t.Helper()

	rec := &recorder{}
	cfg := supervisor.SupervisorConfig{
		Spawner:            sp,
		ShutdownRequester:  sr,
		SettleDelay:        testSettle,
		GracePeriod:        testGrace,
		WatchdogInterval:   testWatchdog,
		KillWait:           50 * time.Millisecond,
		OnStateChanged:     rec.onState,
		OnExitedExternally: rec.onExited,
	}
	if mod != nil {
		mod(&cfg)
	}

	s, err := supervisor.NewSupervisor(cfg)
	require.NoError(t, err)

	return s, rec
}

func TestNewSupervisorConfig(t *testing.T) {
	_, err := supervisor.NewSupervisor(supervisor.SupervisorConfig{})
	assert.Error(t, err)
}

func TestSupervisorStart(t *testing.T) {
	tests := map[string]struct {
		cmd      model.Command
		spawnErr error
		expErr   error
		expState model.SupervisorState
	}{
		"Starting a valid command should settle into running.": {
			cmd:      botCmd,
			expState: model.SupervisorStateRunning,
		},
		"Starting an invalid command should fail.": {
			cmd:      model.Command{},
			expErr:   model.ErrNotValid,
			expState: model.SupervisorStateStopped,
		},
		"A spawn failure should fail the start and keep the supervisor stopped.": {
			cmd:      botCmd,
			spawnErr: errors.New("exec: \"node\": executable file not found in $PATH"),
			expErr:   model.ErrSpawnFailed,
			expState: model.SupervisorStateStopped,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			sp := fake.NewSpawner()
			sp.FailSpawn(test.spawnErr)
			s, rec := newSupervisor(t, sp, nil, nil)

			mp, err := s.Start(context.Background(), test.cmd)
			if test.expErr != nil {
				assert.ErrorIs(t, err, test.expErr)
				assert.Equal(t, test.expState, s.Status())
				assert.Empty(t, rec.States())
				_, ok := s.Process()
				assert.False(t, ok)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, sp.Last().PID(), mp.PID)
			assert.Equal(t, "bot", mp.WorkingDir)
			assert.Equal(t, test.cmd, mp.Command)
			assert.False(t, mp.LaunchTime.IsZero())

			waitLastState(t, rec, test.expState)
			assert.Equal(t, test.expState, s.Status())
			assert.Equal(t, []model.SupervisorState{model.SupervisorStateStarting, model.SupervisorStateRunning}, rec.States())

			got, ok := s.Process()
			require.True(t, ok)
			assert.Equal(t, *mp, *got)
		})
	}
}

func TestSupervisorStartWhileOwningProcess(t *testing.T) {
	tests := map[string]struct {
		waitRunning bool
	}{
		"Starting while starting should be rejected.": {waitRunning: false},
		"Starting while running should be rejected.":  {waitRunning: true},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			sp := fake.NewSpawner()
			s, _ := newSupervisor(t, sp, nil, func(c *supervisor.SupervisorConfig) {
				if !test.waitRunning {
					c.SettleDelay = time.Hour
				}
			})

			_, err := s.Start(context.Background(), botCmd)
			require.NoError(t, err)
			if test.waitRunning {
				require.Eventually(t, func() bool { return s.Status() == model.SupervisorStateRunning }, eventually, tick)
			}

			for range 3 {
				_, err = s.Start(context.Background(), botCmd)
				assert.ErrorIs(t, err, model.ErrAlreadyRunning)
			}
			assert.Len(t, sp.Processes(), 1)
		})
	}
}

func TestSupervisorStopWhenStopped(t *testing.T) {
	sp := fake.NewSpawner()
	sr := supervisormock.NewShutdownRequester(t)
	s, rec := newSupervisor(t, sp, sr, nil)

	err := s.Stop(context.Background())
	assert.ErrorIs(t, err, model.ErrNotRunning)
	assert.Empty(t, sp.Processes())
	assert.Empty(t, rec.States())
	sr.AssertNotCalled(t, "RequestShutdown", mock.Anything)
}

func TestSupervisorStop(t *testing.T) {
	tests := map[string]struct {
		mock         func(m *supervisormock.ShutdownRequester, p *fake.Process)
		prepare      func(p *fake.Process)
		expKills     int
		maxStopDelay time.Duration
	}{
		"When the process honors the graceful request it shouldn't be killed.": {
			mock: func(m *supervisormock.ShutdownRequester, p *fake.Process) {
				m.On("RequestShutdown", mock.Anything).Once().Run(func(mock.Arguments) { p.Exit() }).Return(nil)
			},
			expKills:     0,
			maxStopDelay: testGrace,
		},
		"When the process ignores the graceful request it should be killed after the grace period.": {
			mock: func(m *supervisormock.ShutdownRequester, p *fake.Process) {
				m.On("RequestShutdown", mock.Anything).Once().Return(nil)
			},
			expKills: 1,
		},
		"A failed graceful request should be swallowed and the process killed.": {
			mock: func(m *supervisormock.ShutdownRequester, p *fake.Process) {
				m.On("RequestShutdown", mock.Anything).Once().Return(errors.New("connection refused"))
			},
			expKills: 1,
		},
		"A kill failure should not wedge the supervisor.": {
			mock: func(m *supervisormock.ShutdownRequester, p *fake.Process) {
				m.On("RequestShutdown", mock.Anything).Once().Return(nil)
			},
			prepare:  func(p *fake.Process) { p.FailKill(errors.New("operation not permitted")) },
			expKills: 1,
		},
		"A process surviving the kill should not wedge the supervisor.": {
			mock: func(m *supervisormock.ShutdownRequester, p *fake.Process) {
				m.On("RequestShutdown", mock.Anything).Once().Return(nil)
			},
			prepare:  func(p *fake.Process) { p.IgnoreKill() },
			expKills: 1,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			sp := fake.NewSpawner()
			sr := supervisormock.NewShutdownRequester(t)
			s, rec := newSupervisor(t, sp, sr, nil)

			_, err := s.Start(context.Background(), botCmd)
			require.NoError(t, err)
			waitLastState(t, rec, model.SupervisorStateRunning)

			p := sp.Last()
			test.mock(sr, p)
			if test.prepare != nil {
				test.prepare(p)
			}

			start := time.Now()
			err = s.Stop(context.Background())
			elapsed := time.Since(start)
			require.NoError(t, err)

			assert.Equal(t, model.SupervisorStateStopped, s.Status())
			assert.Equal(t, test.expKills, p.Kills())
			if test.expKills > 0 {
				assert.GreaterOrEqual(t, elapsed, testGrace)
			}
			if test.maxStopDelay > 0 {
				assert.Less(t, elapsed, test.maxStopDelay)
			}
			_, ok := s.Process()
			assert.False(t, ok)

			assert.Equal(t, []model.SupervisorState{
				model.SupervisorStateStarting,
				model.SupervisorStateRunning,
				model.SupervisorStateStopping,
				model.SupervisorStateStopped,
			}, rec.States())
			assert.Empty(t, rec.Exited())
		})
	}
}

func TestSupervisorStopWithoutShutdownRequester(t *testing.T) {
	sp := fake.NewSpawner()
	s, _ := newSupervisor(t, sp, nil, nil)

	_, err := s.Start(context.Background(), botCmd)
	require.NoError(t, err)

	require.NoError(t, s.Stop(context.Background()))
	assert.Equal(t, 1, sp.Last().Kills())
	assert.Equal(t, model.SupervisorStateStopped, s.Status())
}

func TestSupervisorStopCancelledContextSkipsGrace(t *testing.T) {
	sp := fake.NewSpawner()
	s, _ := newSupervisor(t, sp, nil, func(c *supervisor.SupervisorConfig) { c.GracePeriod = time.Hour })

	_, err := s.Start(context.Background(), botCmd)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	require.NoError(t, s.Stop(ctx))
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 1, sp.Last().Kills())
	assert.Equal(t, model.SupervisorStateStopped, s.Status())
}

func TestSupervisorStopInProgress(t *testing.T) {
	sp := fake.NewSpawner()
	sr := supervisormock.NewShutdownRequester(t)
	s, _ := newSupervisor(t, sp, sr, nil)

	_, err := s.Start(context.Background(), botCmd)
	require.NoError(t, err)
	p := sp.Last()

	requested := make(chan struct{})
	release := make(chan struct{})
	sr.On("RequestShutdown", mock.Anything).Once().Run(func(mock.Arguments) {
		close(requested)
		<-release
		p.Exit()
	}).Return(nil)

	stopErr := make(chan error, 1)
	go func() { stopErr <- s.Stop(context.Background()) }()

	<-requested
	assert.Equal(t, model.SupervisorStateStopping, s.Status())
	assert.ErrorIs(t, s.Stop(context.Background()), model.ErrStopInProgress)
	_, err = s.Start(context.Background(), botCmd)
	assert.ErrorIs(t, err, model.ErrAlreadyRunning)

	close(release)
	require.NoError(t, <-stopErr)
	assert.Equal(t, model.SupervisorStateStopped, s.Status())
	assert.Equal(t, 0, p.Kills())
}

func TestSupervisorWatchdog(t *testing.T) {
	tests := map[string]struct {
		waitRunning bool
	}{
		"An external exit while running should stop the supervisor.":  {waitRunning: true},
		"An external exit while starting should stop the supervisor.": {waitRunning: false},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			sp := fake.NewSpawner()
			sr := supervisormock.NewShutdownRequester(t)
			s, rec := newSupervisor(t, sp, sr, func(c *supervisor.SupervisorConfig) {
				if !test.waitRunning {
					c.SettleDelay = time.Hour
				}
			})

			mp, err := s.Start(context.Background(), botCmd)
			require.NoError(t, err)
			if test.waitRunning {
				require.Eventually(t, func() bool { return s.Status() == model.SupervisorStateRunning }, eventually, tick)
			}

			sp.Last().Exit()

			require.Eventually(t, func() bool { return s.Status() == model.SupervisorStateStopped }, eventually, tick)
			require.Eventually(t, func() bool { return len(rec.Exited()) == 1 }, eventually, tick)
			assert.Equal(t, *mp, rec.Exited()[0])

			states := rec.States()
			assert.Equal(t, model.SupervisorStateStopped, states[len(states)-1])
			assert.NotContains(t, states, model.SupervisorStateStopping)
			assert.Equal(t, 0, sp.Last().Kills())

			// Stopped without a stop call, a stop now is an error.
			assert.ErrorIs(t, s.Stop(context.Background()), model.ErrNotRunning)
			sr.AssertNotCalled(t, "RequestShutdown", mock.Anything)
		})
	}
}

func TestSupervisorRestart(t *testing.T) {
	sp := fake.NewSpawner()
	s, rec := newSupervisor(t, sp, nil, nil)

	mp1, err := s.Start(context.Background(), botCmd)
	require.NoError(t, err)
	sp.Last().IgnoreKill()
	require.NoError(t, s.Stop(context.Background()))

	mp2, err := s.Start(context.Background(), botCmd)
	require.NoError(t, err)
	assert.NotEqual(t, mp1.PID, mp2.PID)
	require.Eventually(t, func() bool { return s.Status() == model.SupervisorStateRunning }, eventually, tick)

	// The old process exiting late must not affect the new one.
	sp.Processes()[0].Exit()
	time.Sleep(5 * testWatchdog)
	assert.Equal(t, model.SupervisorStateRunning, s.Status())
	assert.Empty(t, rec.Exited())
}

func TestSupervisorHealthCheck(t *testing.T) {
	sp := fake.NewSpawner()

	var mu sync.Mutex
	healthy := false
	s, _ := newSupervisor(t, sp, nil, func(c *supervisor.SupervisorConfig) {
		c.HealthInterval = tick
		c.HealthCheck = func(ctx context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			if !healthy {
				return errors.New("not ready")
			}
			return nil
		}
	})

	_, err := s.Start(context.Background(), botCmd)
	require.NoError(t, err)

	// Way past the settle delay, the health check decides.
	time.Sleep(5 * testSettle)
	assert.Equal(t, model.SupervisorStateStarting, s.Status())

	mu.Lock()
	healthy = true
	mu.Unlock()
	require.Eventually(t, func() bool { return s.Status() == model.SupervisorStateRunning }, eventually, tick)
}

func TestSupervisorStopBeforeSettle(t *testing.T) {
	sp := fake.NewSpawner()
	s, rec := newSupervisor(t, sp, nil, func(c *supervisor.SupervisorConfig) {
		c.SettleDelay = 50 * time.Millisecond
		c.GracePeriod = 10 * time.Millisecond
	})

	_, err := s.Start(context.Background(), botCmd)
	require.NoError(t, err)
	require.NoError(t, s.Stop(context.Background()))

	// The settle timer of the stopped process must not promote anything.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, model.SupervisorStateStopped, s.Status())
	assert.NotContains(t, rec.States(), model.SupervisorStateRunning)
}

func TestSupervisorStateCallbacksKeepTransitionOrder(t *testing.T) {
	sp := fake.NewSpawner()

	runningCalled := make(chan struct{})
	release := make(chan struct{})
	rec := &recorder{}
	s, _ := newSupervisor(t, sp, nil, func(c *supervisor.SupervisorConfig) {
		c.GracePeriod = 10 * time.Millisecond
		c.OnStateChanged = func(st model.SupervisorState) {
			if st == model.SupervisorStateRunning {
				close(runningCalled)
				<-release
			}
			rec.onState(st)
		}
	})

	_, err := s.Start(context.Background(), botCmd)
	require.NoError(t, err)

	select {
	case <-runningCalled:
	case <-time.After(eventually):
		t.Fatal("running state was not notified")
	}

	// Stop while the running notification is still being delivered.
	stopErr := make(chan error, 1)
	go func() { stopErr <- s.Stop(context.Background()) }()
	require.Eventually(t, func() bool { return s.Status() == model.SupervisorStateStopping }, eventually, tick)
	time.Sleep(50 * time.Millisecond)
	close(release)

	select {
	case err := <-stopErr:
		require.NoError(t, err)
	case <-time.After(eventually):
		t.Fatal("stop did not finish")
	}

	exp := []model.SupervisorState{
		model.SupervisorStateStarting,
		model.SupervisorStateRunning,
		model.SupervisorStateStopping,
		model.SupervisorStateStopped,
	}
	assert.Equal(t, exp, rec.States())
}

func TestSupervisorConcurrentCyclesNotifyValidTransitions(t *testing.T) {
	sp := fake.NewSpawner()
	rec := &recorder{}
	s, _ := newSupervisor(t, sp, nil, func(c *supervisor.SupervisorConfig) {
		c.SettleDelay = time.Millisecond
		c.GracePeriod = time.Millisecond
		c.OnStateChanged = func(st model.SupervisorState) {
			time.Sleep(time.Millisecond)
			rec.onState(st)
		}
	})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				_, _ = s.Start(context.Background(), botCmd)
				_ = s.Stop(context.Background())
			}
		}()
	}
	wg.Wait()
	waitLastState(t, rec, model.SupervisorStateStopped)

	valid := map[model.SupervisorState][]model.SupervisorState{
		model.SupervisorStateStopped:  {model.SupervisorStateStarting},
		model.SupervisorStateStarting: {model.SupervisorStateRunning, model.SupervisorStateStopping, model.SupervisorStateStopped},
		model.SupervisorStateRunning:  {model.SupervisorStateStopping, model.SupervisorStateStopped},
		model.SupervisorStateStopping: {model.SupervisorStateStopped},
	}
	prev := model.SupervisorStateStopped
	for i, st := range rec.States() {
		assert.Contains(t, valid[prev], st, "transition %d: %s -> %s", i, prev, st)
		prev = st
	}
}
