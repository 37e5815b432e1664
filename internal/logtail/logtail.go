// Package logtail republishes the whole content of a log file periodically.
// It's a full refresh tail, every snapshot replaces the previous one.
package logtail

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/slok/botctl/internal/log"
	"github.com/slok/botctl/internal/model"
)

const (
	DefaultInterval = 2 * time.Second
	DefaultDebounce = 200 * time.Millisecond
)

// SnapshotFunc receives log snapshots.
type SnapshotFunc func(model.LogSnapshot)

// TailerConfig is the configuration of the log tailer.
type TailerConfig struct {
	Path     string
	Interval time.Duration
	// Watch enables refreshing on file system events besides the interval ticks.
	Watch    bool
	Debounce time.Duration
	Logger   log.Logger
}

func (c *TailerConfig) defaults() error {
	if c.Path == "" {
		return fmt.Errorf("log path is required")
	}
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.Debounce <= 0 {
		c.Debounce = DefaultDebounce
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "logtail.Tailer", "path": c.Path})
	return nil
}

// Tailer polls a log file.
type Tailer struct {
	path     string
	interval time.Duration
	watch    bool
	debounce time.Duration
	logger   log.Logger
}

// NewTailer returns a new log tailer.
func NewTailer(cfg TailerConfig) (*Tailer, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Tailer{
		path:     cfg.Path,
		interval: cfg.Interval,
		watch:    cfg.Watch,
		debounce: cfg.Debounce,
		logger:   cfg.Logger,
	}, nil
}

// Path returns the tailed file path.
func (t *Tailer) Path() string { return t.path }

// Poll reads the whole file. A missing file or a read error are not errors, they are
// snapshot statuses and the next poll tries again.
func (t *Tailer) Poll() model.LogSnapshot {
	now := time.Now().UTC()

	data, err := os.ReadFile(t.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return model.LogSnapshot{Status: model.LogSnapshotStatusMissing, ReadAt: now}
		}

		t.logger.Warningf("Could not read log file: %v", err)
		return model.LogSnapshot{
			Status: model.LogSnapshotStatusError,
			ReadAt: now,
			Err:    fmt.Errorf("%w: %w", model.ErrLogRead, err),
		}
	}

	return model.LogSnapshot{
		Status:  model.LogSnapshotStatusOK,
		Content: string(data),
		ReadAt:  now,
	}
}

// Run emits a snapshot right away and then on every tick (and file change when watching) until
// the context is done.
func (t *Tailer) Run(ctx context.Context, onSnapshot SnapshotFunc) error {
	onSnapshot(t.Poll())

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	var changes <-chan struct{}
	if t.watch {
		ch, stop, err := t.watchFile(ctx)
		if err != nil {
			t.logger.Warningf("Could not watch log file, using only polling: %v", err)
		} else {
			defer stop()
			changes = ch
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			onSnapshot(t.Poll())
		case <-changes:
			onSnapshot(t.Poll())
			ticker.Reset(t.interval)
		}
	}
}

// watchFile watches the file directory (the file may not exist yet) and signals debounced changes of the file.
func (t *Tailer) watchFile(ctx context.Context) (<-chan struct{}, func(), error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	dir := filepath.Dir(t.path)
	if err := fsw.Add(dir); err != nil {
		_ = fsw.Close()
		return nil, nil, fmt.Errorf("watching directory %s: %w", dir, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	changes := make(chan struct{}, 1)
	name := filepath.Clean(t.path)

	go func() {
		var timer *time.Timer
		var timerC <-chan time.Time
		defer func() {
			if timer != nil {
				timer.Stop()
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-fsw.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != name {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}

				if timer == nil {
					timer = time.NewTimer(t.debounce)
				} else {
					timer.Reset(t.debounce)
				}
				timerC = timer.C

			case <-timerC:
				timerC = nil
				select {
				case changes <- struct{}{}:
				default:
				}

			case err, ok := <-fsw.Errors:
				if !ok {
					return
				}
				t.logger.Debugf("Log watcher error: %v", err)
			}
		}
	}()

	stop := func() {
		cancel()
		_ = fsw.Close()
	}

	return changes, stop, nil
}
