package probe

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/slok/botctl/internal/log"
	"github.com/slok/botctl/internal/model"
	"github.com/slok/botctl/internal/utils/command"
)

const (
	CheckIDRuntime        = "runtime_available"
	CheckIDPackageManager = "package_manager_available"
)

// ProbeConfig is the configuration of the environment probe.
type ProbeConfig struct {
	// Runtime is the runtime binary name. Defaults to "node".
	Runtime string
	// PackageManager is the package manager binary name. Defaults to "npm".
	PackageManager string
	// SearchDirs are looked up before the process PATH.
	SearchDirs []string
	// Runner runs the version commands. Required.
	Runner command.Runner
	// Timeout bounds every version command. Defaults to 15s.
	Timeout time.Duration
	// CacheTTL is how long a version result is reused. Defaults to 1m.
	CacheTTL time.Duration
	Logger   log.Logger
}

func (c *ProbeConfig) defaults() error {
	if c.Runner == nil {
		return fmt.Errorf("runner is required")
	}
	if c.Runtime == "" {
		c.Runtime = "node"
	}
	if c.PackageManager == "" {
		c.PackageManager = "npm"
	}
	if c.Timeout <= 0 {
		c.Timeout = 15 * time.Second
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = time.Minute
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "probe.Probe"})
	return nil
}

type versionResult struct {
	version string
	err     error
}

// Probe detects the bot runtime and package manager on the host. It never changes the host.
type Probe struct {
	runtime        string
	packageManager string
	runner         command.Runner
	timeout        time.Duration
	cache          *gocache.Cache
	logger         log.Logger

	mu         sync.RWMutex
	searchDirs []string
}

// NewProbe returns a new environment probe.
func NewProbe(cfg ProbeConfig) (*Probe, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Probe{
		runtime:        cfg.Runtime,
		packageManager: cfg.PackageManager,
		runner:         cfg.Runner,
		timeout:        cfg.Timeout,
		cache:          gocache.New(cfg.CacheTTL, 2*cfg.CacheTTL),
		logger:         cfg.Logger,
		searchDirs:     append([]string{}, cfg.SearchDirs...),
	}, nil
}

// Runtime returns the runtime binary name.
func (p *Probe) Runtime() string { return p.runtime }

// PackageManager returns the package manager binary name.
func (p *Probe) PackageManager() string { return p.packageManager }

// AddSearchDir adds a directory to look up binaries in, with priority over the
// previous ones. Cached results are discarded.
func (p *Probe) AddSearchDir(dir string) {
	p.mu.Lock()
	p.searchDirs = append([]string{dir}, p.searchDirs...)
	p.mu.Unlock()

	p.cache.Flush()
}

// SearchDirs returns the current extra search dirs.
func (p *Probe) SearchDirs() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]string{}, p.searchDirs...)
}

// LookPath resolves a binary name using the search dirs and then the process PATH.
func (p *Probe) LookPath(name string) (string, error) {
	for _, dir := range p.SearchDirs() {
		for _, ext := range executableExts() {
			candidate := filepath.Join(dir, name+ext)
			info, err := os.Stat(candidate)
			if err != nil || info.IsDir() {
				continue
			}
			if runtime.GOOS != "windows" && info.Mode()&0o111 == 0 {
				continue
			}
			return candidate, nil
		}
	}

	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%q: %w", name, model.ErrNotFound)
	}
	return path, nil
}

// Env returns the process environment with the search dirs prefixed to PATH.
func (p *Probe) Env() []string {
	dirs := p.SearchDirs()
	if len(dirs) == 0 {
		return os.Environ()
	}

	path := strings.Join(dirs, string(os.PathListSeparator))
	if current := os.Getenv("PATH"); current != "" {
		path = path + string(os.PathListSeparator) + current
	}

	return command.EnvList(os.Environ(), map[string]string{"PATH": path})
}

// Version returns the version reported by `<name> -v`.
func (p *Probe) Version(ctx context.Context, name string) (string, error) {
	if v, ok := p.cache.Get(name); ok {
		if res, ok := v.(versionResult); ok {
			return res.version, res.err
		}
	}

	version, err := p.version(ctx, name)
	if ctx.Err() == nil {
		p.cache.SetDefault(name, versionResult{version: version, err: err})
	}

	return version, err
}

func (p *Probe) version(ctx context.Context, name string) (string, error) {
	path, err := p.LookPath(name)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	out, err := p.runner.Run(ctx, command.Spec{Name: path, Args: []string{"-v"}, Env: p.Env()})
	if err != nil {
		return "", fmt.Errorf("could not get %q version: %w", name, err)
	}

	version := strings.TrimSpace(out)
	p.logger.Debugf("Detected %s %s at %s", name, version, path)

	return version, nil
}

// RuntimePresent returns true when both the runtime and the package manager answer.
func (p *Probe) RuntimePresent(ctx context.Context) bool {
	if _, err := p.Version(ctx, p.runtime); err != nil {
		return false
	}
	if _, err := p.Version(ctx, p.packageManager); err != nil {
		return false
	}
	return true
}

// Check returns the host check results of the runtime and the package manager.
func (p *Probe) Check(ctx context.Context) []model.CheckResult {
	return []model.CheckResult{
		p.check(ctx, CheckIDRuntime, p.runtime),
		p.check(ctx, CheckIDPackageManager, p.packageManager),
	}
}

func (p *Probe) check(ctx context.Context, id, name string) model.CheckResult {
	version, err := p.Version(ctx, name)
	if err != nil {
		return model.CheckResult{
			ID:      id,
			Message: fmt.Sprintf("%s not available: %s", name, err),
			Status:  model.CheckStatusError,
		}
	}

	return model.CheckResult{
		ID:      id,
		Message: fmt.Sprintf("%s found (%s)", name, version),
		Status:  model.CheckStatusOK,
	}
}

func executableExts() []string {
	if runtime.GOOS == "windows" {
		return []string{".exe", ".cmd", ""}
	}
	return []string{""}
}
