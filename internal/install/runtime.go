package install

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/slok/botctl/internal/log"
	"github.com/slok/botctl/internal/utils/command"
)

const (
	DefaultNodeVersion = "v22.11.0"
	DefaultNodeBaseURL = "https://nodejs.org/dist"

	windowsNodeDir = `C:\Program Files\nodejs`
)

// SearchDirAdder registers directories where installed binaries can be found.
type SearchDirAdder interface {
	AddSearchDir(dir string)
}

// NodeInstallerConfig is the configuration of the Node.js runtime installer.
type NodeInstallerConfig struct {
	// Version is the Node.js release. Defaults to DefaultNodeVersion.
	Version string
	// BaseURL is the release distribution base URL. Defaults to DefaultNodeBaseURL.
	BaseURL string
	// InstallDir is where the portable runtimes are extracted. Required on non windows hosts.
	InstallDir string
	// SearchDirs receives the installed binaries dir. Required.
	SearchDirs SearchDirAdder
	// Runner runs the windows MSI installer. Required on windows hosts.
	Runner     command.Runner
	HTTPClient *http.Client
	// GOOS and GOARCH select the release artifact. Default to the host.
	GOOS   string
	GOARCH string
	Logger log.Logger
}

func (c *NodeInstallerConfig) defaults() error {
	if c.Version == "" {
		c.Version = DefaultNodeVersion
	}
	if c.BaseURL == "" {
		c.BaseURL = DefaultNodeBaseURL
	}
	c.BaseURL = strings.TrimSuffix(c.BaseURL, "/")
	if c.GOOS == "" {
		c.GOOS = runtime.GOOS
	}
	if c.GOARCH == "" {
		c.GOARCH = runtime.GOARCH
	}
	if c.SearchDirs == nil {
		return fmt.Errorf("search dirs is required")
	}
	if c.GOOS == "windows" && c.Runner == nil {
		return fmt.Errorf("runner is required on windows")
	}
	if c.GOOS != "windows" && c.InstallDir == "" {
		return fmt.Errorf("install dir is required")
	}
	if c.HTTPClient == nil {
		c.HTTPClient = http.DefaultClient
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "install.NodeInstaller"})
	return nil
}

// NodeInstaller is an unattended Node.js runtime installer.
type NodeInstaller struct {
	cfg NodeInstallerConfig
}

// NewNodeInstaller returns a new Node.js runtime installer.
func NewNodeInstaller(cfg NodeInstallerConfig) (*NodeInstaller, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &NodeInstaller{cfg: cfg}, nil
}

// ArtifactName returns the release artifact name for a platform.
func ArtifactName(version, goos, goarch string) string {
	arch := nodeArch(goarch)
	if goos == "windows" {
		return fmt.Sprintf("node-%s-%s.msi", version, arch)
	}
	return fmt.Sprintf("node-%s-%s-%s.tar.gz", version, goos, arch)
}

// ArtifactURL returns the release artifact download URL.
func (n *NodeInstaller) ArtifactURL() string {
	return fmt.Sprintf("%s/%s/%s", n.cfg.BaseURL, n.cfg.Version, ArtifactName(n.cfg.Version, n.cfg.GOOS, n.cfg.GOARCH))
}

// RuntimeDir returns the directory of the extracted portable runtime.
func (n *NodeInstaller) RuntimeDir() string {
	return filepath.Join(n.cfg.InstallDir, "node-"+n.cfg.Version)
}

// Install downloads and installs the runtime.
func (n *NodeInstaller) Install(ctx context.Context, report ReportFunc) error {
	if report == nil {
		report = func(string) {}
	}

	if n.cfg.GOOS == "windows" {
		return n.installMSI(ctx, report)
	}
	return n.installTarball(ctx, report)
}

func (n *NodeInstaller) installTarball(ctx context.Context, report ReportFunc) error {
	dir := n.RuntimeDir()
	binDir := filepath.Join(dir, "bin")

	if _, err := os.Stat(filepath.Join(binDir, "node")); err == nil {
		n.cfg.Logger.Infof("Node.js %s already extracted at %s", n.cfg.Version, dir)
		n.cfg.SearchDirs.AddSearchDir(binDir)
		return nil
	}

	url := n.ArtifactURL()
	name := ArtifactName(n.cfg.Version, n.cfg.GOOS, n.cfg.GOARCH)
	n.cfg.Logger.Infof("Downloading Node.js from %s", url)
	report(fmt.Sprintf("Downloading %s", name))

	tmpDir := dir + ".tmp"
	if err := os.RemoveAll(tmpDir); err != nil {
		return fmt.Errorf("cleaning %s: %w", tmpDir, err)
	}
	defer os.RemoveAll(tmpDir)

	onProgress := func(written, total int64) { report(FormatProgress(name, written, total)) }
	if err := downloadAndExtract(ctx, n.cfg.HTTPClient, url, tmpDir, 1, onProgress); err != nil {
		return fmt.Errorf("downloading %s: %w", name, err)
	}

	if _, err := os.Stat(filepath.Join(tmpDir, "bin", "node")); err != nil {
		return fmt.Errorf("node binary not found in %s: %w", name, err)
	}

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("cleaning %s: %w", dir, err)
	}
	if err := os.Rename(tmpDir, dir); err != nil {
		return fmt.Errorf("moving runtime into place: %w", err)
	}

	n.cfg.SearchDirs.AddSearchDir(binDir)
	n.cfg.Logger.Infof("Node.js %s installed at %s", n.cfg.Version, dir)
	report(fmt.Sprintf("Node.js %s installed", n.cfg.Version))

	return nil
}

func (n *NodeInstaller) installMSI(ctx context.Context, report ReportFunc) error {
	url := n.ArtifactURL()
	name := ArtifactName(n.cfg.Version, n.cfg.GOOS, n.cfg.GOARCH)

	tmpDir, err := os.MkdirTemp("", "botctl-node-*")
	if err != nil {
		return fmt.Errorf("creating temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	msiPath := filepath.Join(tmpDir, name)
	n.cfg.Logger.Infof("Downloading Node.js from %s", url)
	report(fmt.Sprintf("Downloading %s", name))

	onProgress := func(written, total int64) { report(FormatProgress(name, written, total)) }
	if err := downloadFile(ctx, n.cfg.HTTPClient, url, msiPath, onProgress); err != nil {
		return fmt.Errorf("downloading %s: %w", name, err)
	}

	report("Running the Node.js installer")
	_, err = n.cfg.Runner.Run(ctx, command.Spec{
		Name: "msiexec",
		Args: []string{"/i", msiPath, "/quiet", "/norestart"},
	})
	if err != nil {
		return fmt.Errorf("running msi installer: %w", err)
	}

	n.cfg.SearchDirs.AddSearchDir(windowsNodeDir)
	n.cfg.Logger.Infof("Node.js %s installed", n.cfg.Version)
	report(fmt.Sprintf("Node.js %s installed", n.cfg.Version))

	return nil
}

func nodeArch(goarch string) string {
	switch goarch {
	case "amd64":
		return "x64"
	case "386":
		return "x86"
	default:
		return goarch
	}
}
