package conventions

import "path/filepath"

const (
	// DefaultDataDir is the default botctl data directory name (relative to home).
	DefaultDataDir = ".botctl"
	// DBFile is the SQLite database filename inside the data directory.
	DBFile = "botctl.db"
	// RuntimesDir is the subdirectory where downloaded runtimes are installed.
	RuntimesDir = "runtimes"
	// DownloadsDir is the subdirectory for downloaded installers.
	DownloadsDir = "downloads"

	// Bot files.

	// DefaultConfigFile is the config file looked up in the working directory.
	DefaultConfigFile = "botctl.yaml"
	// NodeModulesDir is where the bot packages are installed, relative to the bot directory.
	NodeModulesDir = "node_modules"
)

// DBPath returns the database path inside a data directory.
func DBPath(dataDir string) string {
	return filepath.Join(dataDir, DBFile)
}

// RuntimesPath returns the runtimes install directory inside a data directory.
func RuntimesPath(dataDir string) string {
	return filepath.Join(dataDir, RuntimesDir)
}

// DownloadsPath returns the downloads directory inside a data directory.
func DownloadsPath(dataDir string) string {
	return filepath.Join(dataDir, DownloadsDir)
}

// PackagePath returns the path where a bot package is installed.
func PackagePath(botDir, pkg string) string {
	return filepath.Join(botDir, NodeModulesDir, pkg)
}
