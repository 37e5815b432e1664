package install

import (
	"context"

	"github.com/slok/botctl/internal/log"
)

// ReportFunc is used by installers to report an intermediate progress message.
type ReportFunc func(message string)

// Installer is the interface that all install steps must implement.
// Implementations MUST be idempotent, installing something already present is a no-op.
type Installer interface {
	Install(ctx context.Context, report ReportFunc) error
}

//go:generate mockery --case underscore --output installmock --outpkg installmock --name Installer

// InstallerFunc is a convenience adapter to allow the use of ordinary functions as Installers.
type InstallerFunc func(ctx context.Context, report ReportFunc) error

func (f InstallerFunc) Install(ctx context.Context, report ReportFunc) error { return f(ctx, report) }

// NewLogInstaller wraps an installer with debug logging before and after execution.
func NewLogInstaller(name string, logger log.Logger, inst Installer) Installer {
	return InstallerFunc(func(ctx context.Context, report ReportFunc) error {
		logger.Debugf("Installing %q...", name)

		logReport := func(msg string) {
			logger.Debugf("%s: %s", name, msg)
			if report != nil {
				report(msg)
			}
		}

		if err := inst.Install(ctx, logReport); err != nil {
			return err
		}

		logger.Debugf("Installed %q", name)
		return nil
	})
}
