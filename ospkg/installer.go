package ospkg

import (
	"context"

	"github.com/miekg/hostprep/oscmd"
	"go.science.ru.nl/log"
)

// Manager names a command line package manager.
type Manager string

const (
	Yum Manager = "yum"
	Apt Manager = "apt"
)

// Transaction is a single package manager install run.
type Transaction struct {
	Packages    []string // Packages to install.
	EnableRepos []string // Only enable these repositories for this transaction.
	DisableAll  bool     // Disable every repository not in EnableRepos.
	NoGPGCheck  bool     // Skip signature verification.
	Refresh     bool     // Refresh the package index first.
}

// Installer represents OS package installation tool.
type Installer interface {
	Install(ctx context.Context, tx Transaction) error
}

// New returns an Installer for manager m that runs its commands with r, or the NoopInstaller when m is unknown.
func New(m Manager, r oscmd.Runner) Installer {
	switch m {
	case Yum:
		return &YumInstaller{Runner: r}
	case Apt:
		return &DebianInstaller{Runner: r}
	}
	log.Warningf("Returning Noop package installer for %q", m)
	return new(NoopInstaller)
}
