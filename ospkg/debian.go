package ospkg

import (
	"context"
	"fmt"

	"github.com/miekg/hostprep/oscmd"
)

// DebianInstaller installs packages on Debian/Ubuntu. Repository selection does not apply to apt and is ignored.
type DebianInstaller struct {
	Runner oscmd.Runner
}

var _ Installer = (*DebianInstaller)(nil)

const (
	aptGetCommand = "/usr/bin/apt-get"
	dpkgCommand   = "/usr/bin/dpkg"
)

func (p *DebianInstaller) Install(ctx context.Context, tx Transaction) error {
	if tx.Refresh {
		if out, err := p.Runner.Run(ctx, aptGetCommand, "-qq", "update"); err != nil {
			return fmt.Errorf("failed to update apt cache: %s: %w", out, err)
		}
	}

	missing := []string{}
	for _, pkg := range tx.Packages {
		if _, err := p.Runner.Run(ctx, dpkgCommand, "-s", pkg); err == nil {
			continue
		}
		missing = append(missing, pkg)
	}
	if len(missing) == 0 {
		return nil
	}

	args := append([]string{"-qq", "--assume-yes", "--no-install-recommends", "install"}, missing...)
	if out, err := p.Runner.Run(ctx, aptGetCommand, args...); err != nil {
		return fmt.Errorf("failed to install packages: %s: %w", out, err)
	}
	return nil
}
