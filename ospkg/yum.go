package ospkg

import (
	"context"
	"fmt"
	"strings"

	"github.com/miekg/hostprep/oscmd"
)

// YumInstaller installs packages on RedHat and derivatives.
type YumInstaller struct {
	Runner oscmd.Runner
}

var _ Installer = (*YumInstaller)(nil)

const yumCommand = "/usr/bin/yum"

func (p *YumInstaller) Install(ctx context.Context, tx Transaction) error {
	if len(tx.Packages) == 0 {
		return nil
	}
	if out, err := p.Runner.Run(ctx, yumCommand, "clean", "metadata"); err != nil {
		return fmt.Errorf("failed to clean yum metadata: %s: %w", out, err)
	}

	if out, err := p.Runner.Run(ctx, yumCommand, Args(tx)...); err != nil {
		return fmt.Errorf("failed to install packages: %s: %w", out, err)
	}
	return nil
}

// Args returns the yum arguments for the install transaction tx.
func Args(tx Transaction) []string {
	args := []string{}
	if tx.DisableAll {
		args = append(args, "--disablerepo=*")
	}
	if len(tx.EnableRepos) > 0 {
		args = append(args, "--enablerepo="+strings.Join(tx.EnableRepos, ","))
	}
	if tx.NoGPGCheck {
		args = append(args, "--nogpgcheck")
	}
	args = append(args, "install", "-y")
	return append(args, tx.Packages...)
}
