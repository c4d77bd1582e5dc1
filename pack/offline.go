package pack

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/miekg/hostprep/oscmd"
	"go.science.ru.nl/log"
)

// Offline builds the self-extracting installer on top of the distribution tarball.
type Offline struct {
	InstallerScript string // Turns the tarball into a self-extracting binary: <script> <tarball> <binary>.
	TitleScript     string // Embeds the product title in the binary: <script> <binary> <title>.
	BuildScript     string // Produces the final installer: <script> <archive> <output>.
	Title           string
	Runner          oscmd.Runner
}

// Build builds the tarball for b, wraps it into the installer and returns the path of the final artifact.
func (o *Offline) Build(ctx context.Context, b Bundle) (string, error) {
	for _, s := range []string{o.InstallerScript, o.TitleScript, o.BuildScript} {
		if !exists(s) {
			return "", fmt.Errorf("%w: script %q", ErrMissingInput, s)
		}
	}

	tarball, err := Build(ctx, b)
	if err != nil {
		return "", err
	}

	bin := filepath.Join(b.OutDir, b.Name+"-installer.bin")
	if err := o.bash(ctx, o.InstallerScript, tarball, bin); err != nil {
		return "", err
	}
	if err := o.bash(ctx, o.TitleScript, bin, o.Title); err != nil {
		return "", err
	}

	offline := filepath.Join(b.OutDir, b.Name+"-offline.tar.gz")
	if err := Archive(ctx, offline, bin); err != nil {
		return "", err
	}

	final := filepath.Join(b.OutDir, b.Name+"-offline.bin")
	if err := o.bash(ctx, o.BuildScript, offline, final); err != nil {
		return "", err
	}
	log.Infof("Built offline installer %s", final)
	return final, nil
}

func (o *Offline) bash(ctx context.Context, script string, args ...string) error {
	out, err := o.Runner.Run(ctx, "bash", append([]string{script}, args...)...)
	if err != nil {
		return fmt.Errorf("%s failed: %s: %w", filepath.Base(script), out, err)
	}
	return nil
}
