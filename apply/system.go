package apply

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/miekg/hostprep/plan"
	"go.science.ru.nl/log"
)

const (
	systemctlCommand = "systemctl"
	pipCommand       = "pip"
)

// ensureLines appends the lines that are missing from the file. The file is created when it doesn't exist.
func (e *Executor) ensureLines(s *plan.EnsureLines) (bool, error) {
	p := e.path(s.Path)
	buf, err := os.ReadFile(p)
	if err != nil && !os.IsNotExist(err) {
		return false, err
	}

	present := map[string]bool{}
	for _, l := range strings.Split(string(buf), "\n") {
		present[strings.TrimSpace(l)] = true
	}
	add := &bytes.Buffer{}
	for _, l := range s.Lines {
		if present[l] {
			continue
		}
		present[l] = true
		add.WriteString(l + "\n")
	}
	if add.Len() == 0 {
		return false, nil
	}

	if len(buf) > 0 && buf[len(buf)-1] != '\n' {
		buf = append(buf, '\n')
	}
	log.Infof("Adding %d line(s) to %s", strings.Count(add.String(), "\n"), s.Path)
	return true, writeFile(p, append(buf, add.Bytes()...))
}

func (e *Executor) service(ctx context.Context, s *plan.Service) (bool, error) {
	actions := []string{}
	if s.Enable {
		actions = append(actions, "enable")
	}
	if s.Restart {
		actions = append(actions, "restart")
	}
	for _, a := range actions {
		if out, err := e.Runner.Run(ctx, systemctlCommand, a, s.Name); err != nil {
			return false, fmt.Errorf("failed to %s %s: %s: %w", a, s.Name, out, err)
		}
	}
	return len(actions) > 0, nil
}

// pinPip installs the bundled pip archive unless pip already reports the pinned version. A failing version check
// is not an error, it just means pip needs installing.
func (e *Executor) pinPip(ctx context.Context, s *plan.PinPip) (bool, error) {
	out, err := e.Runner.Run(ctx, pipCommand, "--version")
	if err == nil && PipVersion(out) == s.Version {
		log.Infof("Pip is at version %s", s.Version)
		return false, nil
	}
	if err != nil {
		log.Debugf("Probing pip version failed, installing %s: %s", s.Version, err)
	}

	staged := filepath.Join(s.WorkDir, filepath.Base(s.Archive))
	if err := copyFile(e.path(s.Archive), e.path(staged)); err != nil {
		return false, fmt.Errorf("failed to stage %s: %w", s.Archive, err)
	}
	if out, err := e.Runner.Run(ctx, pipCommand, "install", "--ignore-installed", e.path(staged)); err != nil {
		return false, fmt.Errorf("failed to install pip %s: %s: %w", s.Version, out, err)
	}
	return true, nil
}

// PipVersion returns the version from the output of pip --version, i.e. "pip 7.0.3 from /usr/lib/... (python 2.7)".
func PipVersion(out []byte) string {
	fields := strings.Fields(string(out))
	if len(fields) < 2 || fields[0] != "pip" {
		return ""
	}
	return fields[1]
}

// copyFile copies src to dst through writeFile. When both name the same file it only checks src exists.
func copyFile(src, dst string) error {
	if filepath.Clean(src) == filepath.Clean(dst) {
		_, err := os.Stat(src)
		return err
	}
	buf, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return writeFile(dst, buf)
}
