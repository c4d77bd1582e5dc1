package apply

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
	"github.com/miekg/hostprep/ospkg"
	"github.com/miekg/hostprep/plan"
	"go.science.ru.nl/log"
	"gopkg.in/ini.v1"
)

var loadOpts = ini.LoadOptions{IgnoreInlineComment: true}

// ensureRepo installs the repository package if its marker file is absent and then enables the section.
func (e *Executor) ensureRepo(ctx context.Context, s *plan.EnsureRepo) (bool, error) {
	changed := false
	marker := e.path(s.Marker)
	if !exists(marker) {
		if err := ospkg.New(ospkg.Yum, e.Runner).Install(ctx, ospkg.Transaction{Packages: []string{s.Package}}); err != nil {
			return false, err
		}
		if !exists(marker) {
			return false, fmt.Errorf("installed %s, but %s still does not exist", s.Package, s.Marker)
		}
		changed = true
	}

	cfg, err := ini.LoadSources(loadOpts, marker)
	if err != nil {
		return changed, fmt.Errorf("failed to parse %s: %w", s.Marker, err)
	}
	if !cfg.HasSection(s.Section) {
		return changed, fmt.Errorf("no section [%s] in %s", s.Section, s.Marker)
	}
	key := cfg.Section(s.Section).Key("enabled")
	if key.String() == "1" {
		return changed, nil
	}
	key.SetValue("1")
	buf := &bytes.Buffer{}
	if _, err := cfg.WriteTo(buf); err != nil {
		return changed, err
	}
	log.Infof("Enabling [%s] in %s", s.Section, s.Marker)
	return true, writeFile(marker, buf.Bytes())
}

// writeRepoFile renders the repositories as a yum .repo file. Nothing is written when the content is unchanged.
func (e *Executor) writeRepoFile(s *plan.WriteRepoFile) (bool, error) {
	buf, err := RenderRepos(s.Repos)
	if err != nil {
		return false, err
	}
	p := e.path(s.Path)
	if old, err := os.ReadFile(p); err == nil && bytes.Equal(old, buf) {
		return false, nil
	}
	return true, writeFile(p, buf)
}

// RenderRepos returns repos formatted as a yum .repo file.
func RenderRepos(repos []plan.Repo) ([]byte, error) {
	cfg := ini.Empty()
	for _, r := range repos {
		sec, err := cfg.NewSection(r.ID)
		if err != nil {
			return nil, err
		}
		for _, kv := range [][2]string{
			{"name", r.Name},
			{"baseurl", r.BaseURL},
			{"failovermethod", "priority"},
			{"enabled", bit(r.Enabled)},
			{"gpgcheck", bit(r.GPGCheck)},
		} {
			if _, err := sec.NewKey(kv[0], kv[1]); err != nil {
				return nil, err
			}
		}
	}
	buf := &bytes.Buffer{}
	_, err := cfg.WriteTo(buf)
	return buf.Bytes(), err
}

func bit(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// writeFile atomically replaces p with data, creating the directory when needed.
func writeFile(p string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return fmt.Errorf("failed to create directory %q: %s", filepath.Dir(p), err)
	}
	return renameio.WriteFile(p, data, 0644)
}

func exists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
