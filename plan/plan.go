// Package plan decides what needs to happen on a host before the distribution can be installed on it. Resolve is
// a pure function: it looks at the host's profile and the operator's repository selection and returns a Plan, a
// list of steps. Applying the plan is done elsewhere.
package plan

import (
	"errors"
	"fmt"
	"strings"

	"github.com/miekg/hostprep/ospkg"
)

var (
	// ErrUnknownMirror is returned when a selection names a mirror or repository we know nothing about.
	ErrUnknownMirror = errors.New("unknown mirror")
	// ErrUnsupported is returned for OS families or versions we can't provision.
	ErrUnsupported = errors.New("unsupported")
)

const (
	// RepoDir is where yum repository files live.
	RepoDir = "/etc/yum.repos.d"
	// EPELMarker is the repo file whose presence means EPEL is installed.
	EPELMarker = RepoDir + "/epel.repo"
	// NTPConf is the time-synchronization daemon configuration.
	NTPConf = "/etc/ntp.conf"
)

// HostProfile holds the facts of a host that matter for resolving.
type HostProfile struct {
	Family  Family
	Version string // OS version, only the major number is used and only for RedHat.
}

// Plan is the ordered list of steps for a single host.
type Plan struct {
	Profile   HostProfile
	Selection Selection
	Steps     []Step
}

// Step is one action in a plan. The set of steps is closed, the concrete types are EnsureRepo, WriteRepoFile,
// Install, EnsureLines, Service and PinPip.
type Step interface {
	Kind() string
	String() string
	step()
}

// EnsureRepo installs Package when Marker does not exist and then enables Section in Marker.
type EnsureRepo struct {
	Marker  string
	Package string
	Section string
}

// WriteRepoFile writes Repos as a yum .repo file to Path, replacing what was there.
type WriteRepoFile struct {
	Path  string
	Repos []Repo
}

// Install runs a package manager transaction.
type Install struct {
	Manager ospkg.Manager
	ospkg.Transaction
}

// EnsureLines appends each of Lines to Path unless the file already holds it.
type EnsureLines struct {
	Path  string
	Lines []string
}

// Service enables and/or restarts a systemd unit.
type Service struct {
	Name    string
	Enable  bool
	Restart bool
}

// PinPip makes sure pip is at Version. If not, Archive is copied to WorkDir and installed from there.
type PinPip struct {
	Version string
	Archive string
	WorkDir string
}

func (*EnsureRepo) step()    {}
func (*WriteRepoFile) step() {}
func (*Install) step()       {}
func (*EnsureLines) step()   {}
func (*Service) step()       {}
func (*PinPip) step()        {}

func (*EnsureRepo) Kind() string    { return "repo" }
func (*WriteRepoFile) Kind() string { return "repofile" }
func (*Install) Kind() string       { return "install" }
func (*EnsureLines) Kind() string   { return "lines" }
func (*Service) Kind() string       { return "service" }
func (*PinPip) Kind() string        { return "pip" }

func (s *EnsureRepo) String() string {
	return fmt.Sprintf("install %s unless %s exists, enable [%s]", s.Package, s.Marker, s.Section)
}

func (s *WriteRepoFile) String() string {
	ids := make([]string, len(s.Repos))
	for i := range s.Repos {
		ids[i] = s.Repos[i].ID
	}
	return fmt.Sprintf("write %s with %s", s.Path, strings.Join(ids, ", "))
}

func (s *Install) String() string {
	switch s.Manager {
	case ospkg.Yum:
		return "yum " + strings.Join(ospkg.Args(s.Transaction), " ")
	case ospkg.Apt:
		prefix := "apt-get install "
		if s.Refresh {
			prefix = "apt-get update; " + prefix
		}
		return prefix + strings.Join(s.Packages, " ")
	}
	return fmt.Sprintf("%s install %s", s.Manager, strings.Join(s.Packages, " "))
}

func (s *EnsureLines) String() string {
	return fmt.Sprintf("ensure %s has %q", s.Path, s.Lines)
}

func (s *Service) String() string {
	actions := []string{}
	if s.Enable {
		actions = append(actions, "enable")
	}
	if s.Restart {
		actions = append(actions, "restart")
	}
	return fmt.Sprintf("systemctl %s %s", strings.Join(actions, "+"), s.Name)
}

func (s *PinPip) String() string {
	return fmt.Sprintf("pin pip to %s from %s", s.Version, s.Archive)
}
