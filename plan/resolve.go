package plan

import (
	"fmt"
	"path"

	"github.com/hashicorp/go-version"
	"github.com/miekg/hostprep/ospkg"
)

// Options carries the operator supplied settings that influence a plan.
type Options struct {
	YumServer  string   // Address of the mirror server, used by the "local" mirror.
	Root       string   // Directory holding staged packages, like the pinned pip archive.
	WorkDir    string   // Staged archives are copied here before installing.
	NTPServers []string // Time servers that must be in the ntp configuration.
	PipVersion string   // The pinned pip version.
	Packages   []string // Replaces the family's default package set when not empty.
}

// DefaultOptions returns the options used for fields left empty.
func DefaultOptions() Options {
	return Options{
		YumServer:  "localhost",
		Root:       "/usr/local/hostprep",
		WorkDir:    "/tmp",
		NTPServers: []string{"0.pool.ntp.org", "1.pool.ntp.org"},
		PipVersion: "7.0.3",
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.YumServer == "" {
		o.YumServer = d.YumServer
	}
	if o.Root == "" {
		o.Root = d.Root
	}
	if o.WorkDir == "" {
		o.WorkDir = d.WorkDir
	}
	if len(o.NTPServers) == 0 {
		o.NTPServers = d.NTPServers
	}
	if o.PipVersion == "" {
		o.PipVersion = d.PipVersion
	}
	return o
}

var (
	redhatPackages = []string{"libselinux-python", "python-devel", "python-setuptools", "python-pip", "gcc", "autoconf", "ntp", "ntpdate"}
	debianPackages = []string{"python-dev", "python-setuptools", "python-pip", "gcc", "autoconf", "ntp", "ntpdate"}

	ntpService = map[Family]string{RedHat: "ntpd", Debian: "ntp"}
)

// variant is one family x repository mode combination.
type variant struct {
	family Family
	custom bool
}

type resolveFunc func(HostProfile, Selection, Options) ([]Step, error)

var variants = map[variant]resolveFunc{
	{RedHat, false}: redhatDefault,
	{RedHat, true}:  redhatMirrors,
	{Debian, false}: debian,
	{Debian, true}:  debian, // apt has no mirror switching, the selection is not consulted.
}

// Resolve returns the plan for a host with profile p and repository selection sel.
func Resolve(p HostProfile, sel Selection, opts Options) (*Plan, error) {
	opts = opts.withDefaults()
	fn, ok := variants[variant{p.Family, !sel.Default()}]
	if !ok {
		return nil, fmt.Errorf("%w: os family %q", ErrUnsupported, p.Family)
	}
	steps, err := fn(p, sel, opts)
	if err != nil {
		return nil, err
	}

	lines := make([]string, len(opts.NTPServers))
	for i, s := range opts.NTPServers {
		lines[i] = "server " + s + " iburst"
	}
	steps = append(steps,
		&EnsureLines{Path: NTPConf, Lines: lines},
		&Service{Name: ntpService[p.Family], Enable: true, Restart: true},
		&PinPip{
			Version: opts.PipVersion,
			Archive: path.Join(opts.Root, "pip-"+opts.PipVersion+".tar.gz"),
			WorkDir: opts.WorkDir,
		},
	)
	return &Plan{Profile: p, Selection: sel, Steps: steps}, nil
}

func packages(opts Options, def []string) []string {
	if len(opts.Packages) > 0 {
		return opts.Packages
	}
	return append([]string(nil), def...)
}

func redhatDefault(p HostProfile, sel Selection, opts Options) ([]Step, error) {
	return []Step{
		&EnsureRepo{Marker: EPELMarker, Package: "epel-release", Section: "epel"},
		&Install{Manager: ospkg.Yum, Transaction: ospkg.Transaction{Packages: packages(opts, redhatPackages)}},
	}, nil
}

func redhatMirrors(p HostProfile, sel Selection, opts Options) ([]Step, error) {
	steps := []Step{}
	enable := []string{}
	written := map[string]bool{}
	seen := map[string]bool{}
	for _, token := range sel.Mirrors {
		m, ids, err := lookup(token)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			if !seen[id] {
				seen[id] = true
				enable = append(enable, id)
			}
		}
		if written[m.name] {
			continue
		}
		written[m.name] = true

		release := ""
		if m.templated() {
			if release, err = centosRelease(p.Version); err != nil {
				return nil, err
			}
		}
		steps = append(steps, m.render(opts.YumServer, release))
	}

	steps = append(steps, &Install{Manager: ospkg.Yum, Transaction: ospkg.Transaction{
		Packages:    packages(opts, redhatPackages),
		EnableRepos: enable,
		DisableAll:  true,
		NoGPGCheck:  true,
	}})
	return steps, nil
}

func debian(p HostProfile, sel Selection, opts Options) ([]Step, error) {
	return []Step{
		&Install{Manager: ospkg.Apt, Transaction: ospkg.Transaction{Packages: packages(opts, debianPackages), Refresh: true}},
	}, nil
}

// centosRelease returns the release directory prefix for OS version v: centos7 for 7 and up, centos6 for 6.
func centosRelease(v string) (string, error) {
	ver, err := version.NewVersion(v)
	if err != nil {
		return "", fmt.Errorf("%w: os version %q: %s", ErrUnsupported, v, err)
	}
	major := ver.Segments()[0]
	switch {
	case major >= 7:
		return "centos7", nil
	case major == 6:
		return "centos6", nil
	}
	return "", fmt.Errorf("%w: os version %q, need 6 or later", ErrUnsupported, v)
}
