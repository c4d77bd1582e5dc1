package apply

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/miekg/hostprep/oscmd"
	"github.com/miekg/hostprep/plan"
	"go.science.ru.nl/log"
	"gopkg.in/ini.v1"
)

const epelRepo = `[epel]
name=Extra Packages for Enterprise Linux 7 - $basearch
#baseurl=http://download.fedoraproject.org/pub/epel/7/$basearch
metalink=https://mirrors.fedoraproject.org/metalink?repo=epel-7&arch=$basearch
failovermethod=priority
enabled=0
gpgcheck=1

[epel-debuginfo]
name=Extra Packages for Enterprise Linux 7 - $basearch - Debug
enabled=0
`

// installRunner creates the EPEL marker when epel-release is installed.
type installRunner struct {
	oscmd.Recorder
	root string
}

func (r *installRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if oscmd.Line(name, args...) == "/usr/bin/yum install -y epel-release" {
		os.MkdirAll(filepath.Join(r.root, plan.RepoDir), 0755)
		os.WriteFile(filepath.Join(r.root, plan.EPELMarker), []byte(epelRepo), 0644)
	}
	return r.Recorder.Run(ctx, name, args...)
}

func mustResolve(t *testing.T, p plan.HostProfile, sel string, opts plan.Options) *plan.Plan {
	t.Helper()
	pl, err := plan.Resolve(p, plan.ParseSelection(sel), opts)
	if err != nil {
		t.Fatal(err)
	}
	return pl
}

func stage(t *testing.T, root, archive string) {
	t.Helper()
	p := filepath.Join(root, archive)
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte("pip archive"), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestApplyRedHatDefault(t *testing.T) {
	log.Discard()
	root := t.TempDir()
	opts := plan.Options{Root: "/staged", WorkDir: "/work"}
	stage(t, root, "/staged/pip-7.0.3.tar.gz")
	r := &installRunner{root: root}
	e := &Executor{Root: root, Runner: r}
	pl := mustResolve(t, plan.HostProfile{Family: plan.RedHat, Version: "7"}, "false", opts)

	if _, err := e.Apply(context.TODO(), pl); err != nil {
		t.Fatal(err)
	}
	// run twice, the second run must not duplicate anything.
	rep, err := e.Apply(context.TODO(), pl)
	if err != nil {
		t.Fatal(err)
	}

	cfg, err := ini.Load(filepath.Join(root, plan.EPELMarker))
	if err != nil {
		t.Fatal(err)
	}
	if got := cfg.Section("epel").Key("enabled").String(); got != "1" {
		t.Errorf("expected [epel] to be enabled, got enabled=%q", got)
	}
	if got := cfg.Section("epel-debuginfo").Key("enabled").String(); got != "0" {
		t.Errorf("expected [epel-debuginfo] to stay disabled, got enabled=%q", got)
	}
	buf, _ := os.ReadFile(filepath.Join(root, plan.EPELMarker))
	if n := strings.Count(string(buf), "enabled"); n != 2 {
		t.Errorf("expected 2 enabled keys in epel.repo, got %d:\n%s", n, buf)
	}

	installs := 0
	for _, l := range r.Lines() {
		if l == "/usr/bin/yum install -y epel-release" {
			installs++
		}
	}
	if installs != 1 {
		t.Errorf("expected epel-release to be installed once, got %d", installs)
	}
	if rep.Results[0].Changed {
		t.Errorf("expected second EPEL step to be a no-op")
	}
}

func TestApplyEPELMissing(t *testing.T) {
	log.Discard()
	root := t.TempDir()
	e := &Executor{Root: root, Runner: &oscmd.Recorder{}}
	pl := mustResolve(t, plan.HostProfile{Family: plan.RedHat, Version: "7"}, "false", plan.Options{})

	rep, err := e.Apply(context.TODO(), pl)
	if err == nil {
		t.Fatal("expected an error when epel-release doesn't create the repo file")
	}
	if len(rep.Results) != 1 {
		t.Errorf("expected the run to stop after the first step, got %d results", len(rep.Results))
	}
}

func TestApplyAliyun(t *testing.T) {
	log.Discard()
	root := t.TempDir()
	stage(t, root, "/usr/local/hostprep/pip-7.0.3.tar.gz")
	r := &oscmd.Recorder{}
	e := &Executor{Root: root, Runner: r}
	pl := mustResolve(t, plan.HostProfile{Family: plan.RedHat, Version: "7"}, "aliyun", plan.Options{})

	if _, err := e.Apply(context.TODO(), pl); err != nil {
		t.Fatal(err)
	}

	cfg, err := ini.Load(filepath.Join(root, "/etc/yum.repos.d/hostprep-aliyun-yum.repo"))
	if err != nil {
		t.Fatal(err)
	}
	sections := []string{}
	for _, name := range cfg.SectionStrings() {
		if name != ini.DefaultSection {
			sections = append(sections, name)
		}
	}
	want := []string{"alibase", "aliupdates", "aliextras", "aliepel"}
	if diff := cmp.Diff(want, sections); diff != "" {
		t.Errorf("repo file sections mismatch (-want +got):\n%s", diff)
	}
	sec := cfg.Section("aliepel")
	if got := sec.Key("baseurl").String(); got != "http://mirrors.aliyun.com/epel/$releasever/$basearch" {
		t.Errorf("unexpected baseurl %q", got)
	}
	if sec.Key("gpgcheck").String() != "0" || sec.Key("enabled").String() != "0" {
		t.Errorf("expected gpgcheck=0 and enabled=0, got %q and %q", sec.Key("gpgcheck"), sec.Key("enabled"))
	}

	install := "/usr/bin/yum --disablerepo=* --enablerepo=alibase,aliupdates,aliextras,aliepel --nogpgcheck install -y"
	found := false
	for _, l := range r.Lines() {
		if strings.HasPrefix(l, install) {
			found = true
		}
	}
	if !found {
		t.Errorf("expected %q in %v", install, r.Lines())
	}
}

func TestEnsureLines(t *testing.T) {
	for _, test := range []struct {
		name    string
		before  string
		lines   []string
		after   string
		changed bool
	}{
		{
			name:    "absent",
			before:  "driftfile /var/lib/ntp/drift",
			lines:   []string{"server 0.pool.ntp.org iburst", "server 1.pool.ntp.org iburst"},
			after:   "driftfile /var/lib/ntp/drift\nserver 0.pool.ntp.org iburst\nserver 1.pool.ntp.org iburst\n",
			changed: true,
		},
		{
			name:    "present",
			before:  "server 0.pool.ntp.org iburst\nserver 1.pool.ntp.org iburst\n",
			lines:   []string{"server 0.pool.ntp.org iburst", "server 1.pool.ntp.org iburst"},
			after:   "server 0.pool.ntp.org iburst\nserver 1.pool.ntp.org iburst\n",
			changed: false,
		},
		{
			name:    "partial",
			before:  "server 1.pool.ntp.org iburst\n",
			lines:   []string{"server 0.pool.ntp.org iburst", "server 1.pool.ntp.org iburst"},
			after:   "server 1.pool.ntp.org iburst\nserver 0.pool.ntp.org iburst\n",
			changed: true,
		},
	} {
		root := t.TempDir()
		os.MkdirAll(filepath.Join(root, "etc"), 0755)
		os.WriteFile(filepath.Join(root, plan.NTPConf), []byte(test.before), 0644)
		e := &Executor{Root: root}

		for i := 0; i < 2; i++ {
			changed, err := e.ensureLines(&plan.EnsureLines{Path: plan.NTPConf, Lines: test.lines})
			if err != nil {
				t.Fatalf("%s: %s", test.name, err)
			}
			if i == 0 && changed != test.changed {
				t.Errorf("%s: changed = %t, want %t", test.name, changed, test.changed)
			}
			if i == 1 && changed {
				t.Errorf("%s: second run changed the file", test.name)
			}
		}
		buf, _ := os.ReadFile(filepath.Join(root, plan.NTPConf))
		if string(buf) != test.after {
			t.Errorf("%s: got %q, want %q", test.name, buf, test.after)
		}
	}
}

func TestPinPip(t *testing.T) {
	log.Discard()
	const archive = "/staged/pip-7.0.3.tar.gz"

	for _, test := range []struct {
		name    string
		out     string
		err     error
		workdir string
		changed bool
	}{
		{name: "pinned", out: "pip 7.0.3 from /usr/lib/python2.7/site-packages (python 2.7)", workdir: "/work", changed: false},
		{name: "other", out: "pip 9.0.1 from /usr/lib/python2.7/site-packages (python 2.7)", workdir: "/work", changed: true},
		{name: "version check fails", err: errors.New("pip: command not found"), workdir: "/work", changed: true},
		{name: "workdir is root", err: errors.New("pip: command not found"), workdir: "/staged", changed: true},
	} {
		root := t.TempDir()
		stage(t, root, archive)
		s := &plan.PinPip{Version: "7.0.3", Archive: archive, WorkDir: test.workdir}
		r := &oscmd.Recorder{
			Out: map[string][]byte{"pip --version": []byte(test.out)},
			Err: map[string]error{"pip --version": test.err},
		}
		e := &Executor{Root: root, Runner: r}
		changed, err := e.pinPip(context.TODO(), s)
		if err != nil {
			t.Fatalf("%s: %s", test.name, err)
		}
		if changed != test.changed {
			t.Errorf("%s: changed = %t, want %t", test.name, changed, test.changed)
		}

		staged := filepath.Join(root, test.workdir, "pip-7.0.3.tar.gz")
		want := []string{"pip --version"}
		if test.changed {
			want = append(want, "pip install --ignore-installed "+staged)
		}
		if diff := cmp.Diff(want, r.Lines()); diff != "" {
			t.Errorf("%s: commands mismatch (-want +got):\n%s", test.name, diff)
		}
		if exists(staged) != test.changed {
			t.Errorf("%s: staged archive exists = %t, want %t", test.name, exists(staged), test.changed)
		}
		if buf, _ := os.ReadFile(filepath.Join(root, archive)); string(buf) != "pip archive" {
			t.Errorf("%s: bundled archive has content %q after staging", test.name, buf)
		}
		if test.changed {
			if buf, _ := os.ReadFile(staged); string(buf) != "pip archive" {
				t.Errorf("%s: staged archive has content %q", test.name, buf)
			}
		}
	}
}

func TestService(t *testing.T) {
	log.Discard()
	restartErr := errors.New("Job for ntpd.service failed")

	for _, test := range []struct {
		name    string
		err     map[string]error
		want    []string
		wantErr error
	}{
		{
			name: "enable and restart",
			want: []string{"systemctl enable ntpd", "systemctl restart ntpd"},
		},
		{
			name:    "restart fails",
			err:     map[string]error{"systemctl restart ntpd": restartErr},
			want:    []string{"systemctl enable ntpd", "systemctl restart ntpd"},
			wantErr: restartErr,
		},
	} {
		root := t.TempDir()
		stage(t, root, "/staged/pip-7.0.3.tar.gz")
		r := &oscmd.Recorder{Err: test.err}
		e := &Executor{Root: root, Runner: r}
		pl := mustResolve(t, plan.HostProfile{Family: plan.RedHat, Version: "7"}, "aliyun", plan.Options{Root: "/staged", WorkDir: "/work"})

		rep, err := e.Apply(context.TODO(), pl)
		if !errors.Is(err, test.wantErr) {
			t.Fatalf("%s: Apply() = %v, want %v", test.name, err, test.wantErr)
		}

		systemctl := []string{}
		pip := 0
		for _, l := range r.Lines() {
			if strings.HasPrefix(l, "systemctl ") {
				systemctl = append(systemctl, l)
			}
			if strings.HasPrefix(l, "pip ") {
				pip++
			}
		}
		if diff := cmp.Diff(test.want, systemctl); diff != "" {
			t.Errorf("%s: systemctl commands mismatch (-want +got):\n%s", test.name, diff)
		}

		last := rep.Results[len(rep.Results)-1]
		if test.wantErr != nil {
			if last.Kind != "service" {
				t.Errorf("%s: expected the run to stop at the service step, stopped at %q", test.name, last.Kind)
			}
			if pip != 0 {
				t.Errorf("%s: expected no pip commands after the failed service step, got %d", test.name, pip)
			}
			continue
		}
		if last.Kind != "pip" || len(rep.Results) != len(pl.Steps) {
			t.Errorf("%s: expected all %d steps to run, got %d", test.name, len(pl.Steps), len(rep.Results))
		}
	}
}

func TestPinPipMissingArchive(t *testing.T) {
	log.Discard()
	e := &Executor{Root: t.TempDir(), Runner: &oscmd.Recorder{}}
	if _, err := e.pinPip(context.TODO(), &plan.PinPip{Version: "7.0.3", Archive: "/nope/pip-7.0.3.tar.gz", WorkDir: "/work"}); err == nil {
		t.Fatal("expected an error for a missing pip archive")
	}
}

func TestApplyDryRun(t *testing.T) {
	log.Discard()
	root := t.TempDir()
	r := &oscmd.Recorder{}
	e := &Executor{Root: root, Runner: r, DryRun: true}
	pl := mustResolve(t, plan.HostProfile{Family: plan.RedHat, Version: "7"}, "aliyun,local", plan.Options{})

	rep, err := e.Apply(context.TODO(), pl)
	if err != nil {
		t.Fatal(err)
	}
	if len(r.Lines()) != 0 {
		t.Errorf("dry run ran commands: %v", r.Lines())
	}
	entries, _ := os.ReadDir(root)
	if len(entries) != 0 {
		t.Errorf("dry run wrote files: %v", entries)
	}
	if len(rep.Results) != len(pl.Steps) || rep.Changed() != 0 {
		t.Errorf("expected %d skipped results, got %+v", len(pl.Steps), rep.Results)
	}
}

func TestPipVersion(t *testing.T) {
	for in, want := range map[string]string{
		"pip 7.0.3 from /usr/lib/python2.7/site-packages (python 2.7)": "7.0.3",
		"pip 21.3.1 from /usr/lib/python3/dist-packages/pip (python 3.9)": "21.3.1",
		"bash: pip: command not found":                                   "",
		"":                                                                "",
	} {
		if got := PipVersion([]byte(in)); got != want {
			t.Errorf("PipVersion(%q) = %q, want %q", in, got, want)
		}
	}
}
