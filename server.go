package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/miekg/hostprep/apply"
	"github.com/miekg/hostprep/osutil"
	"github.com/miekg/hostprep/plan"
	"go.science.ru.nl/log"
)

// Host contains the provisioning configuration tied to a specific machine.
type Host struct {
	Machine string // Identifier for this machine, matched against the hostnames we act as.
	Family  string // OS family, detected from /etc/os-release when empty.
	Version string // OS version, detected from /etc/os-release when empty.
	Settings

	applyNow chan struct{} // do an on demand apply

	mu         sync.RWMutex
	state      State
	stateInfo  string    // Extra info some states carry.
	stateStamp time.Time // When did state change (UTC).
	plan       *plan.Plan
	report     *apply.Report
}

// Current State of a host.
type State int

const (
	StatePending State = iota // Nothing has been applied yet.
	StateRunning              // The plan is being applied.
	StateOK                   // The plan was applied successfully.
	StateBroken               // Resolving or applying the plan failed.
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "PENDING"
	case StateRunning:
		return "RUNNING"
	case StateOK:
		return "OK"
	case StateBroken:
		return "BROKEN"
	}
	return ""
}

func (h *Host) State() (State, string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state, h.stateInfo
}

func (h *Host) SetState(st State, info string) {
	log.Infof("Host %q, setting to state: %s", h.Machine, st)
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stateStamp = time.Now().UTC()
	h.state = st
	h.stateInfo = info

	metricHostState.WithLabelValues(h.Machine).Set(float64(h.state))
	metricHostTimestamp.WithLabelValues(h.Machine).Set(float64(h.stateStamp.Unix()))
}

func (h *Host) Change() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.stateStamp
}

// Plan returns the last resolved plan and the report of the last apply, both may be nil.
func (h *Host) Plan() (*plan.Plan, *apply.Report) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.plan, h.report
}

func (h *Host) setPlan(p *plan.Plan, r *apply.Report) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.plan = p
	h.report = r
}

// signalApplyNow asks the provisioning routine to apply the plan again. It returns false if a request is already
// pending or nobody is listening.
func (h *Host) signalApplyNow() bool {
	select {
	case h.applyNow <- struct{}{}:
		return true
	default:
		return false
	}
}

// merge merges anything defined in global into h when h doesn't specify it and returns h.
func (h *Host) merge(global Settings) *Host {
	if h.YumRepos == "" {
		h.YumRepos = global.YumRepos
	}
	if h.YumServer == "" {
		h.YumServer = global.YumServer
	}
	if h.Root == "" {
		h.Root = global.Root
	}
	if h.WorkDir == "" {
		h.WorkDir = global.WorkDir
	}
	if len(h.NTPServers) == 0 {
		h.NTPServers = global.NTPServers
	}
	if h.PipVersion == "" {
		h.PipVersion = global.PipVersion
	}
	if len(h.Packages) == 0 {
		h.Packages = global.Packages
	}
	h.applyNow = make(chan struct{}, 1)
	return h
}

// forMe compares the hostnames with the host's machine name, if there is a match this host is us.
func (h *Host) forMe(hostnames []string) bool {
	for _, n := range hostnames {
		if n == h.Machine {
			return true
		}
	}
	return false
}

// profile returns the host's profile. Family and version come from the config, or from os-release.
func (h *Host) profile() (plan.HostProfile, error) {
	p := plan.HostProfile{Version: h.Version}
	var err error
	if h.Family != "" {
		p.Family, err = plan.ParseFamily(h.Family)
	} else {
		p.Family, err = plan.FamilyFromRelease(osutil.ID(), osutil.IDLike())
	}
	if p.Version == "" {
		p.Version = osutil.VersionID()
	}
	return p, err
}

func (h *Host) options() plan.Options {
	return plan.Options{
		YumServer:  h.YumServer,
		Root:       h.Root,
		WorkDir:    h.WorkDir,
		NTPServers: h.NTPServers,
		PipVersion: h.PipVersion,
		Packages:   h.Packages,
	}
}

func (h *Host) resolve() (*plan.Plan, error) {
	p, err := h.profile()
	if err != nil {
		return nil, err
	}
	metricHostInfo.WithLabelValues(h.Machine, string(p.Family), p.Version).Set(1)
	return plan.Resolve(p, plan.ParseSelection(h.YumRepos), h.options())
}

// applyMu makes sure only one plan is applied at the same time, package managers don't like to be run concurrently.
var applyMu sync.Mutex

// run resolves and applies the plan once.
func (h *Host) run(ctx context.Context, e *apply.Executor) error {
	p, err := h.resolve()
	if err != nil {
		log.Warningf("Host %q, error resolving plan: %s", h.Machine, err)
		h.SetState(StateBroken, fmt.Sprintf("error resolving plan: %s", err))
		return err
	}
	h.setPlan(p, nil)
	h.SetState(StateRunning, fmt.Sprintf("%s %s, repos %s", p.Profile.Family, p.Profile.Version, p.Selection))

	applyMu.Lock()
	report, err := e.Apply(ctx, p)
	applyMu.Unlock()

	h.setPlan(p, report)
	metricHostApply.WithLabelValues(h.Machine).Inc()
	if err != nil {
		log.Warningf("Host %q, error applying plan: %s", h.Machine, err)
		h.SetState(StateBroken, err.Error())
		return err
	}
	log.Infof("Host %q, applied %d steps, %d changed", h.Machine, len(report.Results), report.Changed())
	h.SetState(StateOK, "")
	return nil
}

// provision applies the plan and then waits for requests to apply it again. There is no periodic re-apply.
func (h *Host) provision(ctx context.Context, e *apply.Executor) {
	log.Infof("Launched provisioning routine for %q", h.Machine)
	for {
		h.run(ctx, e)

		select {
		case <-h.applyNow:
		case <-ctx.Done():
			return
		}
	}
}
