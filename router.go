package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/miekg/hostprep/osutil"
	"github.com/miekg/hostprep/proto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.science.ru.nl/log"
)

func newRouter(c Config) *mux.Router {
	router := mux.NewRouter()
	router.Path("/metrics").Handler(promhttp.Handler())

	// listing
	router.Path("/list/hosts").Methods("GET").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ListHosts(c, w, r)
	})
	router.Path("/list/host/{machine}").Methods("GET").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ListHost(c, w, r)
	})

	// state changes
	router.Path("/state/apply/{machine}").Methods("POST").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ApplyHost(c, w, r)
	})
	return router
}

// listHost returns the proto for h, with the steps of its plan when steps is true.
func listHost(h *Host, steps bool) proto.ListHost {
	state, info := h.State()
	lh := proto.ListHost{
		Machine:     h.Machine,
		Actual:      osutil.Hostname(),
		Family:      h.Family,
		Version:     h.Version,
		Repos:       h.YumRepos,
		State:       state.String(),
		StateInfo:   info,
		StateChange: h.Change().Format(time.RFC1123),
	}
	p, report := h.Plan()
	if p == nil {
		return lh
	}
	lh.Family = string(p.Profile.Family)
	lh.Version = p.Profile.Version
	lh.Repos = p.Selection.String()
	if !steps {
		return lh
	}
	for i, s := range p.Steps {
		ls := proto.ListStep{Kind: s.Kind(), Step: s.String()}
		if report != nil && i < len(report.Results) {
			res := report.Results[i]
			ls.Changed = res.Changed
			ls.Skipped = res.Skipped
			ls.Duration = res.Duration.Round(time.Millisecond).String()
			if res.Err != nil {
				ls.Error = res.Err.Error()
			}
		}
		lh.Steps = append(lh.Steps, ls)
	}
	return lh
}

func ListHosts(c Config, w http.ResponseWriter, r *http.Request) {
	lh := proto.ListHosts{
		ListHosts: make([]proto.ListHost, len(c.Hosts)),
	}
	for i, h := range c.Hosts {
		lh.ListHosts[i] = listHost(h, false)
	}
	writeJSON(w, lh)
}

func ListHost(c Config, w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	h := c.Host(vars["machine"])
	if h == nil {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		return
	}
	writeJSON(w, listHost(h, true))
}

func ApplyHost(c Config, w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	h := c.Host(vars["machine"])
	if h == nil {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		return
	}
	if !h.signalApplyNow() {
		http.Error(w, http.StatusText(http.StatusConflict)+", apply already pending", http.StatusConflict)
		return
	}
	log.Infof("Machine %q, apply requested", h.Machine)
	http.Error(w, http.StatusText(http.StatusOK), http.StatusOK)
}

func writeJSON(w http.ResponseWriter, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
