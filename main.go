package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/miekg/hostprep/apply"
	"github.com/miekg/hostprep/oscmd"
	"github.com/miekg/hostprep/osutil"
	"github.com/spf13/pflag"
	"go.science.ru.nl/log"
)

var (
	ErrNotRoot  = errors.New("not root")
	ErrNoConfig = errors.New("-c flag is mandatory")
	ErrNoHosts  = errors.New("no hosts in config are for us")
)

// ExecContext holds the flags.
type ExecContext struct {
	Hosts        []string
	ConfigSource string
	HAddr        string
	SAddr        string
	Debug        bool
	DryRun       bool
	Once         bool
}

func (exec *ExecContext) RegisterFlags(fs *pflag.FlagSet) {
	if fs == nil {
		fs = pflag.CommandLine
	}
	fs.VarP(sliceFlag{&exec.Hosts}, "hosts", "h", "hosts to act as, can be given multiple times, the hostname is used when not given")
	fs.StringVarP(&exec.ConfigSource, "config", "c", "", "config file to read")
	fs.StringVarP(&exec.HAddr, "addr", "a", ":8000", "http address to listen on for metrics and control")
	fs.StringVarP(&exec.SAddr, "ssh", "s", ":2222", "ssh address to listen on for control")
	fs.BoolVarP(&exec.Debug, "debug", "d", false, "enable debug logging")
	fs.BoolVarP(&exec.DryRun, "dry-run", "n", false, "only log what would be done")
	fs.BoolVarP(&exec.Once, "once", "o", false, "apply the plans and exit, don't serve")
}

func run(exec *ExecContext) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if exec.Debug {
		log.D.Set()
	}
	if exec.ConfigSource == "" {
		return ErrNoConfig
	}
	if !exec.DryRun && os.Geteuid() != 0 {
		return ErrNotRoot
	}
	hostnames := exec.Hosts
	if len(hostnames) == 0 {
		hostnames = osutil.Hostnames()
	}

	doc, err := os.ReadFile(exec.ConfigSource)
	if err != nil {
		return err
	}
	c, err := parseConfig(doc)
	if err != nil {
		return fmt.Errorf("the configuration is not valid: %s", err)
	}

	mine := Config{Keys: c.Keys, Global: c.Global}
	for _, h := range c.Hosts {
		if !h.forMe(hostnames) {
			continue
		}
		h1 := h.merge(c.Global)
		log.Infof("Machine %q, repos %q", h1.Machine, h1.YumRepos)
		mine.Hosts = append(mine.Hosts, h1)
	}
	if len(mine.Hosts) == 0 {
		return fmt.Errorf("%w: %v", ErrNoHosts, hostnames)
	}

	e := &apply.Executor{Runner: &oscmd.Exec{}, DryRun: exec.DryRun}

	if exec.Once {
		var errs []error
		for _, h := range mine.Hosts {
			if err := h.run(ctx, e); err != nil {
				errs = append(errs, fmt.Errorf("machine %q: %w", h.Machine, err))
			}
		}
		return errors.Join(errs...)
	}

	var wg sync.WaitGroup
	for _, h := range mine.Hosts {
		wg.Add(1)
		go func(h *Host) {
			defer wg.Done()
			h.provision(ctx, e)
		}(h)
	}

	router := newRouter(mine)
	go func() {
		if err := http.ListenAndServe(exec.HAddr, router); err != nil {
			log.Fatal(err)
		}
	}()

	if len(mine.Keys) > 0 {
		srv, err := newSSHServer(mine, exec.SAddr)
		if err != nil {
			return err
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil {
				log.Fatal(err)
			}
		}()
		log.Infof("Launched ssh server on %s", exec.SAddr)
	}
	log.Infof("Launched server on %s, provisioning %d hosts", exec.HAddr, len(mine.Hosts))

	done := make(chan os.Signal, 1)
	signal.Notify(done, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-done:
			cancel()
		case <-ctx.Done():
		}
	}()
	wg.Wait()
	return nil
}

func main() {
	exec := ExecContext{}
	exec.RegisterFlags(nil)
	pflag.Parse()

	if err := run(&exec); err != nil {
		log.Fatal(err)
	}
}
