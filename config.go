package main

import (
	"bytes"
	"fmt"

	"github.com/miekg/hostprep/plan"
	toml "github.com/pelletier/go-toml/v2"
)

// Config holds the hostprep config file.
type Config struct {
	Keys   []string // Authorized SSH public keys, in authorized_keys format.
	Global Settings
	Hosts  []*Host
}

// Settings are the per host settings, when not set in a host they are taken from the global section.
type Settings struct {
	YumRepos   string   `toml:"yum_repos"`   // "false" or a comma separated list of mirrors.
	YumServer  string   `toml:"yum_server"`  // Mirror server address for the local mirror.
	Root       string   `toml:"root"`        // Directory with staged packages.
	WorkDir    string   `toml:"workdir"`     // Where staged packages are copied to.
	NTPServers []string `toml:"ntp_servers"` // Time servers for ntp.conf.
	PipVersion string   `toml:"pip_version"` // Pinned pip version.
	Packages   []string `toml:"packages"`    // Replaces the default package set.
}

// parseConfig parses doc, fields not known to Config are an error.
func parseConfig(doc []byte) (Config, error) {
	var c Config
	d := toml.NewDecoder(bytes.NewReader(doc))
	d.DisallowUnknownFields()
	if err := d.Decode(&c); err != nil {
		return c, err
	}
	return c, c.Valid()
}

// Valid checks the config in c and returns nil of all mandatory fields have been set.
func (c Config) Valid() error {
	seen := map[string]bool{}
	for i, h := range c.Hosts {
		if h.Machine == "" {
			return fmt.Errorf("host #%d: machine is not set", i)
		}
		if seen[h.Machine] {
			return fmt.Errorf("host %q: defined more than once", h.Machine)
		}
		seen[h.Machine] = true
		if h.Family != "" {
			if _, err := plan.ParseFamily(h.Family); err != nil {
				return fmt.Errorf("host %q: %s", h.Machine, err)
			}
		}
	}
	return nil
}

// Host returns the host with machine name m, or nil.
func (c Config) Host(m string) *Host {
	for _, h := range c.Hosts {
		if h.Machine == m {
			return h
		}
	}
	return nil
}
