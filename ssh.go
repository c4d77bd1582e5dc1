package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/gliderlabs/ssh"
	"github.com/miekg/hostprep/proto"
	"go.science.ru.nl/log"
)

var sshRoutes = map[string]func(Config, ssh.Session){
	"/list/hosts":  sshListHosts,
	"/list/host":   sshListHost,
	"/state/apply": sshApplyHost,
}

// newSSHServer returns an SSH server listening on addr that only accepts the public keys from the config.
func newSSHServer(c Config, addr string) (*ssh.Server, error) {
	keys := []ssh.PublicKey{}
	for _, k := range c.Keys {
		pub, _, _, _, err := ssh.ParseAuthorizedKey([]byte(k))
		if err != nil {
			return nil, fmt.Errorf("failed to parse key %q: %s", k, err)
		}
		keys = append(keys, pub)
	}

	srv := &ssh.Server{
		Addr: addr,
		Handler: func(s ssh.Session) {
			if len(s.Command()) == 0 {
				io.WriteString(s, http.StatusText(http.StatusBadRequest))
				s.Exit(1)
				return
			}
			if f, ok := sshRoutes[s.Command()[0]]; ok {
				log.Infof("SSH %q from %s: %v", s.User(), s.RemoteAddr(), s.Command())
				f(c, s)
				return
			}
			io.WriteString(s, http.StatusText(http.StatusNotFound))
			s.Exit(1)
		},
		PublicKeyHandler: func(ctx ssh.Context, key ssh.PublicKey) bool {
			for _, k := range keys {
				if ssh.KeysEqual(key, k) {
					return true
				}
			}
			log.Warningf("SSH %q from %s: unknown public key", ctx.User(), ctx.RemoteAddr())
			return false
		},
	}
	return srv, nil
}

func sshListHosts(c Config, s ssh.Session) {
	lh := proto.ListHosts{
		ListHosts: make([]proto.ListHost, len(c.Hosts)),
	}
	for i, h := range c.Hosts {
		lh.ListHosts[i] = listHost(h, false)
	}
	data, err := json.Marshal(lh)
	if err != nil {
		io.WriteString(s, http.StatusText(http.StatusInternalServerError))
		s.Exit(1)
		return
	}
	s.Write(data)
	s.Exit(0)
}

func sshListHost(c Config, s ssh.Session) {
	if len(s.Command()) < 2 {
		io.WriteString(s, http.StatusText(http.StatusBadRequest)+", need machine")
		s.Exit(1)
		return
	}
	h := c.Host(s.Command()[1])
	if h == nil {
		io.WriteString(s, http.StatusText(http.StatusNotFound))
		s.Exit(1)
		return
	}
	data, err := json.Marshal(listHost(h, true))
	if err != nil {
		io.WriteString(s, http.StatusText(http.StatusInternalServerError))
		s.Exit(1)
		return
	}
	s.Write(data)
	s.Exit(0)
}

func sshApplyHost(c Config, s ssh.Session) {
	if len(s.Command()) < 2 {
		io.WriteString(s, http.StatusText(http.StatusBadRequest)+", need machine")
		s.Exit(1)
		return
	}
	h := c.Host(s.Command()[1])
	if h == nil {
		io.WriteString(s, http.StatusText(http.StatusNotFound))
		s.Exit(1)
		return
	}
	if !h.signalApplyNow() {
		io.WriteString(s, http.StatusText(http.StatusConflict)+", apply already pending")
		s.Exit(1)
		return
	}
	log.Infof("Machine %q, apply requested", h.Machine)
	io.WriteString(s, http.StatusText(http.StatusOK))
	s.Exit(0)
}
