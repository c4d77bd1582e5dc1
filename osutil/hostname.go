package osutil

import (
	"os"
	"strings"
)

// Hostname returns the hostname of the current machine.
func Hostname() string {
	h, _ := os.Hostname()
	return h
}

// Hostnames returns the names this machine answers to: the hostname and, when it is fully qualified, the first
// label of it.
func Hostnames() []string {
	return names(Hostname())
}

func names(h string) []string {
	if h == "" {
		return nil
	}
	short, _, found := strings.Cut(h, ".")
	if !found || short == "" {
		return []string{h}
	}
	return []string{h, short}
}
