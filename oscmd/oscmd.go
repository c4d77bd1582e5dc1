// Package oscmd runs external commands on behalf of the provisioner. Every command is logged and counted.
package oscmd

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"sync"

	"go.science.ru.nl/log"
)

// Runner runs the command name with args and returns its combined output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// Exec is a Runner that executes real processes.
type Exec struct {
	Dir string   // Working directory, empty means the current one.
	Env []string // Extra environment, appended to a minimal PATH.
}

var _ Runner = (*Exec)(nil)

func (e *Exec) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = e.Dir
	cmd.Env = append([]string{"PATH=/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin", "LC_ALL=C"}, e.Env...)

	log.Debugf("running in %q %v", cmd.Dir, cmd.Args)

	out, err := cmd.CombinedOutput()
	if len(out) > 0 {
		log.Debug(string(out))
	}
	metricCmdOps.WithLabelValues(name).Inc()
	if err != nil {
		metricCmdFail.WithLabelValues(name).Inc()
	}

	return bytes.TrimSpace(out), err
}

// Line returns the command line for name and args as a single string, as used in logs and by Recorder.
func Line(name string, args ...string) string {
	return strings.TrimSpace(name + " " + strings.Join(args, " "))
}

// Recorder is a Runner that records the commands it is asked to run and returns canned results. It never
// executes anything.
type Recorder struct {
	Out map[string][]byte // Output per command line.
	Err map[string]error  // Error per command line.

	mu    sync.Mutex
	lines []string
}

var _ Runner = (*Recorder)(nil)

func (r *Recorder) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	line := Line(name, args...)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, line)
	return r.Out[line], r.Err[line]
}

// Lines returns all command lines run so far.
func (r *Recorder) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lines...)
}
