package reconcile

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
)

// Signaler asks the consuming process to reload its configuration.
type Signaler interface {
	Signal() error
}

// PidfileSignaler sends SIGHUP to the process whose PID is stored in
// Path. The consumer writes the pidfile; a missing file means the
// consumer is not running, which is not an error worth retrying.
type PidfileSignaler struct {
	Path string
}

func (s *PidfileSignaler) Signal() error {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return fmt.Errorf("reconcile: read pidfile %s: %w", s.Path, err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return fmt.Errorf("reconcile: pidfile %s: bad pid %q", s.Path, strings.TrimSpace(string(data)))
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("reconcile: find pid %d: %w", pid, err)
	}
	if err := proc.Signal(syscall.SIGHUP); err != nil {
		return fmt.Errorf("reconcile: signal pid %d: %w", pid, err)
	}
	return nil
}
