//go:build windows

package supervisor

import (
	"errors"
	"os"
	"syscall"
)

// terminate requests termination of pid. Windows has no SIGTERM; Kill maps to
// TerminateProcess. Zombies do not exist on Windows.
func terminate(pid int) (string, bool) {
	p, err := os.FindProcess(pid)
	if err != nil {
		return "no such process", false
	}
	if err := p.Kill(); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			return "no such process", false
		}
		if errors.Is(err, os.ErrPermission) {
			return "permission denied", false
		}
		return err.Error(), false
	}
	return "", true
}

// processExists checks liveness via a null signal.
func processExists(pid int) bool {
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return p.Signal(syscall.Signal(0)) == nil
}
