//go:build !windows

package supervisor

import (
	"bytes"
	"errors"
	"os"
	"runtime"
	"strconv"
	"syscall"
)

// terminate requests termination of pid. It signals the process group first
// so command wrappers ("go run", npm) take their children with them, falling
// back to the single process. The three tolerated conditions come back as
// (reason, false); callers log them and move on.
func terminate(pid int) (string, bool) {
	if isZombieLinux(pid) {
		return "zombie", false
	}
	err := syscall.Kill(-pid, syscall.SIGTERM)
	if err != nil {
		err = syscall.Kill(pid, syscall.SIGTERM)
	}
	switch {
	case err == nil:
		return "", true
	case errors.Is(err, syscall.ESRCH):
		return "no such process", false
	case errors.Is(err, syscall.EPERM):
		return "permission denied", false
	default:
		return err.Error(), false
	}
}

// processExists checks liveness with signal 0.
func processExists(pid int) bool {
	return syscall.Kill(pid, 0) == nil
}

// isZombieLinux returns true if /proc/<pid>/status reports a zombie state (Z) on Linux.
func isZombieLinux(pid int) bool {
	if runtime.GOOS != "linux" {
		return false
	}
	b, err := os.ReadFile("/proc/" + strconv.Itoa(pid) + "/status")
	if err != nil {
		return false
	}
	return bytes.Contains(b, []byte("State:\tZ"))
}
