//go:build windows

package supervisor

import "os/exec"

// setSysProcAttr is a no-op on Windows; there are no Unix process groups.
func setSysProcAttr(_ *exec.Cmd) {}
