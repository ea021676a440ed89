package service

import (
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"

	"github.com/loykin/devrun/internal/logger"
)

// Spec describes one long-running development service managed by a session.
type Spec struct {
	Name        string        `json:"name" mapstructure:"name"`
	Command     string        `json:"command" mapstructure:"command"`         // command to start the service (shell-aware)
	WorkDir     string        `json:"work_dir" mapstructure:"workdir"`        // optional working dir, passed to the child, never chdir'd into
	Env         []string      `json:"env" mapstructure:"env"`                 // optional extra env (K=V)
	Interactive bool          `json:"interactive" mapstructure:"interactive"` // child prompts for confirmation before exiting
	Color       string        `json:"color" mapstructure:"color"`             // palette color name for the output label ("blue", "green", ...)
	Log         logger.Config `json:"log" mapstructure:"log"`                 // optional capture file for relayed output
}

var safeName = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// Validate checks the fields used to derive pidfile and capture paths.
func (s *Spec) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return errors.New("service name required")
	}
	if !safeName.MatchString(s.Name) {
		return fmt.Errorf("invalid service name %q: allowed [A-Za-z0-9._-]", s.Name)
	}
	if strings.TrimSpace(s.Command) == "" {
		return fmt.Errorf("service %s: command required", s.Name)
	}
	return nil
}

// Label returns the display label used when relaying output. Labels are
// padded to a common width so columns line up across services.
func (s *Spec) Label(width int) string {
	if len(s.Name) >= width {
		return s.Name
	}
	return s.Name + strings.Repeat(" ", width-len(s.Name))
}

// BuildCommand constructs an *exec.Cmd for the spec's Command.
// It avoids invoking a shell when not necessary, and it also respects
// an explicit shell invocation already present in the command string
// (e.g., "sh -c 'npm run dev'"), avoiding double-wrapping with another shell.
// The working directory is set on the returned command; the supervisor's own
// working directory is never mutated.
func (s *Spec) BuildCommand() *exec.Cmd {
	cmd := buildCommand(s.Command)
	if s.WorkDir != "" {
		cmd.Dir = s.WorkDir
	}
	return cmd
}

func buildCommand(cmdStr string) *exec.Cmd {
	cmdStr = strings.TrimSpace(cmdStr)
	if cmdStr == "" {
		// #nosec G204
		return exec.Command("/bin/true")
	}
	// If the command already explicitly uses a shell, honor it without adding another layer.
	if _, afterC, ok := parseExplicitShell(cmdStr); ok {
		// Always use absolute shell path to avoid PATH dependency when Env is overridden.
		// #nosec G204
		return exec.Command("/bin/sh", "-c", afterC)
	}
	// Fallback: when metacharacters are present, use /bin/sh -c
	if strings.ContainsAny(cmdStr, "|&;<>*?`$\"'(){}[]~") {
		// #nosec G204
		return exec.Command("/bin/sh", "-c", cmdStr)
	}
	parts := strings.Fields(cmdStr)
	name := parts[0]
	var args []string
	if len(parts) > 1 {
		args = parts[1:]
	}
	// ok: intentional execution, input comes from the operator's own config
	// #nosec G204
	return exec.Command(name, args...)
}

// parseExplicitShell detects patterns like "sh -c <ARG>" or "/bin/sh -c <ARG>" at the
// beginning of cmdStr. It returns (shellPath, afterCArg, true) when matched.
// It preserves the substring after "-c " verbatim to avoid breaking quoting.
func parseExplicitShell(cmdStr string) (string, string, bool) {
	trim := strings.TrimLeft(cmdStr, " \t")
	candidates := []string{"sh -c ", "/bin/sh -c ", "/usr/bin/sh -c "}
	for _, p := range candidates {
		if strings.HasPrefix(trim, p) {
			after := trim[len(p):]
			// If after is wrapped in single or double quotes, strip one pair so that
			// we pass the actual script to the shell (the outer quotes would otherwise
			// inhibit parsing/redirection inside the script).
			if n := len(after); n >= 2 {
				if (after[0] == '\'' && after[n-1] == '\'') || (after[0] == '"' && after[n-1] == '"') {
					after = after[1 : n-1]
				}
			}
			return strings.Fields(p)[0], after, true
		}
	}
	return "", "", false
}
