package registry

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Registry persists one pidfile per service under a session-local directory.
// A start invocation writes records; a later stop invocation reads them back
// to terminate whatever is still running. The directory is created lazily on
// the first Record call. Start and stop are assumed never to run concurrently
// against the same directory, so no file locking is performed.
type Registry struct {
	dir string
}

// Record is one (service name, pid) entry read back from the registry.
type Record struct {
	Name string
	PID  int
}

func New(dir string) *Registry { return &Registry{dir: dir} }

// Dir returns the backing directory.
func (r *Registry) Dir() string { return r.dir }

// Path returns the pidfile path for a service name.
func (r *Registry) Path(name string) string {
	return filepath.Join(r.dir, name+".pid")
}

// Record persists the pid for name, overwriting any prior record.
func (r *Registry) Record(name string, pid int) error {
	if name == "" {
		return errors.New("empty service name")
	}
	if err := os.MkdirAll(r.dir, 0o750); err != nil {
		return fmt.Errorf("create pid dir %s: %w", r.dir, err)
	}
	if err := os.WriteFile(r.Path(name), []byte(strconv.Itoa(pid)), 0o600); err != nil {
		return fmt.Errorf("write pidfile for %s: %w", name, err)
	}
	return nil
}

// All returns every persisted record, in no particular order. Files whose
// contents do not parse as a pid are removed and skipped; such garbage can
// never be terminated, so keeping it would only poison later stop cycles.
// A missing directory yields an empty result, not an error.
func (r *Registry) All() ([]Record, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var recs []Record
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".pid") {
			continue
		}
		name := strings.TrimSuffix(e.Name(), ".pid")
		b, err := os.ReadFile(filepath.Join(r.dir, e.Name()))
		if err != nil {
			continue
		}
		pid, err := strconv.Atoi(strings.TrimSpace(string(b)))
		if err != nil || pid <= 0 {
			_ = os.Remove(filepath.Join(r.dir, e.Name()))
			continue
		}
		recs = append(recs, Record{Name: name, PID: pid})
	}
	return recs, nil
}

// Clear removes the record for name. Removing an absent record is a no-op.
func (r *Registry) Clear(name string) error {
	err := os.Remove(r.Path(name))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
