package system

import (
	"fmt"
	"os"
	"sync"
)

// Recorder is an in-memory Interface implementation for tests. It records every
// call in order and can be told to fail specific operations, which is how the
// idempotency and failure-policy tests count writes and restarts.
type Recorder struct {
	mu sync.Mutex

	Calls     []string
	Installed map[string]bool
	Files     map[string][]byte
	Modes     map[string]os.FileMode
	Active    map[string]bool

	// FailInstall, FailWrite, and FailRestart make the matching operation fail
	// once for the named package/path/service, then clear themselves.
	FailInstall map[string]error
	FailWrite   map[string]error
	FailRestart map[string]error
}

// NewRecorder returns an empty recorder with all packages absent and all
// services inactive.
func NewRecorder() *Recorder {
	return &Recorder{
		Installed:   map[string]bool{},
		Files:       map[string][]byte{},
		Modes:       map[string]os.FileMode{},
		Active:      map[string]bool{},
		FailInstall: map[string]error{},
		FailWrite:   map[string]error{},
		FailRestart: map[string]error{},
	}
}

func (r *Recorder) record(format string, args ...interface{}) {
	r.Calls = append(r.Calls, fmt.Sprintf(format, args...))
}

// CallCount returns how many recorded calls start with the given prefix.
func (r *Recorder) CallCount(prefix string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.Calls {
		if len(c) >= len(prefix) && c[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

func (r *Recorder) InstallPackage(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("install %s", name)
	if err := r.FailInstall[name]; err != nil {
		delete(r.FailInstall, name)
		return err
	}
	r.Installed[name] = true
	return nil
}

func (r *Recorder) WriteFile(path string, content []byte, mode os.FileMode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("write %s", path)
	if err := r.FailWrite[path]; err != nil {
		delete(r.FailWrite, path)
		return err
	}
	r.Files[path] = append([]byte(nil), content...)
	r.Modes[path] = mode
	return nil
}

func (r *Recorder) RestartService(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("restart %s", name)
	if err := r.FailRestart[name]; err != nil {
		delete(r.FailRestart, name)
		return err
	}
	r.Active[name] = true
	return nil
}

func (r *Recorder) StopService(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("stop %s", name)
	r.Active[name] = false
	return nil
}

func (r *Recorder) IsServiceActive(name string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Active[name], nil
}
