package system

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Interface is the host capability surface the operator relies on. The real
// package manager and service manager live behind it; everything above this
// package treats installation, file writes, and service control as opaque
// operations that either succeed or fail.
type Interface interface {
	InstallPackage(name string) error
	WriteFile(path string, content []byte, mode os.FileMode) error
	RestartService(name string) error
	StopService(name string) error
	IsServiceActive(name string) (bool, error)
}

// HostSystem implements Interface by shelling out to apt-get and systemctl.
type HostSystem struct{}

// NewHostSystem returns the real host implementation.
func NewHostSystem() *HostSystem {
	return &HostSystem{}
}

func (h *HostSystem) InstallPackage(name string) error {
	cmd := exec.Command("apt-get", "install", "--yes", name)
	cmd.Env = append(os.Environ(), "DEBIAN_FRONTEND=noninteractive")
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("apt-get install %s: %w: %s", name, err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (h *HostSystem) WriteFile(path string, content []byte, mode os.FileMode) error {
	// Write through a temp file in the same directory so a crash mid-write
	// never leaves a truncated daemon configuration behind.
	tmp, err := os.CreateTemp(dirOf(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", path, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename into %s: %w", path, err)
	}
	return nil
}

func (h *HostSystem) RestartService(name string) error {
	if out, err := exec.Command("systemctl", "restart", name).CombinedOutput(); err != nil {
		return fmt.Errorf("systemctl restart %s: %w: %s", name, err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (h *HostSystem) StopService(name string) error {
	if out, err := exec.Command("systemctl", "stop", name).CombinedOutput(); err != nil {
		return fmt.Errorf("systemctl stop %s: %w: %s", name, err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (h *HostSystem) IsServiceActive(name string) (bool, error) {
	err := exec.Command("systemctl", "is-active", "--quiet", name).Run()
	if err == nil {
		return true, nil
	}
	// is-active exits non-zero for inactive units; that is an answer, not a failure.
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return false, nil
	}
	return false, fmt.Errorf("systemctl is-active %s: %w", name, err)
}

func dirOf(path string) string {
	if i := strings.LastIndexByte(path, '/'); i > 0 {
		return path[:i]
	}
	return "."
}
