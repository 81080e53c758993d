package sysinfo

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"runtime"
	"strconv"
	"strings"
)

// Probe supplies the local host facts published on the compute relation when
// the principal has not provided them.
type Probe interface {
	Hostname() (string, error)
	Address() (string, error)
	CPUCount() int
	FreeMemoryMB() (uint64, error)
}

// HostProbe reads host facts from the OS.
type HostProbe struct {
	// MeminfoPath defaults to /proc/meminfo; tests point it at a fixture.
	MeminfoPath string
}

// NewHostProbe returns a probe over the real host.
func NewHostProbe() *HostProbe {
	return &HostProbe{MeminfoPath: "/proc/meminfo"}
}

func (p *HostProbe) Hostname() (string, error) {
	return os.Hostname()
}

// Address returns the first global unicast IPv4 address on a non-loopback
// interface that is up.
func (p *HostProbe) Address() (string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return "", fmt.Errorf("list interfaces: %w", err)
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipnet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			ip := ipnet.IP.To4()
			if ip == nil || !ip.IsGlobalUnicast() {
				continue
			}
			return ip.String(), nil
		}
	}
	return "", fmt.Errorf("no usable IPv4 address found")
}

func (p *HostProbe) CPUCount() int {
	return runtime.NumCPU()
}

// FreeMemoryMB parses MemAvailable from /proc/meminfo, floored to megabytes.
func (p *HostProbe) FreeMemoryMB() (uint64, error) {
	f, err := os.Open(p.MeminfoPath)
	if err != nil {
		return 0, fmt.Errorf("open meminfo: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "MemAvailable:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			break
		}
		kb, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parse MemAvailable: %w", err)
		}
		return kb / 1024, nil
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("read meminfo: %w", err)
	}
	return 0, fmt.Errorf("MemAvailable not present in %s", p.MeminfoPath)
}

// StaticProbe returns fixed values; used in tests.
type StaticProbe struct {
	Host  string
	IP    string
	CPUs  int
	MemMB uint64
}

func (p *StaticProbe) Hostname() (string, error)     { return p.Host, nil }
func (p *StaticProbe) Address() (string, error)      { return p.IP, nil }
func (p *StaticProbe) CPUCount() int                 { return p.CPUs }
func (p *StaticProbe) FreeMemoryMB() (uint64, error) { return p.MemMB, nil }
