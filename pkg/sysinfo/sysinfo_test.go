package sysinfo

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFreeMemoryMB(t *testing.T) {
	meminfo := `MemTotal:        8048576 kB
MemFree:          524288 kB
MemAvailable:    4194304 kB
Buffers:          131072 kB
`
	path := filepath.Join(t.TempDir(), "meminfo")
	require.NoError(t, os.WriteFile(path, []byte(meminfo), 0644))

	probe := &HostProbe{MeminfoPath: path}
	got, err := probe.FreeMemoryMB()
	require.NoError(t, err)
	assert.Equal(t, uint64(4096), got)
}

func TestFreeMemoryMBMissingField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meminfo")
	require.NoError(t, os.WriteFile(path, []byte("MemTotal: 1 kB\n"), 0644))

	probe := &HostProbe{MeminfoPath: path}
	_, err := probe.FreeMemoryMB()
	assert.Error(t, err)
}

func TestHostnameAndCPUCount(t *testing.T) {
	probe := NewHostProbe()

	host, err := probe.Hostname()
	require.NoError(t, err)
	assert.NotEmpty(t, host)

	assert.Greater(t, probe.CPUCount(), 0)
}
