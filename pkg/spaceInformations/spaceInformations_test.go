package spaceInformations

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/shirou/gopsutil/disk"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetDeviceAndMountPointForMissingSubpath(t *testing.T) {
	partitions, err := disk.Partitions(true)
	require.NoError(t, err)
	if len(partitions) == 0 {
		t.Skip("no partitions available on this system")
	}

	temp := t.TempDir()
	resolved, err := filepath.EvalSymlinks(temp)
	require.NoError(t, err)

	covered := false
	for _, p := range partitions {
		if within(resolved, p.Mountpoint) {
			covered = true
			break
		}
	}
	if !covered {
		t.Skipf("no partition with a mountpoint covering %q", resolved)
	}

	mountPoint, _, err := GetDeviceAndMountPoint(filepath.Join(temp, "some", "sub", "path"))
	require.NoError(t, err)
	assert.True(t, within(resolved, mountPoint))
}

func TestGetDeviceAndMountPointNotFound(t *testing.T) {
	_, _, err := GetDeviceAndMountPoint("/a987wgf9a8wgf/path/that/does/not/exist")
	require.Error(t, err)
}

func TestWithin(t *testing.T) {
	assert.True(t, within("/data/db", "/"))
	assert.True(t, within("/data/db", "/data"))
	assert.True(t, within("/data", "/data/"))
	assert.False(t, within("/database", "/data"))
	assert.False(t, within("/data", ""))
}

func TestDirectorySize(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a"), make([]byte, 100), 0o600))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "b"), make([]byte, 50), 0o600))

	size, err := DirectorySize(dir)
	require.NoError(t, err)
	assert.Equal(t, uint64(150), size)
}

func TestFreeBytes(t *testing.T) {
	free, err := FreeBytes(t.TempDir())
	require.NoError(t, err)
	assert.Greater(t, free, uint64(0))

	_, err = FreeBytes("/a987wgf9a8wgf/missing")
	require.Error(t, err)
}

func TestDisplayDiskUsage(t *testing.T) {
	var out bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&out)

	require.Error(t, DisplayDiskUsage(logger, nil))

	if _, _, err := GetDeviceAndMountPoint(t.TempDir()); err != nil {
		t.Skipf("mount point lookup unavailable: %v", err)
	}
	out.Reset()
	require.NoError(t, DisplayDiskUsage(logger, []string{t.TempDir()}))
	assert.Contains(t, out.String(), "Disk usage information for path")
}
