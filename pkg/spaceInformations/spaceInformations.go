// Package spaceInformations reports free space and usage of the directories a
// file share keeps its databases in.
package spaceInformations

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/disk"
	"github.com/sirupsen/logrus"
)

// Usage describes the filesystem holding one path.
type Usage struct {
	Path       string
	Device     string
	MountPoint string
	Total      uint64
	Free       uint64
	PathSize   uint64 // Bytes of regular files below Path
}

func (u Usage) Used() uint64 {
	return u.Total - u.Free
}

func statfs(path string) (syscall.Statfs_t, error) {
	var stat syscall.Statfs_t
	err := syscall.Statfs(path, &stat)
	return stat, err
}

// FreeBytes returns the space available on the filesystem holding path.
func FreeBytes(path string) (uint64, error) {
	stat, err := statfs(path)
	if err != nil {
		return 0, fmt.Errorf("failed to stat filesystem of %s: %w", path, err)
	}
	return stat.Bavail * uint64(stat.Bsize), nil
}

// DirectorySize sums the sizes of all regular files below path.
func DirectorySize(path string) (uint64, error) {
	var size uint64
	err := filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			size += uint64(info.Size())
		}
		return nil
	})
	return size, err
}

// nearestExisting walks up from path until it finds an existing directory entry.
func nearestExisting(path string) (string, error) {
	current := path
	for {
		if resolved, err := filepath.EvalSymlinks(current); err == nil {
			current = resolved
		}
		_, err := os.Stat(current)
		if err == nil {
			return current, nil
		}
		if !os.IsNotExist(err) {
			return "", err
		}
		parent := filepath.Dir(current)
		if parent == current {
			return "", fmt.Errorf("path does not exist: %s", path)
		}
		current = parent
	}
}

// GetDeviceAndMountPoint finds the partition holding path. The longest matching mount
// point wins, so nested mounts resolve to the innermost one.
func GetDeviceAndMountPoint(path string) (mountPoint string, device string, err error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", "", err
	}
	existing, err := nearestExisting(absPath)
	if err != nil {
		return "", "", err
	}
	if existing == string(os.PathSeparator) && existing != absPath {
		return "", "", fmt.Errorf("path does not exist beyond root: %s", path)
	}

	partitions, err := disk.Partitions(true)
	if err != nil {
		return "", "", fmt.Errorf("failed to list partitions: %w", err)
	}

	for _, partition := range partitions {
		if !within(existing, partition.Mountpoint) {
			continue
		}
		if len(partition.Mountpoint) > len(mountPoint) {
			mountPoint, device = partition.Mountpoint, partition.Device
		}
	}
	if mountPoint == "" {
		return "", "", fmt.Errorf("mount point not found for path: %s", path)
	}
	return mountPoint, device, nil
}

// within reports whether path lies on or below mountpoint.
func within(path, mountpoint string) bool {
	if mountpoint == "" {
		return false
	}
	p := filepath.Clean(path)
	m := filepath.Clean(mountpoint)
	if m == string(os.PathSeparator) || p == m {
		return true
	}
	return strings.HasPrefix(p, strings.TrimSuffix(m, string(os.PathSeparator))+string(os.PathSeparator))
}

// GetUsage collects Usage for path.
func GetUsage(path string) (Usage, error) {
	stat, err := statfs(path)
	if err != nil {
		return Usage{}, fmt.Errorf("failed to stat filesystem of %s: %w", path, err)
	}
	mountPoint, device, err := GetDeviceAndMountPoint(path)
	if err != nil {
		return Usage{}, err
	}
	size, err := DirectorySize(path)
	if err != nil {
		return Usage{}, fmt.Errorf("failed to calculate size of %s: %w", path, err)
	}

	return Usage{
		Path:       path,
		Device:     device,
		MountPoint: mountPoint,
		Total:      stat.Blocks * uint64(stat.Bsize),
		Free:       stat.Bfree * uint64(stat.Bsize),
		PathSize:   size,
	}, nil
}

// DisplayDiskUsage logs the usage of every path at Info level.
func DisplayDiskUsage(log logrus.FieldLogger, paths []string) error {
	if len(paths) == 0 {
		log.Error("No path provided in configuration")
		return fmt.Errorf("no path provided in configuration")
	}

	for _, path := range paths {
		usage, err := GetUsage(path)
		if err != nil {
			log.WithFields(logrus.Fields{"path": path, "error": err}).Error("Error retrieving disk usage")
			return err
		}

		log.WithFields(logrus.Fields{
			"path":        usage.Path,
			"device":      usage.Device,
			"mount_point": usage.MountPoint,
			"total":       humanize.Bytes(usage.Total),
			"used":        humanize.Bytes(usage.Used()),
			"free":        humanize.Bytes(usage.Free),
			"used_by_db":  humanize.Bytes(usage.PathSize),
		}).Info("Disk usage information for path")
	}
	return nil
}
