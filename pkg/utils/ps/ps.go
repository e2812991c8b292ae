// Package ps samples host resources for the device status endpoint and
// the free space guard on media sinks.
package ps

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

const cpuSampleWindow = 50 * time.Millisecond

type Status struct {
	CPUPercent    float64 `json:"cpuPercent"`
	MemoryPercent float64 `json:"memoryPercent"`
	MemoryUsed    string  `json:"memoryUsed"`
	Disk          Disk    `json:"disk"`
	// Media is the total size of everything under the media root.
	Media string `json:"media"`
}

type Disk struct {
	Total       uint64  `json:"total"`
	Free        uint64  `json:"free"`
	UsedPercent float64 `json:"usedPercent"`
}

// Snapshot samples cpu and memory load plus the disk holding mediaRoot.
func Snapshot(mediaRoot string) (Status, error) {
	var st Status
	list, err := cpu.Percent(cpuSampleWindow, false)
	if err != nil {
		return st, fmt.Errorf("cpu: %w", err)
	}
	if len(list) > 0 {
		st.CPUPercent = list[0]
	}

	vm, err := mem.VirtualMemory()
	if err != nil {
		return st, fmt.Errorf("memory: %w", err)
	}
	st.MemoryPercent = vm.UsedPercent
	st.MemoryUsed = humanize.IBytes(vm.Used)

	if st.Disk, err = DiskUsage(mediaRoot); err != nil {
		return st, err
	}
	size, err := DirSize(mediaRoot)
	if err != nil {
		return st, err
	}
	st.Media = humanize.Bytes(uint64(size))

	return st, nil
}

// DiskUsage reports the filesystem holding path.
func DiskUsage(path string) (Disk, error) {
	u, err := disk.Usage(path)
	if err != nil {
		return Disk{}, fmt.Errorf("disk usage of %s: %w", path, err)
	}

	return Disk{Total: u.Total, Free: u.Free, UsedPercent: u.UsedPercent}, nil
}

// DirSize sums the regular files under root.
func DirSize(root string) (int64, error) {
	var size int64
	err := filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || !d.Type().IsRegular() {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		size += info.Size()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("size of %s: %w", root, err)
	}

	return size, nil
}
