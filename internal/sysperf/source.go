package sysperf

import (
	"errors"
	"fmt"

	"github.com/prometheus/procfs"
	"golang.org/x/sys/unix"
)

// cpuTimes is a snapshot of cumulative CPU time in seconds.
type cpuTimes struct {
	busy  float64
	total float64
}

// source reads raw host figures.
type source interface {
	cpu() (cpuTimes, error)
	memory() (float64, error)
	disk(path string) (float64, error)
}

// procSource reads /proc through procfs and disks through statfs.
type procSource struct {
	fs procfs.FS
}

func newProcSource(mountPoint string) (*procSource, error) {
	fs, err := procfs.NewFS(mountPoint)
	if err != nil {
		return nil, fmt.Errorf("opening procfs at %s: %w", mountPoint, err)
	}
	return &procSource{fs: fs}, nil
}

func (p *procSource) cpu() (cpuTimes, error) {
	stat, err := p.fs.Stat()
	if err != nil {
		return cpuTimes{}, fmt.Errorf("reading cpu stat: %w", err)
	}
	c := stat.CPUTotal
	idle := c.Idle + c.Iowait
	busy := c.User + c.Nice + c.System + c.IRQ + c.SoftIRQ + c.Steal
	return cpuTimes{busy: busy, total: busy + idle}, nil
}

func (p *procSource) memory() (float64, error) {
	mi, err := p.fs.Meminfo()
	if err != nil {
		return 0, fmt.Errorf("reading meminfo: %w", err)
	}
	if mi.MemTotal == nil || *mi.MemTotal == 0 {
		return 0, errors.New("meminfo has no MemTotal")
	}
	avail := mi.MemAvailable
	if avail == nil {
		avail = mi.MemFree
	}
	if avail == nil {
		return 0, errors.New("meminfo has no MemAvailable or MemFree")
	}
	total := float64(*mi.MemTotal)
	return clamp((total - float64(*avail)) / total), nil
}

func (p *procSource) disk(path string) (float64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, fmt.Errorf("statfs %s: %w", path, err)
	}
	// Matches df: used over the space visible to unprivileged users.
	used := st.Blocks - st.Bfree
	visible := used + st.Bavail
	if visible == 0 {
		return 0, nil
	}
	return clamp(float64(used) / float64(visible)), nil
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
