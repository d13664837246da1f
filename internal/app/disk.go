package app

import "syscall"

// diskStats describes the filesystem holding the recording directory, so a
// dashboard can warn before long sessions fill the disk.
type diskStats struct {
	TotalBytes     uint64 `json:"total_bytes"`
	UsedBytes      uint64 `json:"used_bytes"`
	AvailableBytes uint64 `json:"available_bytes"`
}

// diskUsage returns usage stats for the filesystem at path, or nil on error.
func diskUsage(path string) *diskStats {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return nil
	}
	total := stat.Blocks * uint64(stat.Bsize)
	free := stat.Bfree * uint64(stat.Bsize)
	return &diskStats{
		TotalBytes:     total,
		UsedBytes:      total - free,
		AvailableBytes: stat.Bavail * uint64(stat.Bsize),
	}
}
