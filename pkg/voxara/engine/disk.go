package engine

import (
	"fmt"

	"github.com/shirou/gopsutil/v4/disk"

	"github.com/pureportal/voxara/pkg/voxara/types"
)

// DiskUsage reports capacity and free space for the volume containing
// path.
func DiskUsage(path string) (types.DiskUsage, error) {
	usage, err := disk.Usage(path)
	if err != nil {
		return types.DiskUsage{}, fmt.Errorf("disk usage for %s: %w", path, err)
	}
	return types.DiskUsage{
		Path:       path,
		TotalBytes: int64(usage.Total),
		FreeBytes:  int64(usage.Free),
	}, nil
}
