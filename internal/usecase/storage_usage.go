package usecase

import (
	"context"

	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v3/disk"
)

type StorageStats struct {
	Path        string  `json:"path"`
	TotalBytes  uint64  `json:"totalBytes"`
	FreeBytes   uint64  `json:"freeBytes"`
	UsedPercent float64 `json:"usedPercent"`
	Free        string  `json:"free"`
}

// StorageUsage reports filesystem usage of the storage directory.
type StorageUsage struct {
	Dir string
}

func (uc StorageUsage) Execute(ctx context.Context) (StorageStats, error) {
	usage, err := disk.UsageWithContext(ctx, uc.Dir)
	if err != nil {
		return StorageStats{}, err
	}
	return StorageStats{
		Path:        uc.Dir,
		TotalBytes:  usage.Total,
		FreeBytes:   usage.Free,
		UsedPercent: usage.UsedPercent,
		Free:        humanize.Bytes(usage.Free),
	}, nil
}
