package platform

import (
	"context"
	"fmt"
	"runtime"

	"github.com/shirou/gopsutil/v4/host"
)

// RealDetector implements Detector using gopsutil.
type RealDetector struct{}

// NewDetector creates a new platform detector.
func NewDetector() Detector {
	return &RealDetector{}
}

// Detect returns the host platform. The machine string comes from the
// kernel when available and from runtime.GOARCH otherwise; Linux distro
// fields are left empty when gopsutil cannot read them.
func (d *RealDetector) Detect(ctx context.Context) (*Info, error) {
	info := &Info{
		OS:      runtime.GOOS,
		Machine: runtime.GOARCH,
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("platform detection cancelled: %w", err)
	}
	if machine, err := host.KernelArch(); err == nil && machine != "" {
		info.Machine = machine
	}
	info.Arch = normalizeMachine(info.Machine)

	if runtime.GOOS == "linux" {
		platform, family, version, err := host.PlatformInformationWithContext(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("platform detection cancelled: %w", ctx.Err())
			}
			return info, nil
		}

		platform = normalizePlatform(platform)
		if platform != "" {
			info.Platform = platform
			info.Family = mapFamily(family)
			info.Version = normalizePlatform(version)
		}
	}

	return info, nil
}
