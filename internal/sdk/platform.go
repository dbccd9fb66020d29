package sdk

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/openmined/skywriter/internal/version"
	"github.com/shirou/gopsutil/v4/host"
)

var platformOnce = sync.OnceValue(func() string {
	info, err := host.Info()
	if err != nil || info.Platform == "" {
		return runtime.GOOS
	}
	if info.PlatformVersion == "" {
		return info.Platform
	}
	return info.Platform + "/" + info.PlatformVersion
})

// UserAgent returns `Skywriter/0.1.0 (5e23a4; ubuntu/24.04; linux/amd64)`
func UserAgent() string {
	return fmt.Sprintf("%s/%s (%s; %s; %s/%s)",
		version.AppName, version.Version, version.Revision, platformOnce(), runtime.GOOS, runtime.GOARCH)
}
