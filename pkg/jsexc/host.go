// host.go captures the state of the hosting process at record time.

package jsexc

import (
	"os"
	"runtime"
	"time"
)

// HostState describes the process that hosted the realm.
type HostState struct {
	MemoryBytes    int64  `json:"memory_bytes"`
	GoroutineCount int    `json:"goroutine_count"`
	UptimeMs       int64  `json:"uptime_ms"`
	HostName       string `json:"host_name,omitempty"`
}

// CaptureHostState samples the current process. Uptime is measured from
// start and clamped at zero.
func CaptureHostState(start time.Time) *HostState {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	hostname, _ := os.Hostname()

	uptime := time.Since(start).Milliseconds()
	if uptime < 0 {
		uptime = 0
	}

	return &HostState{
		MemoryBytes:    int64(mem.Alloc),
		GoroutineCount: runtime.NumGoroutine(),
		UptimeMs:       uptime,
		HostName:       hostname,
	}
}
