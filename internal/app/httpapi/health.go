package httpapi

import (
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

func (h *handler) ping(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type processStats struct {
	PID        int32   `json:"pid"`
	RSSBytes   uint64  `json:"rss_bytes"`
	CPUPercent float64 `json:"cpu_percent"`
	Goroutines int     `json:"goroutines"`
}

func (h *handler) healthDetails(w http.ResponseWriter, r *http.Request) {
	components := h.app.Health(r.Context())
	status := "ok"
	for _, s := range components {
		if s != "ok" {
			status = "degraded"
		}
	}

	stats := processStats{PID: int32(os.Getpid()), Goroutines: runtime.NumGoroutine()}
	if proc, err := process.NewProcessWithContext(r.Context(), stats.PID); err == nil {
		if mem, err := proc.MemoryInfoWithContext(r.Context()); err == nil {
			stats.RSSBytes = mem.RSS
		}
		if cpu, err := proc.CPUPercentWithContext(r.Context()); err == nil {
			stats.CPUPercent = cpu
		}
	} else {
		h.log.WithError(err).Debug("process stats unavailable")
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":     status,
		"uptime":     time.Since(h.started).Round(time.Second).String(),
		"components": components,
		"process":    stats,
		"services":   h.app.Services(),
		"events":     h.app.Events.Count(),
	})
}
