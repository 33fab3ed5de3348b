package handler

import (
	"encoding/json"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

type healthResponse struct {
	Status       string  `json:"status"`
	Hostname     string  `json:"hostname"`
	OS           string  `json:"os"`
	Arch         string  `json:"arch"`
	CPUUsage     float64 `json:"cpu_usage_percent"`
	MemUsage     float64 `json:"mem_usage_percent"`
	DiskFree     uint64  `json:"disk_free_bytes"`
	Sessions     int     `json:"sessions"`
	PendingTasks int     `json:"pending_tasks"`
}

func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	hostname, _ := os.Hostname()

	cpuPercent, _ := cpu.Percent(time.Second, false)
	cpuUsage := 0.0
	if len(cpuPercent) > 0 {
		cpuUsage = cpuPercent[0]
	}

	memInfo, _ := mem.VirtualMemory()
	diskInfo, _ := disk.Usage("/")

	resp := healthResponse{
		Status:       "ok",
		Hostname:     hostname,
		OS:           runtime.GOOS,
		Arch:         runtime.GOARCH,
		Sessions:     h.engine.Sessions().Len(),
		PendingTasks: h.engine.Tasks().Len(),
	}
	if memInfo != nil {
		resp.MemUsage = memInfo.UsedPercent
	}
	if diskInfo != nil {
		resp.DiskFree = diskInfo.Free
	}
	resp.CPUUsage = cpuUsage

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
