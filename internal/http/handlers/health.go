package handlers

import (
	"context"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
	"gorm.io/gorm"

	"github.com/jmylchreest/audarr/internal/transcode"
)

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	version   string
	startTime time.Time
	db        *gorm.DB
	registry  *transcode.Registry
	cacheRoot string
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(version string) *HealthHandler {
	return &HealthHandler{
		version:   version,
		startTime: time.Now(),
	}
}

// WithDB sets the database connection for health checks.
func (h *HealthHandler) WithDB(db *gorm.DB) *HealthHandler {
	h.db = db
	return h
}

// WithRegistry sets the transcode registry for session counting.
func (h *HealthHandler) WithRegistry(registry *transcode.Registry) *HealthHandler {
	h.registry = registry
	return h
}

// WithCacheRoot sets the cache directory whose disk usage is reported.
func (h *HealthHandler) WithCacheRoot(dir string) *HealthHandler {
	h.cacheRoot = dir
	return h
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status        string            `json:"status"`
	Timestamp     string            `json:"timestamp"`
	Version       string            `json:"version"`
	Uptime        string            `json:"uptime"`
	UptimeSeconds float64           `json:"uptime_seconds"`
	SystemLoad    float64           `json:"system_load"`
	CPUInfo       CPUInfo           `json:"cpu_info"`
	Memory        MemoryInfo        `json:"memory"`
	Components    HealthComponents  `json:"components"`
	Checks        map[string]string `json:"checks,omitempty"`
}

// CPUInfo contains CPU load information.
type CPUInfo struct {
	Cores              int     `json:"cores"`
	Load1Min           float64 `json:"load_1min"`
	Load5Min           float64 `json:"load_5min"`
	Load15Min          float64 `json:"load_15min"`
	LoadPercentage1Min float64 `json:"load_percentage_1min"`
}

// MemoryInfo contains memory usage information.
type MemoryInfo struct {
	TotalMemoryMB     float64           `json:"total_memory_mb"`
	UsedMemoryMB      float64           `json:"used_memory_mb"`
	FreeMemoryMB      float64           `json:"free_memory_mb"`
	AvailableMemoryMB float64           `json:"available_memory_mb"`
	SwapTotalMB       float64           `json:"swap_total_mb"`
	SwapUsedMB        float64           `json:"swap_used_mb"`
	ProcessMemory     ProcessMemoryInfo `json:"process_memory"`
}

// ProcessMemoryInfo contains process-tree memory information. Running
// encoder children show up in the child figures.
type ProcessMemoryInfo struct {
	MainProcessMB      float64 `json:"main_process_mb"`
	ChildProcessesMB   float64 `json:"child_processes_mb"`
	TotalProcessTreeMB float64 `json:"total_process_tree_mb"`
	ChildProcessCount  int     `json:"child_process_count"`
	PercentageOfSystem float64 `json:"percentage_of_system"`
}

// HealthComponents groups per-component health.
type HealthComponents struct {
	Database   DatabaseHealth   `json:"database"`
	CacheDisk  DiskHealth       `json:"cache_disk"`
	Transcoder TranscoderHealth `json:"transcoder"`
}

// DatabaseHealth contains database health information.
type DatabaseHealth struct {
	Status                 string  `json:"status"`
	ConnectionPoolSize     int     `json:"connection_pool_size"`
	ActiveConnections      int     `json:"active_connections"`
	IdleConnections        int     `json:"idle_connections"`
	PoolUtilizationPercent float64 `json:"pool_utilization_percent"`
	ResponseTimeMS         float64 `json:"response_time_ms"`
	ResponseTimeStatus     string  `json:"response_time_status"`
}

// DiskHealth contains filesystem usage for the transcode cache root.
type DiskHealth struct {
	Status      string  `json:"status"`
	Path        string  `json:"path"`
	TotalGB     float64 `json:"total_gb"`
	UsedGB      float64 `json:"used_gb"`
	FreeGB      float64 `json:"free_gb"`
	UsedPercent float64 `json:"used_percent"`
}

// TranscoderHealth contains live transcode session information.
type TranscoderHealth struct {
	Status         string `json:"status"`
	ActiveSessions int    `json:"active_sessions"`
}

// HealthInput is the input for the health check endpoint.
type HealthInput struct{}

// HealthOutput is the output for the health check endpoint.
type HealthOutput struct {
	Body HealthResponse
}

// LivezInput is the input for the liveness endpoint.
type LivezInput struct{}

// LivezOutput is the output for the liveness endpoint.
type LivezOutput struct {
	Body struct {
		Status string `json:"status"`
	}
}

// ReadyzInput is the input for the readiness endpoint.
type ReadyzInput struct{}

// ReadyzOutput is the output for the readiness endpoint.
type ReadyzOutput struct {
	Status int
	Body   struct {
		Status     string            `json:"status"`
		Components map[string]string `json:"components"`
	}
}

// Register registers the health routes with the API.
func (h *HealthHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getHealth",
		Method:      "GET",
		Path:        "/api/v1/health",
		Summary:     "Health check",
		Description: "Returns the health status of the service including system metrics, cache disk usage, and live session count",
		Tags:        []string{"System"},
	}, h.GetHealth)

	huma.Register(api, huma.Operation{
		OperationID: "getLivez",
		Method:      "GET",
		Path:        "/livez",
		Summary:     "Liveness probe",
		Description: "Returns ok while the process is able to answer requests",
		Tags:        []string{"System"},
	}, h.GetLivez)

	huma.Register(api, huma.Operation{
		OperationID: "getReadyz",
		Method:      "GET",
		Path:        "/readyz",
		Summary:     "Readiness probe",
		Description: "Returns ready once the database and cache root are usable",
		Tags:        []string{"System"},
	}, h.GetReadyz)
}

// GetHealth returns the health status of the service.
func (h *HealthHandler) GetHealth(ctx context.Context, input *HealthInput) (*HealthOutput, error) {
	now := time.Now()
	uptime := now.Sub(h.startTime)

	cpuInfo := cpuLoad()
	memInfo := memoryUsage()
	dbHealth := databaseHealth(ctx, h.db)
	diskHealth := cacheDiskUsage(h.cacheRoot)

	transcoder := TranscoderHealth{Status: "ok"}
	if h.registry != nil {
		transcoder.ActiveSessions = h.registry.Len()
	}

	return &HealthOutput{
		Body: HealthResponse{
			Status:        "healthy",
			Timestamp:     now.UTC().Format(time.RFC3339),
			Version:       h.version,
			Uptime:        uptime.Round(time.Second).String(),
			UptimeSeconds: uptime.Seconds(),
			SystemLoad:    cpuInfo.LoadPercentage1Min / 100,
			CPUInfo:       cpuInfo,
			Memory:        memInfo,
			Components: HealthComponents{
				Database:   dbHealth,
				CacheDisk:  diskHealth,
				Transcoder: transcoder,
			},
			Checks: map[string]string{
				"database":   dbHealth.Status,
				"cache_disk": diskHealth.Status,
			},
		},
	}, nil
}

// GetLivez reports process liveness. It checks nothing beyond the ability to
// answer.
func (h *HealthHandler) GetLivez(ctx context.Context, input *LivezInput) (*LivezOutput, error) {
	out := &LivezOutput{}
	out.Body.Status = "ok"
	return out, nil
}

// GetReadyz reports whether the service can do useful work: the database
// answers and the cache root exists.
func (h *HealthHandler) GetReadyz(ctx context.Context, input *ReadyzInput) (*ReadyzOutput, error) {
	components := map[string]string{
		"database":   "ok",
		"transcoder": "ok",
	}
	ready := true

	if h.db == nil {
		components["database"] = "not_configured"
		ready = false
	} else if sqlDB, err := h.db.DB(); err != nil {
		components["database"] = "error"
		ready = false
	} else if err := sqlDB.PingContext(ctx); err != nil {
		components["database"] = "error"
		ready = false
	}

	if h.registry == nil {
		components["transcoder"] = "not_configured"
	}

	if h.cacheRoot != "" {
		components["cache_root"] = "ok"
		if _, err := os.Stat(h.cacheRoot); err != nil {
			components["cache_root"] = "error"
			ready = false
		}
	}

	out := &ReadyzOutput{}
	out.Body.Components = components
	if ready {
		out.Body.Status = "ready"
	} else {
		out.Body.Status = "not_ready"
		out.Status = http.StatusServiceUnavailable
	}
	return out, nil
}

func toMB(b uint64) float64 {
	return float64(b) / (1 << 20)
}

// cpuLoad samples the system load averages. Zero values mean the platform
// did not answer.
func cpuLoad() CPUInfo {
	info := CPUInfo{Cores: runtime.NumCPU()}

	avg, err := load.Avg()
	if err != nil || avg == nil {
		return info
	}
	info.Load1Min, info.Load5Min, info.Load15Min = avg.Load1, avg.Load5, avg.Load15
	if info.Cores > 0 {
		info.LoadPercentage1Min = avg.Load1 / float64(info.Cores) * 100
	}
	return info
}

func memoryUsage() MemoryInfo {
	var info MemoryInfo

	if vm, err := mem.VirtualMemory(); err == nil && vm != nil {
		info.TotalMemoryMB = toMB(vm.Total)
		info.UsedMemoryMB = toMB(vm.Used)
		info.FreeMemoryMB = toMB(vm.Free)
		info.AvailableMemoryMB = toMB(vm.Available)
	}
	if swap, err := mem.SwapMemory(); err == nil && swap != nil {
		info.SwapTotalMB = toMB(swap.Total)
		info.SwapUsedMB = toMB(swap.Used)
	}

	info.ProcessMemory = processTreeUsage(info.TotalMemoryMB)
	return info
}

// processTreeUsage sums resident memory across this process and its
// children. Running encoders are child processes, so active cache misses
// show up in the child figures.
func processTreeUsage(systemTotalMB float64) ProcessMemoryInfo {
	var info ProcessMemoryInfo

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return info
	}

	if main, err := proc.MemoryInfo(); err == nil && main != nil {
		info.MainProcessMB = toMB(main.RSS)
		info.TotalProcessTreeMB = info.MainProcessMB
		if systemTotalMB > 0 {
			info.PercentageOfSystem = info.MainProcessMB / systemTotalMB * 100
		}
	}

	children, err := proc.Children()
	if err != nil {
		return info
	}
	info.ChildProcessCount = len(children)
	for _, child := range children {
		cm, err := child.MemoryInfo()
		if err != nil || cm == nil {
			continue
		}
		info.ChildProcessesMB += toMB(cm.RSS)
		info.TotalProcessTreeMB += toMB(cm.RSS)
	}
	return info
}

// cacheDiskUsage reports filesystem usage for the cache root. Usage at or
// above 90 percent flips the status to low_space.
func cacheDiskUsage(root string) DiskHealth {
	health := DiskHealth{Status: "ok", Path: root}

	if root == "" {
		health.Status = "not_configured"
		return health
	}
	usage, err := disk.Usage(root)
	if err != nil {
		health.Status = "error"
		return health
	}

	const gib = float64(1 << 30)
	health.TotalGB = float64(usage.Total) / gib
	health.UsedGB = float64(usage.Used) / gib
	health.FreeGB = float64(usage.Free) / gib
	health.UsedPercent = usage.UsedPercent
	if usage.UsedPercent >= 90 {
		health.Status = "low_space"
	}
	return health
}

// databaseHealth pings the database and reports pool pressure. Pings over
// 100ms are flagged slow.
func databaseHealth(ctx context.Context, db *gorm.DB) DatabaseHealth {
	health := DatabaseHealth{Status: "ok", ResponseTimeStatus: "healthy"}

	if db == nil {
		health.Status = "unknown"
		return health
	}
	sqlDB, err := db.DB()
	if err != nil {
		health.Status = "error"
		return health
	}

	stats := sqlDB.Stats()
	health.ConnectionPoolSize = stats.MaxOpenConnections
	health.ActiveConnections = stats.InUse
	health.IdleConnections = stats.Idle
	if stats.MaxOpenConnections > 0 {
		health.PoolUtilizationPercent = float64(stats.InUse) / float64(stats.MaxOpenConnections) * 100
	}

	start := time.Now()
	err = sqlDB.PingContext(ctx)
	health.ResponseTimeMS = float64(time.Since(start).Microseconds()) / 1000
	switch {
	case err != nil:
		health.Status = "error"
		health.ResponseTimeStatus = "error"
	case health.ResponseTimeMS > 100:
		health.ResponseTimeStatus = "slow"
	}
	return health
}
