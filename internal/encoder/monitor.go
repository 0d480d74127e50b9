package encoder

import (
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

// monitorInterval is how often the child's resource usage is sampled.
const monitorInterval = time.Second

// ProcessStats is a point-in-time resource snapshot of the encoder child.
type ProcessStats struct {
	PID            int           `json:"pid"`
	CPUPercent     float64       `json:"cpu_percent"`
	MemoryRSSBytes uint64        `json:"memory_rss_bytes"`
	MemoryRSSMB    float64       `json:"memory_rss_mb"`
	MemoryPercent  float64       `json:"memory_percent"`
	StartedAt      time.Time     `json:"started_at"`
	Duration       time.Duration `json:"duration"`
	LastUpdated    time.Time     `json:"last_updated"`
}

// Monitor periodically samples CPU and memory usage of one child process.
type Monitor struct {
	pid       int
	proc      *process.Process
	startedAt time.Time

	mu    sync.RWMutex
	stats ProcessStats

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewMonitor creates a monitor for the given PID. Sampling begins with
// Start; a PID that cannot be inspected yields a monitor that only tracks
// wall time.
func NewMonitor(pid int) *Monitor {
	m := &Monitor{
		pid:       pid,
		startedAt: time.Now(),
		stopCh:    make(chan struct{}),
	}
	m.stats.PID = pid
	m.stats.StartedAt = m.startedAt

	if proc, err := process.NewProcess(int32(pid)); err == nil {
		m.proc = proc
	}

	return m
}

// Start begins the sampling loop.
func (m *Monitor) Start() {
	if m.proc == nil {
		return
	}
	m.wg.Add(1)
	go m.loop()
}

// Stop ends sampling and waits for the loop to exit. Safe to call more
// than once.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	m.wg.Wait()
}

// Stats returns the latest sample.
func (m *Monitor) Stats() ProcessStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := m.stats
	stats.Duration = time.Since(m.startedAt)
	return stats
}

func (m *Monitor) loop() {
	defer m.wg.Done()

	ticker := time.NewTicker(monitorInterval)
	defer ticker.Stop()

	m.sample()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.sample()
		}
	}
}

// sample takes one resource usage snapshot. Errors are ignored: the child
// may exit between samples, in which case the previous snapshot stands.
func (m *Monitor) sample() {
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.stats.Duration = now.Sub(m.startedAt)
	m.stats.LastUpdated = now

	if cpu, err := m.proc.Percent(0); err == nil {
		m.stats.CPUPercent = cpu
	}
	if mem, err := m.proc.MemoryInfo(); err == nil && mem != nil {
		m.stats.MemoryRSSBytes = mem.RSS
		m.stats.MemoryRSSMB = float64(mem.RSS) / 1024 / 1024
	}
	if pct, err := m.proc.MemoryPercent(); err == nil {
		m.stats.MemoryPercent = float64(pct)
	}
}
