package workers

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// stuckJobAge is the age past which a job is reported as stuck. Cancels keep
// the process bounded, so a job this old usually means a lost cancel.
const stuckJobAge = 5 * time.Minute

// HealthMonitor periodically inspects the pool, publishes its gauges and
// forgets cancels for jobs that never arrived
type HealthMonitor struct {
	pool     *Pool
	interval time.Duration
	logger   *zap.Logger

	mu     sync.Mutex
	stopCh chan struct{}
}

// HealthStatus is a snapshot of the interpreter pool
type HealthStatus struct {
	TotalWorkers     int       `json:"total_workers"`
	IdleWorkers      int       `json:"idle_workers"`
	BusyWorkers      int       `json:"busy_workers"`
	StoppedWorkers   int       `json:"stopped_workers"`
	ActiveJobs       int       `json:"active_jobs"`
	PendingCancels   int       `json:"pending_cancels"`
	OldestJobSeconds float64   `json:"oldest_job_seconds"`
	Healthy          bool      `json:"healthy"`
	Timestamp        time.Time `json:"timestamp"`
}

// NewHealthMonitor creates a monitor that checks pool every interval
func NewHealthMonitor(pool *Pool, interval time.Duration, logger *zap.Logger) *HealthMonitor {
	return &HealthMonitor{
		pool:     pool,
		interval: interval,
		logger:   logger,
	}
}

// Start begins periodic checks. Calling it twice is a no-op.
func (h *HealthMonitor) Start() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopCh != nil {
		return
	}
	h.stopCh = make(chan struct{})
	go h.loop(h.stopCh)
}

// Stop ends periodic checks
func (h *HealthMonitor) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopCh == nil {
		return
	}
	close(h.stopCh)
	h.stopCh = nil
}

func (h *HealthMonitor) loop(stop <-chan struct{}) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			h.check()
		}
	}
}

// check records gauges, logs the snapshot and prunes stale cancels
func (h *HealthMonitor) check() {
	if pruned := h.pool.pruneCancelled(cancelRetention); pruned > 0 {
		h.logger.Debug("pruned stale cancels", zap.Int("count", pruned))
	}

	status := h.GetStatus()
	h.pool.metrics.RecordWorkerPoolStatus(status.IdleWorkers, status.BusyWorkers, status.StoppedWorkers)

	fields := []zap.Field{
		zap.Int("workers", status.TotalWorkers),
		zap.Int("busy", status.BusyWorkers),
		zap.Int("jobs", status.ActiveJobs),
		zap.Int("pending_cancels", status.PendingCancels),
	}

	switch {
	case !status.Healthy:
		h.logger.Warn("interpreter pool unhealthy", append(fields, zap.Int("stopped", status.StoppedWorkers))...)
	case status.OldestJobSeconds > stuckJobAge.Seconds():
		h.logger.Warn("interpreter job running unusually long",
			append(fields, zap.Float64("oldest_job_seconds", status.OldestJobSeconds))...)
	case status.BusyWorkers == status.TotalWorkers:
		h.logger.Warn("every interpreter worker is busy, new cells will queue", fields...)
	default:
		h.logger.Debug("interpreter pool health check", fields...)
	}
}

// GetStatus returns a snapshot of the pool
func (h *HealthMonitor) GetStatus() *HealthStatus {
	status := &HealthStatus{Timestamp: time.Now()}

	for _, ws := range h.pool.GetStatus() {
		status.TotalWorkers++
		switch ws {
		case WorkerStatusIdle:
			status.IdleWorkers++
		case WorkerStatusBusy:
			status.BusyWorkers++
		case WorkerStatusStopped:
			status.StoppedWorkers++
		}
	}

	jobs, oldest, cancels := h.pool.jobStats()
	status.ActiveJobs = jobs
	status.PendingCancels = cancels
	status.OldestJobSeconds = oldest.Seconds()

	// A busy pool is still healthy; cells just queue
	status.Healthy = status.TotalWorkers > 0 && status.StoppedWorkers == 0
	return status
}

// IsHealthy reports whether every worker is running
func (h *HealthMonitor) IsHealthy() bool {
	return h.GetStatus().Healthy
}
