package workers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aescanero/scriptbook/pkg/domain"
	"github.com/aescanero/scriptbook/pkg/ports"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Job statuses recorded in metrics
const (
	jobStatusCompleted = "completed"
	jobStatusFailed    = "failed"
	jobStatusCancelled = "cancelled"
	jobStatusDiscarded = "discarded"
)

// cancelRetention bounds how long a cancel for an unknown job is remembered
const cancelRetention = time.Minute

// Pool manages a pool of worker goroutines executing submitted sources
type Pool struct {
	size     int
	eventBus ports.EventBus
	results  ports.ResultStore
	executor ports.Executor
	metrics  ports.MetricsCollector
	logger   *zap.Logger
	health   *HealthMonitor

	workers []*worker
	queue   chan *job
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc

	mu        sync.Mutex
	jobs      map[ports.ResourceRef]*job
	cancelled map[ports.ResourceRef]time.Time
}

// job is one submitted source
type job struct {
	ref      ports.ResourceRef
	cellID   int64
	source   string
	target   string
	ctx      context.Context
	cancel   context.CancelFunc
	queuedAt time.Time
}

// worker represents a single worker goroutine
type worker struct {
	id      string
	pool    *Pool
	status  WorkerStatus
	mu      sync.RWMutex
	lastJob time.Time
}

// WorkerStatus represents worker status
type WorkerStatus string

const (
	WorkerStatusIdle    WorkerStatus = "idle"
	WorkerStatusBusy    WorkerStatus = "busy"
	WorkerStatusStopped WorkerStatus = "stopped"
)

// NewPool creates a new worker pool
func NewPool(
	size int,
	eventBus ports.EventBus,
	results ports.ResultStore,
	executor ports.Executor,
	metrics ports.MetricsCollector,
	logger *zap.Logger,
	healthCheckInterval time.Duration,
) *Pool {
	ctx, cancel := context.WithCancel(context.Background())

	pool := &Pool{
		size:      size,
		eventBus:  eventBus,
		results:   results,
		executor:  executor,
		metrics:   metrics,
		logger:    logger,
		workers:   make([]*worker, size),
		queue:     make(chan *job, size),
		ctx:       ctx,
		cancel:    cancel,
		jobs:      make(map[ports.ResourceRef]*job),
		cancelled: make(map[ports.ResourceRef]time.Time),
	}

	pool.health = NewHealthMonitor(pool, healthCheckInterval, logger)

	return pool
}

// Start subscribes to interpreter requests and starts the workers
func (p *Pool) Start() error {
	p.logger.Info("starting worker pool", zap.Int("size", p.size))

	if err := p.eventBus.Subscribe(p.ctx, ports.TopicInterpreterControl, p.handleControl); err != nil {
		return fmt.Errorf("failed to subscribe to interpreter control: %w", err)
	}
	if err := p.eventBus.Subscribe(p.ctx, ports.TopicInterpreterRequests, p.handleRequest); err != nil {
		return fmt.Errorf("failed to subscribe to interpreter requests: %w", err)
	}

	for i := 0; i < p.size; i++ {
		w := &worker{
			id:      fmt.Sprintf("worker-%d", i),
			pool:    p,
			status:  WorkerStatusIdle,
			lastJob: time.Now(),
		}
		p.workers[i] = w

		p.wg.Add(1)
		go w.run(p.ctx)
	}

	p.health.Start()

	p.logger.Info("worker pool started", zap.Int("workers", p.size))
	return nil
}

// Shutdown gracefully shuts down the worker pool. Running jobs are cancelled.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.logger.Info("shutting down worker pool")

	p.health.Stop()
	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool shut down complete")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown timeout")
	}
}

// Health returns the pool's health monitor
func (p *Pool) Health() *HealthMonitor {
	return p.health
}

// GetStatus returns the status of all workers
func (p *Pool) GetStatus() map[string]WorkerStatus {
	status := make(map[string]WorkerStatus)
	for _, w := range p.workers {
		if w == nil {
			continue
		}
		w.mu.RLock()
		status[w.id] = w.status
		w.mu.RUnlock()
	}
	return status
}

// ActiveJobs returns the number of queued or running jobs
func (p *Pool) ActiveJobs() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.jobs)
}

// handleRequest queues a submitted source. It blocks while every worker is
// busy and the queue is full.
func (p *Pool) handleRequest(ctx context.Context, event ports.Event) error {
	ref := ports.ResourceRef(event.StringData("resource"))
	target := event.StringData("output_target")
	if ref == "" || target == "" {
		return fmt.Errorf("invalid interpreter request %s", event.ID)
	}

	jobCtx, cancel := context.WithCancel(p.ctx)
	j := &job{
		ref:      ref,
		cellID:   event.CellID,
		source:   event.StringData("source"),
		target:   target,
		ctx:      jobCtx,
		cancel:   cancel,
		queuedAt: time.Now(),
	}

	p.mu.Lock()
	if _, ok := p.cancelled[ref]; ok {
		delete(p.cancelled, ref)
		p.mu.Unlock()
		cancel()
		p.logger.Debug("dropping request cancelled before arrival",
			zap.String("resource", string(ref)))
		return nil
	}
	p.jobs[ref] = j
	p.mu.Unlock()

	select {
	case p.queue <- j:
		return nil
	case <-p.ctx.Done():
		p.finish(j)
		return p.ctx.Err()
	}
}

// handleControl cancels a queued or running job
func (p *Pool) handleControl(ctx context.Context, event ports.Event) error {
	if event.Type != ports.EventTypeInterpreterCancel {
		return nil
	}
	ref := ports.ResourceRef(event.StringData("resource"))

	p.mu.Lock()
	j, ok := p.jobs[ref]
	if !ok {
		p.cancelled[ref] = time.Now()
	}
	p.mu.Unlock()

	if ok {
		j.cancel()
		p.logger.Info("interpreter job cancelled",
			zap.String("resource", string(ref)),
			zap.Int64("cell_id", j.cellID))
	}
	return nil
}

// jobStats returns the number of jobs, the age of the oldest one and the
// number of cancels still waiting for their request
func (p *Pool) jobStats() (jobs int, oldest time.Duration, cancels int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, j := range p.jobs {
		if age := time.Since(j.queuedAt); age > oldest {
			oldest = age
		}
	}
	return len(p.jobs), oldest, len(p.cancelled)
}

// pruneCancelled forgets cancels for jobs that never arrived
func (p *Pool) pruneCancelled(maxAge time.Duration) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	pruned := 0
	for ref, at := range p.cancelled {
		if time.Since(at) > maxAge {
			delete(p.cancelled, ref)
			pruned++
		}
	}
	return pruned
}

func (p *Pool) finish(j *job) {
	j.cancel()
	p.mu.Lock()
	delete(p.jobs, j.ref)
	p.mu.Unlock()
}

// run is the main worker loop
func (w *worker) run(ctx context.Context) {
	defer w.pool.wg.Done()

	w.pool.logger.Info("worker started", zap.String("worker_id", w.id))

	for {
		select {
		case <-ctx.Done():
			w.setStatus(WorkerStatusStopped)
			w.pool.logger.Info("worker stopped", zap.String("worker_id", w.id))
			return
		case j := <-w.pool.queue:
			w.execute(j)
		}
	}
}

func (w *worker) setStatus(status WorkerStatus) {
	w.mu.Lock()
	w.status = status
	if status == WorkerStatusBusy {
		w.lastJob = time.Now()
	}
	w.mu.Unlock()
}

// execute runs a job and writes its result to the output target
func (w *worker) execute(j *job) {
	w.setStatus(WorkerStatusBusy)
	defer w.setStatus(WorkerStatusIdle)
	defer w.pool.finish(j)

	if j.ctx.Err() != nil {
		w.pool.metrics.RecordInterpreterJob(jobStatusCancelled, 0)
		return
	}

	w.pool.logger.Info("executing cell source",
		zap.String("worker_id", w.id),
		zap.Int64("cell_id", j.cellID),
		zap.String("resource", string(j.ref)),
		zap.Duration("queued", time.Since(j.queuedAt)))

	startTime := time.Now()
	result, err := w.pool.executor.Execute(j.ctx, j.source)
	duration := time.Since(startTime)

	if j.ctx.Err() != nil {
		w.pool.logger.Info("discarding result of cancelled job",
			zap.String("worker_id", w.id),
			zap.String("resource", string(j.ref)))
		w.pool.metrics.RecordInterpreterJob(jobStatusCancelled, duration)
		return
	}

	if err != nil {
		result = &domain.ExecutionResult{Error: fmt.Sprintf("Error: %v", err)}
	}

	status := jobStatusCompleted
	if result.HasError() {
		status = jobStatusFailed
	}

	// Use the pool context: the job context dies with finish
	ctx := w.pool.ctx
	if err := w.pool.results.Put(ctx, j.target, result); err != nil {
		if errors.Is(err, domain.ErrResultNotFound) {
			w.pool.logger.Debug("output target released before result arrived",
				zap.String("output_target", j.target))
			w.pool.metrics.RecordInterpreterJob(jobStatusDiscarded, duration)
			return
		}
		w.pool.logger.Error("failed to write result",
			zap.String("worker_id", w.id),
			zap.String("output_target", j.target),
			zap.Error(err))
		w.pool.metrics.RecordInterpreterJob(jobStatusFailed, duration)
		return
	}

	w.publishResult(ctx, j)
	w.pool.metrics.RecordInterpreterJob(status, duration)

	w.pool.logger.Info("cell source executed",
		zap.String("worker_id", w.id),
		zap.Int64("cell_id", j.cellID),
		zap.String("status", status),
		zap.Duration("duration", duration))
}

// publishResult announces that the output target holds a result
func (w *worker) publishResult(ctx context.Context, j *job) {
	event := ports.Event{
		ID:        uuid.New().String(),
		Type:      ports.EventTypeInterpreterResult,
		Timestamp: time.Now(),
		CellID:    j.cellID,
		Data: map[string]interface{}{
			"resource":      string(j.ref),
			"output_target": j.target,
		},
	}

	if err := w.pool.eventBus.Publish(ctx, ports.TopicInterpreterResults, event); err != nil {
		w.pool.logger.Error("failed to publish result",
			zap.String("worker_id", w.id),
			zap.String("output_target", j.target),
			zap.Error(err))
	}
}
