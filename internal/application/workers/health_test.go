package workers

import (
	"context"
	"testing"
	"time"

	"github.com/aescanero/scriptbook/pkg/ports"
)

func TestHealthMonitor_ReportsJobsAndCancels(t *testing.T) {
	exec := &blockingExecutor{started: make(chan string, 1)}
	env := newPoolEnv(t, exec)

	_ = env.bus.Publish(context.Background(), ports.TopicInterpreterRequests, ports.Event{
		ID:   "req-1",
		Type: ports.EventTypeInterpreterSubmit,
		Data: map[string]interface{}{"resource": "job-1", "output_target": "t-1", "source": "block"},
	})
	select {
	case <-exec.started:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not start")
	}

	env.pool.mu.Lock()
	env.pool.cancelled["early"] = time.Now()
	env.pool.mu.Unlock()

	status := env.pool.Health().GetStatus()
	if status.ActiveJobs != 1 || status.BusyWorkers != 1 || status.PendingCancels != 1 {
		t.Errorf("unexpected status %+v", status)
	}
	if status.OldestJobSeconds <= 0 {
		t.Errorf("expected a positive job age, got %v", status.OldestJobSeconds)
	}
	if !status.Healthy {
		t.Error("a busy pool should be healthy")
	}
}

func TestHealthMonitor_CheckPrunesStaleCancels(t *testing.T) {
	env := newPoolEnv(t, &blockingExecutor{})

	env.pool.mu.Lock()
	env.pool.cancelled["stale"] = time.Now().Add(-2 * cancelRetention)
	env.pool.mu.Unlock()

	env.pool.Health().check()

	if status := env.pool.Health().GetStatus(); status.PendingCancels != 0 {
		t.Errorf("expected stale cancel to be pruned, got %d", status.PendingCancels)
	}
}

func TestHealthMonitor_StoppedPoolIsUnhealthy(t *testing.T) {
	env := newPoolEnv(t, &blockingExecutor{})

	if err := env.pool.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}

	if env.pool.Health().IsHealthy() {
		t.Error("expected stopped workers to make the pool unhealthy")
	}
}

func TestHealthMonitor_StartStopIdempotent(t *testing.T) {
	env := newPoolEnv(t, &blockingExecutor{})
	h := env.pool.Health()

	h.Start()
	h.Stop()
	h.Stop()
	h.Start()
	h.Stop()
}
