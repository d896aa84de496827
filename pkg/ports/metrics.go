package ports

import "time"

// MetricsCollector records notebook execution metrics
type MetricsCollector interface {
	RecordCellRun(outcome string, duration time.Duration)
	SetActiveExecutions(count int)
	RecordRunAll(cells int, duration time.Duration)
	RecordInterpreterJob(status string, duration time.Duration)
	RecordWorkerPoolStatus(idle, busy, stopped int)
	RecordRender(kind string)
}

// NoopMetrics discards everything
type NoopMetrics struct{}

func (NoopMetrics) RecordCellRun(string, time.Duration)        {}
func (NoopMetrics) SetActiveExecutions(int)                    {}
func (NoopMetrics) RecordRunAll(int, time.Duration)            {}
func (NoopMetrics) RecordInterpreterJob(string, time.Duration) {}
func (NoopMetrics) RecordWorkerPoolStatus(int, int, int)       {}
func (NoopMetrics) RecordRender(string)                        {}
