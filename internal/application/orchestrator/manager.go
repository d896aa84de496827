package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aescanero/scriptbook/internal/application/notebook"
	"github.com/aescanero/scriptbook/internal/application/registry"
	"github.com/aescanero/scriptbook/pkg/domain"
	"github.com/aescanero/scriptbook/pkg/ports"
	"github.com/aescanero/scriptbook/pkg/render/output"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Run outcomes recorded in metrics
const (
	outcomeCompleted = "completed"
	outcomeFailed    = "failed"
	outcomeTimeout   = "timeout"
	outcomeCancelled = "cancelled"
	outcomeDispatch  = "dispatch_error"
)

// Timing holds the deadlines of a run
type Timing struct {
	SoftTimeout    time.Duration
	HardCleanup    time.Duration
	InterCellDelay time.Duration
}

// Manager coordinates cell execution
type Manager struct {
	notebook    *notebook.Notebook
	registry    *registry.Registry
	interpreter ports.Interpreter
	results     ports.ResultStore
	snapshots   ports.NotebookStore
	eventBus    ports.EventBus
	metrics     ports.MetricsCollector
	validator   *Validator
	logger      *zap.Logger
	timing      Timing

	// cells serializes run, stop, kind change and delete per cell; layout
	// is held shared by those and exclusively by clear and load.
	cells  *cellLocks
	layout sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager creates a new orchestrator manager
func NewManager(
	nb *notebook.Notebook,
	reg *registry.Registry,
	interpreter ports.Interpreter,
	results ports.ResultStore,
	snapshots ports.NotebookStore,
	eventBus ports.EventBus,
	metrics ports.MetricsCollector,
	validator *Validator,
	logger *zap.Logger,
	timing Timing,
) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		notebook:    nb,
		registry:    reg,
		interpreter: interpreter,
		results:     results,
		snapshots:   snapshots,
		eventBus:    eventBus,
		metrics:     metrics,
		validator:   validator,
		logger:      logger,
		timing:      timing,
		cells:       newCellLocks(),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Notebook returns the notebook being orchestrated
func (m *Manager) Notebook() *notebook.Notebook {
	return m.notebook
}

// Start subscribes to interpreter results
func (m *Manager) Start(ctx context.Context) error {
	if err := m.eventBus.Subscribe(ctx, ports.TopicInterpreterResults, m.handleResult); err != nil {
		return fmt.Errorf("failed to subscribe to interpreter results: %w", err)
	}
	m.logger.Info("orchestrator manager started",
		zap.Duration("soft_timeout", m.timing.SoftTimeout),
		zap.Duration("hard_cleanup", m.timing.HardCleanup))
	return nil
}

// RunCell starts a run of a script cell. Markup cells are ignored. The call
// returns once the source has been dispatched; the outcome arrives later.
func (m *Manager) RunCell(ctx context.Context, cellID int64) error {
	_, err := m.runCell(ctx, cellID)
	return err
}

// runCell returns the handle of the dispatched run, or nil when nothing was
// dispatched (markup or blank source).
func (m *Manager) runCell(ctx context.Context, cellID int64) (*registry.Handle, error) {
	unlock := m.lockCell(cellID)
	defer unlock()

	cell, err := m.notebook.Cell(cellID)
	if err != nil {
		return nil, err
	}
	if cell.Kind == domain.CellKindMarkup {
		return nil, nil
	}

	m.teardown(cellID)

	// Running is recorded and published before anything is dispatched
	if err := m.setLifecycle(cellID, domain.LifecycleRunning, nil); err != nil {
		return nil, err
	}

	if strings.TrimSpace(cell.Source) == "" {
		m.setLifecycle(cellID, domain.LifecycleIdle, nil)
		return nil, nil
	}

	target := uuid.New().String()
	h := registry.NewHandle(m.ctx, cellID, target)

	if err := m.results.Begin(ctx, target); err != nil {
		m.logger.Error("failed to create output target",
			zap.Int64("cell_id", cellID),
			zap.String("output_target", target),
			zap.Error(err))
		m.failDispatch(cellID, err)
		return nil, nil
	}

	if err := m.registry.Register(h); err != nil {
		m.failDispatch(cellID, err)
		if derr := m.results.Delete(m.ctx, target); derr != nil {
			m.logger.Debug("failed to delete output target",
				zap.String("output_target", target),
				zap.Error(derr))
		}
		return nil, err
	}

	h.Arm(m.timing.SoftTimeout, m.timing.HardCleanup,
		func() { m.softTimeout(h) },
		func() { m.hardCleanup(h) })

	ref, err := m.interpreter.Submit(ctx, ports.Request{
		CellID:       cellID,
		Source:       cell.Source,
		OutputTarget: target,
	})
	if err != nil {
		m.logger.Error("failed to submit cell",
			zap.Int64("cell_id", cellID),
			zap.String("output_target", target),
			zap.Error(err))
		h.StopTimers()
		artifact := output.Failure(domain.FailureDispatch, fmt.Sprintf("Error: %v", err))
		m.settle(h, domain.LifecycleFailed, &artifact, outcomeDispatch)
		if err := m.results.Delete(m.ctx, target); err != nil {
			m.logger.Debug("failed to delete output target",
				zap.String("output_target", target),
				zap.Error(err))
		}
		return h, nil
	}
	h.SetResource(ref)

	m.metrics.SetActiveExecutions(m.registry.Len())
	m.logger.Info("cell submitted",
		zap.Int64("cell_id", cellID),
		zap.String("output_target", target),
		zap.String("resource", string(ref)))

	return h, nil
}

// StopCell cancels the in-flight run of a cell. Cells without a run are left
// untouched.
func (m *Manager) StopCell(ctx context.Context, cellID int64) {
	unlock := m.lockCell(cellID)
	defer unlock()

	h := m.registry.Lookup(cellID)
	if h == nil {
		return
	}

	h.StopTimers()
	m.freeResource(ctx, h)

	artifact := output.Failure(domain.FailureUserCancellation, output.CancellationMessage)
	if m.settle(h, domain.LifecycleCancelled, &artifact, outcomeCancelled) {
		m.logger.Info("cell execution cancelled", zap.Int64("cell_id", cellID))
	}
	if err := m.results.Delete(ctx, h.OutputTarget); err != nil {
		m.logger.Debug("failed to delete output target",
			zap.String("output_target", h.OutputTarget),
			zap.Error(err))
	}
}

// RunAllCells runs every cell in document order, waiting for each to reach a
// terminal state. A failing cell does not stop the remaining ones.
func (m *Manager) RunAllCells(ctx context.Context) error {
	start := time.Now()
	ids := m.notebook.IDs()

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}

		h, err := m.runCell(ctx, id)
		if err != nil {
			m.logger.Warn("run all: cell skipped",
				zap.Int64("cell_id", id),
				zap.Error(err))
			continue
		}

		if h != nil {
			select {
			case <-h.Done():
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		select {
		case <-time.After(m.timing.InterCellDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	m.metrics.RecordRunAll(len(ids), time.Since(start))
	m.logger.Info("run all completed",
		zap.Int("cells", len(ids)),
		zap.Duration("duration", time.Since(start)))
	return nil
}

// RunAllAsync runs every cell in the background, bound to the manager's
// lifetime
func (m *Manager) RunAllAsync() {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if err := m.RunAllCells(m.ctx); err != nil && !errors.Is(err, context.Canceled) {
			m.logger.Error("run all failed", zap.Error(err))
		}
	}()
}

// AddCell appends a cell, or inserts it before the cell with id before
func (m *Manager) AddCell(ctx context.Context, spec notebook.CellSpec, before *int64) (*domain.Cell, error) {
	if before == nil {
		return m.notebook.Append(spec), nil
	}
	return m.notebook.InsertBefore(*before, spec)
}

// UpdateSource replaces the source of a cell. A run in flight keeps the
// source it was dispatched with.
func (m *Manager) UpdateSource(ctx context.Context, cellID int64, source string) error {
	return m.notebook.SetSource(cellID, source)
}

// ChangeKind switches a cell between script and markup. Any in-flight run is
// torn down and the cell returns to Idle.
func (m *Manager) ChangeKind(ctx context.Context, cellID int64, kind domain.CellKind) error {
	unlock := m.lockCell(cellID)
	defer unlock()

	m.teardown(cellID)
	if err := m.notebook.SetKind(cellID, kind); err != nil {
		return err
	}
	m.publishState(ctx, cellID, domain.LifecycleIdle, nil)
	return nil
}

// DeleteCell removes a cell after tearing down its run
func (m *Manager) DeleteCell(ctx context.Context, cellID int64) error {
	unlock := m.lockCell(cellID)
	defer unlock()

	m.teardown(cellID)
	return m.notebook.Delete(cellID)
}

// ClearNotebook discards every run and every cell, leaving one default cell
func (m *Manager) ClearNotebook(ctx context.Context) {
	m.layout.Lock()
	defer m.layout.Unlock()

	m.discardAll()
	m.notebook.Reset()
	m.logger.Info("notebook cleared")
}

// ImportDocument parses and loads a persisted notebook
func (m *Manager) ImportDocument(ctx context.Context, data []byte) error {
	doc, err := m.validator.Parse(data)
	if err != nil {
		return err
	}
	return m.LoadDocument(ctx, doc)
}

// LoadDocument replaces the notebook with doc. The document is validated
// first, so a malformed one leaves the current notebook untouched.
func (m *Manager) LoadDocument(ctx context.Context, doc *domain.Document) error {
	specs, err := m.validator.Validate(doc)
	if err != nil {
		m.logger.Warn("rejected notebook document", zap.Error(err))
		return err
	}

	m.layout.Lock()
	defer m.layout.Unlock()

	m.discardAll()
	m.notebook.Replace(specs)
	m.logger.Info("notebook loaded", zap.Int("cells", len(specs)))
	return nil
}

// ExportDocument returns the notebook in its persisted form
func (m *Manager) ExportDocument() *domain.Document {
	return m.notebook.Document()
}

// SaveSnapshot stores the notebook under name
func (m *Manager) SaveSnapshot(ctx context.Context, name string) error {
	if err := m.snapshots.SaveNotebook(ctx, name, m.notebook.Document()); err != nil {
		return fmt.Errorf("failed to save notebook: %w", err)
	}
	return nil
}

// LoadSnapshot replaces the notebook with the snapshot stored under name
func (m *Manager) LoadSnapshot(ctx context.Context, name string) error {
	doc, err := m.snapshots.LoadNotebook(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to load notebook: %w", err)
	}
	return m.LoadDocument(ctx, doc)
}

// ListSnapshots returns the names of stored snapshots
func (m *Manager) ListSnapshots(ctx context.Context) ([]string, error) {
	return m.snapshots.ListNotebooks(ctx)
}

// ActiveExecutions returns the number of in-flight runs
func (m *Manager) ActiveExecutions() int {
	return m.registry.Len()
}

// handleResult completes the run writing to the announced output target.
// Results for released handles are discarded.
func (m *Manager) handleResult(ctx context.Context, event ports.Event) error {
	target := event.StringData("output_target")
	h := m.registry.LookupTarget(target)
	if h == nil {
		m.logger.Debug("discarding result for released handle",
			zap.String("output_target", target))
		return nil
	}

	result, pending, err := m.results.Get(ctx, target)
	if err != nil {
		m.logger.Error("failed to read output target",
			zap.String("output_target", target),
			zap.Error(err))
		return nil
	}
	if pending {
		return nil
	}

	m.complete(h, result)
	return nil
}

func (m *Manager) complete(h *registry.Handle, result *domain.ExecutionResult) {
	artifact := output.Artifact(result)
	state, outcome := domain.LifecycleCompleted, outcomeCompleted
	if result.HasError() {
		state, outcome = domain.LifecycleFailed, outcomeFailed
	}
	m.settle(h, state, &artifact, outcome)
}

// softTimeout fails a run whose output target still holds the placeholder.
// The interpreter job is left alone; the hard cleanup deals with it.
func (m *Manager) softTimeout(h *registry.Handle) {
	if !h.Valid() {
		return
	}

	result, pending, err := m.results.Get(m.ctx, h.OutputTarget)
	if err == nil && !pending {
		m.complete(h, result)
		return
	}

	artifact := output.Failure(domain.FailureTimeout, output.TimeoutMessage)
	if m.settle(h, domain.LifecycleFailed, &artifact, outcomeTimeout) {
		m.logger.Warn("cell execution timed out",
			zap.Int64("cell_id", h.CellID),
			zap.String("output_target", h.OutputTarget),
			zap.Duration("soft_timeout", m.timing.SoftTimeout))
	}
}

// hardCleanup releases the interpreter resource and the registry entry no
// matter how the run ended. Every step is idempotent.
func (m *Manager) hardCleanup(h *registry.Handle) {
	m.freeResource(m.ctx, h)

	artifact := output.Failure(domain.FailureTimeout, output.TimeoutMessage)
	m.settle(h, domain.LifecycleFailed, &artifact, outcomeTimeout)

	m.registry.ReleaseHandle(h)
	if err := m.results.Delete(m.ctx, h.OutputTarget); err != nil {
		m.logger.Debug("failed to delete output target",
			zap.String("output_target", h.OutputTarget),
			zap.Error(err))
	}
}

// settle applies the first terminal signal of a run. Later signals for the
// same handle are ignored. It reports whether this call won.
func (m *Manager) settle(h *registry.Handle, state domain.LifecycleState, artifact *domain.OutputArtifact, outcome string) bool {
	return h.Settle(func() {
		m.registry.ReleaseHandle(h)
		m.setLifecycle(h.CellID, state, artifact)
		m.metrics.RecordCellRun(outcome, time.Since(h.CreatedAt))
		m.metrics.SetActiveExecutions(m.registry.Len())
	})
}

// teardown silently discards the in-flight run of a cell, if any
func (m *Manager) teardown(cellID int64) {
	h := m.registry.Lookup(cellID)
	if h == nil {
		return
	}
	m.discard(h)
}

func (m *Manager) discardAll() {
	for _, h := range m.registry.Drain() {
		m.discard(h)
	}
	m.metrics.SetActiveExecutions(0)
}

func (m *Manager) discard(h *registry.Handle) {
	h.StopTimers()
	m.freeResource(m.ctx, h)
	h.Settle(func() {
		m.registry.ReleaseHandle(h)
	})
	if err := m.results.Delete(m.ctx, h.OutputTarget); err != nil {
		m.logger.Debug("failed to delete output target",
			zap.String("output_target", h.OutputTarget),
			zap.Error(err))
	}
}

func (m *Manager) freeResource(ctx context.Context, h *registry.Handle) {
	h.FreeResource(func(ref ports.ResourceRef) {
		if err := m.interpreter.Cancel(ctx, ref); err != nil {
			m.logger.Warn("failed to cancel interpreter job",
				zap.Int64("cell_id", h.CellID),
				zap.String("resource", string(ref)),
				zap.Error(err))
		}
	})
}

func (m *Manager) failDispatch(cellID int64, err error) {
	artifact := output.Failure(domain.FailureDispatch, fmt.Sprintf("Error: %v", err))
	m.setLifecycle(cellID, domain.LifecycleFailed, &artifact)
	m.metrics.RecordCellRun(outcomeDispatch, 0)
}

// setLifecycle records and publishes a transition. A refused transition is
// neither published nor treated as fatal by settle paths.
func (m *Manager) setLifecycle(cellID int64, state domain.LifecycleState, artifact *domain.OutputArtifact) error {
	if err := m.notebook.SetLifecycle(cellID, state, artifact); err != nil {
		m.logger.Debug("cell state not recorded",
			zap.Int64("cell_id", cellID),
			zap.String("state", string(state)),
			zap.Error(err))
		return err
	}
	m.publishState(m.ctx, cellID, state, artifact)
	return nil
}

// lockCell takes the shared layout lock and the cell's own lock
func (m *Manager) lockCell(cellID int64) func() {
	m.layout.RLock()
	unlock := m.cells.lock(cellID)
	return func() {
		unlock()
		m.layout.RUnlock()
	}
}

func (m *Manager) publishState(ctx context.Context, cellID int64, state domain.LifecycleState, artifact *domain.OutputArtifact) {
	data := map[string]interface{}{
		"state": string(state),
	}
	if artifact != nil {
		data["output_kind"] = string(artifact.Kind)
		data["markup"] = artifact.Markup
		if artifact.Failure != domain.FailureNone {
			data["failure"] = string(artifact.Failure)
		}
	}

	event := ports.Event{
		ID:        uuid.New().String(),
		Type:      ports.EventTypeCellStateChanged,
		Timestamp: time.Now(),
		CellID:    cellID,
		Data:      data,
	}

	if err := m.eventBus.Publish(ctx, ports.TopicCellEvents, event); err != nil {
		m.logger.Error("failed to publish cell state",
			zap.Int64("cell_id", cellID),
			zap.String("state", string(state)),
			zap.Error(err))
	}
}

// Shutdown gracefully shuts down the manager
func (m *Manager) Shutdown(ctx context.Context) error {
	m.logger.Info("shutting down orchestrator manager")

	m.discardAll()
	m.cancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("orchestrator manager shut down complete")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown timeout")
	}
}
