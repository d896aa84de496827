// Package registry tracks the in-flight execution of each cell.
//
// The registry is the single source of truth for "is cell X running". It
// holds at most one Handle per cell id; callers must release or cancel the
// old handle before registering a new one.
package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aescanero/scriptbook/pkg/domain"
	"github.com/aescanero/scriptbook/pkg/ports"
)

// Handle represents one in-flight run of a script cell. Its context is the
// cancellation token shared by the soft and hard deadline callbacks.
type Handle struct {
	CellID       int64
	OutputTarget string
	CreatedAt    time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	resource ports.ResourceRef
	freed    bool
	soft     *time.Timer
	hard     *time.Timer

	settle sync.Once
	done   chan struct{}
}

// NewHandle creates a handle whose token derives from parent
func NewHandle(parent context.Context, cellID int64, outputTarget string) *Handle {
	ctx, cancel := context.WithCancel(parent)
	return &Handle{
		CellID:       cellID,
		OutputTarget: outputTarget,
		CreatedAt:    time.Now(),
		ctx:          ctx,
		cancel:       cancel,
		done:         make(chan struct{}),
	}
}

// Context returns the handle's cancellation token
func (h *Handle) Context() context.Context {
	return h.ctx
}

// Valid reports whether the token has not been cancelled
func (h *Handle) Valid() bool {
	return h.ctx.Err() == nil
}

// SetResource records the reference granted by the interpreter
func (h *Handle) SetResource(ref ports.ResourceRef) {
	h.mu.Lock()
	h.resource = ref
	h.mu.Unlock()
}

// Resource returns the interpreter reference, empty before dispatch
func (h *Handle) Resource() ports.ResourceRef {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.resource
}

// FreeResource passes the interpreter reference to fn at most once. It is a
// no-op before dispatch or after an earlier call.
func (h *Handle) FreeResource(fn func(ref ports.ResourceRef)) {
	h.mu.Lock()
	if h.freed || h.resource == "" {
		h.mu.Unlock()
		return
	}
	h.freed = true
	ref := h.resource
	h.mu.Unlock()

	fn(ref)
}

// Arm schedules the soft timeout and hard cleanup callbacks
func (h *Handle) Arm(soft, hard time.Duration, onSoft, onHard func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.soft = time.AfterFunc(soft, onSoft)
	h.hard = time.AfterFunc(hard, onHard)
}

// StopTimers disarms both deadlines. Safe to call repeatedly.
func (h *Handle) StopTimers() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.soft != nil {
		h.soft.Stop()
	}
	if h.hard != nil {
		h.hard.Stop()
	}
}

// Settle runs fn only for the first terminal signal of the handle, then
// invalidates the token and closes Done. It reports whether fn ran.
func (h *Handle) Settle(fn func()) bool {
	ran := false
	h.settle.Do(func() {
		ran = true
		h.cancel()
		fn()
		close(h.done)
	})
	return ran
}

// Done is closed once the handle has settled
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Registry maps cell ids to their in-flight handle
type Registry struct {
	mu       sync.Mutex
	byCell   map[int64]*Handle
	byTarget map[string]*Handle
}

// New creates an empty registry
func New() *Registry {
	return &Registry{
		byCell:   make(map[int64]*Handle),
		byTarget: make(map[string]*Handle),
	}
}

// Register adds h for its cell. It fails with ErrDuplicateHandle when the
// cell already has a handle.
func (r *Registry) Register(h *Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byCell[h.CellID]; exists {
		return fmt.Errorf("cell %d: %w", h.CellID, domain.ErrDuplicateHandle)
	}
	r.byCell[h.CellID] = h
	r.byTarget[h.OutputTarget] = h
	return nil
}

// Lookup returns the handle for cellID, or nil
func (r *Registry) Lookup(cellID int64) *Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byCell[cellID]
}

// LookupTarget returns the handle writing to an output target, or nil
func (r *Registry) LookupTarget(target string) *Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byTarget[target]
}

// Release removes whatever handle cellID has. Absent ids are ignored.
func (r *Registry) Release(cellID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if h, ok := r.byCell[cellID]; ok {
		delete(r.byCell, cellID)
		delete(r.byTarget, h.OutputTarget)
	}
}

// ReleaseHandle removes h only if it is still the registered handle for its
// cell, so a stale callback never drops a newer run. It reports whether h
// was removed.
func (r *Registry) ReleaseHandle(h *Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.byCell[h.CellID] != h {
		return false
	}
	delete(r.byCell, h.CellID)
	delete(r.byTarget, h.OutputTarget)
	return true
}

// Drain removes and returns every handle
func (r *Registry) Drain() []*Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	handles := make([]*Handle, 0, len(r.byCell))
	for _, h := range r.byCell {
		handles = append(handles, h)
	}
	r.byCell = make(map[int64]*Handle)
	r.byTarget = make(map[string]*Handle)
	return handles
}

// Len returns the number of in-flight executions
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byCell)
}
