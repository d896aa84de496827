// Package notebook holds the ordered cell sequence edited by users.
//
// Cell ids increase monotonically for the lifetime of a Notebook and are
// never reused, not even after Reset or Replace.
package notebook

import (
	"fmt"
	"sync"
	"time"

	"github.com/aescanero/scriptbook/pkg/domain"
)

// CellSpec describes a cell to create
type CellSpec struct {
	Kind   domain.CellKind
	Source string
}

// Notebook is an ordered sequence of cells, safe for concurrent use
type Notebook struct {
	mu     sync.RWMutex
	cells  []*domain.Cell
	nextID int64
}

// New creates a notebook holding one default script cell
func New() *Notebook {
	n := &Notebook{}
	n.appendLocked(CellSpec{Kind: domain.CellKindScript, Source: domain.DefaultCellSource})
	return n
}

// Cells returns copies of all cells in document order
func (n *Notebook) Cells() []*domain.Cell {
	n.mu.RLock()
	defer n.mu.RUnlock()

	out := make([]*domain.Cell, len(n.cells))
	for i, c := range n.cells {
		out[i] = c.Clone()
	}
	return out
}

// IDs returns cell ids in document order
func (n *Notebook) IDs() []int64 {
	n.mu.RLock()
	defer n.mu.RUnlock()

	ids := make([]int64, len(n.cells))
	for i, c := range n.cells {
		ids[i] = c.ID
	}
	return ids
}

// Cell returns a copy of one cell
func (n *Notebook) Cell(id int64) (*domain.Cell, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	c, _ := n.find(id)
	if c == nil {
		return nil, fmt.Errorf("cell %d: %w", id, domain.ErrCellNotFound)
	}
	return c.Clone(), nil
}

// Append adds a cell at the end
func (n *Notebook) Append(spec CellSpec) *domain.Cell {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.appendLocked(spec).Clone()
}

// InsertBefore adds a cell in front of beforeID
func (n *Notebook) InsertBefore(beforeID int64, spec CellSpec) (*domain.Cell, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	_, idx := n.find(beforeID)
	if idx < 0 {
		return nil, fmt.Errorf("cell %d: %w", beforeID, domain.ErrCellNotFound)
	}
	c := n.newCell(spec)
	n.cells = append(n.cells, nil)
	copy(n.cells[idx+1:], n.cells[idx:])
	n.cells[idx] = c
	return c.Clone(), nil
}

// Delete removes a cell
func (n *Notebook) Delete(id int64) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	_, idx := n.find(id)
	if idx < 0 {
		return fmt.Errorf("cell %d: %w", id, domain.ErrCellNotFound)
	}
	n.cells = append(n.cells[:idx], n.cells[idx+1:]...)
	return nil
}

// SetSource replaces the source text of a cell
func (n *Notebook) SetSource(id int64, source string) error {
	return n.update(id, func(c *domain.Cell) {
		c.Source = source
	})
}

// SetKind changes the kind of a cell. Any kind change resets the lifecycle
// to Idle and clears the output.
func (n *Notebook) SetKind(id int64, kind domain.CellKind) error {
	return n.update(id, func(c *domain.Cell) {
		c.Kind = kind
		c.State = domain.LifecycleIdle
		c.Output = nil
	})
}

// SetLifecycle records the lifecycle state and output of a cell. Only the
// orchestrator calls it. Markup cells never enter Running.
func (n *Notebook) SetLifecycle(id int64, state domain.LifecycleState, out *domain.OutputArtifact) error {
	var err error
	updateErr := n.update(id, func(c *domain.Cell) {
		if c.Kind == domain.CellKindMarkup && state == domain.LifecycleRunning {
			err = fmt.Errorf("cell %d: markup cells cannot run", id)
			return
		}
		c.State = state
		if out != nil {
			cp := out.Clone()
			c.Output = &cp
		} else {
			c.Output = nil
		}
	})
	if updateErr != nil {
		return updateErr
	}
	return err
}

// Reset discards every cell and starts over with one default cell
func (n *Notebook) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.cells = nil
	n.appendLocked(CellSpec{Kind: domain.CellKindScript, Source: domain.DefaultCellSource})
}

// Replace swaps the whole cell sequence. An empty spec list leaves one
// default cell.
func (n *Notebook) Replace(specs []CellSpec) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.cells = nil
	if len(specs) == 0 {
		n.appendLocked(CellSpec{Kind: domain.CellKindScript, Source: domain.DefaultCellSource})
		return
	}
	for _, s := range specs {
		n.appendLocked(s)
	}
}

// Document exports the notebook in its persisted form
func (n *Notebook) Document() *domain.Document {
	n.mu.RLock()
	defer n.mu.RUnlock()

	doc := &domain.Document{
		Version: domain.DocumentVersion,
		Cells:   make([]domain.DocumentCell, len(n.cells)),
	}
	for i, c := range n.cells {
		doc.Cells[i] = domain.DocumentCell{Type: string(c.Kind), Content: c.Source}
	}
	return doc
}

func (n *Notebook) appendLocked(spec CellSpec) *domain.Cell {
	c := n.newCell(spec)
	n.cells = append(n.cells, c)
	return c
}

func (n *Notebook) newCell(spec CellSpec) *domain.Cell {
	kind := spec.Kind
	if kind == "" {
		kind = domain.CellKindScript
	}
	c := &domain.Cell{
		ID:        n.nextID,
		Kind:      kind,
		Source:    spec.Source,
		State:     domain.LifecycleIdle,
		UpdatedAt: time.Now(),
	}
	n.nextID++
	return c
}

func (n *Notebook) update(id int64, fn func(c *domain.Cell)) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	c, _ := n.find(id)
	if c == nil {
		return fmt.Errorf("cell %d: %w", id, domain.ErrCellNotFound)
	}
	fn(c)
	c.UpdatedAt = time.Now()
	return nil
}

func (n *Notebook) find(id int64) (*domain.Cell, int) {
	for i, c := range n.cells {
		if c.ID == id {
			return c, i
		}
	}
	return nil, -1
}
