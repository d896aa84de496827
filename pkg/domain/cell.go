package domain

import (
	"fmt"
	"time"
)

// CellKind distinguishes executable cells from descriptive ones
type CellKind string

const (
	CellKindScript CellKind = "script"
	CellKindMarkup CellKind = "markup"
)

// ParseCellKind accepts the canonical kinds and the legacy python/markdown names.
// An empty value means script.
func ParseCellKind(s string) (CellKind, error) {
	switch s {
	case "", "script", "python":
		return CellKindScript, nil
	case "markup", "markdown":
		return CellKindMarkup, nil
	default:
		return "", fmt.Errorf("unknown cell type %q", s)
	}
}

// LifecycleState represents where a cell is in its run cycle
type LifecycleState string

const (
	LifecycleIdle      LifecycleState = "idle"
	LifecycleRunning   LifecycleState = "running"
	LifecycleCompleted LifecycleState = "completed"
	LifecycleCancelled LifecycleState = "cancelled"
	LifecycleFailed    LifecycleState = "failed"
)

// IsTerminal reports whether a run has finished. Idle counts as terminal for
// run-all purposes since nothing is in flight.
func (s LifecycleState) IsTerminal() bool {
	return s != LifecycleRunning
}

// DefaultCellSource is the placeholder text of a freshly created cell
const DefaultCellSource = "# Write your code here"

// Cell is one unit of notebook content
type Cell struct {
	ID        int64           `json:"id"`
	Kind      CellKind        `json:"kind"`
	Source    string          `json:"source"`
	State     LifecycleState  `json:"state"`
	Output    *OutputArtifact `json:"output,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Clone returns a copy that shares no mutable state with c
func (c *Cell) Clone() *Cell {
	cp := *c
	if c.Output != nil {
		out := c.Output.Clone()
		cp.Output = &out
	}
	return &cp
}
