package ports

import (
	"context"

	"github.com/aescanero/scriptbook/pkg/domain"
)

// ResourceRef is the opaque reference an interpreter grants for a submitted job
type ResourceRef string

// Request is a structured execution request. Source travels as data, never
// spliced into another program's text.
type Request struct {
	CellID       int64
	Source       string
	OutputTarget string
}

// Interpreter is the external service that executes script cells. Submit is
// fire-and-forget: the result shows up later in the output target, or never.
type Interpreter interface {
	Submit(ctx context.Context, req Request) (ResourceRef, error)
	// Cancel is best-effort and must tolerate unknown or finished refs.
	Cancel(ctx context.Context, ref ResourceRef) error
}

// Executor runs source code and returns its structured result
type Executor interface {
	Execute(ctx context.Context, source string) (*domain.ExecutionResult, error)
}

// ResultStore holds output targets
type ResultStore interface {
	// Begin writes the in-progress placeholder for target
	Begin(ctx context.Context, target string) error
	Put(ctx context.Context, target string, result *domain.ExecutionResult) error
	// Get returns pending=true while the placeholder is still in place
	Get(ctx context.Context, target string) (result *domain.ExecutionResult, pending bool, err error)
	Delete(ctx context.Context, target string) error
}

// NotebookStore persists named notebook snapshots
type NotebookStore interface {
	SaveNotebook(ctx context.Context, name string, doc *domain.Document) error
	LoadNotebook(ctx context.Context, name string) (*domain.Document, error)
	ListNotebooks(ctx context.Context) ([]string, error)
}
