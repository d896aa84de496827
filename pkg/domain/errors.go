package domain

import "errors"

var (
	// ErrDuplicateHandle is returned when a cell already has an in-flight execution.
	ErrDuplicateHandle = errors.New("execution handle already registered for cell")

	// ErrCellNotFound is returned for operations on unknown cell ids.
	ErrCellNotFound = errors.New("cell not found")

	// ErrMalformedNotebook is returned when a persisted notebook cannot be loaded.
	ErrMalformedNotebook = errors.New("malformed notebook file")

	// ErrResultNotFound is returned when an output target does not exist.
	ErrResultNotFound = errors.New("output target not found")

	// ErrNotebookNotFound is returned when a named snapshot does not exist.
	ErrNotebookNotFound = errors.New("notebook snapshot not found")

	// ErrUnsupportedExecutor is returned by the executor factory.
	ErrUnsupportedExecutor = errors.New("unsupported executor")
)
