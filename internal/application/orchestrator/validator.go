package orchestrator

import (
	"encoding/json"
	"fmt"

	"github.com/aescanero/scriptbook/internal/application/notebook"
	"github.com/aescanero/scriptbook/pkg/domain"
)

// Validator validates persisted notebook documents
type Validator struct{}

// NewValidator creates a new document validator
func NewValidator() *Validator {
	return &Validator{}
}

// Parse decodes a persisted notebook. Decoding failures are reported as
// ErrMalformedNotebook.
func (v *Validator) Parse(data []byte) (*domain.Document, error) {
	var doc domain.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedNotebook, err)
	}
	return &doc, nil
}

// Validate checks a document and returns the cells it describes
func (v *Validator) Validate(doc *domain.Document) ([]notebook.CellSpec, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: document is nil", domain.ErrMalformedNotebook)
	}

	if doc.Version == "" {
		return nil, fmt.Errorf("%w: version is required", domain.ErrMalformedNotebook)
	}

	specs := make([]notebook.CellSpec, 0, len(doc.Cells))
	for i, c := range doc.Cells {
		kind, err := domain.ParseCellKind(c.Type)
		if err != nil {
			return nil, fmt.Errorf("%w: cell %d: %v", domain.ErrMalformedNotebook, i, err)
		}
		specs = append(specs, notebook.CellSpec{Kind: kind, Source: c.Content})
	}

	return specs, nil
}
