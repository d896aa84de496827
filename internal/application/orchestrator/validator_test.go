package orchestrator

import (
	"errors"
	"testing"

	"github.com/aescanero/scriptbook/pkg/domain"
)

func TestValidator_Parse(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name    string
		data    string
		wantErr bool
	}{
		{name: "valid", data: `{"version":"1.0","cells":[]}`},
		{name: "truncated", data: `{"version":"1.0","cells":[`, wantErr: true},
		{name: "not json", data: `notebook`, wantErr: true},
		{name: "wrong shape", data: `{"version":1}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := v.Parse([]byte(tt.data))
			if tt.wantErr {
				if !errors.Is(err, domain.ErrMalformedNotebook) {
					t.Errorf("expected ErrMalformedNotebook, got %v", err)
				}
				return
			}
			if err != nil || doc == nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidator_Validate(t *testing.T) {
	v := NewValidator()

	doc := &domain.Document{
		Version: "1.0",
		Cells: []domain.DocumentCell{
			{Type: "python", Content: "x = 1"},
			{Type: "markdown", Content: "# Title"},
			{Type: "script", Content: ""},
			{Type: "markup", Content: "*a*"},
		},
	}

	specs, err := v.Validate(doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []domain.CellKind{domain.CellKindScript, domain.CellKindMarkup, domain.CellKindScript, domain.CellKindMarkup}
	if len(specs) != len(want) {
		t.Fatalf("expected %d cells, got %d", len(want), len(specs))
	}
	for i, spec := range specs {
		if spec.Kind != want[i] {
			t.Errorf("cell %d: expected kind %s, got %s", i, want[i], spec.Kind)
		}
		if spec.Source != doc.Cells[i].Content {
			t.Errorf("cell %d: source not preserved", i)
		}
	}
}

func TestValidator_ValidateRejects(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name string
		doc  *domain.Document
	}{
		{name: "nil document", doc: nil},
		{name: "missing version", doc: &domain.Document{Cells: []domain.DocumentCell{{Type: "python"}}}},
		{name: "unknown cell type", doc: &domain.Document{
			Version: "1.0",
			Cells:   []domain.DocumentCell{{Type: "python"}, {Type: "sql", Content: "select 1"}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := v.Validate(tt.doc); !errors.Is(err, domain.ErrMalformedNotebook) {
				t.Errorf("expected ErrMalformedNotebook, got %v", err)
			}
		})
	}
}

func TestValidator_EmptyNotebook(t *testing.T) {
	specs, err := NewValidator().Validate(&domain.Document{Version: "1.0"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(specs) != 0 {
		t.Errorf("expected no cells, got %d", len(specs))
	}
}
