package cmd

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	apihttp "github.com/aescanero/scriptbook/pkg/api/http"
	"github.com/aescanero/scriptbook/pkg/domain"
	"github.com/spf13/viper"
)

func newAPIServer(t *testing.T, handler http.HandlerFunc) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	resetViper()
	viper.Set("url", server.URL)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestCellsCommand(t *testing.T) {
	newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/v1/notebook" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		writeJSON(w, http.StatusOK, apihttp.NotebookResponse{
			Cells: []apihttp.CellResponse{
				{ID: 1, Kind: domain.CellKindScript, State: domain.LifecycleCompleted, Source: "print(1)\nprint(2)"},
				{ID: 4, Kind: domain.CellKindMarkup, State: domain.LifecycleIdle, Source: "# Notes"},
			},
			ActiveExecutions: 1,
		})
	})

	out := execute(t, "cells")
	for _, want := range []string{"ID", "print(1) ...", "markup", "# Notes", "1 cell(s) running"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output, got: %s", want, out)
		}
	}
}

func TestAddCommand_InsertBefore(t *testing.T) {
	resetFlags(addCmd)
	newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/cells" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}
		if body["kind"] != "markup" || body["source"] != "**hi**" || body["before"] != float64(3) {
			t.Errorf("unexpected request body %v", body)
		}
		writeJSON(w, http.StatusCreated, apihttp.CellResponse{ID: 7, Kind: domain.CellKindMarkup})
	})

	out := execute(t, "add", "--kind", "markup", "--source", "**hi**", "--before", "3")
	if !strings.Contains(out, "Cell added") || !strings.Contains(out, "ID: 7") {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestAddCommand_DefaultSource(t *testing.T) {
	resetFlags(addCmd)
	newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["source"] != nil || body["before"] != nil {
			t.Errorf("expected no source and no position, got %v", body)
		}
		writeJSON(w, http.StatusCreated, apihttp.CellResponse{ID: 2, Kind: domain.CellKindScript})
	})

	if out := execute(t, "add"); !strings.Contains(out, "ID: 2") {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestAddCommand_FromFile(t *testing.T) {
	resetFlags(addCmd)
	path := filepath.Join(t.TempDir(), "cell.py")
	if err := os.WriteFile(path, []byte("x = 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		var body apihttp.AddCellRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Source == nil || *body.Source != "x = 1\n" {
			t.Errorf("expected file contents as source, got %v", body.Source)
		}
		writeJSON(w, http.StatusCreated, apihttp.CellResponse{ID: 3, Kind: domain.CellKindScript})
	})

	execute(t, "add", "--file", path)
}

func TestRunCommand_Wait(t *testing.T) {
	resetFlags(runCmd)
	pollInterval = time.Millisecond

	var polls atomic.Int32
	newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/v1/cells/5/run":
			writeJSON(w, http.StatusAccepted, apihttp.CellResponse{ID: 5, Kind: domain.CellKindScript, State: domain.LifecycleRunning})
		case r.Method == http.MethodGet && r.URL.Path == "/api/v1/cells/5":
			if polls.Add(1) < 3 {
				writeJSON(w, http.StatusOK, apihttp.CellResponse{ID: 5, State: domain.LifecycleRunning})
				return
			}
			writeJSON(w, http.StatusOK, apihttp.CellResponse{
				ID:    5,
				Kind:  domain.CellKindScript,
				State: domain.LifecycleCompleted,
				Output: &domain.OutputArtifact{
					Kind:    domain.ArtifactText,
					Content: "hello\n",
				},
			})
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	})

	out := execute(t, "run", "5", "--wait")
	if !strings.Contains(out, "completed") || !strings.Contains(out, "hello") {
		t.Errorf("unexpected output: %s", out)
	}
	if polls.Load() != 3 {
		t.Errorf("expected 3 polls, got %d", polls.Load())
	}
}

func TestRunCommand_NoWait(t *testing.T) {
	resetFlags(runCmd)
	newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected only the run request, got %s %s", r.Method, r.URL.Path)
		}
		writeJSON(w, http.StatusAccepted, apihttp.CellResponse{ID: 5, Kind: domain.CellKindScript, State: domain.LifecycleRunning})
	})

	if out := execute(t, "run", "5"); !strings.Contains(out, "Cell 5 (script) running") {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestRunCommand_NotFound(t *testing.T) {
	resetFlags(runCmd)
	newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, apihttp.ErrorResponse{
			Error: apihttp.ErrorDetail{Code: "CELL_NOT_FOUND", Message: "Cell not found"},
		})
	})

	if out := execute(t, "run", "42"); !strings.Contains(out, "Error (404): Cell not found") {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestRunCommand_InvalidID(t *testing.T) {
	resetFlags(runCmd)
	newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("no request expected, got %s %s", r.Method, r.URL.Path)
	})

	if out := execute(t, "run", "abc"); !strings.Contains(out, `invalid cell id "abc"`) {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestStopCommand(t *testing.T) {
	newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/cells/9/stop" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		writeJSON(w, http.StatusOK, apihttp.CellResponse{
			ID:    9,
			Kind:  domain.CellKindScript,
			State: domain.LifecycleCancelled,
			Output: &domain.OutputArtifact{
				Kind:    domain.ArtifactError,
				Content: "Execution stopped by user",
				Failure: domain.FailureUserCancellation,
			},
		})
	})

	out := execute(t, "stop", "9")
	if !strings.Contains(out, "cancelled") || !strings.Contains(out, "Execution stopped by user") {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestRunAllCommand(t *testing.T) {
	newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/notebook/run-all" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
	})

	if out := execute(t, "run-all"); !strings.Contains(out, "Run all started") {
		t.Errorf("unexpected output: %s", out)
	}
}

const testDocument = `{"version":"1.0","cells":[{"type":"script","content":"x = 1"},{"type":"markup","content":"# Title"}]}`

func TestExportCommand(t *testing.T) {
	newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Disposition", `attachment; filename="notebook.pysb"`)
		_, _ = w.Write([]byte(testDocument))
	})

	resetFlags(exportCmd)
	if out := execute(t, "export"); !strings.Contains(out, `"version":"1.0"`) {
		t.Errorf("expected document on stdout, got: %s", out)
	}

	path := filepath.Join(t.TempDir(), "out.pysb")
	out := execute(t, "export", "-o", path)
	resetFlags(exportCmd)
	if !strings.Contains(out, "exported to") {
		t.Errorf("unexpected output: %s", out)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("export file missing: %v", err)
	}
	if string(data) != testDocument {
		t.Errorf("unexpected file contents %s", data)
	}
}

func TestImportCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.pysb")
	if err := os.WriteFile(path, []byte(testDocument), 0o644); err != nil {
		t.Fatal(err)
	}

	newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		var doc domain.Document
		if err := json.NewDecoder(r.Body).Decode(&doc); err != nil || len(doc.Cells) != 2 {
			t.Errorf("unexpected upload %+v (%v)", doc, err)
		}
		writeJSON(w, http.StatusOK, apihttp.NotebookResponse{
			Cells: []apihttp.CellResponse{{ID: 1}, {ID: 2}},
		})
	})

	if out := execute(t, "import", path); !strings.Contains(out, "Cells: 2") {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestImportCommand_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.pysb")
	if err := os.WriteFile(path, []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}

	newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, apihttp.ErrorResponse{
			Error: apihttp.ErrorDetail{Code: "INVALID_NOTEBOOK", Message: "Error loading notebook"},
		})
	})

	if out := execute(t, "import", path); !strings.Contains(out, "Error (400): Error loading notebook") {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestRenderCommand(t *testing.T) {
	resetViper()
	resetFlags(renderCmd)
	path := filepath.Join(t.TempDir(), "notes.md")
	if err := os.WriteFile(path, []byte("# Title"), 0o644); err != nil {
		t.Fatal(err)
	}

	if out := execute(t, "render", path); strings.TrimSpace(out) != "<h1>Title</h1>" {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestRenderCommand_Notebook(t *testing.T) {
	resetViper()
	path := filepath.Join(t.TempDir(), "nb.pysb")
	if err := os.WriteFile(path, []byte(testDocument), 0o644); err != nil {
		t.Fatal(err)
	}

	out := execute(t, "render", "--notebook", path)
	resetFlags(renderCmd)
	if strings.TrimSpace(out) != "<h1>Title</h1>" {
		t.Errorf("expected only markup cells rendered, got: %q", out)
	}
}
