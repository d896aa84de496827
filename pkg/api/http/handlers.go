package http

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/aescanero/scriptbook/internal/application/notebook"
	"github.com/aescanero/scriptbook/pkg/domain"
	"github.com/aescanero/scriptbook/pkg/render/markdown"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// maxImportSize bounds uploaded notebook files
const maxImportSize = 10 << 20

// CellResponse represents a cell with its rendered markup
type CellResponse struct {
	ID        int64                  `json:"id"`
	Kind      domain.CellKind        `json:"kind"`
	Source    string                 `json:"source"`
	State     domain.LifecycleState  `json:"state"`
	Output    *domain.OutputArtifact `json:"output,omitempty"`
	Rendered  string                 `json:"rendered,omitempty"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// NotebookResponse represents the whole notebook
type NotebookResponse struct {
	Cells            []CellResponse `json:"cells"`
	ActiveExecutions int            `json:"active_executions"`
}

// AddCellRequest represents a cell creation request
type AddCellRequest struct {
	Kind   string  `json:"kind"`
	Source *string `json:"source"`
	Before *int64  `json:"before"`
}

// SourceRequest represents a source update
type SourceRequest struct {
	Source string `json:"source"`
}

// KindRequest represents a kind change
type KindRequest struct {
	Kind string `json:"kind" binding:"required"`
}

// SnapshotRequest names a stored notebook
type SnapshotRequest struct {
	Name string `json:"name" binding:"required"`
}

// RenderRequest represents an ad-hoc render request
type RenderRequest struct {
	Source string `json:"source"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail represents error details
type ErrorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	checks := gin.H{
		"orchestrator": "ok",
	}
	status := http.StatusOK
	healthy := "healthy"

	if s.health != nil {
		pool := s.health.GetStatus()
		checks["interpreter_pool"] = pool
		if !pool.Healthy {
			status = http.StatusServiceUnavailable
			healthy = "unhealthy"
		}
	}

	c.JSON(status, gin.H{
		"status":            healthy,
		"timestamp":         time.Now().UTC(),
		"active_executions": s.orchestrator.ActiveExecutions(),
		"checks":            checks,
	})
}

// handleGetNotebook returns every cell in document order
func (s *Server) handleGetNotebook(c *gin.Context) {
	c.JSON(http.StatusOK, s.notebookResponse())
}

// handleClearNotebook discards every cell and run
func (s *Server) handleClearNotebook(c *gin.Context) {
	s.orchestrator.ClearNotebook(c.Request.Context())
	c.JSON(http.StatusOK, s.notebookResponse())
}

// handleExportNotebook returns the notebook as a downloadable document
func (s *Server) handleExportNotebook(c *gin.Context) {
	c.Header("Content-Disposition", `attachment; filename="notebook.pysb"`)
	c.JSON(http.StatusOK, s.orchestrator.ExportDocument())
}

// handleImportNotebook replaces the notebook with the uploaded document
func (s *Server) handleImportNotebook(c *gin.Context) {
	data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxImportSize))
	if err != nil {
		s.writeBadRequest(c, err)
		return
	}

	if err := s.orchestrator.ImportDocument(c.Request.Context(), data); err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, s.notebookResponse())
}

// handleSaveNotebook stores the notebook under a name
func (s *Server) handleSaveNotebook(c *gin.Context) {
	var req SnapshotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeBadRequest(c, err)
		return
	}

	if err := s.orchestrator.SaveSnapshot(c.Request.Context(), req.Name); err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"name":     req.Name,
		"saved_at": time.Now().UTC(),
	})
}

// handleLoadNotebook replaces the notebook with a stored snapshot
func (s *Server) handleLoadNotebook(c *gin.Context) {
	var req SnapshotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeBadRequest(c, err)
		return
	}

	if err := s.orchestrator.LoadSnapshot(c.Request.Context(), req.Name); err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, s.notebookResponse())
}

// handleListSnapshots lists stored snapshot names
func (s *Server) handleListSnapshots(c *gin.Context) {
	names, err := s.orchestrator.ListSnapshots(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"snapshots": names,
		"total":     len(names),
	})
}

// handleRunAll starts running every cell in order
func (s *Server) handleRunAll(c *gin.Context) {
	s.orchestrator.RunAllAsync()

	c.JSON(http.StatusAccepted, gin.H{
		"status":     "started",
		"cells":      len(s.orchestrator.Notebook().IDs()),
		"started_at": time.Now().UTC(),
	})
}

// handleAddCell appends a cell, or inserts it before another one
func (s *Server) handleAddCell(c *gin.Context) {
	var req AddCellRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		s.writeBadRequest(c, err)
		return
	}

	kind, err := domain.ParseCellKind(req.Kind)
	if err != nil {
		s.writeBadRequest(c, err)
		return
	}

	source := domain.DefaultCellSource
	if req.Source != nil {
		source = *req.Source
	}

	cell, err := s.orchestrator.AddCell(c.Request.Context(), notebook.CellSpec{Kind: kind, Source: source}, req.Before)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, s.cellResponse(cell))
}

// handleGetCell returns a single cell
func (s *Server) handleGetCell(c *gin.Context) {
	cell, ok := s.lookupCell(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.cellResponse(cell))
}

// handleDeleteCell removes a cell
func (s *Server) handleDeleteCell(c *gin.Context) {
	id, ok := s.cellID(c)
	if !ok {
		return
	}

	if err := s.orchestrator.DeleteCell(c.Request.Context(), id); err != nil {
		s.writeError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// handleUpdateSource replaces a cell's source
func (s *Server) handleUpdateSource(c *gin.Context) {
	id, ok := s.cellID(c)
	if !ok {
		return
	}

	var req SourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeBadRequest(c, err)
		return
	}

	if err := s.orchestrator.UpdateSource(c.Request.Context(), id, req.Source); err != nil {
		s.writeError(c, err)
		return
	}

	s.respondCell(c, id, http.StatusOK)
}

// handleChangeKind switches a cell between script and markup
func (s *Server) handleChangeKind(c *gin.Context) {
	id, ok := s.cellID(c)
	if !ok {
		return
	}

	var req KindRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeBadRequest(c, err)
		return
	}

	kind, err := domain.ParseCellKind(req.Kind)
	if err != nil {
		s.writeBadRequest(c, err)
		return
	}

	if err := s.orchestrator.ChangeKind(c.Request.Context(), id, kind); err != nil {
		s.writeError(c, err)
		return
	}

	s.respondCell(c, id, http.StatusOK)
}

// handleRunCell dispatches a cell. The outcome is streamed over the
// WebSocket or observed by polling the cell.
func (s *Server) handleRunCell(c *gin.Context) {
	id, ok := s.cellID(c)
	if !ok {
		return
	}

	if err := s.orchestrator.RunCell(c.Request.Context(), id); err != nil {
		s.writeError(c, err)
		return
	}

	s.respondCell(c, id, http.StatusAccepted)
}

// handleStopCell stops a cell's run, if any
func (s *Server) handleStopCell(c *gin.Context) {
	id, ok := s.cellID(c)
	if !ok {
		return
	}

	s.orchestrator.StopCell(c.Request.Context(), id)
	s.respondCell(c, id, http.StatusOK)
}

// handleRenderCell returns a cell's markup: rendered source for markup cells,
// output markup for script cells
func (s *Server) handleRenderCell(c *gin.Context) {
	cell, ok := s.lookupCell(c)
	if !ok {
		return
	}

	html := ""
	if cell.Kind == domain.CellKindMarkup {
		html = s.render(cell.Source)
	} else if cell.Output != nil {
		html = cell.Output.Markup
	}

	c.JSON(http.StatusOK, gin.H{
		"id":   cell.ID,
		"kind": cell.Kind,
		"html": html,
	})
}

// handleRender renders markup source that is not part of the notebook
func (s *Server) handleRender(c *gin.Context) {
	var req RenderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeBadRequest(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"html": s.render(req.Source),
	})
}

func (s *Server) render(source string) string {
	s.metrics.RecordRender(string(domain.CellKindMarkup))
	return markdown.Render(source)
}

func (s *Server) notebookResponse() NotebookResponse {
	cells := s.orchestrator.Notebook().Cells()
	resp := NotebookResponse{
		Cells:            make([]CellResponse, len(cells)),
		ActiveExecutions: s.orchestrator.ActiveExecutions(),
	}
	for i, cell := range cells {
		resp.Cells[i] = s.cellResponse(cell)
	}
	return resp
}

func (s *Server) cellResponse(cell *domain.Cell) CellResponse {
	resp := CellResponse{
		ID:        cell.ID,
		Kind:      cell.Kind,
		Source:    cell.Source,
		State:     cell.State,
		Output:    cell.Output,
		UpdatedAt: cell.UpdatedAt,
	}
	if cell.Kind == domain.CellKindMarkup {
		resp.Rendered = s.render(cell.Source)
	}
	return resp
}

func (s *Server) respondCell(c *gin.Context, id int64, status int) {
	cell, err := s.orchestrator.Notebook().Cell(id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(status, s.cellResponse(cell))
}

func (s *Server) lookupCell(c *gin.Context) (*domain.Cell, bool) {
	id, ok := s.cellID(c)
	if !ok {
		return nil, false
	}

	cell, err := s.orchestrator.Notebook().Cell(id)
	if err != nil {
		s.writeError(c, err)
		return nil, false
	}
	return cell, true
}

func (s *Server) cellID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: ErrorDetail{
				Code:    "INVALID_CELL_ID",
				Message: "Cell id must be an integer",
			},
		})
		return 0, false
	}
	return id, true
}

func (s *Server) writeBadRequest(c *gin.Context, err error) {
	s.logger.Debug("invalid request", zap.Error(err))
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error: ErrorDetail{
			Code:    "INVALID_REQUEST",
			Message: err.Error(),
		},
	})
}

// writeError maps domain errors to HTTP responses
func (s *Server) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrCellNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: ErrorDetail{
				Code:    "CELL_NOT_FOUND",
				Message: "Cell not found",
			},
		})
	case errors.Is(err, domain.ErrNotebookNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: ErrorDetail{
				Code:    "NOTEBOOK_NOT_FOUND",
				Message: "Notebook snapshot not found",
			},
		})
	case errors.Is(err, domain.ErrMalformedNotebook):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: ErrorDetail{
				Code:    "INVALID_NOTEBOOK",
				Message: "Error loading notebook",
				Details: err.Error(),
			},
		})
	case errors.Is(err, domain.ErrDuplicateHandle):
		c.JSON(http.StatusConflict, ErrorResponse{
			Error: ErrorDetail{
				Code:    "RUN_IN_PROGRESS",
				Message: err.Error(),
			},
		})
	default:
		s.logger.Error("request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: ErrorDetail{
				Code:    "INTERNAL_ERROR",
				Message: err.Error(),
			},
		})
	}
}
