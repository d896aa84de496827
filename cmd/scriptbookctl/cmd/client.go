package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	apihttp "github.com/aescanero/scriptbook/pkg/api/http"
	"github.com/aescanero/scriptbook/pkg/domain"
)

// NotebookClient handles API calls to the Scriptbook server.
type NotebookClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewNotebookClient creates a new client for the given base URL.
func NewNotebookClient(baseURL string) *NotebookClient {
	return &NotebookClient{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// APIError represents an error response from the API.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("API error (%d %s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Message)
}

// Notebook sends GET /api/v1/notebook.
func (c *NotebookClient) Notebook() (*apihttp.NotebookResponse, error) {
	var result apihttp.NotebookResponse
	if err := c.do(http.MethodGet, "/api/v1/notebook", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Cell sends GET /api/v1/cells/{id}.
func (c *NotebookClient) Cell(id int64) (*apihttp.CellResponse, error) {
	var result apihttp.CellResponse
	if err := c.do(http.MethodGet, fmt.Sprintf("/api/v1/cells/%d", id), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// AddCell sends POST /api/v1/cells.
func (c *NotebookClient) AddCell(req apihttp.AddCellRequest) (*apihttp.CellResponse, error) {
	var result apihttp.CellResponse
	if err := c.do(http.MethodPost, "/api/v1/cells", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// RunCell sends POST /api/v1/cells/{id}/run.
func (c *NotebookClient) RunCell(id int64) (*apihttp.CellResponse, error) {
	var result apihttp.CellResponse
	if err := c.do(http.MethodPost, fmt.Sprintf("/api/v1/cells/%d/run", id), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// StopCell sends POST /api/v1/cells/{id}/stop.
func (c *NotebookClient) StopCell(id int64) (*apihttp.CellResponse, error) {
	var result apihttp.CellResponse
	if err := c.do(http.MethodPost, fmt.Sprintf("/api/v1/cells/%d/stop", id), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// RunAll sends POST /api/v1/notebook/run-all.
func (c *NotebookClient) RunAll() error {
	return c.do(http.MethodPost, "/api/v1/notebook/run-all", nil, nil)
}

// Export sends GET /api/v1/notebook/export and returns the raw document.
func (c *NotebookClient) Export() ([]byte, error) {
	return c.raw(http.MethodGet, "/api/v1/notebook/export", nil)
}

// Import sends POST /api/v1/notebook/import with a raw document.
func (c *NotebookClient) Import(doc []byte) (*apihttp.NotebookResponse, error) {
	body, err := c.raw(http.MethodPost, "/api/v1/notebook/import", doc)
	if err != nil {
		return nil, err
	}

	var result apihttp.NotebookResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &result, nil
}

func (c *NotebookClient) do(method, path string, req, out interface{}) error {
	var body []byte
	if req != nil {
		var err error
		body, err = json.Marshal(req)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	respBody, err := c.raw(method, path, body)
	if err != nil {
		return err
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func (c *NotebookClient) raw(method, path string, body []byte) ([]byte, error) {
	httpReq, err := http.NewRequest(method, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Add("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
		var errResp apihttp.ErrorResponse
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error.Code != "" {
			apiErr.Code = errResp.Error.Code
			apiErr.Message = errResp.Error.Message
		}
		return nil, apiErr
	}

	return respBody, nil
}

// isSettled reports whether a cell has nothing in flight
func isSettled(cell *apihttp.CellResponse) bool {
	return cell.State != domain.LifecycleRunning
}
