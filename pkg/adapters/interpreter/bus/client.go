package bus

import (
	"context"
	"fmt"
	"time"

	"github.com/aescanero/scriptbook/pkg/ports"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Client implements Interpreter by publishing requests to the worker pool
// over the event bus
type Client struct {
	eventBus ports.EventBus
	logger   *zap.Logger
}

// NewClient creates a new event bus interpreter client
func NewClient(eventBus ports.EventBus, logger *zap.Logger) *Client {
	return &Client{
		eventBus: eventBus,
		logger:   logger,
	}
}

// Submit publishes req and returns the reference of the new job. The source
// travels as structured event data.
func (c *Client) Submit(ctx context.Context, req ports.Request) (ports.ResourceRef, error) {
	ref := ports.ResourceRef(uuid.New().String())

	event := ports.Event{
		ID:        uuid.New().String(),
		Type:      ports.EventTypeInterpreterSubmit,
		Timestamp: time.Now(),
		CellID:    req.CellID,
		Data: map[string]interface{}{
			"resource":      string(ref),
			"output_target": req.OutputTarget,
			"source":        req.Source,
		},
	}

	if err := c.eventBus.Publish(ctx, ports.TopicInterpreterRequests, event); err != nil {
		return "", fmt.Errorf("failed to submit source: %w", err)
	}

	c.logger.Debug("source submitted",
		zap.Int64("cell_id", req.CellID),
		zap.String("resource", string(ref)),
		zap.String("output_target", req.OutputTarget))

	return ref, nil
}

// Cancel asks the worker pool to stop the job behind ref
func (c *Client) Cancel(ctx context.Context, ref ports.ResourceRef) error {
	event := ports.Event{
		ID:        uuid.New().String(),
		Type:      ports.EventTypeInterpreterCancel,
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"resource": string(ref),
		},
	}

	if err := c.eventBus.Publish(ctx, ports.TopicInterpreterControl, event); err != nil {
		return fmt.Errorf("failed to cancel job: %w", err)
	}
	return nil
}
