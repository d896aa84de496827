package interpreter

import (
	"fmt"

	"github.com/aescanero/scriptbook/pkg/adapters/interpreter/process"
	"github.com/aescanero/scriptbook/pkg/domain"
	"github.com/aescanero/scriptbook/pkg/ports"
	"go.uber.org/zap"
)

// Config holds executor configuration
type Config struct {
	Executor string
	Command  []string
	Workdir  string
	// CaptureFigures runs the command through the Python runner
	CaptureFigures bool
	Logger         *zap.Logger
}

// NewExecutor creates a new executor based on kind
func NewExecutor(cfg *Config) (ports.Executor, error) {
	switch cfg.Executor {
	case "", "process":
		opts := []process.Option{process.WithWorkdir(cfg.Workdir)}
		if cfg.CaptureFigures {
			opts = append(opts, process.WithPythonRunner())
		}
		return process.NewExecutor(cfg.Command, cfg.Logger, opts...)
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedExecutor, cfg.Executor)
	}
}
