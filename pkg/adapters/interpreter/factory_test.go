package interpreter

import (
	"errors"
	"testing"

	"github.com/aescanero/scriptbook/pkg/adapters/interpreter/process"
	"github.com/aescanero/scriptbook/pkg/domain"
	"go.uber.org/zap"
)

func TestNewExecutor(t *testing.T) {
	exec, err := NewExecutor(&Config{Executor: "process", Command: []string{"sh"}, Logger: zap.NewNop()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := exec.(*process.Executor); !ok {
		t.Errorf("expected process executor, got %T", exec)
	}

	if _, err := NewExecutor(&Config{Executor: "wasm"}); !errors.Is(err, domain.ErrUnsupportedExecutor) {
		t.Errorf("expected ErrUnsupportedExecutor, got %v", err)
	}
}
