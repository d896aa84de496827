package process

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aescanero/scriptbook/pkg/domain"
	"go.uber.org/zap"
)

// FigureDirEnv names the directory where a run may leave PNG figures
const FigureDirEnv = "SCRIPTBOOK_FIGURE_DIR"

// DefaultCommand reads the program from stdin
var DefaultCommand = []string{"python3"}

// pythonRunner executes stdin as a cell and saves open pyplot figures
//
//go:embed runner.py
var pythonRunner string

// killGrace bounds how long a cancelled process may keep its pipes open
const killGrace = 2 * time.Second

// Executor runs each source in a fresh interpreter process
type Executor struct {
	command []string
	workdir string
	runner  bool
	logger  *zap.Logger
}

// Option configures an Executor
type Option func(*Executor)

// WithWorkdir runs every process in dir. An empty dir keeps the server's
// working directory.
func WithWorkdir(dir string) Option {
	return func(e *Executor) {
		e.workdir = dir
	}
}

// WithPythonRunner runs the command as a Python interpreter with the bundled
// runner: the cell is read from stdin and every open pyplot figure is saved
// as an image after a successful run.
func WithPythonRunner() Option {
	return func(e *Executor) {
		e.runner = true
	}
}

// NewExecutor creates a process executor. An empty command selects
// DefaultCommand.
func NewExecutor(command []string, logger *zap.Logger, opts ...Option) (*Executor, error) {
	if len(command) == 0 {
		command = DefaultCommand
	}
	if command[0] == "" {
		return nil, fmt.Errorf("executor command is empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	e := &Executor{
		command: append([]string(nil), command...),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Execute runs source and returns what it printed. A non-zero exit is
// reported in the result's Error with the process's stderr as the trace.
// Cancelling ctx kills the process.
func (e *Executor) Execute(ctx context.Context, source string) (*domain.ExecutionResult, error) {
	figureDir, err := os.MkdirTemp("", "scriptbook-figures-")
	if err != nil {
		return nil, fmt.Errorf("failed to create figure directory: %w", err)
	}
	defer os.RemoveAll(figureDir)

	cmd := exec.CommandContext(ctx, e.command[0], e.args()...)
	cmd.Stdin = strings.NewReader(source)
	cmd.Dir = e.workdir
	cmd.Env = append(os.Environ(),
		FigureDirEnv+"="+figureDir,
		"MPLBACKEND=Agg",
	)
	cmd.WaitDelay = killGrace

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	result := &domain.ExecutionResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if runErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			return nil, fmt.Errorf("failed to run %s: %w", e.command[0], runErr)
		}
		trace := strings.TrimRight(result.Stderr, "\n")
		if trace == "" {
			trace = "Error: " + exitErr.Error()
		}
		result.Error = trace
		result.Stderr = ""
	}

	images, err := collectFigures(figureDir)
	if err != nil {
		e.logger.Warn("failed to collect figures", zap.Error(err))
	}
	result.Images = images

	e.logger.Debug("process finished",
		zap.String("command", e.command[0]),
		zap.Bool("error", result.HasError()),
		zap.Int("images", len(images)),
		zap.Duration("duration", time.Since(start)))

	return result, nil
}

func (e *Executor) args() []string {
	args := append([]string(nil), e.command[1:]...)
	if e.runner {
		args = append(args, "-c", pythonRunner)
	}
	return args
}

// collectFigures returns the base64 encoding of every PNG in dir, in file
// name order
func collectFigures(dir string) ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.png"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	images := make([]string, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return images, err
		}
		images = append(images, base64.StdEncoding.EncodeToString(data))
	}
	if len(images) == 0 {
		return nil, nil
	}
	return images, nil
}
