package process

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func newShellExecutor(t *testing.T) *Executor {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	e, err := NewExecutor([]string{"sh"}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return e
}

func TestExecute_Stdout(t *testing.T) {
	e := newShellExecutor(t)

	result, err := e.Execute(context.Background(), "echo hello\necho warn >&2\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Stdout != "hello\n" || result.Stderr != "warn\n" {
		t.Errorf("unexpected result %+v", result)
	}
	if result.HasError() {
		t.Errorf("unexpected error %q", result.Error)
	}
}

func TestExecute_NonZeroExit(t *testing.T) {
	e := newShellExecutor(t)

	result, err := e.Execute(context.Background(), "echo partial\necho 'Traceback: boom' >&2\nexit 3\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Error != "Traceback: boom" {
		t.Errorf("unexpected error %q", result.Error)
	}
	if result.Stderr != "" {
		t.Errorf("stderr should be folded into the error, got %q", result.Stderr)
	}
}

func TestExecute_NonZeroExitWithoutStderr(t *testing.T) {
	e := newShellExecutor(t)

	result, err := e.Execute(context.Background(), "exit 2\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(result.Error, "Error: exit status 2") {
		t.Errorf("unexpected error %q", result.Error)
	}
}

func TestExecute_Figures(t *testing.T) {
	e := newShellExecutor(t)

	src := `printf 'PNG2' > "$SCRIPTBOOK_FIGURE_DIR/b.png"
printf 'PNG1' > "$SCRIPTBOOK_FIGURE_DIR/a.png"
printf 'skip' > "$SCRIPTBOOK_FIGURE_DIR/notes.txt"
`
	result, err := e.Execute(context.Background(), src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Images) != 2 || result.Images[0] != "UE5HMQ==" || result.Images[1] != "UE5HMg==" {
		t.Errorf("unexpected images %v", result.Images)
	}
}

func TestExecute_Cancelled(t *testing.T) {
	e := newShellExecutor(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := e.Execute(ctx, "sleep 5\n")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 4*time.Second {
		t.Errorf("cancelled process ran for %s", elapsed)
	}
}

func TestExecute_MissingCommand(t *testing.T) {
	e, _ := NewExecutor([]string{"scriptbook-no-such-interpreter"}, nil)

	if _, err := e.Execute(context.Background(), "x"); err == nil {
		t.Error("expected error for missing command")
	}
}

func TestNewExecutor_DefaultCommand(t *testing.T) {
	e, err := NewExecutor(nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Join(e.command, " ") != "python3" || e.runner {
		t.Errorf("unexpected command %v", e.command)
	}
}

func TestExecute_Workdir(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	dir := t.TempDir()
	e, err := NewExecutor([]string{"sh"}, zaptest.NewLogger(t), WithWorkdir(dir))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := e.Execute(context.Background(), "touch marker && ls\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(result.Stdout) != "marker" {
		t.Errorf("expected the process to run in %s, got %q", dir, result.Stdout)
	}
}

func newPythonExecutor(t *testing.T) *Executor {
	t.Helper()
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not available")
	}
	e, err := NewExecutor(nil, zaptest.NewLogger(t), WithPythonRunner())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return e
}

func TestWithPythonRunner_Args(t *testing.T) {
	e, err := NewExecutor([]string{"python3", "-u"}, nil, WithPythonRunner())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	args := e.args()
	if len(args) != 3 || args[0] != "-u" || args[1] != "-c" || args[2] != pythonRunner {
		t.Errorf("unexpected args %q", args[:2])
	}
	if !strings.Contains(pythonRunner, "get_fignums") {
		t.Error("runner script not embedded")
	}
}

func TestPythonRunner_Stdout(t *testing.T) {
	e := newPythonExecutor(t)

	result, err := e.Execute(context.Background(), "x = 'it''s'\nprint(x, \"\\\\\")\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.HasError() {
		t.Fatalf("unexpected error %q", result.Error)
	}
	if result.Stdout != "its \\\n" {
		t.Errorf("unexpected stdout %q", result.Stdout)
	}
	if result.Images != nil {
		t.Errorf("expected no images, got %v", result.Images)
	}
}

func TestPythonRunner_Traceback(t *testing.T) {
	e := newPythonExecutor(t)

	result, err := e.Execute(context.Background(), "print('before')\n1 / 0\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(result.Error, `File "<cell>", line 2`) || !strings.Contains(result.Error, "ZeroDivisionError") {
		t.Errorf("unexpected trace %q", result.Error)
	}
	if strings.Contains(result.Error, `File "<string>"`) {
		t.Errorf("trace should not include the runner frame: %q", result.Error)
	}
	if result.Stdout != "before\n" {
		t.Errorf("unexpected stdout %q", result.Stdout)
	}
}

func TestPythonRunner_SyntaxError(t *testing.T) {
	e := newPythonExecutor(t)

	result, err := e.Execute(context.Background(), "def (:\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(result.Error, "SyntaxError") {
		t.Errorf("expected a syntax error, got %q", result.Error)
	}
}

// stubPyplot installs a minimal matplotlib.pyplot so figure capture can be
// checked without matplotlib
const stubPyplot = `import sys, types

class Figure:
    def __init__(self, num):
        self.num = num

    def savefig(self, path, **kwargs):
        with open(path, "wb") as f:
            f.write(b"F%d" % self.num)

closed = []
plt = types.ModuleType("matplotlib.pyplot")
plt.get_fignums = lambda: [1, 2, 10]
plt.figure = Figure
plt.close = lambda fig: closed.append(fig.num)
sys.modules["matplotlib.pyplot"] = plt
`

func TestPythonRunner_CapturesOpenFigures(t *testing.T) {
	e := newPythonExecutor(t)

	result, err := e.Execute(context.Background(), stubPyplot+"print('plotted')\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.HasError() {
		t.Fatalf("unexpected error %q", result.Error)
	}

	// F1, F2, F10 in figure-number order
	want := []string{"RjE=", "RjI=", "RjEw"}
	if len(result.Images) != len(want) {
		t.Fatalf("expected %d images, got %v", len(want), result.Images)
	}
	for i := range want {
		if result.Images[i] != want[i] {
			t.Errorf("image %d: expected %s, got %s", i, want[i], result.Images[i])
		}
	}
}

func TestPythonRunner_NoFiguresAfterError(t *testing.T) {
	e := newPythonExecutor(t)

	result, err := e.Execute(context.Background(), stubPyplot+"raise ValueError('bad')\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(result.Error, "ValueError: bad") {
		t.Errorf("unexpected trace %q", result.Error)
	}
	if result.Images != nil {
		t.Errorf("expected no images after a failed run, got %v", result.Images)
	}
}
