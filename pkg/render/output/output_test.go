package output

import (
	"strings"
	"testing"

	"github.com/aescanero/scriptbook/pkg/domain"
)

func TestRender_ErrorSuppressesEverythingElse(t *testing.T) {
	got := Render(&domain.ExecutionResult{
		Stdout: "out",
		Stderr: "warn",
		Error:  "Traceback: <boom>",
		Images: []string{"AAAA"},
	})

	want := `<div class="error">Traceback: &lt;boom&gt;</div>`
	if got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestRender_StdoutStderrImagesInOrder(t *testing.T) {
	got := Render(&domain.ExecutionResult{
		Stdout: "a < b",
		Stderr: "careful & slow",
		Images: []string{"first", "second"},
	})

	want := `<pre class="text-output">a &lt; b</pre>` +
		`<pre class="text-output stderr">careful &amp; slow</pre>` +
		`<img src="data:image/png;base64,first" class="plot-output" alt="Plot">` +
		`<img src="data:image/png;base64,second" class="plot-output" alt="Plot">`
	if got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestRender_NoOutputPlaceholder(t *testing.T) {
	for _, r := range []*domain.ExecutionResult{nil, {}} {
		if got := Render(r); !strings.Contains(got, NoOutputMessage) {
			t.Errorf("expected placeholder, got %s", got)
		}
	}
}

func TestArtifact(t *testing.T) {
	tests := []struct {
		name    string
		result  *domain.ExecutionResult
		kind    domain.ArtifactKind
		failure domain.FailureKind
	}{
		{"nil", nil, domain.ArtifactEmpty, domain.FailureNone},
		{"empty", &domain.ExecutionResult{}, domain.ArtifactEmpty, domain.FailureNone},
		{"error", &domain.ExecutionResult{Error: "x", Stdout: "y"}, domain.ArtifactError, domain.FailureSyntaxOrRuntime},
		{"text", &domain.ExecutionResult{Stdout: "y"}, domain.ArtifactText, domain.FailureNone},
		{"stderr only", &domain.ExecutionResult{Stderr: "y"}, domain.ArtifactText, domain.FailureNone},
		{"images", &domain.ExecutionResult{Images: []string{"a"}}, domain.ArtifactImageSequence, domain.FailureNone},
		{"text and images", &domain.ExecutionResult{Stdout: "y", Images: []string{"a"}}, domain.ArtifactImageSequence, domain.FailureNone},
		{"error and images", &domain.ExecutionResult{Error: "x", Images: []string{"a"}}, domain.ArtifactError, domain.FailureSyntaxOrRuntime},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := Artifact(tt.result)
			if a.Kind != tt.kind {
				t.Errorf("expected kind %s, got %s", tt.kind, a.Kind)
			}
			if a.Failure != tt.failure {
				t.Errorf("expected failure %q, got %q", tt.failure, a.Failure)
			}
			if a.Markup != Render(tt.result) {
				t.Errorf("artifact markup does not match Render")
			}
		})
	}
}

func TestArtifact_CopiesImages(t *testing.T) {
	images := []string{"a"}
	a := Artifact(&domain.ExecutionResult{Images: images})
	images[0] = "changed"
	if a.Images[0] != "a" {
		t.Error("artifact shares image slice with result")
	}
}

func TestArtifact_KindMatchesPayload(t *testing.T) {
	mixed := Artifact(&domain.ExecutionResult{Stdout: "out", Stderr: "warn", Images: []string{"a", "b"}})
	if mixed.Kind != domain.ArtifactImageSequence {
		t.Fatalf("expected image sequence, got %s", mixed.Kind)
	}
	if mixed.Content != "out" || mixed.Stderr != "warn" || len(mixed.Images) != 2 {
		t.Errorf("text printed with figures was dropped: %+v", mixed)
	}

	text := Artifact(&domain.ExecutionResult{Stdout: "out"})
	if text.Kind != domain.ArtifactText || text.Images != nil {
		t.Errorf("text artifact should carry no images: %+v", text)
	}

	failed := Artifact(&domain.ExecutionResult{Error: "x", Stdout: "out", Images: []string{"a"}})
	if failed.Content != "x" || failed.Stderr != "" || failed.Images != nil {
		t.Errorf("error artifact should carry only the message: %+v", failed)
	}
}

func TestFailure(t *testing.T) {
	a := Failure(domain.FailureTimeout, TimeoutMessage)
	if a.Kind != domain.ArtifactError || a.Failure != domain.FailureTimeout {
		t.Errorf("unexpected artifact %+v", a)
	}
	if !strings.HasPrefix(a.Markup, `<div class="error">`) {
		t.Errorf("unexpected markup %s", a.Markup)
	}
}
