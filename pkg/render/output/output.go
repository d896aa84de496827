// Package output turns execution results into escaped display markup and
// output artifacts.
package output

import (
	"html"
	"strings"

	"github.com/aescanero/scriptbook/pkg/domain"
)

// Messages for failures synthesized by the orchestrator
const (
	NoOutputMessage     = "Code executed successfully (no output)"
	TimeoutMessage      = "An error occurred during execution. The code did not complete."
	CancellationMessage = "Execution stopped by user"
)

// Render converts an execution result into display markup. An error trace
// suppresses stdout, stderr and images.
func Render(result *domain.ExecutionResult) string {
	if result == nil {
		return noOutput()
	}
	if result.HasError() {
		return errorBlock(result.Error)
	}

	var b strings.Builder
	if result.Stdout != "" {
		b.WriteString(`<pre class="text-output">` + html.EscapeString(result.Stdout) + `</pre>`)
	}
	if result.Stderr != "" {
		b.WriteString(`<pre class="text-output stderr">` + html.EscapeString(result.Stderr) + `</pre>`)
	}
	for _, img := range result.Images {
		b.WriteString(`<img src="data:image/png;base64,` + img + `" class="plot-output" alt="Plot">`)
	}
	if b.Len() == 0 {
		return noOutput()
	}
	return b.String()
}

// Artifact classifies a result by its richest payload (error, images, text)
// and attaches its rendered markup
func Artifact(result *domain.ExecutionResult) domain.OutputArtifact {
	markup := Render(result)
	switch {
	case result == nil:
		return domain.OutputArtifact{Kind: domain.ArtifactEmpty, Markup: markup}
	case result.HasError():
		return domain.OutputArtifact{
			Kind:    domain.ArtifactError,
			Content: result.Error,
			Failure: domain.FailureSyntaxOrRuntime,
			Markup:  markup,
		}
	case len(result.Images) > 0:
		return domain.OutputArtifact{
			Kind:    domain.ArtifactImageSequence,
			Content: result.Stdout,
			Stderr:  result.Stderr,
			Images:  append([]string(nil), result.Images...),
			Markup:  markup,
		}
	case result.Stdout != "" || result.Stderr != "":
		return domain.OutputArtifact{
			Kind:    domain.ArtifactText,
			Content: result.Stdout,
			Stderr:  result.Stderr,
			Markup:  markup,
		}
	default:
		return domain.OutputArtifact{Kind: domain.ArtifactEmpty, Markup: markup}
	}
}

// Failure builds an error artifact for a locally synthesized failure
func Failure(kind domain.FailureKind, message string) domain.OutputArtifact {
	return domain.OutputArtifact{
		Kind:    domain.ArtifactError,
		Content: message,
		Failure: kind,
		Markup:  errorBlock(message),
	}
}

func errorBlock(msg string) string {
	return `<div class="error">` + html.EscapeString(msg) + `</div>`
}

func noOutput() string {
	return `<div class="no-output">` + NoOutputMessage + `</div>`
}
