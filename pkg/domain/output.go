package domain

// ExecutionResult is the structured result an interpreter writes to an output target
type ExecutionResult struct {
	Stdout string   `json:"stdout"`
	Stderr string   `json:"stderr"`
	Error  string   `json:"error,omitempty"`
	Images []string `json:"images,omitempty"` // base64 encoded PNG data
}

// HasError reports whether the interpreter reported an error trace
func (r *ExecutionResult) HasError() bool {
	return r.Error != ""
}

// ArtifactKind tags the OutputArtifact union
type ArtifactKind string

const (
	ArtifactEmpty         ArtifactKind = "empty"
	ArtifactText          ArtifactKind = "text"
	ArtifactError         ArtifactKind = "error"
	ArtifactImageSequence ArtifactKind = "image_sequence"
)

// FailureKind classifies error artifacts
type FailureKind string

const (
	FailureNone             FailureKind = ""
	FailureSyntaxOrRuntime  FailureKind = "syntax_or_runtime"
	FailureTimeout          FailureKind = "timeout"
	FailureUserCancellation FailureKind = "user_cancellation"
	FailureDispatch         FailureKind = "dispatch"
)

// OutputArtifact is the immutable result attached to a cell after a run.
// Kind names the richest payload present:
//
//   - Error: Content is the message; nothing else is set.
//   - ImageSequence: Images is non-empty; Content and Stderr may hold text
//     printed alongside the figures.
//   - Text: Content holds stdout and Stderr holds stderr; Images is empty.
//   - Empty: no payload.
type OutputArtifact struct {
	Kind    ArtifactKind `json:"kind"`
	Content string       `json:"content,omitempty"`
	Stderr  string       `json:"stderr,omitempty"`
	Images  []string     `json:"images,omitempty"`
	Failure FailureKind  `json:"failure,omitempty"`
	Markup  string       `json:"markup"`
}

// Clone returns a deep copy
func (a OutputArtifact) Clone() OutputArtifact {
	if a.Images != nil {
		a.Images = append([]string(nil), a.Images...)
	}
	return a
}
