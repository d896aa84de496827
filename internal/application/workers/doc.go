// Package workers implements the interpreter worker pool.
//
// The pool subscribes to interpreter requests and control events. Requests
// are queued for a fixed number of goroutines that:
//   - Execute the cell source with the configured executor
//   - Write the result to the request's output target
//   - Publish a result event naming the output target
//
// Cancel events stop queued or running jobs; their results are discarded.
// The health monitor tracks worker status and logs metrics.
package workers
