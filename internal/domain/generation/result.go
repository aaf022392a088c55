// Package generation holds the outcome of a text-generation call.
package generation

// Status of a generation attempt.
type Status string

// Generation statuses.
const (
	StatusOK     Status = "ok"
	StatusFailed Status = "generation_failed"
)

// Result is either generated content or the reason generation failed.
type Result struct {
	status  Status
	content string
	reason  string
}

// Ok wraps generated content.
func Ok(content string) Result { return Result{status: StatusOK, content: content} }

// Failed records why no content was produced.
func Failed(reason string) Result { return Result{status: StatusFailed, reason: reason} }

// IsOk reports whether generation produced content.
func (r Result) IsOk() bool { return r.status == StatusOK }

// Status returns the outcome.
func (r Result) Status() Status { return r.status }

// Content returns the generated text; empty when failed.
func (r Result) Content() string { return r.content }

// Reason returns the failure reason; empty on success.
func (r Result) Reason() string { return r.reason }
