package answer

import (
	"context"
	"errors"
	"fmt"
)

// ErrorPrefix starts every user-visible failure message.
const ErrorPrefix = "Error generating answer: "

// Pipeline stages, in execution order.
const (
	StageRefine     = "refine"
	StageRetrieve   = "retrieve"
	StageAnswer     = "answer"
	StageSynthesize = "synthesize"
)

var (
	ErrRetrieval = errors.New("retrieval failed")
	ErrModelCall = errors.New("model call failed")
)

// PipelineError records which stage stopped the pipeline.
type PipelineError struct {
	Stage string
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

func retrievalError(err error) error {
	return &PipelineError{Stage: StageRetrieve, Err: fmt.Errorf("%w: %w", ErrRetrieval, err)}
}

func modelError(stage string, err error) error {
	return &PipelineError{Stage: stage, Err: fmt.Errorf("%w: %w", ErrModelCall, err)}
}

// Result is the outcome of one batch pipeline run.
type Result struct {
	Answer       string
	RefinedQuery string
	Documents    int
	Chunks       int
	Err          error
}

// Text renders the result as the message posted back to the user.
func (r Result) Text() string {
	if r.Err != nil {
		return ErrorText(r.Err)
	}
	return r.Answer
}

// ErrorText is the user-visible rendering of a pipeline failure.
func ErrorText(err error) string {
	return ErrorPrefix + err.Error()
}

// ErrorKind classifies Err for logs and metrics. Empty on success.
func (r Result) ErrorKind() string {
	return errorKind(r.Err)
}

func errorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, ErrRetrieval):
		return "retrieval"
	case errors.Is(err, ErrModelCall):
		return "model_call"
	default:
		return "internal"
	}
}
