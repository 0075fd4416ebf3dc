package fault

import (
	"errors"
	"fmt"
)

// Stage names the external capability that failed.
type Stage string

const (
	StageTranscription Stage = "transcription"
	StageGeneration    Stage = "generation"
	StageSynthesis     Stage = "synthesis"
	StageStorage       Stage = "storage"
)

// InputError rejects a request before any side effect happens.
type InputError struct {
	Reason string
}

func (e *InputError) Error() string {
	return "invalid input: " + e.Reason
}

func NewInputError(reason string) *InputError {
	return &InputError{Reason: reason}
}

// UpstreamError wraps a failure from an external capability service.
// Retryable reflects the upstream's own classification; the pipeline
// never retries on its behalf.
type UpstreamError struct {
	Stage     Stage
	Err       error
	Retryable bool
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s failed: %v", e.Stage, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func NewUpstreamError(stage Stage, err error, retryable bool) *UpstreamError {
	return &UpstreamError{Stage: stage, Err: err, Retryable: retryable}
}

// StorageError wraps a conversation store append or read failure.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s failed: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func NewStorageError(op string, err error) *StorageError {
	return &StorageError{Op: op, Err: err}
}

// IsInput reports whether err is (or wraps) an InputError.
func IsInput(err error) bool {
	var ie *InputError
	return errors.As(err, &ie)
}

// UpstreamStage returns the failing stage when err is an UpstreamError.
func UpstreamStage(err error) (Stage, bool) {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.Stage, true
	}
	return "", false
}

// IsStorage reports whether err is (or wraps) a StorageError.
func IsStorage(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
