package fault

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsInput(t *testing.T) {
	err := NewInputError("missing audio")
	if !IsInput(err) {
		t.Fatalf("IsInput() = false for InputError")
	}
	wrapped := fmt.Errorf("handler: %w", err)
	if !IsInput(wrapped) {
		t.Fatalf("IsInput() = false for wrapped InputError")
	}
	if IsInput(errors.New("boom")) {
		t.Fatalf("IsInput() = true for plain error")
	}
}

func TestUpstreamStage(t *testing.T) {
	cause := errors.New("status 503")
	err := NewUpstreamError(StageSynthesis, cause, true)

	stage, ok := UpstreamStage(fmt.Errorf("pipeline: %w", err))
	if !ok || stage != StageSynthesis {
		t.Fatalf("UpstreamStage() = %q, %v, want synthesis, true", stage, ok)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("UpstreamError should unwrap to its cause")
	}
	if _, ok := UpstreamStage(errors.New("boom")); ok {
		t.Fatalf("UpstreamStage() matched a plain error")
	}
}

func TestIsStorage(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewStorageError("append user turn", cause)
	if !IsStorage(err) {
		t.Fatalf("IsStorage() = false for StorageError")
	}
	if !errors.Is(err, cause) {
		t.Fatalf("StorageError should unwrap to its cause")
	}
	if IsStorage(NewInputError("nope")) {
		t.Fatalf("IsStorage() = true for InputError")
	}
}
