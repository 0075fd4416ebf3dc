package speech

import (
	"context"
	"testing"
)

func TestNewProvidersAutoWithoutKey(t *testing.T) {
	p, err := NewProviders(context.Background(), Config{Provider: "auto"})
	if err != nil {
		t.Fatalf("NewProviders() error = %v", err)
	}
	if p.Resolved != "mock" {
		t.Fatalf("Resolved = %q, want mock without an API key", p.Resolved)
	}
	if _, ok := p.Transcriber.(*MockProvider); !ok {
		t.Fatalf("Transcriber = %T, want *MockProvider", p.Transcriber)
	}
	if err := p.Cleanup(); err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
}

func TestNewProvidersAutoWithKey(t *testing.T) {
	p, err := NewProviders(context.Background(), Config{
		Provider: "auto",
		OpenAI:   OpenAIConfig{APIKey: "sk-test"},
	})
	if err != nil {
		t.Fatalf("NewProviders() error = %v", err)
	}
	if p.Resolved != "openai" {
		t.Fatalf("Resolved = %q, want openai", p.Resolved)
	}
	if _, ok := p.Transcriber.(*OpenAIProvider); !ok {
		t.Fatalf("Transcriber = %T, want *OpenAIProvider", p.Transcriber)
	}
}

func TestNewProvidersOpenAIRequiresKey(t *testing.T) {
	if _, err := NewProviders(context.Background(), Config{Provider: "openai"}); err == nil {
		t.Fatalf("NewProviders(openai) without key should fail")
	}
}

func TestNewProvidersRejectsUnknown(t *testing.T) {
	if _, err := NewProviders(context.Background(), Config{Provider: "carrier-pigeon"}); err == nil {
		t.Fatalf("NewProviders(carrier-pigeon) should fail")
	}
}
