package speech

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Config selects and configures the speech backends.
type Config struct {
	Provider string
	Language string
	OpenAI   OpenAIConfig
}

// Providers bundles the resolved capability backends. Cleanup releases
// any client connections and is safe to call once on shutdown.
type Providers struct {
	Transcriber Transcriber
	Synthesizer Synthesizer
	Resolved    string
	Cleanup     func() error
}

// NewProviders resolves the transcription and synthesis backends. "auto"
// uses OpenAI when a key is configured, otherwise the mock provider.
// The google backend covers transcription only, so synthesis stays on
// OpenAI (or the mock without a key).
func NewProviders(ctx context.Context, cfg Config) (*Providers, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		provider = "auto"
	}

	hasKey := strings.TrimSpace(cfg.OpenAI.APIKey) != ""

	switch provider {
	case "auto":
		if hasKey {
			p := NewOpenAIProvider(cfg.OpenAI)
			return &Providers{Transcriber: p, Synthesizer: p, Resolved: "openai", Cleanup: noCleanup}, nil
		}
		m := NewMockProvider()
		return &Providers{Transcriber: m, Synthesizer: m, Resolved: "mock", Cleanup: noCleanup}, nil
	case "openai":
		if !hasKey {
			return nil, errors.New("OPENAI_API_KEY is required for the openai speech provider")
		}
		p := NewOpenAIProvider(cfg.OpenAI)
		return &Providers{Transcriber: p, Synthesizer: p, Resolved: "openai", Cleanup: noCleanup}, nil
	case "google":
		g, err := NewGoogleTranscriber(ctx, cfg.Language)
		if err != nil {
			return nil, err
		}
		var synth Synthesizer
		if hasKey {
			synth = NewOpenAIProvider(cfg.OpenAI)
		} else {
			synth = NewMockProvider()
		}
		return &Providers{Transcriber: g, Synthesizer: synth, Resolved: "google", Cleanup: g.Close}, nil
	case "mock":
		m := NewMockProvider()
		return &Providers{Transcriber: m, Synthesizer: m, Resolved: "mock", Cleanup: noCleanup}, nil
	default:
		return nil, fmt.Errorf("unsupported speech provider %q", cfg.Provider)
	}
}

func noCleanup() error { return nil }
