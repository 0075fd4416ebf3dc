package interview

import (
	"errors"
	"fmt"
	"strings"
)

// GeneratorConfig controls generator construction.
type GeneratorConfig struct {
	Provider string
	APIKey   string
	BaseURL  string
	Model    string
}

// NewGenerator picks a generation backend. "auto" uses OpenAI when a key
// is configured and falls back to the deterministic mock otherwise.
func NewGenerator(cfg GeneratorConfig) (Generator, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		provider = "auto"
	}

	switch provider {
	case "auto":
		if strings.TrimSpace(cfg.APIKey) == "" {
			return NewMockGenerator(), nil
		}
		return NewOpenAIGenerator(cfg.APIKey, cfg.BaseURL, cfg.Model), nil
	case "openai":
		if strings.TrimSpace(cfg.APIKey) == "" {
			return nil, errors.New("OPENAI_API_KEY is required for the openai generator")
		}
		return NewOpenAIGenerator(cfg.APIKey, cfg.BaseURL, cfg.Model), nil
	case "mock":
		return NewMockGenerator(), nil
	default:
		return nil, fmt.Errorf("unsupported generation provider %q", cfg.Provider)
	}
}
