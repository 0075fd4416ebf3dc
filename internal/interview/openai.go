package interview

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/devashq/intervoice/internal/fault"
	"github.com/devashq/intervoice/internal/reliability"
)

// OpenAIGenerator calls the OpenAI chat completions API.
type OpenAIGenerator struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

func NewOpenAIGenerator(apiKey, baseURL, model string) *OpenAIGenerator {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	return &OpenAIGenerator{
		apiKey:  apiKey,
		baseURL: baseURL,
		model:   model,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
		breaker: reliability.NewBreaker("generation"),
	}
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (g *OpenAIGenerator) Generate(ctx context.Context, messages []Message) (string, error) {
	out, err := g.breaker.Execute(func() (any, error) {
		return g.complete(ctx, messages)
	})
	if err != nil {
		if reliability.IsBreakerOpen(err) {
			return "", fault.NewUpstreamError(fault.StageGeneration, err, true)
		}
		var ue *fault.UpstreamError
		if errors.As(err, &ue) {
			return "", err
		}
		return "", fault.NewUpstreamError(fault.StageGeneration, err, false)
	}
	return out.(string), nil
}

func (g *OpenAIGenerator) complete(ctx context.Context, messages []Message) (string, error) {
	payload, err := json.Marshal(chatRequest{Model: g.model, Messages: messages})
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	res, err := g.client.Do(req)
	if err != nil {
		return "", fault.NewUpstreamError(fault.StageGeneration, err, true)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		err := fmt.Errorf("chat completions status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
		return "", fault.NewUpstreamError(fault.StageGeneration, err, reliability.IsRetryableHTTPStatus(res.StatusCode))
	}

	var parsed chatResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return "", fault.NewUpstreamError(fault.StageGeneration, fmt.Errorf("decode chat response: %w", err), false)
	}
	if len(parsed.Choices) == 0 {
		return "", fault.NewUpstreamError(fault.StageGeneration, errEmptyCompletion, false)
	}
	return parsed.Choices[0].Message.Content, nil
}
