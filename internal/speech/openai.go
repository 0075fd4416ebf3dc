package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/devashq/intervoice/internal/fault"
	"github.com/devashq/intervoice/internal/reliability"
)

// OpenAIConfig holds settings for the OpenAI speech backends.
type OpenAIConfig struct {
	APIKey          string
	BaseURL         string
	TranscribeModel string
	TTSModel        string
	TTSVoice        string
}

// OpenAIProvider implements Transcriber and Synthesizer against the
// OpenAI audio endpoints.
type OpenAIProvider struct {
	cfg        OpenAIConfig
	client     *http.Client
	sttBreaker *gobreaker.CircuitBreaker
	ttsBreaker *gobreaker.CircuitBreaker
}

func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com"
	}
	if cfg.TranscribeModel == "" {
		cfg.TranscribeModel = "whisper-1"
	}
	if cfg.TTSModel == "" {
		cfg.TTSModel = "tts-1"
	}
	if cfg.TTSVoice == "" {
		cfg.TTSVoice = "alloy"
	}
	return &OpenAIProvider{
		cfg: cfg,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
		sttBreaker: reliability.NewBreaker("transcription"),
		ttsBreaker: reliability.NewBreaker("synthesis"),
	}
}

func (p *OpenAIProvider) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	out, err := p.sttBreaker.Execute(func() (any, error) {
		return p.transcribe(ctx, audio, filename)
	})
	if err != nil {
		return "", wrapUpstream(fault.StageTranscription, err)
	}
	return out.(string), nil
}

func (p *OpenAIProvider) transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	if filename == "" {
		filename = "audio.wav"
	}

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", fmt.Errorf("write form file: %w", err)
	}
	if err := form.WriteField("model", p.cfg.TranscribeModel); err != nil {
		return "", fmt.Errorf("write model field: %w", err)
	}
	if err := form.Close(); err != nil {
		return "", fmt.Errorf("close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/v1/audio/transcriptions", &body)
	if err != nil {
		return "", fmt.Errorf("create transcription request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	res, err := p.client.Do(req)
	if err != nil {
		return "", fault.NewUpstreamError(fault.StageTranscription, err, true)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return "", statusError(fault.StageTranscription, res)
	}

	var parsed struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return "", fault.NewUpstreamError(fault.StageTranscription, fmt.Errorf("decode transcription response: %w", err), false)
	}
	return parsed.Text, nil
}

func (p *OpenAIProvider) Synthesize(ctx context.Context, text string) ([]byte, error) {
	out, err := p.ttsBreaker.Execute(func() (any, error) {
		return p.synthesize(ctx, text)
	})
	if err != nil {
		return nil, wrapUpstream(fault.StageSynthesis, err)
	}
	return out.([]byte), nil
}

func (p *OpenAIProvider) synthesize(ctx context.Context, text string) ([]byte, error) {
	payload, err := json.Marshal(map[string]string{
		"model": p.cfg.TTSModel,
		"voice": p.cfg.TTSVoice,
		"input": text,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal speech request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/v1/audio/speech", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create speech request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	res, err := p.client.Do(req)
	if err != nil {
		return nil, fault.NewUpstreamError(fault.StageSynthesis, err, true)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, statusError(fault.StageSynthesis, res)
	}

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fault.NewUpstreamError(fault.StageSynthesis, fmt.Errorf("read speech response: %w", err), false)
	}
	return data, nil
}

func statusError(stage fault.Stage, res *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
	err := fmt.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	return fault.NewUpstreamError(stage, err, reliability.IsRetryableHTTPStatus(res.StatusCode))
}

func wrapUpstream(stage fault.Stage, err error) error {
	if reliability.IsBreakerOpen(err) {
		return fault.NewUpstreamError(stage, err, true)
	}
	var ue *fault.UpstreamError
	if errors.As(err, &ue) {
		return err
	}
	return fault.NewUpstreamError(stage, err, false)
}
