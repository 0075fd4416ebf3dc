package speech

import (
	"context"
	"strings"
	"sync"

	"github.com/devashq/intervoice/internal/audio"
)

// MockProvider is a local fallback provider used when no speech backend
// is configured. Transcription echoes a canned phrase; synthesis returns
// a short silent WAV clip so downstream delivery still ships real bytes.
type MockProvider struct {
	mu          sync.Mutex
	transcripts []string
}

func NewMockProvider() *MockProvider { return &MockProvider{} }

// QueueTranscripts sets the texts returned by subsequent Transcribe calls.
func (p *MockProvider) QueueTranscripts(texts ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.transcripts = append(p.transcripts, texts...)
}

func (p *MockProvider) Transcribe(_ context.Context, audioBytes []byte, _ string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.transcripts) > 0 {
		next := p.transcripts[0]
		p.transcripts = p.transcripts[1:]
		return next, nil
	}
	if len(audioBytes) == 0 {
		return "", nil
	}
	return "simulated voice input", nil
}

func (p *MockProvider) Synthesize(_ context.Context, text string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	// 200ms of silence at 16kHz mono.
	pcm := make([]byte, 16000*2/5)
	return audio.EncodeWAVPCM16LE(pcm, 16000), nil
}
