package interview

import (
	"context"
	"errors"
	"strings"

	"github.com/devashq/intervoice/internal/fault"
)

// Message roles accepted by generation backends.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one prompt or transcript entry. It deliberately carries no
// storage identity.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Generator produces the assistant reply for a fully composed prompt.
type Generator interface {
	Generate(ctx context.Context, messages []Message) (string, error)
}

var errEmptyCompletion = errors.New("generation returned empty content")

// Engine builds the interview prompt around a transcript and interprets
// the generated reply.
type Engine struct {
	generator Generator
}

func NewEngine(generator Generator) *Engine {
	return &Engine{generator: generator}
}

// ComposeReply generates the next assistant turn for the given transcript.
// The prompt is always persona + interview briefing + full transcript in
// order; the engine holds no state between calls.
func (e *Engine) ComposeReply(ctx context.Context, transcript []Message) (string, error) {
	messages := make([]Message, 0, len(transcript)+2)
	messages = append(messages, Message{Role: RoleSystem, Content: personaInstruction})
	messages = append(messages, Message{Role: RoleUser, Content: Script})
	messages = append(messages, transcript...)

	text, err := e.generator.Generate(ctx, messages)
	if err != nil {
		var ue *fault.UpstreamError
		if errors.As(err, &ue) {
			return "", err
		}
		return "", fault.NewUpstreamError(fault.StageGeneration, err, false)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", fault.NewUpstreamError(fault.StageGeneration, errEmptyCompletion, false)
	}

	// Canonicalize so callers can match the exact token even when the
	// model decorates it with punctuation or casing.
	if IsTerminationReply(text) {
		return TerminationToken, nil
	}
	return text, nil
}
