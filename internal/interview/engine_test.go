package interview

import (
	"context"
	"errors"
	"testing"

	"github.com/devashq/intervoice/internal/fault"
)

type scriptedGenerator struct {
	reply    string
	err      error
	received []Message
}

func (g *scriptedGenerator) Generate(_ context.Context, messages []Message) (string, error) {
	g.received = messages
	return g.reply, g.err
}

func TestComposeReplyPromptLayout(t *testing.T) {
	gen := &scriptedGenerator{reply: "Could you tell me more about the washrooms?"}
	engine := NewEngine(gen)

	transcript := []Message{
		{Role: RoleUser, Content: "The bathrooms are never cleaned."},
	}
	reply, err := engine.ComposeReply(context.Background(), transcript)
	if err != nil {
		t.Fatalf("ComposeReply() error = %v", err)
	}
	if reply != gen.reply {
		t.Fatalf("reply = %q, want %q", reply, gen.reply)
	}

	if len(gen.received) != 3 {
		t.Fatalf("len(messages) = %d, want 3", len(gen.received))
	}
	if gen.received[0].Role != RoleSystem {
		t.Fatalf("messages[0].Role = %q, want system", gen.received[0].Role)
	}
	if gen.received[1].Role != RoleUser || gen.received[1].Content != Script {
		t.Fatalf("messages[1] should carry the interview briefing")
	}
	if gen.received[2] != transcript[0] {
		t.Fatalf("messages[2] = %+v, want transcript turn", gen.received[2])
	}
}

func TestComposeReplyEmptyCompletionIsUpstreamError(t *testing.T) {
	engine := NewEngine(&scriptedGenerator{reply: "   "})
	_, err := engine.ComposeReply(context.Background(), nil)
	if err == nil {
		t.Fatalf("ComposeReply() should fail on empty completion")
	}
	stage, ok := fault.UpstreamStage(err)
	if !ok || stage != fault.StageGeneration {
		t.Fatalf("stage = %q (ok=%v), want generation", stage, ok)
	}
}

func TestComposeReplyWrapsGeneratorError(t *testing.T) {
	engine := NewEngine(&scriptedGenerator{err: errors.New("quota exceeded")})
	_, err := engine.ComposeReply(context.Background(), nil)
	stage, ok := fault.UpstreamStage(err)
	if !ok || stage != fault.StageGeneration {
		t.Fatalf("stage = %q (ok=%v), want generation", stage, ok)
	}
}

func TestComposeReplyCanonicalizesTermination(t *testing.T) {
	for _, raw := range []string{"thank you", "Thank you.", "  THANK YOU!  "} {
		engine := NewEngine(&scriptedGenerator{reply: raw})
		reply, err := engine.ComposeReply(context.Background(), nil)
		if err != nil {
			t.Fatalf("ComposeReply(%q) error = %v", raw, err)
		}
		if reply != TerminationToken {
			t.Fatalf("reply for %q = %q, want exact termination token", raw, reply)
		}
	}
}
