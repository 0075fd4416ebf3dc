package interview

import (
	"context"
	"fmt"
	"strings"
)

// MockGenerator is a deterministic stand-in used when no API key is
// configured and in tests. It follows the interview script mechanically:
// introduction first, one topic at a time, confirmation before ending.
type MockGenerator struct{}

func NewMockGenerator() *MockGenerator { return &MockGenerator{} }

func (g *MockGenerator) Generate(_ context.Context, messages []Message) (string, error) {
	transcript := stripPromptPreamble(messages)
	progress := DeriveProgress(transcript)

	if progress.Concluded {
		return TerminationToken, nil
	}
	if UserConfirmedTermination(transcript) {
		return TerminationToken, nil
	}
	if progress.PendingTermination {
		return "Of course. Just to be sure, would you like to end the interview here?", nil
	}

	if lastTurnByRole(transcript, RoleAssistant) == nil {
		return fmt.Sprintf(
			"Hello, I'm your interview assistant. I'd like to hear about challenges you face on campus, starting with %s. How do you feel about it?",
			strings.ToLower(Topics[0]),
		), nil
	}

	// The script steers back when the user jumps to another topic before
	// the current one is finished.
	if last := lastTurn(transcript); last != nil && last.Role == RoleUser && len(progress.TopicsCovered) > 0 {
		if raised, ok := raisedTopic(last.Content); ok && raised != progress.CurrentTopic {
			return fmt.Sprintf(
				"I hear you on %s, and we will come to that. Before we do, what else about %s would you like to share?",
				strings.ToLower(raised), strings.ToLower(progress.CurrentTopic),
			), nil
		}
	}

	next := nextTopic(progress)
	return fmt.Sprintf(
		"I see, thank you for sharing that. Could you tell me a bit more about %s? What bothers you most about it?",
		strings.ToLower(next),
	), nil
}

func nextTopic(p Progress) string {
	covered := make(map[string]bool, len(p.TopicsCovered))
	for _, t := range p.TopicsCovered {
		covered[t] = true
	}
	for _, t := range Topics {
		if !covered[t] {
			return t
		}
	}
	return Topics[len(Topics)-1]
}

// stripPromptPreamble drops the leading persona and briefing messages so
// the mock reasons over the conversation itself.
func stripPromptPreamble(messages []Message) []Message {
	out := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == RoleSystem {
			continue
		}
		if m.Role == RoleUser && m.Content == Script {
			continue
		}
		out = append(out, m)
	}
	return out
}
