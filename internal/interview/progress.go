package interview

import "strings"

// Progress is the interview position derived fresh from a transcript.
// Nothing here is persisted; the transcript is the only source of truth,
// so a request can resume correctly from the store alone.
type Progress struct {
	CurrentTopic       string   `json:"current_topic"`
	TopicsCovered      []string `json:"topics_covered"`
	PendingTermination bool     `json:"pending_termination"`
	Concluded          bool     `json:"concluded"`
}

var topicKeywords = map[string][]string{
	"Hygiene":                     {"hygiene", "clean", "sanit", "washroom", "restroom", "toilet"},
	"Faculty and Study Resources": {"faculty", "professor", "teacher", "study resource", "library", "lab ", "labs"},
	"Transport and Parking":       {"transport", "parking", "bus", "commute", "shuttle"},
	"Timings":                     {"timing", "schedule", "hours", "closes", "opens", "early", "late"},
	"Infrastructure":              {"infrastructure", "building", "classroom", "wifi", "wi-fi", "equipment", "facilit"},
}

var stopIntentPhrases = []string{
	"i'm done", "im done", "i am done", "stop the interview", "end the interview",
	"wrap up", "that's all", "thats all", "no more questions", "i want to stop",
	"can we stop", "let's stop", "lets stop", "finish the interview",
}

var confirmPhrases = []string{
	"yes", "yeah", "yep", "sure", "confirm", "i confirm", "please do",
	"go ahead", "end it", "i'm sure", "im sure", "i am sure", "correct",
}

var confirmQuestionMarkers = []string{
	"end the interview", "finish the interview", "stop the interview",
	"are you sure", "confirm",
}

// DeriveProgress recomputes the interview position from the transcript.
func DeriveProgress(transcript []Message) Progress {
	p := Progress{}
	if len(Topics) > 0 {
		p.CurrentTopic = Topics[0]
	}

	covered := make(map[string]bool)
	for _, m := range transcript {
		if m.Role != RoleAssistant {
			continue
		}
		lower := strings.ToLower(m.Content)
		for _, topic := range Topics {
			if mentionsTopic(lower, topic) {
				if !covered[topic] {
					covered[topic] = true
					p.TopicsCovered = append(p.TopicsCovered, topic)
				}
				p.CurrentTopic = topic
			}
		}
	}

	last := lastTurn(transcript)
	lastAssistant := lastTurnByRole(transcript, RoleAssistant)

	if lastAssistant != nil && IsTerminationReply(lastAssistant.Content) {
		p.Concluded = true
		return p
	}

	if last != nil && last.Role == RoleUser && hasStopIntent(last.Content) {
		p.PendingTermination = true
	}
	if lastAssistant != nil && asksTerminationConfirmation(lastAssistant.Content) {
		p.PendingTermination = true
	}

	return p
}

// UserConfirmedTermination reports whether the transcript ends with the
// user agreeing to stop, right after the assistant asked for confirmation.
func UserConfirmedTermination(transcript []Message) bool {
	if len(transcript) < 2 {
		return false
	}
	last := transcript[len(transcript)-1]
	prev := transcript[len(transcript)-2]
	if last.Role != RoleUser || prev.Role != RoleAssistant {
		return false
	}
	if !asksTerminationConfirmation(prev.Content) {
		return false
	}
	return isConfirmation(last.Content)
}

// raisedTopic returns the first scripted topic the text mentions.
func raisedTopic(text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, topic := range Topics {
		if mentionsTopic(lower, topic) {
			return topic, true
		}
	}
	return "", false
}

func mentionsTopic(lowerText, topic string) bool {
	for _, kw := range topicKeywords[topic] {
		if strings.Contains(lowerText, kw) {
			return true
		}
	}
	return false
}

func hasStopIntent(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range stopIntentPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

func asksTerminationConfirmation(text string) bool {
	lower := strings.ToLower(text)
	if !strings.Contains(lower, "?") {
		return false
	}
	for _, marker := range confirmQuestionMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func isConfirmation(text string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	lower = strings.TrimRight(lower, ".!?, ")
	for _, phrase := range confirmPhrases {
		if lower == phrase || strings.HasPrefix(lower, phrase+" ") || strings.HasPrefix(lower, phrase+",") {
			return true
		}
	}
	return false
}

func lastTurn(transcript []Message) *Message {
	if len(transcript) == 0 {
		return nil
	}
	return &transcript[len(transcript)-1]
}

func lastTurnByRole(transcript []Message, role string) *Message {
	for i := len(transcript) - 1; i >= 0; i-- {
		if transcript[i].Role == role {
			return &transcript[i]
		}
	}
	return nil
}
