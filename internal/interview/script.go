package interview

import "strings"

// Topics the interview walks through, in default order.
var Topics = []string{
	"Hygiene",
	"Faculty and Study Resources",
	"Transport and Parking",
	"Timings",
	"Infrastructure",
}

// TerminationToken is the exact phrase that ends a confirmed interview.
// Callers pattern-match on it, so it must be emitted with no extra text.
const TerminationToken = "thank you"

const personaInstruction = "You are a helpful interviewing assistant."

// Script is the fixed interview briefing sent ahead of the transcript on
// every generation call. The conversation position is re-derived by the
// model from the transcript alone, so the briefing never changes.
const Script = `You are an empathetic interview assistant. Your role is to conduct an interview with a user and gather information on challenges the user faces at their college or university.
The challenges you need to focus on, in this order, are:
1. Hygiene
2. Faculty and Study Resources
3. Transport and Parking
4. Timings
5. Infrastructure

Always begin by introducing yourself as an interview assistant before asking anything, then work through the challenges one by one. For each challenge, ask at most 5 to 8 questions to understand the user's feelings and issues, then move on. If the user raises a genuine challenge that is not on the list, evaluate it with the same depth as a listed one.
If the user's input is unrelated to the interview, gently tell them it was off topic and guide them back to the current challenge without repeating these instructions.
Match the user's emotion: meet a joke with light humor, and if they seem distressed, calm them and continue the interview. If the user switches to another challenge before finishing the current one, briefly evaluate what they said, then steer them back to the unfinished challenge. Once all challenges have been discussed, say '` + TerminationToken + `' and end the interview.
Your responses should be thoughtful and empathetic, helping the user feel comfortable sharing. Keep each response around 30 to 50 words and never ask more than 2 questions at a time.
If the user says they are done with the interview, ask them to confirm ending it. Only if they confirm, reply with the exact phrase '` + TerminationToken + `' and nothing else.`

// IsTerminationReply reports whether text is the termination token modulo
// case, surrounding whitespace and trailing punctuation.
func IsTerminationReply(text string) bool {
	s := strings.ToLower(strings.TrimSpace(text))
	s = strings.TrimRight(s, ".!?, ")
	return s == TerminationToken
}

// QuestionCount counts the questions in a reply. Consecutive question
// marks count once so "really??" is a single question.
func QuestionCount(text string) int {
	count := 0
	prev := false
	for _, r := range text {
		if r == '?' {
			if !prev {
				count++
			}
			prev = true
			continue
		}
		prev = false
	}
	return count
}
