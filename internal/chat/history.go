package chat

import "github.com/DreamCats/talk-codebase/internal/llm"

// Turn is one answered question
type Turn struct {
	Question string
	Answer   string
}

// History is the conversation so far. It lives only as long as the session.
type History struct {
	turns []Turn
}

// Add appends an answered question
func (h *History) Add(question, answer string) {
	h.turns = append(h.turns, Turn{Question: question, Answer: answer})
}

// Turns returns a copy of the recorded turns, oldest first
func (h *History) Turns() []Turn {
	return append([]Turn(nil), h.turns...)
}

func (h *History) Len() int {
	return len(h.turns)
}

// Reset forgets every turn
func (h *History) Reset() {
	h.turns = nil
}

// Messages renders the history as alternating user and assistant messages
func (h *History) Messages() []llm.Message {
	msgs := make([]llm.Message, 0, 2*len(h.turns))
	for _, t := range h.turns {
		msgs = append(msgs,
			llm.Message{Role: llm.RoleUser, Content: t.Question},
			llm.Message{Role: llm.RoleAssistant, Content: t.Answer},
		)
	}
	return msgs
}
