package chat

import (
	"fmt"
	"strings"

	"github.com/DreamCats/talk-codebase/internal/llm"
	"github.com/DreamCats/talk-codebase/internal/retrieval"
)

const condenseInstruction = `Rewrite the last question of the conversation below so that it can be understood without the conversation. Keep the question's language. Reply with the rewritten question only.`

const answerInstruction = `You answer questions about a software project using excerpts of its files.
Each excerpt starts with the file it was taken from.
If the excerpts do not contain the answer, say that you don't know instead of guessing.

Excerpts:
%s`

// condenseMessages asks the model to turn a follow-up into a standalone question
func condenseMessages(history *History, question string) []llm.Message {
	var b strings.Builder
	for _, t := range history.Turns() {
		fmt.Fprintf(&b, "User: %s\nAssistant: %s\n", t.Question, t.Answer)
	}
	fmt.Fprintf(&b, "User: %s\n", question)

	return []llm.Message{
		{Role: llm.RoleSystem, Content: condenseInstruction},
		{Role: llm.RoleUser, Content: b.String()},
	}
}

// answerMessages builds the final request: retrieved context, history, question
func answerMessages(history *History, results []retrieval.Result, question string) []llm.Message {
	var ctx strings.Builder
	for i, r := range results {
		if i > 0 {
			ctx.WriteString("\n")
		}
		fmt.Fprintf(&ctx, "--- %s\n%s\n", r.Chunk.Source, r.Chunk.Content)
	}

	msgs := []llm.Message{{Role: llm.RoleSystem, Content: fmt.Sprintf(answerInstruction, ctx.String())}}
	msgs = append(msgs, history.Messages()...)
	return append(msgs, llm.Message{Role: llm.RoleUser, Content: question})
}
