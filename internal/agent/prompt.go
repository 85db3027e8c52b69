package agent

import (
	"fmt"
	"strings"

	"rag-chatbot/internal/knowledge"
	"rag-chatbot/internal/llm"
)

// Instructions is the system prompt that keeps answers grounded in the
// uploaded documents.
const Instructions = `You are a document assistant. Answer questions using only the excerpts retrieved from the user's uploaded documents.

Grounding:
- Base every statement on the excerpts below. Do not rely on general knowledge or guesses.
- If the excerpts do not state the answer, say the information is not available in the documents and briefly describe what they do cover.
- If the question rests on a premise the documents contradict, point out the discrepancy using the documents' own content.

Structure:
- When grouping or listing items, keep the categories and terminology used by the document. Do not invent new groupings.
- Do not answer questions about authorship, publisher, version, dates or ownership unless the excerpts state them.

Evidence:
- Say where each fact appears (document name, section, heading or page) and include a short direct quote when possible.
- Use the document's wording. Be precise, factual and concise. Format answers in Markdown.`

// buildMessages assembles the system prompt, prior turns and the question.
func buildMessages(question string, results []knowledge.Result, history []llm.Message) []llm.Message {
	var sys strings.Builder
	sys.WriteString(Instructions)
	sys.WriteString("\n\n")
	if len(results) == 0 {
		sys.WriteString("No relevant excerpts were found in the knowledge base.")
	} else {
		sys.WriteString(llm.ContextHeader)
		for i, r := range results {
			fmt.Fprintf(&sys, "[%d] %s (chunk %d)\n%s\n\n", i+1, r.Name, r.Chunk, strings.TrimSpace(r.Content))
		}
	}

	out := make([]llm.Message, 0, len(history)+2)
	out = append(out, llm.Message{Role: llm.RoleSystem, Content: strings.TrimRight(sys.String(), "\n")})
	out = append(out, history...)
	out = append(out, llm.Message{Role: llm.RoleUser, Content: question})
	return out
}
