package rag

import (
	"fmt"
	"strings"

	"tigrinya.news/pipeline/common/llm"
	"tigrinya.news/pipeline/internal/model"
	"tigrinya.news/pipeline/internal/vectorstore"
)

const systemPrompt = `You are a helpful assistant for Tigrinya news and history.
Use the following retrieved context to answer the question.
If you don't know the answer, say so. Answer in the same language as the question (Tigrinya or English).`

// buildMessages lays out the system instructions, the prior turns and a final
// user message carrying the retrieved context and the question.
func buildMessages(question string, hits []vectorstore.Hit, history []model.ChatTurn) []llm.Message {
	msgs := make([]llm.Message, 0, len(history)+2)
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: systemPrompt})
	for _, turn := range history {
		msgs = append(msgs, llm.Message{Role: string(turn.Role), Content: turn.Content})
	}

	var b strings.Builder
	b.WriteString("Context:\n")
	b.WriteString(formatContext(hits))
	b.WriteString("\n\nQuestion: ")
	b.WriteString(question)
	b.WriteString("\n\nAnswer:")
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: b.String()})
	return msgs
}

func formatContext(hits []vectorstore.Hit) string {
	blocks := make([]string, len(hits))
	for i, h := range hits {
		blocks[i] = fmt.Sprintf("[Source: %s]\n%s", sourceTitle(h), h.Content)
	}
	return strings.Join(blocks, "\n\n")
}

func sourceTitle(h vectorstore.Hit) string {
	if title, ok := h.Metadata["news_title"].(string); ok && title != "" {
		return title
	}
	return "Unknown"
}
