// Package llm turns retrieved chunks into an answer: it renders the prompt
// and talks to the generation backends.
package llm

import (
	"fmt"
	"strings"

	"textbook-rag/internal/domain"
)

var (
	_ domain.Generator = (*Ollama)(nil)
	_ domain.Generator = (*OpenAI)(nil)
	_ domain.Generator = (*Extractive)(nil)
)

const (
	contextHeader  = "Context information:"
	questionPrefix = "Question: "
)

const promptTemplate = `
You are an AI assistant analyzing textbooks. Use the following retrieved information to answer the question.

` + contextHeader + `
%s

` + questionPrefix + `%s

Provide a comprehensive answer based on the context information. If the information needed is not in the context, say so.
`

// FormatContext renders retrieved chunks as numbered documents.
func FormatContext(results []domain.SearchResult) string {
	parts := make([]string, 0, len(results))
	for i, r := range results {
		parts = append(parts, fmt.Sprintf("Document %d (from %s, category: %s):\n%s",
			i+1, r.Chunk.Metadata.Filename, r.Chunk.Metadata.Category, r.Chunk.Content))
	}
	return strings.Join(parts, "\n\n")
}

// BuildPrompt renders the full prompt for question over results.
func BuildPrompt(question string, results []domain.SearchResult) string {
	return fmt.Sprintf(promptTemplate, FormatContext(results), question)
}

// FormatSources lists the sources of an answer, one per line.
func FormatSources(results []domain.SearchResult) string {
	var b strings.Builder
	for i, r := range results {
		fmt.Fprintf(&b, "%d. %s (Category: %s)\n", i+1, r.Chunk.Metadata.Filename, r.Chunk.Metadata.Category)
	}
	return b.String()
}

// splitPrompt recovers the context block and the question from a prompt
// made by BuildPrompt.
func splitPrompt(prompt string) (contextText, question string) {
	ci := strings.Index(prompt, contextHeader)
	qi := strings.LastIndex(prompt, "\n"+questionPrefix)
	if ci < 0 || qi < 0 || qi < ci {
		return prompt, ""
	}
	contextText = strings.TrimSpace(prompt[ci+len(contextHeader) : qi])
	rest := prompt[qi+1+len(questionPrefix):]
	if nl := strings.Index(rest, "\n"); nl >= 0 {
		rest = rest[:nl]
	}
	return contextText, strings.TrimSpace(rest)
}
