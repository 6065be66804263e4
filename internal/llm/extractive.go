package llm

import (
	"context"
	"regexp"
	"strings"

	"textbook-rag/internal/summarizer"
)

var documentHeaderRe = regexp.MustCompile(`(?m)^Document \d+ \(from .*, category: .*\):$`)

// Extractive answers without a language model by quoting the context
// sentences that best match the question.
type Extractive struct {
	summarizer   *summarizer.FrequencySummarizer
	maxSentences int
}

func NewExtractive(maxSentences int) *Extractive {
	if maxSentences <= 0 {
		maxSentences = 5
	}
	return &Extractive{summarizer: summarizer.NewFrequencySummarizer(), maxSentences: maxSentences}
}

func (e *Extractive) Generate(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	contextText, question := splitPrompt(prompt)
	contextText = strings.TrimSpace(documentHeaderRe.ReplaceAllString(contextText, ""))
	if contextText == "" {
		return "The context does not contain information to answer this question.", nil
	}
	return e.summarizer.Summarize(contextText, question, e.maxSentences), nil
}
