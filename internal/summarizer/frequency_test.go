package summarizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSummarizeKeepsOriginalOrder(t *testing.T) {
	s := NewFrequencySummarizer()
	text := "Cells divide by mitosis. The weather was nice. Mitosis produces two cells. Cells need energy."
	got := s.Summarize(text, "", 2)
	assert.Equal(t, "Cells divide by mitosis. Mitosis produces two cells.", got)
}

func TestSummarizeFocusWins(t *testing.T) {
	s := NewFrequencySummarizer()
	text := "Cells divide by mitosis. Mitosis produces two cells. Chloroplasts capture light."
	got := s.Summarize(text, "What captures light?", 1)
	assert.Equal(t, "Chloroplasts capture light.", got)
}

func TestSummarizeWithoutSentences(t *testing.T) {
	s := NewFrequencySummarizer()
	assert.Equal(t, "no terminator here", s.Summarize("  no terminator here ", "", 3))
	assert.Equal(t, "", s.Summarize("", "anything", 3))
}
