package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"textbook-rag/internal/domain"
)

func TestRecursiveShortTextIsOneChunk(t *testing.T) {
	c := NewRecursiveChunker(100, 20)
	assert.Equal(t, []string{"Cells are the basic unit of life."}, c.Split("  Cells are the basic unit of life.\n"))
	assert.Empty(t, c.Split("   \n\n  "))
}

func TestRecursivePrefersParagraphs(t *testing.T) {
	c := NewRecursiveChunker(30, 0)
	text := "First paragraph here.\n\nSecond paragraph here.\n\nThird one."
	assert.Equal(t, []string{
		"First paragraph here.",
		"Second paragraph here.",
		"Third one.",
	}, c.Split(text))
}

func TestRecursiveWordsWithOverlap(t *testing.T) {
	c := NewRecursiveChunker(10, 4)
	chunks := c.Split("aa bb cc dd ee ff")
	assert.Equal(t, []string{"aa bb cc", "cc dd ee", "ee ff"}, chunks)
}

func TestRecursiveFallsBackToCharacters(t *testing.T) {
	c := NewRecursiveChunker(4, 0)
	assert.Equal(t, []string{"abcd", "efgh", "ij"}, c.Split("abcdefghij"))
}

func TestRecursiveRespectsSize(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 300; i++ {
		b.WriteString("Mitochondria produce energy for the cell. ")
		if i%7 == 0 {
			b.WriteString("\n")
		}
		if i%23 == 0 {
			b.WriteString("\n\n")
		}
	}
	c := NewRecursiveChunker(DefaultChunkSize, DefaultChunkOverlap)
	chunks := c.Split(b.String())
	require.Greater(t, len(chunks), 5)
	for _, ch := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(ch), DefaultChunkSize)
		assert.NotEmpty(t, ch)
	}
}

func TestRecursiveCountsRunes(t *testing.T) {
	c := NewRecursiveChunker(3, 0)
	chunks := c.Split("αβγδε")
	assert.Equal(t, []string{"αβγ", "δε"}, chunks)
}

func TestSentenceChunker(t *testing.T) {
	c := NewSentenceChunker(2, 1)
	chunks := c.Split("One. Two! Three? Four")
	assert.Equal(t, []string{"One. Two!", "Two! Three?", "Three? Four"}, chunks)
	assert.Empty(t, c.Split("  "))
}

func TestSentenceChunkerClampsOverlap(t *testing.T) {
	c := NewSentenceChunker(2, 5)
	chunks := c.Split("A. B. C.")
	assert.Equal(t, []string{"A. B.", "B. C."}, chunks)
}

func TestWrapAssignsSequentialIDs(t *testing.T) {
	tb := domain.Textbook{Path: "/lib/bio/cells.pdf", Category: "bio", Filename: "cells.pdf"}
	chunks := Wrap(tb, []string{"a", "b", "c"})
	require.Len(t, chunks, 3)
	for i, ch := range chunks {
		assert.Equal(t, i, ch.Metadata.ChunkID)
		assert.Equal(t, "cells.pdf", ch.Metadata.Filename)
		assert.Equal(t, "bio", ch.Metadata.Category)
		assert.Equal(t, "/lib/bio/cells.pdf", ch.Metadata.Path)
	}
}

func TestSplitAll(t *testing.T) {
	books := []domain.Textbook{
		{Filename: "a.pdf", Content: "one two"},
		{Filename: "b.pdf", Content: ""},
		{Filename: "c.pdf", Content: "three"},
	}
	chunks := SplitAll(NewRecursiveChunker(100, 10), books)
	require.Len(t, chunks, 2)
	assert.Equal(t, "a.pdf", chunks[0].Metadata.Filename)
	assert.Equal(t, 0, chunks[1].Metadata.ChunkID)
	assert.Equal(t, "c.pdf", chunks[1].Metadata.Filename)
}
