// Package chunker splits textbook text into overlapping windows and tags
// them with provenance.
package chunker

import (
	"strings"
	"unicode/utf8"

	"textbook-rag/internal/domain"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// DefaultSeparators are tried in order, from paragraph breaks down to
// single characters.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// RecursiveChunker splits on the coarsest separator present and recurses
// into pieces that are still too long, then merges neighbours back into
// windows of at most size characters overlapping by about overlap.
// Lengths are counted in runes.
type RecursiveChunker struct {
	size       int
	overlap    int
	separators []string
}

func NewRecursiveChunker(size, overlap int) *RecursiveChunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size / 5
	}
	return &RecursiveChunker{size: size, overlap: overlap, separators: DefaultSeparators}
}

// Split returns the windows of content in order.
func (c *RecursiveChunker) Split(content string) []string {
	return c.split(content, c.separators)
}

func (c *RecursiveChunker) split(text string, separators []string) []string {
	separator := separators[len(separators)-1]
	var rest []string
	for i, s := range separators {
		if s == "" {
			separator = s
			break
		}
		if strings.Contains(text, s) {
			separator = s
			rest = separators[i+1:]
			break
		}
	}

	var final, good []string
	for _, piece := range splitKeep(text, separator) {
		if runeLen(piece) < c.size {
			good = append(good, piece)
			continue
		}
		if len(good) > 0 {
			final = append(final, c.merge(good)...)
			good = nil
		}
		if len(rest) == 0 {
			final = append(final, piece)
		} else {
			final = append(final, c.split(piece, rest)...)
		}
	}
	if len(good) > 0 {
		final = append(final, c.merge(good)...)
	}
	return final
}

// merge packs pieces into windows. Pieces already carry their leading
// separator, so they are concatenated as is.
func (c *RecursiveChunker) merge(pieces []string) []string {
	var (
		out     []string
		current []string
		total   int
	)
	for _, p := range pieces {
		n := runeLen(p)
		if total+n > c.size && len(current) > 0 {
			if doc := strings.TrimSpace(strings.Join(current, "")); doc != "" {
				out = append(out, doc)
			}
			for total > c.overlap || (total+n > c.size && total > 0) {
				total -= runeLen(current[0])
				current = current[1:]
			}
		}
		current = append(current, p)
		total += n
	}
	if doc := strings.TrimSpace(strings.Join(current, "")); doc != "" {
		out = append(out, doc)
	}
	return out
}

// splitKeep splits text on sep, attaching sep to the start of every piece
// after the first. An empty sep splits into runes.
func splitKeep(text, sep string) []string {
	if sep == "" {
		out := make([]string, 0, utf8.RuneCountInString(text))
		for _, r := range text {
			out = append(out, string(r))
		}
		return out
	}
	parts := strings.Split(text, sep)
	out := make([]string, 0, len(parts))
	for i, p := range parts {
		if i > 0 {
			p = sep + p
		}
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func runeLen(s string) int { return utf8.RuneCountInString(s) }

// Wrap tags each window with the textbook's provenance. Chunk ids run from
// zero per textbook.
func Wrap(tb domain.Textbook, windows []string) []domain.DocumentChunk {
	chunks := make([]domain.DocumentChunk, 0, len(windows))
	for i, w := range windows {
		chunks = append(chunks, domain.DocumentChunk{
			Content: w,
			Metadata: domain.Metadata{
				Path:     tb.Path,
				Category: tb.Category,
				Filename: tb.Filename,
				ChunkID:  i,
			},
		})
	}
	return chunks
}

// SplitAll chunks every textbook with c.
func SplitAll(c domain.Chunker, textbooks []domain.Textbook) []domain.DocumentChunk {
	var out []domain.DocumentChunk
	for _, tb := range textbooks {
		out = append(out, Wrap(tb, c.Split(tb.Content))...)
	}
	return out
}
