package extraction

import (
	"strings"
)

const (
	// DefaultChunkSize is the chunk length in characters.
	DefaultChunkSize = 4000
	// DefaultChunkOverlap is the number of characters repeated between chunks.
	DefaultChunkOverlap = 200

	sentenceSearchWindow = 100
)

// Chunk splits text into overlapping pieces of at most size characters,
// preferring to cut just after a sentence end near the boundary.
func Chunk(text string, size, overlap int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	runes := []rune(text)
	if len(runes) <= size {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + size
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			break
		}
		if cut := sentenceEnd(runes, max(end-sentenceSearchWindow, start), end); cut > start {
			end = cut
		}
		chunks = append(chunks, string(runes[start:end]))

		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

// sentenceEnd returns the index just after the last sentence terminator in
// runes[from:to], or -1.
func sentenceEnd(runes []rune, from, to int) int {
	for i := to - 1; i >= from; i-- {
		if strings.ContainsRune(".!?", runes[i]) {
			return i + 1
		}
	}
	return -1
}
