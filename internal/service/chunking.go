package service

import (
	"strings"
	"unicode"
)

// ChunkConfig controls how document text is split for embedding.
type ChunkConfig struct {
	MaxChars  int
	MinChars  int
	Overlap   int
	MaxChunks int
}

// DefaultChunkConfig provides sane defaults for chunking.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		MaxChars: 1000,
		MinChars: 300,
		Overlap:  200,
	}
}

// chunkText splits document text into overlapping pieces of at most
// MaxChars runes. Cut points prefer paragraph breaks, then line breaks,
// then any whitespace, and never land before MinChars into the piece.
func chunkText(text string, cfg ChunkConfig) []string {
	clean := strings.TrimSpace(text)
	if clean == "" {
		return nil
	}
	if cfg.MaxChars <= 0 {
		cfg = DefaultChunkConfig()
	}
	runes := []rune(clean)
	if len(runes) <= cfg.MaxChars {
		return []string{clean}
	}

	chunks := make([]string, 0, 8)
	start := 0
	for start < len(runes) {
		if cfg.MaxChunks > 0 && len(chunks) >= cfg.MaxChunks {
			break
		}

		end := start + cfg.MaxChars
		if end >= len(runes) {
			end = len(runes)
		} else {
			minCut := start + cfg.MinChars
			if minCut > end {
				minCut = start
			}
			end = cutPoint(runes, minCut, end)
		}

		if end <= start {
			break
		}

		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}

		if end >= len(runes) {
			break
		}

		nextStart := end
		if cfg.Overlap > 0 && end-start > cfg.Overlap {
			nextStart = end - cfg.Overlap
		}
		if nextStart <= start {
			nextStart = end
		}
		start = nextStart
	}

	return chunks
}

// cutPoint finds the best split position in runes[min:max], scanning
// backwards from max. Paragraph breaks win over line breaks, line breaks
// over plain whitespace; with no whitespace at all the hard limit stands.
func cutPoint(runes []rune, min, max int) int {
	lineBreak, space := 0, 0
	for i := max; i > min; i-- {
		c := runes[i-1]
		if c == '\n' {
			if i-2 >= 0 && runes[i-2] == '\n' {
				return i
			}
			if lineBreak == 0 {
				lineBreak = i
			}
		} else if space == 0 && unicode.IsSpace(c) {
			space = i
		}
	}
	if lineBreak > 0 {
		return lineBreak
	}
	if space > 0 {
		return space
	}
	return max
}
