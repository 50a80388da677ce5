// Package chunker splits page text into overlapping fixed-size chunks.
package chunker

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/docsage/docsage/internal/apperr"
	"github.com/docsage/docsage/internal/models"
)

// Defaults for chunk window size and overlap, in tokens.
const (
	DefaultChunkSize = 800
	DefaultOverlap   = 100
)

// Options configures one Chunk call.
type Options struct {
	DocID string
	Page  int
	// ChunkSize is the window size in tokens; 0 means DefaultChunkSize.
	ChunkSize int
	// Overlap is the window overlap in tokens; negative means DefaultOverlap.
	// Must stay below ChunkSize.
	Overlap int
}

// tokenRe matches word-like tokens: letter runs (with inner apostrophes) and digit runs.
var tokenRe = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\p{N}+`)

var errNoTokens = errors.New("no tokens in text")

// Chunk splits text into overlapping chunks with stable ids
// "{docID}:{page}:{index}". Empty or whitespace-only text yields no chunks and
// no error. Token windows are mapped back to character spans proportionally;
// when tokenization finds nothing usable the splitter falls back to
// whitespace-separated words with the same window semantics.
func Chunk(text string, opts Options) ([]models.Chunk, error) {
	size := opts.ChunkSize
	if size == 0 {
		size = DefaultChunkSize
	}
	overlap := opts.Overlap
	if overlap < 0 {
		overlap = DefaultOverlap
	}
	if size <= 0 {
		return nil, apperr.Newf(apperr.InvalidInput, "INVALID_CHUNK_CONFIG",
			"chunk_size must be positive, got %d", size)
	}
	if overlap >= size {
		return nil, apperr.Newf(apperr.InvalidInput, "INVALID_CHUNK_CONFIG",
			"chunk_overlap (%d) must be smaller than chunk_size (%d)", overlap, size)
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	step := size - overlap
	pieces, err := tokenWindows(text, size, step)
	if err != nil {
		pieces = wordWindows(text, size, step)
	}

	chunks := make([]models.Chunk, 0, len(pieces))
	for _, piece := range pieces {
		piece = strings.TrimSpace(piece)
		if piece == "" {
			continue
		}
		idx := len(chunks)
		chunks = append(chunks, models.Chunk{
			ID:         fmt.Sprintf("%s:%d:%d", opts.DocID, opts.Page, idx),
			Text:       piece,
			DocID:      opts.DocID,
			Page:       opts.Page,
			ChunkIndex: idx,
		})
	}
	return chunks, nil
}

// tokenWindows slices text into sliding token windows and maps each window
// back to a character span proportionally (window token offsets scaled to text
// length). The mapping is an approximation, not exact token offsets.
func tokenWindows(text string, size, step int) ([]string, error) {
	tokens := tokenRe.FindAllString(text, -1)
	if len(tokens) == 0 {
		return nil, errNoTokens
	}
	runes := []rune(text)
	total := len(tokens)
	var out []string
	for start := 0; start < total; start += step {
		end := start + size
		if end > total {
			end = total
		}
		lo := start * len(runes) / total
		hi := end * len(runes) / total
		if hi > len(runes) {
			hi = len(runes)
		}
		if lo < hi {
			out = append(out, string(runes[lo:hi]))
		}
		if end >= total {
			break
		}
	}
	return out, nil
}

// wordWindows is the fallback splitter: sliding windows over
// whitespace-separated words, rejoined with single spaces.
func wordWindows(text string, size, step int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	var out []string
	for start := 0; start < len(words); start += step {
		end := start + size
		if end > len(words) {
			end = len(words)
		}
		out = append(out, strings.Join(words[start:end], " "))
		if end >= len(words) {
			break
		}
	}
	return out
}
