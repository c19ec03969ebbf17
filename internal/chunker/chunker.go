// Package chunker splits text into overlapping chunks that respect
// paragraph, line, sentence and word boundaries where possible.
package chunker

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/taishikato/supavec-api/pkg/models"
)

// Default chunking parameters.
const (
	DefaultSize    = 1500
	DefaultOverlap = 20
)

// levels are tried in order. A piece that is still larger than the chunk
// size after splitting at one level is split again at the next. The empty
// separator splits into single characters.
var levels = [][]string{
	{"\n\n"},
	{"\n"},
	{". ", "! ", "? "},
	{" "},
	{""},
}

// Splitter cuts text into chunks of at most Size characters where
// consecutive chunks share up to Overlap characters.
type Splitter struct {
	size    int
	overlap int
}

// New returns a Splitter. Size must be positive and overlap must be in
// [0, size).
func New(size, overlap int) (*Splitter, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("chunk overlap must not be negative, got %d", overlap)
	}
	if overlap >= size {
		return nil, fmt.Errorf("chunk overlap (%d) must be smaller than chunk size (%d)", overlap, size)
	}
	return &Splitter{size: size, overlap: overlap}, nil
}

// Size returns the maximum chunk length in characters.
func (s *Splitter) Size() int { return s.size }

// Overlap returns the maximum shared prefix length in characters.
func (s *Splitter) Overlap() int { return s.overlap }

// Split chunks text and tags every chunk with source and fileID.
// Empty text yields no chunks. The result is deterministic for a given
// input and configuration.
func (s *Splitter) Split(text, source, fileID string) []models.Chunk {
	if text == "" {
		return nil
	}

	pieces := s.pieces(text, 0)
	meta := models.ChunkMetadata{Source: source, FileID: fileID}

	var (
		chunks  []models.Chunk
		window  []string // pieces in the current chunk
		length  int      // characters in window
		carried int      // leading pieces of window copied from the previous chunk
	)

	emit := func() {
		var b strings.Builder
		overlapBytes := 0
		for i, p := range window {
			if i < carried {
				overlapBytes += len(p)
			}
			b.WriteString(p)
		}
		chunks = append(chunks, models.Chunk{
			Text:     b.String(),
			Metadata: meta,
			Overlap:  overlapBytes,
		})
	}

	for _, p := range pieces {
		n := utf8.RuneCountInString(p)

		if length+n > s.size && len(window) > carried {
			emit()

			// Carry trailing whole pieces of the chunk just emitted.
			start := len(window)
			tail := 0
			for start > 0 {
				m := utf8.RuneCountInString(window[start-1])
				if tail+m > s.overlap {
					break
				}
				tail += m
				start--
			}
			// Drop carried pieces from the front until the next piece fits.
			for start < len(window) && tail+n > s.size {
				tail -= utf8.RuneCountInString(window[start])
				start++
			}

			window = append([]string(nil), window[start:]...)
			length = tail
			carried = len(window)
		}

		window = append(window, p)
		length += n
	}

	if len(window) > carried {
		emit()
	}

	return chunks
}

// pieces splits text at the given level and recursively re-splits any
// piece that is longer than the chunk size. Separators stay attached to
// the preceding piece so that concatenating pieces restores text.
func (s *Splitter) pieces(text string, level int) []string {
	if utf8.RuneCountInString(text) <= s.size {
		return []string{text}
	}
	if level >= len(levels) {
		return []string{text}
	}

	var out []string
	for _, part := range splitKeep(text, levels[level]) {
		if utf8.RuneCountInString(part) > s.size {
			out = append(out, s.pieces(part, level+1)...)
			continue
		}
		out = append(out, part)
	}
	return out
}

// splitKeep splits text after every occurrence of any separator. The empty
// separator splits text into individual characters.
func splitKeep(text string, seps []string) []string {
	if len(seps) == 1 && seps[0] == "" {
		out := make([]string, 0, utf8.RuneCountInString(text))
		for _, r := range text {
			out = append(out, string(r))
		}
		return out
	}

	var out []string
	start := 0
	for i := 0; i < len(text); {
		matched := ""
		for _, sep := range seps {
			if strings.HasPrefix(text[i:], sep) {
				matched = sep
				break
			}
		}
		if matched == "" {
			i++
			continue
		}
		i += len(matched)
		out = append(out, text[start:i])
		start = i
	}
	if start < len(text) {
		out = append(out, text[start:])
	}
	return out
}

// Reconstruct joins chunks back into the text they were split from.
func Reconstruct(chunks []models.Chunk) string {
	var b strings.Builder
	for _, c := range chunks {
		b.WriteString(c.Text[c.Overlap:])
	}
	return b.String()
}
