package parser

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"
)

// Chunk is one ordered fragment of a document.
type Chunk struct {
	Content     string
	Position    int
	HeadingPath string // Section context, empty outside Markdown sections
}

// Splitter breaks document text into fragments of roughly size characters.
// Markdown headings are used as boundaries when present; everything else
// goes through a recursive character splitter.
type Splitter struct{}

// NewSplitter creates a splitter.
func NewSplitter() *Splitter {
	return &Splitter{}
}

// Split returns the ordered fragments of text. Adjacent fragments share up
// to overlap characters.
func (s *Splitter) Split(text string, size, overlap int) ([]Chunk, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	if len(text) <= size {
		return []Chunk{{Content: text}}, nil
	}

	if sections := sectionsWithPreamble(text); len(sections) > 0 {
		return chunkBySections(sections, size, overlap)
	}

	parts, err := splitRecursive(text, size, overlap)
	if err != nil {
		return nil, err
	}
	chunks := make([]Chunk, len(parts))
	for i, p := range parts {
		chunks[i] = Chunk{Content: p, Position: i}
	}
	return chunks, nil
}

// sectionsWithPreamble parses Markdown sections and keeps any text that
// precedes the first heading as an unnamed section.
func sectionsWithPreamble(text string) []Section {
	sections := parseSections(text)
	if len(sections) == 0 {
		return nil
	}

	lines := strings.Split(text, "\n")
	if first := sections[0].Start - 1; first > 0 && first <= len(lines) {
		if preamble := strings.TrimSpace(strings.Join(lines[:first], "\n")); preamble != "" {
			sections = append([]Section{{Content: preamble}}, sections...)
		}
	}
	return sections
}

// chunkBySections keeps small sections whole, merges tiny ones into their
// predecessor and splits oversized sections recursively.
func chunkBySections(sections []Section, size, overlap int) ([]Chunk, error) {
	minSize := size / 5
	var chunks []Chunk

	for _, section := range sections {
		content := section.Content
		if section.Heading != "" {
			content = strings.Repeat("#", section.Level) + " " + section.Heading + "\n\n" + content
		}
		content = strings.TrimSpace(content)
		if content == "" {
			continue
		}

		if len(content) <= size {
			if len(content) < minSize && len(chunks) > 0 &&
				len(chunks[len(chunks)-1].Content)+len(content)+2 <= size {
				last := &chunks[len(chunks)-1]
				last.Content += "\n\n" + content
				continue
			}
			chunks = append(chunks, Chunk{Content: content, HeadingPath: section.Path})
			continue
		}

		parts, err := splitRecursive(content, size, 0)
		if err != nil {
			return nil, err
		}
		for _, p := range parts {
			chunks = append(chunks, Chunk{Content: p, HeadingPath: section.Path})
		}
	}

	chunks = applyOverlap(chunks, overlap)
	for i := range chunks {
		chunks[i].Position = i
	}
	return chunks, nil
}

func splitRecursive(text string, size, overlap int) ([]string, error) {
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(size),
		textsplitter.WithChunkOverlap(overlap),
	)
	parts, err := splitter.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("split text: %w", err)
	}

	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out, nil
}

// applyOverlap prefixes each chunk with the tail of its predecessor,
// cut at a word boundary.
func applyOverlap(chunks []Chunk, overlap int) []Chunk {
	if overlap <= 0 || len(chunks) <= 1 {
		return chunks
	}

	result := make([]Chunk, len(chunks))
	copy(result, chunks)

	for i := 1; i < len(result); i++ {
		prev := chunks[i-1].Content
		if len(prev) <= overlap {
			continue
		}
		tail := prev[len(prev)-overlap:]
		if idx := strings.Index(tail, " "); idx >= 0 && idx+1 < len(tail) {
			tail = tail[idx+1:]
		}
		result[i].Content = tail + " " + result[i].Content
	}

	return result
}
