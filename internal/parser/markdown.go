// Package parser extracts text from uploaded documents and splits it into chunks.
package parser

import (
	"bufio"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	h1Re      = regexp.MustCompile(`(?m)^#\s+(.+)$`)
	headingRe = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)
)

// MarkdownDoc represents a parsed Markdown document.
type MarkdownDoc struct {
	// Frontmatter metadata (from YAML)
	Frontmatter map[string]any

	// Title from frontmatter or the first h1
	Title string

	// Content after frontmatter
	Content string

	Sections []Section
}

// Section represents a heading and its content.
type Section struct {
	Level   int    // 1-6 for h1-h6, 0 for text before the first heading
	Heading string // The heading text
	Path    string // Full path like "## Week 1 > ### Day 2"
	Content string // Content under this heading
	Start   int    // Line number where section starts
	End     int    // Line number where section ends
}

// ParseMarkdown parses a Markdown document into structured form.
func ParseMarkdown(content string) (*MarkdownDoc, error) {
	doc := &MarkdownDoc{
		Frontmatter: make(map[string]any),
	}

	remaining := content
	if strings.HasPrefix(content, "---\n") {
		endIdx := strings.Index(content[4:], "\n---")
		if endIdx > 0 {
			frontmatterYAML := content[4 : 4+endIdx]
			remaining = strings.TrimPrefix(content[4+endIdx+4:], "\n")

			if err := yaml.Unmarshal([]byte(frontmatterYAML), &doc.Frontmatter); err != nil {
				// Malformed frontmatter is ignored
				doc.Frontmatter = make(map[string]any)
			}
		}
	}

	doc.Content = remaining
	doc.Title = extractTitle(doc.Frontmatter, remaining)
	doc.Sections = parseSections(remaining)

	return doc, nil
}

// extractTitle gets title from frontmatter or first h1.
func extractTitle(fm map[string]any, content string) string {
	if title, ok := fm["title"].(string); ok && title != "" {
		return title
	}
	if match := h1Re.FindStringSubmatch(content); len(match) > 1 {
		return strings.TrimSpace(match[1])
	}
	return ""
}

// parseSections splits Markdown content at headings. Each section's Path
// joins the headings of its open ancestors; text before the first heading
// belongs to no section.
func parseSections(content string) []Section {
	var (
		sections []Section
		open     []Section // ancestor headings, outermost first
		cur      *Section
		body     strings.Builder
	)

	flush := func(end int) {
		if cur == nil {
			return
		}
		cur.Content = strings.TrimSpace(body.String())
		cur.End = end
		sections = append(sections, *cur)
		body.Reset()
	}

	scanner := bufio.NewScanner(strings.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()

		m := headingRe.FindStringSubmatch(text)
		if m == nil {
			if cur != nil {
				body.WriteString(text)
				body.WriteByte('\n')
			}
			continue
		}

		flush(line - 1)

		level := len(m[1])
		for len(open) > 0 && open[len(open)-1].Level >= level {
			open = open[:len(open)-1]
		}
		next := Section{Level: level, Heading: strings.TrimSpace(m[2]), Start: line}
		open = append(open, next)

		parts := make([]string, len(open))
		for i, s := range open {
			parts[i] = strings.Repeat("#", s.Level) + " " + s.Heading
		}
		next.Path = strings.Join(parts, " > ")
		cur = &next
	}
	flush(line)

	return sections
}
