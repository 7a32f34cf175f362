package parser

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectType(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		declared string
		want     string
		wantErr  bool
	}{
		{"declared pdf", "plan.pdf", "application/pdf", MediaPDF, false},
		{"declared text with charset", "notes.txt", "text/plain; charset=utf-8", MediaText, false},
		{"x-markdown alias", "notes", "text/x-markdown", MediaMarkdown, false},
		{"octet stream falls back to extension", "notes.md", "application/octet-stream", MediaMarkdown, false},
		{"no declared type", "Program.PDF", "", MediaPDF, false},
		{"markdown long extension", "guide.markdown", "", MediaMarkdown, false},
		{"unsupported", "report.docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document", "", true},
		{"no extension no type", "README", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DetectType(tt.filename, tt.declared)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedType)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestExtractText(t *testing.T) {
	path := writeFile(t, "notes.txt", "\n  Squat, bench, deadlift.\n\n")

	text, err := NewTextExtractor().Extract(context.Background(), path, MediaText)
	require.NoError(t, err)
	assert.Equal(t, "Squat, bench, deadlift.", text)
}

func TestExtractMarkdown(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "frontmatter title becomes heading",
			content: "---\ntitle: Leg Day\n---\nSquats first.\n",
			want:    "# Leg Day\n\nSquats first.",
		},
		{
			name:    "existing h1 is kept",
			content: "---\ntitle: Ignored\n---\n# Push Day\n\nBench.\n",
			want:    "# Push Day\n\nBench.",
		},
		{
			name:    "no frontmatter",
			content: "## Mobility\n\nHip openers.",
			want:    "## Mobility\n\nHip openers.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "doc.md", tt.content)
			text, err := NewTextExtractor().Extract(context.Background(), path, MediaMarkdown)
			require.NoError(t, err)
			assert.Equal(t, tt.want, text)
		})
	}
}

func TestExtractErrors(t *testing.T) {
	ctx := context.Background()
	e := NewTextExtractor()

	t.Run("empty file", func(t *testing.T) {
		path := writeFile(t, "empty.txt", "   \n")
		_, err := e.Extract(ctx, path, MediaText)
		assert.ErrorIs(t, err, ErrNoText)
	})

	t.Run("unsupported media type", func(t *testing.T) {
		path := writeFile(t, "a.html", "<p>hi</p>")
		_, err := e.Extract(ctx, path, "text/html")
		assert.ErrorIs(t, err, ErrUnsupportedType)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := e.Extract(ctx, filepath.Join(t.TempDir(), "gone.txt"), MediaText)
		assert.Error(t, err)
	})

	t.Run("corrupt pdf", func(t *testing.T) {
		path := writeFile(t, "bad.pdf", "not a pdf")
		_, err := e.Extract(ctx, path, MediaPDF)
		assert.Error(t, err)
	})
}

func TestParseMarkdownSections(t *testing.T) {
	doc, err := ParseMarkdown("---\ntags: [strength]\n---\n# Program\n\nIntro\n\n## Week 1\n\nDay A\n\n### Day B\n\nRows\n\n## Week 2\n\nRest")
	require.NoError(t, err)

	assert.Equal(t, "Program", doc.Title)
	assert.Contains(t, doc.Frontmatter, "tags")

	paths := make([]string, len(doc.Sections))
	for i, s := range doc.Sections {
		paths[i] = s.Path
	}
	assert.Equal(t, []string{
		"# Program",
		"# Program > ## Week 1",
		"# Program > ## Week 1 > ### Day B",
		"# Program > ## Week 2",
	}, paths)
	assert.Equal(t, "Rows", doc.Sections[2].Content)
}
