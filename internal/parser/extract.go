package parser

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/tmc/langchaingo/documentloaders"
	"github.com/tmc/langchaingo/schema"
)

// Supported media types.
const (
	MediaPDF      = "application/pdf"
	MediaMarkdown = "text/markdown"
	MediaText     = "text/plain"
)

var (
	// ErrUnsupportedType is returned for files that are not PDF, Markdown or plain text.
	ErrUnsupportedType = errors.New("unsupported media type")

	// ErrNoText is returned when a supported file yields no text.
	ErrNoText = errors.New("no extractable text")
)

var extensionTypes = map[string]string{
	".pdf":      MediaPDF,
	".md":       MediaMarkdown,
	".markdown": MediaMarkdown,
	".txt":      MediaText,
	".text":     MediaText,
}

// DetectType resolves the media type of an upload from its declared
// Content-Type, falling back to the file extension. Generic declared
// types such as application/octet-stream defer to the extension.
func DetectType(filename, declared string) (string, error) {
	if declared != "" {
		if mt, _, err := mime.ParseMediaType(declared); err == nil {
			switch mt {
			case MediaPDF, MediaMarkdown, MediaText:
				return mt, nil
			case "text/x-markdown":
				return MediaMarkdown, nil
			}
		}
	}

	if mt, ok := extensionTypes[strings.ToLower(filepath.Ext(filename))]; ok {
		return mt, nil
	}
	return "", fmt.Errorf("%w: %q (%s)", ErrUnsupportedType, filename, declared)
}

// TextExtractor turns an uploaded file into plain text.
type TextExtractor struct{}

// NewTextExtractor creates an extractor.
func NewTextExtractor() *TextExtractor {
	return &TextExtractor{}
}

// Extract reads the file at path as mediaType and returns its text.
// Markdown frontmatter is dropped; headings are kept for section-aware splitting.
func (e *TextExtractor) Extract(ctx context.Context, path, mediaType string) (string, error) {
	var (
		text string
		err  error
	)

	switch mediaType {
	case MediaPDF:
		text, err = extractPDF(ctx, path)
	case MediaText:
		text, err = extractText(ctx, path)
	case MediaMarkdown:
		text, err = extractMarkdown(path)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, mediaType)
	}
	if err != nil {
		return "", err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%s: %w", filepath.Base(path), ErrNoText)
	}
	return text, nil
}

func extractPDF(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat pdf: %w", err)
	}

	docs, err := documentloaders.NewPDF(f, info.Size()).Load(ctx)
	if err != nil {
		return "", fmt.Errorf("load pdf: %w", err)
	}
	return joinPages(docs), nil
}

func extractText(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open text: %w", err)
	}
	defer f.Close()

	docs, err := documentloaders.NewText(f).Load(ctx)
	if err != nil {
		return "", fmt.Errorf("load text: %w", err)
	}
	return joinPages(docs), nil
}

func extractMarkdown(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read markdown: %w", err)
	}
	doc, err := ParseMarkdown(string(data))
	if err != nil {
		return "", fmt.Errorf("parse markdown: %w", err)
	}
	if doc.Title != "" && !h1Re.MatchString(doc.Content) {
		return "# " + doc.Title + "\n\n" + doc.Content, nil
	}
	return doc.Content, nil
}

func joinPages(docs []schema.Document) string {
	pages := make([]string, 0, len(docs))
	for _, d := range docs {
		if s := strings.TrimSpace(d.PageContent); s != "" {
			pages = append(pages, s)
		}
	}
	return strings.Join(pages, "\n\n")
}
