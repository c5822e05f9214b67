package ingest

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Extractor converts raw upload content to plain text.
type Extractor interface {
	Extract(content []byte) (string, error)
}

// ContentType identifies the MIME type of content for extraction.
type ContentType string

const (
	TypePlainText ContentType = "text/plain"
	TypeMarkdown  ContentType = "text/markdown"
	TypeHTML      ContentType = "text/html"
	TypePDF       ContentType = "application/pdf"
	TypeDOCX      ContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

// ContentTypeFromExtension maps file extensions to content types.
func ContentTypeFromExtension(ext string) ContentType {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "md", "markdown":
		return TypeMarkdown
	case "html", "htm":
		return TypeHTML
	case "pdf":
		return TypePDF
	case "docx":
		return TypeDOCX
	default:
		return TypePlainText
	}
}

// ExtractorFor returns the extractor for a content type. Unknown types fall
// back to plain text.
func ExtractorFor(ct ContentType) Extractor {
	switch ct {
	case TypeMarkdown:
		return MarkdownExtractor{}
	case TypeHTML:
		return NewHTMLExtractor()
	case TypePDF:
		return NewPDFExtractor()
	case TypeDOCX:
		return NewDOCXExtractor()
	default:
		return PlainTextExtractor{}
	}
}

// PlainTextExtractor returns normalized content as-is.
type PlainTextExtractor struct{}

func (PlainTextExtractor) Extract(content []byte) (string, error) {
	return normalizeText(string(content)), nil
}

// MarkdownExtractor keeps markdown intact. Lore documents are authored in
// markdown, so the markup itself is meaningful source material; only the
// encoding is normalized.
type MarkdownExtractor struct{}

func (MarkdownExtractor) Extract(content []byte) (string, error) {
	return normalizeText(string(content)), nil
}

// normalizeText applies NFC normalization, strips zero-width characters,
// and collapses runs of blank lines.
func normalizeText(s string) string {
	s = norm.NFC.String(s)
	s = strings.Map(func(r rune) rune {
		switch r {
		case '\u200b', '\u200c', '\u200d', '\ufeff':
			return -1
		}
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	return collapseBlankLines(s)
}

func collapseBlankLines(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	blanks := 0
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) == "" {
			blanks++
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
			if blanks > 0 {
				b.WriteByte('\n')
			}
		}
		blanks = 0
		b.WriteString(strings.TrimRight(line, " \t"))
	}
	return strings.TrimSpace(b.String())
}
