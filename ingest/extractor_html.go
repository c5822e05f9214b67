package ingest

import (
	"bytes"
	"net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"
)

// HTMLExtractor pulls article text out of HTML uploads using readability
// extraction, falling back to plain tag stripping for pages readability
// cannot parse (fragments, non-article markup).
type HTMLExtractor struct {
	base *url.URL
}

// NewHTMLExtractor creates an HTML extractor.
func NewHTMLExtractor() *HTMLExtractor {
	u, _ := url.Parse("file:///upload")
	return &HTMLExtractor{base: u}
}

func (e *HTMLExtractor) Extract(content []byte) (string, error) {
	article, err := readability.FromReader(bytes.NewReader(content), e.base)
	if err == nil && strings.TrimSpace(article.TextContent) != "" {
		return normalizeText(article.TextContent), nil
	}
	return normalizeText(stripTags(string(content))), nil
}

// stripTags removes markup, dropping script and style bodies and inserting
// newlines at block boundaries.
func stripTags(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	skipUntil := ""
	for i := 0; i < len(s); {
		if s[i] != '<' {
			if skipUntil == "" {
				b.WriteByte(s[i])
			}
			i++
			continue
		}
		end := strings.IndexByte(s[i:], '>')
		if end < 0 {
			break
		}
		tag := strings.ToLower(strings.TrimSpace(s[i+1 : i+end]))
		name, _, _ := strings.Cut(strings.TrimPrefix(tag, "/"), " ")
		switch {
		case skipUntil != "":
			if strings.HasPrefix(tag, "/") && name == skipUntil {
				skipUntil = ""
			}
		case name == "script" || name == "style":
			if !strings.HasPrefix(tag, "/") {
				skipUntil = name
			}
		case isBlockTag(name):
			b.WriteByte('\n')
		}
		i += end + 1
	}
	return b.String()
}

func isBlockTag(name string) bool {
	switch name {
	case "p", "div", "br", "hr", "li", "ul", "ol", "table", "tr",
		"blockquote", "pre", "section", "article",
		"h1", "h2", "h3", "h4", "h5", "h6":
		return true
	}
	return false
}

var _ Extractor = (*HTMLExtractor)(nil)
