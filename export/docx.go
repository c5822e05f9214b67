// Package export renders campaign documents into downloadable formats.
//
// The DOCX writer parses the document's markdown with goldmark and emits a
// minimal OOXML package: headings map to Word heading styles, emphasis to
// bold and italic runs, lists to bulleted or numbered paragraphs. No external
// converter is involved; the .docx file is assembled directly with
// archive/zip.
package export

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// run is a styled stretch of text inside a paragraph.
type run struct {
	text   string
	bold   bool
	italic bool
	mono   bool
}

// paragraph is one block in the output document.
type paragraph struct {
	style  string // "", "Heading1".."Heading6", "Quote"
	bullet bool
	number bool
	hrule  bool
	runs   []run
}

// DOCX converts markdown to a .docx file and writes it to w.
func DOCX(w io.Writer, markdown string) error {
	paras, err := parseMarkdown([]byte(markdown))
	if err != nil {
		return fmt.Errorf("parse markdown: %w", err)
	}
	return writePackage(w, paras)
}

// DOCXBytes is DOCX returning the file contents.
func DOCXBytes(markdown string) ([]byte, error) {
	var buf bytes.Buffer
	if err := DOCX(&buf, markdown); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// parseMarkdown walks the goldmark AST into a flat paragraph list.
func parseMarkdown(source []byte) ([]paragraph, error) {
	doc := goldmark.New().Parser().Parse(text.NewReader(source))

	var paras []paragraph
	for node := doc.FirstChild(); node != nil; node = node.NextSibling() {
		paras = append(paras, blockToParagraphs(node, source, "", false, false)...)
	}
	return paras, nil
}

// blockToParagraphs converts one block node (recursing into lists and
// quotes) into output paragraphs.
func blockToParagraphs(node ast.Node, source []byte, style string, bullet, number bool) []paragraph {
	switch n := node.(type) {
	case *ast.Heading:
		level := n.Level
		if level > 6 {
			level = 6
		}
		return []paragraph{{
			style: fmt.Sprintf("Heading%d", level),
			runs:  inlineRuns(n, source, false, false),
		}}

	case *ast.Paragraph, *ast.TextBlock:
		return []paragraph{{
			style:  style,
			bullet: bullet,
			number: number,
			runs:   inlineRuns(node, source, false, false),
		}}

	case *ast.ThematicBreak:
		return []paragraph{{hrule: true}}

	case *ast.Blockquote:
		var out []paragraph
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			out = append(out, blockToParagraphs(c, source, "Quote", false, false)...)
		}
		return out

	case *ast.List:
		ordered := n.IsOrdered()
		var out []paragraph
		for item := n.FirstChild(); item != nil; item = item.NextSibling() {
			for c := item.FirstChild(); c != nil; c = c.NextSibling() {
				out = append(out, blockToParagraphs(c, source, "", !ordered, ordered)...)
			}
		}
		return out

	case *ast.FencedCodeBlock:
		return []paragraph{codeParagraph(n.Lines(), source)}

	case *ast.CodeBlock:
		return []paragraph{codeParagraph(n.Lines(), source)}

	default:
		// Unhandled block kinds degrade to their plain text.
		runs := inlineRuns(node, source, false, false)
		if len(runs) == 0 {
			return nil
		}
		return []paragraph{{style: style, runs: runs}}
	}
}

func codeParagraph(lines *text.Segments, source []byte) paragraph {
	var b strings.Builder
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(source))
	}
	return paragraph{runs: []run{{
		text: strings.TrimRight(b.String(), "\n"),
		mono: true,
	}}}
}

// inlineRuns flattens a node's inline children into styled runs.
func inlineRuns(node ast.Node, source []byte, bold, italic bool) []run {
	var runs []run
	for c := node.FirstChild(); c != nil; c = c.NextSibling() {
		switch n := c.(type) {
		case *ast.Text:
			t := string(n.Segment.Value(source))
			if t != "" {
				runs = append(runs, run{text: t, bold: bold, italic: italic})
			}
			if n.HardLineBreak() || n.SoftLineBreak() {
				runs = append(runs, run{text: " ", bold: bold, italic: italic})
			}
		case *ast.Emphasis:
			b, i := bold, italic
			if n.Level >= 2 {
				b = true
			} else {
				i = true
			}
			runs = append(runs, inlineRuns(n, source, b, i)...)
		case *ast.CodeSpan:
			var t strings.Builder
			for cc := n.FirstChild(); cc != nil; cc = cc.NextSibling() {
				if txt, ok := cc.(*ast.Text); ok {
					t.Write(txt.Segment.Value(source))
				}
			}
			runs = append(runs, run{text: t.String(), mono: true, bold: bold, italic: italic})
		case *ast.Link:
			runs = append(runs, inlineRuns(n, source, bold, italic)...)
		case *ast.Image:
			// Images carry no text content worth exporting.
		default:
			runs = append(runs, inlineRuns(c, source, bold, italic)...)
		}
	}
	return runs
}

// --- OOXML assembly ---

const contentTypesXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
  <Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
  <Default Extension="xml" ContentType="application/xml"/>
  <Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
  <Override PartName="/word/styles.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.styles+xml"/>
</Types>`

const relsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
  <Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
</Relationships>`

const documentRelsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
  <Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles" Target="styles.xml"/>
</Relationships>`

// stylesXML declares the heading and quote styles referenced by paragraphs.
const stylesXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:styles xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:style w:type="paragraph" w:styleId="Heading1"><w:name w:val="heading 1"/><w:pPr><w:spacing w:before="360" w:after="120"/></w:pPr><w:rPr><w:b/><w:sz w:val="36"/></w:rPr></w:style>
  <w:style w:type="paragraph" w:styleId="Heading2"><w:name w:val="heading 2"/><w:pPr><w:spacing w:before="280" w:after="100"/></w:pPr><w:rPr><w:b/><w:sz w:val="30"/></w:rPr></w:style>
  <w:style w:type="paragraph" w:styleId="Heading3"><w:name w:val="heading 3"/><w:pPr><w:spacing w:before="240" w:after="80"/></w:pPr><w:rPr><w:b/><w:sz w:val="26"/></w:rPr></w:style>
  <w:style w:type="paragraph" w:styleId="Heading4"><w:name w:val="heading 4"/><w:rPr><w:b/><w:sz w:val="24"/></w:rPr></w:style>
  <w:style w:type="paragraph" w:styleId="Heading5"><w:name w:val="heading 5"/><w:rPr><w:b/><w:i/><w:sz w:val="22"/></w:rPr></w:style>
  <w:style w:type="paragraph" w:styleId="Heading6"><w:name w:val="heading 6"/><w:rPr><w:b/><w:i/><w:sz w:val="20"/></w:rPr></w:style>
  <w:style w:type="paragraph" w:styleId="Quote"><w:name w:val="Quote"/><w:pPr><w:ind w:left="720"/></w:pPr><w:rPr><w:i/></w:rPr></w:style>
</w:styles>`

func writePackage(w io.Writer, paras []paragraph) error {
	zw := zip.NewWriter(w)

	parts := []struct {
		name string
		body string
	}{
		{"[Content_Types].xml", contentTypesXML},
		{"_rels/.rels", relsXML},
		{"word/_rels/document.xml.rels", documentRelsXML},
		{"word/styles.xml", stylesXML},
		{"word/document.xml", documentXML(paras)},
	}
	for _, p := range parts {
		f, err := zw.Create(p.name)
		if err != nil {
			return fmt.Errorf("create %s: %w", p.name, err)
		}
		if _, err := f.Write([]byte(p.body)); err != nil {
			return fmt.Errorf("write %s: %w", p.name, err)
		}
	}
	return zw.Close()
}

func documentXML(paras []paragraph) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n")
	b.WriteString(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`)
	for _, p := range paras {
		writeParagraphXML(&b, p)
	}
	b.WriteString(`</w:body></w:document>`)
	return b.String()
}

func writeParagraphXML(b *strings.Builder, p paragraph) {
	b.WriteString(`<w:p>`)

	var props []string
	if p.style != "" {
		props = append(props, fmt.Sprintf(`<w:pStyle w:val="%s"/>`, p.style))
	}
	if p.hrule {
		props = append(props, `<w:pBdr><w:bottom w:val="single" w:sz="6" w:space="1" w:color="auto"/></w:pBdr>`)
	}
	if len(props) > 0 {
		b.WriteString(`<w:pPr>`)
		for _, pr := range props {
			b.WriteString(pr)
		}
		b.WriteString(`</w:pPr>`)
	}

	runs := p.runs
	// List items render with a literal marker; a full numbering.xml part is
	// not worth the extra package weight for lore exports.
	if p.bullet {
		runs = append([]run{{text: "• "}}, runs...)
	} else if p.number {
		runs = append([]run{{text: "– "}}, runs...)
	}

	for _, r := range runs {
		b.WriteString(`<w:r>`)
		var rpr []string
		if r.bold {
			rpr = append(rpr, `<w:b/>`)
		}
		if r.italic {
			rpr = append(rpr, `<w:i/>`)
		}
		if r.mono {
			rpr = append(rpr, `<w:rFonts w:ascii="Courier New" w:hAnsi="Courier New"/>`)
		}
		if len(rpr) > 0 {
			b.WriteString(`<w:rPr>`)
			for _, pr := range rpr {
				b.WriteString(pr)
			}
			b.WriteString(`</w:rPr>`)
		}
		// Newlines inside a run become explicit breaks; w:t swallows them.
		for i, line := range strings.Split(r.text, "\n") {
			if i > 0 {
				b.WriteString(`<w:br/>`)
			}
			b.WriteString(`<w:t xml:space="preserve">`)
			writeEscaped(b, line)
			b.WriteString(`</w:t>`)
		}
		b.WriteString(`</w:r>`)
	}
	b.WriteString(`</w:p>`)
}

func writeEscaped(b *strings.Builder, s string) {
	_ = xml.EscapeText(b, []byte(s))
}
