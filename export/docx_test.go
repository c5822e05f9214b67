package export

import (
	"archive/zip"
	"bytes"
	"io"
	"strings"
	"testing"
)

// readPart extracts one file from a rendered .docx package.
func readPart(t *testing.T, data []byte, name string) string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("not a zip: %v", err)
	}
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", name, err)
		}
		defer rc.Close()
		body, err := io.ReadAll(rc)
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		return string(body)
	}
	t.Fatalf("part %s missing from package", name)
	return ""
}

func TestDOCXPackageStructure(t *testing.T) {
	data, err := DOCXBytes("# Title\n\nBody text.")
	if err != nil {
		t.Fatalf("DOCXBytes: %v", err)
	}

	for _, part := range []string{
		"[Content_Types].xml",
		"_rels/.rels",
		"word/_rels/document.xml.rels",
		"word/styles.xml",
		"word/document.xml",
	} {
		readPart(t, data, part)
	}
}

func TestDOCXHeadings(t *testing.T) {
	data, err := DOCXBytes("# One\n\n## Two\n\n### Three\n\nplain")
	if err != nil {
		t.Fatal(err)
	}
	doc := readPart(t, data, "word/document.xml")

	for _, want := range []string{
		`<w:pStyle w:val="Heading1"/>`,
		`<w:pStyle w:val="Heading2"/>`,
		`<w:pStyle w:val="Heading3"/>`,
		`<w:t xml:space="preserve">One</w:t>`,
		`<w:t xml:space="preserve">plain</w:t>`,
	} {
		if !strings.Contains(doc, want) {
			t.Errorf("document.xml missing %s", want)
		}
	}
}

func TestDOCXEmphasis(t *testing.T) {
	data, err := DOCXBytes("normal **bold** and *italic* and ***both***")
	if err != nil {
		t.Fatal(err)
	}
	doc := readPart(t, data, "word/document.xml")

	if !strings.Contains(doc, `<w:rPr><w:b/></w:rPr><w:t xml:space="preserve">bold</w:t>`) {
		t.Error("bold run missing")
	}
	if !strings.Contains(doc, `<w:rPr><w:i/></w:rPr><w:t xml:space="preserve">italic</w:t>`) {
		t.Error("italic run missing")
	}
	if !strings.Contains(doc, `<w:rPr><w:b/><w:i/></w:rPr><w:t xml:space="preserve">both</w:t>`) {
		t.Error("bold italic run missing")
	}
}

func TestDOCXLists(t *testing.T) {
	data, err := DOCXBytes("- first\n- second\n\n1. one\n2. two")
	if err != nil {
		t.Fatal(err)
	}
	doc := readPart(t, data, "word/document.xml")

	if strings.Count(doc, "• ") != 2 {
		t.Errorf("expected 2 bullet markers, document:\n%s", doc)
	}
	if strings.Count(doc, "– ") != 2 {
		t.Errorf("expected 2 ordered markers")
	}
	if !strings.Contains(doc, ">first<") || !strings.Contains(doc, ">two<") {
		t.Error("list item text missing")
	}
}

func TestDOCXThematicBreak(t *testing.T) {
	data, err := DOCXBytes("before\n\n---\n\nafter")
	if err != nil {
		t.Fatal(err)
	}
	doc := readPart(t, data, "word/document.xml")
	if !strings.Contains(doc, "<w:pBdr>") {
		t.Error("thematic break should render a bottom border")
	}
}

func TestDOCXCodeBlock(t *testing.T) {
	data, err := DOCXBytes("```\nroll 2d6\nadd modifier\n```")
	if err != nil {
		t.Fatal(err)
	}
	doc := readPart(t, data, "word/document.xml")
	if !strings.Contains(doc, "Courier New") {
		t.Error("code block should use a monospace font")
	}
	if !strings.Contains(doc, ">roll 2d6<") || !strings.Contains(doc, "<w:br/>") {
		t.Error("code lines should be separated by breaks")
	}
}

func TestDOCXEscapesMarkup(t *testing.T) {
	data, err := DOCXBytes("damage <1d4> & \"piercing\"")
	if err != nil {
		t.Fatal(err)
	}
	doc := readPart(t, data, "word/document.xml")
	if strings.Contains(doc, "<1d4>") {
		t.Error("angle brackets must be escaped")
	}
	if !strings.Contains(doc, "&lt;1d4&gt;") || !strings.Contains(doc, "&amp;") {
		t.Errorf("expected escaped entities, got:\n%s", doc)
	}
}

func TestDOCXEmptyDocument(t *testing.T) {
	data, err := DOCXBytes("")
	if err != nil {
		t.Fatalf("empty markdown should still produce a valid package: %v", err)
	}
	doc := readPart(t, data, "word/document.xml")
	if !strings.Contains(doc, "<w:body>") {
		t.Error("body element missing")
	}
}

func TestDOCXBlockquote(t *testing.T) {
	data, err := DOCXBytes("> Beware the ash storms.")
	if err != nil {
		t.Fatal(err)
	}
	doc := readPart(t, data, "word/document.xml")
	if !strings.Contains(doc, `<w:pStyle w:val="Quote"/>`) {
		t.Error("blockquote should use the Quote style")
	}
	if !strings.Contains(doc, "Beware the ash storms.") {
		t.Error("quote text missing")
	}
}
