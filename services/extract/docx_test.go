package extract

import (
	"archive/zip"
	"bytes"
	"strings"
	"testing"
)

const sampleDocumentXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>
<w:p><w:pPr><w:pStyle w:val="Title"/></w:pPr><w:r><w:t>Adaptive Mesh Refinement in Practice</w:t></w:r></w:p>
<w:p><w:r><w:t>Maria Silva</w:t></w:r><w:r><w:t xml:space="preserve"> and Tom Baker</w:t></w:r></w:p>
<w:p><w:r><w:rPr><w:b/><w:sz w:val="32"/></w:rPr><w:t>Display Line</w:t></w:r></w:p>
<w:p><w:pPr><w:rPr><w:b/><w:sz w:val="48"/></w:rPr></w:pPr><w:r><w:rPr><w:b w:val="0"/></w:rPr><w:t>Plain footnote text</w:t></w:r></w:p>
<w:p><w:r><w:t>left</w:t></w:r><w:r><w:tab/><w:t>mid</w:t></w:r><w:r><w:br/><w:t>right</w:t></w:r></w:p>
<w:p><w:pPr><w:pStyle w:val="Heading1"/></w:pPr><w:r><w:t>  Introduction  </w:t></w:r></w:p>
<w:p/>
<w:p><w:r><w:t></w:t></w:r></w:p>
</w:body>
</w:document>`

func buildDocx(t *testing.T, entries map[string]string) *bytes.Reader {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range entries {
		f, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		if _, err := f.Write([]byte(body)); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close archive: %v", err)
	}
	return bytes.NewReader(buf.Bytes())
}

func TestParseDocx(t *testing.T) {
	r := buildDocx(t, map[string]string{
		"[Content_Types].xml": `<?xml version="1.0"?><Types/>`,
		"word/document.xml":   sampleDocumentXML,
	})

	doc, err := ParseDocx(r, r.Size())
	if err != nil {
		t.Fatalf("ParseDocx: %v", err)
	}

	want := []Paragraph{
		{Style: "Title", Text: "Adaptive Mesh Refinement in Practice"},
		{Text: "Maria Silva and Tom Baker"},
		{Text: "Display Line", Bold: true, Size: 32},
		// The paragraph mark props inside pPr and the switched-off bold
		// toggle both leave the runs plain.
		{Text: "Plain footnote text"},
		{Text: "left mid right"},
		{Style: "Heading1", Text: "Introduction"},
	}
	if len(doc.Paragraphs) != len(want) {
		t.Fatalf("got %d paragraphs, want %d: %+v", len(doc.Paragraphs), len(want), doc.Paragraphs)
	}
	for i, p := range doc.Paragraphs {
		if p != want[i] {
			t.Errorf("paragraph %d = %+v, want %+v", i, p, want[i])
		}
	}
}

func TestParseDocxMissingDocumentPart(t *testing.T) {
	r := buildDocx(t, map[string]string{
		"[Content_Types].xml": `<?xml version="1.0"?><Types/>`,
	})

	_, err := ParseDocx(r, r.Size())
	if err == nil {
		t.Fatal("expected an error for an archive without word/document.xml")
	}
	if !strings.Contains(err.Error(), "word/document.xml") {
		t.Errorf("error %q does not name the missing part", err)
	}
}

func TestParseDocxRejectsNonArchive(t *testing.T) {
	raw := []byte("this is not a zip archive")
	if _, err := ParseDocx(bytes.NewReader(raw), int64(len(raw))); err == nil {
		t.Fatal("expected an error for a non-zip payload")
	}
}

func TestParseDocumentXMLTruncated(t *testing.T) {
	in := strings.NewReader(`<w:document><w:body><w:p><w:r><w:t>cut off`)
	if _, err := parseDocumentXML(in); err == nil {
		t.Fatal("expected an error for truncated XML")
	}
}
