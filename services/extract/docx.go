package extract

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/klauspost/compress/flate"
)

const documentEntry = "word/document.xml"

// Document is the flattened paragraph stream of a manuscript.
type Document struct {
	Paragraphs []Paragraph
}

// Paragraph is one block of text with its WordprocessingML style id and the
// run formatting the heuristics care about. Size is in half-points, the
// unit w:sz uses; the largest run wins.
type Paragraph struct {
	Style string
	Text  string
	Bold  bool
	Size  int
}

// ParseDocx reads the main document part out of a .docx archive and
// flattens it into styled paragraphs.
func ParseDocx(r io.ReaderAt, size int64) (*Document, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("open docx archive: %w", err)
	}
	zr.RegisterDecompressor(zip.Deflate, func(r io.Reader) io.ReadCloser {
		return flate.NewReader(r)
	})

	var part *zip.File
	for _, f := range zr.File {
		if f.Name == documentEntry {
			part = f
			break
		}
	}
	if part == nil {
		return nil, errors.New("docx archive has no word/document.xml")
	}

	body, err := part.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", documentEntry, err)
	}
	defer body.Close()

	return parseDocumentXML(body)
}

func parseDocumentXML(r io.Reader) (*Document, error) {
	dec := xml.NewDecoder(r)

	doc := &Document{}
	var (
		inParagraph bool
		inProps     bool
		inText      bool
		current     strings.Builder
		style       string
		bold        bool
		size        int
	)

	flush := func() {
		text := strings.TrimSpace(current.String())
		if text != "" {
			doc.Paragraphs = append(doc.Paragraphs, Paragraph{Style: style, Text: text, Bold: bold, Size: size})
		}
		current.Reset()
		style = ""
		bold = false
		size = 0
	}

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", documentEntry, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				inParagraph = true
			case "pPr":
				inProps = inParagraph
			case "pStyle":
				for _, attr := range t.Attr {
					if attr.Name.Local == "val" {
						style = attr.Value
					}
				}
			case "b":
				// Run formatting only; the paragraph mark props inside
				// pPr do not make the text bold.
				if inParagraph && !inProps && onOff(t) {
					bold = true
				}
			case "sz":
				if inParagraph && !inProps {
					if v := intVal(t); v > size {
						size = v
					}
				}
			case "t":
				inText = inParagraph
			case "tab", "br", "cr":
				if inParagraph {
					current.WriteByte(' ')
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "p":
				if inParagraph {
					flush()
					inParagraph = false
				}
			case "pPr":
				inProps = false
			case "t":
				inText = false
			}
		case xml.CharData:
			if inText {
				current.Write(t)
			}
		}
	}

	if inParagraph {
		flush()
	}
	return doc, nil
}

// onOff reads a WordprocessingML toggle. An absent w:val means on.
func onOff(e xml.StartElement) bool {
	for _, attr := range e.Attr {
		if attr.Name.Local != "val" {
			continue
		}
		switch strings.ToLower(attr.Value) {
		case "0", "false", "none", "off":
			return false
		}
	}
	return true
}

func intVal(e xml.StartElement) int {
	for _, attr := range e.Attr {
		if attr.Name.Local == "val" {
			if v, err := strconv.Atoi(attr.Value); err == nil {
				return v
			}
		}
	}
	return 0
}
