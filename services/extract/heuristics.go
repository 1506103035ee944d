package extract

import (
	"regexp"
	"strings"
	"unicode"
)

// Warning codes attached to extraction results when a field could not be
// recovered from the manuscript.
const (
	WarnNoTitle    = "EXTRACT_NO_TITLE"
	WarnNoAbstract = "EXTRACT_NO_ABSTRACT"
	WarnNoKeywords = "EXTRACT_NO_KEYWORDS"
	WarnNoAuthors  = "EXTRACT_NO_AUTHORS"
)

// ErrCodeInvalidFormat marks tasks whose manuscript could not be opened as
// a DOCX archive at all.
const ErrCodeInvalidFormat = "EXTRACT_INVALID_FORMAT"

// Author is one contributor recovered from the byline block.
type Author struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Affiliation string `json:"affiliation,omitempty"`
}

// Metadata is the structured form recovered from a manuscript.
type Metadata struct {
	Title    string   `json:"title"`
	Abstract string   `json:"abstract"`
	Keywords []string `json:"keywords"`
	Authors  []Author `json:"authors"`
	Warnings []string `json:"warnings"`
}

const (
	// titleSize is the w:sz threshold (half-points) above which a run
	// reads as display type. 28 half-points is 14pt.
	titleSize = 28

	minTitleLen = 20
	maxTitleLen = 300

	maxAbstractParagraphs = 5

	// authorScanLimit bounds how deep the e-mail scan looks. Bylines sit
	// ahead of the abstract in every journal template we have seen.
	authorScanLimit = 10
)

var (
	emailPattern    = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	trailingMarkers = regexp.MustCompile(`[0-9*,]+$`)
	numberedHeading = regexp.MustCompile(`^\d+\.?\s+[A-Z]`)
	keywordSep      = regexp.MustCompile(`[;,\n]`)

	abstractMarkers = []string{"abstract", "summary"}
	keywordMarkers  = []string{"keywords", "key words", "index terms"}

	affiliationWords = []string{
		"university", "institute", "college", "department", "school", "academy",
	}

	sectionWords = map[string]bool{
		"introduction":   true,
		"background":     true,
		"methods":        true,
		"methodology":    true,
		"results":        true,
		"discussion":     true,
		"conclusion":     true,
		"references":     true,
		"acknowledgment": true,
		"appendix":       true,
	}
)

// Analyze applies front-matter heuristics to a parsed document.
func Analyze(doc *Document) Metadata {
	meta := Metadata{Keywords: []string{}, Authors: []Author{}, Warnings: []string{}}

	var paras []Paragraph
	if doc != nil {
		paras = doc.Paragraphs
	}

	meta.Title = extractTitle(paras)
	meta.Abstract = extractAbstract(paras)
	if kw := extractKeywords(paras); kw != nil {
		meta.Keywords = kw
	}
	if authors := extractAuthors(paras); authors != nil {
		meta.Authors = authors
	}

	if meta.Title == "" {
		meta.Warnings = append(meta.Warnings, WarnNoTitle)
	}
	if meta.Abstract == "" {
		meta.Warnings = append(meta.Warnings, WarnNoAbstract)
	}
	if len(meta.Keywords) == 0 {
		meta.Warnings = append(meta.Warnings, WarnNoKeywords)
	}
	if len(meta.Authors) == 0 {
		meta.Warnings = append(meta.Warnings, WarnNoAuthors)
	}
	return meta
}

// extractTitle tries, in order: an explicit Title or Heading1 style, the
// first bold or display-size paragraph, and finally the first paragraph of
// plausible title length.
func extractTitle(paras []Paragraph) string {
	for _, p := range paras {
		if isTitleStyle(p.Style) {
			return p.Text
		}
	}
	for _, p := range paras {
		if (p.Bold || p.Size >= titleSize) && !looksLikeSectionHeading(p.Text) {
			return p.Text
		}
	}
	for _, p := range paras {
		if n := len(p.Text); n >= minTitleLen && n <= maxTitleLen && !looksLikeSectionHeading(p.Text) {
			return p.Text
		}
	}
	return ""
}

// extractAbstract collects the paragraphs between an abstract marker and
// the next section heading. A marker paragraph of more than three words
// carries its own content inline.
func extractAbstract(paras []Paragraph) string {
	var collected []string
	found := false
	for _, p := range paras {
		if !found {
			lower := strings.ToLower(p.Text)
			for _, marker := range abstractMarkers {
				idx := strings.Index(lower, marker)
				if idx < 0 {
					continue
				}
				if len(strings.Fields(p.Text)) > 3 {
					if rest := strings.Trim(p.Text[idx+len(marker):], " :-"); rest != "" {
						collected = append(collected, rest)
					}
				}
				found = true
				break
			}
			continue
		}
		if isHeadingStyle(p.Style) || looksLikeSectionHeading(p.Text) || hasKeywordMarker(p.Text) {
			break
		}
		collected = append(collected, p.Text)
		if len(collected) >= maxAbstractParagraphs {
			break
		}
	}
	return strings.Join(collected, "\n\n")
}

// hasKeywordMarker reports whether the paragraph opens a keyword list,
// which ends the abstract even though it is not a section heading.
func hasKeywordMarker(text string) bool {
	lower := strings.ToLower(text)
	for _, marker := range keywordMarkers {
		if strings.HasPrefix(lower, marker) {
			return true
		}
	}
	return false
}

// extractKeywords returns the delimited list after the first keyword
// marker that carries any content.
func extractKeywords(paras []Paragraph) []string {
	for _, p := range paras {
		lower := strings.ToLower(p.Text)
		for _, marker := range keywordMarkers {
			idx := strings.Index(lower, marker)
			if idx < 0 {
				continue
			}
			raw := strings.Trim(p.Text[idx+len(marker):], " :-")
			if raw == "" {
				continue
			}
			var keywords []string
			for _, part := range keywordSep.Split(raw, -1) {
				if kw := strings.TrimSpace(part); kw != "" {
					keywords = append(keywords, kw)
				}
			}
			if len(keywords) > 0 {
				return keywords
			}
		}
	}
	return nil
}

// extractAuthors keys on e-mail addresses, the one reliable anchor in a
// byline, then looks nearby for the name and affiliation.
func extractAuthors(paras []Paragraph) []Author {
	limit := len(paras)
	if limit > authorScanLimit {
		limit = authorScanLimit
	}

	var authors []Author
	seen := map[string]bool{}
	for i := 0; i < limit; i++ {
		for _, email := range emailPattern.FindAllString(paras[i].Text, -1) {
			key := strings.ToLower(email)
			if seen[key] {
				continue
			}
			seen[key] = true
			authors = append(authors, Author{
				Name:        nameNearEmail(paras, i, email),
				Email:       email,
				Affiliation: affiliationNear(paras, i),
			})
		}
	}
	return authors
}

// nameNearEmail takes the text before the address, stripped of footnote
// markers, when it spans two to four words; failing that, the previous
// paragraph when it does.
func nameNearEmail(paras []Paragraph, i int, email string) string {
	text := paras[i].Text
	if idx := strings.Index(text, email); idx >= 0 {
		before := strings.TrimSpace(text[:idx])
		before = strings.TrimSpace(trailingMarkers.ReplaceAllString(before, ""))
		if n := len(strings.Fields(before)); n >= 2 && n <= 4 {
			return before
		}
	}
	if i > 0 {
		prev := paras[i-1].Text
		if n := len(strings.Fields(prev)); n >= 2 && n <= 4 {
			return prev
		}
	}
	return "Unknown Author"
}

func affiliationNear(paras []Paragraph, i int) string {
	for off := 1; off <= 2; off++ {
		if i+off >= len(paras) {
			break
		}
		text := paras[i+off].Text
		lower := strings.ToLower(text)
		for _, word := range affiliationWords {
			if strings.Contains(lower, word) {
				return text
			}
		}
	}
	return ""
}

func isTitleStyle(style string) bool {
	s := strings.ToLower(style)
	return strings.HasPrefix(s, "title") || s == "heading1" || s == "heading 1"
}

func isHeadingStyle(style string) bool {
	return strings.HasPrefix(strings.ToLower(style), "heading")
}

// looksLikeSectionHeading recognises numbered headings, the standard
// section names, and short all-caps lines.
func looksLikeSectionHeading(text string) bool {
	if numberedHeading.MatchString(text) {
		return true
	}
	if sectionWords[strings.ToLower(strings.TrimSpace(text))] {
		return true
	}
	if len(strings.Fields(text)) <= 3 && isAllUpper(text) {
		return true
	}
	return false
}

// isAllUpper reports whether the text has letters and none of them are
// lowercase.
func isAllUpper(s string) bool {
	hasUpper := false
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) {
			hasUpper = true
		}
	}
	return hasUpper
}
