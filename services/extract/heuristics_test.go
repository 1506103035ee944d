package extract

import (
	"reflect"
	"testing"
)

func TestAnalyzeFrontMatter(t *testing.T) {
	doc := &Document{Paragraphs: []Paragraph{
		{Style: "Title", Text: "Deep Curriculum Learning for Robust Speech Models"},
		{Text: "Ana M. Costa"},
		{Text: "ana.costa@aalto.fi"},
		{Text: "Department of Computer Science, Aalto University"},
		{Text: "Wei Zhang"},
		{Text: "wzhang@tsinghua.edu.cn"},
		{Text: "Institute for AI, Tsinghua University"},
		{Text: "Abstract"},
		{Text: "We study curriculum schedules for speech models."},
		{Text: "Gains hold across three benchmarks."},
		{Text: "Keywords: curriculum learning; speech recognition; robustness"},
		{Style: "Heading1", Text: "1. Introduction"},
		{Text: "Speech models degrade under noise."},
	}}

	meta := Analyze(doc)

	if meta.Title != "Deep Curriculum Learning for Robust Speech Models" {
		t.Errorf("title = %q", meta.Title)
	}
	wantAbstract := "We study curriculum schedules for speech models.\n\nGains hold across three benchmarks."
	if meta.Abstract != wantAbstract {
		t.Errorf("abstract = %q, want %q", meta.Abstract, wantAbstract)
	}
	if want := []string{"curriculum learning", "speech recognition", "robustness"}; !reflect.DeepEqual(meta.Keywords, want) {
		t.Errorf("keywords = %v, want %v", meta.Keywords, want)
	}
	wantAuthors := []Author{
		{Name: "Ana M. Costa", Email: "ana.costa@aalto.fi", Affiliation: "Department of Computer Science, Aalto University"},
		{Name: "Wei Zhang", Email: "wzhang@tsinghua.edu.cn", Affiliation: "Institute for AI, Tsinghua University"},
	}
	if !reflect.DeepEqual(meta.Authors, wantAuthors) {
		t.Errorf("authors = %v, want %v", meta.Authors, wantAuthors)
	}
	if len(meta.Warnings) != 0 {
		t.Errorf("warnings = %v, want none", meta.Warnings)
	}
}

func TestAnalyzeEmptyDocument(t *testing.T) {
	want := []string{WarnNoTitle, WarnNoAbstract, WarnNoKeywords, WarnNoAuthors}
	for _, doc := range []*Document{nil, {}} {
		meta := Analyze(doc)
		if !reflect.DeepEqual(meta.Warnings, want) {
			t.Errorf("Analyze(%v) warnings = %v, want %v", doc, meta.Warnings, want)
		}
	}
}

func TestExtractTitle(t *testing.T) {
	tests := []struct {
		name  string
		paras []Paragraph
		want  string
	}{
		{
			name: "styled title wins over earlier text",
			paras: []Paragraph{
				{Text: "Journal of Hydrology, preprint of record"},
				{Style: "Heading1", Text: "Adaptive Mesh Refinement for Coastal Flood Models"},
			},
			want: "Adaptive Mesh Refinement for Coastal Flood Models",
		},
		{
			name: "bold paragraph beats the length fallback",
			paras: []Paragraph{
				{Text: "Submitted to the Journal of Hydrology"},
				{Text: "Adaptive Mesh Refinement for Coastal Flood Models", Bold: true},
			},
			want: "Adaptive Mesh Refinement for Coastal Flood Models",
		},
		{
			name: "display size counts as title type",
			paras: []Paragraph{
				{Text: "Short note"},
				{Text: "Tidal Surge Forecasting at Kilometre Scale", Size: 28},
			},
			want: "Tidal Surge Forecasting at Kilometre Scale",
		},
		{
			name: "bold section heading is skipped",
			paras: []Paragraph{
				{Text: "1. Introduction", Bold: true},
				{Text: "A Title Of Reasonable Length Here", Bold: true},
			},
			want: "A Title Of Reasonable Length Here",
		},
		{
			name: "first substantial paragraph as last resort",
			paras: []Paragraph{
				{Text: "Short"},
				{Text: "A Plain Report On Municipal Water Quality Sampling"},
			},
			want: "A Plain Report On Municipal Water Quality Sampling",
		},
		{
			name:  "small type below threshold is not a title",
			paras: []Paragraph{{Text: "Short note", Size: 24}},
			want:  "",
		},
		{
			name:  "nothing plausible",
			paras: []Paragraph{{Text: "Short"}, {Text: "TOC"}},
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractTitle(tt.paras); got != tt.want {
				t.Errorf("extractTitle = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractAbstract(t *testing.T) {
	tests := []struct {
		name  string
		paras []Paragraph
		want  string
	}{
		{
			name: "heading then paragraphs until numbered section",
			paras: []Paragraph{
				{Text: "Some Report"},
				{Text: "Abstract"},
				{Text: "First sentence."},
				{Text: "Second sentence."},
				{Text: "1. Introduction"},
				{Text: "Body text."},
			},
			want: "First sentence.\n\nSecond sentence.",
		},
		{
			name: "marker and content share a line",
			paras: []Paragraph{
				{Text: "Abstract: We report four measurements."},
				{Text: "They agree with theory."},
				{Style: "Heading2", Text: "Prior work on flood models"},
			},
			want: "We report four measurements.\n\nThey agree with theory.",
		},
		{
			name: "keyword list ends the abstract",
			paras: []Paragraph{
				{Text: "Summary"},
				{Text: "Only sentence."},
				{Text: "Keywords: tides, runoff"},
				{Text: "Stray paragraph."},
			},
			want: "Only sentence.",
		},
		{
			name: "capped at five paragraphs",
			paras: []Paragraph{
				{Text: "Abstract"},
				{Text: "One."}, {Text: "Two."}, {Text: "Three."},
				{Text: "Four."}, {Text: "Five."}, {Text: "Six."},
			},
			want: "One.\n\nTwo.\n\nThree.\n\nFour.\n\nFive.",
		},
		{
			name:  "no marker",
			paras: []Paragraph{{Text: "Report body without front matter."}},
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractAbstract(tt.paras); got != tt.want {
				t.Errorf("extractAbstract = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractKeywords(t *testing.T) {
	tests := []struct {
		name  string
		paras []Paragraph
		want  []string
	}{
		{
			name:  "semicolon list",
			paras: []Paragraph{{Text: "Keywords: curriculum learning; speech recognition; robustness"}},
			want:  []string{"curriculum learning", "speech recognition", "robustness"},
		},
		{
			name:  "spaced marker with commas",
			paras: []Paragraph{{Text: "Key words: machine learning, optimisation"}},
			want:  []string{"machine learning", "optimisation"},
		},
		{
			name:  "index terms",
			paras: []Paragraph{{Text: "Index Terms - sonar, bathymetry"}},
			want:  []string{"sonar", "bathymetry"},
		},
		{
			name:  "marker with content on the next line is lost",
			paras: []Paragraph{{Text: "Keywords:"}, {Text: "alpha; beta"}},
			want:  nil,
		},
		{
			name:  "no marker",
			paras: []Paragraph{{Text: "Body text only."}},
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractKeywords(tt.paras); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("extractKeywords = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExtractAuthors(t *testing.T) {
	tests := []struct {
		name  string
		paras []Paragraph
		want  []Author
	}{
		{
			name:  "name with footnote markers before the address",
			paras: []Paragraph{{Text: "Maria Silva1, maria.silva@ufrj.br"}},
			want:  []Author{{Name: "Maria Silva", Email: "maria.silva@ufrj.br"}},
		},
		{
			name: "name on the previous line, affiliation below",
			paras: []Paragraph{
				{Text: "Wei Zhang"},
				{Text: "wzhang@example.edu"},
				{Text: "Computing Department, Example University"},
			},
			want: []Author{{
				Name:        "Wei Zhang",
				Email:       "wzhang@example.edu",
				Affiliation: "Computing Department, Example University",
			}},
		},
		{
			name: "affiliation window spans two paragraphs only",
			paras: []Paragraph{
				{Text: "Piotr Nowak"},
				{Text: "p.nowak@agh.edu.pl"},
				{Text: "Kraków, Poland"},
				{Text: "AGH University of Science and Technology"},
			},
			want: []Author{{
				Name:        "Piotr Nowak",
				Email:       "p.nowak@agh.edu.pl",
				Affiliation: "AGH University of Science and Technology",
			}},
		},
		{
			name:  "no plausible name falls back",
			paras: []Paragraph{{Text: "contact: editor@journal.example.org"}},
			want:  []Author{{Name: "Unknown Author", Email: "editor@journal.example.org"}},
		},
		{
			name: "duplicate addresses collapse",
			paras: []Paragraph{
				{Text: "Jane Q. Doe"},
				{Text: "jane.doe@example.org"},
				{Text: "Corresponding author: jane.doe@example.org"},
			},
			want: []Author{{Name: "Jane Q. Doe", Email: "jane.doe@example.org"}},
		},
		{
			name: "addresses past the byline window are ignored",
			paras: []Paragraph{
				{Text: "p1"}, {Text: "p2"}, {Text: "p3"}, {Text: "p4"}, {Text: "p5"},
				{Text: "p6"}, {Text: "p7"}, {Text: "p8"}, {Text: "p9"}, {Text: "p10"},
				{Text: "Deep Author deep.author@example.org"},
			},
			want: nil,
		},
		{
			name:  "no addresses at all",
			paras: []Paragraph{{Text: "Anonymous submission"}},
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractAuthors(tt.paras); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("extractAuthors = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLooksLikeSectionHeading(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"1. Introduction", true},
		{"3 Results", true},
		{"Introduction", true},
		{"METHODS AND DATA", true},
		{"Materials and Methods", false},
		{"RESULTS FROM THE SECOND FIELD CAMPAIGN", false},
		{"A gentle introduction to tides", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := looksLikeSectionHeading(tt.text); got != tt.want {
			t.Errorf("looksLikeSectionHeading(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestIsAllUpper(t *testing.T) {
	tests := []struct {
		s    string
		want bool
	}{
		{"ACRONYM", true},
		{"A-B 42", true},
		{"Mixed", false},
		{"123", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := isAllUpper(tt.s); got != tt.want {
			t.Errorf("isAllUpper(%q) = %v, want %v", tt.s, got, tt.want)
		}
	}
}
