package render

import (
	"strings"
	"testing"
)

func TestRenderReceipt(t *testing.T) {
	e, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	out, err := e.Render("receipt", map[string]any{
		"ReceiptID":    "rcpt-1",
		"SubmissionID": "sub-1",
		"Title":        "Adaptive Mesh Refinement in Practice",
		"Section":      "research-article",
		"Status":       "submitted",
		"SubmittedAt":  "2026-03-14T09:30:00Z",
		"Authors": []map[string]any{
			{"Position": 1, "FullName": "Ana M. Costa", "Email": "ana@example.org", "IsCorresponding": true},
			{"Position": 2, "FullName": "Wei Zhang", "Email": "", "IsCorresponding": false},
		},
		"Files": []map[string]any{
			{"Name": "manuscript.docx", "Size": 52100, "SHA256": "deadbeef"},
		},
		"Issuer":   "vellum-portal",
		"IssuedAt": "2026-03-14T09:31:00Z",
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	for _, want := range []string{
		"SUBMISSION RECEIPT",
		"Title:          Adaptive Mesh Refinement in Practice",
		"1. Ana M. Costa <ana@example.org> (corresponding)",
		"2. Wei Zhang",
		"- manuscript.docx (52100 bytes, sha256:deadbeef)",
		"Issued by vellum-portal at 2026-03-14T09:31:00Z.",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("receipt missing %q:\n%s", want, out)
		}
	}

	if strings.Contains(out, "Wei Zhang <") {
		t.Error("empty email should not render angle brackets")
	}
}

func TestRenderExportReadme(t *testing.T) {
	e, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	out, err := e.Render("export_readme", map[string]any{
		"SubmissionID": "sub-1",
		"Title":        "Adaptive Mesh Refinement in Practice",
		"ExportedAt":   "2026-03-14T09:30:00Z",
		"ExportedBy":   "editor@example.org",
		"Files": []map[string]any{
			{"Path": "files/01-manuscript.docx"},
			{"Path": "files/02-figures.zip"},
		},
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	for _, want := range []string{
		"Export bundle for submission sub-1",
		"manifest.yaml",
		"files/01-manuscript.docx",
		"files/02-figures.zip",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("readme missing %q:\n%s", want, out)
		}
	}
}

func TestRenderUnknownTemplate(t *testing.T) {
	e, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := e.Render("no-such-template", nil); err == nil {
		t.Fatal("expected an error for an unknown template")
	}
}
