package processor

import (
	"strings"
	"testing"
)

func TestProcessor_Convert(t *testing.T) {
	tests := []struct {
		name     string
		html     string
		contains []string
	}{
		{
			name:     "converts headings",
			html:     `<html><body><h1>Title</h1><h2>Subtitle</h2></body></html>`,
			contains: []string{"# Title", "## Subtitle"},
		},
		{
			name:     "converts paragraphs",
			html:     `<html><body><p>Hello world.</p><p>Second paragraph.</p></body></html>`,
			contains: []string{"Hello world.", "Second paragraph."},
		},
		{
			name:     "converts links",
			html:     `<html><body><p>Check <a href="https://example.com">this link</a>.</p></body></html>`,
			contains: []string{"[this link](https://example.com)"},
		},
		{
			name:     "converts inline code",
			html:     `<html><body><p>Use <code>go run</code> to execute.</p></body></html>`,
			contains: []string{"`go run`"},
		},
	}

	p := New()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := p.Convert(tt.html)
			if err != nil {
				t.Fatalf("Convert() error = %v", err)
			}

			for _, expected := range tt.contains {
				if !strings.Contains(result, expected) {
					t.Errorf("expected output to contain %q, got:\n%s", expected, result)
				}
			}
		})
	}
}

func TestProcessor_Convert_EmptyInput(t *testing.T) {
	result, err := New().Convert("")
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	if result != "" {
		t.Errorf("Convert(\"\") = %q, want empty", result)
	}
}

func TestProcessor_ExtractTitle(t *testing.T) {
	p := New()

	if got := p.ExtractTitle(`<html><head><title> Page Title </title></head><body></body></html>`); got != "Page Title" {
		t.Errorf("ExtractTitle() = %q, want %q", got, "Page Title")
	}
	if got := p.ExtractTitle(`<html><body><p>No title here</p></body></html>`); got != "" {
		t.Errorf("ExtractTitle() should return empty for no title, got %q", got)
	}
}

func TestProcessor_Normalize(t *testing.T) {
	p := New()

	t.Run("html is converted", func(t *testing.T) {
		page, err := p.Normalize("text/html", `<html><head><title>Docs</title></head><body><h1>Install</h1></body></html>`)
		if err != nil {
			t.Fatalf("Normalize() error = %v", err)
		}
		if page.Title != "Docs" {
			t.Errorf("Title = %q, want %q", page.Title, "Docs")
		}
		if !strings.Contains(page.Markdown, "# Install") {
			t.Errorf("Markdown = %q, want heading", page.Markdown)
		}
	})

	t.Run("markdown passes through", func(t *testing.T) {
		body := "# Readme\n\nText with <b>inline html</b>."
		page, err := p.Normalize("text/markdown", body)
		if err != nil {
			t.Fatalf("Normalize() error = %v", err)
		}
		if page.Markdown != body {
			t.Errorf("Markdown = %q, want unchanged %q", page.Markdown, body)
		}
		if page.Title != "Readme" {
			t.Errorf("Title = %q, want %q", page.Title, "Readme")
		}
	})
}
