package processor

import (
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/taishikato/supavec-api/internal/markdown"
	"golang.org/x/net/html"
)

// Page is a fetched page normalized to Markdown.
type Page struct {
	Title    string
	Markdown string
}

// Processor converts fetched page bodies to Markdown.
type Processor struct{}

// New creates a new HTML to Markdown processor.
func New() *Processor {
	return &Processor{}
}

// Normalize turns a fetched body into Markdown. HTML is converted, Markdown
// and plain text pass through unchanged.
func (p *Processor) Normalize(contentType, body string) (*Page, error) {
	switch markdown.Classify(contentType, body) {
	case markdown.FormatMarkdown, markdown.FormatPlainText:
		return &Page{Title: markdownTitle(body), Markdown: body}, nil
	}

	md, err := p.Convert(body)
	if err != nil {
		return nil, err
	}
	return &Page{Title: p.ExtractTitle(body), Markdown: md}, nil
}

// Convert transforms HTML content into Markdown.
func (p *Processor) Convert(htmlContent string) (string, error) {
	if htmlContent == "" {
		return "", nil
	}

	md, err := htmltomarkdown.ConvertString(htmlContent)
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(md), nil
}

// ExtractTitle extracts the <title> content from HTML.
func (p *Processor) ExtractTitle(htmlContent string) string {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return ""
	}

	var title string
	var findTitle func(*html.Node) bool
	findTitle = func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.Data == "title" {
			if n.FirstChild != nil {
				title = n.FirstChild.Data
			}
			return true
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if findTitle(c) {
				return true
			}
		}
		return false
	}
	findTitle(doc)

	return strings.TrimSpace(title)
}

// markdownTitle returns the first H1 heading, if any.
func markdownTitle(content string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "# "))
		}
	}
	return ""
}
