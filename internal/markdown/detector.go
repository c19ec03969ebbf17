// Package markdown classifies fetched page bodies so that only HTML goes
// through conversion.
package markdown

import (
	"mime"
	"regexp"
	"strings"
)

// Format is the detected representation of a fetched body.
type Format int

const (
	FormatHTML Format = iota
	FormatMarkdown
	FormatPlainText
)

func (f Format) String() string {
	switch f {
	case FormatMarkdown:
		return "markdown"
	case FormatPlainText:
		return "text"
	default:
		return "html"
	}
}

var (
	headingRe  = regexp.MustCompile(`^#{1,6}\s+\S`)
	listItemRe = regexp.MustCompile(`(?m)^[\-\*]\s+\S`)
	linkRe     = regexp.MustCompile(`\[.+?\]\(.+?\)`)
)

// IsMarkdownContentType checks if the Content-Type header indicates markdown.
func IsMarkdownContentType(contentType string) bool {
	mt := mediaType(contentType)
	return mt == "text/markdown" || mt == "text/x-markdown"
}

// IsMarkdownContent uses heuristics to detect if content is markdown.
func IsMarkdownContent(content string) bool {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" || LooksLikeHTML(trimmed) {
		return false
	}
	return headingRe.MatchString(trimmed) ||
		listItemRe.MatchString(trimmed) ||
		linkRe.MatchString(trimmed)
}

// LooksLikeHTML checks if content appears to be an HTML document.
func LooksLikeHTML(content string) bool {
	lower := strings.ToLower(strings.TrimSpace(content))
	return strings.HasPrefix(lower, "<!doctype") ||
		strings.HasPrefix(lower, "<html") ||
		strings.HasPrefix(lower, "<head") ||
		strings.HasPrefix(lower, "<body")
}

// Classify decides how a body should be treated.
// Checks in order: Content-Type, then content heuristics. A body that
// declares HTML or looks like HTML is always converted.
func Classify(contentType, content string) Format {
	if IsMarkdownContentType(contentType) {
		return FormatMarkdown
	}

	mt := mediaType(contentType)
	if mt == "text/html" || mt == "application/xhtml+xml" || LooksLikeHTML(content) {
		return FormatHTML
	}
	if IsMarkdownContent(content) {
		return FormatMarkdown
	}
	if mt == "text/plain" {
		return FormatPlainText
	}
	return FormatHTML
}

func mediaType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	}
	return mt
}
