// Package parser derives display metadata from a note's Markdown content.
package parser

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// MaxTitleRunes bounds a title derived from the first line of content.
const MaxTitleRunes = 80

// Result holds the output of parsing note content.
type Result struct {
	Frontmatter map[string]any
	Body        string
	Title       string
}

// Parse splits optional YAML frontmatter from the body and derives a title.
func Parse(content string) *Result {
	fm, body := splitFrontmatter([]byte(content))
	return &Result{
		Frontmatter: fm,
		Body:        body,
		Title:       deriveTitle(fm, body),
	}
}

// Title returns the title to show for content: the frontmatter "title", the
// first H1 heading, or the first non-blank line, in that order.
func Title(content string) string {
	return Parse(content).Title
}

// splitFrontmatter separates YAML frontmatter (between leading --- delimiters)
// from the body. Without a valid block the whole content is body.
func splitFrontmatter(data []byte) (map[string]any, string) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data)
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, string(data)
	}

	var fm map[string]any
	if err := yaml.Unmarshal(rest[:idx], &fm); err != nil {
		return nil, string(data)
	}
	body := strings.TrimLeft(string(rest[idx+1+len(delim):]), "\n\r")
	return fm, body
}

func deriveTitle(fm map[string]any, body string) string {
	if s, ok := fm["title"].(string); ok && strings.TrimSpace(s) != "" {
		return strings.TrimSpace(s)
	}

	first := ""
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
		if first == "" && trimmed != "" {
			first = strings.TrimLeft(trimmed, "#>-* ")
		}
	}
	return truncate(first, MaxTitleRunes)
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:n-1])) + "…"
}
