package parser

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestParse_FrontmatterAndBody(t *testing.T) {
	r := Parse("---\ntitle: Hello\ntags:\n  - go\n---\n# Heading\nBody text.\n")
	if r.Title != "Hello" {
		t.Errorf("title = %q, want %q", r.Title, "Hello")
	}
	if r.Frontmatter["tags"] == nil {
		t.Errorf("frontmatter = %v", r.Frontmatter)
	}
	if r.Body != "# Heading\nBody text.\n" {
		t.Errorf("body = %q", r.Body)
	}
}

func TestParse_NoFrontmatter(t *testing.T) {
	r := Parse("intro line\n# Just a heading\nSome text.\n")
	if r.Frontmatter != nil {
		t.Errorf("expected nil frontmatter, got %v", r.Frontmatter)
	}
	if r.Title != "Just a heading" {
		t.Errorf("title = %q, want %q", r.Title, "Just a heading")
	}
}

func TestParse_InvalidYAMLFallback(t *testing.T) {
	r := Parse("---\n: invalid: yaml: {{{\n---\nBody\n")
	if r.Frontmatter != nil {
		t.Errorf("expected nil frontmatter on invalid YAML")
	}
	if !strings.HasPrefix(r.Body, "---") {
		t.Errorf("invalid frontmatter should stay in the body, got %q", r.Body)
	}
}

func TestTitle_FirstLine(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"\n\n  buy milk  \nand eggs", "buy milk"},
		{"- [ ] todo item", "[ ] todo item"},
		{"## Sub heading\ntext", "Sub heading"},
	}
	for _, tt := range tests {
		if got := Title(tt.in); got != tt.want {
			t.Errorf("Title(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTitle_Truncated(t *testing.T) {
	got := Title(strings.Repeat("ä", 200))
	if n := utf8.RuneCountInString(got); n != MaxTitleRunes {
		t.Errorf("rune count = %d, want %d", n, MaxTitleRunes)
	}
	if !strings.HasSuffix(got, "…") {
		t.Errorf("missing ellipsis: %q", got)
	}
}
