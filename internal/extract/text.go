package extract

import (
	"strings"

	"github.com/yuin/goldmark/ast"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/util"
)

// inlineText flattens the inline children of n to plain text. Markup is
// dropped, soft and hard line breaks become newlines, entity and numeric
// character references are decoded and backslash escapes are resolved.
func inlineText(n ast.Node, source []byte) string {
	var b strings.Builder
	writeInline(&b, n, source)
	return unescapePunctuation(b.String())
}

func writeInline(b *strings.Builder, n ast.Node, source []byte) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch v := c.(type) {
		case *ast.Text:
			b.Write(util.ResolveNumericReferences(util.ResolveEntityNames(v.Segment.Value(source))))
			if v.SoftLineBreak() || v.HardLineBreak() {
				b.WriteByte('\n')
			}
		case *ast.String:
			b.Write(v.Value)
		case *ast.AutoLink:
			b.Write(v.URL(source))
		case *ast.RawHTML:
			for i := 0; i < v.Segments.Len(); i++ {
				seg := v.Segments.At(i)
				b.Write(seg.Value(source))
			}
		case *extast.TaskCheckBox:
			// the checkbox carries no text
		default:
			writeInline(b, c, source)
		}
	}
}

// blockMarkdown renders a block node back to markdown-ish text. It is used
// for notes, where headings and code fences should survive.
func blockMarkdown(n ast.Node, source []byte) string {
	switch v := n.(type) {
	case *ast.Heading:
		return strings.Repeat("#", v.Level) + " " + rawLines(n, source)
	case *ast.FencedCodeBlock:
		return "```" + string(v.Language(source)) + "\n" + rawLines(n, source) + "\n```"
	case *ast.List:
		var parts []string
		for item := n.FirstChild(); item != nil; item = item.NextSibling() {
			var inner []string
			for c := item.FirstChild(); c != nil; c = c.NextSibling() {
				if s := blockMarkdown(c, source); s != "" {
					inner = append(inner, s)
				}
			}
			parts = append(parts, "- "+strings.Join(inner, "\n  "))
		}
		return strings.Join(parts, "\n")
	default:
		if n.Type() == ast.TypeBlock && n.Lines().Len() > 0 {
			return rawLines(n, source)
		}
		return ""
	}
}

func rawLines(n ast.Node, source []byte) string {
	lines := n.Lines()
	parts := make([]string, 0, lines.Len())
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		parts = append(parts, strings.TrimRight(string(seg.Value(source)), "\r\n"))
	}
	return strings.Join(parts, "\n")
}

// unescapePunctuation removes markdown backslash escapes in front of ASCII
// punctuation, leaving other backslashes alone.
func unescapePunctuation(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) && isASCIIPunct(s[i+1]) {
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func isASCIIPunct(c byte) bool {
	return strings.IndexByte("!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~", c) >= 0
}

func isParagraph(n ast.Node) bool {
	switch n.(type) {
	case *ast.Paragraph, *ast.TextBlock:
		return true
	}
	return false
}
