package audit

import (
	"bytes"
	"strings"
	"sync"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

var (
	markdownParser     goldmark.Markdown
	markdownParserOnce sync.Once
)

func parser() goldmark.Markdown {
	markdownParserOnce.Do(func() {
		markdownParser = goldmark.New(goldmark.WithExtensions(extension.GFM))
	})
	return markdownParser
}

// heading is a markdown heading with its zero-based source line.
type heading struct {
	level int
	text  string
	line  int
}

// paragraph is a top-level paragraph with its line span.
type paragraph struct {
	text  string
	line  int
	lines int
}

// outline is the part of a document the rules look at.
type outline struct {
	headings   []heading
	paragraphs []paragraph
	lineCount  int
}

// parseOutline extracts headings and top-level paragraphs from a markdown
// body. Lines are counted from the start of body.
func parseOutline(body string) outline {
	source := []byte(body)
	doc := parser().Parser().Parse(text.NewReader(source))
	out := outline{lineCount: strings.Count(body, "\n") + 1}

	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Heading:
			if node.Lines().Len() == 0 {
				continue
			}
			out.headings = append(out.headings, heading{
				level: node.Level,
				text:  inlineText(node, source),
				line:  lineOf(source, node.Lines().At(0).Start),
			})
		case *ast.Paragraph:
			lines := node.Lines()
			if lines.Len() == 0 {
				continue
			}
			var b strings.Builder
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				b.Write(seg.Value(source))
			}
			out.paragraphs = append(out.paragraphs, paragraph{
				text:  strings.TrimSpace(b.String()),
				line:  lineOf(source, lines.At(0).Start),
				lines: lines.Len(),
			})
		}
	}
	return out
}

// inlineText concatenates the text of a node's inline descendants.
func inlineText(n ast.Node, source []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(child ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := child.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(t.Value)
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(b.String())
}

func lineOf(source []byte, offset int) int {
	if offset > len(source) {
		offset = len(source)
	}
	return bytes.Count(source[:offset], []byte("\n"))
}

// normalizeHeading lower-cases and collapses whitespace so "Core  Expertise"
// matches "core expertise".
func normalizeHeading(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// find returns the first heading of level two or deeper matching one of
// the prefixes.
func (o outline) find(prefixes []string) (heading, bool) {
	for _, h := range o.headings {
		if h.level < 2 {
			continue
		}
		name := normalizeHeading(h.text)
		for _, p := range prefixes {
			if strings.HasPrefix(name, p) {
				return h, true
			}
		}
	}
	return heading{}, false
}

// sectionLines counts the non-blank-bounded lines between a heading and the
// next heading of the same or higher level.
func (o outline) sectionLines(body string, h heading) int {
	end := o.lineCount
	for _, next := range o.headings {
		if next.line > h.line && next.level <= h.level {
			end = next.line
			break
		}
	}
	lines := strings.Split(body, "\n")
	if end > len(lines) {
		end = len(lines)
	}
	start := h.line + 1
	for start < end && strings.TrimSpace(lines[start]) == "" {
		start++
	}
	for end > start && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	return end - start
}

// role finds the role description: a paragraph opening with "You are", or
// a first paragraph that mentions it.
func (o outline) role() (paragraph, bool) {
	for i, p := range o.paragraphs {
		if strings.HasPrefix(p.text, "You are") || (i == 0 && strings.Contains(p.text, "You are")) {
			return p, true
		}
	}
	return paragraph{}, false
}
