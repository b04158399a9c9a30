package text

import (
	"strings"

	"github.com/yuin/goldmark"
	emoji "github.com/yuin/goldmark-emoji"
	east "github.com/yuin/goldmark-emoji/ast"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	gtext "github.com/yuin/goldmark/text"
)

var markdown = goldmark.New(
	goldmark.WithExtensions(
		extension.Strikethrough,
		extension.Table,
		emoji.Emoji,
	),
)

// StripMarkdown returns the speakable text of a markdown document. Code
// blocks, HTML and link targets are dropped; block elements end with a
// sentence break.
func StripMarkdown(source string) string {
	src := []byte(source)
	doc := markdown.Parser().Parse(gtext.NewReader(src))

	var buf strings.Builder
	walk(doc, src, &buf)
	return strings.TrimSpace(buf.String())
}

func walk(node ast.Node, source []byte, buf *strings.Builder) {
	switch n := node.(type) {
	case *ast.CodeBlock, *ast.FencedCodeBlock, *ast.HTMLBlock, *ast.RawHTML:
		return

	case *ast.Text:
		buf.Write(n.Segment.Value(source))
		if n.SoftLineBreak() || n.HardLineBreak() {
			buf.WriteByte(' ')
		}
		return

	case *ast.String:
		buf.Write(n.Value)
		return

	case *east.Emoji:
		if n.Value != nil {
			buf.WriteString(n.Value.Name)
		}
		return

	case *ast.CodeSpan:
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			if t, ok := c.(*ast.Text); ok {
				buf.Write(t.Segment.Value(source))
			}
		}
		return

	case *ast.AutoLink:
		return

	case *ast.Image:
		if len(n.Title) > 0 {
			buf.WriteString("Image: ")
			buf.Write(n.Title)
			endBlock(buf)
		}
		return

	case *ast.Heading, *ast.Paragraph, *ast.ListItem, *ast.TextBlock:
		walkChildren(n, source, buf)
		endBlock(buf)
		return

	case *extast.TableCell:
		walkChildren(n, source, buf)
		buf.WriteString(", ")
		return

	case *extast.TableRow, *extast.TableHeader:
		walkChildren(n, source, buf)
		endBlock(buf)
		return

	case *ast.ThematicBreak:
		endBlock(buf)
		return
	}

	walkChildren(node, source, buf)

	if node.Kind() == ast.KindBlockquote || node.Kind() == ast.KindList {
		buf.WriteByte(' ')
	}
}

func walkChildren(node ast.Node, source []byte, buf *strings.Builder) {
	for c := node.FirstChild(); c != nil; c = c.NextSibling() {
		walk(c, source, buf)
	}
}

// endBlock terminates a block with a period unless it already ends a
// sentence.
func endBlock(buf *strings.Builder) {
	content := strings.TrimRight(buf.String(), " ,")
	if content == "" {
		return
	}

	buf.Reset()
	buf.WriteString(content)
	switch content[len(content)-1] {
	case '.', '!', '?', ':', ';':
		buf.WriteString(" ")
	default:
		buf.WriteString(". ")
	}
}
