package parser

import (
	"os"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

// parseMarkdown walks the goldmark AST and groups prose under its heading
// path, so every chunk can later cite the section it came from. Front matter
// and MDX import/export directives are not prose and are dropped first.
func parseMarkdown(filePath string) (*Document, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	src := []byte(stripDirectives(string(data)))

	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	root := md.Parser().Parse(text.NewReader(src))

	doc := &Document{SourcePath: filePath}

	// headings[i] holds the active heading text for level i+1
	var headings []string
	var section strings.Builder

	flush := func() {
		body := strings.TrimSpace(section.String())
		section.Reset()
		if body == "" {
			return
		}
		path := make([]string, len(headings))
		copy(path, headings)
		doc.Sections = append(doc.Sections, Section{HeadingPath: path, Text: body})
	}

	for node := root.FirstChild(); node != nil; node = node.NextSibling() {
		if h, ok := node.(*ast.Heading); ok {
			flush()
			title := strings.TrimSpace(nodeText(h, src))
			if h.Level <= len(headings) {
				headings = headings[:h.Level-1]
			}
			for len(headings) < h.Level-1 {
				headings = append(headings, "")
			}
			headings = append(headings, title)
			continue
		}
		body := nodeText(node, src)
		if strings.TrimSpace(body) == "" {
			continue
		}
		if section.Len() > 0 {
			section.WriteString("\n\n")
		}
		section.WriteString(strings.TrimSpace(body))
	}
	flush()

	return doc, nil
}

// nodeText collects the raw text of a block node, including code block lines.
func nodeText(n ast.Node, src []byte) string {
	var sb strings.Builder
	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := node.(type) {
		case *ast.Text:
			sb.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				sb.WriteByte('\n')
			}
		case *ast.FencedCodeBlock:
			writeLines(&sb, t, src)
		case *ast.CodeBlock:
			writeLines(&sb, t, src)
		}
		return ast.WalkContinue, nil
	})
	return sb.String()
}

func writeLines(sb *strings.Builder, n ast.Node, src []byte) {
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		sb.Write(seg.Value(src))
	}
}

// stripDirectives removes YAML front matter and MDX import/export lines.
func stripDirectives(content string) string {
	if strings.HasPrefix(content, "---\n") || strings.HasPrefix(content, "---\r\n") {
		rest := content[3:]
		if idx := strings.Index(rest, "\n---"); idx >= 0 {
			end := idx + len("\n---")
			if nl := strings.IndexByte(rest[end:], '\n'); nl >= 0 {
				content = rest[end+nl+1:]
			} else {
				content = ""
			}
		}
	}

	var sb strings.Builder
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "import ") || strings.HasPrefix(trimmed, "export ") {
			continue
		}
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	return sb.String()
}
