package parser

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestSupported(t *testing.T) {
	assert.True(t, Supported(".md"))
	assert.True(t, Supported(".MDX"))
	assert.True(t, Supported(".pdf"))
	assert.True(t, Supported(".docx"))
	assert.True(t, Supported(".xlsx"))
	assert.False(t, Supported(".html"))
	assert.False(t, Supported(""))
}

func TestParseUnsupportedFormat(t *testing.T) {
	_, err := Parse("page.html")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported file format")
}

func TestParseText(t *testing.T) {
	path := writeTemp(t, "notes.txt", "  plain text body  \n")
	doc, err := Parse(path)
	require.NoError(t, err)
	require.Len(t, doc.Sections, 1)
	assert.Equal(t, "plain text body", doc.Sections[0].Text)
	assert.Empty(t, doc.Sections[0].HeadingPath)
}

func TestParseTextEmpty(t *testing.T) {
	path := writeTemp(t, "empty.txt", "   \n\n")
	doc, err := Parse(path)
	require.NoError(t, err)
	assert.Empty(t, doc.Sections)
}

func TestParseMarkdownHeadingPaths(t *testing.T) {
	content := `# Getting Started

Welcome to the guide.

## Installation

Download the binary.

### Linux

Use the tarball.

## Configuration

Edit the config file.
`
	path := writeTemp(t, "guide.md", content)
	doc, err := Parse(path)
	require.NoError(t, err)
	require.Len(t, doc.Sections, 4)

	assert.Equal(t, []string{"Getting Started"}, doc.Sections[0].HeadingPath)
	assert.Equal(t, "Welcome to the guide.", doc.Sections[0].Text)

	assert.Equal(t, []string{"Getting Started", "Installation"}, doc.Sections[1].HeadingPath)
	assert.Equal(t, "Download the binary.", doc.Sections[1].Text)

	assert.Equal(t, []string{"Getting Started", "Installation", "Linux"}, doc.Sections[2].HeadingPath)
	assert.Equal(t, "Use the tarball.", doc.Sections[2].Text)

	// A sibling h2 truncates back to depth two.
	assert.Equal(t, []string{"Getting Started", "Configuration"}, doc.Sections[3].HeadingPath)
	assert.Equal(t, "Edit the config file.", doc.Sections[3].Text)
}

func TestParseMarkdownPreamble(t *testing.T) {
	content := `Intro before any heading.

# First

Body.
`
	path := writeTemp(t, "pre.md", content)
	doc, err := Parse(path)
	require.NoError(t, err)
	require.Len(t, doc.Sections, 2)
	assert.Empty(t, doc.Sections[0].HeadingPath)
	assert.Equal(t, "Intro before any heading.", doc.Sections[0].Text)
}

func TestParseMarkdownStripsFrontMatter(t *testing.T) {
	content := `---
title: My Page
slug: /my-page
---

# My Page

Real content here.
`
	path := writeTemp(t, "fm.md", content)
	doc, err := Parse(path)
	require.NoError(t, err)
	require.Len(t, doc.Sections, 1)
	assert.Equal(t, []string{"My Page"}, doc.Sections[0].HeadingPath)
	assert.Equal(t, "Real content here.", doc.Sections[0].Text)
	assert.NotContains(t, doc.Sections[0].Text, "slug")
}

func TestParseMDXStripsImports(t *testing.T) {
	content := `import Tabs from '@theme/Tabs';
export const answer = 42;

# Component Docs

Use the component like this.
`
	path := writeTemp(t, "comp.mdx", content)
	doc, err := Parse(path)
	require.NoError(t, err)
	require.Len(t, doc.Sections, 1)
	assert.Equal(t, "Use the component like this.", doc.Sections[0].Text)
	assert.NotContains(t, doc.Sections[0].Text, "import")
}

func TestParseMarkdownKeepsCodeBlocks(t *testing.T) {
	content := "# Usage\n\nRun this:\n\n```sh\nmake install\n```\n"
	path := writeTemp(t, "code.md", content)
	doc, err := Parse(path)
	require.NoError(t, err)
	require.Len(t, doc.Sections, 1)
	assert.Contains(t, doc.Sections[0].Text, "make install")
}

func TestParseMarkdownEmpty(t *testing.T) {
	path := writeTemp(t, "blank.md", "\n\n")
	doc, err := Parse(path)
	require.NoError(t, err)
	assert.Empty(t, doc.Sections)
}
