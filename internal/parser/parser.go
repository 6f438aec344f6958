package parser

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/xuri/excelize/v2"
)

// Section is a run of prose under one heading path.
type Section struct {
	HeadingPath []string
	Text        string
}

// Document is the parsed form of a single source file, ready for chunking.
type Document struct {
	SourcePath string
	Sections   []Section
}

var supportedExts = map[string]bool{
	".md":       true,
	".mdx":      true,
	".markdown": true,
	".txt":      true,
	".pdf":      true,
	".docx":     true,
	".xlsx":     true,
	".ods":      true,
}

// Supported reports whether the file extension is an ingestible format.
func Supported(ext string) bool {
	return supportedExts[strings.ToLower(ext)]
}

// Parse extracts prose sections from a document file. The returned document
// may have zero sections for empty inputs; callers skip those.
func Parse(filePath string) (*Document, error) {
	ext := strings.ToLower(filepath.Ext(filePath))
	switch ext {
	case ".md", ".mdx", ".markdown":
		return parseMarkdown(filePath)
	case ".txt":
		return parseText(filePath)
	case ".pdf":
		return parsePDF(filePath)
	case ".docx":
		return parseDOCX(filePath)
	case ".xlsx", ".ods":
		return parseSpreadsheet(filePath)
	default:
		return nil, fmt.Errorf("unsupported file format: %s", ext)
	}
}

func parseText(filePath string) (*Document, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	doc := &Document{SourcePath: filePath}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return doc, nil
	}
	doc.Sections = []Section{{Text: text}}
	return doc, nil
}

func parsePDF(filePath string) (*Document, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}

	reader, err := pdf.NewReader(f, stat.Size())
	if err != nil {
		return nil, err
	}

	doc := &Document{SourcePath: filePath}
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return nil, err
		}
		pageText = strings.TrimSpace(pageText)
		if pageText == "" {
			continue
		}
		doc.Sections = append(doc.Sections, Section{
			HeadingPath: []string{fmt.Sprintf("Page %d", i)},
			Text:        pageText,
		})
	}
	return doc, nil
}

func parseDOCX(filePath string) (*Document, error) {
	r, err := docx.ReadDocxFile(filePath)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	content := r.Editable().GetContent()
	doc := &Document{SourcePath: filePath}

	var paragraphs []string
	for _, p := range strings.Split(content, "\n") {
		if strings.TrimSpace(p) != "" {
			paragraphs = append(paragraphs, strings.TrimSpace(p))
		}
	}
	if len(paragraphs) == 0 {
		return doc, nil
	}
	doc.Sections = []Section{{Text: strings.Join(paragraphs, "\n\n")}}
	return doc, nil
}

func parseSpreadsheet(filePath string) (*Document, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	doc := &Document{SourcePath: filePath}
	for _, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			continue
		}
		var text strings.Builder
		for _, row := range rows {
			line := strings.TrimSpace(strings.Join(row, "\t"))
			if line == "" {
				continue
			}
			text.WriteString(line)
			text.WriteString("\n")
		}
		if strings.TrimSpace(text.String()) == "" {
			continue
		}
		doc.Sections = append(doc.Sections, Section{
			HeadingPath: []string{sheetName},
			Text:        strings.TrimSpace(text.String()),
		})
	}
	return doc, nil
}
