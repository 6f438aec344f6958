package llmservice

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"docsite-rag/internal/models"
)

const systemPromptTemplate = `You are a helpful assistant for a documentation site. Answer questions based only on the provided context passages.
Do not use any external knowledge or information beyond what is provided below.
Each passage is labeled with a citation marker like [S1]; cite the markers of the passages you use.
If the answer is not found in the provided passages, respond with: '%s'
Do not make up information or infer beyond what is explicitly stated.

%s`

const selectedTextPromptTemplate = `You are a helpful assistant for a documentation site. Answer questions based only on the selected text below.
Do not use any external knowledge or information beyond what is provided in the selected text.
If the answer is not found in the selected text, respond with: '%s'
Do not make up information or infer beyond what is explicitly stated in the selected text.

Selected text: %s`

// BuildMessages assembles the grounded prompt. Selection-only context gets
// the stricter selected-text instruction; otherwise each retrieved chunk is
// embedded with an explicit citation marker and its source location.
func BuildMessages(query string, contextSet []models.RetrievalResult, fallback string) []llms.MessageContent {
	var system string
	if models.IsSelectionOnly(contextSet) {
		system = fmt.Sprintf(selectedTextPromptTemplate, fallback, contextSet[0].Chunk.Text)
	} else {
		system = fmt.Sprintf(systemPromptTemplate, fallback, formatContext(contextSet))
	}

	user := fmt.Sprintf("Question: %s\n\nPlease provide a helpful and accurate answer based only on the information provided above.", query)

	return []llms.MessageContent{
		{Role: llms.ChatMessageTypeSystem, Parts: []llms.ContentPart{llms.TextContent{Text: system}}},
		{Role: llms.ChatMessageTypeHuman, Parts: []llms.ContentPart{llms.TextContent{Text: user}}},
	}
}

func formatContext(contextSet []models.RetrievalResult) string {
	var sb strings.Builder
	for i, res := range contextSet {
		if i > 0 {
			sb.WriteString("\n---\n")
		}
		sb.WriteString(fmt.Sprintf("[S%d] Source: %s", i+1, res.Chunk.SourcePath))
		if len(res.Chunk.HeadingPath) > 0 {
			sb.WriteString(" | " + strings.Join(res.Chunk.HeadingPath, " > "))
		}
		sb.WriteString("\n")
		sb.WriteString(res.Chunk.Text)
		sb.WriteString("\n")
	}
	return sb.String()
}
