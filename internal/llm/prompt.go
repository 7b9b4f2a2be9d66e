package llm

import "strings"

// MaxContextChars caps the document text embedded in a prompt.
const MaxContextChars = 3000

// ClipText trims text and cuts it to at most limit runes.
func ClipText(text string, limit int) string {
	text = strings.TrimSpace(text)
	if limit <= 0 || len(text) <= limit {
		return text
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}

// SummaryPrompt asks for a short summary of text.
func SummaryPrompt(text string) string {
	return "Please provide a concise summary (2-3 sentences) of this text:\n\n" + text
}

// DocumentAnswerPrompt embeds document context ahead of the user's question.
func DocumentAnswerPrompt(context, question string) string {
	var b strings.Builder
	b.WriteString("Based on this document:\n\n")
	b.WriteString(context)
	b.WriteString("\n\nUser question: ")
	b.WriteString(question)
	b.WriteString("\n\nPlease provide a helpful answer based on the document content:")
	return b.String()
}
