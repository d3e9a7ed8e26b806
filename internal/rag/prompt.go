package rag

import (
	"fmt"
	"strings"
)

// BuildPrompt assembles a grounded prompt from the question and the
// retrieved texts, in retrieval order. With no retrieved texts the
// prompt says so explicitly, so downstream behavior is distinguishable
// from a prompt with irrelevant context. Pure function.
func BuildPrompt(question string, texts []string) string {
	var b strings.Builder

	if len(texts) == 0 {
		b.WriteString("No context documents were found for this question.\n")
	} else {
		b.WriteString("Context Documents:\n")
		for i, text := range texts {
			fmt.Fprintf(&b, "\nDocument %d:\n%s\n---\n", i+1, text)
		}
	}

	fmt.Fprintf(&b, "\nQuestion: %s\n", question)
	b.WriteString("\nAnswer the question using ONLY the information in the context documents above, and reference the source documents where possible. If the answer cannot be found in the documents, say so clearly.\n\nAnswer: ")

	return b.String()
}
