package httpapi

import (
	"log"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
)

// renderMarkdown converts an LLM completion to HTML for the chat client.
// On conversion failure the raw text is returned so the client can still
// show something.
func renderMarkdown(src string) string {
	var sb strings.Builder
	if err := markdown.Convert([]byte(src), &sb); err != nil {
		log.Printf("httpapi markdown_render_failed err=%q", err.Error())
		return src
	}
	return sb.String()
}
