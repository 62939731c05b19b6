package models

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// Turn is a single role/content pair of the outbound request sent to the completion endpoint.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the JSON body posted to the completion endpoint.
type ChatRequest struct {
	Messages []Turn `json:"messages"`
}

var markdown = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
		highlighting.NewHighlighting(highlighting.WithStyle("github")),
	),
	goldmark.WithRendererOptions(html.WithHardWraps()),
)

// OutboundTurns builds the request payload from a transcript. Messages that are not complete are
// skipped, so an in-flight placeholder or an errored partial answer never goes back to the model, and
// assistant turns with blank content are filtered out.
func OutboundTurns(messages []Message) []Turn {
	turns := make([]Turn, 0, len(messages))
	for _, msg := range messages {
		if msg.Status != StatusComplete {
			continue
		}
		if msg.Role == RoleAssistant && strings.TrimSpace(msg.Content) == "" {
			continue
		}
		turns = append(turns, Turn{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}
	return turns
}

// RenderContent renders markdown message content into HTML, with fenced code blocks highlighted.
func RenderContent(content string) (string, error) {
	if content == "" {
		return "", nil
	}

	var buf bytes.Buffer
	if err := markdown.Convert([]byte(content), &buf); err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return buf.String(), nil
}
