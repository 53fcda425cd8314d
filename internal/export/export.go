// ABOUTME: Conversation transcript export to Markdown and HTML
// ABOUTME: Renders message markdown through goldmark for the HTML form

package export

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/2389/parley/internal/store"
)

var md = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
)

// Markdown renders a conversation transcript as a Markdown document.
// Pending and errored messages are skipped; only settled content is
// exported.
func Markdown(conv *store.Conversation, msgs []*store.Message) []byte {
	var buf bytes.Buffer

	title := conv.Title
	if title == "" {
		title = "Conversation " + conv.ID
	}
	fmt.Fprintf(&buf, "# %s\n\n", title)
	fmt.Fprintf(&buf, "Model: %s  \n", conv.Model)
	fmt.Fprintf(&buf, "Exported: %s\n\n", conv.UpdatedAt.Format("2006-01-02 15:04 MST"))

	for _, msg := range msgs {
		if msg.Status != store.StatusComplete {
			continue
		}
		switch msg.Role {
		case store.RoleUser:
			buf.WriteString("## User\n\n")
		case store.RoleAssistant:
			buf.WriteString("## Assistant\n\n")
		default:
			continue
		}
		buf.WriteString(strings.TrimRight(msg.Content, "\n"))
		buf.WriteString("\n\n")
	}

	return buf.Bytes()
}

// HTML renders the transcript as a standalone HTML page.
func HTML(conv *store.Conversation, msgs []*store.Message) ([]byte, error) {
	var body bytes.Buffer
	if err := md.Convert(Markdown(conv, msgs), &body); err != nil {
		return nil, fmt.Errorf("render transcript: %w", err)
	}

	title := conv.Title
	if title == "" {
		title = "Conversation " + conv.ID
	}

	var page bytes.Buffer
	fmt.Fprintf(&page, `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>%s</title>
<style>
body { max-width: 48rem; margin: 2rem auto; font-family: sans-serif; line-height: 1.5; padding: 0 1rem; }
pre { background: #f4f4f4; padding: 0.75rem; overflow-x: auto; }
code { background: #f4f4f4; }
</style>
</head>
<body>
`, html.EscapeString(title))
	page.Write(body.Bytes())
	page.WriteString("</body>\n</html>\n")

	return page.Bytes(), nil
}
