// ABOUTME: HTML export of a conversation through goldmark
// ABOUTME: Messages become a markdown document that is converted and wrapped in a page template

package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/2389/coven-playground/internal/model"
)

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: system-ui, sans-serif; max-width: 48rem; margin: 2rem auto; line-height: 1.5; }
pre { background: #f4f4f5; padding: 0.75rem; overflow-x: auto; }
.meta { color: #71717a; font-size: 0.875rem; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<p class="meta">Exported {{.Exported}}</p>
{{.Body}}
</body>
</html>
`))

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// ExportHTML writes msgs as a standalone HTML page. Raw HTML in message
// content is escaped, not passed through.
func ExportHTML(w io.Writer, title string, msgs []model.Message, exported time.Time) error {
	var md strings.Builder
	for _, m := range msgs {
		writeMarkdown(&md, m)
	}

	var body bytes.Buffer
	if err := markdown.Convert([]byte(md.String()), &body); err != nil {
		return fmt.Errorf("converting markdown: %w", err)
	}

	data := struct {
		Title    string
		Exported string
		Body     template.HTML
	}{
		Title:    title,
		Exported: exported.UTC().Format(time.RFC3339),
		Body:     template.HTML(body.String()),
	}
	if err := pageTemplate.Execute(w, data); err != nil {
		return fmt.Errorf("rendering page: %w", err)
	}
	return nil
}

func writeMarkdown(md *strings.Builder, m model.Message) {
	if m.Role == model.RoleUser {
		md.WriteString("## You\n\n")
	} else {
		md.WriteString("## Agent\n\n")
	}
	md.WriteString(m.Content)
	md.WriteString("\n\n")

	for _, tc := range m.ToolCalls {
		fmt.Fprintf(md, "- tool `%s`", tc.ToolName)
		if len(tc.ToolArgs) > 0 {
			args, _ := json.Marshal(tc.ToolArgs)
			fmt.Fprintf(md, " `%s`", args)
		}
		md.WriteString("\n")
	}
	if m.Extra != nil {
		for _, step := range m.Extra.ReasoningSteps {
			fmt.Fprintf(md, "- reasoning: **%s** %s\n", step.Title, step.Reasoning)
		}
	}
	for _, img := range m.Images {
		fmt.Fprintf(md, "- image: <%s>\n", img.URL)
	}
	if m.StreamingError {
		md.WriteString("\n*Response incomplete.*\n")
	}
	md.WriteString("\n")
}
