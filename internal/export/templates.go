package export

import (
	"bytes"
	"html/template"
)

var noteTemplate = template.Must(template.New("note").Parse(noteTemplateHTML))

// TemplateData holds data for note template rendering
type TemplateData struct {
	Title     string
	Content   string
	Author    string
	CreatedAt string
}

// RenderNoteHTML renders the note template with provided data
func RenderNoteHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := noteTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const noteTemplateHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
  <style>
    body { font-family: Arial, sans-serif; line-height: 1.6; max-width: 800px; margin: 2rem auto; }
    h1 { border-bottom: 2px solid #333; padding-bottom: 0.5rem; }
    .meta { color: #666; font-size: 0.9em; margin-bottom: 2rem; }
    .content { white-space: pre-wrap; }
  </style>
</head>
<body>
  <h1>{{.Title}}</h1>
  <div class="meta">{{.Author}} | {{.CreatedAt}}</div>
  <div class="content">{{.Content}}</div>
</body>
</html>`
