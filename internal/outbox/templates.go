package outbox

import (
	"fmt"
	"html/template"
	"strings"
)

// Template names stored on outbox rows.
const (
	TemplateEntityTagImmediate = "entity_tag_immediate"
	TemplateEntityTagDigest    = "entity_tag_digest"
)

var templates = template.Must(template.New("email").Parse(`
{{define "entity_tag_immediate"}}<!doctype html>
<html lang="en">
  <body style="font-family: Arial, sans-serif; padding: 32px; color: #0f172a;">
    <h1>{{.entityName}} was mentioned</h1>
    {{if .jurisdictionLabel}}<p style="color: #475569;">{{.jurisdictionLabel}}</p>{{end}}
    {{if .contentTitle}}<h2>{{.contentTitle}}</h2>{{end}}
    {{if .contentExcerpt}}<p>{{.contentExcerpt}}</p>{{end}}
    {{if .createdBy}}<p style="color: #475569;">Posted by {{.createdBy}}</p>{{end}}
    <p><a href="{{.contentUrl}}" style="color: #2563eb;">View on Polyvox</a></p>
    <p style="font-size: 12px; color: #94a3b8;"><a href="{{.unsubscribeUrl}}">Unsubscribe</a></p>
  </body>
</html>{{end}}

{{define "entity_tag_digest"}}<!doctype html>
<html lang="en">
  <body style="font-family: Arial, sans-serif; padding: 32px; color: #0f172a;">
    <h1>Recent mentions of {{.entityName}}</h1>
    {{if .jurisdictionLabel}}<p style="color: #475569;">{{.jurisdictionLabel}}</p>{{end}}
    <ul>
      {{range .items}}
      <li>
        <a href="{{.url}}" style="color: #2563eb;">{{.title}}</a>
        {{if .excerpt}}<p>{{.excerpt}}</p>{{end}}
      </li>
      {{end}}
    </ul>
    <p style="font-size: 12px; color: #94a3b8;"><a href="{{.unsubscribeUrl}}">Unsubscribe</a></p>
  </body>
</html>{{end}}
`))

// Render produces the HTML body for a stored template name and payload.
func Render(name string, payload map[string]any) (string, error) {
	switch name {
	case TemplateEntityTagImmediate, TemplateEntityTagDigest:
	default:
		return "", fmt.Errorf("unknown template: %s", name)
	}
	var buf strings.Builder
	if err := templates.ExecuteTemplate(&buf, name, payload); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}
