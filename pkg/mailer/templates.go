package mailer

import (
	"bytes"
	"fmt"
	"html/template"
	texttemplate "text/template"
)

const (
	TemplateVerificationApproved = "verification_approved"
	TemplateVerificationPending  = "verification_pending"
	TemplateVerificationRejected = "verification_rejected"
)

type mailTemplate struct {
	subject *texttemplate.Template
	body    *template.Template
}

const layout = `<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #333;">
  <div style="max-width: 600px; margin: 0 auto; padding: 24px;">
    <h2 style="color: #2c3e50;">SmartShop B2B</h2>
    {{block "content" .}}{{end}}
    <p style="color: #999; font-size: 12px; margin-top: 32px;">This is an automated message, please do not reply.</p>
  </div>
</body>
</html>`

var templateSources = map[string][2]string{
	TemplateVerificationApproved: {
		"Your SmartShop partner account for {{.company_name}} is approved",
		`{{define "content"}}
<p>Hello,</p>
<p>The registration of <strong>{{.company_name}}</strong> has been verified. Wholesale prices and B2B ordering are now available.</p>
{{if .dashboard_url}}<p><a href="{{.dashboard_url}}">Open your partner cabinet</a></p>{{end}}
{{end}}`,
	},
	TemplateVerificationPending: {
		"{{.company_name}}: registration under review",
		`{{define "content"}}
<p>Hello,</p>
<p>We received the registration of <strong>{{.company_name}}</strong>. Our team is reviewing it and will get back to you shortly.</p>
{{if .reason}}<p>Points under review: {{.reason}}</p>{{end}}
{{end}}`,
	},
	TemplateVerificationRejected: {
		"{{.company_name}}: registration declined",
		`{{define "content"}}
<p>Hello,</p>
<p>Unfortunately the registration of <strong>{{.company_name}}</strong> could not be approved.</p>
{{if .reason}}<p>Reason: {{.reason}}</p>{{end}}
<p>Reply to your account manager if you believe this is a mistake.</p>
{{end}}`,
	},
}

var templates = mustParseTemplates()

func mustParseTemplates() map[string]mailTemplate {
	parsed := make(map[string]mailTemplate, len(templateSources))
	for name, src := range templateSources {
		subject := texttemplate.Must(texttemplate.New(name + "_subject").Option("missingkey=zero").Parse(src[0]))
		body := template.Must(template.Must(template.New(name).Option("missingkey=zero").Parse(layout)).Parse(src[1]))
		parsed[name] = mailTemplate{subject: subject, body: body}
	}
	return parsed
}

// Render produces the subject line and HTML body of a named template
func Render(name string, vars map[string]string) (string, string, error) {
	tmpl, ok := templates[name]
	if !ok {
		return "", "", fmt.Errorf("%w: %s", ErrUnknownTemplate, name)
	}

	var subject, body bytes.Buffer
	if err := tmpl.subject.Execute(&subject, vars); err != nil {
		return "", "", fmt.Errorf("failed to render subject: %w", err)
	}
	if err := tmpl.body.Execute(&body, vars); err != nil {
		return "", "", fmt.Errorf("failed to render body: %w", err)
	}
	return subject.String(), body.String(), nil
}
