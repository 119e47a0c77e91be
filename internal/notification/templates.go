package notification

import (
	"os"
	"strings"
	"text/template"
	"time"
)

const defaultSubjectTemplate = `You have been invited to register`

const defaultMessageTemplate = `Hello,

{{if .SenderName}}{{.SenderName}} has invited you{{else}}You have been invited{{end}} to create an account.
Follow the link below to register:

{{.AcceptURL}}

The invitation is valid for {{.Days}} days and expires on {{.ExpiresAt.Format "2006-01-02"}}.
If you did not expect this email, you can ignore it.
`

// TemplateData is what subject and message templates render against.
type TemplateData struct {
	Email      string
	Key        string
	AcceptURL  string
	SenderName string
	ExpiresAt  time.Time
	Days       int
}

// Templates holds the parsed subject and message templates for an
// invitation email. The zero value renders the built-in defaults.
type Templates struct {
	Subject *template.Template
	Message *template.Template
}

var (
	builtinSubject = template.Must(template.New("subject").Parse(defaultSubjectTemplate))
	builtinMessage = template.Must(template.New("message").Parse(defaultMessageTemplate))
)

func (t Templates) subject() *template.Template {
	if t.Subject != nil {
		return t.Subject
	}
	return builtinSubject
}

func (t Templates) message() *template.Template {
	if t.Message != nil {
		return t.Message
	}
	return builtinMessage
}

// Render produces the subject line and message body. Newlines in the subject
// are collapsed so a multi-line template cannot break the mail headers.
func (t Templates) Render(data TemplateData) (subject, message string, err error) {
	var sb strings.Builder
	if err := t.subject().Execute(&sb, data); err != nil {
		return "", "", err
	}
	subject = strings.Join(strings.Fields(sb.String()), " ")

	var mb strings.Builder
	if err := t.message().Execute(&mb, data); err != nil {
		return "", "", err
	}
	return subject, mb.String(), nil
}

// LoadTemplates parses subject and message templates from file paths. Empty
// paths fall back to the built-in templates.
func LoadTemplates(subjectPath, messagePath string) (Templates, error) {
	var tpls Templates
	if subjectPath != "" {
		raw, err := os.ReadFile(subjectPath)
		if err != nil {
			return Templates{}, err
		}
		tpls.Subject, err = template.New("subject").Parse(string(raw))
		if err != nil {
			return Templates{}, err
		}
	}
	if messagePath != "" {
		raw, err := os.ReadFile(messagePath)
		if err != nil {
			return Templates{}, err
		}
		tpls.Message, err = template.New("message").Parse(string(raw))
		if err != nil {
			return Templates{}, err
		}
	}
	return tpls, nil
}
