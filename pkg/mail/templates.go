package mail

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"sync"
	texttemplate "text/template"
)

//go:embed templates/*.html templates/*.txt
var templateFS embed.FS

// Template names understood by Render.
const (
	TemplatePinVerification   = "pin_verification"
	TemplatePinReset          = "pin_reset"
	TemplateApplicationStatus = "application_status"
)

// PinTemplateData feeds the PIN email templates.
type PinTemplateData struct {
	Name          string
	Code          string
	ExpiryMinutes int
}

// ApplicationStatusTemplateData feeds the application status email.
type ApplicationStatusTemplateData struct {
	Name     string
	JobTitle string
	Status   string
	Feedback string
}

var (
	templatesOnce sync.Once
	htmlTemplates *htmltemplate.Template
	textTemplates *texttemplate.Template
	templatesErr  error
)

func loadTemplates() {
	htmlTemplates, templatesErr = htmltemplate.ParseFS(templateFS, "templates/*.html")
	if templatesErr != nil {
		return
	}
	textTemplates, templatesErr = texttemplate.ParseFS(templateFS, "templates/*.txt")
}

// Render produces the plain-text and HTML bodies for the named template.
func Render(name string, data any) (text string, html string, err error) {
	templatesOnce.Do(loadTemplates)
	if templatesErr != nil {
		return "", "", fmt.Errorf("mail: parse templates: %w", templatesErr)
	}

	var textBuf bytes.Buffer
	if err := textTemplates.ExecuteTemplate(&textBuf, name+".txt", data); err != nil {
		return "", "", fmt.Errorf("mail: render %s text: %w", name, err)
	}

	var htmlBuf bytes.Buffer
	if err := htmlTemplates.ExecuteTemplate(&htmlBuf, name+".html", data); err != nil {
		return "", "", fmt.Errorf("mail: render %s html: %w", name, err)
	}

	return textBuf.String(), htmlBuf.String(), nil
}

// NewTemplateMessage renders the named template into a Message for one recipient.
func NewTemplateMessage(to, subject, name string, data any) (Message, error) {
	text, html, err := Render(name, data)
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:       []string{to},
		Subject:  subject,
		Body:     text,
		HTMLBody: html,
	}, nil
}
