package core

import (
	"bytes"
	"net/mail"
	"path"
	"strings"
	"sync"
	"text/template"

	"github.com/pkg/errors"

	appfs "github.com/trezcool/orbit/fs"
)

const emailTemplatesDir = "templates/email"

var (
	templates map[string]*template.Template // {name: *Template}
	tmplErr   error
	tmplInit  sync.Once
)

type (
	EmailMessage struct {
		To      []mail.Address
		Cc      []mail.Address
		Bcc     []mail.Address
		Subject string
		BodyStr string // simple text/plain, non-templated content

		// templated contents
		TemplateName string // without ext
		TemplateData interface{}
		TextContent  string
	}

	ContextData struct {
		AppName string
		Data    interface{}
	}

	// EmailService is any service that can send emails
	EmailService interface {
		// SendMessages sends messages concurrently
		SendMessages(messages ...*EmailMessage)
	}
)

// Render fills TextContent, either from BodyStr or from the named template.
func (m *EmailMessage) Render(appName string) error {
	if m.BodyStr != "" {
		m.TextContent = m.BodyStr
		return nil
	} else if m.TemplateName == "" {
		return nil
	}

	tmplInit.Do(parseTemplates) // only execute once during first request
	if tmplErr != nil {
		return tmplErr
	}
	tmpl, ok := templates[m.TemplateName]
	if !ok {
		return errors.Errorf("email template %q not found", m.TemplateName)
	}

	var buff bytes.Buffer
	if err := tmpl.Execute(&buff, ContextData{AppName: appName, Data: m.TemplateData}); err != nil {
		return errors.Wrap(err, "executing email template")
	}
	m.TextContent = buff.String()
	return nil
}

func (m *EmailMessage) HasRecipients() bool { return len(m.To) > 0 }
func (m *EmailMessage) HasContent() bool    { return m.TextContent != "" }

func parseTemplates() {
	templates = make(map[string]*template.Template)

	fps, err := appfs.FS.ReadDir(emailTemplatesDir)
	if err != nil {
		tmplErr = errors.Wrap(err, "reading email templates")
		return
	}

	base := path.Join(emailTemplatesDir, "_base.txt")
	for _, fp := range fps {
		fname := fp.Name()
		if strings.HasPrefix(fname, "_") || path.Ext(fname) != ".txt" {
			continue
		}
		tmpl, err := template.New(fname).
			Option("missingkey=error").
			ParseFS(appfs.FS, base, path.Join(emailTemplatesDir, fname))
		if err != nil {
			tmplErr = errors.Wrapf(err, "parsing email template %s", fname)
			return
		}
		templates[strings.TrimSuffix(fname, ".txt")] = tmpl
	}
}
