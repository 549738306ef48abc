// Package mailer renders transactional email templates and delivers them over
// SMTP.
package mailer

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"

	gomail "gopkg.in/gomail.v2"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const (
	TemplateRestock            = "restock"
	TemplateRestockDelayed     = "restock_delayed"
	TemplateBackorderFulfilled = "backorder_fulfilled"
)

//go:embed templates/*
var templateFS embed.FS

// Message is a templated email.
type Message struct {
	To       string
	Subject  string
	Template string
	Data     map[string]any
}

// Mailer delivers rendered messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// Renderer parses the embedded html and plain-text templates once.
type Renderer struct {
	html *htmltemplate.Template
	text *texttemplate.Template
}

func NewRenderer() (*Renderer, error) {
	html, err := htmltemplate.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse html templates: %w", err)
	}
	text, err := texttemplate.ParseFS(templateFS, "templates/*.txt")
	if err != nil {
		return nil, fmt.Errorf("parse text templates: %w", err)
	}
	return &Renderer{html: html, text: text}, nil
}

// Render returns the plain and html bodies for the named template.
func (r *Renderer) Render(name string, data map[string]any) (string, string, error) {
	var plain, html bytes.Buffer
	if err := r.text.ExecuteTemplate(&plain, name+".txt", data); err != nil {
		return "", "", fmt.Errorf("render plain %s: %w", name, err)
	}
	if err := r.html.ExecuteTemplate(&html, name+".html", data); err != nil {
		return "", "", fmt.Errorf("render html %s: %w", name, err)
	}
	return plain.String(), html.String(), nil
}

// SMTPMailer sends through the configured relay.
type SMTPMailer struct {
	from     string
	renderer *Renderer
	dialer   dialer
}

func NewSMTPMailer(cfg config.MailConfig, renderer *Renderer) (*SMTPMailer, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("smtp host required")
	}
	if renderer == nil {
		return nil, fmt.Errorf("renderer required")
	}
	d := gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword)
	d.SSL = cfg.SMTPSSL
	return &SMTPMailer{from: cfg.From, renderer: renderer, dialer: d}, nil
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	plain, html, err := m.renderer.Render(msg.Template, msg.Data)
	if err != nil {
		return err
	}
	out := gomail.NewMessage()
	out.SetHeader("From", m.from)
	out.SetHeader("To", msg.To)
	out.SetHeader("Subject", msg.Subject)
	out.SetBody("text/plain", plain)
	out.AddAlternative("text/html", html)
	return m.dialer.DialAndSend(out)
}

// LogMailer renders and logs messages instead of sending them. Used when no
// SMTP relay is configured.
type LogMailer struct {
	renderer *Renderer
	logg     *logger.Logger
}

func NewLogMailer(renderer *Renderer, logg *logger.Logger) *LogMailer {
	return &LogMailer{renderer: renderer, logg: logg}
}

func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	if _, _, err := m.renderer.Render(msg.Template, msg.Data); err != nil {
		return err
	}
	if m.logg != nil {
		m.logg.Info(m.logg.WithFields(ctx, map[string]any{
			"to":       msg.To,
			"subject":  msg.Subject,
			"template": msg.Template,
		}), "email suppressed: no smtp relay configured")
	}
	return nil
}

// New picks the SMTP mailer when a relay is configured and the log mailer
// otherwise.
func New(cfg config.MailConfig, logg *logger.Logger) (Mailer, error) {
	renderer, err := NewRenderer()
	if err != nil {
		return nil, err
	}
	if !cfg.Enabled() {
		return NewLogMailer(renderer, logg), nil
	}
	return NewSMTPMailer(cfg, renderer)
}
