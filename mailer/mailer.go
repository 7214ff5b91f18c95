// Package mailer renders and sends the application's notification mails.
package mailer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	texttemplate "text/template"

	"github.com/krishkalaria12/snap-detect/config"
	"github.com/rs/zerolog"
	"github.com/wneessen/go-mail"
)

// Sender delivers a composed message.
type Sender interface {
	Send(ctx context.Context, msg *mail.Msg) error
}

// Renderer renders an HTML template by name. *html.Engine implements it.
type Renderer interface {
	Render(out io.Writer, name string, binding interface{}, layout ...string) error
}

// Mailer composes multipart mails from a "<name>.txt" text template and a
// "<name>" HTML template.
type Mailer struct {
	sender Sender
	from   string
	html   Renderer
	text   *texttemplate.Template
}

// New parses the mail/*.txt templates of templates.
func New(sender Sender, from string, html Renderer, templates fs.FS) (*Mailer, error) {
	text, err := texttemplate.ParseFS(templates, "mail/*.txt")
	if err != nil {
		return nil, fmt.Errorf("parse mail templates: %w", err)
	}
	return &Mailer{sender: sender, from: from, html: html, text: text}, nil
}

// SendTemplate sends template name rendered with data to a single recipient.
func (m *Mailer) SendTemplate(ctx context.Context, to, subject, name string, data any) error {
	var text, html bytes.Buffer
	if err := m.text.ExecuteTemplate(&text, name+".txt", data); err != nil {
		return fmt.Errorf("render %s.txt: %w", name, err)
	}
	if err := m.html.Render(&html, "mail/"+name, data); err != nil {
		return fmt.Errorf("render %s.html: %w", name, err)
	}

	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return fmt.Errorf("invalid sender %q: %w", m.from, err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("invalid recipient %q: %w", to, err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, text.String())
	msg.AddAlternativeString(mail.TypeTextHTML, html.String())

	return m.sender.Send(ctx, msg)
}

// SMTPSender sends through the configured SMTP server.
type SMTPSender struct {
	client *mail.Client
}

func NewSMTPSender(cfg config.MailConfig) (*SMTPSender, error) {
	opts := []mail.Option{mail.WithPort(cfg.Port)}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}
	if cfg.UseTLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}

	client, err := mail.NewClient(cfg.Server, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create mail client: %w", err)
	}
	return &SMTPSender{client: client}, nil
}

func (s *SMTPSender) Send(ctx context.Context, msg *mail.Msg) error {
	return s.client.DialAndSendWithContext(ctx, msg)
}

// LogSender writes mails to the log instead of sending them. It is used when
// no MAIL_SERVER is configured.
type LogSender struct {
	Log zerolog.Logger
}

func (s LogSender) Send(_ context.Context, msg *mail.Msg) error {
	to, _ := msg.GetRecipients()
	var body bytes.Buffer
	if _, err := msg.WriteTo(&body); err != nil {
		return err
	}
	s.Log.Info().
		Strs("to", to).
		Strs("subject", msg.GetGenHeader(mail.HeaderSubject)).
		Int("size", body.Len()).
		Msg("mail not sent, no MAIL_SERVER configured")
	return nil
}

// NewSender picks the SMTP sender when a server is configured.
func NewSender(cfg config.MailConfig, log zerolog.Logger) (Sender, error) {
	if cfg.Server == "" {
		return LogSender{Log: log}, nil
	}
	return NewSMTPSender(cfg)
}
