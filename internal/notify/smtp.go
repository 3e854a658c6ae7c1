package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"embed"
	"fmt"
	"html/template"
	"net"
	"net/smtp"
	"strings"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

var subjects = map[Template]string{
	TemplateRegistration:         "Registration to {{.seminar_name}}",
	TemplateRolesChanged:         "{{.seminar_name}}: roles changed",
	TemplateSubeventsChanged:     "{{.seminar_name}}: program changed",
	TemplateRegistrationCanceled: "{{.seminar_name}}: registration canceled",
	TemplateMaturityReminder:     "{{.seminar_name}}: payment reminder",
}

// SMTPConfig configures SMTPSender.
type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
}

// SMTPSender renders HTML templates and delivers them over SMTP with STARTTLS.
type SMTPSender struct {
	cfg       SMTPConfig
	templates *template.Template
}

// NewSMTPSender parses the embedded templates.
func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse mail templates: %w", err)
	}
	return &SMTPSender{cfg: cfg, templates: tmpl}, nil
}

// Render returns the subject and HTML body of msg.
func (s *SMTPSender) Render(msg Message) (string, string, error) {
	subjectTmpl, ok := subjects[msg.Template]
	if !ok {
		return "", "", fmt.Errorf("unknown template %q", msg.Template)
	}
	var subject strings.Builder
	st, err := template.New("subject").Parse(subjectTmpl)
	if err != nil {
		return "", "", err
	}
	if err := st.Execute(&subject, msg.Variables); err != nil {
		return "", "", fmt.Errorf("render subject: %w", err)
	}

	var body bytes.Buffer
	if err := s.templates.ExecuteTemplate(&body, string(msg.Template)+".html", msg.Variables); err != nil {
		return "", "", fmt.Errorf("render %s: %w", msg.Template, err)
	}
	return subject.String(), body.String(), nil
}

// SendTemplated renders and delivers msg.
func (s *SMTPSender) SendTemplated(ctx context.Context, msg Message) error {
	subject, body, err := s.Render(msg)
	if err != nil {
		return err
	}
	raw := strings.Join([]string{
		fmt.Sprintf("From: %s <%s>", s.cfg.FromName, s.cfg.From),
		fmt.Sprintf("To: %s", msg.Recipient),
		fmt.Sprintf("Subject: %s", subject),
		"MIME-Version: 1.0",
		`Content-Type: text/html; charset="UTF-8"`,
		"",
		body,
	}, "\r\n")
	return s.send(ctx, msg.Recipient, []byte(raw))
}

func (s *SMTPSender) send(ctx context.Context, to string, raw []byte) error {
	addr := net.JoinHostPort(s.cfg.Host, s.cfg.Port)
	dialer := net.Dialer{Timeout: 8 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial smtp: %w", err)
	}
	_ = conn.SetDeadline(time.Now().Add(15 * time.Second))

	c, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	defer func() { _ = c.Quit() }()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: s.cfg.Host}); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}
	if s.cfg.Username != "" {
		if err := c.Auth(smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := c.Mail(s.cfg.From); err != nil {
		return err
	}
	if err := c.Rcpt(to); err != nil {
		return err
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(raw); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}
