package smtp

import (
	"fmt"
	"net/smtp"
	"strings"
	"text/template"

	"github.com/go-identity-api/internal/config"
)

// Template ids understood by the notifier.
const (
	TemplateVerifyEmail   = "verify_email"
	TemplatePasswordReset = "password_reset"
)

// Notifier delivers out-of-band notifications. Callers treat delivery as
// fire-and-forget: a send failure is logged by the caller and never affects
// the outcome of the operation that triggered it.
type Notifier interface {
	Send(to, templateID string, data map[string]string) error
}

var templates = map[string]struct {
	subject string
	body    string
}{
	TemplateVerifyEmail: {
		subject: "Verify your email address",
		body:    "Hi {{.username}},\r\n\r\nConfirm your email address by opening the link below:\r\n{{.verify_link}}\r\n\r\nThe link expires in {{.expiry}}.\r\n",
	},
	TemplatePasswordReset: {
		subject: "Reset your password",
		body:    "Hi {{.username}},\r\n\r\nReset your password by opening the link below:\r\n{{.reset_link}}\r\n\r\nThe link expires in {{.expiry}}. If you did not request this, ignore this email.\r\n",
	},
}

type mailer struct {
	host     string
	port     string
	from     string
	username string
	password string
}

func NewMailer(cfg *config.Config) Notifier {
	return &mailer{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		from:     cfg.SMTPFrom,
		username: cfg.SMTPUsername,
		password: cfg.SMTPPassword,
	}
}

func (m *mailer) Send(to, templateID string, data map[string]string) error {
	tpl, ok := templates[templateID]
	if !ok {
		return fmt.Errorf("unknown mail template %q", templateID)
	}
	body, err := render(tpl.body, data)
	if err != nil {
		return fmt.Errorf("render template %q: %w", templateID, err)
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s", m.from, to, tpl.subject, body)
	addr := fmt.Sprintf("%s:%s", m.host, m.port)

	var auth smtp.Auth
	if m.username != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.host)
	}
	return smtp.SendMail(addr, auth, m.from, []string{to}, []byte(msg))
}

func render(body string, data map[string]string) (string, error) {
	t, err := template.New("mail").Parse(body)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	if err := t.Execute(&sb, data); err != nil {
		return "", err
	}
	return sb.String(), nil
}
