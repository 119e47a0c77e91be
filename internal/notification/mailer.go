package notification

import (
	"fmt"
	"net/smtp"
	"strings"

	"github.com/stanstork/invitation-api/internal/config"
	"github.com/stanstork/invitation-api/internal/models"
)

// Mailer delivers invitation emails. Delivery is best-effort; a failed send
// never rolls back the already-debited quota.
type Mailer interface {
	SendInvitation(invitation models.Invitation, sender models.User, tpls Templates) error
}

// SMTPMailer sends invitation emails using an SMTP server.
type SMTPMailer struct {
	host     string
	port     int
	username string
	password string
	from     string
	urlTpl   string
}

// NewSMTPMailer constructs a new SMTPMailer from config.
func NewSMTPMailer(cfg config.EmailConfig) (*SMTPMailer, error) {
	if strings.TrimSpace(cfg.SMTPHost) == "" {
		return nil, fmt.Errorf("smtp_host is required")
	}
	if cfg.SMTPPort == 0 {
		cfg.SMTPPort = 587
	}
	if strings.TrimSpace(cfg.From) == "" {
		return nil, fmt.Errorf("email from address is required")
	}

	return &SMTPMailer{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		username: cfg.Username,
		password: cfg.Password,
		from:     cfg.From,
		urlTpl:   cfg.AcceptURLTemplate,
	}, nil
}

// SendInvitation renders the templates and dispatches the email to the
// invited address.
func (m *SMTPMailer) SendInvitation(invitation models.Invitation, sender models.User, tpls Templates) error {
	days := int(invitation.ExpiresAt.Sub(invitation.CreatedAt).Hours() / 24)
	subject, body, err := tpls.Render(TemplateData{
		Email:      invitation.Email,
		Key:        invitation.Key,
		AcceptURL:  fmt.Sprintf(m.urlTpl, invitation.Key),
		SenderName: sender.Username,
		ExpiresAt:  invitation.ExpiresAt,
		Days:       days,
	})
	if err != nil {
		return err
	}

	headers := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=\"UTF-8\"\r\n\r\n",
		m.from, invitation.Email, subject)

	message := []byte(headers + body)
	addr := fmt.Sprintf("%s:%d", m.host, m.port)

	var auth smtp.Auth
	if strings.TrimSpace(m.username) != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.host)
	}

	return smtp.SendMail(addr, auth, m.from, []string{invitation.Email}, message)
}
