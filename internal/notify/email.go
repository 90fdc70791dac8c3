package notify

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/nadmax/nexwatch/internal/alert"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

type EmailConfig struct {
	APIKey      string
	FromName    string
	FromAddress string
	To          string
	GuidanceDir string
}

// Email sends each alert as a plain-text message through SendGrid.
type Email struct {
	cfg    EmailConfig
	client *sendgrid.Client
}

func NewEmail(cfg EmailConfig) (*Email, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("missing SendGrid API key")
	}
	if cfg.To == "" {
		return nil, errors.New("missing alert recipient")
	}
	if cfg.FromAddress == "" {
		return nil, errors.New("missing sender address")
	}

	return &Email{cfg: cfg, client: sendgrid.NewSendClient(cfg.APIKey)}, nil
}

func (e *Email) Notify(ctx context.Context, a *alert.Alert) error {
	message := BuildEmail(e.cfg, a)

	response, err := e.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("sendgrid error: status %d", response.StatusCode)
	}

	log.Printf("[notify] Alert %s emailed to %s (status: %d)", a.ID, e.cfg.To, response.StatusCode)
	return nil
}

// BuildEmail renders the alert into a SendGrid message. Recipients may be comma separated.
func BuildEmail(cfg EmailConfig, a *alert.Alert) *mail.SGMailV3 {
	from := mail.NewEmail(cfg.FromName, cfg.FromAddress)
	body := alert.Render(a, cfg.GuidanceDir)

	message := mail.NewV3Mail()
	message.SetFrom(from)
	message.Subject = a.Summary()

	p := mail.NewPersonalization()
	for _, to := range strings.Split(cfg.To, ",") {
		to = strings.TrimSpace(to)
		if to == "" {
			continue
		}
		p.AddTos(mail.NewEmail("", to))
	}
	message.AddPersonalizations(p)
	message.AddContent(mail.NewContent("text/plain", body))

	return message
}
