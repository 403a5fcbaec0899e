package mailer

import (
	"context"
	"fmt"
	"net/http"

	sendgrid "github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/sugarcraft/academy-backend/pkg/config"
	"github.com/sugarcraft/academy-backend/pkg/logger"
)

// Mailer sends transactional email through Sendgrid. A nil Mailer is a
// logging no-op so pre-prod environments can run without a key.
type Mailer struct {
	client *sendgrid.Client
	from   *mail.Email
	logg   *logger.Logger
}

func New(cfg config.SendgridConfig, logg *logger.Logger) *Mailer {
	if cfg.APIKey == "" || cfg.From == "" {
		return nil
	}
	return &Mailer{
		client: sendgrid.NewSendClient(cfg.APIKey),
		from:   mail.NewEmail(cfg.FromName, cfg.From),
		logg:   logg,
	}
}

// SendWelcome greets a newly provisioned subscriber. When the account was
// created with a generated password the message includes reset instructions
// instead of a plain welcome.
func (m *Mailer) SendWelcome(ctx context.Context, to, firstName string, needsPasswordReset bool) error {
	if m == nil {
		return nil
	}

	name := firstName
	if name == "" {
		name = "there"
	}

	subject := "Welcome to Sugarcraft Academy"
	body := fmt.Sprintf(
		"Hi %s,\n\nYour subscription is active. Log in with the email and password you chose at checkout and start decorating.\n\nThe Sugarcraft Academy team",
		name,
	)
	if needsPasswordReset {
		subject = "Welcome to Sugarcraft Academy - set your password"
		body = fmt.Sprintf(
			"Hi %s,\n\nYour subscription is active, but the password you chose could not be used because it appears in a known data breach. We created your account with a temporary password.\n\nUse the \"Forgot password\" link on the login page to set a new one before signing in.\n\nThe Sugarcraft Academy team",
			name,
		)
	}

	message := mail.NewSingleEmail(m.from, subject, mail.NewEmail(firstName, to), body, "")
	resp, err := m.client.Send(message)
	if err != nil {
		return fmt.Errorf("send welcome email: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid returned %d", resp.StatusCode)
	}
	if m.logg != nil {
		m.logg.Info(m.logg.WithField(ctx, "needs_password_reset", needsPasswordReset), "welcome email sent")
	}
	return nil
}
