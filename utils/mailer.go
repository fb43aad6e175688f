package utils

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/keighl/postmark"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"zipngo/config"
)

// NewMailer builds the transport named by cfg.Provider.
func NewMailer(cfg config.MailConfig, log *slog.Logger) (Mailer, error) {
	switch cfg.Provider {
	case config.MailProviderPostmark:
		return NewPostmarkMailer(cfg.PostmarkToken, cfg.From), nil
	case config.MailProviderSendgrid:
		return NewSendgridMailer(cfg.SendgridKey, cfg.From, cfg.FromName), nil
	case config.MailProviderLog, "":
		return LogMailer{Logger: log}, nil
	default:
		return nil, fmt.Errorf("unknown mail provider %q", cfg.Provider)
	}
}

// PostmarkMailer sends email through the Postmark API.
type PostmarkMailer struct {
	client *postmark.Client
	from   string
}

func NewPostmarkMailer(serverToken, from string) *PostmarkMailer {
	return &PostmarkMailer{
		client: postmark.NewClient(serverToken, ""),
		from:   from,
	}
}

func (m *PostmarkMailer) Send(_ context.Context, msg Message) error {
	_, err := m.client.SendEmail(postmark.Email{
		From:     m.from,
		To:       msg.To,
		Subject:  msg.Subject,
		HtmlBody: msg.HTMLBody,
		TextBody: msg.TextBody,
		Tag:      msg.Tag,
	})
	if err != nil {
		return fmt.Errorf("postmark: %w", err)
	}
	return nil
}

// SendgridMailer sends email through the SendGrid v3 API.
type SendgridMailer struct {
	client *sendgrid.Client
	from   *mail.Email
}

func NewSendgridMailer(apiKey, from, fromName string) *SendgridMailer {
	return &SendgridMailer{
		client: sendgrid.NewSendClient(apiKey),
		from:   mail.NewEmail(fromName, from),
	}
}

func (m *SendgridMailer) Send(ctx context.Context, msg Message) error {
	email := mail.NewSingleEmail(m.from, msg.Subject, mail.NewEmail(msg.ToName, msg.To), msg.TextBody, msg.HTMLBody)
	if msg.Tag != "" {
		email.AddCategories(msg.Tag)
	}
	resp, err := m.client.SendWithContext(ctx, email)
	if err != nil {
		return fmt.Errorf("sendgrid: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid: status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

// LogMailer writes messages to the log instead of sending them. It is the
// development default.
type LogMailer struct {
	Logger *slog.Logger
}

func (m LogMailer) Send(_ context.Context, msg Message) error {
	log := m.Logger
	if log == nil {
		log = slog.Default()
	}
	log.Info("email (not sent)", "to", msg.To, "subject", msg.Subject, "tag", msg.Tag, "body", msg.TextBody)
	return nil
}
