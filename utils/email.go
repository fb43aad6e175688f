// utils/email.go
package utils

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"sync"
	"time"

	"zipngo/apperror"
	"zipngo/config"
	"zipngo/logger"
	"zipngo/metrics"
	"zipngo/models"
)

//go:embed templates/*.html
var templateFS embed.FS

var emailTemplates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// Message is a rendered email ready for a Mailer.
type Message struct {
	To       string
	ToName   string
	Subject  string
	HTMLBody string
	TextBody string
	Tag      string
}

// Mailer delivers a rendered message through an external transport.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// EmailService renders the transactional templates and hands them to a
// Mailer.
type EmailService struct {
	mailer  Mailer
	appURL  string
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewEmailService initializes and returns a new EmailService instance
func NewEmailService(mailer Mailer, cfg config.MailConfig) *EmailService {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &EmailService{
		mailer:  mailer,
		appURL:  cfg.AppURL,
		timeout: timeout,
	}
}

// SendWelcomeEmail greets a newly registered user.
func (es *EmailService) SendWelcomeEmail(ctx context.Context, user *models.User) error {
	data := struct {
		Name   string
		AppURL string
		Year   int
	}{user.Name, es.appURL, time.Now().Year()}

	text := fmt.Sprintf("Hello %s,\n\nThank you for registering with ZipNGo. Get started at %s\n", user.Name, es.appURL)
	return es.send(ctx, "welcome", user, "Welcome to ZipNGo", "welcome.html", data, text)
}

// SendPasswordResetEmail sends the reset link. token is the raw token that
// is also embedded in resetURL.
func (es *EmailService) SendPasswordResetEmail(ctx context.Context, user *models.User, resetURL, token string) error {
	data := struct {
		Name     string
		ResetURL string
		Token    string
	}{user.Name, resetURL, token}

	text := fmt.Sprintf("Hello %s,\n\nReset your ZipNGo password here: %s\n\nReset code: %s\n\nIf you did not request this, ignore this email.\n",
		user.Name, resetURL, token)
	return es.send(ctx, "password_reset", user, "ZipNGo password reset", "password_reset.html", data, text)
}

// SendOrderConfirmationEmail sends an order confirmation email to the user
func (es *EmailService) SendOrderConfirmationEmail(ctx context.Context, user *models.User, order *models.Order) error {
	data := struct {
		Name  string
		Order *models.Order
	}{user.Name, order}

	text := fmt.Sprintf("Dear %s,\n\nThank you for your purchase! Your order (ID: %s) has been placed.\n\nTotal Amount: %.2f\nStatus: %s\n",
		user.Name, order.ID.Hex(), order.TotalPrice, order.OrderStatus)
	return es.send(ctx, "order_confirmation", user, "Order Confirmation", "order_confirmation.html", data, text)
}

func (es *EmailService) send(ctx context.Context, tag string, user *models.User, subject, tmpl string, data any, text string) error {
	var buf bytes.Buffer
	if err := emailTemplates.ExecuteTemplate(&buf, tmpl, data); err != nil {
		metrics.RecordEmail(tag, err)
		return apperror.Delivery("Email could not be rendered", err)
	}

	err := es.mailer.Send(ctx, Message{
		To:       user.Email,
		ToName:   user.Name,
		Subject:  subject,
		HTMLBody: buf.String(),
		TextBody: text,
		Tag:      tag,
	})
	metrics.RecordEmail(tag, err)
	if err != nil {
		return apperror.Delivery("Email could not be sent", fmt.Errorf("send %s email to %s: %w", tag, user.Email, err))
	}
	logger.FromContext(ctx).Info("email sent", "template", tag, "to", user.Email)
	return nil
}

// Go runs send in the background, detached from ctx's cancellation but
// keeping its values, under the service's own timeout. Failures are logged.
func (es *EmailService) Go(ctx context.Context, name string, send func(ctx context.Context) error) {
	bg := context.WithoutCancel(ctx)
	es.wg.Add(1)
	go func() {
		defer es.wg.Done()
		ctx, cancel := context.WithTimeout(bg, es.timeout)
		defer cancel()
		if err := send(ctx); err != nil {
			logger.FromContext(ctx).Warn("background email failed", "email", name, "error", err)
		}
	}()
}

// Wait blocks until every email started with Go has finished.
func (es *EmailService) Wait() {
	es.wg.Wait()
}
