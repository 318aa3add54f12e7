// Package mailer delivers account emails through the notification pipeline.
// The server does not speak SMTP itself: it publishes email.send events to
// Kafka and a downstream notification worker renders and sends them.
package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"

	apperrors "github.com/weathermate/server/pkg/errors"
	pkgkafka "github.com/weathermate/server/pkg/kafka"
)

// TopicEmailSend is the topic the notification worker consumes.
var TopicEmailSend = pkgkafka.Topic("email", "send")

// Template names understood by the notification worker.
const (
	TemplateVerifyEmail   = "verify_email"
	TemplatePasswordReset = "password_reset"
)

// Mailer sends account lifecycle emails.
type Mailer interface {
	// SendVerifyEmail sends the address verification email carrying a
	// single-use token link.
	SendVerifyEmail(ctx context.Context, to, token string) error

	// SendPasswordResetEmail sends the password reset email carrying a
	// single-use token link.
	SendPasswordResetEmail(ctx context.Context, to, token string) error
}

// EmailSendData is the payload of an email.send event.
type EmailSendData struct {
	To       string `json:"to"`
	Template string `json:"template"`
	Link     string `json:"link"`
}

// KafkaMailer publishes email.send events. The underlying producer is
// created on first use so a deployment without email configured starts
// cleanly; sends then fail with EMAIL_NOT_CONFIGURED.
type KafkaMailer struct {
	brokers     []string
	frontendURL string
	logger      *slog.Logger

	once     sync.Once
	producer *pkgkafka.Producer
}

// NewKafkaMailer creates a mailer that publishes to the given brokers.
// Links embed tokens under the given frontend base URL.
func NewKafkaMailer(brokers []string, frontendURL string, logger *slog.Logger) *KafkaMailer {
	return &KafkaMailer{
		brokers:     brokers,
		frontendURL: frontendURL,
		logger:      logger,
	}
}

// SendVerifyEmail publishes a verification email event.
func (m *KafkaMailer) SendVerifyEmail(ctx context.Context, to, token string) error {
	link := m.frontendURL + "/verify-email?token=" + url.QueryEscape(token)
	return m.send(ctx, to, TemplateVerifyEmail, link)
}

// SendPasswordResetEmail publishes a password reset email event.
func (m *KafkaMailer) SendPasswordResetEmail(ctx context.Context, to, token string) error {
	link := m.frontendURL + "/reset-password?token=" + url.QueryEscape(token)
	return m.send(ctx, to, TemplatePasswordReset, link)
}

func (m *KafkaMailer) send(ctx context.Context, to, template, link string) error {
	if len(m.brokers) == 0 {
		return apperrors.EmailNotConfigured()
	}

	m.once.Do(func() {
		m.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(m.brokers), m.logger)
	})

	data := EmailSendData{To: to, Template: template, Link: link}

	event, err := pkgkafka.NewEvent(TopicEmailSend, to, "email", "weathermate-server", data)
	if err != nil {
		return fmt.Errorf("create email.send event: %w", err)
	}

	if err := m.producer.Publish(ctx, TopicEmailSend, event); err != nil {
		return fmt.Errorf("publish email.send event: %w", err)
	}

	m.logger.DebugContext(ctx, "queued email",
		slog.String("template", template),
	)

	return nil
}

// Close flushes and closes the underlying producer if one was created.
func (m *KafkaMailer) Close() error {
	if m.producer != nil {
		return m.producer.Close()
	}
	return nil
}
