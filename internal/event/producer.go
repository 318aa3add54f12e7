package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/weathermate/server/internal/domain"
	pkgkafka "github.com/weathermate/server/pkg/kafka"
)

// Kafka topics for auth domain events.
var (
	TopicUserRegistered  = pkgkafka.Topic("user", "registered")
	TopicUserVerified    = pkgkafka.Topic("user", "verified")
	TopicSessionRevoked  = pkgkafka.Topic("session", "revoked")
	TopicPasswordChanged = pkgkafka.Topic("user", "password_changed")
)

// Aggregate type constants.
const (
	AggregateTypeUser    = "user"
	AggregateTypeSession = "session"
)

// Source identifier for events originating from this server.
const SourceServer = "weathermate-server"

// UserRegisteredData is the payload for a user.registered event.
type UserRegisteredData struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Role     string `json:"role"`
	Google   bool   `json:"google"`
}

// UserVerifiedData is the payload for a user.verified event.
type UserVerifiedData struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// SessionRevokedData is the payload for a session.revoked event.
type SessionRevokedData struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	Reason    string `json:"reason"`
}

// PasswordChangedData is the payload for a user.password_changed event.
type PasswordChangedData struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// Producer publishes auth domain events to Kafka. All callers treat publish
// failures as best-effort: a Kafka outage never fails an auth flow.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new event producer.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishUserRegistered publishes a user.registered event.
func (p *Producer) PublishUserRegistered(ctx context.Context, user *domain.User) error {
	data := UserRegisteredData{
		ID:       user.ID,
		Email:    user.Email,
		Username: user.Username,
		Role:     string(user.Role),
		Google:   user.GoogleID != "",
	}

	event, err := pkgkafka.NewEvent(TopicUserRegistered, user.ID, AggregateTypeUser, SourceServer, data)
	if err != nil {
		return fmt.Errorf("create user.registered event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicUserRegistered, event); err != nil {
		return fmt.Errorf("publish user.registered event: %w", err)
	}

	p.logger.DebugContext(ctx, "published user.registered event",
		slog.String("user_id", user.ID),
	)

	return nil
}

// PublishUserVerified publishes a user.verified event.
func (p *Producer) PublishUserVerified(ctx context.Context, user *domain.User) error {
	data := UserVerifiedData{ID: user.ID, Email: user.Email}

	event, err := pkgkafka.NewEvent(TopicUserVerified, user.ID, AggregateTypeUser, SourceServer, data)
	if err != nil {
		return fmt.Errorf("create user.verified event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicUserVerified, event); err != nil {
		return fmt.Errorf("publish user.verified event: %w", err)
	}

	p.logger.DebugContext(ctx, "published user.verified event",
		slog.String("user_id", user.ID),
	)

	return nil
}

// PublishSessionRevoked publishes a session.revoked event.
func (p *Producer) PublishSessionRevoked(ctx context.Context, userID, sessionID, reason string) error {
	data := SessionRevokedData{
		UserID:    userID,
		SessionID: sessionID,
		Reason:    reason,
	}

	event, err := pkgkafka.NewEvent(TopicSessionRevoked, sessionID, AggregateTypeSession, SourceServer, data)
	if err != nil {
		return fmt.Errorf("create session.revoked event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicSessionRevoked, event); err != nil {
		return fmt.Errorf("publish session.revoked event: %w", err)
	}

	p.logger.DebugContext(ctx, "published session.revoked event",
		slog.String("user_id", userID),
		slog.String("session_id", sessionID),
		slog.String("reason", reason),
	)

	return nil
}

// PublishPasswordChanged publishes a user.password_changed event.
func (p *Producer) PublishPasswordChanged(ctx context.Context, userID, email string) error {
	data := PasswordChangedData{UserID: userID, Email: email}

	event, err := pkgkafka.NewEvent(TopicPasswordChanged, userID, AggregateTypeUser, SourceServer, data)
	if err != nil {
		return fmt.Errorf("create user.password_changed event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicPasswordChanged, event); err != nil {
		return fmt.Errorf("publish user.password_changed event: %w", err)
	}

	p.logger.DebugContext(ctx, "published user.password_changed event",
		slog.String("user_id", userID),
	)

	return nil
}
