// Package services – MessageService
//
// MessageService is the messaging gate: it persists free-text messages on a
// connection only when the connection is accepted and the author is one of
// its two parties. Message content and threading are otherwise opaque here.
//
// Observability: public methods are OpenTelemetry-instrumented; spans carry
// the connection and user identifiers and pagination parameters.

package services

import (
	"context"
	"strings"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"

	"github.com/tbourn/skillswap-connections/internal/domain"
	"github.com/tbourn/skillswap-connections/internal/repo"
)

// DefaultMaxChatMessageRunes caps a single message body.
const DefaultMaxChatMessageRunes = 4000

// MessageService coordinates message persistence behind the lifecycle gate.
type MessageService struct {
	DB *gorm.DB

	// MaxContentRunes caps message bodies; <= 0 disables the check.
	MaxContentRunes int
}

// gate loads the connection state and enforces party membership. When
// requireAccepted is set the connection must be accepted.
func (s *MessageService) gate(ctx context.Context, actor, connectionID string, requireAccepted bool) error {
	st, err := repo.StatusOf(ctx, s.DB, connectionID)
	if isNotFound(err) {
		return &NotFoundError{Resource: "connection", ID: connectionID}
	}
	if err != nil {
		return transient(err)
	}
	if actor == "" || (actor != st.SenderID && actor != st.ReceiverID) {
		return errorf(ErrForbidden, "only the parties of a connection can exchange messages")
	}
	if requireAccepted && st.Status != domain.StatusAccepted {
		return &StateError{Current: st.Status, Reason: "messages can only be sent on accepted connections; current status is " + string(st.Status)}
	}
	return nil
}

// Send validates content and stores it as a message from actor on an
// accepted connection.
func (s *MessageService) Send(ctx context.Context, actor, connectionID, content string) (*domain.Message, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "Send",
		trace.WithAttributes(
			attribute.String("connection.id", connectionID),
			attribute.String("user.id", actor),
		),
	)
	defer span.End()

	if err := s.gate(ctx, actor, connectionID, true); err != nil {
		return nil, err
	}

	content = norm.NFC.String(strings.TrimSpace(content))
	if content == "" {
		return nil, errorf(ErrInvalidInput, "content is empty")
	}
	if s.MaxContentRunes > 0 && utf8.RuneCountInString(content) > s.MaxContentRunes {
		return nil, errorf(ErrInvalidInput, "content must be at most %d characters", s.MaxContentRunes)
	}

	m, err := repo.CreateMessage(ctx, s.DB, connectionID, actor, content)
	if err != nil {
		return nil, transient(err)
	}
	logFor(ctx).Debug().Str("connection_id", connectionID).Str("message_id", m.ID).Msg("message stored")
	return m, nil
}

// ListPage returns messages on a connection, oldest first, to either party.
// History stays readable whatever the connection's status.
func (s *MessageService) ListPage(ctx context.Context, actor, connectionID string, page, pageSize int) ([]domain.Message, int64, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.String("connection.id", connectionID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	if err := s.gate(ctx, actor, connectionID, false); err != nil {
		return nil, 0, err
	}

	total, err := repo.CountMessages(ctx, s.DB, connectionID)
	if err != nil {
		return nil, 0, transient(err)
	}
	if total == 0 {
		return []domain.Message{}, 0, nil
	}

	items, err := repo.ListMessagesPage(ctx, s.DB, connectionID, offset, pageSize)
	return items, total, transient(err)
}
